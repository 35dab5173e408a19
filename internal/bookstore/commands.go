package bookstore

import (
	"context"
	"fmt"

	"github.com/trunneml/opencqrs-sub001/pkg/escore"
)

// AddBookCommand adds a new book to the catalog.
type AddBookCommand struct {
	ISBN  string
	Title string
}

// BorrowBookCommand borrows an existing, currently-available book.
type BorrowBookCommand struct {
	ISBN   string
	Reader string
}

// ReturnBookCommand returns a previously borrowed book.
type ReturnBookCommand struct {
	ISBN string
}

func subjectForISBN(isbn string) string { return "/books/" + isbn }

// Register wires every command and state rebuilding handler of this
// domain onto router.
func Register(router *escore.CommandRouter) {
	router.RegisterStateRebuildingHandler(escore.StateRebuildingHandlerDef{
		InstanceClass: "Book", EventType: "book.added.v1", Handler: ApplyBookAdded,
	})
	router.RegisterStateRebuildingHandler(escore.StateRebuildingHandlerDef{
		InstanceClass: "Book", EventType: "book.lent.v1", Handler: ApplyBookLent,
	})
	router.RegisterStateRebuildingHandler(escore.StateRebuildingHandlerDef{
		InstanceClass: "Book", EventType: "book.returned.v1", Handler: ApplyBookReturned,
	})

	router.RegisterCommandHandler(AddBookCommand{}, escore.CommandHandlerDef{
		InstanceClass:    "Book",
		SourcingMode:     escore.SourcingNone,
		SubjectCondition: escore.SubjectConditionPristine,
		Subject:          func(c any) string { return subjectForISBN(c.(AddBookCommand).ISBN) },
		Handler:          handleAddBook,
	})
	router.RegisterCommandHandler(BorrowBookCommand{}, escore.CommandHandlerDef{
		InstanceClass: "Book",
		SourcingMode:  escore.SourcingLocal,
		Subject:       func(c any) string { return subjectForISBN(c.(BorrowBookCommand).ISBN) },
		Handler:       handleBorrowBook,
	})
	router.RegisterCommandHandler(ReturnBookCommand{}, escore.CommandHandlerDef{
		InstanceClass: "Book",
		SourcingMode:  escore.SourcingLocal,
		Subject:       func(c any) string { return subjectForISBN(c.(ReturnBookCommand).ISBN) },
		Handler:       handleReturnBook,
	})
}

func handleAddBook(ctx context.Context, instance any, command any, metaData map[string]any,
	publish func(subject string, payload any, metaData map[string]any, preconditions ...escore.Precondition)) (any, error) {
	cmd := command.(AddBookCommand)
	publish(subjectForISBN(cmd.ISBN), BookAdded{ISBN: cmd.ISBN, Title: cmd.Title}, nil)
	return cmd.ISBN, nil
}

func handleBorrowBook(ctx context.Context, instance any, command any, metaData map[string]any,
	publish func(subject string, payload any, metaData map[string]any, preconditions ...escore.Precondition)) (any, error) {
	cmd := command.(BorrowBookCommand)
	book, _ := instance.(*Book)
	if book == nil || !book.Exists {
		return nil, fmt.Errorf("book %s does not exist", cmd.ISBN)
	}
	if book.Lent {
		return nil, fmt.Errorf("book %s is already lent to %s", cmd.ISBN, book.Reader)
	}
	publish(subjectForISBN(cmd.ISBN), BookLent{ISBN: cmd.ISBN, Reader: cmd.Reader}, nil)
	return nil, nil
}

func handleReturnBook(ctx context.Context, instance any, command any, metaData map[string]any,
	publish func(subject string, payload any, metaData map[string]any, preconditions ...escore.Precondition)) (any, error) {
	cmd := command.(ReturnBookCommand)
	book, _ := instance.(*Book)
	if book == nil || !book.Lent {
		return nil, fmt.Errorf("book %s is not currently lent", cmd.ISBN)
	}
	publish(subjectForISBN(cmd.ISBN), BookReturned{ISBN: cmd.ISBN}, nil)
	return nil, nil
}
