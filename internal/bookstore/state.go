package bookstore

import "github.com/trunneml/opencqrs-sub001/pkg/escore"

// Book is the rebuilt aggregate state for one catalog subject
// "/books/{isbn}".
type Book struct {
	ISBN   string
	Title  string
	Exists bool
	Lent   bool
	Reader string
}

// ApplyBookAdded folds a BookAdded event into Book, creating the instance
// on first sight since Book starts nil before any event has been seen.
func ApplyBookAdded(instance any, event any, metaData map[string]any, subject string, raw escore.Event) any {
	b, _ := instance.(*Book)
	if b == nil {
		b = &Book{}
	}
	added := event.(BookAdded)
	b.ISBN = added.ISBN
	b.Title = added.Title
	b.Exists = true
	return b
}

// ApplyBookLent folds a BookLent event into Book.
func ApplyBookLent(instance any, event any, metaData map[string]any, subject string, raw escore.Event) any {
	b, _ := instance.(*Book)
	if b == nil {
		b = &Book{}
	}
	lent := event.(BookLent)
	b.Lent = true
	b.Reader = lent.Reader
	return b
}

// ApplyBookReturned folds a BookReturned event into Book.
func ApplyBookReturned(instance any, event any, metaData map[string]any, subject string, raw escore.Event) any {
	b, _ := instance.(*Book)
	if b == nil {
		b = &Book{}
	}
	b.Lent = false
	b.Reader = ""
	return b
}
