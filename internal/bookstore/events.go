// Package bookstore is a worked example wiring pkg/escore's Command Router
// and Event Handling Processor around a small book-lending domain: adding
// books to the catalog and borrowing them.
package bookstore

// BookAdded is published when a book enters the catalog.
type BookAdded struct {
	ISBN  string `json:"isbn"`
	Title string `json:"title"`
}

// BookLent is published when a catalog book is successfully borrowed.
type BookLent struct {
	ISBN   string `json:"isbn"`
	Reader string `json:"reader"`
}

// BookReturned is published when a borrowed book comes back.
type BookReturned struct {
	ISBN string `json:"isbn"`
}

// EventTypes is the wire-type registration table for this domain, handed
// to escore.NewExplicitTypeResolver.
var EventTypes = map[string]any{
	"book.added.v1":    BookAdded{},
	"book.lent.v1":     BookLent{},
	"book.returned.v1": BookReturned{},
}
