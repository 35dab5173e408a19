package bookstore

import (
	"context"
	"sync"

	"github.com/trunneml/opencqrs-sub001/pkg/escore"
)

// CatalogEntry is one row of the in-memory read model CatalogProjection
// maintains, kept separate from the Book aggregate used for command
// sourcing per CQRS's read/write split.
type CatalogEntry struct {
	ISBN   string
	Title  string
	OnLoan bool
}

// CatalogProjection is a trivial in-memory read model fed by an Event
// Handling Processor subscribed to the catalog's event types. A real
// deployment would instead write to the read-model database the core
// explicitly leaves as an external collaborator (spec §1 Non-goals).
type CatalogProjection struct {
	mu      sync.RWMutex
	entries map[string]CatalogEntry
}

// NewCatalogProjection builds an empty CatalogProjection.
func NewCatalogProjection() *CatalogProjection {
	return &CatalogProjection{entries: map[string]CatalogEntry{}}
}

// Get returns the current entry for isbn, if any.
func (p *CatalogProjection) Get(isbn string) (CatalogEntry, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.entries[isbn]
	return e, ok
}

// HandlerDefs returns the escore.EventHandlerDef set that drives this
// projection from an Event Handling Processor, all sharing group.
func (p *CatalogProjection) HandlerDefs(group string) []escore.EventHandlerDef {
	return []escore.EventHandlerDef{
		{Group: group, EventType: "book.added.v1", Handler: p.onBookAdded},
		{Group: group, EventType: "book.lent.v1", Handler: p.onBookLent},
		{Group: group, EventType: "book.returned.v1", Handler: p.onBookReturned},
	}
}

func (p *CatalogProjection) onBookAdded(ctx context.Context, payload any, metaData map[string]any, raw escore.Event) error {
	added := payload.(BookAdded)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries[added.ISBN] = CatalogEntry{ISBN: added.ISBN, Title: added.Title}
	return nil
}

func (p *CatalogProjection) onBookLent(ctx context.Context, payload any, metaData map[string]any, raw escore.Event) error {
	lent := payload.(BookLent)
	p.mu.Lock()
	defer p.mu.Unlock()
	e := p.entries[lent.ISBN]
	e.OnLoan = true
	p.entries[lent.ISBN] = e
	return nil
}

func (p *CatalogProjection) onBookReturned(ctx context.Context, payload any, metaData map[string]any, raw escore.Event) error {
	returned := payload.(BookReturned)
	p.mu.Lock()
	defer p.mu.Unlock()
	e := p.entries[returned.ISBN]
	e.OnLoan = false
	p.entries[returned.ISBN] = e
	return nil
}
