package bookstore

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/trunneml/opencqrs-sub001/pkg/escore"
)

// App bundles the Command Router and a Catalog Projection for the
// bookstore domain over a caller-supplied Client.
type App struct {
	Router     *escore.CommandRouter
	Repository *escore.EventRepository
	Catalog    *CatalogProjection
}

// New wires an App over client, using cfg for cache sizing (spec §6's
// cache.{type, capacity} keys).
func New(client escore.Client, cfg escore.Config) (*App, error) {
	resolver := escore.NewExplicitTypeResolver(EventTypes)
	repo := escore.NewEventRepository(client, resolver, nil)

	var cache escore.Cache
	if cfg.CacheType == escore.CacheTypeInMemory {
		lru, err := escore.NewLRUCache(cfg.CacheCapacity)
		if err != nil {
			return nil, err
		}
		cache = lru
	} else {
		cache = escore.NoCache{}
	}

	router := escore.NewCommandRouter(repo, cache)
	Register(router)

	return &App{Router: router, Repository: repo, Catalog: NewCatalogProjection()}, nil
}

// NewCatalogProcessor builds the Event Handling Processor that feeds
// a.Catalog from the observed "/books" subject tree.
func (a *App) NewCatalogProcessor(progress escore.ProgressTracker, group string, log zerolog.Logger) *escore.Processor {
	return escore.NewProcessor(a.Repository, progress, escore.ProcessorConfig{
		Group:            group,
		Partition:        0,
		ActivePartitions: 1,
		Subject:          "/books",
		Recursive:        true,
		Sequence:         escore.PerSubjectSequenceResolver(),
		Handlers:         a.Catalog.HandlerDefs(group),
		NewBackOff: func() escore.BackOff {
			return escore.NewExponentialBackOff(50*time.Millisecond, 5*time.Second, 60*time.Second, 2.0, 8)
		},
	}, log)
}
