package escore

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ProgressTracker records, for each (group, partition) pair, the id of the
// last successfully handled event, and serializes updates for a single
// pair (spec §4.8/§5).
type ProgressTracker interface {
	// Load returns the current Progress for (group, partition).
	Load(ctx context.Context, group string, partition int) (Progress, error)
	// Proceed runs execute, which computes the new Progress for the event
	// currently being handled, and persists it. Implementations MUST
	// serialize Proceed calls for the same (group, partition) pair.
	Proceed(ctx context.Context, group string, partition int, execute func() (Progress, error)) error
}

// InMemoryProgressTracker is a process-local ProgressTracker, suitable for
// tests and single-instance deployments that accept losing progress on
// restart.
type InMemoryProgressTracker struct {
	mu       sync.Mutex
	progress map[progressKey]Progress
	locks    map[progressKey]*sync.Mutex
}

type progressKey struct {
	group     string
	partition int
}

// NewInMemoryProgressTracker builds an empty InMemoryProgressTracker.
func NewInMemoryProgressTracker() *InMemoryProgressTracker {
	return &InMemoryProgressTracker{
		progress: map[progressKey]Progress{},
		locks:    map[progressKey]*sync.Mutex{},
	}
}

func (t *InMemoryProgressTracker) keyLock(k progressKey) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.locks[k]
	if !ok {
		m = &sync.Mutex{}
		t.locks[k] = m
	}
	return m
}

func (t *InMemoryProgressTracker) Load(ctx context.Context, group string, partition int) (Progress, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.progress[progressKey{group, partition}], nil
}

func (t *InMemoryProgressTracker) Proceed(ctx context.Context, group string, partition int, execute func() (Progress, error)) error {
	k := progressKey{group, partition}
	lock := t.keyLock(k)
	lock.Lock()
	defer lock.Unlock()

	p, err := execute()
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.progress[k] = p
	t.mu.Unlock()
	return nil
}

// PostgresProgressTracker is a JDBC-style ProgressTracker backed by a
// PROGRESS(GROUP_KEY, PARTITION_ID, EVENT_ID) table (spec §6), matching
// the teacher's pgxpool-direct-SQL idiom rather than an ORM.
type PostgresProgressTracker struct {
	pool *pgxpool.Pool

	mu    sync.Mutex
	locks map[progressKey]*sync.Mutex
}

// NewPostgresProgressTracker builds a PostgresProgressTracker over pool.
// The PROGRESS table must already exist; this framework does not run
// migrations (spec §1 Non-goals: no persistent database is provided by
// the core).
func NewPostgresProgressTracker(pool *pgxpool.Pool) *PostgresProgressTracker {
	return &PostgresProgressTracker{pool: pool, locks: map[progressKey]*sync.Mutex{}}
}

func (t *PostgresProgressTracker) Load(ctx context.Context, group string, partition int) (Progress, error) {
	var eventID string
	err := t.pool.QueryRow(ctx,
		`SELECT EVENT_ID FROM PROGRESS WHERE GROUP_KEY = $1 AND PARTITION_ID = $2`,
		group, partition,
	).Scan(&eventID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return Progress{Kind: ProgressNone}, nil
		}
		return Progress{}, newTransient("Load", err)
	}
	return Progress{Kind: ProgressSuccess, EventID: eventID}, nil
}

func (t *PostgresProgressTracker) keyLock(k progressKey) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.locks[k]
	if !ok {
		m = &sync.Mutex{}
		t.locks[k] = m
	}
	return m
}

func (t *PostgresProgressTracker) Proceed(ctx context.Context, group string, partition int, execute func() (Progress, error)) error {
	k := progressKey{group, partition}
	lock := t.keyLock(k)
	lock.Lock()
	defer lock.Unlock()

	p, err := execute()
	if err != nil {
		return err
	}
	if p.Kind != ProgressSuccess {
		return nil
	}

	tag, err := t.pool.Exec(ctx,
		`UPDATE PROGRESS SET EVENT_ID = $1 WHERE GROUP_KEY = $2 AND PARTITION_ID = $3`,
		p.EventID, group, partition,
	)
	if err != nil {
		return newTransient("Proceed", err)
	}
	if tag.RowsAffected() == 0 {
		_, err := t.pool.Exec(ctx,
			`INSERT INTO PROGRESS (GROUP_KEY, PARTITION_ID, EVENT_ID) VALUES ($1, $2, $3)`,
			group, partition, p.EventID,
		)
		if err != nil {
			return newTransient("Proceed", err)
		}
	}
	return nil
}

// SelfCheck runs the startup sanity query from spec §6 ("SELECT COUNT(*)")
// confirming the PROGRESS table is reachable before processors start.
func (t *PostgresProgressTracker) SelfCheck(ctx context.Context) error {
	var count int
	if err := t.pool.QueryRow(ctx, `SELECT COUNT(*) FROM PROGRESS`).Scan(&count); err != nil {
		return newTransient("SelfCheck", err)
	}
	return nil
}
