package bookstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trunneml/opencqrs-sub001/pkg/escore"
)

// memClient is an in-memory escore.Client used by this package's tests,
// standing in for an HTTP-accessible store.
type memClient struct {
	mu     sync.Mutex
	events []escore.Event
	nextID int
}

func newMemClient() *memClient { return &memClient{} }

func (c *memClient) Authenticate(ctx context.Context) error { return nil }

func (c *memClient) Health(ctx context.Context) (escore.Health, error) {
	return escore.Health{Status: escore.HealthPass}, nil
}

func (c *memClient) Write(ctx context.Context, candidates []escore.EventCandidate, preconditions []escore.Precondition) ([]escore.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range preconditions {
		latest, ok := c.latestLocked(p.Subject)
		switch p.Kind {
		case escore.SubjectIsPristineKind:
			if ok {
				return nil, fmt.Errorf("precondition violated: %s is not pristine", p.Subject)
			}
		case escore.SubjectIsOnEventIDKind:
			if !ok || latest.ID != p.EventID {
				return nil, fmt.Errorf("precondition violated: %s has advanced", p.Subject)
			}
		}
	}

	written := make([]escore.Event, len(candidates))
	for i, cand := range candidates {
		c.nextID++
		ev := escore.Event{
			Source: cand.Source, Subject: cand.Subject, Type: cand.Type, Data: cand.Data,
			SpecVersion: "1.0", ID: fmt.Sprintf("evt-%d", c.nextID), DataContentType: "application/json",
		}
		c.events = append(c.events, ev)
		written[i] = ev
	}
	return written, nil
}

func (c *memClient) latestLocked(subject string) (escore.Event, bool) {
	var latest escore.Event
	found := false
	for _, ev := range c.events {
		if ev.Subject == subject {
			latest, found = ev, true
		}
	}
	return latest, found
}

func (c *memClient) Read(ctx context.Context, subject string, options escore.Options) ([]escore.Event, error) {
	var out []escore.Event
	err := c.ReadStream(ctx, subject, options, func(e escore.Event) error { out = append(out, e); return nil })
	return out, err
}

func (c *memClient) ReadStream(ctx context.Context, subject string, options escore.Options, consume func(escore.Event) error) error {
	c.mu.Lock()
	snapshot := append([]escore.Event{}, c.events...)
	c.mu.Unlock()

	afterSeen := options.LowerBoundExclusive == nil
	for _, ev := range snapshot {
		if !afterSeen {
			if ev.ID == *options.LowerBoundExclusive {
				afterSeen = true
			}
			continue
		}
		if !subjectMatches(ev.Subject, subject, options.Recursive) {
			continue
		}
		if err := consume(ev); err != nil {
			return err
		}
	}
	return nil
}

func (c *memClient) Observe(ctx context.Context, subject string, options escore.Options, consume func(escore.Event) error) error {
	return c.ReadStream(ctx, subject, options, consume)
}

// ReadStreamAll is a test convenience: every event on subject, in order.
func (c *memClient) ReadStreamAll(ctx context.Context, subject string) ([]escore.Event, error) {
	return c.Read(ctx, subject, escore.Options{Recursive: true})
}

func subjectMatches(eventSubject, subject string, recursive bool) bool {
	if eventSubject == subject {
		return true
	}
	return recursive && strings.HasPrefix(eventSubject, strings.TrimSuffix(subject, "/")+"/")
}

func newTestApp(t *testing.T) (*App, *memClient) {
	t.Helper()
	client := newMemClient()
	app, err := New(client, escore.DefaultConfig())
	require.NoError(t, err)
	return app, client
}
