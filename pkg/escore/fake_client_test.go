package escore

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// fakeClient is an in-memory Client used by command/repository/processor
// tests, standing in for the HTTP store (spec §4.1's Client contract is
// transport-agnostic from the rest of the core's point of view).
type fakeClient struct {
	mu     sync.Mutex
	events []Event
	nextID int
}

func newFakeClient() *fakeClient { return &fakeClient{} }

func (f *fakeClient) Authenticate(ctx context.Context) error { return nil }

func (f *fakeClient) Health(ctx context.Context) (Health, error) {
	return Health{Status: HealthPass}, nil
}

func (f *fakeClient) Write(ctx context.Context, candidates []EventCandidate, preconditions []Precondition) ([]Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, p := range preconditions {
		latest, ok := f.latestLocked(p.Subject)
		switch p.Kind {
		case SubjectIsPristineKind:
			if ok {
				return nil, newConcurrencyViolation("Write", p.Subject, errString("subject is not pristine"))
			}
		case SubjectIsOnEventIDKind:
			if !ok || latest.ID != p.EventID {
				return nil, newConcurrencyViolation("Write", p.Subject, errString("subject has advanced"))
			}
		}
	}

	written := make([]Event, len(candidates))
	for i, c := range candidates {
		f.nextID++
		ev := Event{
			Source: c.Source, Subject: c.Subject, Type: c.Type, Data: c.Data,
			SpecVersion: "1.0", ID: fmt.Sprintf("evt-%d", f.nextID), DataContentType: "application/json",
		}
		f.events = append(f.events, ev)
		written[i] = ev
	}
	return written, nil
}

func (f *fakeClient) latestLocked(subject string) (Event, bool) {
	var latest Event
	found := false
	for _, ev := range f.events {
		if ev.Subject == subject {
			latest = ev
			found = true
		}
	}
	return latest, found
}

func (f *fakeClient) Read(ctx context.Context, subject string, options Options) ([]Event, error) {
	var out []Event
	err := f.ReadStream(ctx, subject, options, func(e Event) error { out = append(out, e); return nil })
	return out, err
}

func (f *fakeClient) ReadStream(ctx context.Context, subject string, options Options, consume func(Event) error) error {
	f.mu.Lock()
	snapshot := append([]Event{}, f.events...)
	f.mu.Unlock()

	afterSeen := options.LowerBoundExclusive == nil
	for _, ev := range snapshot {
		if !afterSeen {
			if ev.ID == *options.LowerBoundExclusive {
				afterSeen = true
			}
			continue
		}
		if !matchesSubject(ev.Subject, subject, options.Recursive) {
			continue
		}
		if err := consume(ev); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeClient) Observe(ctx context.Context, subject string, options Options, consume func(Event) error) error {
	return f.ReadStream(ctx, subject, options, consume)
}

func matchesSubject(eventSubject, subject string, recursive bool) bool {
	if eventSubject == subject {
		return true
	}
	return recursive && strings.HasPrefix(eventSubject, strings.TrimSuffix(subject, "/")+"/")
}
