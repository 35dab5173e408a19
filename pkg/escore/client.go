package escore

import "context"

// HealthStatus mirrors the store's health status enum.
type HealthStatus int

const (
	HealthPass HealthStatus = iota
	HealthWarn
	HealthFail
)

// Health is the parsed response of GET /api/v1/health.
type Health struct {
	Status HealthStatus
	Checks []HealthCheck
}

// HealthCheck is one named check contributing to a Health result.
type HealthCheck struct {
	Name   string
	Status HealthStatus
}

// Client is the Store Client's public contract: authenticated publish,
// read, and observe operations against an HTTP-accessible event store.
type Client interface {
	// Authenticate verifies credentials against the store.
	Authenticate(ctx context.Context) error

	// Health reports the store's readiness.
	Health(ctx context.Context) (Health, error)

	// Write atomically appends candidates, enforcing preconditions.
	// Returned events are in input order with all enrichment attributes
	// populated except Hash, which may be absent.
	Write(ctx context.Context, candidates []EventCandidate, preconditions []Precondition) ([]Event, error)

	// Read returns a bounded, single-shot batch of events matching subject
	// and options.
	Read(ctx context.Context, subject string, options Options) ([]Event, error)

	// ReadStream invokes consume synchronously for each event matching
	// subject and options, without buffering the whole batch in memory.
	ReadStream(ctx context.Context, subject string, options Options, consume func(Event) error) error

	// Observe opens a long-lived stream for subject and invokes consume
	// synchronously for each event in store order. It does not return
	// under normal conditions; it returns when ctx is done or the stream
	// ends with a non-recoverable error. Heartbeat frames are consumed and
	// discarded internally; consume is never called for them.
	Observe(ctx context.Context, subject string, options Options, consume func(Event) error) error
}

func parseHealthStatus(s string) HealthStatus {
	switch s {
	case "pass":
		return HealthPass
	case "warn":
		return HealthWarn
	default:
		return HealthFail
	}
}
