// Package escore is the core of a CQRS/ES application framework: a client
// for an HTTP-accessible, CloudEvents-style event store, a command routing
// and state-sourcing engine built on top of it, and a partitioned,
// resumable event handling processor for the observed event stream.
//
// The three subsystems share the Event/EventCandidate data model and the
// two-level error taxonomy defined in errors.go.
package escore
