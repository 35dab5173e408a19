package escore

import (
	"encoding/json"
	"fmt"
	"time"
)

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

// wireEventCandidate is the on-the-wire shape of an EventCandidate.
type wireEventCandidate struct {
	Source  string         `json:"source"`
	Subject string         `json:"subject"`
	Type    string         `json:"type"`
	Data    map[string]any `json:"data"`
}

// wirePrecondition is the on-the-wire shape of a Precondition.
type wirePrecondition struct {
	Type    string               `json:"type"`
	Payload wirePreconditionBody `json:"payload"`
}

type wirePreconditionBody struct {
	Subject string `json:"subject"`
	EventID string `json:"eventId,omitempty"`
}

// wireWriteRequest is the body of POST /api/v1/write-events.
type wireWriteRequest struct {
	Events        []wireEventCandidate `json:"events"`
	Preconditions []wirePrecondition   `json:"preconditions"`
}

// wireEvent is the on-the-wire shape of a fully enriched Event.
type wireEvent struct {
	Source          string         `json:"source"`
	Subject         string         `json:"subject"`
	Type            string         `json:"type"`
	Data            map[string]any `json:"data"`
	SpecVersion     string         `json:"specVersion"`
	ID              string         `json:"id"`
	Time            string         `json:"time"`
	DataContentType string         `json:"dataContentType"`
	Hash            string         `json:"hash,omitempty"`
	PredecessorHash string         `json:"predecessorHash,omitempty"`
}

// wireReadRequest is the body of POST /api/v1/read-events and
// POST /api/v1/observe-events.
type wireReadRequest struct {
	Subject string      `json:"subject"`
	Options wireOptions `json:"options"`
}

type wireOptions struct {
	Recursive           bool                 `json:"recursive,omitempty"`
	Order               *string              `json:"order,omitempty"`
	LowerBoundInclusive *string              `json:"lowerBoundInclusive,omitempty"`
	LowerBoundExclusive *string              `json:"lowerBoundExclusive,omitempty"`
	UpperBoundInclusive *string              `json:"upperBoundInclusive,omitempty"`
	UpperBoundExclusive *string              `json:"upperBoundExclusive,omitempty"`
	FromLatestEvent     *wireFromLatestEvent `json:"fromLatestEvent,omitempty"`
}

type wireFromLatestEvent struct {
	Subject          string `json:"subject"`
	Type             string `json:"type"`
	IfEventIsMissing string `json:"ifEventIsMissing"`
}

// wireStreamLine is one NDJSON line of a read/observe stream.
type wireStreamLine struct {
	Type    string    `json:"type"` // "heartbeat" | "event"
	Payload wireEvent `json:"payload"`
}

// wireHealth is the body of GET /api/v1/health.
type wireHealth struct {
	Status string           `json:"status"`
	Checks []wireHealthItem `json:"checks"`
}

type wireHealthItem struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

func encodeCandidates(events []EventCandidate, preconditions []Precondition) ([]byte, error) {
	req := wireWriteRequest{
		Events:        make([]wireEventCandidate, len(events)),
		Preconditions: make([]wirePrecondition, len(preconditions)),
	}
	for i, e := range events {
		req.Events[i] = wireEventCandidate{Source: e.Source, Subject: e.Subject, Type: e.Type, Data: e.Data}
	}
	for i, p := range preconditions {
		req.Preconditions[i] = encodePrecondition(p)
	}
	b, err := json.Marshal(req)
	if err != nil {
		return nil, newMarshalling("encodeCandidates", err)
	}
	return b, nil
}

func encodePrecondition(p Precondition) wirePrecondition {
	switch p.Kind {
	case SubjectIsPristineKind:
		return wirePrecondition{Type: "isSubjectPristine", Payload: wirePreconditionBody{Subject: p.Subject}}
	case SubjectIsOnEventIDKind:
		return wirePrecondition{Type: "isSubjectOnEventId", Payload: wirePreconditionBody{Subject: p.Subject, EventID: p.EventID}}
	default:
		return wirePrecondition{}
	}
}

func decodeWriteResponse(body []byte) ([]Event, error) {
	var wireEvents []wireEvent
	if err := json.Unmarshal(body, &wireEvents); err != nil {
		return nil, newMarshalling("decodeWriteResponse", err)
	}
	events := make([]Event, len(wireEvents))
	for i, we := range wireEvents {
		ev, err := decodeEvent(we)
		if err != nil {
			return nil, err
		}
		events[i] = ev
	}
	return events, nil
}

func decodeEvent(we wireEvent) (Event, error) {
	t, err := parseTime(we.Time)
	if err != nil {
		return Event{}, newMarshalling("decodeEvent", fmt.Errorf("parsing time %q: %w", we.Time, err))
	}
	return Event{
		Source:          we.Source,
		Subject:         we.Subject,
		Type:            we.Type,
		Data:            we.Data,
		SpecVersion:     we.SpecVersion,
		ID:              we.ID,
		Time:            t,
		DataContentType: we.DataContentType,
		Hash:            we.Hash,
		PredecessorHash: we.PredecessorHash,
	}, nil
}

func encodeReadRequest(subject string, opts Options) ([]byte, error) {
	b, err := json.Marshal(wireReadRequest{Subject: subject, Options: encodeOptions(opts)})
	if err != nil {
		return nil, newMarshalling("encodeReadRequest", err)
	}
	return b, nil
}

func encodeOptions(o Options) wireOptions {
	w := wireOptions{
		Recursive:           o.Recursive,
		LowerBoundInclusive: o.LowerBoundInclusive,
		LowerBoundExclusive: o.LowerBoundExclusive,
		UpperBoundInclusive: o.UpperBoundInclusive,
		UpperBoundExclusive: o.UpperBoundExclusive,
	}
	if o.Order != nil {
		var s string
		if *o.Order == Antichronological {
			s = "ANTICHRONOLOGICAL"
		} else {
			s = "CHRONOLOGICAL"
		}
		w.Order = &s
	}
	if o.FromLatestEvent != nil {
		missing := "READ_NOTHING"
		if o.FromLatestEvent.IfEventIsMissing == ReadEverything {
			missing = "READ_EVERYTHING"
		}
		w.FromLatestEvent = &wireFromLatestEvent{
			Subject:          o.FromLatestEvent.Subject,
			Type:             o.FromLatestEvent.Type,
			IfEventIsMissing: missing,
		}
	}
	return w
}

func decodeHealth(body []byte) (wireHealth, error) {
	var h wireHealth
	if err := json.Unmarshal(body, &h); err != nil {
		return wireHealth{}, newMarshalling("decodeHealth", err)
	}
	return h, nil
}

// decodeStreamLine parses a single NDJSON line. ok is false for a
// heartbeat line, which callers MUST discard without invoking the event
// consumer.
func decodeStreamLine(line []byte) (Event, bool, error) {
	var sl wireStreamLine
	if err := json.Unmarshal(line, &sl); err != nil {
		return Event{}, false, newMarshalling("decodeStreamLine", err)
	}
	if sl.Type == "heartbeat" {
		return Event{}, false, nil
	}
	ev, err := decodeEvent(sl.Payload)
	if err != nil {
		return Event{}, false, err
	}
	return ev, true, nil
}
