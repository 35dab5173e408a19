package escore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeCandidatesIncludesTypeAndPrecondition(t *testing.T) {
	candidates := []EventCandidate{
		{Source: "svc", Subject: "/book/1", Type: "BookAdded", Data: map[string]any{"metadata": map[string]any{}, "payload": map[string]any{"title": "Go"}}},
	}
	preconditions := []Precondition{SubjectIsPristine("/book/1")}

	body, err := encodeCandidates(candidates, preconditions)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"isSubjectPristine"`)
	assert.Contains(t, string(body), `"BookAdded"`)
}

func TestEncodePreconditionOnEventID(t *testing.T) {
	p := SubjectIsOnEventID("/book/1", "evt-42")
	w := encodePrecondition(p)
	assert.Equal(t, "isSubjectOnEventId", w.Type)
	assert.Equal(t, "evt-42", w.Payload.EventID)
}

func TestDecodeWriteResponse(t *testing.T) {
	body := []byte(`[{"source":"svc","subject":"/book/1","type":"BookAdded","data":{},"specVersion":"1.0","id":"evt-1","time":"2026-01-01T00:00:00Z","dataContentType":"application/json"}]`)
	events, err := decodeWriteResponse(body)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "evt-1", events[0].ID)
	assert.Equal(t, "/book/1", events[0].Subject)
}

func TestDecodeStreamLineHeartbeat(t *testing.T) {
	_, ok, err := decodeStreamLine([]byte(`{"type":"heartbeat"}`))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDecodeStreamLineEvent(t *testing.T) {
	line := []byte(`{"type":"event","payload":{"source":"svc","subject":"/book/1","type":"BookAdded","data":{},"specVersion":"1.0","id":"evt-1","time":"2026-01-01T00:00:00Z","dataContentType":"application/json"}}`)
	ev, ok, err := decodeStreamLine(line)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "evt-1", ev.ID)
}

func TestEncodeOptionsFromLatestEvent(t *testing.T) {
	opts := Options{
		FromLatestEvent: &FromLatestEventAnchor{Subject: "/book/1", Type: "BookAdded", IfEventIsMissing: ReadEverything},
	}
	w := encodeOptions(opts)
	require.NotNil(t, w.FromLatestEvent)
	assert.Equal(t, "READ_EVERYTHING", w.FromLatestEvent.IfEventIsMissing)
}

func TestParseTimeEmptyString(t *testing.T) {
	tm, err := parseTime("")
	require.NoError(t, err)
	assert.True(t, tm.IsZero())
}
