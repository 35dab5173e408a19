package escore

import (
	"encoding/json"
	"reflect"
)

// eventDataEnvelope is the wire shape of EventData inside an Event's data
// field: {"metadata": ..., "payload": ...}. These two field names are
// fixed by spec §3/§6 for cross-tool interop.
type eventDataEnvelope struct {
	MetaData map[string]any `json:"metadata"`
	Payload  any            `json:"payload"`
}

// SerializeEventData encodes EventData into the data map an EventCandidate
// carries.
func SerializeEventData(d EventData) (map[string]any, error) {
	b, err := json.Marshal(eventDataEnvelope{MetaData: d.MetaData, Payload: d.Payload})
	if err != nil {
		return nil, newMarshalling("SerializeEventData", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, newMarshalling("SerializeEventData", err)
	}
	return m, nil
}

// DeserializeEventData decodes an Event's data field into EventData. The
// payload is unmarshaled into out (a pointer to the concrete type), and
// Payload is the value out points to. When out is nil the payload is not
// decoded and Payload is nil. Polymorphic subtype discriminators
// embedded in the payload survive this round trip because the payload
// bytes are preserved verbatim and handed to out's own UnmarshalJSON (or
// the encoding/json default) rather than reinterpreted generically.
func DeserializeEventData(data map[string]any, out any) (EventData, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return EventData{}, newMarshalling("DeserializeEventData", err)
	}
	var raw struct {
		MetaData map[string]any  `json:"metadata"`
		Payload  json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return EventData{}, newMarshalling("DeserializeEventData", err)
	}
	if out != nil && len(raw.Payload) > 0 {
		if err := json.Unmarshal(raw.Payload, out); err != nil {
			return EventData{}, newMarshalling("DeserializeEventData", err)
		}
	}
	payload := out
	if rv := reflect.ValueOf(out); rv.Kind() == reflect.Ptr {
		payload = rv.Elem().Interface()
	}
	return EventData{MetaData: raw.MetaData, Payload: payload}, nil
}

// TypeResolver is the bidirectional map between wire event-type strings
// and runtime class descriptors (spec §4.3).
type TypeResolver interface {
	// TypeFor returns the wire type string for a payload value, or a
	// TypeResolutionError if none (or more than one, ambiguously) is
	// registered for it.
	TypeFor(payload any) (string, error)
	// NewPayload returns a fresh zero value of the Go type registered for
	// typeString, or a TypeResolutionError if none is registered.
	NewPayload(typeString string) (any, error)
}

// nameBasedResolver uses the runtime-qualified Go type name as the wire
// type, matching spec §4.3(a).
type nameBasedResolver struct {
	types map[string]reflect.Type
}

// NewNameBasedTypeResolver builds a TypeResolver that uses
// reflect.TypeOf(payload).String() as the wire type. prototypes must be
// registered up front so NewPayload can manufacture zero values on decode.
func NewNameBasedTypeResolver(prototypes ...any) TypeResolver {
	r := &nameBasedResolver{types: map[string]reflect.Type{}}
	for _, p := range prototypes {
		t := reflect.TypeOf(p)
		for t.Kind() == reflect.Ptr {
			t = t.Elem()
		}
		r.types[t.String()] = t
	}
	return r
}

func (r *nameBasedResolver) TypeFor(payload any) (string, error) {
	t := reflect.TypeOf(payload)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	name := t.String()
	if _, ok := r.types[name]; !ok {
		return "", newTypeResolution("TypeFor", name, errString("type not registered"))
	}
	return name, nil
}

func (r *nameBasedResolver) NewPayload(typeString string) (any, error) {
	t, ok := r.types[typeString]
	if !ok {
		return nil, newTypeResolution("NewPayload", typeString, errString("type not registered"))
	}
	return reflect.New(t).Interface(), nil
}

// explicitMapEntry pairs a registered wire type string with the Go type it
// decodes to.
type explicitMapEntry struct {
	typeString string
	goType     reflect.Type
}

// explicitResolver implements spec §4.3(b): a pre-configured explicit map
// with assignability lookup on encode, direct lookup on decode.
type explicitResolver struct {
	entries []explicitMapEntry
	byType  map[string]reflect.Type
}

// NewExplicitTypeResolver registers typeString -> prototype pairs. Encoding
// picks the unique registered entry whose type is assignable from the
// payload's concrete type; more than one match is a TypeResolutionError
// (spec §4.3 "ambiguity is a TypeResolution error").
func NewExplicitTypeResolver(pairs map[string]any) TypeResolver {
	r := &explicitResolver{byType: map[string]reflect.Type{}}
	for typeString, prototype := range pairs {
		t := reflect.TypeOf(prototype)
		for t.Kind() == reflect.Ptr {
			t = t.Elem()
		}
		r.entries = append(r.entries, explicitMapEntry{typeString: typeString, goType: t})
		r.byType[typeString] = t
	}
	return r
}

func (r *explicitResolver) TypeFor(payload any) (string, error) {
	t := reflect.TypeOf(payload)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	var matches []string
	for _, e := range r.entries {
		if t.AssignableTo(e.goType) {
			matches = append(matches, e.typeString)
		}
	}
	switch len(matches) {
	case 0:
		return "", newTypeResolution("TypeFor", t.String(), errString("no registered type assignable from payload"))
	case 1:
		return matches[0], nil
	default:
		return "", newTypeResolution("TypeFor", t.String(), errString("ambiguous: multiple registered types assignable from payload"))
	}
}

func (r *explicitResolver) NewPayload(typeString string) (any, error) {
	t, ok := r.byType[typeString]
	if !ok {
		return nil, newTypeResolution("NewPayload", typeString, errString("type not registered"))
	}
	return reflect.New(t).Interface(), nil
}
