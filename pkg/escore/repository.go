package escore

import "context"

// EventRepository composes a Client with a TypeResolver and an optional
// UpcasterChain to give the Command Router and the Event Handling
// Processor a single place to publish CapturedEvents and to consume raw
// store events as upcasted, typed (type string, data map) pairs (spec
// §4.3/§4.4). Neither caller needs to know about the wire envelope.
type EventRepository struct {
	client   Client
	resolver TypeResolver
	upcaster *UpcasterChain // nil means "no upcasting configured"
}

// NewEventRepository builds an EventRepository. upcaster may be nil.
func NewEventRepository(client Client, resolver TypeResolver, upcaster *UpcasterChain) *EventRepository {
	return &EventRepository{client: client, resolver: resolver, upcaster: upcaster}
}

// Publish resolves each CapturedEvent's payload to a wire type string,
// serializes its EventData envelope, and atomically writes the whole batch
// with the union of every event's preconditions.
func (r *EventRepository) Publish(ctx context.Context, captured []CapturedEvent) ([]Event, error) {
	candidates := make([]EventCandidate, len(captured))
	var preconditions []Precondition
	for i, c := range captured {
		typeString, err := r.resolver.TypeFor(c.Payload)
		if err != nil {
			return nil, err
		}
		data, err := SerializeEventData(EventData{MetaData: c.MetaData, Payload: c.Payload})
		if err != nil {
			return nil, err
		}
		candidates[i] = EventCandidate{Subject: c.Subject, Type: typeString, Data: data}
		preconditions = append(preconditions, c.Preconditions...)
	}
	return r.client.Write(ctx, candidates, preconditions)
}

// Upcasted is a raw Event paired with its upcasted (type, data) pair, ready
// for final deserialization into a handler's payload type.
type Upcasted struct {
	Raw        Event
	TypeString string
	Data       map[string]any
}

// upcast applies the configured chain (a no-op if none is configured),
// returning the 0..n upcasted results one raw event resolves to (spec
// §4.4): zero when an upcaster retires the event, more than one when an
// upcaster splits it.
func (r *EventRepository) upcast(ev Event) ([]Upcasted, error) {
	if r.upcaster == nil {
		return []Upcasted{{Raw: ev, TypeString: ev.Type, Data: ev.Data}}, nil
	}
	results, err := r.upcaster.Apply(ev.Type, ev.Data)
	if err != nil {
		return nil, err
	}
	out := make([]Upcasted, len(results))
	for i, res := range results {
		out[i] = Upcasted{Raw: ev, TypeString: res.Type, Data: res.Data}
	}
	return out, nil
}

// ConsumeRaw streams subject through options without upcasting or
// deserialization, for callers that only need the raw Event (e.g. the
// Command Router's subject-existence check and its state rebuild, which
// upcasts each event itself in applyStateRebuilding).
func (r *EventRepository) ConsumeRaw(ctx context.Context, subject string, options Options, consume func(Event) error) error {
	return r.client.ReadStream(ctx, subject, options, consume)
}

// ConsumeUpcasted streams subject, running every event through the
// upcaster chain, and hands the caller one (possibly renamed/reshaped)
// type string and data map per upcasted result (0..n per raw event)
// without resolving a concrete Go type; the caller decodes the payload
// itself, e.g. via DeserializeEventData.
func (r *EventRepository) ConsumeUpcasted(ctx context.Context, subject string, options Options, consume func(Upcasted) error) error {
	return r.client.ReadStream(ctx, subject, options, func(ev Event) error {
		upcasted, err := r.upcast(ev)
		if err != nil {
			return err
		}
		for _, u := range upcasted {
			if err := consume(u); err != nil {
				return err
			}
		}
		return nil
	})
}

// ObserveUpcasted is ConsumeUpcasted's long-lived-stream counterpart. The
// Event Handling Processor does not use it: it observes through the Client
// directly so it can decide partition relevance before upcasting.
func (r *EventRepository) ObserveUpcasted(ctx context.Context, subject string, options Options, consume func(Upcasted) error) error {
	return r.client.Observe(ctx, subject, options, func(ev Event) error {
		upcasted, err := r.upcast(ev)
		if err != nil {
			return err
		}
		for _, u := range upcasted {
			if err := consume(u); err != nil {
				return err
			}
		}
		return nil
	})
}

// ConsumeAsObject is ConsumeUpcasted followed by type resolution and
// EventData deserialization into a fresh value produced by the
// repository's TypeResolver, for callers (Event Handlers) that want a
// ready-to-use typed payload rather than a raw map.
func (r *EventRepository) ConsumeAsObject(ctx context.Context, subject string, options Options, consume func(Event, EventData) error) error {
	return r.ConsumeUpcasted(ctx, subject, options, func(u Upcasted) error {
		out, err := r.resolver.NewPayload(u.TypeString)
		if err != nil {
			return err
		}
		ed, err := DeserializeEventData(u.Data, out)
		if err != nil {
			return err
		}
		return consume(u.Raw, ed)
	})
}
