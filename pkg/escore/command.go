package escore

import (
	"context"
	"reflect"
	"time"
)

// CommandRouter resolves a command to its registered Command Handler,
// rebuilds the handler's required instance via the State Rebuilding Cache,
// invokes the handler, and atomically publishes whatever it captures,
// implementing the ten-step algorithm of spec §4.7.
type CommandRouter struct {
	repo  *EventRepository
	cache Cache

	commandHandlers      map[reflect.Type]CommandHandlerDef
	stateRebuildHandlers map[string][]StateRebuildingHandlerDef // keyed by InstanceClass

	metrics *Metrics // nil means metrics are disabled
}

// SetMetrics enables Prometheus instrumentation of Send calls.
func (r *CommandRouter) SetMetrics(m *Metrics) { r.metrics = m }

// NewCommandRouter builds an empty CommandRouter; register handlers with
// RegisterCommandHandler and RegisterStateRebuildingHandler before sending
// commands.
func NewCommandRouter(repo *EventRepository, cache Cache) *CommandRouter {
	return &CommandRouter{
		repo:                 repo,
		cache:                cache,
		commandHandlers:      map[reflect.Type]CommandHandlerDef{},
		stateRebuildHandlers: map[string][]StateRebuildingHandlerDef{},
	}
}

// RegisterCommandHandler associates def with the concrete Go type of
// commandPrototype (a zero value or pointer of the command's type).
func (r *CommandRouter) RegisterCommandHandler(commandPrototype any, def CommandHandlerDef) {
	r.commandHandlers[commandGoType(commandPrototype)] = def
}

// RegisterStateRebuildingHandler appends def to the declared-order list for
// its InstanceClass. Registration order is apply order (spec §4.7 step 5c
// and the Open Question on overlapping handlers: ties are broken by
// declaration order, first registered runs first).
func (r *CommandRouter) RegisterStateRebuildingHandler(def StateRebuildingHandlerDef) {
	r.stateRebuildHandlers[def.InstanceClass] = append(r.stateRebuildHandlers[def.InstanceClass], def)
}

func commandGoType(v any) reflect.Type {
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

// stopIteration is a private sentinel used to break out of a ConsumeRaw
// loop early without treating the early stop as a real failure.
type stopIteration struct{}

func (stopIteration) Error() string { return "stop iteration" }

// subjectHasEvents reports whether any event exists for subject, without
// reading more than the first one.
func (r *CommandRouter) subjectHasEvents(ctx context.Context, subject string) (bool, error) {
	found := false
	err := r.repo.ConsumeRaw(ctx, subject, Options{}, func(Event) error {
		found = true
		return stopIteration{}
	})
	if err != nil {
		if _, ok := err.(stopIteration); ok {
			return found, nil
		}
		return false, err
	}
	return found, nil
}

// Send implements the Command Router's synchronous send operation.
func (r *CommandRouter) Send(ctx context.Context, command any, metaData map[string]any) (result any, err error) {
	if r.metrics != nil {
		start := time.Now()
		defer func() { r.metrics.ObserveCommand(commandGoType(command).String(), start, err) }()
	}

	// Step 1: resolve matching Command Handler.
	def, ok := r.commandHandlers[commandGoType(command)]
	if !ok {
		return nil, newInvalidUsage("Send", "command", errString("no command handler registered for this command type"))
	}
	metaData = ensureCorrelationID(metaData, commandGoType(command).String())

	// Step 2: derive subject.
	subject := def.Subject(command)

	// Step 3: verify subject condition.
	var conditionPreconditions []Precondition
	switch def.SubjectCondition {
	case SubjectConditionPristine:
		exists, err := r.subjectHasEvents(ctx, subject)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, newSubjectAlreadyExists("Send", subject)
		}
		conditionPreconditions = append(conditionPreconditions, SubjectIsPristine(subject))
	case SubjectConditionExists:
		exists, err := r.subjectHasEvents(ctx, subject)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, newSubjectDoesNotExist("Send", subject)
		}
	}

	// Steps 4-5: rebuild instance (skipped entirely for SourcingNone).
	var instance any
	sourcedSubjectIDs := map[string]string{}
	if def.SourcingMode != SourcingNone {
		key := CacheKey{Subject: subject, InstanceClass: def.InstanceClass, SourcingMode: def.SourcingMode}
		value, err := r.cache.FetchAndMerge(ctx, key, func(ctx context.Context, cached CacheValue) (CacheValue, error) {
			return r.rebuild(ctx, subject, def, cached)
		})
		if err != nil {
			return nil, err
		}
		instance = value.Instance
		for k, v := range value.SourcedSubjectIDs {
			sourcedSubjectIDs[k] = v
		}
	}

	// Step 6: build write preconditions from sourced subjects.
	preconditions := make([]Precondition, 0, len(sourcedSubjectIDs)+len(conditionPreconditions))
	for sub, id := range sourcedSubjectIDs {
		preconditions = append(preconditions, SubjectIsOnEventID(sub, id))
	}
	preconditions = append(preconditions, conditionPreconditions...)

	// Step 7: invoke the handler, capturing published events into a buffer.
	var captured []CapturedEvent
	publish := func(pubSubject string, payload any, pubMetaData map[string]any, pubPreconditions ...Precondition) {
		captured = append(captured, CapturedEvent{
			Subject:       pubSubject,
			Payload:       payload,
			MetaData:      propagateMetaData(metaData, pubMetaData, def),
			Preconditions: pubPreconditions,
		})
	}
	result, err = def.Handler(ctx, instance, command, metaData, publish)
	if err != nil {
		// Invariant: events captured during a failed invocation are discarded.
		return nil, err
	}

	// Step 8: write the captured buffer atomically, if non-empty.
	var written []Event
	if len(captured) > 0 {
		written, err = r.repo.Publish(ctx, withCombinedPreconditions(captured, preconditions))
		if err != nil {
			if def.SourcingMode != SourcingNone && IsConcurrencyViolation(err) {
				r.cache.Invalidate(CacheKey{Subject: subject, InstanceClass: def.InstanceClass, SourcingMode: def.SourcingMode})
			}
			return nil, err
		}
	}

	// Step 9: fold the newly written events back into the instance and cache.
	if def.SourcingMode != SourcingNone && len(written) > 0 {
		key := CacheKey{Subject: subject, InstanceClass: def.InstanceClass, SourcingMode: def.SourcingMode}
		for _, ev := range written {
			var applyErr error
			instance, applyErr = r.applyStateRebuilding(def.InstanceClass, instance, ev)
			if applyErr != nil {
				return nil, applyErr
			}
			sourcedSubjectIDs[ev.Subject] = ev.ID
		}
		last := written[len(written)-1].ID
		r.cache.FetchAndMerge(ctx, key, func(context.Context, CacheValue) (CacheValue, error) {
			return CacheValue{EventID: &last, Instance: instance, SourcedSubjectIDs: sourcedSubjectIDs}, nil
		})
	}

	// Step 10.
	return result, nil
}

// withCombinedPreconditions attaches preconditions (derived from the
// rebuild and from subjectCondition) to the first captured event only, so
// the repository's Publish still sends each per-event precondition plus
// exactly one copy of the combined set.
func withCombinedPreconditions(captured []CapturedEvent, preconditions []Precondition) []CapturedEvent {
	if len(preconditions) == 0 || len(captured) == 0 {
		return captured
	}
	out := make([]CapturedEvent, len(captured))
	copy(out, captured)
	out[0].Preconditions = append(append([]Precondition{}, preconditions...), out[0].Preconditions...)
	return out
}

func propagateMetaData(commandMetaData, handlerMetaData map[string]any, def CommandHandlerDef) map[string]any {
	merged := map[string]any{}
	switch def.Propagation {
	case PropagateKeepAll:
		for k, v := range commandMetaData {
			merged[k] = v
		}
	case PropagateKeepKnown:
		for k, v := range commandMetaData {
			if _, ok := def.PropagationKeys[k]; ok {
				merged[k] = v
			}
		}
	case PropagateNone:
		// nothing forwarded
	}
	for k, v := range handlerMetaData {
		merged[k] = v
	}
	return merged
}

// rebuild replays subject's events through the declared State Rebuilding
// Handlers, starting from cached if it already reflects a prior id.
func (r *CommandRouter) rebuild(ctx context.Context, subject string, def CommandHandlerDef, cached CacheValue) (CacheValue, error) {
	instance := cached.Instance
	sourcedSubjectIDs := map[string]string{}
	for k, v := range cached.SourcedSubjectIDs {
		sourcedSubjectIDs[k] = v
	}
	lastEventID := cached.EventID

	options := Options{Recursive: def.SourcingMode == SourcingRecursive}
	if cached.EventID != nil {
		options.LowerBoundExclusive = cached.EventID
	}

	err := r.repo.ConsumeRaw(ctx, subject, options, func(ev Event) error {
		var err error
		instance, err = r.applyStateRebuilding(def.InstanceClass, instance, ev)
		if err != nil {
			return err
		}
		sourcedSubjectIDs[ev.Subject] = ev.ID
		id := ev.ID
		lastEventID = &id
		return nil
	})
	if err != nil {
		return CacheValue{}, err
	}
	return CacheValue{EventID: lastEventID, Instance: instance, SourcedSubjectIDs: sourcedSubjectIDs}, nil
}

// applyStateRebuilding folds one raw event into instance via every
// matching State Rebuilding Handler for instanceClass, in declared order,
// once per upcasted result the event resolves to (0..n per spec §4.4).
func (r *CommandRouter) applyStateRebuilding(instanceClass string, instance any, ev Event) (any, error) {
	handlers := r.stateRebuildHandlers[instanceClass]
	if len(handlers) == 0 {
		return instance, nil
	}
	upcasted, err := r.repo.upcast(ev)
	if err != nil {
		return nil, err
	}
	for _, u := range upcasted {
		for _, h := range handlers {
			matches := h.Matches
			if matches == nil {
				matches = func(eventType string) bool { return eventType == h.EventType }
			}
			if !matches(u.TypeString) {
				continue
			}
			payload, err := r.repo.resolver.NewPayload(u.TypeString)
			if err != nil {
				return nil, err
			}
			ed, err := DeserializeEventData(u.Data, payload)
			if err != nil {
				return nil, err
			}
			instance = h.Handler(instance, ed.Payload, ed.MetaData, ev.Subject, ev)
		}
	}
	return instance, nil
}
