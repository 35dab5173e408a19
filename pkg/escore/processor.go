package escore

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// ProcessorConfig configures one Event Handling Processor instance,
// identified by (Group, Partition) (spec §4.8).
type ProcessorConfig struct {
	Group            string
	Partition        int
	ActivePartitions int
	Subject          string
	Recursive        bool
	Sequence         SequenceResolver
	Handlers         []EventHandlerDef
	// NewBackOff builds the BackOff a Run uses for its retry sequences. It
	// is called once per Run; that BackOff is Reset after each event, so
	// every raw event starts a fresh sequence of attempts.
	NewBackOff func() BackOff
}

// Processor is a partitioned, resumable, backoff-retrying consumer of one
// subject's observed event stream.
type Processor struct {
	cfg      ProcessorConfig
	repo     *EventRepository
	progress ProgressTracker
	log      zerolog.Logger
}

// NewProcessor builds a Processor. cfg.Handlers must all share cfg.Group.
func NewProcessor(repo *EventRepository, progress ProgressTracker, cfg ProcessorConfig, log zerolog.Logger) *Processor {
	return &Processor{cfg: cfg, repo: repo, progress: progress, log: log}
}

// Run drives the processing loop until ctx is done or a NonTransient
// failure (including an interruption during a progress update) occurs. It
// is the caller's responsibility to run Run in its own goroutine and to
// cancel ctx to stop it (spec §4.9's Life-cycle Controller does this).
func (p *Processor) Run(ctx context.Context) error {
	current, err := p.progress.Load(ctx, p.cfg.Group, p.cfg.Partition)
	if err != nil {
		return err
	}
	options := Options{Recursive: p.cfg.Recursive}
	if current.Kind == ProgressSuccess {
		id := current.EventID
		options.LowerBoundExclusive = &id
	}

	// Two-slot executor: the observe callback (stream reader) only ever
	// hands an event off and waits for its outcome; all retry/backoff
	// sleeping and handler execution happens on the dispatch goroutine, so
	// ctx cancellation can pre-empt a stuck handler without blocking the
	// reader mid-handoff.
	eventCh := make(chan Event)
	resultCh := make(chan error)
	done := make(chan struct{})
	go p.dispatchLoop(ctx, eventCh, resultCh, done)
	defer close(done)

	streamErr := p.repo.client.Observe(ctx, p.cfg.Subject, options, func(raw Event) error {
		select {
		case <-ctx.Done():
			return newInterrupted("Run", ctx.Err())
		case eventCh <- raw:
		}
		select {
		case <-ctx.Done():
			return newInterrupted("Run", ctx.Err())
		case err := <-resultCh:
			return err
		}
	})
	return streamErr
}

// dispatchLoop is the second of the two slots: it owns the backoff state
// for whichever event it is currently retrying and runs entirely off the
// stream-reading goroutine.
func (p *Processor) dispatchLoop(ctx context.Context, eventCh <-chan Event, resultCh chan<- error, done <-chan struct{}) {
	backoff := p.cfg.NewBackOff()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case raw := <-eventCh:
			err := p.handleWithRetry(ctx, raw, backoff)
			select {
			case resultCh <- err:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}
}

// handleWithRetry processes raw, retrying through backoff on any failure
// that is neither NonTransient nor Interrupted, and giving up on the event
// (advancing progress past it) once the policy is exhausted.
func (p *Processor) handleWithRetry(ctx context.Context, raw Event, backoff BackOff) error {
	for {
		err := p.progress.Proceed(ctx, p.cfg.Group, p.cfg.Partition, func() (Progress, error) {
			return p.processOne(ctx, raw)
		})
		if err == nil {
			backoff.Reset()
			return nil
		}
		if IsNonTransient(err) || IsInterrupted(err) {
			return err
		}

		delay := backoff.Next()
		if delay == Stop {
			p.log.Error().Err(err).Str("group", p.cfg.Group).Int("partition", p.cfg.Partition).
				Str("eventId", raw.ID).Msg("backoff exhausted, skipping event")
			giveUp := p.progress.Proceed(ctx, p.cfg.Group, p.cfg.Partition, func() (Progress, error) {
				return Progress{Kind: ProgressSuccess, EventID: raw.ID}, nil
			})
			backoff.Reset()
			return giveUp
		}

		select {
		case <-ctx.Done():
			return newInterrupted("handleWithRetry", ctx.Err())
		case <-time.After(delay):
		}
	}
}

// processOne determines partition relevance, upcasts and deserializes
// raw, and dispatches each of its 0..n upcasted results (spec §4.4/§4.8) to
// every matching Event Handler in declared order.
func (p *Processor) processOne(ctx context.Context, raw Event) (Progress, error) {
	skip := func() (Progress, error) { return Progress{Kind: ProgressSuccess, EventID: raw.ID}, nil }

	if p.cfg.Sequence.IsRawMode() {
		seq := p.cfg.Sequence.FromRaw(raw)
		if PartitionKeyResolver(seq, p.cfg.ActivePartitions) != p.cfg.Partition {
			return skip()
		}
	}

	upcasted, err := p.repo.upcast(raw)
	if err != nil {
		return Progress{}, err
	}

	for _, u := range upcasted {
		out, err := p.repo.resolver.NewPayload(u.TypeString)
		if err != nil {
			return Progress{}, err
		}
		ed, err := DeserializeEventData(u.Data, out)
		if err != nil {
			return Progress{}, err
		}

		if !p.cfg.Sequence.IsRawMode() {
			seq := p.cfg.Sequence.FromObject(ed.Payload, ed.MetaData, raw)
			if PartitionKeyResolver(seq, p.cfg.ActivePartitions) != p.cfg.Partition {
				continue
			}
		}

		for _, h := range p.cfg.Handlers {
			matches := h.Matches
			if matches == nil {
				eventType := h.EventType
				matches = func(t string) bool { return eventType == "" || t == eventType }
			}
			if !matches(u.TypeString) {
				continue
			}
			if err := h.Handler(ctx, ed.Payload, ed.MetaData, raw); err != nil {
				return Progress{}, err
			}
		}
	}
	return Progress{Kind: ProgressSuccess, EventID: raw.ID}, nil
}
