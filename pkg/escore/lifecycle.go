package escore

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// ManagedProcessor pairs a Processor with the autoStart flag from its
// configuration (spec §4.9 / §6 "lifeCycle.autoStart").
type ManagedProcessor struct {
	Name       string
	Processor  *Processor
	AutoStart  bool
	LockHandle string // used by leader-election mode; opaque to Controller
}

// LockRegistry is the external distributed-lock collaborator a
// leader-election Controller registers processors against. Acquire asks for
// the lock for name and returns a channel that receives once the lock is
// granted, plus a release function that yields it.
// This mirrors the store-external-collaborator boundary named in spec §1
// ("the dependency-injection container wiring handlers" and similar
// concerns are out of core scope) — only the interface lives in the core.
type LockRegistry interface {
	Acquire(ctx context.Context, name string) (acquired <-chan struct{}, release func(), err error)
}

// Controller runs a set of ManagedProcessors under either of spec §4.9's
// two life-cycle modes.
type Controller struct {
	log   zerolog.Logger
	locks LockRegistry // nil in context-managed mode

	mu        sync.Mutex
	cancelFns map[string]context.CancelFunc
	wg        sync.WaitGroup
}

// NewContextManagedController builds a Controller that starts/stops
// processors directly alongside the host's own lifecycle.
func NewContextManagedController(log zerolog.Logger) *Controller {
	return &Controller{log: log, cancelFns: map[string]context.CancelFunc{}}
}

// NewLeaderElectionController builds a Controller that defers start/stop
// of each processor to leadership grants/revocations from locks.
func NewLeaderElectionController(locks LockRegistry, log zerolog.Logger) *Controller {
	return &Controller{log: log, locks: locks, cancelFns: map[string]context.CancelFunc{}}
}

// Start begins running every processor in procs whose AutoStart is true
// (context-managed mode) or registers every processor against its lock
// (leader-election mode, where actually running is deferred to the lock
// being granted).
func (c *Controller) Start(ctx context.Context, procs []ManagedProcessor) {
	for _, mp := range procs {
		mp := mp
		if c.locks == nil {
			if mp.AutoStart {
				c.runProcessor(ctx, mp)
			}
			continue
		}
		c.wg.Add(1)
		go c.runUnderLeaderElection(ctx, mp)
	}
}

// StartOne starts a single processor outside the batch Start call, for
// callers (or tests) that manage processors individually. It respects
// context-managed vs leader-election mode the same way Start does.
func (c *Controller) StartOne(ctx context.Context, mp ManagedProcessor) {
	if c.locks == nil {
		c.runProcessor(ctx, mp)
		return
	}
	c.wg.Add(1)
	go c.runUnderLeaderElection(ctx, mp)
}

func (c *Controller) runProcessor(ctx context.Context, mp ManagedProcessor) {
	runCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancelFns[mp.Name] = cancel
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := mp.Processor.Run(runCtx); err != nil && !IsInterrupted(err) {
			c.log.Error().Err(err).Str("processor", mp.Name).Msg("processor terminated")
		}
	}()
}

// runUnderLeaderElection loops acquiring and releasing mp's lock for as
// long as ctx is alive, running the processor only while leadership is
// held and yielding it (so another candidate may take over) as soon as the
// processing loop returns for any reason, per spec §4.9.
func (c *Controller) runUnderLeaderElection(ctx context.Context, mp ManagedProcessor) {
	defer c.wg.Done()
	ctx, stop := context.WithCancel(ctx)
	defer stop()
	c.mu.Lock()
	c.cancelFns[mp.Name] = stop
	c.mu.Unlock()
	for ctx.Err() == nil {
		acquired, release, err := c.locks.Acquire(ctx, mp.LockHandle)
		if err != nil {
			c.log.Error().Err(err).Str("processor", mp.Name).Msg("lock acquisition failed")
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-acquired:
		}

		if err := mp.Processor.Run(ctx); err != nil && !IsInterrupted(err) {
			c.log.Error().Err(err).Str("processor", mp.Name).Msg("processor terminated, yielding leadership")
		}
		release()
	}
}

// Stop cancels every running processor and waits for them to return.
func (c *Controller) Stop() {
	c.mu.Lock()
	for _, cancel := range c.cancelFns {
		cancel()
	}
	c.mu.Unlock()
	c.wg.Wait()
}
