package escore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControllerContextManagedStartStop(t *testing.T) {
	client := newFakeClient()
	resolver := NewExplicitTypeResolver(map[string]any{"BookAdded": bookAdded{}})
	repo := NewEventRepository(client, resolver, nil)
	progress := NewInMemoryProgressTracker()

	p := NewProcessor(repo, progress, ProcessorConfig{
		Group: "g", Partition: 0, ActivePartitions: 1,
		Subject: "/book/1", Sequence: NoneSequenceResolver(),
		Handlers:   []EventHandlerDef{},
		NewBackOff: func() BackOff { return NewNoneBackOff() },
	}, testLogger())

	ctrl := NewContextManagedController(testLogger())
	ctx := context.Background()
	ctrl.Start(ctx, []ManagedProcessor{{Name: "p1", Processor: p, AutoStart: true}})
	time.Sleep(20 * time.Millisecond)
	ctrl.Stop()
}

func TestControllerSkipsProcessorsWithAutoStartFalse(t *testing.T) {
	client := newFakeClient()
	resolver := NewExplicitTypeResolver(map[string]any{"BookAdded": bookAdded{}})
	repo := NewEventRepository(client, resolver, nil)
	progress := NewInMemoryProgressTracker()

	p := NewProcessor(repo, progress, ProcessorConfig{
		Group: "g", Partition: 0, ActivePartitions: 1,
		Subject: "/book/1", Sequence: NoneSequenceResolver(),
		NewBackOff: func() BackOff { return NewNoneBackOff() },
	}, testLogger())

	ctrl := NewContextManagedController(testLogger())
	ctrl.Start(context.Background(), []ManagedProcessor{{Name: "p1", Processor: p, AutoStart: false}})
	ctrl.Stop() // must return promptly: nothing was started
}

type fakeLockRegistry struct {
	grants chan struct{}
}

func (f *fakeLockRegistry) Acquire(ctx context.Context, name string) (<-chan struct{}, func(), error) {
	ch := make(chan struct{}, 1)
	ch <- struct{}{}
	return ch, func() {}, nil
}

func TestControllerLeaderElectionStartStop(t *testing.T) {
	client := newFakeClient()
	resolver := NewExplicitTypeResolver(map[string]any{"BookAdded": bookAdded{}})
	repo := NewEventRepository(client, resolver, nil)
	progress := NewInMemoryProgressTracker()

	p := NewProcessor(repo, progress, ProcessorConfig{
		Group: "g", Partition: 0, ActivePartitions: 1,
		Subject: "/book/1", Sequence: NoneSequenceResolver(),
		NewBackOff: func() BackOff { return NewNoneBackOff() },
	}, testLogger())

	ctrl := NewLeaderElectionController(&fakeLockRegistry{}, testLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()
	ctrl.Start(ctx, []ManagedProcessor{{Name: "p1", Processor: p, LockHandle: "lock/p1"}})
	time.Sleep(60 * time.Millisecond)
	ctrl.Stop()

	require.NotNil(t, ctrl)
	assert.True(t, true)
}
