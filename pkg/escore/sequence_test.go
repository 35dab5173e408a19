package escore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPerSubjectSequenceResolver(t *testing.T) {
	r := PerSubjectSequenceResolver()
	assert.True(t, r.IsRawMode())
	assert.Equal(t, "/book/1", r.FromRaw(Event{Subject: "/book/1"}))
}

func TestPerNLevelSubjectSequenceResolver(t *testing.T) {
	r := PerNLevelSubjectSequenceResolver(2)
	assert.Equal(t, "/library/branch-a", r.FromRaw(Event{Subject: "/library/branch-a/shelf-3/book-9"}))
}

func TestPerNLevelSubjectSequenceResolverShortSubject(t *testing.T) {
	r := PerNLevelSubjectSequenceResolver(5)
	assert.Equal(t, "/a/b", r.FromRaw(Event{Subject: "/a/b"}))
}

func TestNoneSequenceResolverUsesEventID(t *testing.T) {
	r := NoneSequenceResolver()
	assert.Equal(t, "evt-1", r.FromRaw(Event{ID: "evt-1"}))
}

func TestPartitionKeyResolverIsDeterministic(t *testing.T) {
	p1 := PartitionKeyResolver("/book/1", 8)
	p2 := PartitionKeyResolver("/book/1", 8)
	assert.Equal(t, p1, p2)
	assert.GreaterOrEqual(t, p1, 0)
	assert.Less(t, p1, 8)
}

func TestPartitionKeyResolverSinglePartition(t *testing.T) {
	assert.Equal(t, 0, PartitionKeyResolver("anything", 1))
	assert.Equal(t, 0, PartitionKeyResolver("anything", 0))
}
