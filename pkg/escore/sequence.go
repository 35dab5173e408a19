package escore

import (
	"hash/fnv"
	"strings"
)

// SequenceResolver computes a sequence identifier used to route an event
// to a partition (spec §4.8). A resolver is either raw-mode (computes from
// the raw Event alone, so relevance can be decided before upcast/decode)
// or object-mode (needs the deserialized payload and metadata).
type SequenceResolver struct {
	// FromRaw is set for raw-mode resolvers.
	FromRaw func(raw Event) string
	// FromObject is set for object-mode resolvers; relevance is deferred
	// until after upcast+deserialize.
	FromObject func(payload any, metaData map[string]any, raw Event) string
}

// IsRawMode reports whether relevance can be decided before upcast/decode.
func (r SequenceResolver) IsRawMode() bool { return r.FromRaw != nil }

// PerSubjectSequenceResolver uses the full event subject as the sequence
// id, so every event on the same subject lands in the same partition.
func PerSubjectSequenceResolver() SequenceResolver {
	return SequenceResolver{FromRaw: func(raw Event) string { return raw.Subject }}
}

// PerNLevelSubjectSequenceResolver reduces a hierarchical subject like
// "/a/b/c/d" to its first n levels ("/a/b" for n=2), so every event under
// the same n-level prefix has the same sequence id and lands in the same
// partition.
func PerNLevelSubjectSequenceResolver(n int) SequenceResolver {
	return SequenceResolver{FromRaw: func(raw Event) string {
		return firstNLevels(raw.Subject, n)
	}}
}

func firstNLevels(subject string, n int) string {
	if n <= 0 {
		return ""
	}
	parts := strings.Split(strings.Trim(subject, "/"), "/")
	if len(parts) > n {
		parts = parts[:n]
	}
	return "/" + strings.Join(parts, "/")
}

// NoneSequenceResolver uses the event's own id as the sequence id,
// implying full parallelism (every event is its own sequence).
func NoneSequenceResolver() SequenceResolver {
	return SequenceResolver{FromRaw: func(raw Event) string { return raw.ID }}
}

// PartitionKeyResolver deterministically maps a sequence id to a partition
// number in [0, activePartitions) via a stable checksum modulo (spec
// §4.8). FNV-1a is used for the checksum: fast, dependency-free, and
// sufficiently uniform for routing rather than security purposes.
func PartitionKeyResolver(sequenceID string, activePartitions int) int {
	if activePartitions <= 1 {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(sequenceID))
	return int(h.Sum32() % uint32(activePartitions))
}
