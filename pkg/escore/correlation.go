package escore

import (
	"strings"

	"go.jetify.com/typeid"
)

// correlationMetaDataKey is the metadata key Send stamps onto every command
// that doesn't already carry one, so the events a single Send call
// publishes can be traced back to the command that caused them (the key
// reaches an event's metadata only where the handler's propagation mode
// forwards it).
const correlationMetaDataKey = "correlationId"

// ensureCorrelationID returns a copy of metaData with correlationMetaDataKey
// set to a freshly generated, sortable ID prefixed by commandType whenever
// metaData doesn't already carry one. The prefix/ID split mirrors the
// teacher's tag-based TypeID generation, applied here to commands instead
// of tags.
func ensureCorrelationID(metaData map[string]any, commandType string) map[string]any {
	merged := make(map[string]any, len(metaData)+1)
	for k, v := range metaData {
		merged[k] = v
	}
	if _, ok := merged[correlationMetaDataKey]; ok {
		return merged
	}

	prefix := sanitizeTypeIDPrefix(commandType)
	tid, err := typeid.WithPrefix(prefix)
	if err != nil {
		tid, _ = typeid.WithPrefix("cmd")
	}
	merged[correlationMetaDataKey] = tid.String()
	return merged
}

// sanitizeTypeIDPrefix lower-cases commandType and keeps only characters
// TypeID accepts in a prefix, truncated to fit comfortably alongside the
// 26-character suffix TypeID appends.
func sanitizeTypeIDPrefix(commandType string) string {
	if i := strings.LastIndexByte(commandType, '.'); i >= 0 {
		commandType = commandType[i+1:]
	}
	sanitized := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		case r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, commandType)
	for strings.Contains(sanitized, "__") {
		sanitized = strings.ReplaceAll(sanitized, "__", "_")
	}
	sanitized = strings.Trim(sanitized, "_")
	const maxPrefixLength = 63 - 26 - 1
	if len(sanitized) > maxPrefixLength {
		sanitized = sanitized[:maxPrefixLength]
	}
	if sanitized == "" {
		sanitized = "cmd"
	}
	return sanitized
}
