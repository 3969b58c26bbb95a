package model

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Metadata is the flat attribute map attached to a source document. Values
// are restricted to strings, integers, floats and timestamps; nested
// structures are rejected so that metadata stays hashable and filterable.
type Metadata map[string]any

// Validate checks that every metadata value has a supported type.
func (m Metadata) Validate() error {
	for key, value := range m {
		switch value.(type) {
		case string, int, int32, int64, float32, float64, time.Time:
		default:
			return fmt.Errorf("metadata key %q has unsupported type %T", key, value)
		}
	}
	return nil
}

// CanonicalString renders the metadata as a deterministic key-sorted string.
// It is the hash input for source and chunk ids: the same metadata always
// produces the same string, and any change to a value produces a new one.
func (m Metadata) CanonicalString() string {
	if len(m) == 0 {
		return ""
	}
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, key := range keys {
		if i > 0 {
			sb.WriteString(";")
		}
		sb.WriteString(key)
		sb.WriteString("=")
		sb.WriteString(formatMetadataValue(m[key]))
	}
	return sb.String()
}

// Get returns the value for key along with whether it is present.
func (m Metadata) Get(key string) (any, bool) {
	v, ok := m[key]
	return v, ok
}

func formatMetadataValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", v)
	}
}
