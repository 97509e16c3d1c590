package graph

import (
	"fmt"
	"strings"
)

// NormalizeTag lowercases a tag and strips a leading '#', the wire
// invariant of section 6: "Normalized form is lowercase(strip_prefix('#',
// tag))."
func NormalizeTag(tag string) string {
	return strings.ToLower(strings.TrimPrefix(tag, "#"))
}

// ConceptID returns the deterministic concept node ID for a tag:
// concept:<lowercase(tag)> (section 3).
func ConceptID(tag string) string {
	return "concept:" + NormalizeTag(tag)
}

// ChainID returns the deterministic chain container ID:
// chain:<adapter_id>:<source> (section 3).
func ChainID(adapterID, source string) string {
	return fmt.Sprintf("chain:%s:%s", adapterID, source)
}

// MarkID returns the deterministic mark node ID:
// mark:<adapter_id>:<source>:<index> (section 3).
func MarkID(adapterID, source string, index int) string {
	return fmt.Sprintf("mark:%s:%s:%d", adapterID, source, index)
}
