// Package domain contains the core types of the kiln content pipeline.
package domain

import (
	"strings"
)

// Parameter is one processor parameter declared on a content item.
type Parameter struct {
	Key   string
	Value string
}

// ParameterList is an ordered list of processor parameters.
// Keys are unique within a list.
type ParameterList []Parameter

// Get returns the value for the given key and whether it was present.
func (pl ParameterList) Get(key string) (string, bool) {
	for _, p := range pl {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// EquivalentTo reports whether two lists describe the same parameter set.
// Comparison is order-independent: both lists must have identical key sets
// and identical values per key. A parameter present at its default value is
// not special-cased; it still counts as a difference against a list that
// omits the key.
func (pl ParameterList) EquivalentTo(other ParameterList) bool {
	if len(pl) != len(other) {
		return false
	}
	for _, p := range pl {
		v, ok := other.Get(p.Key)
		if !ok || v != p.Value {
			return false
		}
	}
	return true
}

// String renders the list as a ";"-joined "key=value" string, the form used
// inside cache entries.
func (pl ParameterList) String() string {
	if len(pl) == 0 {
		return ""
	}
	parts := make([]string, len(pl))
	for i, p := range pl {
		parts[i] = p.Key + "=" + p.Value
	}
	return strings.Join(parts, ";")
}

// ParseParameters parses the "key=value;key=value" form produced by String.
func ParseParameters(s string) ParameterList {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ";")
	pl := make(ParameterList, 0, len(parts))
	for _, part := range parts {
		key, value, _ := strings.Cut(part, "=")
		pl = append(pl, Parameter{Key: key, Value: value})
	}
	return pl
}

// ContentItem is one source asset tracked by the project. It is immutable
// for the duration of a build.
type ContentItem struct {
	// Source is the asset path relative to the project root.
	Source string
	// Name is the logical item path used for outputs and the manifest.
	Name string
	// Type is the declared content-type name resolved via the stage registry.
	Type string
	// Params are the processor parameters declared for this item.
	Params ParameterList
}
