package metadata

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsortedInput is returned by GroupBy when a key reappears after a
// different key, which means the input was not sorted by the grouping key.
var ErrUnsortedInput = errors.New("records are not sorted by group key")

// Groups is an insertion-ordered mapping from group key to records.
type Groups[T any] struct {
	keys  []string
	items map[string][]T
}

// GroupBy groups records by the "."-joined values returned by key.
// Key order and record order inside each group follow the input.
// The input must already be sorted by the same key.
func GroupBy[T any](records []T, key func(T) []string) (*Groups[T], error) {
	g := &Groups[T]{items: make(map[string][]T)}

	current := ""
	for i, rec := range records {
		k := strings.Join(key(rec), ".")
		if i == 0 || k != current {
			if _, seen := g.items[k]; seen {
				return nil, fmt.Errorf("%w: key %q appears again at record %d", ErrUnsortedInput, k, i)
			}
			g.keys = append(g.keys, k)
			current = k
		}
		g.items[k] = append(g.items[k], rec)
	}

	return g, nil
}

// Keys returns the group keys in first-seen order.
func (g *Groups[T]) Keys() []string {
	out := make([]string, len(g.keys))
	copy(out, g.keys)
	return out
}

// Get returns the records of key, or nil.
func (g *Groups[T]) Get(key string) []T {
	return g.items[key]
}

// Has reports whether key is a group.
func (g *Groups[T]) Has(key string) bool {
	_, ok := g.items[key]
	return ok
}

// Len returns the number of groups.
func (g *Groups[T]) Len() int {
	return len(g.keys)
}

// Each calls fn for every group in order.
func (g *Groups[T]) Each(fn func(key string, records []T)) {
	for _, k := range g.keys {
		fn(k, g.items[k])
	}
}

// ByGroupName keys a transition by its group name.
func ByGroupName(t Transition) []string {
	return []string{t.GroupName}
}

// ByTargetGroup keys a transition by target entity and group name.
func ByTargetGroup(t Transition) []string {
	return []string{t.TargetEntity, t.GroupName}
}

// ByEntity keys a table column by kind and entity name.
func ByEntity(c TableColumn) []string {
	return []string{string(c.EntityKind), c.EntityName}
}
