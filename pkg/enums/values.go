// Package enums holds the closed string vocabularies stored in the database
// and exchanged over the API.
package enums

import (
	"fmt"
	"slices"
)

// valueSet is the declaration-ordered list of members of one enum type.
type valueSet[T ~string] struct {
	label  string
	values []T
}

func newValueSet[T ~string](label string, values ...T) valueSet[T] {
	return valueSet[T]{label: label, values: values}
}

func (s valueSet[T]) has(v T) bool {
	return slices.Contains(s.values, v)
}

// parse is exact and case-sensitive; callers normalise input first.
func (s valueSet[T]) parse(raw string) (T, error) {
	if v := T(raw); s.has(v) {
		return v, nil
	}
	return "", fmt.Errorf("invalid %s %q", s.label, raw)
}

func (s valueSet[T]) all() []T {
	return slices.Clone(s.values)
}
