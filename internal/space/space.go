package space

import (
	"fmt"
	"iter"
	"math"
	"slices"
	"strings"
)

// ConfigurationError lists every problem found while validating a space.
type ConfigurationError struct {
	Problems []string
}

func (e *ConfigurationError) Error() string {
	if len(e.Problems) == 1 {
		return "configuration error: " + e.Problems[0]
	}
	return fmt.Sprintf("configuration error: %d problems:\n  %s", len(e.Problems), strings.Join(e.Problems, "\n  "))
}

// Builder collects groups in declaration order. The first group added is
// the most significant digit of the enumeration, the last the least.
type Builder struct {
	groups []Group
}

func NewBuilder() *Builder { return &Builder{} }

// Add appends g.
func (b *Builder) Add(g Group) *Builder {
	b.groups = append(b.groups, g)
	return b
}

// Single is shorthand for Add(Single(name, values...)).
func (b *Builder) Single(name string, values ...Value) *Builder {
	return b.Add(Single(name, values...))
}

// Correlated is shorthand for Add(Correlated(names, tuples...)).
func (b *Builder) Correlated(names []string, tuples ...[]Value) *Builder {
	return b.Add(Correlated(names, tuples...))
}

// Build validates the groups and freezes them into a Space. The Builder may
// be reused afterwards without affecting the returned Space.
func (b *Builder) Build() (*Space, error) {
	var problems []string
	seen := make(map[string]string)
	total := 1
	overflow := false
	for _, g := range b.groups {
		problems = append(problems, g.validate()...)
		for _, n := range g.names {
			if prev, dup := seen[n]; dup {
				problems = append(problems, fmt.Sprintf("parameter %q declared in both %q and %q", n, prev, g.Key()))
				continue
			}
			seen[n] = g.Key()
		}
		if n := g.Len(); n > 0 && !overflow {
			if total > math.MaxInt/n {
				overflow = true
				problems = append(problems, "number of combinations overflows int")
			} else {
				total *= n
			}
		}
	}
	if len(problems) > 0 {
		return nil, &ConfigurationError{Problems: problems}
	}

	groups := make([]Group, len(b.groups))
	for i, g := range b.groups {
		groups[i] = Correlated(g.names, g.tuples...)
	}
	return &Space{groups: groups, total: total}, nil
}

// Space is a validated, immutable parameter space.
type Space struct {
	groups []Group
	total  int
}

// Groups returns the groups in declaration order.
func (s *Space) Groups() []Group { return slices.Clone(s.groups) }

// Bases returns each group's cardinality in declaration order.
func (s *Space) Bases() []int {
	bases := make([]int, len(s.groups))
	for i, g := range s.groups {
		bases[i] = g.Len()
	}
	return bases
}

// Len is the number of specifications, the product of all group sizes.
func (s *Space) Len() int { return s.total }

// Indices yields every index vector in mixed-radix order. The yielded slice
// is reused between iterations; clone it to keep it.
func (s *Space) Indices() iter.Seq[[]int] {
	bases := s.Bases()
	return func(yield func([]int) bool) {
		o := NewOdometer(bases)
		for {
			if !yield(o.Digits()) {
				return
			}
			if !o.Next() {
				return
			}
		}
	}
}

// Flags renders the specification selected by idx as sorted flags.
func (s *Space) Flags(idx []int) []string {
	var flags []string
	for i, g := range s.groups {
		flags = g.appendTokens(flags, idx[i])
	}
	slices.Sort(flags)
	return flags
}

// All lazily yields every specification as a sorted flag sequence. Each
// call restarts the enumeration from the first combination.
func (s *Space) All() iter.Seq[[]string] {
	return func(yield func([]string) bool) {
		for idx := range s.Indices() {
			if !yield(s.Flags(idx)) {
				return
			}
		}
	}
}
