// Package space models the parameter space of a study.
//
// A Space is an ordered list of groups. Each group names one or more
// parameters that vary together and lists the value tuples they take. The
// space enumerates every combination of one tuple per group, rendering each
// combination as a sorted sequence of command-line flags:
//
//	Text("x")  -> -name=x
//	Bool(true) -> -name
//	Bool(false)-> -noname
//	Default()  -> (omitted, the solver's default applies)
package space

import (
	"fmt"
	"strings"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindDefault Kind = iota
	KindText
	KindBool
)

// Value is a single parameter setting.
type Value struct {
	kind Kind
	text string
	on   bool
}

// Text returns a value rendered as -name=s.
func Text(s string) Value { return Value{kind: KindText, text: s} }

// Bool returns a value rendered as -name or -noname.
func Bool(b bool) Value { return Value{kind: KindBool, on: b} }

// Default returns a value that omits the flag entirely.
func Default() Value { return Value{kind: KindDefault} }

// Texts wraps each string with Text.
func Texts(ss ...string) []Value {
	vs := make([]Value, len(ss))
	for i, s := range ss {
		vs[i] = Text(s)
	}
	return vs
}

func (v Value) Kind() Kind { return v.kind }

// Token renders the flag for name. ok is false for Default values.
func (v Value) Token(name string) (tok string, ok bool) {
	switch v.kind {
	case KindText:
		return "-" + name + "=" + v.text, true
	case KindBool:
		if v.on {
			return "-" + name, true
		}
		return "-no" + name, true
	default:
		return "", false
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindText:
		return v.text
	case KindBool:
		if v.on {
			return "true"
		}
		return "false"
	default:
		return "default"
	}
}

// Group is a set of correlated parameters enumerated together. Build
// groups with Single or Correlated; the zero Group is invalid.
type Group struct {
	names  []string
	tuples [][]Value
}

// Single declares a one-parameter group. Each value becomes a 1-tuple.
func Single(name string, values ...Value) Group {
	tuples := make([][]Value, len(values))
	for i, v := range values {
		tuples[i] = []Value{v}
	}
	return Group{names: []string{name}, tuples: tuples}
}

// Correlated declares a group whose parameters always vary together. Every
// tuple must have len(names) elements; Build reports violations.
func Correlated(names []string, tuples ...[]Value) Group {
	g := Group{
		names:  append([]string(nil), names...),
		tuples: make([][]Value, len(tuples)),
	}
	for i, t := range tuples {
		g.tuples[i] = append([]Value(nil), t...)
	}
	return g
}

// Names returns a copy of the group's parameter names.
func (g Group) Names() []string { return append([]string(nil), g.names...) }

// Len is the number of tuples, the group's digit base during enumeration.
func (g Group) Len() int { return len(g.tuples) }

// Arity is the number of parameters in the group.
func (g Group) Arity() int { return len(g.names) }

// Tuple returns a copy of the i-th value tuple.
func (g Group) Tuple(i int) []Value { return append([]Value(nil), g.tuples[i]...) }

// Key is a display name for the group, e.g. "fit" or "mtype,ttype".
func (g Group) Key() string { return strings.Join(g.names, ",") }

// appendTokens renders tuple i and appends the non-default flags to dst.
func (g Group) appendTokens(dst []string, i int) []string {
	for j, name := range g.names {
		if tok, ok := g.tuples[i][j].Token(name); ok {
			dst = append(dst, tok)
		}
	}
	return dst
}

func (g Group) validate() []string {
	var problems []string
	key := g.Key()
	if len(g.names) == 0 {
		problems = append(problems, "group has no parameter names")
	}
	for _, n := range g.names {
		if n == "" || strings.ContainsAny(n, " \t\r\n=") {
			problems = append(problems, fmt.Sprintf("group %q: invalid parameter name %q", key, n))
		}
	}
	if len(g.tuples) == 0 {
		problems = append(problems, fmt.Sprintf("group %q: empty value list", key))
	}
	for i, t := range g.tuples {
		if len(t) != len(g.names) {
			problems = append(problems, fmt.Sprintf("group %q: value %d has %d element(s), want %d", key, i, len(t), len(g.names)))
		}
	}
	return problems
}
