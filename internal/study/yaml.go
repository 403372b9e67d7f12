package study

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"studyrun/internal/space"
)

// yamlFile mirrors study.yaml. The space is kept as a node so that the
// declaration order of its keys survives decoding.
type yamlFile struct {
	Settings `yaml:",inline"`
	Space    yaml.Node `yaml:"space"`
}

func parseYAML(data []byte) (Settings, *space.Space, error) {
	var f yamlFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Settings{}, nil, err
	}
	sp, err := decodeYAMLSpace(&f.Space)
	if err != nil {
		return Settings{}, nil, err
	}
	return f.Settings, sp, nil
}

// decodeYAMLSpace turns the space mapping into groups. Keys name the
// parameters of a group, either as "a,b,c" or as a YAML sequence key.
// A non-sequence value is a single-value group; in a single-name group a
// scalar element is a 1-tuple.
func decodeYAMLSpace(n *yaml.Node) (*space.Space, error) {
	b := space.NewBuilder()
	if n.Kind == 0 || n.Kind == yaml.ScalarNode && n.ShortTag() == "!!null" {
		return b.Build()
	}
	if n.Kind != yaml.MappingNode {
		return nil, &space.ConfigurationError{Problems: []string{
			fmt.Sprintf("line %d: space must be a mapping of parameter names to values", n.Line),
		}}
	}

	var problems []string
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]
		names, err := yamlNames(key)
		if err != nil {
			problems = append(problems, err.Error())
			continue
		}

		elems := []*yaml.Node{val}
		if val.Kind == yaml.SequenceNode {
			elems = val.Content
		}
		tuples := make([][]space.Value, 0, len(elems))
		for _, e := range elems {
			t, err := yamlTuple(e, len(names))
			if err != nil {
				problems = append(problems, fmt.Sprintf("group %q: %v", strings.Join(names, ","), err))
				continue
			}
			tuples = append(tuples, t)
		}
		b.Correlated(names, tuples...)
	}
	if len(problems) > 0 {
		return nil, &space.ConfigurationError{Problems: problems}
	}
	return b.Build()
}

func yamlNames(key *yaml.Node) ([]string, error) {
	switch key.Kind {
	case yaml.ScalarNode:
		names := strings.Split(key.Value, ",")
		for i := range names {
			names[i] = strings.TrimSpace(names[i])
		}
		return names, nil
	case yaml.SequenceNode:
		names := make([]string, len(key.Content))
		for i, c := range key.Content {
			if c.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: parameter names must be scalars", c.Line)
			}
			names[i] = c.Value
		}
		return names, nil
	default:
		return nil, fmt.Errorf("line %d: unsupported group key", key.Line)
	}
}

func yamlTuple(e *yaml.Node, arity int) ([]space.Value, error) {
	if e.Kind == yaml.SequenceNode && (arity > 1 || len(e.Content) == 1) {
		t := make([]space.Value, len(e.Content))
		for i, c := range e.Content {
			v, err := yamlValue(c)
			if err != nil {
				return nil, err
			}
			t[i] = v
		}
		return t, nil
	}
	v, err := yamlValue(e)
	if err != nil {
		return nil, err
	}
	return []space.Value{v}, nil
}

// yamlValue converts a scalar. Numbers keep the text they were written
// with, so 1.0 renders as -name=1.0.
func yamlValue(n *yaml.Node) (space.Value, error) {
	if n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	if n.Kind != yaml.ScalarNode {
		return space.Value{}, fmt.Errorf("line %d: expected a scalar value", n.Line)
	}
	switch n.ShortTag() {
	case "!!null":
		return space.Default(), nil
	case "!!bool":
		b, err := strconv.ParseBool(strings.ToLower(n.Value))
		if err != nil {
			return space.Value{}, fmt.Errorf("line %d: bad boolean %q", n.Line, n.Value)
		}
		return space.Bool(b), nil
	default:
		return space.Text(n.Value), nil
	}
}
