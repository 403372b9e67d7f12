package study

import (
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"studyrun/internal/space"
)

// hclFile mirrors study.hcl:
//
//	prefix  = "exp"
//	samples = 20
//	runner  = "~/bin/pso"
//
//	group {
//	  name   = "fit"
//	  values = ["parabola:30:0.25", "rastrigin:30:0.25"]
//	}
//	group {
//	  names  = ["mtype", "m0", "bcog"]
//	  values = [["linear", "0.8", null], ["constant", "0.72984", true]]
//	}
//
// Numbers are rendered in their shortest decimal form; quote them to keep
// a particular spelling such as "1.0".
type hclFile struct {
	Prefix  *string    `hcl:"prefix,optional"`
	Samples *int       `hcl:"samples,optional"`
	Runner  *string    `hcl:"runner,optional"`
	Hash    *string    `hcl:"hash,optional"`
	Output  *string    `hcl:"output,optional"`
	Exclude []string   `hcl:"exclude,optional"`
	Groups  []hclGroup `hcl:"group,block"`
}

type hclGroup struct {
	Name   *string        `hcl:"name,optional"`
	Names  []string       `hcl:"names,optional"`
	Values hcl.Expression `hcl:"values,attr"`
}

func parseHCL(data []byte, filename string) (Settings, *space.Space, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return Settings{}, nil, diags
	}
	var f hclFile
	if diags := gohcl.DecodeBody(file.Body, nil, &f); diags.HasErrors() {
		return Settings{}, nil, diags
	}

	var s Settings
	if f.Prefix != nil {
		s.Prefix = *f.Prefix
	}
	if f.Samples != nil {
		s.Samples = *f.Samples
	}
	if f.Runner != nil {
		s.Runner = *f.Runner
	}
	if f.Hash != nil {
		s.Hash = *f.Hash
	}
	if f.Output != nil {
		s.Output = *f.Output
	}
	s.Exclude = f.Exclude

	sp, err := decodeHCLSpace(f.Groups)
	if err != nil {
		return Settings{}, nil, err
	}
	return s, sp, nil
}

func decodeHCLSpace(groups []hclGroup) (*space.Space, error) {
	b := space.NewBuilder()
	var problems []string
	for i, g := range groups {
		names := g.Names
		switch {
		case g.Name != nil && len(g.Names) > 0:
			problems = append(problems, fmt.Sprintf("group %d: set either name or names, not both", i))
			continue
		case g.Name != nil:
			names = []string{*g.Name}
		case len(names) == 0:
			problems = append(problems, fmt.Sprintf("group %d: missing name or names", i))
			continue
		}
		key := strings.Join(names, ",")

		val, diags := g.Values.Value(nil)
		if diags.HasErrors() {
			problems = append(problems, fmt.Sprintf("group %q: %s", key, diags.Error()))
			continue
		}
		elems := []cty.Value{val}
		if isSequence(val) {
			elems = val.AsValueSlice()
		}
		tuples := make([][]space.Value, 0, len(elems))
		for _, e := range elems {
			t, err := ctyTuple(e, len(names))
			if err != nil {
				problems = append(problems, fmt.Sprintf("group %q: %v", key, err))
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

func isSequence(v cty.Value) bool {
	if v.IsNull() || !v.IsKnown() {
		return false
	}
	ty := v.Type()
	return ty.IsTupleType() || ty.IsListType() || ty.IsSetType()
}

func ctyTuple(e cty.Value, arity int) ([]space.Value, error) {
	if isSequence(e) && (arity > 1 || e.LengthInt() == 1) {
		elems := e.AsValueSlice()
		t := make([]space.Value, len(elems))
		for i, c := range elems {
			v, err := ctyValue(c)
			if err != nil {
				return nil, err
			}
			t[i] = v
		}
		return t, nil
	}
	v, err := ctyValue(e)
	if err != nil {
		return nil, err
	}
	return []space.Value{v}, nil
}

func ctyValue(v cty.Value) (space.Value, error) {
	if !v.IsKnown() {
		return space.Value{}, fmt.Errorf("value is not known")
	}
	if v.IsNull() {
		return space.Default(), nil
	}
	switch v.Type() {
	case cty.String:
		return space.Text(v.AsString()), nil
	case cty.Bool:
		return space.Bool(v.True()), nil
	case cty.Number:
		return space.Text(v.AsBigFloat().Text('f', -1)), nil
	default:
		return space.Value{}, fmt.Errorf("unsupported value of type %s", v.Type().FriendlyName())
	}
}
