package runner

import (
	"context"
	"fmt"
	"path/filepath"

	"studyrun/internal/canon"
	"studyrun/internal/ctxlog"
	"studyrun/internal/record"
	"studyrun/internal/space"
)

// Job is one (specification, sample) pair and the state of its record.
type Job struct {
	Name  record.Name
	Path  string
	Flags []string
	State record.State
}

// Pending reports whether the job must be executed.
func (j Job) Pending() bool { return j.State != record.Skip }

// PlanOptions controls where records live and how they are named.
type PlanOptions struct {
	Dir     string
	Prefix  string
	Samples int
	Scheme  canon.Scheme
}

// Plan lists every job of a study in execution order: sample-major, then
// specification in enumeration order.
type Plan struct {
	Jobs []Job
}

// Total is the number of jobs, completed or not.
func (p *Plan) Total() int { return len(p.Jobs) }

// Pending returns the jobs that must run, in order.
func (p *Plan) Pending() []Job {
	var out []Job
	for _, j := range p.Jobs {
		if j.Pending() {
			out = append(out, j)
		}
	}
	return out
}

// Counts tallies jobs by state.
func (p *Plan) Counts() map[record.State]int {
	c := make(map[record.State]int, 3)
	for _, j := range p.Jobs {
		c[j.State]++
	}
	return c
}

// NewPlan classifies every job of sp. A record that cannot be inspected
// aborts planning; nothing has been executed at that point.
func NewPlan(ctx context.Context, sp *space.Space, opts PlanOptions) (*Plan, error) {
	logger := ctxlog.FromContext(ctx)
	if opts.Samples < 0 {
		return nil, fmt.Errorf("plan: negative sample count %d", opts.Samples)
	}
	scheme := opts.Scheme
	if scheme == "" {
		scheme = canon.DefaultScheme
	}

	plan := &Plan{}
	for sample := range opts.Samples {
		for flags := range sp.All() {
			name := record.Name{Prefix: opts.Prefix, Hash: scheme.HashTokens(flags), Sample: sample}
			path := filepath.Join(opts.Dir, name.String())
			state, err := record.Detect(path)
			if err != nil {
				return nil, fmt.Errorf("plan: %w", err)
			}
			plan.Jobs = append(plan.Jobs, Job{Name: name, Path: path, Flags: flags, State: state})
		}
	}
	logger.Debug("Plan built.", "total", plan.Total(), "pending", len(plan.Pending()))
	return plan, nil
}
