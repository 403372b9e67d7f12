// Package repair brings record file names back in line with the content
// hash of their headers.
//
// A record's name embeds the hash of its flags. When the hashing scheme
// changes, or a header is edited by hand, the embedded hash goes stale and
// the planner no longer recognizes the record. Dir recomputes every hash
// from the stored header and renames files whose names disagree.
package repair

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar/v4"

	"studyrun/internal/canon"
	"studyrun/internal/ctxlog"
	"studyrun/internal/record"
)

// Outcome is what happened to one file.
type Outcome int

const (
	Unchanged Outcome = iota
	Renamed
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Unchanged:
		return "unchanged"
	case Renamed:
		return "renamed"
	case Failed:
		return "error"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Code is the one-letter status used in listings: S, R or E.
func (o Outcome) Code() string {
	switch o {
	case Unchanged:
		return "S"
	case Renamed:
		return "R"
	default:
		return "E"
	}
}

// ErrTargetExists is reported when the corrected name is already taken.
var ErrTargetExists = errors.New("repair: target already exists")

// Result reports the outcome for one file.
type Result struct {
	Path    string
	NewPath string // set when Outcome is Renamed
	Outcome Outcome
	Err     error // set when Outcome is Failed
}

// Options configures a repair pass.
type Options struct {
	Scheme canon.Scheme
	// Exclude holds doublestar patterns, relative to the directory, of
	// files to leave alone entirely.
	Exclude []string
	// DryRun reports renames without performing them.
	DryRun bool
}

// Dir checks every regular file directly inside dir, in name order.
// Per-file problems are reported in the results and never stop the pass;
// the returned error is set only when dir itself cannot be read.
func Dir(ctx context.Context, dir string, opts Options) ([]Result, error) {
	logger := ctxlog.FromContext(ctx)
	scheme := opts.Scheme
	if scheme == "" {
		scheme = canon.DefaultScheme
	}
	for _, p := range opts.Exclude {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("repair: invalid exclude pattern %q", p)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("repair: read %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || excluded(opts.Exclude, e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	slices.Sort(names)

	results := make([]Result, 0, len(names))
	for _, name := range names {
		r := File(filepath.Join(dir, name), scheme, opts.DryRun)
		logger.Debug("Checked record.", "path", r.Path, "outcome", r.Outcome.String())
		results = append(results, r)
	}
	return results, nil
}

// File checks a single record and renames it if its embedded hash is stale.
func File(path string, scheme canon.Scheme, dryRun bool) Result {
	res := Result{Path: path}
	fail := func(err error) Result {
		res.Outcome, res.Err = Failed, err
		return res
	}

	name, err := record.ParseName(filepath.Base(path))
	if err != nil {
		return fail(err)
	}
	header, err := record.ReadHeader(path)
	if err != nil {
		return fail(err)
	}

	hash := scheme.Hash(header)
	if hash == name.Hash {
		res.Outcome = Unchanged
		return res
	}

	target := filepath.Join(filepath.Dir(path), name.WithHash(hash).String())
	if _, err := os.Lstat(target); err == nil {
		return fail(fmt.Errorf("%w: %s", ErrTargetExists, target))
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fail(err)
	}
	if !dryRun {
		if err := os.Rename(path, target); err != nil {
			return fail(err)
		}
	}
	res.Outcome, res.NewPath = Renamed, target
	return res
}

func excluded(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}

// Tally counts results by outcome.
func Tally(results []Result) map[Outcome]int {
	c := make(map[Outcome]int, 3)
	for _, r := range results {
		c[r.Outcome]++
	}
	return c
}
