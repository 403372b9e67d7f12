// Package study manages a study directory.
//
// Directory layout:
//
//	<dir>/
//	    study.yaml | study.hcl   # settings and parameter space
//	    index.md                 # hash -> flags table (studyrun index)
//	    .studyrun.lock           # held while running or repairing
//	    <output>/                # records: <prefix>-<hash>-<sample>
package study

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"

	"studyrun/internal/canon"
	"studyrun/internal/runner"
	"studyrun/internal/space"
)

const (
	YAMLFile  = "study.yaml"
	HCLFile   = "study.hcl"
	IndexFile = "index.md"
	LockFile  = ".studyrun.lock"
)

// Defaults applied to settings a study file leaves out.
const (
	DefaultPrefix  = "exp"
	DefaultSamples = 1
	DefaultRunner  = "./main"
	DefaultOutput  = "out"
)

// Settings are the scalar options of a study file.
type Settings struct {
	Prefix  string   `yaml:"prefix"`
	Samples int      `yaml:"samples"`
	Runner  string   `yaml:"runner"`
	Hash    string   `yaml:"hash"`
	Output  string   `yaml:"output"`
	Exclude []string `yaml:"exclude,omitempty"`
}

// applyDefaults fills zero fields and validates the result.
func (s *Settings) applyDefaults() error {
	if s.Prefix == "" {
		s.Prefix = DefaultPrefix
	}
	if s.Samples == 0 {
		s.Samples = DefaultSamples
	}
	if s.Runner == "" {
		s.Runner = DefaultRunner
	}
	if s.Output == "" {
		s.Output = DefaultOutput
	}
	scheme, err := canon.ParseScheme(s.Hash)
	if err != nil {
		return err
	}
	s.Hash = string(scheme)

	if err := checkPrefix(s.Prefix); err != nil {
		return err
	}
	if s.Samples < 0 {
		return fmt.Errorf("samples must be positive, got %d", s.Samples)
	}
	if out := filepath.Clean(s.Output); out == "." || out == ".." {
		return fmt.Errorf("output %q must be a subdirectory of the study", s.Output)
	}
	return nil
}

// Study is an opened study directory.
type Study struct {
	Dir      string
	File     string // path of the study file that was loaded
	Settings Settings
	Space    *space.Space
}

// Init creates dir with a study.yaml holding settings and an example
// parameter space. It errors if a study file already exists there.
func Init(dir string, settings Settings) error {
	if err := settings.applyDefaults(); err != nil {
		return fmt.Errorf("init: %w", err)
	}
	for _, name := range []string{YAMLFile, HCLFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return fmt.Errorf("study already exists at %s", dir)
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create study: %w", err)
	}
	head, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	data := append(head, exampleSpace...)
	if err := os.WriteFile(filepath.Join(dir, YAMLFile), data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", YAMLFile, err)
	}
	return nil
}

const exampleSpace = `
# Groups are enumerated in order; the last one varies fastest.
# A key listing several names declares correlated parameters whose
# values are given as tuples. null omits the flag, true/false render
# -name / -noname.
space:
  fit: ["parabola:30:0.25", "rastrigin:30:0.25"]
  n: "300000"
  "mtype,m0,bcog":
    - [linear, "0.8", null]
    - [constant, "0.72984", true]
`

// Open loads the study in dir from study.yaml or, failing that, study.hcl.
// The returned Study.Dir is absolute, so paths derived from it stay valid
// for a child process running in another working directory.
func Open(dir string) (*Study, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve study dir: %w", err)
	}
	for _, name := range []string{YAMLFile, HCLFile} {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		var (
			settings Settings
			sp       *space.Space
		)
		if name == YAMLFile {
			settings, sp, err = parseYAML(data)
		} else {
			settings, sp, err = parseHCL(data, path)
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if err := settings.applyDefaults(); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		return &Study{Dir: dir, File: path, Settings: settings, Space: sp}, nil
	}
	return nil, fmt.Errorf("no %s or %s in %s (run 'studyrun init %s' first)", YAMLFile, HCLFile, dir, dir)
}

// OutputDir is the absolute or study-relative directory holding records.
func (s *Study) OutputDir() string {
	if filepath.IsAbs(s.Settings.Output) {
		return s.Settings.Output
	}
	return filepath.Join(s.Dir, s.Settings.Output)
}

// Scheme is the hash scheme records are named with.
func (s *Study) Scheme() canon.Scheme { return canon.Scheme(s.Settings.Hash) }

// RunnerPath resolves the solver executable. A leading ~ expands to the
// home directory; relative paths containing a separator resolve against
// the study directory; bare names are left for a PATH lookup.
func (s *Study) RunnerPath() (string, error) {
	p, err := homedir.Expand(s.Settings.Runner)
	if err != nil {
		return "", fmt.Errorf("expand runner %q: %w", s.Settings.Runner, err)
	}
	if filepath.IsAbs(p) || !strings.ContainsRune(p, filepath.Separator) && !strings.ContainsRune(p, '/') {
		return p, nil
	}
	return filepath.Join(s.Dir, p), nil
}

// PlanOptions returns the planner options for this study.
func (s *Study) PlanOptions() runner.PlanOptions {
	return runner.PlanOptions{
		Dir:     s.OutputDir(),
		Prefix:  s.Settings.Prefix,
		Samples: s.Settings.Samples,
		Scheme:  s.Scheme(),
	}
}
