package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"studyrun/internal/record"
	"studyrun/internal/study"
)

// TestMain turns the test binary into a stand-in solver when asked to, so
// the end-to-end tests have a real child process to spawn.
func TestMain(m *testing.M) {
	if os.Getenv("STUDYRUN_CLI_SOLVER") == "1" {
		fmt.Printf("args %s\n", strings.Join(os.Args[1:], " "))
		os.Exit(0)
	}
	os.Exit(m.Run())
}

// helpText calls the help function and returns the output as a string.
func helpText() string {
	var sb strings.Builder
	printUsage(&sb)
	return sb.String()
}

func longHelpText(name string) string {
	var sb strings.Builder
	printCommandHelp(&sb, name)
	return sb.String()
}

// capture redirects command output for the duration of the test.
func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := stdout
	stdout = &buf
	t.Cleanup(func() { stdout = prev })
	return &buf
}

func TestHelpContainsAllCommands(t *testing.T) {
	help := helpText()
	for _, cmd := range commands {
		if !strings.Contains(help, cmd.name) {
			t.Errorf("help output missing command %q", cmd.name)
		}
		if !strings.Contains(help, cmd.short) {
			t.Errorf("help output missing short description for %q", cmd.short)
		}
	}
	if !strings.Contains(help, "Usage:") {
		t.Error("help output missing 'Usage:' header")
	}
}

func TestLongHelpForKnownCommands(t *testing.T) {
	for _, cmd := range commands {
		t.Run(cmd.name, func(t *testing.T) {
			out := longHelpText(cmd.name)
			if !strings.Contains(out, cmd.usage) {
				t.Errorf("long help for %q missing usage line %q\ngot: %s", cmd.name, cmd.usage, out)
			}
		})
	}
}

func TestLongHelpUnknownCommand(t *testing.T) {
	out := longHelpText("no-such-command")
	if !strings.Contains(out, "unknown") {
		t.Errorf("expected unknown-command message, got: %s", out)
	}
}

func TestNoArgsPrintsHelp(t *testing.T) {
	for _, args := range [][]string{nil, {"-h"}, {"--help"}, {"help"}} {
		buf := capture(t)
		if err := dispatch(args); err != nil {
			t.Fatalf("dispatch(%v): %v", args, err)
		}
		if !strings.Contains(buf.String(), "Commands:") {
			t.Errorf("dispatch(%v) did not print usage: %s", args, buf)
		}
	}
}

func TestUnknownCommand(t *testing.T) {
	err := dispatch([]string{"frobnicate"})
	if err == nil || !strings.Contains(err.Error(), "frobnicate") {
		t.Fatalf("expected unknown command error, got %v", err)
	}
}

func TestBadArgsPrintUsage(t *testing.T) {
	for _, cmd := range commands {
		t.Run(cmd.name, func(t *testing.T) {
			err := dispatch([]string{cmd.name})
			if err == nil {
				t.Fatal("expected error for missing directory")
			}
			if !strings.Contains(err.Error(), cmd.usage) {
				t.Errorf("error %q missing usage line %q", err, cmd.usage)
			}
		})
	}
	if err := dispatch([]string{"run", "-bogus", "x"}); err == nil {
		t.Error("expected error for unknown flag")
	}
}

func TestInitDefaults(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "s")
	buf := capture(t)
	if err := dispatch([]string{"init", "-y", dir}); err != nil {
		t.Fatalf("init: %v", err)
	}
	if !strings.Contains(buf.String(), study.YAMLFile) {
		t.Errorf("unexpected output: %s", buf)
	}
	if err := dispatch([]string{"init", "-y", dir}); err == nil {
		t.Error("expected error initialising an existing study")
	}
}

// newStudy writes a two-configuration, two-sample study whose solver is
// this test binary.
func newStudy(t *testing.T) string {
	t.Helper()
	exe, err := os.Executable()
	if err != nil {
		t.Fatal(err)
	}
	t.Setenv("STUDYRUN_CLI_SOLVER", "1")
	dir := t.TempDir()
	cfg := fmt.Sprintf("runner: %q\nsamples: 2\nspace:\n  fit: [parabola, rastrigin]\n  bcog: true\n", exe)
	if err := os.WriteFile(filepath.Join(dir, study.YAMLFile), []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestRunEndToEnd(t *testing.T) {
	dir := newStudy(t)

	buf := capture(t)
	if err := dispatch([]string{"plan", dir}); err != nil {
		t.Fatalf("plan: %v", err)
	}
	if got := strings.Count(buf.String(), "\nA "); got != 3 || !strings.HasPrefix(buf.String(), "A ") {
		t.Errorf("plan should list 4 missing records:\n%s", buf)
	}
	if !strings.Contains(buf.String(), "RUNNING 4 of 4 experiments") {
		t.Errorf("plan missing summary:\n%s", buf)
	}
	if !strings.Contains(buf.String(), "Dry run") {
		t.Errorf("plan should not run anything:\n%s", buf)
	}

	buf.Reset()
	if err := dispatch([]string{"run", dir}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := strings.Count(buf.String(), "** Completed in"); got != 4 {
		t.Errorf("expected 4 completed runs, got %d:\n%s", got, buf)
	}
	if !strings.Contains(buf.String(), "RUNNING 4/4") {
		t.Errorf("missing progress line:\n%s", buf)
	}

	files, err := filepath.Glob(filepath.Join(dir, "out", "exp-*"))
	if err != nil || len(files) != 4 {
		t.Fatalf("expected 4 records, got %v (%v)", files, err)
	}
	for _, f := range files {
		st, err := record.Detect(f)
		if err != nil || st != record.Skip {
			t.Errorf("%s: state %v, err %v", f, st, err)
		}
		data, _ := os.ReadFile(f)
		if !strings.Contains(string(data), "args -bcog -fit=") {
			t.Errorf("%s: solver output missing:\n%s", f, data)
		}
	}

	// Second run has nothing to do.
	buf.Reset()
	if err := dispatch([]string{"run", dir}); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !strings.Contains(buf.String(), "RUNNING 0 of 4 experiments") {
		t.Errorf("second run should skip everything:\n%s", buf)
	}
}

func TestRepairAndIndex(t *testing.T) {
	dir := newStudy(t)
	capture(t)
	if err := dispatch([]string{"run", dir}); err != nil {
		t.Fatalf("run: %v", err)
	}

	files, _ := filepath.Glob(filepath.Join(dir, "out", "exp-*-00"))
	if len(files) == 0 {
		t.Fatal("no records")
	}
	stale := filepath.Join(dir, "out", "exp-0123abcd-07")
	if err := os.Rename(files[0], stale); err != nil {
		t.Fatal(err)
	}

	buf := capture(t)
	if err := dispatch([]string{"repair", "-n", dir}); err != nil {
		t.Fatalf("repair -n: %v", err)
	}
	if !strings.Contains(buf.String(), "R out/exp-0123abcd-07: =>") || !strings.Contains(buf.String(), "Dry run") {
		t.Errorf("dry run output:\n%s", buf)
	}
	if _, err := os.Stat(stale); err != nil {
		t.Fatalf("dry run must not rename: %v", err)
	}

	buf.Reset()
	if err := dispatch([]string{"repair", dir}); err != nil {
		t.Fatalf("repair: %v", err)
	}
	if !strings.Contains(buf.String(), "3 unchanged, 1 renamed, 0 errors") {
		t.Errorf("repair summary:\n%s", buf)
	}
	if _, err := os.Stat(stale); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("stale record still present: %v", err)
	}

	buf.Reset()
	if err := dispatch([]string{"index", dir}); err != nil {
		t.Fatalf("index: %v", err)
	}
	if !strings.Contains(buf.String(), "2 configurations") {
		t.Errorf("index output:\n%s", buf)
	}
	buf.Reset()
	if err := dispatch([]string{"index", dir}); err != nil {
		t.Fatalf("index again: %v", err)
	}
	if !strings.Contains(buf.String(), "up to date") {
		t.Errorf("second index should be a no-op:\n%s", buf)
	}
}

func TestRunRelativeStudyWithDefaultRunner(t *testing.T) {
	exe, err := os.Executable()
	if err != nil {
		t.Fatal(err)
	}
	t.Setenv("STUDYRUN_CLI_SOLVER", "1")
	root := t.TempDir()
	dir := filepath.Join(root, "s")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	// runner is left at its default, ./main inside the study.
	if err := os.Symlink(exe, filepath.Join(dir, "main")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, study.YAMLFile), []byte("space:\n  a: x\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Chdir(root)

	buf := capture(t)
	if err := dispatch([]string{"run", "s"}); err != nil {
		t.Fatalf("run: %v\n%s", err, buf)
	}
	files, err := filepath.Glob(filepath.Join(dir, "out", "exp-*-00"))
	if err != nil || len(files) != 1 {
		t.Fatalf("expected one record, got %v (%v)", files, err)
	}
	st, err := record.Detect(files[0])
	if err != nil || st != record.Skip {
		t.Fatalf("record state %v, err %v", st, err)
	}
	data, _ := os.ReadFile(files[0])
	if !strings.Contains(string(data), "args -a=x") {
		t.Errorf("solver output missing:\n%s", data)
	}
}

func TestRunRefusesWhileLocked(t *testing.T) {
	dir := newStudy(t)
	s, err := study.Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	l, err := s.Lock()
	if err != nil {
		t.Fatal(err)
	}
	defer l.Unlock()

	capture(t)
	if err := dispatch([]string{"run", dir}); !errors.Is(err, study.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}

func key(m promptModel, msg tea.KeyMsg) (promptModel, tea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(promptModel), cmd
}

func typeText(m promptModel, text string) promptModel {
	m, _ = key(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	return m
}

func TestPromptModelValidatesEachAnswer(t *testing.T) {
	m := newPromptModel(study.InitQuestions())
	if !strings.Contains(m.View(), "Solver executable [./main]") {
		t.Errorf("first question view: %q", m.View())
	}

	// runner: accept the default.
	m, _ = key(m, tea.KeyMsg{Type: tea.KeyEnter})
	// prefix
	m = typeText(m, "run")
	m, _ = key(m, tea.KeyMsg{Type: tea.KeyEnter})
	// samples: rejected until it is a positive integer.
	m = typeText(m, "zero")
	m, _ = key(m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.err == nil || m.idx != 2 {
		t.Fatalf("invalid samples accepted: idx=%d err=%v", m.idx, m.err)
	}
	if !strings.Contains(m.View(), "positive integer") {
		t.Errorf("view does not show the error: %q", m.View())
	}
	for range len("zero") {
		m, _ = key(m, tea.KeyMsg{Type: tea.KeyBackspace})
	}
	m = typeText(m, "5")
	m, _ = key(m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.err != nil || m.idx != 3 {
		t.Fatalf("valid samples refused: idx=%d err=%v", m.idx, m.err)
	}
	if m.input.Value() != "" {
		t.Errorf("input not cleared between questions: %q", m.input.Value())
	}

	// hash: accept the default, which finishes the prompt.
	m, cmd := key(m, tea.KeyMsg{Type: tea.KeyEnter})
	if !m.done || cmd == nil {
		t.Fatal("prompt did not finish after the last question")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("last answer should quit the program")
	}

	want := map[string]string{"prefix": "run", "samples": "5"}
	if len(m.answers) != len(want) || m.answers["prefix"] != "run" || m.answers["samples"] != "5" {
		t.Errorf("answers = %v, want %v", m.answers, want)
	}
	got, err := study.SettingsFromAnswers(m.answers)
	if err != nil {
		t.Fatal(err)
	}
	if got.Prefix != "run" || got.Samples != 5 || got.Runner != "./main" || got.Hash != "sha256" {
		t.Errorf("settings = %+v", got)
	}
}

func TestPromptModelEscCancels(t *testing.T) {
	m := newPromptModel(study.InitQuestions())
	m, cmd := key(m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.done {
		t.Error("esc must not complete the prompt")
	}
	if cmd == nil {
		t.Fatal("esc should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("esc should quit the program")
	}
}
