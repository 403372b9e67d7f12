package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"

	"studyrun/internal/ctxlog"
	"studyrun/internal/repair"
	"studyrun/internal/runner"
	"studyrun/internal/study"
)

// command describes a CLI subcommand.
type command struct {
	name  string
	short string
	usage string
	long  string
	run   func(args []string) error
}

// Usage lines, shared by the help listing and argument errors.
const (
	usageInit   = "studyrun init [-y] <dir>"
	usagePlan   = "studyrun plan <dir>"
	usageRun    = "studyrun run [-n] <dir>"
	usageRepair = "studyrun repair [-n] <dir>"
	usageIndex  = "studyrun index <dir>"
)

var commands = []command{
	{
		name:  "init",
		short: "Create a new study directory",
		usage: usageInit,
		long: `Create <dir>/study.yaml with an example parameter space.

Prompts for the solver path, record prefix, sample count and hash scheme.
With -y, or when stdin is not a terminal, the defaults are used.

Errors if a study already exists in <dir>.
`,
		run: runInit,
	},
	{
		name:  "plan",
		short: "Show which runs are complete, interrupted or missing",
		usage: usagePlan,
		long: `Classify every configuration x sample of the study without running
anything. Each record is listed with a status letter:

  S  complete, skipped
  M  present but incomplete, will be rerun
  A  missing, will be run
`,
		run: runPlan,
	},
	{
		name:  "run",
		short: "Run every incomplete configuration",
		usage: usageRun,
		long: `Plan the study, then invoke the solver once per incomplete record, in
order, until all are complete. The first failing run stops the batch; the
next invocation resumes where it left off.

  -n  dry run: print the plan only
`,
		run: runRun,
	},
	{
		name:  "repair",
		short: "Rename records whose hash no longer matches their header",
		usage: usageRepair,
		long: `Recompute the hash of every record from its header line and rename
records whose file name carries a different hash. Files with a missing
header are reported and left alone.

  S  name is consistent
  R  renamed
  E  error, left unchanged

  -n  report renames without performing them
`,
		run: runRepair,
	},
	{
		name:  "index",
		short: "Write index.md mapping record hashes to flags",
		usage: usageIndex,
		long: `Write <dir>/index.md listing the hash and canonical flags of every
configuration in the study. The file is rewritten only when the study
changed.
`,
		run: runIndex,
	},
}

// stdout receives all operator-facing output.
var stdout io.Writer = os.Stdout

func printUsage(w io.Writer) {
	fmt.Fprintf(w, "studyrun: resumable parameter studies\n\n")
	fmt.Fprintf(w, "Usage:\n  studyrun <command> [arguments]\n\n")
	fmt.Fprintf(w, "Commands:\n")
	for _, cmd := range commands {
		fmt.Fprintf(w, "  %-10s %s\n", cmd.name, cmd.short)
	}
	fmt.Fprintf(w, "\nRun 'studyrun help <command>' for details on a specific command.\n")
}

func printCommandHelp(w io.Writer, name string) {
	for _, cmd := range commands {
		if cmd.name == name {
			fmt.Fprintf(w, "Usage: %s\n\n%s", cmd.usage, cmd.long)
			return
		}
	}
	fmt.Fprintf(w, "studyrun: unknown command %q\n\nRun 'studyrun help' for usage.\n", name)
}

func dispatch(args []string) error {
	if len(args) == 0 || args[0] == "--help" || args[0] == "-h" {
		printUsage(stdout)
		return nil
	}
	if args[0] == "help" {
		if len(args) >= 2 {
			printCommandHelp(stdout, args[1])
		} else {
			printUsage(stdout)
		}
		return nil
	}
	for _, cmd := range commands {
		if cmd.name == args[0] {
			return cmd.run(args[1:])
		}
	}
	return fmt.Errorf("unknown command %q\n\nRun 'studyrun help' for usage.", args[0])
}

// parseArgs parses a subcommand's flags and returns its single positional
// argument, the study directory.
func parseArgs(usage string, fs *flag.FlagSet, args []string) (string, error) {
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return "", fmt.Errorf("%v\nusage: %s", err, usage)
	}
	if fs.NArg() != 1 {
		return "", fmt.Errorf("usage: %s", usage)
	}
	return fs.Arg(0), nil
}

func newContext() context.Context {
	return ctxlog.WithLogger(context.Background(), ctxlog.FromEnv())
}

// ---------------------------------------------------------------------------
// init
// ---------------------------------------------------------------------------

func runInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	yes := fs.Bool("y", false, "accept defaults without prompting")
	dir, err := parseArgs(usageInit, fs, args)
	if err != nil {
		return err
	}

	answers := map[string]string{}
	if !*yes && isatty.IsTerminal(os.Stdin.Fd()) {
		answers, err = promptQuestions(study.InitQuestions())
		if err != nil {
			return fmt.Errorf("prompt: %w", err)
		}
	}
	settings, err := study.SettingsFromAnswers(answers)
	if err != nil {
		return err
	}
	if err := study.Init(dir, settings); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "created study at %s\n", filepath.Join(dir, study.YAMLFile))
	return nil
}

// ---------------------------------------------------------------------------
// plan / run
// ---------------------------------------------------------------------------

func runPlan(args []string) error {
	dir, err := parseArgs(usagePlan, flag.NewFlagSet("plan", flag.ContinueOnError), args)
	if err != nil {
		return err
	}
	return execute(dir, true)
}

func runRun(args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	dry := fs.Bool("n", false, "dry run")
	dir, err := parseArgs(usageRun, fs, args)
	if err != nil {
		return err
	}
	return execute(dir, *dry)
}

func execute(dir string, dry bool) error {
	s, err := study.Open(dir)
	if err != nil {
		return err
	}
	ctx := newContext()
	logger := ctxlog.FromContext(ctx)

	lock, err := s.Lock()
	if err != nil {
		return err
	}
	defer lock.Unlock()

	plan, err := runner.NewPlan(ctx, s.Space, s.PlanOptions())
	if err != nil {
		return err
	}
	for _, job := range plan.Jobs {
		fmt.Fprintf(stdout, "%s %s\n", job.State.Code(), rel(s.Dir, job.Path))
	}
	pending := plan.Pending()
	rule := strings.Repeat("-", 50)
	fmt.Fprintf(stdout, "%s\nRUNNING %d of %d experiments\n%s\n", rule, len(pending), plan.Total(), rule)

	if dry {
		fmt.Fprintln(stdout, "Dry run: not running experiments.")
		return nil
	}
	if len(pending) == 0 {
		return nil
	}

	exe, err := s.RunnerPath()
	if err != nil {
		return err
	}
	logger.Info("Starting batch.", "runner", exe, "jobs", len(pending))
	rep := &consoleReporter{w: stdout, dir: s.Dir, program: exe}
	sum, err := runner.NewBatch(exe, &runner.Exec{Dir: s.Dir}, rep).Execute(ctx, plan)
	if err != nil {
		var xerr *runner.ExecError
		if errors.As(err, &xerr) {
			return fmt.Errorf("failed to run %s %s: %w", exe, strings.Join(xerr.Flags, " "), err)
		}
		return err
	}
	logger.Info("Batch finished.", "ran", sum.Ran, "skipped", sum.Skipped, "elapsed", sum.Elapsed.Round(1e9))
	return nil
}

// consoleReporter prints one line when a job starts and one when it ends.
type consoleReporter struct {
	w       io.Writer
	dir     string
	program string
}

func (r *consoleReporter) Started(index, count int, job runner.Job) {
	fmt.Fprintf(r.w, "RUNNING %d/%d (state=%s) %s: %s %s\n",
		index, count, job.State, rel(r.dir, job.Path), r.program, strings.Join(job.Flags, " "))
}

func (r *consoleReporter) Finished(p runner.Progress) {
	fmt.Fprintf(r.w, "  ** Completed in %.1f seconds. Estimated time remaining: %s\n",
		p.Took.Seconds(), runner.FormatETA(p.Remaining))
}

func rel(base, path string) string {
	if r, err := filepath.Rel(base, path); err == nil {
		return r
	}
	return path
}

// ---------------------------------------------------------------------------
// repair
// ---------------------------------------------------------------------------

func runRepair(args []string) error {
	fs := flag.NewFlagSet("repair", flag.ContinueOnError)
	dry := fs.Bool("n", false, "dry run")
	dir, err := parseArgs(usageRepair, fs, args)
	if err != nil {
		return err
	}

	s, err := study.Open(dir)
	if err != nil {
		return err
	}
	lock, err := s.Lock()
	if err != nil {
		return err
	}
	defer lock.Unlock()

	results, err := repair.Dir(newContext(), s.OutputDir(), repair.Options{
		Scheme:  s.Scheme(),
		Exclude: s.Settings.Exclude,
		DryRun:  *dry,
	})
	if err != nil {
		return err
	}
	for _, r := range results {
		switch r.Outcome {
		case repair.Renamed:
			fmt.Fprintf(stdout, "R %s: => %s\n", rel(s.Dir, r.Path), rel(s.Dir, r.NewPath))
		case repair.Failed:
			fmt.Fprintf(stdout, "E %s: %v\n", rel(s.Dir, r.Path), r.Err)
		default:
			fmt.Fprintf(stdout, "S %s\n", rel(s.Dir, r.Path))
		}
	}
	t := repair.Tally(results)
	fmt.Fprintf(stdout, "%d unchanged, %d renamed, %d errors\n", t[repair.Unchanged], t[repair.Renamed], t[repair.Failed])
	if *dry && t[repair.Renamed] > 0 {
		fmt.Fprintln(stdout, "Dry run: no files renamed.")
	}
	return nil
}

// ---------------------------------------------------------------------------
// index
// ---------------------------------------------------------------------------

func runIndex(args []string) error {
	dir, err := parseArgs(usageIndex, flag.NewFlagSet("index", flag.ContinueOnError), args)
	if err != nil {
		return err
	}
	s, err := study.Open(dir)
	if err != nil {
		return err
	}
	ok, err := s.IndexUpToDate()
	if err != nil {
		return err
	}
	if ok {
		fmt.Fprintf(stdout, "%s is up to date\n", filepath.Join(dir, study.IndexFile))
		return nil
	}
	path, err := s.WriteIndex()
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %s (%d configurations)\n", path, s.Space.Len())
	return nil
}

// ---------------------------------------------------------------------------
// TUI prompt helpers
// ---------------------------------------------------------------------------

// promptModel asks the init questions one at a time through a single text
// input. An answer that fails its question's validator is shown with the
// error and must be corrected before moving on.
type promptModel struct {
	questions []study.Question
	idx       int
	input     textinput.Model
	answers   map[string]string
	err       error
	done      bool
}

func newPromptModel(questions []study.Question) promptModel {
	m := promptModel{
		questions: questions,
		input:     textinput.New(),
		answers:   make(map[string]string, len(questions)),
	}
	m.input.CharLimit = 512
	m.input.Focus()
	m.next()
	return m
}

// next clears the input for the current question.
func (m *promptModel) next() {
	m.input.SetValue("")
	if m.idx < len(m.questions) {
		m.input.Placeholder = m.questions[m.idx].Default
	}
}

func (m promptModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m promptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.done || m.idx >= len(m.questions) {
		return m, tea.Quit
	}
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			q := m.questions[m.idx]
			v := strings.TrimSpace(m.input.Value())
			if v != "" && q.Validate != nil {
				if m.err = q.Validate(v); m.err != nil {
					return m, nil
				}
			}
			m.err = nil
			if v != "" {
				m.answers[q.Key] = v
			}
			m.idx++
			if m.idx == len(m.questions) {
				m.done = true
				return m, tea.Quit
			}
			m.next()
			return m, textinput.Blink
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m promptModel) View() string {
	if m.done || m.idx >= len(m.questions) {
		return ""
	}
	q := m.questions[m.idx]
	view := fmt.Sprintf("%s [%s]: %s\n", q.Prompt, q.Default, m.input.View())
	if m.err != nil {
		view += fmt.Sprintf("  %v\n", m.err)
	}
	return view
}

// promptQuestions runs the TUI and returns the non-blank answers keyed by
// Question.Key.
func promptQuestions(questions []study.Question) (map[string]string, error) {
	if len(questions) == 0 {
		return map[string]string{}, nil
	}
	result, err := tea.NewProgram(newPromptModel(questions)).Run()
	if err != nil {
		return nil, err
	}
	final, ok := result.(promptModel)
	if !ok || !final.done {
		return nil, fmt.Errorf("prompt cancelled")
	}
	return final.answers, nil
}

func main() {
	log.SetFlags(0)
	if err := dispatch(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}
