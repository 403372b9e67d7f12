package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"studyrun/internal/ctxlog"
)

// Progress describes one finished job.
type Progress struct {
	Index     int // 1-based position among pending jobs
	Count     int // number of pending jobs
	Job       Job
	Took      time.Duration
	Remaining time.Duration // estimated time for the jobs still to run
}

// Reporter receives batch progress. Implementations must not block.
type Reporter interface {
	Started(index, count int, job Job)
	Finished(p Progress)
}

// Summary describes a completed or aborted batch.
type Summary struct {
	Total   int
	Skipped int
	Ran     int
	Elapsed time.Duration
}

// Batch runs the pending jobs of a plan one at a time.
type Batch struct {
	Program  string
	Runner   JobRunner
	Reporter Reporter

	now func() time.Time
}

// NewBatch creates a batch that runs program through r.
func NewBatch(program string, r JobRunner, rep Reporter) *Batch {
	return &Batch{Program: program, Runner: r, Reporter: rep, now: time.Now}
}

// Execute runs every pending job in plan order. The first failure stops
// the batch and is returned; jobs after it are not attempted.
func (b *Batch) Execute(ctx context.Context, plan *Plan) (Summary, error) {
	logger := ctxlog.FromContext(ctx)
	now := b.now
	if now == nil {
		now = time.Now
	}

	pending := plan.Pending()
	sum := Summary{Total: plan.Total(), Skipped: plan.Total() - len(pending)}
	start := now()
	var est Estimator

	for i, job := range pending {
		if err := ctx.Err(); err != nil {
			sum.Elapsed = now().Sub(start)
			return sum, err
		}
		if err := os.MkdirAll(filepath.Dir(job.Path), 0o755); err != nil {
			sum.Elapsed = now().Sub(start)
			return sum, fmt.Errorf("create output dir: %w", err)
		}
		if b.Reporter != nil {
			b.Reporter.Started(i+1, len(pending), job)
		}
		logger.Debug("Job starting.", "path", job.Path, "state", job.State.String())

		t0 := now()
		if err := b.Runner.Run(ctx, b.Program, job.Flags, job.Path); err != nil {
			sum.Elapsed = now().Sub(start)
			logger.Error("Job failed; aborting batch.", "path", job.Path, "error", err)
			return sum, fmt.Errorf("job %d/%d: %w", i+1, len(pending), err)
		}
		took := now().Sub(t0)
		sum.Ran++

		est.Observe(took)
		left := len(pending) - i - 1
		if b.Reporter != nil {
			b.Reporter.Finished(Progress{
				Index:     i + 1,
				Count:     len(pending),
				Job:       job,
				Took:      took,
				Remaining: est.Remaining(left),
			})
		}
		logger.Debug("Job finished.", "path", job.Path, "took", took, "avg", est.Average())
	}

	sum.Elapsed = now().Sub(start)
	return sum, nil
}
