package runner

import (
	"fmt"
	"time"
)

const (
	// estimateSeed inflates the first observed duration; early estimates
	// err on the long side.
	estimateSeed = 1.2
	// estimateWeight is the share of each new observation in the average.
	estimateWeight = 0.1
)

// Estimator keeps an exponentially weighted moving average of job
// durations.
type Estimator struct {
	avg  time.Duration
	seen bool
}

// Observe folds one job duration into the average.
func (e *Estimator) Observe(d time.Duration) {
	if !e.seen {
		e.avg = time.Duration(float64(d) * estimateSeed)
		e.seen = true
		return
	}
	e.avg += time.Duration(estimateWeight * float64(d-e.avg))
}

// Average is the current moving average, zero before any observation.
func (e *Estimator) Average() time.Duration { return e.avg }

// Remaining estimates the time needed for jobs more runs.
func (e *Estimator) Remaining(jobs int) time.Duration {
	return time.Duration(jobs) * e.avg
}

// FormatETA renders d as H:MM:SS, dropping fractional seconds. Whole days
// are written out in front: "1 day, 2:03:04", "3 days, 0:00:10".
func FormatETA(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	s := int64(d / time.Second)
	hms := fmt.Sprintf("%d:%02d:%02d", s/3600%24, s/60%60, s%60)
	switch days := s / 86400; days {
	case 0:
		return hms
	case 1:
		return "1 day, " + hms
	default:
		return fmt.Sprintf("%d days, %s", days, hms)
	}
}
