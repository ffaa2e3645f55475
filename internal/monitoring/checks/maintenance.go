package checks

import (
	"context"
	"time"

	"github.com/charlesng35/notely/internal/monitoring"
)

const defaultMaintenanceMaxAge = 6 * time.Hour

// RunReporter exposes the outcome of the most recent background maintenance run.
type RunReporter interface {
	LastRun() (at time.Time, err error)
}

// Maintenance reports degraded when cache purging has not completed within maxAge
// and down when the latest run failed. A job that has not run yet is healthy.
func Maintenance(reporter RunReporter, maxAge time.Duration) monitoring.Check {
	if maxAge <= 0 {
		maxAge = defaultMaintenanceMaxAge
	}

	return monitoring.NewCheck("maintenance", func(context.Context) monitoring.ProbeResult {
		if reporter == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: "no maintenance jobs registered"}
		}

		at, err := reporter.LastRun()
		switch {
		case at.IsZero():
			return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: "pending first run"}
		case err != nil:
			return monitoring.ProbeResult{Status: monitoring.StatusDown, Details: err.Error()}
		case time.Since(at) > maxAge:
			return monitoring.ProbeResult{
				Status:  monitoring.StatusDegraded,
				Details: "stale run " + at.UTC().Format(time.RFC3339),
			}
		}
		return monitoring.ProbeResult{Status: monitoring.StatusUp}
	})
}
