package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/courtengine/internal/rules"
	"github.com/codr1/courtengine/internal/store"
)

// Action rows only feed trailing rate-limit windows, so anything older
// than the retention is dead weight.
const actionLogRetention = 30 * 24 * time.Hour

// RegisterMaintenanceJobs registers the nightly action-log prune and the
// periodic rule-cache refresh.
func RegisterMaintenanceJobs(st *store.Store, registry *rules.Registry) error {
	if st == nil || registry == nil {
		return fmt.Errorf("maintenance jobs require store and registry")
	}

	jobName := "action_log_prune"
	cronExpr := "30 3 * * *"
	jobLogger := log.With().
		Str("component", "action_log_prune_job").
		Str("job_name", jobName).
		Str("cron", cronExpr).
		Logger()

	_, err := AddJob(jobName, cronExpr, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		pruned, err := st.PruneActionLog(ctx, time.Now().Add(-actionLogRetention))
		if err != nil {
			jobLogger.Error().Err(err).Msg("Failed to prune action log")
			return
		}
		jobLogger.Info().Int64("pruned", pruned).Msg("Action log pruned")
	})
	if err != nil {
		return err
	}

	// Rule writes are expected to invalidate the facility entry directly;
	// the hourly sweep bounds staleness if a writer forgets.
	_, err = AddJob("rule_cache_refresh", "0 * * * *", func() {
		registry.InvalidateAll()
		log.Info().
			Str("component", "rule_cache_refresh_job").
			Msg("Rule cache refreshed")
	})
	return err
}
