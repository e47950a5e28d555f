package logging

import (
	"github.com/rs/zerolog"

	"github.com/tektronix/behave/model"
	"github.com/tektronix/behave/runner"
	"github.com/tektronix/behave/types"
)

var _ runner.Reporter = (*FileReporter)(nil)

// FileReporter feeds the run's features into a FileLogger as they
// finish, then writes the summary file and finalizes the log directory
// when the run ends.
type FileReporter struct {
	log    zerolog.Logger
	logger *FileLogger
	stats  *types.RunStats
}

// NewFileReporter creates a reporter writing through the given logger.
func NewFileReporter(log zerolog.Logger, logger *FileLogger) *FileReporter {
	return &FileReporter{
		log:    log,
		logger: logger,
		stats:  types.NewRunStats(),
	}
}

// Feature records one feature's scenario results.
func (r *FileReporter) Feature(f runner.Feature) {
	f.CountInto(r.stats)
	r.stats.Duration += f.Duration()

	lister, ok := f.(interface{ Scenarios() []*model.Scenario })
	if !ok {
		return
	}
	for _, s := range lister.Scenarios() {
		result := &ScenarioResult{
			Feature:  f.Name(),
			Scenario: s.Name(),
			Location: s.Location(),
			Status:   s.Status(),
			Duration: s.Duration(),
			Error:    s.ErrorCause(),
		}
		if err := r.logger.LogScenarioResult(result, r.logger.GetRunID()); err != nil {
			r.log.Error().Err(err).Str("scenario", s.Name()).Msg("Failed to log scenario result")
		}
	}
}

// End writes the run summary and closes the log directory.
func (r *FileReporter) End() {
	runID := r.logger.GetRunID()
	if err := r.logger.LogSummary(r.stats.Text(), runID); err != nil {
		r.log.Error().Err(err).Msg("Failed to write run summary")
	}
	if err := r.logger.Complete(runID); err != nil {
		r.log.Error().Err(err).Msg("Failed to finalize run logs")
	}
	r.log.Info().Str("dir", r.logger.GetBaseDir()).Msg("Run logs written")
}
