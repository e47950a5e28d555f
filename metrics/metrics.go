package metrics

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"

	"github.com/tektronix/behave/types"
)

const (
	MetricsNamespace = "behave"
)

var (
	Debug                bool = true
	validStatuses             = []types.Status{types.StatusUntested, types.StatusSkipped, types.StatusPassed, types.StatusUndefined, types.StatusFailed, types.StatusError}
	nonAlphanumericRegex      = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	stepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "steps_total",
		Help:      "Count of executed steps by status",
	}, []string{
		"run_id",
		"status",
	})

	scenariosTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "scenarios_total",
		Help:      "Count of executed scenarios by status",
	}, []string{
		"run_id",
		"feature",
		"status",
	})

	featuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "features_total",
		Help:      "Count of executed features by status",
	}, []string{
		"run_id",
		"status",
	})

	hookFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "hook_failures_total",
		Help:      "Count of hook failures by hook name",
	}, []string{
		"run_id",
		"hook",
	})

	cleanupErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "cleanup_errors_total",
		Help:      "Count of cleanup failures",
	}, []string{
		"run_id",
	})

	undefinedStepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "undefined_steps_total",
		Help:      "Count of steps without a matching definition",
	}, []string{
		"run_id",
	})

	runResults = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_results",
		Help:      "Verdict of test runs",
	}, []string{
		"run_id",
		"result",
	})

	runDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_duration_seconds",
		Help:      "Duration of test runs",
	}, []string{
		"run_id",
	})
)

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}

func RecordError(error string) {
	if Debug {
		log.Debug().
			Str("m", "errors_total").
			Str("error", error).
			Msg("metric inc")
	}
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label
// and also tries to clean the label to be a valid Prometheus label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	label = fmt.Sprintf("%s.%s", label, errToLabel(err))
	RecordError(label)
}

func RecordStep(runID string, status types.Status) {
	if !isValidStatus(status) {
		log.Error().Str("status", string(status)).Msg("RecordStep - invalid status")
		return
	}
	stepsTotal.WithLabelValues(runID, string(status)).Inc()
}

func RecordScenario(runID string, feature string, status types.Status) {
	if !isValidStatus(status) {
		log.Error().Str("status", string(status)).Msg("RecordScenario - invalid status")
		return
	}
	if Debug {
		log.Debug().
			Str("m", "scenarios_total").
			Str("run_id", runID).
			Str("feature", feature).
			Str("status", string(status)).
			Msg("metric inc")
	}
	scenariosTotal.WithLabelValues(runID, feature, string(status)).Inc()
}

func RecordFeature(runID string, status types.Status) {
	if !isValidStatus(status) {
		log.Error().Str("status", string(status)).Msg("RecordFeature - invalid status")
		return
	}
	featuresTotal.WithLabelValues(runID, string(status)).Inc()
}

func RecordHookFailure(runID string, hook string) {
	hookFailuresTotal.WithLabelValues(runID, hook).Inc()
}

func RecordCleanupError(runID string) {
	cleanupErrorsTotal.WithLabelValues(runID).Inc()
}

func RecordUndefinedStep(runID string) {
	undefinedStepsTotal.WithLabelValues(runID).Inc()
}

// RecordRun publishes the verdict and duration of a finished run.
// Per-element counts are recorded as the run progresses.
func RecordRun(runID string, failed bool, duration time.Duration) {
	result := "passed"
	if failed {
		result = "failed"
	}
	runResults.WithLabelValues(runID, result).Set(1)
	runDuration.WithLabelValues(runID).Set(duration.Seconds())
}

func isValidStatus(status types.Status) bool {
	return slices.Contains(validStatuses, status)
}
