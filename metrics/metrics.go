package metrics

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

const (
	MetricsNamespace = "vstest"

	// PushJobName is the pushgateway job the run's metrics are grouped under.
	PushJobName = "op_vstest"
)

var (
	Debug                bool = true
	nonAlphanumericRegex      = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	assembliesFound = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "assemblies_found",
		Help:      "Number of test assemblies matched by the search pattern",
	}, []string{
		"run_id",
	})

	runnerExitCode = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "runner_exit_code",
		Help:      "Exit code of the test runner",
	}, []string{
		"run_id",
	})

	runnerDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "runner_duration_seconds",
		Help:      "Duration of the test runner process",
	}, []string{
		"run_id",
	})

	testResults = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "test_results",
		Help:      "Test counts read from the TRX results",
	}, []string{
		"run_id",
		"outcome",
	})

	artifactUploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "artifact_uploads_total",
		Help:      "Count of artifact upload attempts by result",
	}, []string{
		"result",
	})

	artifactFiles = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "artifact_files_total",
		Help:      "Number of files uploaded as artifacts",
	})

	artifactBytes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "artifact_bytes_total",
		Help:      "Size of uploaded artifacts",
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
		log.Debug("metric inc",
			"m", "errors_total",
			"error", error,
		)
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

func RecordAssembliesFound(runID string, count int) {
	assembliesFound.WithLabelValues(runID).Set(float64(count))
}

func RecordRunner(runID string, exitCode int, duration time.Duration) {
	if Debug {
		log.Debug("metric set",
			"m", "runner_exit_code",
			"run_id", runID,
			"exit_code", exitCode,
			"duration", duration)
	}
	runnerExitCode.WithLabelValues(runID).Set(float64(exitCode))
	runnerDuration.WithLabelValues(runID).Set(duration.Seconds())
}

func RecordTestResults(runID string, total, passed, failed, notExecuted int) {
	testResults.WithLabelValues(runID, "total").Set(float64(total))
	testResults.WithLabelValues(runID, "passed").Set(float64(passed))
	testResults.WithLabelValues(runID, "failed").Set(float64(failed))
	testResults.WithLabelValues(runID, "not_executed").Set(float64(notExecuted))
}

// Upload results
const (
	UploadSuccess = "success"
	UploadNoFiles = "no_files"
	UploadFailure = "failure"
)

func RecordArtifactUpload(result string, files int, bytes int64) {
	artifactUploads.WithLabelValues(result).Inc()
	if result != UploadSuccess {
		return
	}
	artifactFiles.Add(float64(files))
	artifactBytes.Add(float64(bytes))
}

// Push sends the default registry to a pushgateway. Batch jobs such as a CI
// step end before a scrape could reach them.
func Push(url string, runID string) error {
	if url == "" {
		return nil
	}
	err := push.New(url, PushJobName).
		Gatherer(prometheus.DefaultGatherer).
		Grouping("run_id", runID).
		Push()
	if err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", url, err)
	}
	return nil
}
