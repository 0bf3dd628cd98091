package vstest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ethereum-optimism/infra/op-vstest/actions"
	"github.com/ethereum-optimism/infra/op-vstest/arguments"
	"github.com/ethereum-optimism/infra/op-vstest/artifact"
	"github.com/ethereum-optimism/infra/op-vstest/assemblies"
	"github.com/ethereum-optimism/infra/op-vstest/metrics"
	"github.com/ethereum-optimism/infra/op-vstest/runner"
	"github.com/ethereum-optimism/infra/op-vstest/search"
	"github.com/ethereum-optimism/infra/op-vstest/tools"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
)

const tracerName = "github.com/ethereum-optimism/infra/op-vstest"

// NoTestFilesMessage fails the run when no test assembly matched.
const NoTestFilesMessage = "No matched test files!"

// TestExecutor runs the test runner against a set of test files.
type TestExecutor interface {
	Run(ctx context.Context, runnerPath string, files []string, args string) (*runner.Result, error)
}

// ResultUploader uploads the result logs. It reports its own failures.
type ResultUploader interface {
	Upload(ctx context.Context)
}

// UnpackFunc makes the runner available, unpacking archive into dest when
// runnerPath does not exist. It reports whether it unpacked.
type UnpackFunc func(ctx context.Context, runnerPath, archive, dest string) (bool, error)

// runReporter is the host channel plus the failure state of the run.
type runReporter interface {
	actions.Reporter
	Failed() bool
	Failures() []string
}

// vstest implements the cliapp.Lifecycle interface.
var _ cliapp.Lifecycle = &vstest{}

// vstest runs one test pass and uploads its result logs.
type vstest struct {
	config   *Config
	version  string
	runID    string
	reporter runReporter
	resolver *assemblies.Resolver
	executor TestExecutor
	uploader ResultUploader
	unpack   UnpackFunc
	search   artifact.SearchFunc
	out      io.Writer
	tracer   trace.Tracer

	// searchOpts anchors relative search inputs at the work dir.
	searchOpts *search.Options

	running atomic.Bool

	shutdownCallback func(error) // Callback to signal application shutdown
}

func New(ctx context.Context, config *Config, version string, shutdownCallback func(error)) (*vstest, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}

	runID := uuid.New().String()
	config.Log.Debug("Creating vstest with config",
		"run_id", runID,
		"toolsDir", config.ToolsDir,
		"workDir", config.WorkDir,
		"searchFolder", config.SearchFolder,
		"testAssembly", config.TestAssembly)

	reporter := actions.NewCore(config.Log, os.Stdout)
	client := artifact.NewGitHubClient(config.Log, config.ArtifactService, nil)
	searchOpts := workDirSearchOptions(config.WorkDir)

	return &vstest{
		config:           config,
		version:          version,
		runID:            runID,
		reporter:         reporter,
		resolver:         assemblies.NewResolver(reporter, nil, searchOpts),
		executor:         runner.NewExecutor(config.Log, config.WorkDir, os.Stdout, nil),
		uploader:         artifact.NewUploader(reporter, client, nil, searchOpts, config.Upload),
		unpack:           tools.NewUnpacker(config.Log).EnsureUnpacked,
		search:           search.FindFilesToUpload,
		searchOpts:       searchOpts,
		out:              os.Stdout,
		tracer:           otel.Tracer(tracerName),
		shutdownCallback: shutdownCallback,
	}, nil
}

// workDirSearchOptions resolves relative patterns against the directory the
// runner executes in.
func workDirSearchOptions(workDir string) *search.Options {
	opts := search.DefaultOptions()
	opts.BaseDir = workDir
	return &opts
}

// Start runs the tests once and uploads the result logs.
// Start implements the cliapp.Lifecycle interface.
func (v *vstest) Start(ctx context.Context) error {
	v.running.Store(true)
	v.config.Log.Info("Starting op-vstest", "version", v.version, "run_id", v.runID)

	v.Run(ctx)

	if v.config.PushgatewayURL != "" {
		if err := metrics.Push(v.config.PushgatewayURL, v.runID); err != nil {
			v.config.Log.Warn("Failed to push metrics", "url", v.config.PushgatewayURL, "err", err)
		}
	}

	if v.reporter.Failed() {
		v.config.Log.Warn("Run completed with failures, returning exit code 1", "run_id", v.runID)
		return NewRunFailedError(v.reporter.Failures()...)
	}

	v.config.Log.Info("Run completed", "run_id", v.runID)
	go func() {
		v.shutdownCallback(nil)
	}()
	return nil
}

// Stop implements the cliapp.Lifecycle interface.
func (v *vstest) Stop(ctx context.Context) error {
	v.running.Store(false)
	v.config.Log.Info("op-vstest stopped")
	return nil
}

// Stopped implements the cliapp.Lifecycle interface.
func (v *vstest) Stopped() bool {
	return !v.running.Load()
}

// Run executes the pipeline. Test execution and result upload fail
// independently: a failed test step still uploads, and upload problems never
// hide a test failure.
func (v *vstest) Run(ctx context.Context) {
	ctx, span := v.tracer.Start(ctx, "vstest.run", trace.WithAttributes(
		attribute.String("run_id", v.runID),
	))
	defer span.End()

	v.runTests(ctx)
	v.uploadResults(ctx)
	v.summarizeResults(ctx)

	if v.reporter.Failed() {
		span.SetStatus(codes.Error, "run failed")
	}
}

func (v *vstest) runTests(ctx context.Context) {
	ctx, span := v.tracer.Start(ctx, "vstest.tests")
	defer span.End()

	files := v.resolver.Resolve(ctx, v.config.SearchFolder, v.config.TestAssembly)
	metrics.RecordAssembliesFound(v.runID, len(files))
	span.SetAttributes(attribute.Int("assemblies", len(files)))
	if len(files) == 0 {
		v.fail(span, NoTestFilesMessage)
		return
	}

	v.reporter.Debug("Matched test files are:")
	for _, f := range files {
		v.reporter.Debug(f)
	}

	runnerPath := tools.VsTestPath(v.config.ToolsDir, v.config.VsTestLocationMethod, v.config.VsTestLocation, v.config.VsTestVersion)
	v.reporter.Debug(fmt.Sprintf("VsTestPath: %s", runnerPath))

	archive := filepath.Join(v.config.ToolsDir, tools.ArchiveName)
	unpacked, err := v.unpack(ctx, runnerPath, archive, v.config.ToolsDir)
	if err != nil {
		metrics.RecordErrorDetails("unpack", err)
		v.fail(span, fmt.Sprintf("failed to unpack test tools: %v", err))
		return
	}
	if unpacked {
		v.reporter.Info("Unpacked test tools")
	} else {
		v.reporter.Info("Test tool exists already skipping unarchiving it...")
	}

	args := arguments.Build(v.config.Arguments)
	v.reporter.Debug(fmt.Sprintf("Arguments: %s", args))

	v.reporter.Info("Running tests...")
	result, err := v.executor.Run(ctx, runnerPath, files, args)
	if err != nil {
		metrics.RecordErrorDetails("runner", err)
		metrics.RecordRunner(v.runID, runner.ExitCodeUnknown, 0)
		v.fail(span, err.Error())
		return
	}
	metrics.RecordRunner(v.runID, result.ExitCode, result.Duration)
	span.SetAttributes(attribute.Int("exit_code", result.ExitCode))
	if !result.Passed() {
		if result.Output != "" {
			v.reporter.Debug(result.Output)
		}
		v.fail(span, fmt.Sprintf("The process '%s' failed with exit code %d", runnerPath, result.ExitCode))
	}
}

func (v *vstest) uploadResults(ctx context.Context) {
	skip := arguments.IsTrue(v.config.ShouldSkipArtifactUpload)
	v.reporter.Info(fmt.Sprintf("ShouldSkipArtifactUpload = %t", skip))
	if skip {
		return
	}

	ctx, span := v.tracer.Start(ctx, "vstest.upload")
	defer span.End()
	v.uploader.Upload(ctx)
}

func (v *vstest) fail(span trace.Span, msg string) {
	span.SetStatus(codes.Error, msg)
	v.reporter.SetFailed(msg)
}
