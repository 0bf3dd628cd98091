package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/urfave/cli/v2"

	vstest "github.com/ethereum-optimism/infra/op-vstest"
	"github.com/ethereum-optimism/infra/op-vstest/exitcodes"
	"github.com/ethereum-optimism/infra/op-vstest/flags"
	"github.com/ethereum-optimism/infra/op-vstest/service"
	"github.com/ethereum-optimism/optimism/devnet-sdk/telemetry"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
	"github.com/ethereum-optimism/optimism/op-service/ctxinterrupt"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "op-vstest"
	app.Usage = "Run vstest.console test assemblies and upload the result logs"
	app.Description = "op-vstest finds test assemblies by glob, runs them with vstest.console and uploads the TRX logs as a workflow artifact"
	app.Flags = cliapp.ProtectFlags(flags.Flags)
	app.Action = cliapp.LifecycleCmd(run)
	app.ExitErrHandler = func(c *cli.Context, err error) {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			cli.HandleExitCoder(exitErr)
		} else if err != nil {
			cli.HandleExitCoder(cli.Exit(err.Error(), exitCode(err)))
		}
	}

	// Start telemetry
	ctx, shutdown, err := telemetry.SetupOpenTelemetry(
		context.Background(),
		otelconfig.WithServiceName(app.Name),
		otelconfig.WithServiceVersion(app.Version),
	)
	if err != nil {
		log.Crit("Failed to setup open telemetry", "message", err)
	}
	defer shutdown()

	// Start CLI
	ctx = ctxinterrupt.WithSignalWaiterMain(ctx)
	err = app.RunContext(ctx, os.Args)
	if err != nil {
		log.Crit("Application failed", "message", err)
	}
}

// exitCode maps a run error to the process exit code.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitcodes.Success
	case vstest.IsRuntimeError(err):
		return exitcodes.RuntimeErr
	default:
		// Failed runs and unclassified errors
		return exitcodes.TestFailure
	}
}

func run(ctx *cli.Context, closeApp context.CancelCauseFunc) (cliapp.Lifecycle, error) {
	logCfg := oplog.ReadCLIConfig(ctx)
	log := oplog.NewLogger(oplog.AppOut(ctx), logCfg)
	oplog.SetGlobalLogHandler(log.Handler())
	oplog.SetupDefaults()

	cfg, err := vstest.NewConfig(ctx, log)
	if err != nil {
		// Wrap in RuntimeError to signal this should exit with code 2
		return nil, vstest.NewRuntimeError(fmt.Errorf("failed to create config: %w", err))
	}

	cfg.Log.Debug("Config", "config", cfg)

	vs, err := vstest.New(ctx.Context, cfg, Version, closeApp)
	if err != nil {
		return nil, vstest.NewRuntimeError(fmt.Errorf("failed to create vstest: %w", err))
	}

	metricsCfg := opmetrics.ReadCLIConfig(ctx)
	if err := metricsCfg.Check(); err != nil {
		return nil, vstest.NewRuntimeError(fmt.Errorf("invalid metrics config: %w", err))
	}
	if !metricsCfg.Enabled {
		return vs, nil
	}
	return &withMetrics{
		Lifecycle: vs,
		metrics:   service.New(log, metricsCfg.ListenAddr, metricsCfg.ListenPort, nil),
	}, nil
}

// withMetrics serves the metrics endpoint for the lifetime of the run.
type withMetrics struct {
	cliapp.Lifecycle
	metrics *service.Service
}

func (w *withMetrics) Start(ctx context.Context) error {
	if err := w.metrics.Start(); err != nil {
		return vstest.NewRuntimeError(fmt.Errorf("failed to start metrics server: %w", err))
	}
	return w.Lifecycle.Start(ctx)
}

func (w *withMetrics) Stop(ctx context.Context) error {
	return errors.Join(w.Lifecycle.Stop(ctx), w.metrics.Shutdown(ctx))
}
