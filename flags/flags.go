package flags

import (
	"github.com/urfave/cli/v2"

	opservice "github.com/ethereum-optimism/optimism/op-service"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
)

const (
	EnvVarPrefix = "OP_VSTEST"
	// InputEnvVarPrefix is the prefix the workflow host uses for action inputs.
	InputEnvVarPrefix = "INPUT"
)

// Runner arguments.
var (
	TestFilterCriteria       = inputFlag("testFiltercriteria", "", "Run tests that match the given expression")
	RunSettingsFile          = inputFlag("runSettingsFile", "", "Path to the runsettings file")
	PathToCustomTestAdapters = inputFlag("pathToCustomTestAdapters", "", "Directory path to custom test adapters")
	RunInParallel            = inputFlag("runInParallel", "false", "Run tests in parallel ('true' to enable)")
	RunTestsInIsolation      = inputFlag("runTestsInIsolation", "false", "Run tests in an isolated process ('true' to enable)")
	CodeCoverageEnabled      = inputFlag("codeCoverageEnabled", "false", "Collect code coverage ('true' to enable)")
	Platform                 = inputFlag("platform", "", "Target platform architecture: x86, x64 or ARM")
	OtherConsoleOptions      = inputFlag("otherConsoleOptions", "", "Other options passed verbatim to the runner")
)

// Test discovery and runner location.
var (
	SearchFolder         = inputFlag("searchFolder", "", "Folder to search for test assemblies")
	TestAssembly         = inputFlag("testAssembly", "", "Glob pattern of the test assemblies, appended to searchFolder")
	VsTestLocationMethod = inputFlag("vstestLocationMethod", "", "'location' uses vstestLocation, anything else the bundled runner")
	VsTestLocation       = inputFlag("vstestLocation", "", "Path to vstest.console.exe when vstestLocationMethod is 'location'")
	VsTestVersion        = inputFlag("vsTestVersion", "", "Bundled runner version: 14.0, 15.0 or latest")
)

// Result log upload.
var (
	ShouldSkipArtifactUpload = inputFlag("shouldSkipArtifactUpload", "false", "Skip the result log upload ('true' to skip)")
	ResultLogsArtifactName   = inputFlag("resultLogsArtifactName", "", "Name of the result log artifact")
	IfNoFilesFound           = inputFlag("ifNoFilesFound", "warn", "Behavior when no result logs are found: warn, error or ignore")
	RetentionDays            = inputFlag("retentionDays", "", "Days before the artifact expires; empty uses the repository default")
	ResultLogsSearchPath     = inputFlag("resultLogsSearchPath", "TestResults", "Glob pattern(s) of the result logs, one per line")
)

// Operational settings.
var (
	ToolsDir = &cli.StringFlag{
		Name:    "tools-dir",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "TOOLS_DIR"),
		Usage:   "Directory holding win-x64.zip and the unpacked runner. Defaults to the executable's directory",
	}
	InputsFile = &cli.StringFlag{
		Name:    "inputs-file",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "INPUTS_FILE"),
		Usage:   "YAML file of action inputs, used for inputs not set by flag or environment",
	}
	WorkDir = &cli.StringFlag{
		Name:    "work-dir",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "WORK_DIR"),
		Usage:   "Working directory for the runner. Defaults to the current directory",
	}
	PushgatewayURL = &cli.StringFlag{
		Name:    "pushgateway-url",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "PUSHGATEWAY_URL"),
		Usage:   "Prometheus pushgateway to push run metrics to when the run ends",
	}
)

// Environment provided by the workflow host.
var (
	RuntimeToken = &cli.StringFlag{
		Name:    "actions-runtime-token",
		EnvVars: []string{"ACTIONS_RUNTIME_TOKEN"},
		Usage:   "Token for the artifact service",
	}
	ResultsURL = &cli.StringFlag{
		Name:    "actions-results-url",
		EnvVars: []string{"ACTIONS_RESULTS_URL"},
		Usage:   "Base URL of the artifact service",
	}
	StepSummary = &cli.StringFlag{
		Name:    "step-summary",
		EnvVars: []string{"GITHUB_STEP_SUMMARY"},
		Usage:   "File the markdown job summary is appended to",
	}
	MaxRetentionDays = &cli.StringFlag{
		Name:    "max-retention-days",
		EnvVars: []string{"GITHUB_RETENTION_DAYS"},
		Usage:   "Repository maximum artifact retention in days",
	}
)

// inputFlag declares an action input. The flag name is the input name and
// the env var is the one the workflow host sets for it.
func inputFlag(name, value, usage string) *cli.StringFlag {
	return &cli.StringFlag{
		Name:    name,
		Value:   value,
		EnvVars: []string{opservice.FlagNameToEnvVarName(name, InputEnvVarPrefix)},
		Usage:   usage,
	}
}

// InputFlags are the action inputs, in declaration order.
var InputFlags = []cli.Flag{
	TestFilterCriteria,
	RunSettingsFile,
	PathToCustomTestAdapters,
	RunInParallel,
	RunTestsInIsolation,
	CodeCoverageEnabled,
	Platform,
	OtherConsoleOptions,
	SearchFolder,
	TestAssembly,
	VsTestLocationMethod,
	VsTestLocation,
	VsTestVersion,
	ShouldSkipArtifactUpload,
	ResultLogsArtifactName,
	IfNoFilesFound,
	RetentionDays,
	ResultLogsSearchPath,
}

var hostFlags = []cli.Flag{
	RuntimeToken,
	ResultsURL,
	StepSummary,
	MaxRetentionDays,
}

var optionalFlags = []cli.Flag{
	ToolsDir,
	InputsFile,
	WorkDir,
	PushgatewayURL,
}

var Flags []cli.Flag

func init() {
	optionalFlags = append(optionalFlags, oplog.CLIFlags(EnvVarPrefix)...)
	optionalFlags = append(optionalFlags, opmetrics.CLIFlags(EnvVarPrefix)...)

	Flags = append(Flags, InputFlags...)
	Flags = append(Flags, hostFlags...)
	Flags = append(Flags, optionalFlags...)
}
