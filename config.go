package vstest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/ethereum-optimism/infra/op-vstest/arguments"
	"github.com/ethereum-optimism/infra/op-vstest/artifact"
	"github.com/ethereum-optimism/infra/op-vstest/flags"
)

// Config holds the application configuration
type Config struct {
	Arguments arguments.Arguments

	SearchFolder         string
	TestAssembly         string
	VsTestLocationMethod string
	VsTestLocation       string
	VsTestVersion        string

	ToolsDir string // Directory holding the runner archive and the unpacked runner
	WorkDir  string // Working directory of the runner process

	ShouldSkipArtifactUpload string // Upload is skipped when this equal-folds "true"
	Upload                   artifact.RawInputs
	ArtifactService          artifact.GitHubClientConfig

	StepSummary    string // Path of the job summary file, empty outside a workflow
	PushgatewayURL string

	Log log.Logger
}

// NewConfig creates a new Config from cli context
func NewConfig(ctx *cli.Context, log log.Logger) (*Config, error) {
	if path := ctx.String(flags.InputsFile.Name); path != "" {
		if err := applyInputsFile(ctx, path); err != nil {
			return nil, err
		}
	}

	toolsDir := ctx.String(flags.ToolsDir.Name)
	if toolsDir == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("failed to locate executable for default tools directory: %w", err)
		}
		toolsDir = filepath.Dir(exe)
	}
	toolsDir, err := filepath.Abs(toolsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for tools directory '%s': %w", toolsDir, err)
	}

	workDir := ctx.String(flags.WorkDir.Name)
	if workDir == "" {
		workDir, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
	}
	workDir, err = filepath.Abs(workDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for work directory '%s': %w", workDir, err)
	}

	return &Config{
		Arguments: arguments.Arguments{
			TestFilterCriteria:       ctx.String(flags.TestFilterCriteria.Name),
			RunSettingsFile:          ctx.String(flags.RunSettingsFile.Name),
			PathToCustomTestAdapters: ctx.String(flags.PathToCustomTestAdapters.Name),
			RunInParallel:            ctx.String(flags.RunInParallel.Name),
			RunTestsInIsolation:      ctx.String(flags.RunTestsInIsolation.Name),
			CodeCoverageEnabled:      ctx.String(flags.CodeCoverageEnabled.Name),
			Platform:                 ctx.String(flags.Platform.Name),
			OtherConsoleOptions:      ctx.String(flags.OtherConsoleOptions.Name),
		},
		SearchFolder:             ctx.String(flags.SearchFolder.Name),
		TestAssembly:             ctx.String(flags.TestAssembly.Name),
		VsTestLocationMethod:     ctx.String(flags.VsTestLocationMethod.Name),
		VsTestLocation:           ctx.String(flags.VsTestLocation.Name),
		VsTestVersion:            ctx.String(flags.VsTestVersion.Name),
		ToolsDir:                 toolsDir,
		WorkDir:                  workDir,
		ShouldSkipArtifactUpload: ctx.String(flags.ShouldSkipArtifactUpload.Name),
		Upload: artifact.RawInputs{
			ArtifactName:     ctx.String(flags.ResultLogsArtifactName.Name),
			IfNoFilesFound:   ctx.String(flags.IfNoFilesFound.Name),
			RetentionDays:    ctx.String(flags.RetentionDays.Name),
			SearchPath:       ctx.String(flags.ResultLogsSearchPath.Name),
			MaxRetentionDays: ctx.String(flags.MaxRetentionDays.Name),
		},
		ArtifactService: artifact.GitHubClientConfig{
			RuntimeToken: ctx.String(flags.RuntimeToken.Name),
			ResultsURL:   ctx.String(flags.ResultsURL.Name),
		},
		StepSummary:    ctx.String(flags.StepSummary.Name),
		PushgatewayURL: ctx.String(flags.PushgatewayURL.Name),
		Log:            log,
	}, nil
}

// applyInputsFile sets every input listed in the file at path that was not
// already given on the command line or in the environment. Files ending in
// .toml are read as TOML, anything else as YAML.
func applyInputsFile(ctx *cli.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read inputs file '%s': %w", path, err)
	}
	var inputs map[string]any
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		err = toml.Unmarshal(data, &inputs)
	} else {
		err = yaml.Unmarshal(data, &inputs)
	}
	if err != nil {
		return fmt.Errorf("failed to parse inputs file '%s': %w", path, err)
	}

	known := make(map[string]struct{}, len(flags.InputFlags))
	for _, f := range flags.InputFlags {
		known[f.Names()[0]] = struct{}{}
	}
	for name, value := range inputs {
		if _, ok := known[name]; !ok {
			return fmt.Errorf("unknown input '%s' in inputs file '%s'", name, path)
		}
		if ctx.IsSet(name) {
			continue
		}
		v := ""
		if value != nil {
			v = fmt.Sprint(value)
		}
		if err := ctx.Set(name, v); err != nil {
			return fmt.Errorf("failed to apply input '%s': %w", name, err)
		}
	}
	return nil
}
