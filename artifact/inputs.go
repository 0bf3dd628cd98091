package artifact

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum-optimism/infra/op-vstest/actions"
)

// NoFileOptions selects how an upload that found no files is reported.
type NoFileOptions string

const (
	// Warn outputs a warning but does not fail the run. Default.
	Warn NoFileOptions = "warn"
	// Error fails the run with an error message.
	Error NoFileOptions = "error"
	// Ignore outputs neither warnings nor errors and does not fail the run.
	Ignore NoFileOptions = "ignore"
)

// DefaultArtifactName is used when no artifact name is configured.
const DefaultArtifactName = "artifact"

// ValidNoFileOptions lists the accepted ifNoFilesFound values.
func ValidNoFileOptions() []NoFileOptions {
	return []NoFileOptions{Warn, Error, Ignore}
}

// IsValid reports whether o is one of the accepted values.
func (o NoFileOptions) IsValid() bool {
	for _, valid := range ValidNoFileOptions() {
		if o == valid {
			return true
		}
	}
	return false
}

// RawInputs are the uploader inputs as delivered by the host.
type RawInputs struct {
	ArtifactName   string
	IfNoFilesFound string
	RetentionDays  string
	SearchPath     string
	// MaxRetentionDays is the repository limit; empty when unknown.
	MaxRetentionDays string
}

// Inputs are the validated uploader inputs.
type Inputs struct {
	ArtifactName   string
	IfNoFilesFound NoFileOptions
	// RetentionDays is 0 when not set.
	RetentionDays int
	SearchPath    string
}

// ReadInputs validates raw. A retention above the repository limit is clamped
// and reported as a warning.
func ReadInputs(raw RawInputs, reporter actions.Reporter) (*Inputs, error) {
	inputs := &Inputs{
		ArtifactName:   strings.TrimSpace(raw.ArtifactName),
		IfNoFilesFound: NoFileOptions(strings.TrimSpace(raw.IfNoFilesFound)),
		SearchPath:     raw.SearchPath,
	}
	if inputs.ArtifactName == "" {
		inputs.ArtifactName = DefaultArtifactName
	}
	if inputs.IfNoFilesFound == "" {
		inputs.IfNoFilesFound = Warn
	}
	if !inputs.IfNoFilesFound.IsValid() {
		return nil, fmt.Errorf("unrecognized ifNoFilesFound input. Provided: %s. Available options: %s, %s, %s",
			raw.IfNoFilesFound, Warn, Error, Ignore)
	}

	retention := strings.TrimSpace(raw.RetentionDays)
	if retention == "" {
		return inputs, nil
	}
	days, err := strconv.Atoi(retention)
	if err != nil || days < 0 {
		return nil, fmt.Errorf("invalid retentionDays: %q", raw.RetentionDays)
	}
	if maxDays, err := strconv.Atoi(strings.TrimSpace(raw.MaxRetentionDays)); err == nil && maxDays > 0 && days > maxDays {
		reporter.Warning(fmt.Sprintf("Retention days is greater than the max value allowed by the repository setting, reduce retention to %d days", maxDays))
		days = maxDays
	}
	inputs.RetentionDays = days
	return inputs, nil
}
