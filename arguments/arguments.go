// Package arguments builds the vstest.console flag string from the action inputs.
package arguments

import (
	"strings"
)

// Arguments holds the runner-related inputs exactly as the host delivers them.
type Arguments struct {
	TestFilterCriteria       string
	RunSettingsFile          string
	PathToCustomTestAdapters string
	RunInParallel            string
	RunTestsInIsolation      string
	CodeCoverageEnabled      string
	Platform                 string
	OtherConsoleOptions      string
}

// validPlatforms are matched case-sensitively.
var validPlatforms = []string{"x86", "x64", "ARM"}

// Build returns the runner flags for args. Every emitted token is followed by
// a single space; an empty Arguments yields "".
func Build(args Arguments) string {
	var b strings.Builder

	if args.TestFilterCriteria != "" {
		b.WriteString("/TestCaseFilter:" + args.TestFilterCriteria + " ")
	}
	if args.RunSettingsFile != "" {
		b.WriteString("/Settings:" + args.RunSettingsFile + " ")
	}
	if args.PathToCustomTestAdapters != "" {
		b.WriteString("/TestAdapterPath:" + args.PathToCustomTestAdapters + " ")
	}
	if IsTrue(args.RunInParallel) {
		b.WriteString("/Parallel ")
	}
	if IsTrue(args.RunTestsInIsolation) {
		b.WriteString("/InIsolation ")
	}
	if IsTrue(args.CodeCoverageEnabled) {
		b.WriteString("/EnableCodeCoverage ")
	}
	if isValidPlatform(args.Platform) {
		b.WriteString("/Platform:" + args.Platform + " ")
	}
	if args.OtherConsoleOptions != "" {
		b.WriteString(args.OtherConsoleOptions + " ")
	}

	return b.String()
}

// IsTrue reports whether a boolean-like input is set to "true", ignoring case.
func IsTrue(v string) bool {
	return strings.EqualFold(v, "true")
}

func isValidPlatform(platform string) bool {
	for _, p := range validPlatforms {
		if platform == p {
			return true
		}
	}
	return false
}
