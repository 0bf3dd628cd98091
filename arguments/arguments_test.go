package arguments

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildNoInputs(t *testing.T) {
	assert.Equal(t, "", Build(Arguments{}))

	// Explicit "false" values are the host's defaults and must not emit anything.
	assert.Equal(t, "", Build(Arguments{
		RunInParallel:       "false",
		RunTestsInIsolation: "false",
		CodeCoverageEnabled: "false",
	}))
}

func TestBuildAllInputs(t *testing.T) {
	got := Build(Arguments{
		TestFilterCriteria:       "testFilterCriteria",
		RunSettingsFile:          "runSettingsFile",
		PathToCustomTestAdapters: "pathToCustomTestAdapters",
		RunInParallel:            "true",
		RunTestsInIsolation:      "true",
		CodeCoverageEnabled:      "true",
		Platform:                 "x64",
		OtherConsoleOptions:      "otherConsoleOptions",
	})

	expected := "/TestCaseFilter:testFilterCriteria /Settings:runSettingsFile " +
		"/TestAdapterPath:pathToCustomTestAdapters /Parallel /InIsolation " +
		"/EnableCodeCoverage /Platform:x64 otherConsoleOptions "
	assert.Equal(t, expected, got)
}

func TestBuildSingleInputs(t *testing.T) {
	tests := []struct {
		name     string
		args     Arguments
		expected string
	}{
		{"filter", Arguments{TestFilterCriteria: "Priority=1"}, "/TestCaseFilter:Priority=1 "},
		{"settings", Arguments{RunSettingsFile: "a.runsettings"}, "/Settings:a.runsettings "},
		{"adapters", Arguments{PathToCustomTestAdapters: `C:\adapters`}, `/TestAdapterPath:C:\adapters `},
		{"parallel upper case", Arguments{RunInParallel: "TRUE"}, "/Parallel "},
		{"isolation mixed case", Arguments{RunTestsInIsolation: "True"}, "/InIsolation "},
		{"coverage", Arguments{CodeCoverageEnabled: "true"}, "/EnableCodeCoverage "},
		{"parallel not a boolean", Arguments{RunInParallel: "yes"}, ""},
		{"other options verbatim", Arguments{OtherConsoleOptions: "/Blame /Diag:log.txt"}, "/Blame /Diag:log.txt "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Build(tt.args))
		})
	}
}

func TestBuildPlatform(t *testing.T) {
	valid := []string{"x86", "x64", "ARM"}
	for _, p := range valid {
		assert.Equal(t, "/Platform:"+p+" ", Build(Arguments{Platform: p}), "platform %q", p)
	}

	invalid := []string{"X64", "X86", "arm", "Any CPU", "x64 ", ""}
	for _, p := range invalid {
		assert.Equal(t, "", Build(Arguments{Platform: p}), "platform %q", p)
	}
}

func TestBuildOrderIsFixed(t *testing.T) {
	got := Build(Arguments{
		OtherConsoleOptions: "last",
		Platform:            "ARM",
		RunInParallel:       "true",
		TestFilterCriteria:  "first",
	})
	assert.Equal(t, "/TestCaseFilter:first /Parallel /Platform:ARM last ", got)
}
