// Package trx reads the TRX result files written by the runner's TRX logger.
package trx

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"
)

// Outcome values used by the runner for individual tests.
const (
	OutcomePassed      = "Passed"
	OutcomeFailed      = "Failed"
	OutcomeNotExecuted = "NotExecuted"
)

// TestRun is the subset of a TRX document the action reports on.
type TestRun struct {
	XMLName xml.Name         `xml:"TestRun"`
	ID      string           `xml:"id,attr"`
	Name    string           `xml:"name,attr"`
	Results []UnitTestResult `xml:"Results>UnitTestResult"`
	Summary ResultSummary    `xml:"ResultSummary"`
}

// UnitTestResult is the result of one test.
type UnitTestResult struct {
	TestName     string `xml:"testName,attr"`
	Outcome      string `xml:"outcome,attr"`
	Duration     string `xml:"duration,attr"`
	ComputerName string `xml:"computerName,attr"`
	Message      string `xml:"Output>ErrorInfo>Message"`
	StackTrace   string `xml:"Output>ErrorInfo>StackTrace"`
}

// ResultSummary holds the run outcome and counters.
type ResultSummary struct {
	Outcome  string   `xml:"outcome,attr"`
	Counters Counters `xml:"Counters"`
}

// Counters are the per-run totals.
type Counters struct {
	Total       int `xml:"total,attr"`
	Executed    int `xml:"executed,attr"`
	Passed      int `xml:"passed,attr"`
	Failed      int `xml:"failed,attr"`
	Error       int `xml:"error,attr"`
	Timeout     int `xml:"timeout,attr"`
	Aborted     int `xml:"aborted,attr"`
	NotExecuted int `xml:"notExecuted,attr"`
}

// Parse decodes a TRX document.
func Parse(r io.Reader) (*TestRun, error) {
	var run TestRun
	if err := xml.NewDecoder(r).Decode(&run); err != nil {
		return nil, fmt.Errorf("failed to decode trx: %w", err)
	}
	return &run, nil
}

// ParseFile decodes the TRX file at path.
func ParseFile(path string) (*TestRun, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trx file: %w", err)
	}
	defer f.Close()

	run, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return run, nil
}

// Summary aggregates one or more test runs.
type Summary struct {
	Runs        int
	Total       int
	Executed    int
	Passed      int
	Failed      int
	NotExecuted int
	FailedTests []UnitTestResult
}

// Summarize adds up the counters of runs and collects the failed tests.
func Summarize(runs ...*TestRun) Summary {
	var s Summary
	for _, run := range runs {
		if run == nil {
			continue
		}
		s.Runs++
		c := run.Summary.Counters
		s.Total += c.Total
		s.Executed += c.Executed
		s.Passed += c.Passed
		s.Failed += c.Failed + c.Error + c.Timeout + c.Aborted
		s.NotExecuted += c.NotExecuted
		for _, r := range run.Results {
			if strings.EqualFold(r.Outcome, OutcomeFailed) {
				s.FailedTests = append(s.FailedTests, r)
			}
		}
	}
	return s
}

// Status is "pass" when no test failed, "fail" otherwise, "none" with no runs.
func (s Summary) Status() string {
	switch {
	case s.Runs == 0:
		return "none"
	case s.Failed > 0:
		return "fail"
	default:
		return "pass"
	}
}
