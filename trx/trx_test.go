package trx

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTrx = `<?xml version="1.0" encoding="utf-8"?>
<TestRun id="6c2f0c7e-1111-2222-3333-444455556666" name="runner@HOST 2024-05-01 10:00:00" xmlns="http://microsoft.com/schemas/VisualStudio/TeamTest/2010">
  <Results>
    <UnitTestResult testName="TestMethod1" outcome="Passed" duration="00:00:00.0120000" computerName="HOST" />
    <UnitTestResult testName="TestMethod2" outcome="Failed" duration="00:00:00.0300000" computerName="HOST">
      <Output>
        <ErrorInfo>
          <Message>Assert.AreEqual failed. Expected:&lt;1&gt;. Actual:&lt;2&gt;.</Message>
          <StackTrace>at UnitTest1.TestMethod2() in UnitTest1.cs:line 14</StackTrace>
        </ErrorInfo>
      </Output>
    </UnitTestResult>
    <UnitTestResult testName="TestMethod3" outcome="NotExecuted" duration="00:00:00" computerName="HOST" />
  </Results>
  <ResultSummary outcome="Failed">
    <Counters total="3" executed="2" passed="1" failed="1" error="0" timeout="0" aborted="0" inconclusive="0" notExecuted="1" />
  </ResultSummary>
</TestRun>`

func TestParse(t *testing.T) {
	run, err := Parse(strings.NewReader(sampleTrx))
	require.NoError(t, err)

	assert.Equal(t, "6c2f0c7e-1111-2222-3333-444455556666", run.ID)
	require.Len(t, run.Results, 3)
	assert.Equal(t, "TestMethod2", run.Results[1].TestName)
	assert.Equal(t, OutcomeFailed, run.Results[1].Outcome)
	assert.Contains(t, run.Results[1].Message, "Expected:<1>")
	assert.Contains(t, run.Results[1].StackTrace, "line 14")
	assert.Equal(t, "Failed", run.Summary.Outcome)
	assert.Equal(t, Counters{Total: 3, Executed: 2, Passed: 1, Failed: 1, NotExecuted: 1}, run.Summary.Counters)
}

func TestParseInvalid(t *testing.T) {
	_, err := Parse(strings.NewReader("<TestRun><Results>"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode trx")
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.trx")
	require.NoError(t, os.WriteFile(path, []byte(sampleTrx), 0o644))

	run, err := ParseFile(path)
	require.NoError(t, err)
	assert.Len(t, run.Results, 3)

	_, err = ParseFile(filepath.Join(t.TempDir(), "missing.trx"))
	require.Error(t, err)
}

func TestSummarize(t *testing.T) {
	failing, err := Parse(strings.NewReader(sampleTrx))
	require.NoError(t, err)
	passing := &TestRun{Summary: ResultSummary{
		Outcome:  "Completed",
		Counters: Counters{Total: 4, Executed: 4, Passed: 3, Timeout: 1},
	}}

	s := Summarize(failing, nil, passing)
	assert.Equal(t, 2, s.Runs)
	assert.Equal(t, 7, s.Total)
	assert.Equal(t, 6, s.Executed)
	assert.Equal(t, 4, s.Passed)
	assert.Equal(t, 2, s.Failed)
	assert.Equal(t, 1, s.NotExecuted)
	require.Len(t, s.FailedTests, 1)
	assert.Equal(t, "TestMethod2", s.FailedTests[0].TestName)
	assert.Equal(t, "fail", s.Status())
}

func TestSummaryStatus(t *testing.T) {
	assert.Equal(t, "none", Summarize().Status())
	assert.Equal(t, "pass", Summarize(&TestRun{Summary: ResultSummary{Counters: Counters{Total: 1, Passed: 1}}}).Status())
}
