package vstest

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ethereum-optimism/infra/op-vstest/actions"
	"github.com/ethereum-optimism/infra/op-vstest/metrics"
	"github.com/ethereum-optimism/infra/op-vstest/trx"
)

const trxExt = ".trx"

// resultFile is a parsed TRX file.
type resultFile struct {
	name string
	run  *trx.TestRun
}

// summarizeResults prints the results table for the TRX files under the result
// log search path and appends it to the job summary. Problems are logged only.
func (v *vstest) summarizeResults(ctx context.Context) {
	ctx, span := v.tracer.Start(ctx, "vstest.summary")
	defer span.End()

	files, err := v.findResultFiles(ctx)
	if err != nil {
		v.config.Log.Warn("Failed to search for result files", "err", err)
		return
	}
	if len(files) == 0 {
		v.config.Log.Debug("No TRX result files found", "searchPath", v.config.Upload.SearchPath)
		return
	}

	runs := make([]*trx.TestRun, 0, len(files))
	for _, f := range files {
		runs = append(runs, f.run)
	}
	summary := trx.Summarize(runs...)
	metrics.RecordTestResults(v.runID, summary.Total, summary.Passed, summary.Failed, summary.NotExecuted)

	v.config.Log.Info("Printing results...")
	fmt.Fprintln(v.out, resultsTable(v.runID, files, summary).Render())
	if len(summary.FailedTests) > 0 {
		fmt.Fprintln(v.out, failedTestsTable(summary.FailedTests).Render())
	}

	if err := actions.AppendSummary(v.config.StepSummary, stepSummary(v.runID, files, summary)); err != nil {
		v.config.Log.Warn("Failed to write step summary", "err", err)
	}
}

func (v *vstest) findResultFiles(ctx context.Context) ([]resultFile, error) {
	result, err := v.search(ctx, v.config.Upload.SearchPath, v.searchOpts)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	var files []resultFile
	for _, path := range result.FilesToUpload {
		if !strings.EqualFold(filepath.Ext(path), trxExt) {
			continue
		}
		run, err := trx.ParseFile(path)
		if err != nil {
			v.config.Log.Warn("Skipping unreadable result file", "path", path, "err", err)
			continue
		}
		name := path
		if rel, err := filepath.Rel(result.RootDirectory, path); err == nil && result.RootDirectory != "" {
			name = filepath.ToSlash(rel)
		}
		files = append(files, resultFile{name: name, run: run})
	}
	return files, nil
}

func resultsTable(runID string, files []resultFile, summary trx.Summary) table.Writer {
	t := table.NewWriter()
	t.SetTitle(fmt.Sprintf("VSTest Results (%s)", runID))
	t.AppendHeader(table.Row{"Result File", "Outcome", "Total", "Passed", "Failed", "Not Executed"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Result File", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Total", Align: text.AlignRight},
		{Name: "Passed", Align: text.AlignRight},
		{Name: "Failed", Align: text.AlignRight},
		{Name: "Not Executed", Align: text.AlignRight},
	})

	for _, f := range files {
		c := f.run.Summary.Counters
		t.AppendRow(table.Row{
			f.name,
			f.run.Summary.Outcome,
			c.Total,
			c.Passed,
			c.Failed + c.Error + c.Timeout + c.Aborted,
			c.NotExecuted,
		})
	}

	t.AppendFooter(table.Row{
		"TOTAL",
		strings.ToUpper(summary.Status()),
		summary.Total,
		summary.Passed,
		summary.Failed,
		summary.NotExecuted,
	})
	return t
}

func failedTestsTable(failed []trx.UnitTestResult) table.Writer {
	t := table.NewWriter()
	t.SetTitle("Failed Tests")
	t.AppendHeader(table.Row{"Test", "Duration", "Error"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Test", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Error", WidthMax: 80, WidthMaxEnforcer: text.WrapSoft},
	})
	for _, r := range failed {
		t.AppendRow(table.Row{r.TestName, r.Duration, firstLine(r.Message)})
	}
	return t
}

// stepSummary renders the job summary markdown.
func stepSummary(runID string, files []resultFile, summary trx.Summary) string {
	var b strings.Builder
	icon := "✅"
	if summary.Status() == "fail" {
		icon = "❌"
	}
	fmt.Fprintf(&b, "### %s VSTest results\n\n", icon)
	fmt.Fprintf(&b, "%d passed, %d failed, %d not executed (run `%s`)\n\n",
		summary.Passed, summary.Failed, summary.NotExecuted, runID)
	b.WriteString(resultsTable(runID, files, summary).RenderMarkdown())
	b.WriteString("\n")

	if len(summary.FailedTests) > 0 {
		b.WriteString("\n<details><summary>Failed tests</summary>\n\n")
		b.WriteString(failedTestsTable(summary.FailedTests).RenderMarkdown())
		b.WriteString("\n\n</details>\n")
	}
	return b.String()
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		return s[:i]
	}
	return s
}
