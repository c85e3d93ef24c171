package runtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/justapithecus/crease/metrics"
	"github.com/justapithecus/crease/types"
)

// RunReport is the structured JSON report written by --report.
type RunReport struct {
	RunID       string              `json:"run_id"`
	Season      string              `json:"season"`
	Attempt     int                 `json:"attempt"`
	ParentRunID string              `json:"parent_run_id,omitempty"`
	Outcome     types.OutcomeStatus `json:"outcome"`
	Message     string              `json:"message"`
	Phase       Phase               `json:"phase"`
	ExitCode    int                 `json:"exit_code"`
	DurationMs  int64               `json:"duration_ms"`

	Tasks   *ReportTasks      `json:"tasks"`
	Tables  []ReportTable     `json:"tables"`
	Metrics *metrics.Snapshot `json:"metrics"`
}

// ReportTasks holds task graph stats in the report.
type ReportTasks struct {
	Executed     []string `json:"executed"`
	Skipped      []string `json:"skipped"`
	NotRequired  []string `json:"not_required,omitempty"`
	Failed       string   `json:"failed,omitempty"`
	NotAttempted []string `json:"not_attempted,omitempty"`
}

// ReportTable holds one committed table load in the report.
type ReportTable struct {
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	RowsIn     int    `json:"rows_in"`
	Duplicates int    `json:"duplicates"`
	Inserted   int64  `json:"inserted"`
	Skipped    int64  `json:"skipped"`
	DurationMs int64  `json:"duration_ms"`
}

// BuildRunReport composes a RunReport from a RunResult and metrics snapshot.
// The exitCode is the process exit code that will be returned to the caller.
func BuildRunReport(result *RunResult, snap metrics.Snapshot, exitCode int) *RunReport {
	report := &RunReport{
		RunID:      result.RunMeta.RunID,
		Season:     result.RunMeta.Season,
		Attempt:    result.RunMeta.Attempt,
		Outcome:    result.Outcome.Status,
		Message:    result.Outcome.Message,
		Phase:      result.Phase,
		ExitCode:   exitCode,
		DurationMs: result.Duration.Milliseconds(),
		Tables:     make([]ReportTable, 0, len(result.Loads)),
		Metrics:    &snap,
	}
	if result.RunMeta.ParentRunID != nil {
		report.ParentRunID = *result.RunMeta.ParentRunID
	}

	if t := result.Tasks; t != nil {
		report.Tasks = &ReportTasks{
			Executed:     idStrings(t.Executed),
			Skipped:      idStrings(t.Skipped),
			NotRequired:  idStrings(t.NotRequired),
			NotAttempted: idStrings(t.NotAttempted),
		}
		if t.Failed != nil {
			report.Tasks.Failed = t.Failed.String()
		}
	}

	for _, l := range result.Loads {
		report.Tables = append(report.Tables, ReportTable{
			Name:       l.Table,
			Kind:       string(l.Kind),
			RowsIn:     l.RowsIn,
			Duplicates: l.Duplicates,
			Inserted:   l.Inserted,
			Skipped:    l.Skipped,
			DurationMs: l.Duration.Milliseconds(),
		})
	}

	return report
}

func idStrings[T fmt.Stringer](ids []T) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

// WriteRunReport writes the report as JSON to the specified path.
// If path is "-", writes to stderr.
func WriteRunReport(report *RunReport, path string) error {
	if path == "" {
		return errors.New("report path must not be empty")
	}

	if path == "-" {
		if err := writeRunReportTo(report, os.Stderr); err != nil {
			return fmt.Errorf("failed to write report to stderr: %w", err)
		}
		return nil
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	if err := writeRunReportTo(report, f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	return f.Close()
}

// writeRunReportTo writes report JSON to any writer.
func writeRunReportTo(report *RunReport, w io.Writer) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
