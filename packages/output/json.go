package output

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/abdul-hamid-achik/postbox/packages/core/model"
	"github.com/abdul-hamid-achik/postbox/packages/core/runner"
	"github.com/abdul-hamid-achik/postbox/packages/stats"
)

// JSONOutput represents the complete JSON output structure
type JSONOutput struct {
	Executions []JSONExecution            `json:"executions,omitempty"`
	Attempts   map[string][]model.Attempt `json:"attempts,omitempty"`
	Stats      map[string]stats.Summary   `json:"stats,omitempty"`
	Errors     []string                   `json:"errors,omitempty"`
	Time       string                     `json:"time"`
}

// JSONExecution represents one pipeline run
type JSONExecution struct {
	Request    *model.PersistedRequest `json:"request,omitempty"`
	State      model.AttemptState      `json:"state"`
	Kind       string                  `json:"kind,omitempty"`
	Error      string                  `json:"error,omitempty"`
	Duration   float64                 `json:"duration"`
	Unresolved []string                `json:"unresolved,omitempty"`
}

// JSONFormatter buffers results and writes them as one JSON document
type JSONFormatter struct {
	writer io.Writer
	out    JSONOutput
	now    func() time.Time
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer: os.Stdout,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		if w != nil {
			f.writer = w
		}
	}
}

func (f *JSONFormatter) FormatReport(report *runner.Report) {
	if report == nil {
		return
	}
	exec := JSONExecution{
		Request:    report.Request,
		State:      report.Outcome.State,
		Kind:       string(report.Outcome.Kind),
		Duration:   float64(report.Outcome.Duration().Milliseconds()),
		Unresolved: report.Unresolved,
	}
	if report.Outcome.Err != nil {
		exec.Error = report.Outcome.Err.Error()
	}
	f.out.Executions = append(f.out.Executions, exec)
}

func (f *JSONFormatter) FormatAttempts(requestID string, attempts []model.Attempt) {
	if f.out.Attempts == nil {
		f.out.Attempts = make(map[string][]model.Attempt)
	}
	f.out.Attempts[requestID] = attempts
}

func (f *JSONFormatter) FormatStats(requestID string, summary stats.Summary) {
	if f.out.Stats == nil {
		f.out.Stats = make(map[string]stats.Summary)
	}
	f.out.Stats[requestID] = summary
}

func (f *JSONFormatter) FormatError(err error) {
	f.out.Errors = append(f.out.Errors, err.Error())
}

// Flush writes the accumulated JSON output
func (f *JSONFormatter) Flush() error {
	f.out.Time = f.now().Format(time.RFC3339)
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(f.out)
}
