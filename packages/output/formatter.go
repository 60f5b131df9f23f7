package output

import (
	"fmt"
	"io"

	"github.com/abdul-hamid-achik/postbox/packages/core/model"
	"github.com/abdul-hamid-achik/postbox/packages/core/runner"
	"github.com/abdul-hamid-achik/postbox/packages/stats"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Formatter interface for all output formatters
type Formatter interface {
	FormatReport(report *runner.Report)
	FormatAttempts(requestID string, attempts []model.Attempt)
	FormatStats(requestID string, summary stats.Summary)
	FormatError(err error)
	// Flush writes anything buffered. Console output is written eagerly.
	Flush() error
}

// New returns the formatter named by format.
func New(format string, w io.Writer, verbose, noColor bool) (Formatter, error) {
	switch format {
	case "", FormatConsole:
		return NewConsoleFormatter(WithWriter(w), WithVerbose(verbose), WithNoColor(noColor)), nil
	case FormatJSON:
		return NewJSONFormatter(JSONWithWriter(w)), nil
	}
	return nil, fmt.Errorf("unknown output format %q (expected %s or %s)", format, FormatConsole, FormatJSON)
}
