package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/postbox/packages/core/model"
	"github.com/abdul-hamid-achik/postbox/packages/core/runner"
	"github.com/abdul-hamid-achik/postbox/packages/stats"
	"github.com/fatih/color"
)

const maxBodyPreview = 2000

// truncate shortens s to maxLen bytes for display
func truncate(s string, maxLen int) string {
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}

type ConsoleFormatter struct {
	writer  io.Writer
	verbose bool
	noColor bool

	green, red, yellow, cyan, bold *color.Color
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
		green:  color.New(color.FgGreen),
		red:    color.New(color.FgRed),
		yellow: color.New(color.FgYellow),
		cyan:   color.New(color.FgCyan),
		bold:   color.New(color.Bold),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		for _, c := range []*color.Color{f.green, f.red, f.yellow, f.cyan, f.bold} {
			c.DisableColor()
		}
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		if w != nil {
			f.writer = w
		}
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

func (f *ConsoleFormatter) FormatReport(report *runner.Report) {
	if report == nil {
		return
	}
	name, method, target := "", "", ""
	if report.Request != nil {
		name, method, target = report.Request.Name, string(report.Request.Method), report.Request.URL
	}

	outcome := report.Outcome
	switch {
	case outcome.Succeeded():
		fmt.Fprintf(f.writer, "  %s %s %s %s %s\n",
			f.green.Sprint("✓"), method, name,
			statusColor(f, outcome.Result.Status).Sprint(outcome.Result.Status),
			f.cyan.Sprintf("(%s)", formatLatency(outcome.Duration())))
	case outcome.Err != nil:
		fmt.Fprintf(f.writer, "  %s %s %s %s\n",
			f.red.Sprint("✗"), method, name, f.red.Sprintf("%s: %v", outcome.Kind, outcome.Err))
	default:
		fmt.Fprintf(f.writer, "  %s %s %s %s\n", f.yellow.Sprint("-"), method, name, f.yellow.Sprint("(saved, not executed)"))
	}

	if len(report.Unresolved) > 0 {
		fmt.Fprintf(f.writer, "    %s unresolved: %s\n", f.yellow.Sprint("!"), strings.Join(report.Unresolved, ", "))
	}
	if report.Request != nil {
		fmt.Fprintf(f.writer, "    id: %s  version: %d\n", report.Request.ID, report.Request.Version)
	}
	if !f.verbose {
		return
	}

	fmt.Fprintf(f.writer, "    URL: %s\n", target)
	if outcome.Result == nil {
		return
	}
	keys := make([]string, 0, len(outcome.Result.Headers))
	for k := range outcome.Result.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(f.writer, "    %s: %s\n", f.bold.Sprint(k), outcome.Result.Headers[k])
	}
	if outcome.Result.Body != "" {
		fmt.Fprintf(f.writer, "\n%s\n", truncate(outcome.Result.Body, maxBodyPreview))
	}
}

func (f *ConsoleFormatter) FormatAttempts(requestID string, attempts []model.Attempt) {
	f.bold.Fprintf(f.writer, "ATTEMPTS %s\n", requestID)
	fmt.Fprintln(f.writer, strings.Repeat("─", 40))
	if len(attempts) == 0 {
		fmt.Fprintln(f.writer, "  (none)")
		return
	}
	for _, a := range attempts {
		started := a.StartedAt.Local().Format(time.DateTime)
		if a.State == model.StateCompleted {
			fmt.Fprintf(f.writer, "  %s %s  %s  %s\n", f.green.Sprint("✓"), started,
				statusColor(f, a.Status).Sprint(a.Status), formatLatency(a.Duration))
			continue
		}
		fmt.Fprintf(f.writer, "  %s %s  %s  %s\n", f.red.Sprint("✗"), started,
			f.red.Sprint(a.Kind), formatLatency(a.Duration))
		if f.verbose && a.Error != "" {
			fmt.Fprintf(f.writer, "      %s\n", a.Error)
		}
	}
}

func (f *ConsoleFormatter) FormatStats(requestID string, summary stats.Summary) {
	fmt.Fprintln(f.writer)
	f.bold.Fprintf(f.writer, "EXECUTION SUMMARY %s\n", requestID)
	fmt.Fprintln(f.writer, strings.Repeat("─", 40))

	fmt.Fprintf(f.writer, "Total:      ")
	f.bold.Fprintf(f.writer, "%s", formatNumber(summary.Total))
	fmt.Fprintln(f.writer, " attempts")

	fmt.Fprintf(f.writer, "Completed:  ")
	f.green.Fprintf(f.writer, "%s", formatNumber(summary.Completed))
	fmt.Fprintf(f.writer, " (%.1f%%)\n", summary.SuccessRate)

	fmt.Fprintf(f.writer, "Failed:     ")
	if summary.Failed > 0 {
		f.red.Fprintf(f.writer, "%s\n", formatNumber(summary.Failed))
	} else {
		fmt.Fprintf(f.writer, "%s\n", formatNumber(summary.Failed))
	}

	if len(summary.ErrorKinds) > 0 {
		kinds := make([]string, 0, len(summary.ErrorKinds))
		for k := range summary.ErrorKinds {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		for _, k := range kinds {
			fmt.Fprintf(f.writer, "  %-20s %s\n", k, formatNumber(summary.ErrorKinds[k]))
		}
	}

	if len(summary.StatusCodes) > 0 {
		codes := make([]int, 0, len(summary.StatusCodes))
		for c := range summary.StatusCodes {
			codes = append(codes, c)
		}
		sort.Ints(codes)
		fmt.Fprintln(f.writer)
		f.bold.Fprintln(f.writer, "STATUS CODES")
		for _, c := range codes {
			fmt.Fprintf(f.writer, "  %s  %s\n", statusColor(f, c).Sprint(c), formatNumber(summary.StatusCodes[c]))
		}
	}

	if summary.Total == 0 {
		fmt.Fprintln(f.writer)
		return
	}
	fmt.Fprintln(f.writer)
	f.bold.Fprintln(f.writer, "LATENCY (ms)")
	fmt.Fprintf(f.writer, "  p50: %-6s | p95: %-6s | p99: %-6s | max: %s\n",
		formatLatencyMs(summary.P50),
		formatLatencyMs(summary.P95),
		formatLatencyMs(summary.P99),
		formatLatencyMs(summary.Max))
	fmt.Fprintf(f.writer, "  min: %-6s | mean: %-5s | stddev: %s\n",
		formatLatencyMs(summary.Min),
		formatLatencyMs(summary.Mean),
		formatLatencyMs(summary.StdDev))
	fmt.Fprintln(f.writer)
}

func (f *ConsoleFormatter) FormatError(err error) {
	fmt.Fprintf(f.writer, "%s %v\n", f.red.Sprint("Error:"), err)
}

func (f *ConsoleFormatter) Flush() error {
	return nil
}

func statusColor(f *ConsoleFormatter, status int) *color.Color {
	switch {
	case status >= 500:
		return f.red
	case status >= 400:
		return f.yellow
	}
	return f.green
}
