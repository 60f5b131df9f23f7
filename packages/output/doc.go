// Package output renders execution reports, attempt logs and statistics
// for the CLI.
//
// Supported output formats:
//   - Console: Human-readable colored terminal output
//   - JSON: Machine-readable JSON output
//
// Each formatter implements the Formatter interface. The JSON formatter
// accumulates entries and writes them on Flush.
package output
