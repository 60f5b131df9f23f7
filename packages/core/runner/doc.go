// Package runner executes stored and submitted request definitions.
//
// Each execution walks the same pipeline:
//   - validate the definition as written
//   - resolve {{name}} placeholders against an optional environment set
//   - normalize the body for its body type
//   - dispatch exactly once through the HTTP executor
//   - record the outcome and commit it to the store
//
// Definitions are persisted with their placeholders intact; only the
// dispatched copy is resolved.
package runner
