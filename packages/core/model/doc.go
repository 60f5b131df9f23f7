// Package model defines the records postbox stores and exchanges:
// request definitions, execution results, environment sets, collections
// and execution attempts.
package model
