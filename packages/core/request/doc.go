// Package request validates stored request definitions and turns resolved
// definitions into executable requests.
//
// Validation runs before variable resolution and checks the shape of the
// definition (name, method, URL presence, body type). Normalization runs
// after resolution and checks that the URL is an absolute http(s) URL and
// that the body can be interpreted according to its body type.
package request
