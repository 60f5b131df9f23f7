package http

import "time"

// Inbound is a fully received response.
type Inbound struct {
	StatusCode int
	Status     string
	// Headers maps each canonical header name to its values joined with ", ".
	Headers  map[string]string
	Body     []byte
	Duration time.Duration
}
