package model

import (
	"strings"
	"time"
)

// Method is an HTTP verb accepted in a request definition.
type Method string

const (
	MethodGet     Method = "GET"
	MethodPost    Method = "POST"
	MethodPut     Method = "PUT"
	MethodDelete  Method = "DELETE"
	MethodPatch   Method = "PATCH"
	MethodHead    Method = "HEAD"
	MethodOptions Method = "OPTIONS"
)

// Methods lists every supported verb in declaration order.
var Methods = []Method{
	MethodGet,
	MethodPost,
	MethodPut,
	MethodDelete,
	MethodPatch,
	MethodHead,
	MethodOptions,
}

func (m Method) Valid() bool {
	for _, known := range Methods {
		if m == known {
			return true
		}
	}
	return false
}

// BodyType tells the normalizer how to interpret the body before transmission.
type BodyType string

const (
	BodyRaw        BodyType = "raw"
	BodyFormData   BodyType = "form-data"
	BodyURLEncoded BodyType = "x-www-form-urlencoded"
	BodyBinary     BodyType = "binary"
)

var BodyTypes = []BodyType{BodyRaw, BodyFormData, BodyURLEncoded, BodyBinary}

func (b BodyType) Valid() bool {
	if b == "" {
		return true
	}
	for _, known := range BodyTypes {
		if b == known {
			return true
		}
	}
	return false
}

// Header is a single request header. Keys are not unique within a definition.
type Header struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

// Definition is a stored request as the user wrote it, placeholders included.
type Definition struct {
	Name        string   `json:"name" yaml:"name" validate:"required"`
	Description *string  `json:"description,omitempty" yaml:"description,omitempty"`
	Method      Method   `json:"method" yaml:"method" validate:"required,method"`
	URL         string   `json:"url" yaml:"url" validate:"required"`
	Headers     []Header `json:"headers" yaml:"headers" validate:"dive"`
	Body        *string  `json:"body,omitempty" yaml:"body,omitempty"`
	BodyType    BodyType `json:"bodyType,omitempty" yaml:"bodyType,omitempty" validate:"bodytype"`
}

// Header returns the last value set for key, compared case-insensitively.
func (d *Definition) Header(key string) (string, bool) {
	value, found := "", false
	for _, h := range d.Headers {
		if strings.EqualFold(h.Key, key) {
			value, found = h.Value, true
		}
	}
	return value, found
}

// Clone returns a deep copy so callers can work on a snapshot.
func (d Definition) Clone() Definition {
	out := d
	if d.Description != nil {
		desc := *d.Description
		out.Description = &desc
	}
	if d.Body != nil {
		body := *d.Body
		out.Body = &body
	}
	if d.Headers != nil {
		out.Headers = make([]Header, len(d.Headers))
		copy(out.Headers, d.Headers)
	}
	return out
}

// ExecutionResult is the captured response of one execution.
type ExecutionResult struct {
	Status    int               `json:"status"`
	Headers   map[string]string `json:"headers"`
	Body      string            `json:"body"`
	Timestamp time.Time         `json:"timestamp"`
}

// PersistedRequest is a definition owned by a user inside a collection,
// optionally carrying the response of its latest successful execution.
type PersistedRequest struct {
	ID           string `json:"id"`
	Owner        string `json:"owner"`
	CollectionID string `json:"collectionId"`
	Definition
	Response  *ExecutionResult `json:"response,omitempty"`
	Version   int64            `json:"version"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// Collection groups requests for a single owner.
type Collection struct {
	ID          string              `json:"id"`
	Owner       string              `json:"owner"`
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	CreatedAt   time.Time           `json:"createdAt"`
	Requests    []*PersistedRequest `json:"requests,omitempty"`
}

// Variable is one entry of an environment set.
type Variable struct {
	Key         string  `json:"key" yaml:"key"`
	Value       string  `json:"value" yaml:"value"`
	Description *string `json:"description,omitempty" yaml:"description,omitempty"`
}

// EnvironmentSet is a named, ordered list of variables owned by one user.
type EnvironmentSet struct {
	ID        string     `json:"id"`
	Owner     string     `json:"owner"`
	Name      string     `json:"name"`
	Variables []Variable `json:"variables"`
	CreatedAt time.Time  `json:"createdAt"`
}

// AttemptState is the lifecycle state of one execution attempt.
type AttemptState string

const (
	StatePending   AttemptState = "pending"
	StateExecuting AttemptState = "executing"
	StateCompleted AttemptState = "completed"
	StateFailed    AttemptState = "failed"
)

func (s AttemptState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Attempt is the log row written for every finished execution attempt.
type Attempt struct {
	ID         string        `json:"id"`
	RequestID  string        `json:"requestId"`
	Owner      string        `json:"owner"`
	State      AttemptState  `json:"state"`
	Kind       string        `json:"kind,omitempty"`
	Error      string        `json:"error,omitempty"`
	Status     int           `json:"status,omitempty"`
	Duration   time.Duration `json:"duration"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt"`
}
