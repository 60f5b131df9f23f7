// Package recorder tracks the lifecycle of one execution attempt and shapes
// its outcome into the records postbox persists.
package recorder

import (
	"fmt"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/postbox/packages/core/errdef"
	"github.com/abdul-hamid-achik/postbox/packages/core/model"
	"github.com/google/uuid"
)

// Outcome is the terminal result of an attempt. Exactly one of Result and
// Err is set once the attempt finished.
type Outcome struct {
	State      model.AttemptState
	Result     *model.ExecutionResult
	Kind       errdef.Kind
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

func (o Outcome) Succeeded() bool {
	return o.State == model.StateCompleted && o.Result != nil
}

func (o Outcome) Duration() time.Duration {
	if o.StartedAt.IsZero() || o.FinishedAt.IsZero() {
		return 0
	}
	return o.FinishedAt.Sub(o.StartedAt)
}

// Attempt walks Pending -> Executing -> Completed or Failed. Terminal
// states are final.
type Attempt struct {
	mu      sync.Mutex
	now     func() time.Time
	outcome Outcome
}

// NewAttempt returns a pending attempt. A nil clock uses time.Now.
func NewAttempt(now func() time.Time) *Attempt {
	if now == nil {
		now = time.Now
	}
	return &Attempt{now: now, outcome: Outcome{State: model.StatePending}}
}

func (a *Attempt) State() model.AttemptState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.outcome.State
}

// Start moves a pending attempt to executing.
func (a *Attempt) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.transition(model.StatePending, model.StateExecuting); err != nil {
		return err
	}
	a.outcome.StartedAt = a.now()
	return nil
}

// Complete attaches result and moves the attempt to completed.
func (a *Attempt) Complete(result *model.ExecutionResult) error {
	if result == nil {
		return errdef.New(errdef.KindInternal, "complete attempt: result is required")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.transition(model.StateExecuting, model.StateCompleted); err != nil {
		return err
	}
	a.outcome.Result = result
	a.outcome.FinishedAt = a.now()
	return nil
}

// Fail records the classified execution error and moves the attempt to failed.
func (a *Attempt) Fail(err error) error {
	if err == nil {
		return errdef.New(errdef.KindInternal, "fail attempt: error is required")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if terr := a.transition(model.StateExecuting, model.StateFailed); terr != nil {
		return terr
	}
	a.outcome.Err = err
	a.outcome.Kind = errdef.KindOf(err)
	a.outcome.FinishedAt = a.now()
	return nil
}

// Outcome returns a snapshot of the attempt so far.
func (a *Attempt) Outcome() Outcome {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.outcome
}

func (a *Attempt) transition(from, to model.AttemptState) error {
	if a.outcome.State != from {
		return errdef.New(errdef.KindInternal, "illegal attempt transition %s -> %s", a.outcome.State, to)
	}
	a.outcome.State = to
	return nil
}

// Record shapes a new persisted request from def and outcome. Only a
// completed outcome attaches a response.
func Record(def model.Definition, owner, collectionID string, outcome Outcome) *model.PersistedRequest {
	rec := &model.PersistedRequest{
		Owner:        owner,
		CollectionID: collectionID,
		Definition:   def.Clone(),
	}
	if outcome.Succeeded() {
		rec.Response = outcome.Result
	}
	return rec
}

// Apply returns existing with its response replaced by a successful
// outcome. On failure the previous response is kept and changed is false.
func Apply(existing *model.PersistedRequest, outcome Outcome) (updated *model.PersistedRequest, changed bool) {
	out := *existing
	out.Definition = existing.Definition.Clone()
	if !outcome.Succeeded() {
		return &out, false
	}
	out.Response = outcome.Result
	return &out, true
}

// AttemptRow builds the statistics log entry for a finished outcome.
func AttemptRow(requestID, owner string, outcome Outcome) (model.Attempt, error) {
	if !outcome.State.Terminal() {
		return model.Attempt{}, fmt.Errorf("attempt for %s is %s, not finished", requestID, outcome.State)
	}
	row := model.Attempt{
		ID:         uuid.NewString(),
		RequestID:  requestID,
		Owner:      owner,
		State:      outcome.State,
		Duration:   outcome.Duration(),
		StartedAt:  outcome.StartedAt.UTC(),
		FinishedAt: outcome.FinishedAt.UTC(),
	}
	if outcome.Result != nil {
		row.Status = outcome.Result.Status
	}
	if outcome.Err != nil {
		row.Kind = string(outcome.Kind)
		row.Error = outcome.Err.Error()
	}
	return row, nil
}
