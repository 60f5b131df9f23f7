package recorder

import (
	"errors"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/postbox/packages/core/errdef"
	"github.com/abdul-hamid-achik/postbox/packages/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func steppingClock(start time.Time, step time.Duration) func() time.Time {
	now := start
	return func() time.Time {
		t := now
		now = now.Add(step)
		return t
	}
}

func okResult() *model.ExecutionResult {
	return &model.ExecutionResult{Status: 200, Body: "ok", Headers: map[string]string{}, Timestamp: time.Unix(1700000000, 0).UTC()}
}

func TestAttemptCompletes(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := NewAttempt(steppingClock(start, 150*time.Millisecond))
	assert.Equal(t, model.StatePending, a.State())

	require.NoError(t, a.Start())
	assert.Equal(t, model.StateExecuting, a.State())
	require.NoError(t, a.Complete(okResult()))

	out := a.Outcome()
	assert.Equal(t, model.StateCompleted, out.State)
	assert.True(t, out.Succeeded())
	assert.Equal(t, 150*time.Millisecond, out.Duration())
	assert.Empty(t, out.Kind)
}

func TestAttemptFails(t *testing.T) {
	a := NewAttempt(nil)
	require.NoError(t, a.Start())
	require.NoError(t, a.Fail(errdef.Wrap(errdef.KindTimeout, errors.New("deadline"), "GET")))

	out := a.Outcome()
	assert.Equal(t, model.StateFailed, out.State)
	assert.Equal(t, errdef.KindTimeout, out.Kind)
	assert.Nil(t, out.Result)
	assert.False(t, out.Succeeded())
}

func TestAttemptIllegalTransitions(t *testing.T) {
	a := NewAttempt(nil)
	assert.Error(t, a.Complete(okResult()), "pending cannot complete")
	assert.Error(t, a.Fail(errors.New("x")), "pending cannot fail")

	require.NoError(t, a.Start())
	assert.Error(t, a.Start(), "executing cannot start again")

	require.NoError(t, a.Complete(okResult()))
	assert.Error(t, a.Fail(errors.New("late")), "terminal state is final")
	assert.Error(t, a.Complete(okResult()), "terminal state is final")
	assert.Equal(t, model.StateCompleted, a.State())
}

func TestRecord(t *testing.T) {
	body := `{"a":1}`
	def := model.Definition{Name: "create", Method: model.MethodPost, URL: "https://x.io", Body: &body}

	a := NewAttempt(nil)
	require.NoError(t, a.Start())
	require.NoError(t, a.Complete(okResult()))

	rec := Record(def, "user-1", "col-1", a.Outcome())
	assert.Equal(t, "user-1", rec.Owner)
	assert.Equal(t, "col-1", rec.CollectionID)
	require.NotNil(t, rec.Response)
	assert.Equal(t, 200, rec.Response.Status)
	assert.Equal(t, "ok", rec.Response.Body)

	*def.Body = "changed"
	assert.Equal(t, `{"a":1}`, *rec.Body)
}

func TestRecordFailedHasNoResponse(t *testing.T) {
	a := NewAttempt(nil)
	require.NoError(t, a.Start())
	require.NoError(t, a.Fail(errdef.New(errdef.KindNetwork, "refused")))

	rec := Record(model.Definition{Name: "x", Method: model.MethodGet, URL: "https://x.io"}, "u", "c", a.Outcome())
	assert.Nil(t, rec.Response)

	rec = Record(model.Definition{Name: "x", Method: model.MethodGet, URL: "https://x.io"}, "u", "c", Outcome{State: model.StatePending})
	assert.Nil(t, rec.Response)
}

func TestApply(t *testing.T) {
	previous := &model.ExecutionResult{Status: 201, Body: "old"}
	existing := &model.PersistedRequest{ID: "r1", Owner: "u", Response: previous, Version: 3}

	failed := Outcome{State: model.StateFailed, Err: errors.New("x"), Kind: errdef.KindTimeout}
	updated, changed := Apply(existing, failed)
	assert.False(t, changed)
	assert.Same(t, previous, updated.Response)

	done := Outcome{State: model.StateCompleted, Result: okResult()}
	updated, changed = Apply(existing, done)
	assert.True(t, changed)
	assert.Equal(t, "ok", updated.Response.Body)
	assert.Equal(t, "old", existing.Response.Body)
	assert.Equal(t, int64(3), updated.Version)
}

func TestAttemptRow(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := NewAttempt(steppingClock(start, time.Second))
	require.NoError(t, a.Start())
	require.NoError(t, a.Fail(errdef.New(errdef.KindProtocol, "malformed response")))

	row, err := AttemptRow("r1", "u1", a.Outcome())
	require.NoError(t, err)
	assert.NotEmpty(t, row.ID)
	assert.Equal(t, "r1", row.RequestID)
	assert.Equal(t, model.StateFailed, row.State)
	assert.Equal(t, string(errdef.KindProtocol), row.Kind)
	assert.Equal(t, "malformed response", row.Error)
	assert.Equal(t, time.Second, row.Duration)

	_, err = AttemptRow("r1", "u1", Outcome{State: model.StateExecuting})
	assert.Error(t, err)
}
