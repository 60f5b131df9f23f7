package runner

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/postbox/packages/core/errdef"
	"github.com/abdul-hamid-achik/postbox/packages/core/model"
	"github.com/abdul-hamid-achik/postbox/packages/db"
	"github.com/abdul-hamid-achik/postbox/packages/export/metrics"
	"github.com/abdul-hamid-achik/postbox/packages/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	alice = "alice"
	bob   = "bob"
)

type fixture struct {
	runner     *Runner
	store      *db.Client
	collection *model.Collection
	calls      atomic.Int32
	metrics    *fakeMetrics
}

func newFixture(t *testing.T, fn http.TransportFunc, opts ...http.ExecutorOption) *fixture {
	t.Helper()
	store, err := db.NewClient("sqlite://" + filepath.Join(t.TempDir(), "postbox.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	f := &fixture{store: store, metrics: &fakeMetrics{}}
	counted := http.TransportFunc(func(ctx context.Context, out *http.Outbound) (*http.Inbound, error) {
		f.calls.Add(1)
		return fn(ctx, out)
	})
	f.runner = NewRunner(store,
		WithExecutor(http.NewExecutor(counted, opts...)),
		WithMetrics(f.metrics),
	)

	f.collection = f.createCollection(t, alice)
	return f
}

func (f *fixture) createCollection(t *testing.T, owner string) *model.Collection {
	t.Helper()
	var c *model.Collection
	err := f.store.WithSession(context.Background(), func(s *db.Session) error {
		var err error
		c, err = s.CreateCollection(context.Background(), &model.Collection{Owner: owner, Name: "api"})
		return err
	})
	require.NoError(t, err)
	return c
}

func (f *fixture) createEnvironment(t *testing.T, owner, name string, vars ...model.Variable) *model.EnvironmentSet {
	t.Helper()
	var set *model.EnvironmentSet
	err := f.store.WithSession(context.Background(), func(s *db.Session) error {
		var err error
		set, err = s.CreateEnvironment(context.Background(), &model.EnvironmentSet{Owner: owner, Name: name, Variables: vars})
		return err
	})
	require.NoError(t, err)
	return set
}

func (f *fixture) requests(t *testing.T, owner string) []*model.PersistedRequest {
	t.Helper()
	var list []*model.PersistedRequest
	err := f.store.WithSession(context.Background(), func(s *db.Session) error {
		var err error
		list, err = s.ListRequests(context.Background(), owner, "")
		return err
	})
	require.NoError(t, err)
	return list
}

func (f *fixture) attempts(t *testing.T, requestID string) []model.Attempt {
	t.Helper()
	var list []model.Attempt
	err := f.store.WithSession(context.Background(), func(s *db.Session) error {
		var err error
		list, err = s.ListAttempts(context.Background(), alice, requestID, 0)
		return err
	})
	require.NoError(t, err)
	return list
}

type fakeMetrics struct {
	mu         sync.Mutex
	executions []metrics.Execution
	inFlight   int
	unresolved int
}

func (m *fakeMetrics) ObserveExecution(e metrics.Execution) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executions = append(m.executions, e)
}

func (m *fakeMetrics) ExecutionStarted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight++
}

func (m *fakeMetrics) ExecutionFinished() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight--
}

func (m *fakeMetrics) ObserveUnresolved(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unresolved += count
}

func respond(status int, body string) http.TransportFunc {
	return func(ctx context.Context, out *http.Outbound) (*http.Inbound, error) {
		return &http.Inbound{
			StatusCode: status,
			Headers:    map[string]string{"Content-Type": "text/plain"},
			Body:       []byte(body),
		}, nil
	}
}

func get(url string) model.Definition {
	return model.Definition{Name: "probe", Method: model.MethodGet, URL: url}
}

func TestSubmit_Completed(t *testing.T) {
	f := newFixture(t, respond(200, "ok"))

	report, err := f.runner.Submit(context.Background(), SubmitInput{
		Owner:        alice,
		CollectionID: f.collection.ID,
		Definition:   get("https://api.example.com/health"),
		Execute:      true,
	})
	require.NoError(t, err)

	assert.Equal(t, model.StateCompleted, report.Outcome.State)
	assert.True(t, report.Executed())
	require.NotNil(t, report.Request)
	require.NotNil(t, report.Request.Response)
	assert.Equal(t, 200, report.Request.Response.Status)
	assert.Equal(t, "ok", report.Request.Response.Body)
	assert.Equal(t, int64(1), report.Request.Version)
	assert.Equal(t, int32(1), f.calls.Load())

	stored := f.requests(t, alice)
	require.Len(t, stored, 1)
	assert.Equal(t, "ok", stored[0].Response.Body)

	attempts := f.attempts(t, report.Request.ID)
	require.Len(t, attempts, 1)
	assert.Equal(t, model.StateCompleted, attempts[0].State)
	assert.Equal(t, 200, attempts[0].Status)

	require.Len(t, f.metrics.executions, 1)
	assert.Equal(t, "completed", f.metrics.executions[0].Outcome)
	assert.Equal(t, 0, f.metrics.inFlight)
}

func TestSubmit_ResolvesEnvironment(t *testing.T) {
	var seen string
	f := newFixture(t, func(ctx context.Context, out *http.Outbound) (*http.Inbound, error) {
		seen = out.URL
		return &http.Inbound{StatusCode: 200}, nil
	})
	set := f.createEnvironment(t, alice, "dev", model.Variable{Key: "userId", Value: "42"})

	report, err := f.runner.Submit(context.Background(), SubmitInput{
		Owner:        alice,
		CollectionID: f.collection.ID,
		Environment:  set.ID,
		Definition:   get("https://api.example.com/users/{{userId}}"),
		Execute:      true,
	})
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com/users/42", seen)
	assert.Equal(t, "https://api.example.com/users/{{userId}}", report.Request.URL)
	assert.Empty(t, report.Unresolved)
}

func TestSubmit_EnvironmentByName(t *testing.T) {
	var seen string
	f := newFixture(t, func(ctx context.Context, out *http.Outbound) (*http.Inbound, error) {
		seen = out.URL
		return &http.Inbound{StatusCode: 200}, nil
	})
	f.createEnvironment(t, alice, "staging",
		model.Variable{Key: "host", Value: "first.example.com"},
		model.Variable{Key: "host", Value: "second.example.com"},
	)

	_, err := f.runner.Submit(context.Background(), SubmitInput{
		Owner:        alice,
		CollectionID: f.collection.ID,
		Environment:  "staging",
		Definition:   get("https://{{host}}/v1"),
		Execute:      true,
	})
	require.NoError(t, err)
	assert.Equal(t, "https://second.example.com/v1", seen)
}

func TestSubmit_UnknownPlaceholdersStayVerbatim(t *testing.T) {
	var trace string
	f := newFixture(t, func(ctx context.Context, out *http.Outbound) (*http.Inbound, error) {
		trace = out.Header("X-Trace")
		return &http.Inbound{StatusCode: 204}, nil
	})

	def := get("https://api.example.com/items")
	def.Headers = []model.Header{{Key: "X-Trace", Value: "{{traceId}}"}}

	report, err := f.runner.Submit(context.Background(), SubmitInput{
		Owner:        alice,
		CollectionID: f.collection.ID,
		Definition:   def,
		Execute:      true,
	})
	require.NoError(t, err)

	assert.Equal(t, "{{traceId}}", trace)
	assert.Equal(t, []string{"traceId"}, report.Unresolved)
	assert.Equal(t, 1, f.metrics.unresolved)
	assert.Equal(t, model.StateCompleted, report.Outcome.State)
}

func TestSubmit_Timeout(t *testing.T) {
	f := newFixture(t, func(ctx context.Context, out *http.Outbound) (*http.Inbound, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}, http.WithExecutionTimeout(20*time.Millisecond))

	report, err := f.runner.Submit(context.Background(), SubmitInput{
		Owner:        alice,
		CollectionID: f.collection.ID,
		Definition:   get("https://slow.example.com"),
		Execute:      true,
	})
	require.NoError(t, err)

	assert.Equal(t, model.StateFailed, report.Outcome.State)
	assert.Equal(t, errdef.KindTimeout, report.Outcome.Kind)
	assert.Nil(t, report.Outcome.Result)
	require.NotNil(t, report.Request)
	assert.Nil(t, report.Request.Response)

	attempts := f.attempts(t, report.Request.ID)
	require.Len(t, attempts, 1)
	assert.Equal(t, string(errdef.KindTimeout), attempts[0].Kind)
}

func TestSubmit_PatchFailureDispatchesOnce(t *testing.T) {
	f := newFixture(t, func(ctx context.Context, out *http.Outbound) (*http.Inbound, error) {
		return nil, errors.New("connection reset by peer")
	})

	def := get("https://api.example.com/users/7")
	def.Method = model.MethodPatch
	body := `{"name":"x"}`
	def.Body = &body

	report, err := f.runner.Submit(context.Background(), SubmitInput{
		Owner:        alice,
		CollectionID: f.collection.ID,
		Definition:   def,
		Execute:      true,
	})
	require.NoError(t, err)

	assert.Equal(t, int32(1), f.calls.Load())
	assert.Equal(t, model.StateFailed, report.Outcome.State)
	assert.Equal(t, errdef.KindNetwork, report.Outcome.Kind)
}

func TestSubmit_AbortsBeforeDispatch(t *testing.T) {
	badJSON := `{"a":`
	tests := []struct {
		name  string
		input func(f *fixture) SubmitInput
		kind  errdef.Kind
	}{
		{
			name: "missing method",
			input: func(f *fixture) SubmitInput {
				return SubmitInput{Owner: alice, CollectionID: f.collection.ID, Execute: true,
					Definition: model.Definition{Name: "x", URL: "https://a.example.com"}}
			},
			kind: errdef.KindValidation,
		},
		{
			name: "relative url",
			input: func(f *fixture) SubmitInput {
				return SubmitInput{Owner: alice, CollectionID: f.collection.ID, Execute: true,
					Definition: get("/users")}
			},
			kind: errdef.KindValidation,
		},
		{
			name: "malformed json body",
			input: func(f *fixture) SubmitInput {
				def := get("https://a.example.com")
				def.Method = model.MethodPost
				def.Headers = []model.Header{{Key: "Content-Type", Value: "application/json"}}
				def.Body = &badJSON
				return SubmitInput{Owner: alice, CollectionID: f.collection.ID, Execute: true, Definition: def}
			},
			kind: errdef.KindMalformedBody,
		},
		{
			name: "unknown collection",
			input: func(f *fixture) SubmitInput {
				return SubmitInput{Owner: alice, CollectionID: "00000000-0000-4000-8000-000000000000", Execute: true,
					Definition: get("https://a.example.com")}
			},
			kind: errdef.KindNotFound,
		},
		{
			name: "collection of another user",
			input: func(f *fixture) SubmitInput {
				return SubmitInput{Owner: bob, CollectionID: f.collection.ID, Execute: true,
					Definition: get("https://a.example.com")}
			},
			kind: errdef.KindAuthorization,
		},
		{
			name: "unknown environment",
			input: func(f *fixture) SubmitInput {
				return SubmitInput{Owner: alice, CollectionID: f.collection.ID, Environment: "nope", Execute: true,
					Definition: get("https://a.example.com")}
			},
			kind: errdef.KindNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, respond(200, "ok"))

			report, err := f.runner.Submit(context.Background(), tt.input(f))
			require.Error(t, err)
			assert.Nil(t, report)
			assert.Equal(t, tt.kind, errdef.KindOf(err))
			assert.Zero(t, f.calls.Load())
			assert.Empty(t, f.requests(t, alice))
		})
	}
}

func TestSubmit_CanceledCommitsNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFixture(t, func(callCtx context.Context, out *http.Outbound) (*http.Inbound, error) {
		cancel()
		<-callCtx.Done()
		return nil, callCtx.Err()
	})

	report, err := f.runner.Submit(ctx, SubmitInput{
		Owner:        alice,
		CollectionID: f.collection.ID,
		Definition:   get("https://api.example.com"),
		Execute:      true,
	})
	require.Error(t, err)
	assert.Equal(t, errdef.KindCanceled, errdef.KindOf(err))
	require.NotNil(t, report)
	assert.Nil(t, report.Request)
	assert.Empty(t, f.requests(t, alice))
	assert.Empty(t, f.metrics.executions)
}

func TestSubmit_WithoutExecution(t *testing.T) {
	f := newFixture(t, respond(200, "ok"))

	report, err := f.runner.Submit(context.Background(), SubmitInput{
		Owner:        alice,
		CollectionID: f.collection.ID,
		Definition:   get("https://api.example.com"),
	})
	require.NoError(t, err)

	assert.False(t, report.Executed())
	assert.Equal(t, model.StatePending, report.Outcome.State)
	assert.Nil(t, report.Request.Response)
	assert.Zero(t, f.calls.Load())
	assert.Empty(t, f.attempts(t, report.Request.ID))
}

func TestRerun(t *testing.T) {
	var (
		mu     sync.Mutex
		status = 200
		fail   bool
	)
	f := newFixture(t, func(ctx context.Context, out *http.Outbound) (*http.Inbound, error) {
		mu.Lock()
		defer mu.Unlock()
		if fail {
			return nil, errdef.New(errdef.KindProtocol, "malformed HTTP response")
		}
		return &http.Inbound{StatusCode: status, Body: []byte("v" + out.Header("X-Rev"))}, nil
	})
	f.createEnvironment(t, alice, "rev2", model.Variable{Key: "rev", Value: "2"})

	def := get("https://api.example.com/doc")
	def.Headers = []model.Header{{Key: "X-Rev", Value: "{{rev}}"}}
	submitted, err := f.runner.Submit(context.Background(), SubmitInput{
		Owner: alice, CollectionID: f.collection.ID, Definition: def, Execute: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "v{{rev}}", submitted.Request.Response.Body)
	id := submitted.Request.ID

	t.Run("success overwrites the response", func(t *testing.T) {
		report, err := f.runner.Rerun(context.Background(), RerunInput{Owner: alice, RequestID: id, Environment: "rev2"})
		require.NoError(t, err)
		assert.Equal(t, model.StateCompleted, report.Outcome.State)
		assert.Equal(t, "v2", report.Request.Response.Body)
		assert.Equal(t, int64(2), report.Request.Version)
		assert.Equal(t, "{{rev}}", report.Request.Headers[0].Value)
	})

	t.Run("failure keeps the previous response", func(t *testing.T) {
		mu.Lock()
		fail = true
		mu.Unlock()

		report, err := f.runner.Rerun(context.Background(), RerunInput{Owner: alice, RequestID: id})
		require.NoError(t, err)
		assert.Equal(t, model.StateFailed, report.Outcome.State)
		assert.Equal(t, errdef.KindProtocol, report.Outcome.Kind)
		assert.Equal(t, "v2", report.Request.Response.Body)
		assert.Equal(t, int64(2), report.Request.Version)
	})

	t.Run("other users are rejected", func(t *testing.T) {
		before := f.calls.Load()
		_, err := f.runner.Rerun(context.Background(), RerunInput{Owner: bob, RequestID: id})
		assert.True(t, errdef.Is(err, errdef.KindAuthorization))
		assert.Equal(t, before, f.calls.Load())
	})

	attempts := f.attempts(t, id)
	require.Len(t, attempts, 3)
	assert.Equal(t, model.StateFailed, attempts[0].State)
}

func TestRerun_ConcurrentLastWriteWins(t *testing.T) {
	f := newFixture(t, respond(200, "ok"))
	submitted, err := f.runner.Submit(context.Background(), SubmitInput{
		Owner: alice, CollectionID: f.collection.ID, Definition: get("https://api.example.com"),
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.runner.Rerun(context.Background(), RerunInput{Owner: alice, RequestID: submitted.Request.ID})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stored := f.requests(t, alice)
	require.Len(t, stored, 1)
	assert.Equal(t, int64(5), stored[0].Version)
	assert.Equal(t, "ok", stored[0].Response.Body)
	assert.Len(t, f.attempts(t, submitted.Request.ID), 4)
}
