package runner

import (
	"context"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/postbox/packages/core/env"
	"github.com/abdul-hamid-achik/postbox/packages/core/errdef"
	"github.com/abdul-hamid-achik/postbox/packages/core/model"
	"github.com/abdul-hamid-achik/postbox/packages/core/request"
	"github.com/abdul-hamid-achik/postbox/packages/db"
	"github.com/abdul-hamid-achik/postbox/packages/export/metrics"
	"github.com/abdul-hamid-achik/postbox/packages/http"
	"github.com/abdul-hamid-achik/postbox/packages/logger"
	"github.com/abdul-hamid-achik/postbox/packages/recorder"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

type Runner struct {
	store    *db.Client
	executor *http.Executor
	metrics  metrics.Recorder
	log      logger.Logger
	now      func() time.Time
}

type Option func(*Runner)

// WithExecutor replaces the default executor, which dispatches through a
// net/http client with default settings.
func WithExecutor(e *http.Executor) Option {
	return func(r *Runner) {
		if e != nil {
			r.executor = e
		}
	}
}

func WithMetrics(m metrics.Recorder) Option {
	return func(r *Runner) {
		r.metrics = metrics.EnsureRecorder(m)
	}
}

func WithLogger(l logger.Logger) Option {
	return func(r *Runner) {
		r.log = logger.EnsureLogger(l)
	}
}

// WithClock sets the clock used for attempt timing.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

func NewRunner(store *db.Client, opts ...Option) *Runner {
	r := &Runner{
		store:   store,
		metrics: metrics.NoOpRecorder{},
		log:     logger.NewNoOpLogger(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.executor == nil {
		r.executor = http.NewExecutor(nil)
	}
	r.log = r.log.WithComponent("runner")
	return r
}

// SubmitInput describes a new request to store and optionally execute.
type SubmitInput struct {
	Owner        string
	CollectionID string
	// Environment is an environment set id or name. Empty means none.
	Environment string
	Definition  model.Definition
	Execute     bool
}

// RerunInput names a stored request to execute again.
type RerunInput struct {
	Owner       string
	RequestID   string
	Environment string
}

// Report is the result of one pipeline run. Request is the committed
// record; it is nil when nothing was committed. Outcome carries the
// execution classification, which is not returned as an error.
type Report struct {
	Request    *model.PersistedRequest
	Outcome    recorder.Outcome
	Unresolved []string
}

// Executed reports whether an outbound call was made.
func (r *Report) Executed() bool {
	return r.Outcome.State.Terminal()
}

// Submit validates, resolves, normalizes and (when in.Execute is set)
// executes a new definition, then commits it under in.CollectionID.
// Validation, malformed body, not-found and authorization errors are
// returned before any network call or write.
func (r *Runner) Submit(ctx context.Context, in SubmitInput) (*Report, error) {
	def := in.Definition.Clone()
	if err := request.Validate(&def); err != nil {
		return nil, err
	}

	var set *model.EnvironmentSet
	err := r.store.WithSession(ctx, func(s *db.Session) error {
		if _, err := s.GetCollection(ctx, in.Owner, in.CollectionID); err != nil {
			return err
		}
		var err error
		set, err = loadEnvironment(ctx, s, in.Owner, in.Environment)
		return err
	})
	if err != nil {
		return nil, err
	}

	exec, unresolved, err := r.prepare(def, set)
	if err != nil {
		return nil, err
	}

	report := &Report{Unresolved: unresolved, Outcome: recorder.Outcome{State: model.StatePending}}
	if in.Execute {
		report.Outcome = r.execute(ctx, def.Method, exec)
		if errdef.Is(report.Outcome.Err, errdef.KindCanceled) {
			r.log.Warn("execution canceled, nothing committed", "collection", in.CollectionID, "name", def.Name)
			return report, report.Outcome.Err
		}
	}

	rec := recorder.Record(def, in.Owner, in.CollectionID, report.Outcome)
	err = r.store.WithSession(ctx, func(s *db.Session) error {
		return s.Tx(ctx, func(tx *db.Session) error {
			created, err := tx.CreateRequest(ctx, rec)
			if err != nil {
				return err
			}
			report.Request = created
			return appendAttempt(ctx, tx, created.ID, in.Owner, report.Outcome)
		})
	})
	if err != nil {
		r.log.Error("commit submitted request", "collection", in.CollectionID, "error", err)
		return nil, err
	}

	r.log.Info("request submitted",
		"id", report.Request.ID,
		"method", string(def.Method),
		"state", string(report.Outcome.State),
		"kind", string(report.Outcome.Kind),
	)
	return report, nil
}

// Rerun executes the stored definition of in.RequestID. A successful
// execution overwrites the stored response; a failed one leaves it as is.
// Concurrent reruns of one request are last-write-wins.
func (r *Runner) Rerun(ctx context.Context, in RerunInput) (*Report, error) {
	var (
		stored *model.PersistedRequest
		set    *model.EnvironmentSet
	)
	err := r.store.WithSession(ctx, func(s *db.Session) error {
		var err error
		if stored, err = s.GetRequest(ctx, in.Owner, in.RequestID); err != nil {
			return err
		}
		set, err = loadEnvironment(ctx, s, in.Owner, in.Environment)
		return err
	})
	if err != nil {
		return nil, err
	}

	def := stored.Definition.Clone()
	if err := request.Validate(&def); err != nil {
		return nil, err
	}
	exec, unresolved, err := r.prepare(def, set)
	if err != nil {
		return nil, err
	}

	report := &Report{Unresolved: unresolved}
	report.Outcome = r.execute(ctx, def.Method, exec)
	if errdef.Is(report.Outcome.Err, errdef.KindCanceled) {
		r.log.Warn("execution canceled, nothing committed", "id", in.RequestID)
		return report, report.Outcome.Err
	}

	err = r.store.WithSession(ctx, func(s *db.Session) error {
		return s.Tx(ctx, func(tx *db.Session) error {
			if report.Outcome.Succeeded() {
				saved, err := tx.SaveResult(ctx, in.Owner, in.RequestID, report.Outcome.Result)
				if err != nil {
					return err
				}
				report.Request = saved
			} else {
				current, err := tx.GetRequest(ctx, in.Owner, in.RequestID)
				if err != nil {
					return err
				}
				report.Request, _ = recorder.Apply(current, report.Outcome)
			}
			return appendAttempt(ctx, tx, in.RequestID, in.Owner, report.Outcome)
		})
	})
	if err != nil {
		r.log.Error("commit rerun", "id", in.RequestID, "error", err)
		return nil, err
	}

	r.log.Info("request executed",
		"id", in.RequestID,
		"method", string(def.Method),
		"state", string(report.Outcome.State),
		"kind", string(report.Outcome.Kind),
	)
	return report, nil
}

// prepare resolves def against set and normalizes the result. Unresolved
// placeholders are reported but do not fail the run.
func (r *Runner) prepare(def model.Definition, set *model.EnvironmentSet) (*request.Executable, []string, error) {
	resolver := env.ForSet(set)

	sources := append([]string{def.URL}, lo.Map(def.Headers, func(h model.Header, _ int) string { return h.Value })...)
	if def.Body != nil {
		sources = append(sources, *def.Body)
	}
	unresolved := lo.Uniq(lo.FlatMap(sources, func(s string, _ int) []string { return resolver.Unresolved(s) }))
	if len(unresolved) > 0 {
		r.log.Warn("unresolved placeholders left verbatim", "name", def.Name, "placeholders", strings.Join(unresolved, ","))
		r.metrics.ObserveUnresolved(len(unresolved))
	}

	resolved := resolver.ResolveDefinition(def)
	exec, err := request.Normalize(&resolved)
	if err != nil {
		return nil, unresolved, err
	}
	return exec, unresolved, nil
}

// execute makes the single outbound call and returns the terminal outcome.
func (r *Runner) execute(ctx context.Context, method model.Method, exec *request.Executable) recorder.Outcome {
	attempt := recorder.NewAttempt(r.now)
	if err := attempt.Start(); err != nil {
		return recorder.Outcome{State: model.StateFailed, Kind: errdef.KindOf(err), Err: err}
	}

	r.metrics.ExecutionStarted()
	result, err := r.executor.Execute(ctx, exec)
	r.metrics.ExecutionFinished()

	if err != nil {
		_ = attempt.Fail(err)
		r.log.Debug("execution failed", "method", string(method), "url", exec.URL, "error", err)
	} else {
		_ = attempt.Complete(result)
	}
	outcome := attempt.Outcome()

	if outcome.Kind != errdef.KindCanceled {
		e := metrics.Execution{
			Method:   string(method),
			Outcome:  string(outcome.State),
			Kind:     string(outcome.Kind),
			Duration: outcome.Duration(),
		}
		if outcome.Result != nil {
			e.Status = outcome.Result.Status
		}
		r.metrics.ObserveExecution(e)
	}
	return outcome
}

// loadEnvironment looks up ref as an id when it parses as a UUID and as a
// name otherwise. An empty ref yields no environment.
func loadEnvironment(ctx context.Context, s *db.Session, owner, ref string) (*model.EnvironmentSet, error) {
	if ref == "" {
		return nil, nil
	}
	if uuid.Validate(ref) == nil {
		return s.GetEnvironment(ctx, owner, ref)
	}
	return s.FindEnvironment(ctx, owner, ref)
}

func appendAttempt(ctx context.Context, s *db.Session, requestID, owner string, outcome recorder.Outcome) error {
	if !outcome.State.Terminal() {
		return nil
	}
	row, err := recorder.AttemptRow(requestID, owner, outcome)
	if err != nil {
		return errdef.Wrap(errdef.KindInternal, err, "build attempt row")
	}
	return s.AppendAttempt(ctx, row)
}
