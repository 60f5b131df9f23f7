package http

import (
	"context"
	"errors"
	"time"

	"github.com/abdul-hamid-achik/postbox/packages/core/errdef"
	"github.com/abdul-hamid-achik/postbox/packages/core/model"
	"github.com/abdul-hamid-achik/postbox/packages/core/request"
	"golang.org/x/time/rate"
)

// Executor dispatches executables through a Transport, exactly once each.
type Executor struct {
	transport Transport
	timeout   time.Duration
	limiter   *rate.Limiter
	now       func() time.Time
}

type ExecutorOption func(*Executor)

// NewExecutor returns an executor over transport. A nil transport uses NewClient().
func NewExecutor(transport Transport, opts ...ExecutorOption) *Executor {
	if transport == nil {
		transport = NewClient()
	}
	e := &Executor{
		transport: transport,
		timeout:   DefaultTimeout,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithExecutionTimeout bounds every execution. Zero disables the bound.
func WithExecutionTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.timeout = d
	}
}

// WithRateLimit caps outbound dispatches per second across all executions.
func WithRateLimit(perSecond float64, burst int) ExecutorOption {
	return func(e *Executor) {
		if perSecond <= 0 {
			e.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

func WithClock(now func() time.Time) ExecutorOption {
	return func(e *Executor) {
		if now != nil {
			e.now = now
		}
	}
}

// Execute performs the single dispatch of exec and captures the response.
// Failures are TimeoutError, NetworkError, ProtocolError or CanceledError.
func (e *Executor) Execute(ctx context.Context, exec *request.Executable) (*model.ExecutionResult, error) {
	if exec == nil {
		return nil, errdef.New(errdef.KindInternal, "nothing to execute")
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, classify(ctx, ctx.Err(), errdef.KindCanceled, "wait for rate limit")
			}
			return nil, errdef.Wrap(errdef.KindTimeout, err, "wait for rate limit")
		}
	}

	callCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	in, err := e.transport.RoundTrip(callCtx, NewOutbound(exec))
	if err != nil {
		return nil, e.classifyFailure(ctx, callCtx, err)
	}

	return &model.ExecutionResult{
		Status:    in.StatusCode,
		Headers:   in.Headers,
		Body:      string(in.Body),
		Timestamp: e.now().UTC(),
	}, nil
}

// classifyFailure gives the caller's cancellation precedence over whatever
// the transport reported, then the execution bound.
func (e *Executor) classifyFailure(parent, callCtx context.Context, err error) error {
	switch {
	case errors.Is(parent.Err(), context.Canceled):
		return errdef.Wrap(errdef.KindCanceled, err, "execution canceled")
	case errors.Is(parent.Err(), context.DeadlineExceeded):
		return errdef.Wrap(errdef.KindTimeout, err, "execution deadline exceeded")
	case errors.Is(callCtx.Err(), context.DeadlineExceeded):
		return errdef.Wrap(errdef.KindTimeout, err, "execution timed out after "+e.timeout.String())
	}
	return classify(callCtx, err, errdef.KindNetwork, "execute")
}
