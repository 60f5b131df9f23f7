package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/postbox/packages/core/errdef"
	"github.com/abdul-hamid-achik/postbox/packages/core/model"
	"github.com/abdul-hamid-achik/postbox/packages/core/request"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("CEST", 2*60*60))

func executable(method, url string) *request.Executable {
	return &request.Executable{Method: method, URL: url}
}

func TestExecutor_Success(t *testing.T) {
	transport := TransportFunc(func(ctx context.Context, out *Outbound) (*Inbound, error) {
		return &Inbound{StatusCode: 200, Headers: map[string]string{"Content-Type": "text/plain"}, Body: []byte("ok")}, nil
	})
	exec := NewExecutor(transport, WithClock(func() time.Time { return fixedNow }))

	result, err := exec.Execute(context.Background(), executable("GET", "https://api.example.com"))

	require.NoError(t, err)
	assert.Equal(t, 200, result.Status)
	assert.Equal(t, "ok", result.Body)
	assert.Equal(t, "text/plain", result.Headers["Content-Type"])
	assert.Equal(t, fixedNow.UTC(), result.Timestamp)
	assert.Equal(t, time.UTC, result.Timestamp.Location())
}

func TestExecutor_NonSuccessStatusIsAResponse(t *testing.T) {
	transport := TransportFunc(func(ctx context.Context, out *Outbound) (*Inbound, error) {
		return &Inbound{StatusCode: 503, Body: []byte("unavailable")}, nil
	})

	result, err := NewExecutor(transport).Execute(context.Background(), executable("GET", "https://api.example.com"))

	require.NoError(t, err)
	assert.Equal(t, 503, result.Status)
}

func TestExecutor_Timeout(t *testing.T) {
	transport := TransportFunc(func(ctx context.Context, out *Outbound) (*Inbound, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	exec := NewExecutor(transport, WithExecutionTimeout(20*time.Millisecond))

	result, err := exec.Execute(context.Background(), executable("GET", "https://slow.example.com"))

	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, errdef.KindTimeout, errdef.KindOf(err))
}

func TestExecutor_CallerCancellation(t *testing.T) {
	started := make(chan struct{})
	transport := TransportFunc(func(ctx context.Context, out *Outbound) (*Inbound, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := NewExecutor(transport).Execute(ctx, executable("GET", "https://api.example.com"))

	require.Error(t, err)
	assert.Equal(t, errdef.KindCanceled, errdef.KindOf(err))
}

func TestExecutor_PatchFailureDispatchesOnce(t *testing.T) {
	var calls atomic.Int32
	transport := TransportFunc(func(ctx context.Context, out *Outbound) (*Inbound, error) {
		calls.Add(1)
		assert.Equal(t, "PATCH", out.Method)
		return nil, errdef.Wrap(errdef.KindNetwork, errors.New("connection reset by peer"), "PATCH")
	})

	_, err := NewExecutor(transport).Execute(context.Background(), executable("PATCH", "https://api.example.com/users/1"))

	require.Error(t, err)
	assert.Equal(t, errdef.KindNetwork, errdef.KindOf(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestExecutor_PatchServerErrorDispatchesOnce(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	result, err := NewExecutor(NewClient()).Execute(context.Background(), executable("PATCH", server.URL))

	require.NoError(t, err)
	assert.Equal(t, 502, result.Status)
	assert.Equal(t, int32(1), calls.Load())
}

func TestExecutor_UnclassifiedTransportErrorIsNetwork(t *testing.T) {
	transport := TransportFunc(func(ctx context.Context, out *Outbound) (*Inbound, error) {
		return nil, errors.New("boom")
	})

	_, err := NewExecutor(transport).Execute(context.Background(), executable("GET", "https://api.example.com"))

	assert.Equal(t, errdef.KindNetwork, errdef.KindOf(err))
}

func TestExecutor_DoesNotAliasExecutable(t *testing.T) {
	transport := TransportFunc(func(ctx context.Context, out *Outbound) (*Inbound, error) {
		out.Headers[0].Value = "mutated"
		out.Body[0] = 'X'
		return &Inbound{StatusCode: 204}, nil
	})
	exe := &request.Executable{
		Method:  "POST",
		URL:     "https://api.example.com",
		Headers: []model.Header{{Key: "Accept", Value: "*/*"}},
		Body:    []byte("body"),
	}

	_, err := NewExecutor(transport).Execute(context.Background(), exe)

	require.NoError(t, err)
	assert.Equal(t, "*/*", exe.Headers[0].Value)
	assert.Equal(t, "body", string(exe.Body))
}

func TestExecutor_RateLimit(t *testing.T) {
	var calls atomic.Int32
	transport := TransportFunc(func(ctx context.Context, out *Outbound) (*Inbound, error) {
		calls.Add(1)
		return &Inbound{StatusCode: 200}, nil
	})
	exec := NewExecutor(transport, WithRateLimit(0.001, 1))

	_, err := exec.Execute(context.Background(), executable("GET", "https://api.example.com"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = exec.Execute(ctx, executable("GET", "https://api.example.com"))

	require.Error(t, err)
	assert.Equal(t, errdef.KindTimeout, errdef.KindOf(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestExecutor_EndToEnd(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/42", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":42}`))
	}))
	defer server.Close()

	def := &model.Definition{Name: "user", Method: model.MethodGet, URL: server.URL + "/users/42"}
	exe, err := request.Normalize(def)
	require.NoError(t, err)

	result, err := NewExecutor(nil).Execute(context.Background(), exe)

	require.NoError(t, err)
	assert.Equal(t, 200, result.Status)
	assert.JSONEq(t, `{"id":42}`, result.Body)
	assert.WithinDuration(t, time.Now(), result.Timestamp, time.Minute)
}
