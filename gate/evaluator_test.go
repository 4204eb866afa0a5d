package gate

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/conveyor-ci/conveyor/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gateServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestEvaluator_PassVerdict(t *testing.T) {
	srv := gateServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/qualitygates/project_status", r.URL.Path)
		assert.Equal(t, "netflix-clone", r.URL.Query().Get("projectKey"))
		assert.Equal(t, "Bearer sqa_token", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"projectStatus":{"status":"OK"}}`)
	})

	e, err := New(Config{HostURL: srv.URL, Token: "sqa_token", PollInterval: 10 * time.Millisecond}, nil)
	require.NoError(t, err)

	verdict, err := e.Evaluate(context.Background(), "netflix-clone", time.Second)
	require.NoError(t, err)
	assert.True(t, verdict.Pass)
}

func TestEvaluator_FailVerdictListsConditions(t *testing.T) {
	srv := gateServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"projectStatus":{"status":"ERROR","conditions":[
			{"metricKey":"coverage","status":"ERROR"},
			{"metricKey":"bugs","status":"OK"},
			{"metricKey":"security_rating","status":"ERROR"}]}}`)
	})

	e, err := New(Config{HostURL: srv.URL, PollInterval: 10 * time.Millisecond}, nil)
	require.NoError(t, err)

	verdict, err := e.Evaluate(context.Background(), "app", time.Second)
	require.NoError(t, err)
	assert.False(t, verdict.Pass)
	assert.Contains(t, verdict.Reason, "coverage")
	assert.Contains(t, verdict.Reason, "security_rating")
	assert.NotContains(t, verdict.Reason, "bugs")
}

func TestEvaluator_PollsUntilVerdict(t *testing.T) {
	var calls atomic.Int32
	srv := gateServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			fmt.Fprint(w, `{"projectStatus":{"status":"NONE"}}`)
			return
		}
		fmt.Fprint(w, `{"projectStatus":{"status":"OK"}}`)
	})

	e, err := New(Config{HostURL: srv.URL, PollInterval: 5 * time.Millisecond}, nil)
	require.NoError(t, err)

	verdict, err := e.Evaluate(context.Background(), "app", 2*time.Second)
	require.NoError(t, err)
	assert.True(t, verdict.Pass)
	assert.GreaterOrEqual(t, calls.Load(), int32(3))
}

func TestEvaluator_TimeoutVerdict(t *testing.T) {
	srv := gateServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"projectStatus":{"status":"NONE"}}`)
	})

	e, err := New(Config{HostURL: srv.URL, PollInterval: 5 * time.Millisecond}, nil)
	require.NoError(t, err)

	verdict, err := e.Evaluate(context.Background(), "app", 20*time.Millisecond)
	require.NoError(t, err, "timeout is a verdict, not an error")
	assert.False(t, verdict.Pass)
	assert.Equal(t, pipeline.GateReasonTimeout, verdict.Reason)
}

func TestEvaluator_TimeoutShorterThanPollInterval(t *testing.T) {
	srv := gateServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"projectStatus":{"status":"NONE"}}`)
	})

	// The poll interval is far longer than the timeout; the wait must be
	// capped at the deadline rather than sleeping a full interval.
	e, err := New(Config{HostURL: srv.URL, PollInterval: 10 * time.Second}, nil)
	require.NoError(t, err)

	start := time.Now()
	verdict, err := e.Evaluate(context.Background(), "app", 50*time.Millisecond)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.False(t, verdict.Pass)
	assert.Equal(t, pipeline.GateReasonTimeout, verdict.Reason)
	assert.Less(t, elapsed, time.Second, "Evaluate must return at the deadline, not after a full poll interval")
}

func TestEvaluator_ServerErrorIsFatal(t *testing.T) {
	srv := gateServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "stacktrace", http.StatusInternalServerError)
	})

	e, err := New(Config{HostURL: srv.URL, PollInterval: 5 * time.Millisecond}, nil)
	require.NoError(t, err)

	_, err = e.Evaluate(context.Background(), "app", time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "returned 500")
}

func TestEvaluator_Cancellation(t *testing.T) {
	srv := gateServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"projectStatus":{"status":"NONE"}}`)
	})

	e, err := New(Config{HostURL: srv.URL, PollInterval: 50 * time.Millisecond}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Evaluate(ctx, "app", time.Minute)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew_RequiresHost(t *testing.T) {
	_, err := New(Config{}, nil)
	require.Error(t, err)
}
