package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vstest "github.com/ethereum-optimism/infra/op-vstest"
	"github.com/ethereum-optimism/infra/op-vstest/exitcodes"
	"github.com/ethereum-optimism/infra/op-vstest/service"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"success", nil, exitcodes.Success},
		{"run failed", vstest.NewRunFailedError("No matched test files!"), exitcodes.TestFailure},
		{"runtime error", vstest.NewRuntimeError(errors.New("bad config")), exitcodes.RuntimeErr},
		{"wrapped runtime error", fmt.Errorf("start: %w", vstest.NewRuntimeError(errors.New("x"))), exitcodes.RuntimeErr},
		{"unclassified", errors.New("boom"), exitcodes.TestFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, exitCode(tt.err))
		})
	}
}

type fakeLifecycle struct {
	startErr error
	started  bool
	stopped  bool
}

func (f *fakeLifecycle) Start(ctx context.Context) error {
	f.started = true
	return f.startErr
}

func (f *fakeLifecycle) Stop(ctx context.Context) error {
	f.stopped = true
	return nil
}

func (f *fakeLifecycle) Stopped() bool { return f.stopped }

func TestWithMetrics(t *testing.T) {
	inner := &fakeLifecycle{}
	w := &withMetrics{
		Lifecycle: inner,
		metrics:   service.New(log.NewLogger(log.DiscardHandler()), "127.0.0.1", 0, nil),
	}

	require.NoError(t, w.Start(context.Background()))
	assert.True(t, inner.started)

	resp, err := http.Get("http://" + w.metrics.Addr() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, w.Stop(context.Background()))
	assert.True(t, inner.stopped)
	assert.True(t, w.Stopped())
}

func TestWithMetricsPropagatesRunFailure(t *testing.T) {
	inner := &fakeLifecycle{startErr: vstest.NewRunFailedError("tests failed")}
	w := &withMetrics{
		Lifecycle: inner,
		metrics:   service.New(log.NewLogger(log.DiscardHandler()), "127.0.0.1", 0, nil),
	}

	err := w.Start(context.Background())
	require.Error(t, err)
	assert.True(t, vstest.IsRunFailedError(err))
	require.NoError(t, w.Stop(context.Background()))
}
