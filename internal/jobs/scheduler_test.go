package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// go test -v --run TestSchedulerAdd
func TestSchedulerAdd(t *testing.T) {
	s := NewScheduler(zap.NewNop())
	noop := func(context.Context) error { return nil }

	assert.NoError(t, s.Add("refresh", "0 */30 * * * *", noop))
	assert.Error(t, s.Add("broken", "every now and then", noop))
	assert.Equal(t, 1, s.Len())

	s.Start()
	s.Stop()
}

// go test -v --run TestSchedulerRunsJobs
func TestSchedulerRunsJobs(t *testing.T) {
	s := NewScheduler(zap.NewNop())

	var ok, failed atomic.Int32
	require.NoError(t, s.Add("ok", "@every 1s", func(ctx context.Context) error {
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		ok.Add(1)
		return nil
	}))
	require.NoError(t, s.Add("failing", "@every 1s", func(context.Context) error {
		failed.Add(1)
		return errors.New("boom")
	}))

	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool {
		return ok.Load() > 0 && failed.Load() > 0
	}, 3*time.Second, 50*time.Millisecond, "a failing job doesn't stop the others")
}
