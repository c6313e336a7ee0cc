package scheduler

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRunner struct {
	mu    sync.Mutex
	count int
}

func (r *countingRunner) RunScheduled(now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count++
	return nil
}

func (r *countingRunner) runs() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

func TestScheduler_InvalidSpec(t *testing.T) {
	s := New(&countingRunner{}, "not a cron spec")
	assert.Error(t, s.Start())
}

func TestScheduler_StartStop(t *testing.T) {
	runner := &countingRunner{}
	s := New(runner, "0 3 1 * *")

	require.NoError(t, s.Start())
	s.Stop()

	// The monthly spec never fires during the test.
	assert.Equal(t, 0, runner.runs())
}

func TestScheduler_RunsJob(t *testing.T) {
	runner := &countingRunner{}
	s := New(runner, "@every 10ms")

	require.NoError(t, s.Start())
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for runner.runs() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	assert.Greater(t, runner.runs(), 0)
}
