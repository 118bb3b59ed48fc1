package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type mockSweeper struct {
	mu     sync.Mutex
	calls  []time.Time
	closed int
}

func (m *mockSweeper) SweepIdle(ctx context.Context, now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, now)
	return m.closed
}

func (m *mockSweeper) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func TestIdleSweepJob_StartStop(t *testing.T) {
	sweeper := &mockSweeper{closed: 1}
	job := NewIdleSweepJob(sweeper, 10*time.Millisecond)

	job.Start()
	assert.Eventually(t, func() bool { return sweeper.callCount() >= 2 }, time.Second, 5*time.Millisecond)
	job.Stop()

	after := sweeper.callCount()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, sweeper.callCount(), "no sweeps after Stop")
}

func TestIdleSweepJob_PassesClock(t *testing.T) {
	fixed := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	sweeper := &mockSweeper{}
	job := NewIdleSweepJob(sweeper, time.Hour)
	job.now = func() time.Time { return fixed }

	job.sweep()

	assert.Equal(t, []time.Time{fixed}, sweeper.calls)
}

func TestIdleSweepJob_StopBeforeFirstTick(t *testing.T) {
	sweeper := &mockSweeper{}
	job := NewIdleSweepJob(sweeper, time.Hour)

	job.Start()
	job.Stop()

	assert.Equal(t, 0, sweeper.callCount())
}
