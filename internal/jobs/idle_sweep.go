package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// IdleSweeper closes sessions that have been quiet for too long.
type IdleSweeper interface {
	SweepIdle(ctx context.Context, now time.Time) int
}

type IdleSweepJob struct {
	sweeper  IdleSweeper
	interval time.Duration
	now      func() time.Time
	done     chan struct{}
	stopped  chan struct{}
}

func NewIdleSweepJob(sweeper IdleSweeper, interval time.Duration) *IdleSweepJob {
	return &IdleSweepJob{
		sweeper:  sweeper,
		interval: interval,
		now:      time.Now,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

func (j *IdleSweepJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("idle sweep job started")
}

// Stop ends the loop and waits for a sweep in progress to finish.
func (j *IdleSweepJob) Stop() {
	close(j.done)
	<-j.stopped
	log.Info().Msg("idle sweep job stopped")
}

func (j *IdleSweepJob) run() {
	defer close(j.stopped)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.sweep()
		}
	}
}

func (j *IdleSweepJob) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), j.interval)
	defer cancel()

	if closed := j.sweeper.SweepIdle(ctx, j.now()); closed > 0 {
		log.Info().Int("count", closed).Msg("closed idle sessions")
	}
}
