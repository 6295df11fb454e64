package bridge

import (
	"time"

	"github.com/vango-dev/objbridge/internal/clock"
)

// scheduler coalesces flush requests made within the throttle window into
// a single timer. It is guarded by the bridge lock.
type scheduler struct {
	clock clock.Clock
	delay time.Duration
	timer clock.Timer
}

func (s *scheduler) immediate() bool { return s.delay <= 0 }

// arm starts the timer unless a flush is already scheduled.
func (s *scheduler) arm(fire func()) {
	if s.timer != nil {
		return
	}
	s.timer = s.clock.AfterFunc(s.delay, fire)
}

func (s *scheduler) armed() bool { return s.timer != nil }

func (s *scheduler) disarm() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
