package watch

import (
	"sync"
	"time"
)

// settleTimer delays a reload until file events stop arriving. Editors and
// atomic-rename writers emit several events per save; the policy reloads
// once per burst, after quiet time elapses.
type settleTimer struct {
	quiet time.Duration
	fire  func()

	mu    sync.Mutex
	timer *time.Timer
}

func newSettleTimer(quiet time.Duration, fire func()) *settleTimer {
	return &settleTimer{quiet: quiet, fire: fire}
}

// poke restarts the quiet period. fire runs once no poke arrives for the
// full quiet duration.
func (s *settleTimer) poke() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer == nil {
		s.timer = time.AfterFunc(s.quiet, s.fire)
		return
	}
	s.timer.Reset(s.quiet)
}

// cancel drops any pending fire.
func (s *settleTimer) cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
	}
}
