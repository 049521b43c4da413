package memory

import (
	"sync"
	"time"
)

// Scheduler debounces one pending callback per user. Scheduling again
// for the same user cancels the pending timer before arming a new one,
// so a burst of activity yields a single run. Only scheduled-but-not-
// started callbacks can be superseded; a callback that has begun runs
// to completion.
type Scheduler struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewScheduler() *Scheduler {
	return &Scheduler{timers: make(map[string]*time.Timer)}
}

func (s *Scheduler) Schedule(userID string, delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[userID]; ok {
		t.Stop()
	}
	s.timers[userID] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, userID)
		s.mu.Unlock()
		fn()
	})
}

// Cancel drops the pending callback for the user, if any.
func (s *Scheduler) Cancel(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[userID]; ok {
		t.Stop()
		delete(s.timers, userID)
	}
}

// Pending reports whether a callback is scheduled for the user.
func (s *Scheduler) Pending(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[userID]
	return ok
}

// Stop cancels every pending callback.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for user, t := range s.timers {
		t.Stop()
		delete(s.timers, user)
	}
}
