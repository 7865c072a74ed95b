package async

import "time"

// A TimerToken identifies a registered timer so that it can be canceled.
// The zero token is never issued.
type TimerToken uint64

// A TimerProvider supplies macrotask timers to a [Scheduler].
//
// The default provider is a virtual clock owned by the scheduler itself:
// time advances only when [Scheduler.RunUntilIdle] runs out of due work,
// which makes timer-driven code deterministic under test.
//
// A host environment with its own timer wheel can implement this interface
// and install it with [WithTimerProvider]. A provider must hand its fired
// callbacks back to the scheduler thread; the easiest way is to wrap them
// with [Scheduler.Post].
type TimerProvider interface {
	RegisterTimer(delay time.Duration, f func()) TimerToken
	CancelTimer(token TimerToken)
}

// virtualTimers is the built-in TimerProvider backed by the scheduler's
// timer queue and virtual clock.
type virtualTimers struct {
	s *Scheduler
}

func (p virtualTimers) RegisterTimer(delay time.Duration, f func()) TimerToken {
	s := p.s
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	if s.down {
		s.mu.Unlock()
		s.ReportUnhandledError(programmingError("async: RegisterTimer: scheduler is shut down"))
		return 0
	}
	s.seq++
	tm := &timer{due: s.now + delay, seq: s.seq, token: TimerToken(s.seq), f: f}
	if s.tokens == nil {
		s.tokens = make(map[TimerToken]*timer)
	}
	s.tokens[tm.token] = tm
	s.timers.Push(tm)
	s.mu.Unlock()

	return tm.token
}

func (p virtualTimers) CancelTimer(token TimerToken) {
	s := p.s

	s.mu.Lock()
	if tm := s.tokens[token]; tm != nil {
		tm.canceled = true
		delete(s.tokens, token)
	}
	s.mu.Unlock()
}
