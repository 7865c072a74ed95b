package async

import (
	"log/slog"
	"sync"
	"time"
)

// A Scheduler owns the microtask and macrotask queues and the run loop that
// drains them. Everything else in this package runs on top of one.
//
// Execution is single-threaded and cooperative: exactly one task runs at
// a time, to completion, before the next is chosen. If one task blocks,
// no other tasks can run. The best practice is not to block.
//
// Scheduling is safe for concurrent use, so host callbacks may hand work
// over from other goroutines. The values built on a scheduler ([Future],
// [Stream] and friends) are not: they must only be touched from tasks of
// their own scheduler.
//
// One can create as many schedulers as they like; they are fully
// independent, including their clocks.
type Scheduler struct {
	mu     sync.Mutex
	micro  []func()
	ready  []func()
	timers timerqueue
	tokens map[TimerToken]*timer
	now    time.Duration
	seq    uint64
	down   bool

	provider TimerProvider
	sink     func(error)
	log      *slog.Logger
}

// NewScheduler creates a Scheduler with an empty queue set and its virtual
// clock at zero.
func NewScheduler(opts ...SchedulerOption) *Scheduler {
	var cfg schedulerConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	s := &Scheduler{
		sink: cfg.sink,
		log:  cfg.logger,
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	s.provider = cfg.provider
	if s.provider == nil {
		s.provider = virtualTimers{s}
	}
	return s
}

// ScheduleMicrotask appends f to the microtask queue.
//
// Microtasks run strictly FIFO and fully drain before any macrotask runs.
func (s *Scheduler) ScheduleMicrotask(f func()) {
	if f == nil {
		return
	}

	s.mu.Lock()
	if s.down {
		s.mu.Unlock()
		s.ReportUnhandledError(programmingError("async: ScheduleMicrotask: scheduler is shut down"))
		return
	}
	s.micro = append(s.micro, f)
	s.mu.Unlock()
}

// ScheduleMacrotask registers f to run as a macrotask after delay, using the
// scheduler's [TimerProvider]. It returns a token for [Scheduler.CancelMacrotask].
func (s *Scheduler) ScheduleMacrotask(delay time.Duration, f func()) TimerToken {
	if f == nil {
		return 0
	}
	return s.provider.RegisterTimer(delay, f)
}

// CancelMacrotask cancels a timer registered by [Scheduler.ScheduleMacrotask].
// Canceling an already-fired or unknown token has no effect.
func (s *Scheduler) CancelMacrotask(token TimerToken) {
	if token != 0 {
		s.provider.CancelTimer(token)
	}
}

// Post appends f to the ready macrotask queue, bypassing the timer provider.
// It is how an external [TimerProvider] (or any host I/O callback) hands
// work over to the scheduler thread.
func (s *Scheduler) Post(f func()) {
	if f == nil {
		return
	}

	s.mu.Lock()
	if s.down {
		s.mu.Unlock()
		s.ReportUnhandledError(programmingError("async: Post: scheduler is shut down"))
		return
	}
	s.ready = append(s.ready, f)
	s.mu.Unlock()
}

// Now returns the current reading of the scheduler's virtual clock.
// With an external [TimerProvider] the clock never advances.
func (s *Scheduler) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// OnUnhandledError replaces the unhandled-error sink. A nil f restores the
// default sink, which logs through [log/slog].
func (s *Scheduler) OnUnhandledError(f func(error)) {
	s.sink = f
}

// ReportUnhandledError forwards err to the unhandled-error sink.
//
// The runtime calls it for every operation error that reaches the end of
// a chain unconsumed, for every [ProgrammingError], and for every panic
// escaping a task. Failure is never silently swallowed.
func (s *Scheduler) ReportUnhandledError(err error) {
	if err == nil {
		return
	}
	if sink := s.sink; sink != nil {
		sink(err)
		return
	}
	s.log.Error("async: unhandled error", slog.Any("error", err))
}

// RunUntilIdle pops and runs tasks until both queues are empty.
//
// Each turn of the loop first drains the microtask queue completely, in FIFO
// order, including any microtasks enqueued during the drain. Only then does
// it pop and run exactly one macrotask, and repeat. Callers may depend on
// this ordering.
//
// When no task is ready but timers are pending, the virtual clock jumps to
// the earliest due time. A panic escaping a task is forwarded to the
// unhandled-error sink; it aborts neither the loop nor the remaining tasks.
//
// RunUntilIdle must not be called twice at the same time.
func (s *Scheduler) RunUntilIdle() {
	s.mu.Lock()

	for {
		for len(s.micro) != 0 {
			f := s.micro[0]
			s.micro[0] = nil
			s.micro = s.micro[1:]
			s.runTask(f)
		}

		if len(s.ready) != 0 {
			f := s.ready[0]
			s.ready[0] = nil
			s.ready = s.ready[1:]
			s.runTask(f)
			continue
		}

		if !s.advanceClock() {
			break
		}
	}

	s.mu.Unlock()
}

// runTask runs one task with the queue lock released.
func (s *Scheduler) runTask(f func()) {
	s.mu.Unlock()
	err := catch(f)
	if err != nil {
		s.ReportUnhandledError(err)
	}
	s.mu.Lock()
}

// advanceClock jumps the virtual clock to the earliest pending timer and
// moves every timer due by then into the ready queue, preserving their
// (due, arrival) order. It reports whether any work became ready.
// Called with s.mu held.
func (s *Scheduler) advanceClock() bool {
	for {
		tm := s.timers.First()
		if tm == nil {
			return false
		}
		if !tm.canceled {
			break
		}
		s.timers.Pop()
	}

	if due := s.timers.First().due; due > s.now {
		s.now = due
	}

	for {
		tm := s.timers.First()
		if tm == nil || tm.due > s.now {
			break
		}
		s.timers.Pop()
		delete(s.tokens, tm.token)
		if !tm.canceled {
			s.ready = append(s.ready, tm.f)
		}
	}

	return len(s.ready) != 0
}

// Shutdown drops every queued task and pending timer. Scheduling anything
// afterwards is a [ProgrammingError] and has no effect.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	s.down = true
	s.micro = nil
	s.ready = nil
	s.timers = timerqueue{}
	clear(s.tokens)
	s.mu.Unlock()
}
