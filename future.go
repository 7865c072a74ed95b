package async

type futureState uint8

const (
	statePending futureState = iota
	stateCompleted
	stateFailed
)

// A Future is a one-shot container for a value or an error that will be
// known later. It is the read side; the write side is its [Completer].
//
// A settled Future never changes again. Continuations registered while
// pending fire, in registration order, when the Future settles; ones
// registered after settlement still fire on a fresh microtask, never
// synchronously within the registering call.
//
// A Future must not be shared across schedulers or goroutines.
type Future[T any] struct {
	s        *Scheduler
	state    futureState
	value    T
	err      error
	waiters  []futureWaiter[T]
	observed bool // a continuation consumes the error
}

type futureWaiter[T any] struct {
	onValue func(T)
	onError func(error)
}

// A Completer is the exclusive write capability for exactly one [Future].
type Completer[T any] struct {
	f    *Future[T]
	done bool
}

// NewCompleter creates a pending [Future] on s and returns its Completer.
func NewCompleter[T any](s *Scheduler) *Completer[T] {
	return &Completer[T]{f: &Future[T]{s: s}}
}

// Completed returns a Future that has already completed with v.
func Completed[T any](s *Scheduler, v T) *Future[T] {
	return &Future[T]{s: s, state: stateCompleted, value: v}
}

// Failed returns a Future that has already failed with err. As with any
// failed Future, err is reported to the unhandled-error sink unless a
// continuation consumes it first.
func Failed[T any](s *Scheduler, err error) *Future[T] {
	f := &Future[T]{s: s, state: stateFailed, err: err}
	f.scheduleUnhandledCheck()
	return f
}

// Future returns the Future that c settles.
func (c *Completer[T]) Future() *Future[T] { return c.f }

// Complete settles the owned Future with v.
//
// Settling more than once is a [ProgrammingError]: it is reported to the
// unhandled-error sink and the call has no other effect.
func (c *Completer[T]) Complete(v T) {
	if c.done {
		c.f.s.ReportUnhandledError(programmingError("async: Completer: already settled"))
		return
	}
	c.done = true
	c.f.settle(stateCompleted, v, nil)
}

// CompleteError settles the owned Future with err.
// Like [Completer.Complete], it may be called at most once.
func (c *Completer[T]) CompleteError(err error) {
	if err == nil {
		c.f.s.ReportUnhandledError(programmingError("async: Completer: CompleteError with nil error"))
		return
	}
	if c.done {
		c.f.s.ReportUnhandledError(programmingError("async: Completer: already settled"))
		return
	}
	c.done = true
	var zero T
	c.f.settle(stateFailed, zero, err)
}

// Scheduler returns the scheduler f was created on.
func (f *Future[T]) Scheduler() *Scheduler { return f.s }

// Settled reports whether f has left the pending state.
func (f *Future[T]) Settled() bool { return f.state != statePending }

// Result returns the settlement of f. ok is false while f is pending.
func (f *Future[T]) Result() (v T, err error, ok bool) {
	return f.value, f.err, f.state != statePending
}

// Done registers terminal callbacks on f. Either may be nil. The callback
// matching the settlement fires exactly once, always on a microtask.
//
// A nil onError leaves a failure unconsumed: if nothing else consumes it,
// it is escalated to the unhandled-error sink. Use [Then], [Catch] or
// [Handle] to chain instead of terminating.
func (f *Future[T]) Done(onValue func(T), onError func(error)) {
	if onError != nil {
		f.observed = true
	}
	w := futureWaiter[T]{onValue: onValue, onError: onError}
	if f.state == statePending {
		f.waiters = append(f.waiters, w)
		return
	}
	f.dispatch(w)
}

func (f *Future[T]) settle(state futureState, v T, err error) {
	f.state = state
	f.value = v
	f.err = err

	waiters := f.waiters
	f.waiters = nil
	for _, w := range waiters {
		f.dispatch(w)
	}

	if state == stateFailed && !f.observed {
		f.scheduleUnhandledCheck()
	}
}

func (f *Future[T]) dispatch(w futureWaiter[T]) {
	f.s.ScheduleMicrotask(func() {
		switch f.state {
		case stateCompleted:
			if w.onValue != nil {
				guard(f.s, func() { w.onValue(f.value) })
			}
		case stateFailed:
			if w.onError != nil {
				guard(f.s, func() { w.onError(f.err) })
			}
		}
	})
}

// scheduleUnhandledCheck escalates a failure that is still unconsumed by
// the time the microtask queue gets to it. A continuation attached in the
// meantime calls the report off.
func (f *Future[T]) scheduleUnhandledCheck() {
	f.s.ScheduleMicrotask(func() {
		if !f.observed {
			f.observed = true
			f.s.ReportUnhandledError(f.err)
		}
	})
}

// Then returns a Future settled by fn applied to f's value.
//
// If f fails, fn is skipped and the error moves into the returned Future.
// An error returned by fn, or a panic escaping it, fails the returned
// Future. These are package functions rather than methods because a Go
// method cannot introduce the second type parameter.
func Then[T, S any](f *Future[T], fn func(T) (S, error)) *Future[S] {
	c := NewCompleter[S](f.s)
	f.Done(
		func(v T) { c.settleWith(func() (S, error) { return fn(v) }) },
		func(err error) { c.CompleteError(err) },
	)
	return c.Future()
}

// Catch returns a Future settled by fn applied to f's error.
// If f completes, fn is skipped and the value moves into the returned Future.
func Catch[T any](f *Future[T], fn func(error) (T, error)) *Future[T] {
	c := NewCompleter[T](f.s)
	f.Done(
		func(v T) { c.Complete(v) },
		func(err error) { c.settleWith(func() (T, error) { return fn(err) }) },
	)
	return c.Future()
}

// Handle returns a Future settled by fn applied to f's settlement, whichever
// way it went. err is nil when f completed with a value.
func Handle[T, S any](f *Future[T], fn func(v T, err error) (S, error)) *Future[S] {
	c := NewCompleter[S](f.s)
	f.Done(
		func(v T) { c.settleWith(func() (S, error) { return fn(v, nil) }) },
		func(err error) {
			var zero T
			c.settleWith(func() (S, error) { return fn(zero, err) })
		},
	)
	return c.Future()
}

// settleWith settles c from a continuation, turning a panic into a failure.
func (c *Completer[T]) settleWith(fn func() (T, error)) {
	var v T
	var err error
	if perr := catch(func() { v, err = fn() }); perr != nil {
		err = perr
	}
	if err != nil {
		c.CompleteError(err)
		return
	}
	c.Complete(v)
}
