package async

import "time"

// WaitAll returns a Future that completes with the values of all futures,
// in argument order, once every one of them has completed.
//
// It fails fast with the first error observed. The remaining futures are
// still observed passively, so none of their settlements is reported as
// unhandled; only the first error or the full value list is ever delivered.
//
// With no arguments, WaitAll completes immediately with an empty list.
func WaitAll[T any](s *Scheduler, futures ...*Future[T]) *Future[[]T] {
	c := NewCompleter[[]T](s)

	if len(futures) == 0 {
		c.Complete([]T{})
		return c.Future()
	}

	values := make([]T, len(futures))
	remaining := len(futures)
	settled := false

	for i, f := range futures {
		f.Done(
			func(v T) {
				values[i] = v
				if remaining--; remaining == 0 && !settled {
					settled = true
					c.Complete(values)
				}
			},
			func(err error) {
				if !settled {
					settled = true
					c.CompleteError(err)
				}
				// Later errors are observed and discarded.
			},
		)
	}

	return c.Future()
}

// Race returns a Future that settles with whichever input settles first,
// value or error. Later settlements of the losing futures are observed and
// discarded, not left unhandled.
//
// With no arguments, Race returns a Future that never settles.
func Race[T any](s *Scheduler, futures ...*Future[T]) *Future[T] {
	c := NewCompleter[T](s)
	settled := false

	for _, f := range futures {
		f.Done(
			func(v T) {
				if !settled {
					settled = true
					c.Complete(v)
				}
			},
			func(err error) {
				if !settled {
					settled = true
					c.CompleteError(err)
				}
			},
		)
	}

	return c.Future()
}

// WithTimeout returns a Future that settles like f, or fails with
// [ErrTimeout] if f is still pending after d.
//
// The timeout is a race between f and a macrotask timer, so every microtask
// already queued ahead of the deadline wins against it. When f settles
// first, the timer is canceled.
func WithTimeout[T any](f *Future[T], d time.Duration) *Future[T] {
	s := f.s
	c := NewCompleter[T](s)
	settled := false

	token := s.ScheduleMacrotask(d, func() {
		if !settled {
			settled = true
			c.CompleteError(ErrTimeout)
		}
	})

	f.Done(
		func(v T) {
			if !settled {
				settled = true
				s.CancelMacrotask(token)
				c.Complete(v)
			}
		},
		func(err error) {
			if !settled {
				settled = true
				s.CancelMacrotask(token)
				c.CompleteError(err)
			}
		},
	)

	return c.Future()
}
