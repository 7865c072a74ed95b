package async

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// ErrTimeout is the failure value of a Future abandoned by [WithTimeout].
var ErrTimeout = errors.New("async: timed out")

// A ProgrammingError reports a caller-side contract violation, such as
// settling a [Completer] twice, feeding a [Controller] after Close, or
// listening twice on a single-subscription [Stream].
//
// Contract violations are not thrown into unrelated code. They are delivered
// to the scheduler's unhandled-error sink and the offending call otherwise
// has no effect.
type ProgrammingError struct {
	msg string
}

func (e *ProgrammingError) Error() string { return e.msg }

func programmingError(msg string) *ProgrammingError {
	return &ProgrammingError{msg: msg}
}

// A PanicError wraps a panic recovered from a scheduled task or a user
// callback, along with the stack trace captured at the point of recovery.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("async: panic: %v\n\n%s", e.Value, e.Stack)
}

func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// catch runs f and converts a panic into a *PanicError.
// async does not support runtime.Goexit in tasks.
func catch(f func()) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &PanicError{Value: v, Stack: debug.Stack()}
		}
	}()
	f()
	return nil
}

// guard runs a user callback, forwarding a panic to the unhandled-error sink
// so that the run loop keeps draining.
func guard(s *Scheduler, f func()) {
	if err := catch(f); err != nil {
		s.ReportUnhandledError(err)
	}
}
