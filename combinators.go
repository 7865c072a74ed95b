package async

import "iter"

// A Transformer is the general many-to-many pipeline node: it receives the
// upstream event sequence and writes whatever it likes downstream.
//
// HandleData is required. HandleError defaults to forwarding the error and
// HandleDone to closing downstream; a custom HandleDone must flush any
// buffered output before calling Close.
type Transformer[T, S any] struct {
	HandleData  func(v T, out *Controller[S])
	HandleError func(err error, out *Controller[S])
	HandleDone  func(out *Controller[S])
}

// Transform returns a Stream of tr applied to src.
//
// Like every combinator here, the result is lazy: it subscribes to exactly
// one upstream Subscription on its own first Listen, and cancels it when
// its own last listener cancels. The output stream is the same variant as
// its source, and for broadcast sources the listeners are reference-counted
// against that single upstream subscription.
func Transform[T, S any](src Stream[T], tr Transformer[T, S]) Stream[S] {
	s := src.scheduler()

	var out *Controller[S]
	if src.isBroadcast() {
		out = NewBroadcastController[S](s)
	} else {
		out = NewController[S](s)
	}

	if tr.HandleData == nil {
		s.ReportUnhandledError(programmingError("async: Transform: nil HandleData"))
		out.Close()
		return out.Stream()
	}

	var upstream *Subscription[T]

	out.OnListen(func() {
		upstream = src.Listen(
			func(v T) { tr.HandleData(v, out) },
			func(err error) {
				if tr.HandleError != nil {
					tr.HandleError(err, out)
					return
				}
				out.AddError(err)
			},
			func() {
				upstream = nil
				if tr.HandleDone != nil {
					tr.HandleDone(out)
					return
				}
				out.Close()
			},
		)
	})

	out.OnCancel(func() *Future[struct{}] {
		u := upstream
		if u == nil {
			return nil
		}
		upstream = nil
		return u.Cancel()
	})

	return out.Stream()
}

// Map returns a Stream of fn applied to each element of src, one to one and
// order preserving.
//
// An error from fn, returned or panicked, is emitted as an error event and
// the stream continues with the next upstream element; it does not close.
func Map[T, S any](src Stream[T], fn func(T) (S, error)) Stream[S] {
	return Transform(src, Transformer[T, S]{
		HandleData: func(v T, out *Controller[S]) {
			mapped, err := applyTo(fn, v)
			if err != nil {
				out.AddError(err)
				return
			}
			out.Add(mapped)
		},
	})
}

// Where returns a Stream of the elements of src for which pred holds.
// An error from pred becomes an error event; the element is dropped either
// way.
func Where[T any](src Stream[T], pred func(T) (bool, error)) Stream[T] {
	return Transform(src, Transformer[T, T]{
		HandleData: func(v T, out *Controller[T]) {
			keep, err := applyTo(pred, v)
			if err != nil {
				out.AddError(err)
				return
			}
			if keep {
				out.Add(v)
			}
		},
	})
}

// Expand returns a Stream that replaces each element of src with the
// elements of fn(v), in order. The whole sub-sequence of one source element
// is emitted before the next source element is processed.
func Expand[T, S any](src Stream[T], fn func(T) iter.Seq[S]) Stream[S] {
	return Transform(src, Transformer[T, S]{
		HandleData: func(v T, out *Controller[S]) {
			err := catch(func() {
				for e := range fn(v) {
					out.Add(e)
				}
			})
			if err != nil {
				out.AddError(err)
			}
		},
	})
}

// applyTo runs a value function, turning a panic into its error result.
func applyTo[T, S any](fn func(T) (S, error), v T) (out S, err error) {
	if perr := catch(func() { out, err = fn(v) }); perr != nil {
		err = perr
	}
	return out, err
}
