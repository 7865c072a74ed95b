package async

import "iter"

// GenState is the lifecycle state of a generator instance.
type GenState uint8

const (
	GenSuspended GenState = iota
	GenRunning
	GenCompleted
	GenCancelled
)

// A Step is one resumable unit of an asynchronous generator body: it runs
// from the previous suspension point and returns a [Verdict] saying how to
// suspend or finish. The next Step named by the verdict is the resume
// point; the body's locals live in the closures its steps share, so they
// are restored exactly on resumption.
type Step[T any] func(g *Gen[T]) Verdict[T]

type verdictKind uint8

const (
	_ verdictKind = iota
	doYield
	doAwait
	doDelegate
	doFinish
	doFail
)

// A Verdict is the return value of a [Step]. Create one with a method of
// [Gen], or with [Await]; return it right after it is created.
type Verdict[T any] struct {
	kind  verdictKind
	value T
	err   error
	next  Step[T]
	src   Stream[T]
	arm   func()
}

// A Gen is the running side of an asynchronous generator: a push-driven
// coroutine that feeds a single-subscription stream under the scheduler.
// Bodies receive it as the handle for yielding, awaiting, delegating and
// registering cleanup.
type Gen[T any] struct {
	s     *Scheduler
	ctrl  *Controller[T]
	state GenState

	cleanups []func()
	delegate *Subscription[T]

	parked  bool    // consumer paused; resumption deferred
	pending Step[T] // step to run when unparked

	cancelRequested bool
	cancelAck       *Completer[struct{}]
}

// Generate returns a single-subscription [Stream] produced by body.
//
// The body starts lazily on the first Listen and is advanced one step at a
// time, each resumption on its own microtask. A yield feeds the stream's
// controller; cancellation of the consuming Subscription is observed at
// the generator's next suspension point, never mid-step, and registered
// cleanups run before the stream closes. A paused consumer parks the
// generator until it resumes.
func Generate[T any](s *Scheduler, body Step[T]) Stream[T] {
	ctrl := NewController[T](s)
	g := &Gen[T]{s: s, ctrl: ctrl, state: GenSuspended}
	ctrl.OnListen(func() { g.resume(body) })
	ctrl.OnCancel(g.requestCancel)
	ctrl.onPause = g.setParked
	return ctrl.Stream()
}

// State returns the generator's lifecycle state.
func (g *Gen[T]) State() GenState { return g.state }

// Scheduler returns the scheduler g runs under.
func (g *Gen[T]) Scheduler() *Scheduler { return g.s }

// Yield emits v and suspends; the generator resumes at next.
func (g *Gen[T]) Yield(v T, next Step[T]) Verdict[T] {
	return Verdict[T]{kind: doYield, value: v, next: mustStep(next)}
}

// YieldError emits err as an error event and suspends; the generator
// resumes at next. The stream stays open.
func (g *Gen[T]) YieldError(err error, next Step[T]) Verdict[T] {
	return Verdict[T]{kind: doYield, err: err, next: mustStep(next)}
}

// Return finishes the generator and closes its stream.
func (g *Gen[T]) Return() Verdict[T] {
	return Verdict[T]{kind: doFinish}
}

// Fail emits err and then finishes, closing the stream.
func (g *Gen[T]) Fail(err error) Verdict[T] {
	return Verdict[T]{kind: doFail, err: err}
}

// Delegate splices every event of src into the output, in order, before
// the generator resumes at next. A cancellation reaching the generator
// while delegating is forwarded to src first.
func (g *Gen[T]) Delegate(src Stream[T], next Step[T]) Verdict[T] {
	return Verdict[T]{kind: doDelegate, src: src, next: mustStep(next)}
}

// Cleanup registers f to run when the generator completes, fails or is
// cancelled. Cleanups run in last-in-first-out order, before the stream
// closes and, on cancellation, before the consumer's cancel-future settles.
func (g *Gen[T]) Cleanup(f func()) {
	if f == nil {
		return
	}
	g.cleanups = append(g.cleanups, f)
}

// Await suspends g until f settles, then resumes with fn applied to the
// settlement; err is nil when f completed with a value. The resumption is
// a microtask continuation of f, so Future ordering guarantees hold.
//
// Await is a package function because the awaited value type is independent
// of the generator's element type.
func Await[T, U any](g *Gen[T], f *Future[U], fn func(g *Gen[T], v U, err error) Verdict[T]) Verdict[T] {
	if fn == nil {
		panic("async: Await: nil continuation")
	}
	return Verdict[T]{kind: doAwait, arm: func() {
		f.Done(
			func(v U) {
				g.resume(func(g *Gen[T]) Verdict[T] { return fn(g, v, nil) })
			},
			func(err error) {
				g.resume(func(g *Gen[T]) Verdict[T] {
					var zero U
					return fn(g, zero, err)
				})
			},
		)
	}}
}

func mustStep[T any](next Step[T]) Step[T] {
	if next == nil {
		panic("async: nil Step")
	}
	return next
}

// resume schedules step on a fresh microtask, unless the generator is
// terminated, parked, or has a cancellation pending.
func (g *Gen[T]) resume(step Step[T]) {
	if g.state == GenCompleted || g.state == GenCancelled {
		return
	}
	if g.cancelRequested {
		g.finishCancel()
		return
	}
	if g.parked {
		g.pending = step
		return
	}
	g.s.ScheduleMicrotask(func() { g.runStep(step) })
}

func (g *Gen[T]) runStep(step Step[T]) {
	if g.state == GenCompleted || g.state == GenCancelled {
		return
	}
	if g.cancelRequested {
		g.finishCancel()
		return
	}

	// A pause arriving after this step was scheduled does not stop it: the
	// step runs to its next suspension point and only the resumption parks.
	// Whatever it yields sits in the paused subscription's buffer.

	g.state = GenRunning

	var v Verdict[T]
	if err := catch(func() { v = step(g) }); err != nil {
		v = g.Fail(err)
	}

	switch v.kind {
	case doYield:
		if v.err != nil {
			g.ctrl.AddError(v.err)
		} else {
			g.ctrl.Add(v.value)
		}
		g.state = GenSuspended
		g.resume(v.next)
	case doAwait:
		g.state = GenSuspended
		v.arm()
	case doDelegate:
		g.state = GenSuspended
		next := v.next
		g.delegate = v.src.Listen(
			func(val T) { g.ctrl.Add(val) },
			func(err error) { g.ctrl.AddError(err) },
			func() {
				g.delegate = nil
				g.resume(next)
			},
		)
	case doFinish:
		g.finish(nil)
	case doFail:
		g.finish(v.err)
	default:
		g.finish(programmingError("async: Step returned a zero Verdict"))
	}
}

func (g *Gen[T]) finish(err error) {
	g.runCleanups()
	g.state = GenCompleted
	if err != nil {
		g.ctrl.AddError(err)
	}
	g.ctrl.Close()
	if g.cancelAck != nil {
		g.cancelAck.Complete(struct{}{})
	}
}

func (g *Gen[T]) runCleanups() {
	cleanups := g.cleanups
	g.cleanups = nil
	for i := len(cleanups) - 1; i >= 0; i-- {
		guard(g.s, cleanups[i])
	}
}

// requestCancel is the controller's OnCancel hook. The returned future
// settles once the generator has transitioned to Cancelled and its
// cleanups have run.
func (g *Gen[T]) requestCancel() *Future[struct{}] {
	if g.state == GenCompleted || g.state == GenCancelled {
		return Completed(g.s, struct{}{})
	}

	if g.cancelAck == nil {
		g.cancelAck = NewCompleter[struct{}](g.s)
	}
	g.cancelRequested = true

	switch {
	case g.delegate != nil:
		// Forward the cancellation to the active sub-generator first.
		d := g.delegate
		g.delegate = nil
		d.Cancel().Done(func(struct{}) { g.finishCancel() }, nil)
	case g.state == GenSuspended:
		// Already at a suspension point; unwind now. A resumption still in
		// flight (an armed await, a scheduled step) finds the generator
		// cancelled and does nothing.
		g.finishCancel()
	}
	// If a step is running right now, its verdict handling observes
	// cancelRequested at the next suspension point.

	return g.cancelAck.Future()
}

func (g *Gen[T]) finishCancel() {
	if g.state == GenCompleted || g.state == GenCancelled {
		return
	}
	g.state = GenCancelled
	g.runCleanups()
	g.ctrl.Close()
	if g.cancelAck != nil {
		g.cancelAck.Complete(struct{}{})
	}
}

// setParked is the controller's backpressure hook: a paused consumer parks
// the generator at its next resumption; resuming un-parks it.
func (g *Gen[T]) setParked(paused bool) {
	g.parked = paused
	if !paused && g.pending != nil {
		next := g.pending
		g.pending = nil
		g.resume(next)
	}
}

// A Sequence is a restartable lazy sequence: each call to Iterate starts an
// independent pull-driven generator instance.
type Sequence[T any] struct {
	body func(yield func(T) bool)
}

// NewSequence wraps a generator body. The body runs nothing until an
// instance created by [Sequence.Iterate] is advanced; it may be finite or
// infinite.
func NewSequence[T any](body func(yield func(T) bool)) *Sequence[T] {
	return &Sequence[T]{body: body}
}

// Seq exposes the sequence for range-over-func consumption. Delegation is
// ranging over another sequence's Seq from inside a body.
func (q *Sequence[T]) Seq() iter.Seq[T] {
	return iter.Seq[T](q.body)
}

// Iterate starts a fresh, independent instance.
func (q *Sequence[T]) Iterate() *Iterator[T] {
	it := &Iterator[T]{state: GenSuspended}
	it.next, it.stop = iter.Pull(q.Seq())
	return it
}

// An Iterator is one running instance of a [Sequence]. Its locals are
// restored exactly across suspensions; a given instance is not restartable
// once advanced.
type Iterator[T any] struct {
	state GenState
	next  func() (T, bool)
	stop  func()
}

// Next resumes the instance from its last suspension point until the next
// yield, returning the yielded value, or until completion, reporting false.
func (it *Iterator[T]) Next() (T, bool) {
	if it.state == GenCompleted || it.state == GenCancelled {
		var zero T
		return zero, false
	}
	it.state = GenRunning
	v, ok := it.next()
	if ok {
		it.state = GenSuspended
	} else {
		it.state = GenCompleted
	}
	return v, ok
}

// Stop cancels the instance. The body's deferred cleanup runs before Stop
// returns. Stop is idempotent.
func (it *Iterator[T]) Stop() {
	if it.state == GenCompleted || it.state == GenCancelled {
		return
	}
	it.state = GenCancelled
	it.stop()
}

// State returns the instance's lifecycle state.
func (it *Iterator[T]) State() GenState { return it.state }
