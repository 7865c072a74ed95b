package async

import "slices"

// A Stream is an asynchronous sequence of values and errors terminated by
// a done signal.
//
// There are two variants, both produced by a [Controller] and both behind
// this interface; the union is closed. A single-subscription stream admits
// at most one [Subscription] ever; a broadcast stream admits any number of
// concurrent ones. See [NewController] and [NewBroadcastController].
//
// A Stream must not be shared across schedulers or goroutines.
type Stream[T any] interface {
	// Listen attaches callbacks and returns a live Subscription.
	// Any callback may be nil. Listening triggers the lazy start of
	// production.
	//
	// For a single-subscription stream a second call is a ProgrammingError:
	// it is reported to the unhandled-error sink and an inert, already-done
	// Subscription is returned.
	Listen(onData func(T), onError func(error), onDone func()) *Subscription[T]

	scheduler() *Scheduler
	isBroadcast() bool
}

// streamEvent is one slot of the interleaved data/error/done sequence.
// Data and errors are one sequence, not two channels.
type streamEvent[T any] struct {
	value T
	err   error
	done  bool
}

// A Controller is the exclusive write capability for one [Stream].
//
// Events added to a single-subscription stream before anyone listens are
// buffered, without bound, and flushed in emission order on the first
// Listen. Events added to a broadcast stream with zero listeners are
// dropped.
type Controller[T any] struct {
	s         *Scheduler
	cfg       controllerConfig
	broadcast bool
	closed    bool
	listened  bool // single-subscription: Listen was called
	subs      []*Subscription[T]
	pending   []streamEvent[T]
	onListen  func()
	onCancel  func() *Future[struct{}]
	onPause   func(paused bool) // single-subscription backpressure hook
}

// NewController creates the write side of a single-subscription [Stream].
func NewController[T any](s *Scheduler, opts ...ControllerOption) *Controller[T] {
	return newController[T](s, false, opts)
}

// NewBroadcastController creates the write side of a broadcast [Stream].
func NewBroadcastController[T any](s *Scheduler, opts ...ControllerOption) *Controller[T] {
	return newController[T](s, true, opts)
}

func newController[T any](s *Scheduler, broadcast bool, opts []ControllerOption) *Controller[T] {
	cfg := controllerConfig{pauseBuffer: defaultPauseBuffer, policy: DropOldest}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &Controller[T]{s: s, cfg: cfg, broadcast: broadcast}
}

// Stream returns the read side of c.
func (c *Controller[T]) Stream() Stream[T] {
	return (*controllerStream[T])(c)
}

// Scheduler returns the scheduler c was created on.
func (c *Controller[T]) Scheduler() *Scheduler { return c.s }

// OnListen registers f to run when the listener count goes from zero to one.
// Producers use it to start production lazily.
func (c *Controller[T]) OnListen(f func()) {
	c.onListen = f
}

// OnCancel registers f to run when the last [Subscription] cancels.
// The future f returns, if any, gates the cancel-future handed to the
// subscriber: cancellation is acknowledged only after upstream teardown.
func (c *Controller[T]) OnCancel(f func() *Future[struct{}]) {
	c.onCancel = f
}

// Add emits v. Calling Add after Close is a [ProgrammingError] and the
// event is discarded.
func (c *Controller[T]) Add(v T) {
	if c.closed {
		c.s.ReportUnhandledError(programmingError("async: Controller: Add after Close"))
		return
	}
	c.emit(streamEvent[T]{value: v})
}

// AddError emits err as an event. Errors take the same path as values and
// keep their relative order with them.
func (c *Controller[T]) AddError(err error) {
	if err == nil {
		c.s.ReportUnhandledError(programmingError("async: Controller: AddError with nil error"))
		return
	}
	if c.closed {
		c.s.ReportUnhandledError(programmingError("async: Controller: AddError after Close"))
		return
	}
	c.emit(streamEvent[T]{err: err})
}

// Close terminates the stream. The done signal is delivered after every
// event emitted before it. Calling Close twice is a [ProgrammingError].
func (c *Controller[T]) Close() {
	if c.closed {
		c.s.ReportUnhandledError(programmingError("async: Controller: Close after Close"))
		return
	}
	c.closed = true
	c.emit(streamEvent[T]{done: true})
}

// Closed reports whether Close has been called.
func (c *Controller[T]) Closed() bool { return c.closed }

func (c *Controller[T]) emit(ev streamEvent[T]) {
	if !c.broadcast && !c.listened {
		c.pending = append(c.pending, ev)
		return
	}
	for _, sub := range c.subs {
		sub.enqueue(ev)
	}
}

func (c *Controller[T]) removeSub(sub *Subscription[T]) {
	if i := slices.Index(c.subs, sub); i != -1 {
		c.subs = slices.Delete(c.subs, i, i+1)
	}
}

// handleCancel detaches sub and, when it was the last listener, notifies
// the producer. It returns the producer's acknowledgment future, if any.
func (c *Controller[T]) handleCancel(sub *Subscription[T]) *Future[struct{}] {
	c.removeSub(sub)
	if len(c.subs) != 0 || c.onCancel == nil {
		return nil
	}
	var ack *Future[struct{}]
	guard(c.s, func() { ack = c.onCancel() })
	return ack
}

// controllerStream is the read-only face of a Controller.
type controllerStream[T any] Controller[T]

func (cs *controllerStream[T]) scheduler() *Scheduler { return (*Controller[T])(cs).s }

func (cs *controllerStream[T]) isBroadcast() bool { return (*Controller[T])(cs).broadcast }

func (cs *controllerStream[T]) Listen(onData func(T), onError func(error), onDone func()) *Subscription[T] {
	c := (*Controller[T])(cs)

	if !c.broadcast && c.listened {
		c.s.ReportUnhandledError(programmingError("async: Stream: single-subscription stream listened to twice"))
		return &Subscription[T]{s: c.s, done: true}
	}

	sub := &Subscription[T]{
		s:       c.s,
		ctrl:    c,
		onData:  onData,
		onError: onError,
		onDone:  onDone,
	}
	if c.broadcast && c.cfg.pauseBuffer > 0 {
		sub.bounded = true
		sub.capacity = c.cfg.pauseBuffer
		sub.policy = c.cfg.policy
	}

	first := len(c.subs) == 0
	c.subs = append(c.subs, sub)
	c.listened = true

	if !c.broadcast {
		pending := c.pending
		c.pending = nil
		for _, ev := range pending {
			sub.enqueue(ev)
		}
	} else if c.closed {
		sub.enqueue(streamEvent[T]{done: true})
	}

	if first && !c.closed && c.onListen != nil {
		guard(c.s, c.onListen)
	}

	return sub
}

// A Subscription is a live, cancellable, pausable handle to one listener
// of a [Stream].
type Subscription[T any] struct {
	s       *Scheduler
	ctrl    *Controller[T]
	onData  func(T)
	onError func(error)
	onDone  func()

	paused   int
	buffer   []streamEvent[T]
	bounded  bool
	capacity int
	policy   OverflowPolicy
	dropped  uint64
	draining bool

	done      bool
	canceled  bool
	cancelFut *Future[struct{}]
}

// OnData replaces the data callback.
func (sub *Subscription[T]) OnData(f func(T)) { sub.onData = f }

// OnError replaces the error callback.
func (sub *Subscription[T]) OnError(f func(error)) { sub.onError = f }

// OnDone replaces the done callback.
func (sub *Subscription[T]) OnDone(f func()) { sub.onDone = f }

// Pause halts delivery to this listener. Pauses nest: delivery resumes only
// after a matching number of [Subscription.Resume] calls.
//
// While paused, a single-subscription listener buffers without bound; a
// broadcast listener buffers up to a configured capacity and then drops
// per the controller's [OverflowPolicy], counting the drops.
func (sub *Subscription[T]) Pause() {
	if sub.canceled || sub.done {
		return
	}
	sub.paused++
	if sub.paused == 1 && sub.ctrl != nil && sub.ctrl.onPause != nil {
		sub.ctrl.onPause(true)
	}
}

// Resume undoes one Pause. Resuming an unpaused subscription is a
// [ProgrammingError] and has no effect.
func (sub *Subscription[T]) Resume() {
	if sub.canceled || sub.done {
		return
	}
	if sub.paused == 0 {
		sub.s.ReportUnhandledError(programmingError("async: Subscription: Resume without matching Pause"))
		return
	}
	sub.paused--
	if sub.paused == 0 {
		if sub.ctrl != nil && sub.ctrl.onPause != nil {
			sub.ctrl.onPause(false)
		}
		sub.drain()
	}
}

// Paused reports whether delivery is currently halted.
func (sub *Subscription[T]) Paused() bool { return sub.paused > 0 }

// Dropped returns how many events were dropped while this listener was
// paused with a full buffer.
func (sub *Subscription[T]) Dropped() uint64 { return sub.dropped }

// Canceled reports whether Cancel has been called.
func (sub *Subscription[T]) Canceled() bool { return sub.canceled }

// Cancel stops delivery and tears down the upstream producer.
//
// Cancel is idempotent: every call returns the same Future, which completes
// only after the upstream (controller or generator) has acknowledged
// teardown.
func (sub *Subscription[T]) Cancel() *Future[struct{}] {
	if sub.cancelFut != nil {
		return sub.cancelFut
	}

	c := NewCompleter[struct{}](sub.s)
	sub.cancelFut = c.Future()

	if sub.done {
		// Production already finished; nothing upstream to tear down.
		c.Complete(struct{}{})
		return sub.cancelFut
	}

	sub.canceled = true
	sub.buffer = nil

	var ack *Future[struct{}]
	if ctrl := sub.ctrl; ctrl != nil {
		sub.ctrl = nil
		ack = ctrl.handleCancel(sub)
	}
	if ack == nil {
		c.Complete(struct{}{})
		return sub.cancelFut
	}
	ack.Done(
		func(struct{}) { c.Complete(struct{}{}) },
		func(err error) {
			sub.s.ReportUnhandledError(err)
			c.Complete(struct{}{})
		},
	)
	return sub.cancelFut
}

// enqueue accepts one event from the controller. Every event goes through
// the same FIFO buffer, so data, errors and done keep their relative order
// no matter how pauses interleave with delivery.
func (sub *Subscription[T]) enqueue(ev streamEvent[T]) {
	if sub.canceled || sub.done {
		return
	}
	sub.bufferEvent(ev)
	if sub.paused == 0 {
		sub.drain()
	}
}

func (sub *Subscription[T]) bufferEvent(ev streamEvent[T]) {
	// The bound applies only while paused; an unpaused buffer is just the
	// in-flight delivery queue. The done signal is never dropped.
	if sub.bounded && sub.paused > 0 && len(sub.buffer) >= sub.capacity && !ev.done {
		sub.dropped++
		if sub.policy == DropNewest {
			return
		}
		sub.buffer = sub.buffer[1:]
	}
	sub.buffer = append(sub.buffer, ev)
}

func (sub *Subscription[T]) deliver(ev streamEvent[T]) {
	switch {
	case ev.done:
		sub.done = true
		if ctrl := sub.ctrl; ctrl != nil {
			sub.ctrl = nil
			ctrl.removeSub(sub)
		}
		if sub.onDone != nil {
			guard(sub.s, sub.onDone)
		}
	case ev.err != nil:
		if sub.onError != nil {
			guard(sub.s, func() { sub.onError(ev.err) })
		} else {
			sub.s.ReportUnhandledError(ev.err)
		}
	default:
		if sub.onData != nil {
			guard(sub.s, func() { sub.onData(ev.value) })
		}
	}
}

// drain flushes the pause buffer, one event per microtask so that a pause
// in between takes effect immediately.
func (sub *Subscription[T]) drain() {
	if sub.draining || len(sub.buffer) == 0 {
		return
	}
	sub.draining = true
	sub.s.ScheduleMicrotask(sub.drainStep)
}

func (sub *Subscription[T]) drainStep() {
	sub.draining = false
	if sub.canceled || sub.done || sub.paused > 0 || len(sub.buffer) == 0 {
		return
	}
	ev := sub.buffer[0]
	sub.buffer = sub.buffer[1:]
	sub.deliver(ev)
	if !sub.canceled && !sub.done && sub.paused == 0 && len(sub.buffer) != 0 {
		sub.draining = true
		sub.s.ScheduleMicrotask(sub.drainStep)
	}
}
