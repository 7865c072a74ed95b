package async

import "log/slog"

// A SchedulerOption configures a [Scheduler].
type SchedulerOption func(*schedulerConfig)

type schedulerConfig struct {
	sink     func(error)
	provider TimerProvider
	logger   *slog.Logger
}

// WithUnhandledErrorHandler sets the sink that receives unhandled operation
// errors, contract violations and recovered task panics. The default sink
// logs through [log/slog].
func WithUnhandledErrorHandler(f func(error)) SchedulerOption {
	return func(c *schedulerConfig) {
		c.sink = f
	}
}

// WithTimerProvider replaces the built-in virtual-clock timer provider.
func WithTimerProvider(p TimerProvider) SchedulerOption {
	return func(c *schedulerConfig) {
		c.provider = p
	}
}

// WithLogger sets the logger used by the default unhandled-error sink.
func WithLogger(l *slog.Logger) SchedulerOption {
	return func(c *schedulerConfig) {
		c.logger = l
	}
}

// OverflowPolicy controls what happens to events arriving for a paused
// broadcast listener whose buffer is full.
type OverflowPolicy uint8

const (
	// DropOldest evicts the oldest buffered event to make room for the
	// newest one. This is the default.
	DropOldest OverflowPolicy = iota

	// DropNewest discards the incoming event instead.
	DropNewest
)

const defaultPauseBuffer = 32

// A ControllerOption configures a [Controller].
type ControllerOption func(*controllerConfig)

type controllerConfig struct {
	pauseBuffer int
	policy      OverflowPolicy
}

// WithPauseBufferSize bounds the per-listener buffer of a paused broadcast
// listener. The default is 32. A value below one removes the bound.
//
// Single-subscription streams buffer without bound while paused; this option
// has no effect on them.
func WithPauseBufferSize(n int) ControllerOption {
	return func(c *controllerConfig) {
		c.pauseBuffer = n
	}
}

// WithOverflowPolicy sets the [OverflowPolicy] for paused broadcast
// listeners. Dropped events are counted; see [Subscription.Dropped].
func WithOverflowPolicy(p OverflowPolicy) ControllerOption {
	return func(c *controllerConfig) {
		c.policy = p
	}
}
