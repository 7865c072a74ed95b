package async_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uloop/async"
)

// hostTimers is a TimerProvider standing in for a host timer wheel: nothing
// fires until the test does so by hand, through Scheduler.Post.
type hostTimers struct {
	last     async.TimerToken
	armed    map[async.TimerToken]func()
	canceled []async.TimerToken
}

func newHostTimers() *hostTimers {
	return &hostTimers{armed: make(map[async.TimerToken]func())}
}

func (p *hostTimers) RegisterTimer(delay time.Duration, f func()) async.TimerToken {
	p.last++
	p.armed[p.last] = f
	return p.last
}

func (p *hostTimers) CancelTimer(token async.TimerToken) {
	delete(p.armed, token)
	p.canceled = append(p.canceled, token)
}

func (p *hostTimers) fire(s *async.Scheduler, token async.TimerToken) {
	f := p.armed[token]
	delete(p.armed, token)
	s.Post(f)
}

func TestExternalTimerProviderOwnsMacrotasks(t *testing.T) {
	t.Parallel()

	p := newHostTimers()
	s := async.NewScheduler(async.WithTimerProvider(p))

	fired := false
	token := s.ScheduleMacrotask(10*time.Millisecond, func() { fired = true })
	require.NotZero(t, token)

	s.RunUntilIdle()
	assert.False(t, fired, "the scheduler must not fire a host-owned timer itself")
	assert.Zero(t, s.Now(), "the virtual clock never advances with an external provider")

	p.fire(s, token)
	s.RunUntilIdle()
	assert.True(t, fired)
	assert.Zero(t, s.Now())
}

func TestExternalTimerProviderCancel(t *testing.T) {
	t.Parallel()

	p := newHostTimers()
	s := async.NewScheduler(async.WithTimerProvider(p))

	token := s.ScheduleMacrotask(10*time.Millisecond, func() {
		t.Error("a canceled timer fired")
	})
	s.CancelMacrotask(token)

	assert.Equal(t, []async.TimerToken{token}, p.canceled)
	assert.Empty(t, p.armed)
	s.RunUntilIdle()
}

func TestWithTimeoutCancelsTheLosingTimerThroughTheProvider(t *testing.T) {
	t.Parallel()

	p := newHostTimers()
	s := async.NewScheduler(async.WithTimerProvider(p))

	c := async.NewCompleter[int](s)
	got := 0
	async.WithTimeout(c.Future(), 50*time.Millisecond).Done(
		func(v int) { got = v },
		func(err error) { t.Errorf("unexpected failure: %v", err) },
	)
	require.Len(t, p.armed, 1, "the deadline must be registered with the provider")

	c.Complete(7)
	s.RunUntilIdle()

	assert.Equal(t, 7, got)
	assert.Len(t, p.canceled, 1, "the losing deadline timer must be handed back for cancellation")
	assert.Empty(t, p.armed)
}
