package async_test

import (
	"errors"
	"fmt"
	"iter"
	"slices"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uloop/async"
)

func TestMapTransformsEachElement(t *testing.T) {
	t.Parallel()

	s, unhandled := newTestScheduler(t)

	ctrl := async.NewController[int](s)
	mapped := async.Map(ctrl.Stream(), func(v int) (int, error) { return v + 1, nil })

	var r recordListener
	r.listen(mapped)

	ctrl.Add(1)
	ctrl.Add(2)
	ctrl.Add(3)
	ctrl.Close()
	s.RunUntilIdle()

	assert.Equal(t, []string{"2", "3", "4", "done"}, r.events)
	assert.Empty(t, *unhandled)
}

func TestMapErrorBecomesAnEventAndTheStreamContinues(t *testing.T) {
	t.Parallel()

	s, unhandled := newTestScheduler(t)

	ctrl := async.NewController[int](s)
	mapped := async.Map(ctrl.Stream(), func(v int) (int, error) {
		if v == 2 {
			return 0, errors.New("two")
		}
		return v * 10, nil
	})

	var r recordListener
	r.listen(mapped)

	ctrl.Add(1)
	ctrl.Add(2)
	ctrl.Add(3)
	ctrl.Close()
	s.RunUntilIdle()

	assert.Equal(t, []string{"10", "err:two", "30", "done"}, r.events)
	assert.Empty(t, *unhandled)
}

func TestMapPanicBecomesAnErrorEvent(t *testing.T) {
	t.Parallel()

	s, _ := newTestScheduler(t)

	ctrl := async.NewController[int](s)
	mapped := async.Map(ctrl.Stream(), func(v int) (int, error) {
		if v == 2 {
			panic("no twos")
		}
		return v, nil
	})

	var got []string
	mapped.Listen(
		func(v int) { got = append(got, strconv.Itoa(v)) },
		func(err error) {
			var pe *async.PanicError
			require.ErrorAs(t, err, &pe)
			got = append(got, "panic")
		},
		func() { got = append(got, "done") },
	)

	ctrl.Add(1)
	ctrl.Add(2)
	ctrl.Add(3)
	ctrl.Close()
	s.RunUntilIdle()

	assert.Equal(t, []string{"1", "panic", "3", "done"}, got)
}

func TestWhereKeepsMatchingElements(t *testing.T) {
	t.Parallel()

	s, _ := newTestScheduler(t)

	ctrl := async.NewController[int](s)
	even := async.Where(ctrl.Stream(), func(v int) (bool, error) { return v%2 == 0, nil })

	var r recordListener
	r.listen(even)

	for v := 1; v <= 6; v++ {
		ctrl.Add(v)
	}
	ctrl.Close()
	s.RunUntilIdle()

	assert.Equal(t, []string{"2", "4", "6", "done"}, r.events)
}

func TestWherePredicateErrorDropsTheElement(t *testing.T) {
	t.Parallel()

	s, _ := newTestScheduler(t)

	ctrl := async.NewController[int](s)
	filtered := async.Where(ctrl.Stream(), func(v int) (bool, error) {
		if v == 2 {
			return true, errors.New("undecidable")
		}
		return true, nil
	})

	var r recordListener
	r.listen(filtered)

	ctrl.Add(1)
	ctrl.Add(2)
	ctrl.Add(3)
	ctrl.Close()
	s.RunUntilIdle()

	assert.Equal(t, []string{"1", "err:undecidable", "3", "done"}, r.events)
}

func TestExpandEmitsWholeSubSequencesInOrder(t *testing.T) {
	t.Parallel()

	s, _ := newTestScheduler(t)

	ctrl := async.NewController[int](s)
	expanded := async.Expand(ctrl.Stream(), func(v int) iter.Seq[int] {
		return slices.Values([]int{v, v * 10})
	})

	var r recordListener
	r.listen(expanded)

	ctrl.Add(1)
	ctrl.Add(2)
	ctrl.Close()
	s.RunUntilIdle()

	assert.Equal(t, []string{"1", "10", "2", "20", "done"}, r.events)
}

func TestTransformerFlushesBeforeClose(t *testing.T) {
	t.Parallel()

	s, _ := newTestScheduler(t)

	ctrl := async.NewController[int](s)
	sum := 0
	summed := async.Transform(ctrl.Stream(), async.Transformer[int, int]{
		HandleData: func(v int, out *async.Controller[int]) { sum += v },
		HandleDone: func(out *async.Controller[int]) {
			out.Add(sum)
			out.Close()
		},
	})

	var r recordListener
	r.listen(summed)

	ctrl.Add(1)
	ctrl.Add(2)
	ctrl.Add(3)
	ctrl.Close()
	s.RunUntilIdle()

	assert.Equal(t, []string{"6", "done"}, r.events)
}

func TestCombinatorsAreLazy(t *testing.T) {
	t.Parallel()

	s, _ := newTestScheduler(t)

	ctrl := async.NewController[int](s)
	started := false
	ctrl.OnListen(func() { started = true })

	calls := 0
	mapped := async.Map(ctrl.Stream(), func(v int) (int, error) {
		calls++
		return v, nil
	})

	s.RunUntilIdle()
	assert.False(t, started, "nothing subscribes upstream until the result is listened to")
	assert.Zero(t, calls)

	var r recordListener
	r.listen(mapped)
	assert.True(t, started)
}

func TestCancelingTheResultCancelsUpstream(t *testing.T) {
	t.Parallel()

	s, _ := newTestScheduler(t)

	ctrl := async.NewController[int](s)
	upstreamCanceled := false
	ctrl.OnCancel(func() *async.Future[struct{}] {
		upstreamCanceled = true
		return nil
	})

	mapped := async.Map(ctrl.Stream(), func(v int) (int, error) { return v, nil })

	var r recordListener
	sub := r.listen(mapped)
	s.RunUntilIdle()

	canceled := false
	sub.Cancel().Done(func(struct{}) { canceled = true }, nil)
	s.RunUntilIdle()

	assert.True(t, upstreamCanceled)
	assert.True(t, canceled)
}

func TestTransformKeepsTheSourceVariant(t *testing.T) {
	t.Parallel()

	s, unhandled := newTestScheduler(t)

	ctrl := async.NewBroadcastController[int](s)
	doubled := async.Map(ctrl.Stream(), func(v int) (int, error) { return v * 2, nil })

	// A broadcast result admits several listeners off one upstream listen.
	var a, b []string
	doubled.Listen(func(v int) { a = append(a, fmt.Sprint(v)) }, nil, func() { a = append(a, "done") })
	doubled.Listen(func(v int) { b = append(b, fmt.Sprint(v)) }, nil, func() { b = append(b, "done") })

	ctrl.Add(1)
	ctrl.Add(2)
	ctrl.Close()
	s.RunUntilIdle()

	assert.Equal(t, []string{"2", "4", "done"}, a)
	assert.Equal(t, []string{"2", "4", "done"}, b)
	assert.Empty(t, *unhandled)
}

func TestTransformWithoutHandleDataIsAProgrammingError(t *testing.T) {
	t.Parallel()

	s, unhandled := newTestScheduler(t)

	ctrl := async.NewController[int](s)
	broken := async.Transform[int, int](ctrl.Stream(), async.Transformer[int, int]{})

	var r recordListener
	r.listen(broken)
	s.RunUntilIdle()

	assert.Equal(t, []string{"done"}, r.events)
	require.Len(t, *unhandled, 1)
	var pe *async.ProgrammingError
	assert.ErrorAs(t, (*unhandled)[0], &pe)
}
