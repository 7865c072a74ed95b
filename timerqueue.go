package async

import (
	"sort"
	"time"
)

type timer struct {
	due      time.Duration
	seq      uint64
	token    TimerToken
	f        func()
	canceled bool
}

func (tm *timer) less(other *timer) bool {
	if tm.due != other.due {
		return tm.due < other.due
	}
	return tm.seq < other.seq
}

// timerqueue is an ordered queue of timers, soonest due time first.
// Timers with the same due time keep their arrival order.
//
// The queue is split into a head and a tail sharing one backing array:
// the head is what remains after popping, the tail collects pushes that
// sort after the head. This keeps pushes cheap for the common case of
// timers registered in roughly increasing due order.
type timerqueue struct {
	head, tail []*timer
}

func (q *timerqueue) Empty() bool {
	return len(q.head) == 0
}

func (q *timerqueue) First() *timer {
	if len(q.head) == 0 {
		return nil
	}
	return q.head[0]
}

func (q *timerqueue) Push(tm *timer) {
	headsize, tailsize := len(q.head), len(q.tail)

	n := headsize + tailsize

	i := sort.Search(n, func(i int) bool {
		if i < headsize {
			return tm.less(q.head[i])
		}

		i -= headsize

		return tm.less(q.tail[i])
	})

	if n == cap(q.tail) {
		s := append(q.tail[:n], nil)[:0]

		if i < headsize {
			s = append(s, q.head[:i]...)
			s = append(s, tm)
			s = append(s, q.head[i:]...)
			s = append(s, q.tail...)
		} else {
			i -= headsize
			s = append(s, q.head...)
			s = append(s, q.tail[:i]...)
			s = append(s, tm)
			s = append(s, q.tail[i:]...)
		}

		q.head, q.tail = s, s[:0]

		return
	}

	if headsize < cap(q.head) {
		s := q.head
		s = s[:headsize+1]
		copy(s[i+1:], s[i:])
		s[i] = tm
		q.head = s
		return
	}

	if i < headsize {
		s := q.head
		u := s[headsize-1]
		copy(s[i+1:], s[i:])
		s[i] = tm
		tm = u
		i = headsize
	}

	i -= headsize

	s := q.tail
	s = s[:tailsize+1]
	copy(s[i+1:], s[i:])
	s[i] = tm
	q.tail = s
}

func (q *timerqueue) Pop() *timer {
	tm := q.head[0]
	q.head[0] = nil

	if len(q.head) > 1 {
		q.head = q.head[1:]
	} else {
		q.head, q.tail = q.tail, q.tail[:0]
	}

	return tm
}
