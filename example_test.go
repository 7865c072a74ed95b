package async_test

import (
	"fmt"
	"strings"
	"time"

	"github.com/uloop/async"
)

func Example() {
	s := async.NewScheduler()

	c := async.NewCompleter[string](s)

	greeting := async.Then(c.Future(), func(name string) (string, error) {
		return "Hello, " + name + "!", nil
	})
	greeting.Done(func(v string) { fmt.Println(v) }, nil)

	s.ScheduleMacrotask(time.Second, func() { c.Complete("World") })

	s.RunUntilIdle()
	fmt.Println("elapsed:", s.Now())
	// Output:
	// Hello, World!
	// elapsed: 1s
}

func ExampleScheduler_ScheduleMicrotask() {
	s := async.NewScheduler()

	s.ScheduleMacrotask(0, func() { fmt.Println("macrotask") })
	s.ScheduleMicrotask(func() {
		fmt.Println("microtask 1")
		s.ScheduleMicrotask(func() { fmt.Println("microtask 2") })
	})

	s.RunUntilIdle()
	// Output:
	// microtask 1
	// microtask 2
	// macrotask
}

func ExampleMap() {
	s := async.NewScheduler()

	ctrl := async.NewController[string](s)
	upper := async.Map(ctrl.Stream(), func(v string) (string, error) {
		return strings.ToUpper(v), nil
	})
	upper.Listen(
		func(v string) { fmt.Println(v) },
		nil,
		func() { fmt.Println("(done)") },
	)

	ctrl.Add("apple")
	ctrl.Add("banana")
	ctrl.Close()

	s.RunUntilIdle()
	// Output:
	// APPLE
	// BANANA
	// (done)
}

func ExampleGenerate() {
	s := async.NewScheduler()

	var countdown func(i int) async.Step[int]
	countdown = func(i int) async.Step[int] {
		return func(g *async.Gen[int]) async.Verdict[int] {
			if i == 0 {
				return g.Return()
			}
			return g.Yield(i, countdown(i-1))
		}
	}

	async.Generate(s, countdown(3)).Listen(
		func(v int) { fmt.Println(v) },
		nil,
		func() { fmt.Println("liftoff") },
	)

	s.RunUntilIdle()
	// Output:
	// 3
	// 2
	// 1
	// liftoff
}

func ExampleSequence() {
	squares := async.NewSequence(func(yield func(int) bool) {
		for i := 1; ; i++ {
			if !yield(i * i) {
				return
			}
		}
	})

	it := squares.Iterate()
	defer it.Stop()
	for range 4 {
		v, _ := it.Next()
		fmt.Println(v)
	}
	// Output:
	// 1
	// 4
	// 9
	// 16
}

func ExampleWaitAll() {
	s := async.NewScheduler()

	a := async.NewCompleter[int](s)
	b := async.NewCompleter[int](s)

	async.WaitAll(s, a.Future(), b.Future()).Done(
		func(vs []int) { fmt.Println(vs) },
		nil,
	)

	b.Complete(2) // settlement order does not affect result order
	a.Complete(1)

	s.RunUntilIdle()
	// Output:
	// [1 2]
}
