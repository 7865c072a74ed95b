// Package async implements a single-threaded cooperative runtime: one-shot
// deferred values ([Future]), multi-value asynchronous sequences ([Stream]),
// and suspendable producer functions (generators), all driven by an explicit
// [Scheduler].
//
// Since Go has already done a great job in bringing green/virtual threads
// into life, this library does not fork: concurrency here is interleaving,
// not parallelism. Exactly one task runs at a time, to completion, before
// the next is chosen. One can create as many schedulers as they like; each
// is fully independent, including its clock, which makes asynchronous code
// deterministic under test.
//
// # Ordering
//
// A [Scheduler] owns two queues. Microtasks run strictly FIFO and fully
// drain, including microtasks enqueued during the drain, before a single
// macrotask (a timer or host I/O callback) runs. Continuations chained off
// one Future fire in registration order, and a stream pipeline preserves
// the relative order of its source's events end-to-end. Callers may depend
// on all of this.
//
// # The Five Primitives
//
// Producers get three calls: Add, AddError and Close on a [Controller].
// Consumers get two: Done (or [Then] and friends) on a [Future], and
// Listen on a [Stream]. Higher-level I/O wrappers are expected to adapt
// their callback-based completion events into these five; nothing else in
// a host environment needs to know how the runtime works.
//
// # Errors Are Data
//
// Operation errors flow through Then and Listen chains exactly like values
// until a handler consumes them; an error that reaches the end of a chain
// unconsumed is escalated to the scheduler's unhandled-error sink, never
// silently dropped. A contract violation (settling a [Completer] twice,
// feeding a [Controller] after Close, listening twice on a
// single-subscription stream) is a [ProgrammingError], reported through
// the same sink while the offending call becomes a no-op.
//
// # Generators
//
// An asynchronous generator ([Generate]) is a push-driven coroutine: a
// chain of [Step] functions, each running from one suspension point to the
// next, yielding into a stream, awaiting futures in between, delegating to
// sub-streams, and unwinding registered cleanups when it finishes or its
// consumer cancels. A synchronous generator ([Sequence]) is pull-driven:
// each instance is advanced by Next and stopped at will.
//
// # Blocking
//
// It's not recommended to block in anything the scheduler runs. If one
// task blocks, no other tasks can run. Channels, sleeps and sockets belong
// in host callbacks that hand their completions to the scheduler via
// [Scheduler.Post] or a [Controller].
package async
