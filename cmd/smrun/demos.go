package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/wippyai/asyncsm/builder"
	"github.com/wippyai/asyncsm/future"
	"github.com/wippyai/asyncsm/statemachine"
	"github.com/wippyai/asyncsm/telemetry"
)

type demo func(cfg *statemachine.Config) (any, error)

var demos = map[string]demo{
	"sum":      sumDemo,
	"guarded":  guardedDemo,
	"finally":  finallyDemo,
	"timeout":  timeoutDemo,
	"deadline": deadlineDemo,
}

func demoNames() []string {
	names := make([]string, 0, len(demos))
	for name := range demos {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func runDemo(name string, obs statemachine.Observer) error {
	d, ok := demos[name]
	if !ok {
		return fmt.Errorf("unknown demo %q", name)
	}
	fmt.Printf("Demo: %s\n", name)
	cfg := &statemachine.Config{Name: name, Observer: telemetry.Multi(obs, printer())}
	v, err := d(cfg)
	if err != nil {
		fmt.Printf("Failed: %v\n", err)
		return nil
	}
	fmt.Printf("Result: %v\n", v)
	return nil
}

// delayed resolves to v after d on another goroutine.
func delayed[T any](v T, d time.Duration) *future.Future[T] {
	return future.Go(context.Background(), func(ctx context.Context) (T, error) {
		time.Sleep(d)
		return v, nil
	})
}

func failAfter[T any](err error, d time.Duration) *future.Future[T] {
	return future.Go(context.Background(), func(ctx context.Context) (T, error) {
		time.Sleep(d)
		var zero T
		return zero, err
	})
}

type sumLocals struct {
	opA, opB *future.Future[int]
	a        int
}

type sumMachine = statemachine.Machine[sumLocals, int]

// sumDemo awaits an already completed operation, then one that completes
// later, and returns their sum.
func sumDemo(cfg *statemachine.Config) (any, error) {
	prog, err := builder.New[sumLocals, int](1).
		State(1, func(m *sumMachine) error {
			statemachine.MoveNext(m, m.Locals.opA, 2)
			return nil
		}, builder.Named("await-a")).
		State(2, func(m *sumMachine) error {
			v, err := m.Locals.opA.Result()
			if err != nil {
				return err
			}
			m.Locals.a = v
			statemachine.MoveNext(m, m.Locals.opB, 3)
			return nil
		}, builder.Named("await-b")).
		State(3, func(m *sumMachine) error {
			v, err := m.Locals.opB.Result()
			if err != nil {
				return err
			}
			m.Complete(m.Locals.a + v)
			return nil
		}, builder.Named("sum")).
		Build()
	if err != nil {
		return nil, err
	}

	fut := prog.Start(sumLocals{opA: future.Completed(2), opB: delayed(3, 50*time.Millisecond)}, cfg)
	fmt.Printf("Started, completed=%v\n", fut.IsCompleted())
	return fut.Await(context.Background())
}

type parseError struct{ input string }

func (e *parseError) Error() string { return "cannot parse " + e.input }

type guardedLocals struct {
	op       *future.Future[int]
	cleanup  error
	result   int
	finallys int
}

type guardedMachine = statemachine.Machine[guardedLocals, int]

const (
	gEnter statemachine.StateID = iota + 1
	gBody
	gCatch
	gFinally
	gReturn
)

// guardedProgram is try { await op } catch (*parseError) { -1 } finally { finallys++ }.
// A non-nil cleanup error is raised from the finally body.
func guardedProgram() (*builder.Program[guardedLocals, int], error) {
	return builder.New[guardedLocals, int](gEnter).
		State(gEnter, func(m *guardedMachine) error {
			m.EnterGuardedCode(gBody)
			statemachine.MoveNext(m, m.Locals.op, gBody)
			return nil
		}, builder.Named("enter")).
		State(gBody, func(m *guardedMachine) error {
			v, err := m.Locals.op.Result()
			if err != nil {
				return err
			}
			m.Locals.result = v
			m.ExitGuardedCode(gFinally, true)
			return nil
		}, builder.Named("body"), builder.FaultTo(gCatch)).
		State(gCatch, func(m *guardedMachine) error {
			if pe, ok := statemachine.TryRecover[*parseError](m); ok {
				fmt.Printf("  handler caught: %v\n", pe)
				m.Locals.result = -1
			}
			m.ExitGuardedCode(gFinally, true)
			return nil
		}, builder.Named("catch")).
		State(gFinally, func(m *guardedMachine) error {
			m.Locals.finallys++
			fmt.Printf("  finally ran (%d)\n", m.Locals.finallys)
			if m.Locals.cleanup != nil {
				return m.Locals.cleanup
			}
			if err := m.Rethrow(); err != nil {
				return err
			}
			m.Goto(gReturn)
			return nil
		}, builder.Named("finally")).
		State(gReturn, func(m *guardedMachine) error {
			m.Complete(m.Locals.result)
			return nil
		}, builder.Named("return")).
		Build()
}

// guardedDemo raises a parse error from an awaited operation; the handler
// swallows it and the finally body runs once.
func guardedDemo(cfg *statemachine.Config) (any, error) {
	prog, err := guardedProgram()
	if err != nil {
		return nil, err
	}
	op := failAfter[int](&parseError{input: "x1"}, 20*time.Millisecond)
	return prog.Start(guardedLocals{op: op}, cfg).Await(context.Background())
}

// finallyDemo raises an unhandled fault, then a second fault from the
// finally body; the second one wins.
func finallyDemo(cfg *statemachine.Config) (any, error) {
	prog, err := guardedProgram()
	if err != nil {
		return nil, err
	}
	op := failAfter[int](errors.New("connection reset"), 20*time.Millisecond)
	return prog.Start(guardedLocals{op: op, cleanup: errors.New("cleanup failed")}, cfg).Await(context.Background())
}

type timeoutLocals struct {
	op *future.Future[string]
}

// timeoutDemo bounds a slow operation with future.Timeout and falls back
// when the deadline fires.
func timeoutDemo(cfg *statemachine.Config) (any, error) {
	transition := func(m *statemachine.Machine[timeoutLocals, string]) error {
		l := &m.Locals
		if m.Entering() {
			m.EnterGuardedCode(1)
			l.op = future.Timeout(delayed("slow answer", time.Second), 100*time.Millisecond)
			if !statemachine.MoveNext(m, l.op, 1) {
				return nil
			}
		}
		if m.Faulted() {
			if _, ok := statemachine.TryRecoverIf(m, func(err error) bool {
				return errors.Is(err, context.DeadlineExceeded)
			}); ok {
				m.ExitGuardedCode(statemachine.Final, false)
				m.Complete("fallback after timeout")
				return nil
			}
			return m.Rethrow()
		}
		v, err := l.op.Result()
		if err != nil {
			return err
		}
		m.ExitGuardedCode(statemachine.Final, false)
		m.Complete(v)
		return nil
	}
	return statemachine.StartWithConfig(transition, timeoutLocals{}, cfg).Await(context.Background())
}

type deadlineLocals struct {
	ctx    context.Context
	cancel context.CancelFunc
	slow   *future.Future[string]
}

// deadlineDemo awaits a context deadline adapted with statemachine.Adapt
// and reports whether a slow operation finished before it.
func deadlineDemo(cfg *statemachine.Config) (any, error) {
	transition := func(m *statemachine.Machine[deadlineLocals, string]) error {
		l := &m.Locals
		if m.Entering() {
			l.slow = delayed("slow answer", time.Second)
			l.ctx, l.cancel = context.WithTimeout(context.Background(), 50*time.Millisecond)
			aw, err := statemachine.Adapt(l.ctx)
			if err != nil {
				l.cancel()
				return err
			}
			if !statemachine.MoveNext(m, aw, statemachine.Final) {
				return nil
			}
		}
		defer l.cancel()
		if v, err := l.slow.Result(); err == nil {
			m.Complete(v)
			return nil
		}
		m.Complete("deadline: " + l.ctx.Err().Error())
		return nil
	}
	return statemachine.StartWithConfig(transition, deadlineLocals{}, cfg).Await(context.Background())
}
