package statemachine

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wippyai/asyncsm"
	"github.com/wippyai/asyncsm/errors"
	"github.com/wippyai/asyncsm/future"
)

type sumLocals struct {
	opA, opB *future.Future[int]
	a, b     int
}

const (
	stateAfterA StateID = 1
	stateAfterB StateID = 2
)

// sumTransition awaits opA then opB and completes with their sum.
func sumTransition(m *Machine[sumLocals, int]) error {
	l := &m.Locals
	if m.Entering() {
		if !MoveNext(m, l.opA, stateAfterA) {
			return nil
		}
	}
	switch m.State() {
	case stateAfterA:
		v, err := l.opA.Result()
		if err != nil {
			return err
		}
		l.a = v
		if !MoveNext(m, l.opB, stateAfterB) {
			return nil
		}
		fallthrough
	case stateAfterB:
		v, err := l.opB.Result()
		if err != nil {
			return err
		}
		l.b = v
		m.Complete(l.a + l.b)
	}
	return nil
}

func recordEvents(events *[]EventType) Observer {
	return ObserverFunc(func(e Event) { *events = append(*events, e.Type) })
}

func TestSynchronousFastPath(t *testing.T) {
	var events []EventType
	cfg := &Config{Observer: recordEvents(&events)}

	fut := StartWithConfig(sumTransition, sumLocals{opA: future.Completed(2), opB: future.Completed(3)}, cfg)

	require.True(t, fut.IsCompleted(), "future must be complete when Start returns")
	v, err := fut.Result()
	require.NoError(t, err)
	require.Equal(t, 5, v)
	require.Equal(t, []EventType{EventStarted, EventCompleted}, events)
}

func TestSumScenarioSyncThenAsync(t *testing.T) {
	var events []EventType
	opB := future.NewPromise[int]()
	m := New(sumTransition, sumLocals{opA: future.Completed(2), opB: opB.Future()}, &Config{Observer: recordEvents(&events)})

	fut := m.Start()
	require.False(t, fut.IsCompleted())
	require.Equal(t, StatusSuspended, m.Status())
	require.Equal(t, stateAfterB, m.State())
	require.Equal(t, 2, m.Locals.a, "locals survive the suspension")

	opB.SetResult(3)
	v, err := fut.Result()
	require.NoError(t, err)
	require.Equal(t, 5, v)
	require.Equal(t, StatusCompleted, m.Status())
	require.Equal(t, uint64(2), m.Turns())
	require.Equal(t, []EventType{EventStarted, EventSuspended, EventResumed, EventCompleted}, events)
}

func TestSuspendResumeAcrossGoroutines(t *testing.T) {
	opA := future.NewPromise[int]()
	opB := future.NewPromise[int]()
	fut := Start(sumTransition, sumLocals{opA: opA.Future(), opB: opB.Future()})
	require.False(t, fut.IsCompleted())

	go opA.SetResult(20)
	go opB.SetResult(22)

	v, err := fut.Await(context.Background())
	require.NoError(t, err)
	require.Equal(t, 42, v)
}

func TestFaultWithoutGuardFinalizes(t *testing.T) {
	boom := stderrors.New("boom")
	opA := future.NewPromise[int]()
	fut := Start(sumTransition, sumLocals{opA: opA.Future(), opB: future.Completed(1)})

	opA.SetError(boom)
	require.True(t, fut.IsCompleted())
	require.ErrorIs(t, fut.Err(), boom)
}

func TestCompletesExactlyOnce(t *testing.T) {
	var completions int
	cfg := &Config{Observer: ObserverFunc(func(e Event) {
		if e.Type == EventCompleted || e.Type == EventFailed {
			completions++
		}
	})}
	p := future.NewPromise[int]()
	fut := StartWithConfig(func(m *Machine[struct{}, int]) error {
		if m.Entering() {
			if !MoveNext(m, p.Future(), 1) {
				return nil
			}
		}
		m.Complete(1)
		return nil
	}, struct{}{}, cfg)

	p.SetResult(0)
	require.NoError(t, fut.Err())
	require.Equal(t, 1, completions)
}

func TestStartTwicePanics(t *testing.T) {
	m := New(func(m *Machine[struct{}, int]) error {
		m.Complete(1)
		return nil
	}, struct{}{}, nil)
	m.Start()

	require.PanicsWithError(t, errors.AlreadyStarted(m.ID().String()).Error(), func() { m.Start() })
}

func TestNewNilTransitionPanics(t *testing.T) {
	require.Panics(t, func() { New[struct{}, int](nil, struct{}{}, nil) })
}

func TestOperationsOutsideTurnPanic(t *testing.T) {
	m := New(func(m *Machine[struct{}, int]) error { return nil }, struct{}{}, nil)

	tests := map[string]func(){
		"MoveNext":         func() { MoveNext(m, future.Completed(1), 1) },
		"Goto":             func() { m.Goto(1) },
		"Complete":         func() { m.Complete(1) },
		"EnterGuardedCode": func() { m.EnterGuardedCode(1) },
		"ExitGuardedCode":  func() { m.ExitGuardedCode(1, false) },
	}
	for name, fn := range tests {
		t.Run(name, func(t *testing.T) {
			defer func() {
				r := recover()
				require.NotNil(t, r)
				err, ok := r.(error)
				require.True(t, ok)
				require.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseAwait, Kind: errors.KindNotInTurn})
			}()
			fn()
		})
	}
}

func TestReturnWithoutSuspendingIsProtocolViolation(t *testing.T) {
	fut := Start(func(m *Machine[struct{}, int]) error {
		m.Goto(3)
		return nil
	}, struct{}{})

	require.True(t, fut.IsCompleted())
	require.True(t, errors.IsProtocolViolation(fut.Err()))
	require.Equal(t, FaultProtocol, ClassifyFault(fut.Err()))
}

func TestSecondMoveNextInTurnIsProtocolViolation(t *testing.T) {
	p1 := future.NewPromise[int]()
	p2 := future.NewPromise[int]()
	fut := Start(func(m *Machine[struct{}, int]) error {
		m.EnterGuardedCode(1)
		if !MoveNext(m, p1.Future(), 2) {
			MoveNext(m, p2.Future(), 3)
		}
		return nil
	}, struct{}{})

	require.True(t, fut.IsCompleted(), "protocol violations are not recoverable, even in a guarded region")
	require.True(t, errors.IsProtocolViolation(fut.Err()))
}

func TestErrorAfterSuspendFinalizes(t *testing.T) {
	boom := stderrors.New("boom")
	p := future.NewPromise[int]()
	calls := 0
	fut := Start(func(m *Machine[struct{}, int]) error {
		calls++
		MoveNext(m, p.Future(), 1)
		return boom
	}, struct{}{})

	require.ErrorIs(t, fut.Err(), boom)
	p.SetResult(1) // continuation of a finalized machine is dropped
	require.Equal(t, 1, calls)
}

func TestPanicBecomesFault(t *testing.T) {
	fut := Start(func(m *Machine[struct{}, int]) error {
		panic("kaboom")
	}, struct{}{})

	var pe *errors.PanicError
	require.ErrorAs(t, fut.Err(), &pe)
	require.Equal(t, "kaboom", pe.Value)
	require.NotEmpty(t, pe.Stack)
	require.Equal(t, FaultPanic, ClassifyFault(fut.Err()))
}

func TestPanicWithErrorKeepsIdentity(t *testing.T) {
	boom := stderrors.New("boom")
	fut := Start(func(m *Machine[struct{}, int]) error {
		panic(boom)
	}, struct{}{})
	require.Same(t, boom, fut.Err())
}

func TestFinalizeReleasesLocals(t *testing.T) {
	type big struct{ buf []byte }
	m := New(func(m *Machine[big, int]) error {
		m.Complete(len(m.Locals.buf))
		return nil
	}, big{buf: make([]byte, 16)}, nil)

	v, err := m.Start().Result()
	require.NoError(t, err)
	require.Equal(t, 16, v)
	require.Nil(t, m.Locals.buf)
}

func TestConfigDefaults(t *testing.T) {
	cfg := (*Config)(nil).withDefaults()
	require.Equal(t, DefaultMaxRecoveryAttempts, cfg.MaxRecoveryAttempts)
	require.Equal(t, "anonymous", cfg.Name)
	require.NotNil(t, cfg.Logger)

	m := New(func(m *Machine[struct{}, int]) error { return nil }, struct{}{}, &Config{Name: "job"})
	require.Equal(t, "job", m.Name())
	require.Equal(t, StatusPending, m.Status())
	require.Equal(t, Final, m.State())
	require.True(t, m.Entering())
}

func TestStatusString(t *testing.T) {
	require.Equal(t, "suspended", StatusSuspended.String())
	require.Equal(t, "unknown", Status(99).String())
	require.Equal(t, "recovered", EventRecovered.String())
	require.Equal(t, "unknown", EventType(99).String())
}

func TestClassifyFault(t *testing.T) {
	tests := []struct {
		err  error
		want FaultKind
	}{
		{nil, FaultNone},
		{stderrors.New("x"), FaultUser},
		{context.Canceled, FaultCanceled},
		{context.DeadlineExceeded, FaultTimeout},
		{errors.NewPanicError("p"), FaultPanic},
		{errors.ProtocolViolation(errors.PhaseTurn, "x"), FaultProtocol},
		{errors.Wrap(errors.PhaseRuntime, errors.KindCanceled, context.Canceled, "call"), FaultCanceled},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, ClassifyFault(tt.err), "%v", tt.err)
	}
}

func TestVoidComputation(t *testing.T) {
	p := future.NewPromise[asyncsm.Void]()
	ran := false
	fut := Start(func(m *Machine[struct{}, asyncsm.Void]) error {
		if m.Entering() {
			if !MoveNext(m, p.Future(), 1) {
				return nil
			}
		}
		ran = true
		m.Complete(asyncsm.Void{})
		return nil
	}, struct{}{})

	p.SetResult(asyncsm.Void{})
	_, err := fut.Result()
	require.NoError(t, err)
	require.True(t, ran)
}

// finalLabelSum is the layout {1: await opA, 2: await opB, Final: return sum}.
func finalLabelSum(m *Machine[sumLocals, int]) error {
	l := &m.Locals
	if m.Entering() {
		m.Goto(stateAfterA)
	}
	switch m.State() {
	case stateAfterA:
		if !MoveNext(m, l.opA, stateAfterB) {
			return nil
		}
		fallthrough
	case stateAfterB:
		v, err := l.opA.Result()
		if err != nil {
			return err
		}
		l.a = v
		if !MoveNext(m, l.opB, Final) {
			return nil
		}
		fallthrough
	case Final:
		v, err := l.opB.Result()
		if err != nil {
			return err
		}
		m.Complete(l.a + v)
	}
	return nil
}

func TestResumeAtFinalLabel(t *testing.T) {
	opB := future.NewPromise[int]()
	m := New(finalLabelSum, sumLocals{opA: future.Completed(2), opB: opB.Future()}, nil)
	fut := m.Start()

	require.False(t, fut.IsCompleted(), "awaiting with Final as the resumption point suspends")
	require.Equal(t, Final, m.State())
	require.Equal(t, StatusSuspended, m.Status())

	opB.SetResult(3)
	v, err := fut.Result()
	require.NoError(t, err)
	require.Equal(t, 5, v)
}
