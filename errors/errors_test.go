package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:    PhaseAwait,
				Kind:     KindNotInTurn,
				State:    7,
				HasState: true,
				Detail:   "MoveNext outside turn",
			},
			contains: []string{"[await]", "not_in_turn", "at state 7", "MoveNext outside turn"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseFinalize,
				Kind:  KindProtocolViolation,
			},
			contains: []string{"[finalize]", "protocol_violation"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseRuntime,
				Kind:   KindInstantiation,
				Detail: "instantiate module",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[runtime]", "instantiation", "instantiate module", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_StateZeroIsPrinted(t *testing.T) {
	err := New(PhaseTurn, KindProtocolViolation).State(0).Build()
	if !strings.Contains(err.Error(), "at state 0") {
		t.Errorf("expected final state to be printed, got %q", err.Error())
	}

	err = New(PhaseTurn, KindProtocolViolation).Build()
	if strings.Contains(err.Error(), "at state") {
		t.Errorf("expected no state in %q", err.Error())
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseLoad,
		Kind:  KindInvalidInput,
		Cause: cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}

	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase:  PhaseStart,
		Kind:   KindAlreadyStarted,
		Detail: "foo",
	}

	if !err.Is(&Error{Phase: PhaseStart, Kind: KindAlreadyStarted}) {
		t.Error("Is should match same phase and kind")
	}

	if err.Is(&Error{Phase: PhaseTurn, Kind: KindAlreadyStarted}) {
		t.Error("Is should not match different phase")
	}

	if err.Is(&Error{Phase: PhaseStart, Kind: KindNotInTurn}) {
		t.Error("Is should not match different kind")
	}

	wrapped := fmt.Errorf("outer: %w", err)
	if !errors.Is(wrapped, &Error{Phase: PhaseStart, Kind: KindAlreadyStarted}) {
		t.Error("errors.Is should match through wrapping")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseRecover, KindProtocolViolation).
		State(12).
		Value(42).
		Cause(cause).
		Detail("depth %d below zero", -1).
		Build()

	if err.Phase != PhaseRecover {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseRecover)
	}
	if err.Kind != KindProtocolViolation {
		t.Errorf("Kind = %v, want %v", err.Kind, KindProtocolViolation)
	}
	if !err.HasState || err.State != 12 {
		t.Errorf("State = %v (has=%v), want 12", err.State, err.HasState)
	}
	if err.Value != 42 {
		t.Errorf("Value = %v, want 42", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "depth -1 below zero" {
		t.Errorf("Detail = %v, want 'depth -1 below zero'", err.Detail)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	tests := []struct {
		name  string
		err   *Error
		phase Phase
		kind  Kind
	}{
		{"ProtocolViolation", ProtocolViolation(PhaseTurn, "x"), PhaseTurn, KindProtocolViolation},
		{"AlreadyStarted", AlreadyStarted("01H"), PhaseStart, KindAlreadyStarted},
		{"AlreadyCompleted", AlreadyCompleted(PhaseComplete), PhaseComplete, KindAlreadyCompleted},
		{"NotCompleted", NotCompleted(PhaseComplete), PhaseComplete, KindNotCompleted},
		{"NotInTurn", NotInTurn("MoveNext"), PhaseAwait, KindNotInTurn},
		{"Unsupported", Unsupported(PhaseAdapt, "chan int"), PhaseAdapt, KindUnsupported},
		{"NotFound", NotFound(PhaseRuntime, "export", "add"), PhaseRuntime, KindNotFound},
		{"InvalidInput", InvalidInput(PhaseBuild, "bad"), PhaseBuild, KindInvalidInput},
		{"Wrap", Wrap(PhaseTurn, KindTimeout, errors.New("c"), "d"), PhaseTurn, KindTimeout},
		{"Instantiation", Instantiation(errors.New("c")), PhaseRuntime, KindInstantiation},
		{"Load", Load("compile", errors.New("c")), PhaseLoad, KindInvalidInput},
		{"Trap", Trap("add", errors.New("c")), PhaseRuntime, KindTrap},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Phase != tt.phase {
				t.Errorf("Phase = %v, want %v", tt.err.Phase, tt.phase)
			}
			if tt.err.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", tt.err.Kind, tt.kind)
			}
		})
	}

	if !strings.Contains(NotFound(PhaseRuntime, "export", "add").Detail, `"add"`) {
		t.Error("NotFound detail should quote the name")
	}
}

func TestIsProtocolViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("boom"), false},
		{"violation", ProtocolViolation(PhaseTurn, "x"), true},
		{"already started", AlreadyStarted("id"), true},
		{"already completed", AlreadyCompleted(PhaseComplete), true},
		{"not in turn", NotInTurn("MoveNext"), true},
		{"wrapped", fmt.Errorf("ctx: %w", ProtocolViolation(PhaseTurn, "x")), true},
		{"cause chain", Wrap(PhaseTurn, KindPanic, NotInTurn("Rethrow"), "panic"), true},
		{"other kind", Unsupported(PhaseAdapt, "x"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsProtocolViolation(tt.err); got != tt.want {
				t.Errorf("IsProtocolViolation(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

type sentinelErr struct{ code int }

func (e *sentinelErr) Error() string { return fmt.Sprintf("sentinel %d", e.code) }

func TestFromPanic(t *testing.T) {
	t.Run("error value keeps identity", func(t *testing.T) {
		orig := &sentinelErr{code: 3}
		got := FromPanic(orig)
		if got != error(orig) {
			t.Errorf("FromPanic returned %v, want the original error", got)
		}
	})

	t.Run("non-error value", func(t *testing.T) {
		got := FromPanic("kaboom")
		var pe *PanicError
		if !errors.As(got, &pe) {
			t.Fatalf("expected *PanicError, got %T", got)
		}
		if pe.Value != "kaboom" {
			t.Errorf("Value = %v, want kaboom", pe.Value)
		}
		if len(pe.Stack) == 0 {
			t.Error("expected captured stack")
		}
		if pe.Unwrap() != nil {
			t.Error("non-error panic should not unwrap")
		}
		if !strings.Contains(pe.Error(), "kaboom") {
			t.Errorf("message %q should contain panic value", pe.Error())
		}
	})

	t.Run("runtime error is wrapped", func(t *testing.T) {
		var got error
		func() {
			defer func() { got = FromPanic(recover()) }()
			var m map[string]int
			m["x"] = 1
		}()
		var pe *PanicError
		if !errors.As(got, &pe) {
			t.Fatalf("expected *PanicError, got %T", got)
		}
		if pe.Unwrap() == nil {
			t.Error("runtime error should unwrap to the original")
		}
	})
}
