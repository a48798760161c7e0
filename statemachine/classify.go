package statemachine

import (
	"context"
	stderrors "errors"

	"github.com/wippyai/asyncsm/errors"
)

// FaultKind categorizes a fault for metrics and tracing.
type FaultKind string

const (
	FaultNone     FaultKind = "none"
	FaultUser     FaultKind = "user"
	FaultCanceled FaultKind = "canceled"
	FaultTimeout  FaultKind = "timeout"
	FaultPanic    FaultKind = "panic"
	FaultProtocol FaultKind = "protocol"
)

// ClassifyFault maps an error onto a FaultKind.
func ClassifyFault(err error) FaultKind {
	if err == nil {
		return FaultNone
	}
	if errors.IsProtocolViolation(err) {
		return FaultProtocol
	}
	var pe *errors.PanicError
	if stderrors.As(err, &pe) {
		return FaultPanic
	}
	if stderrors.Is(err, context.Canceled) {
		return FaultCanceled
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return FaultTimeout
	}
	return FaultUser
}
