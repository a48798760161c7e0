package telemetry

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wippyai/asyncsm/statemachine"
)

// Tracing records one span per computation, from Start to finalization,
// with a span event for every suspension, resumption, fault and recovery.
type Tracing struct {
	parent context.Context
	tracer trace.Tracer
	spans  map[ulid.ULID]trace.Span
	mu     sync.Mutex
}

// NewTracing creates a tracing observer whose spans are roots.
func NewTracing(tracer trace.Tracer) *Tracing {
	return NewTracingWithParent(context.Background(), tracer)
}

// NewTracingWithParent creates a tracing observer whose spans are children
// of the span in parent.
func NewTracingWithParent(parent context.Context, tracer trace.Tracer) *Tracing {
	return &Tracing{
		parent: parent,
		tracer: tracer,
		spans:  make(map[ulid.ULID]trace.Span),
	}
}

// OnMachineEvent implements statemachine.Observer.
func (t *Tracing) OnMachineEvent(e statemachine.Event) {
	switch e.Type {
	case statemachine.EventStarted:
		_, span := t.tracer.Start(t.parent, "asyncsm."+e.Name,
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(
				attribute.String("asyncsm.machine", e.Machine.String()),
				attribute.String("asyncsm.name", e.Name),
			),
		)
		t.mu.Lock()
		t.spans[e.Machine] = span
		t.mu.Unlock()

	case statemachine.EventCompleted, statemachine.EventFailed:
		t.mu.Lock()
		span, ok := t.spans[e.Machine]
		delete(t.spans, e.Machine)
		t.mu.Unlock()
		if !ok {
			return
		}
		span.SetAttributes(
			attribute.Int64("asyncsm.turns", int64(e.Turn)),
			attribute.String("asyncsm.fault_kind", string(e.Kind)),
		)
		if e.Err != nil {
			span.RecordError(e.Err)
			span.SetStatus(codes.Error, e.Err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()

	default:
		t.mu.Lock()
		span, ok := t.spans[e.Machine]
		t.mu.Unlock()
		if !ok {
			return
		}
		attrs := []attribute.KeyValue{
			attribute.Int64("asyncsm.state", int64(e.State)),
			attribute.Int64("asyncsm.depth", int64(e.Depth)),
			attribute.Int64("asyncsm.turn", int64(e.Turn)),
		}
		if e.Err != nil {
			attrs = append(attrs,
				attribute.String("asyncsm.fault_kind", string(e.Kind)),
				attribute.String("asyncsm.error", e.Err.Error()),
			)
		}
		span.AddEvent(e.Type.String(), trace.WithAttributes(attrs...))
	}
}

// Open returns how many spans are still running.
func (t *Tracing) Open() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.spans)
}
