// Package telemetry provides statemachine observers backed by Prometheus and
// OpenTelemetry.
//
//	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)
//	tracing := telemetry.NewTracing(otel.Tracer("asyncsm"))
//	cfg := &statemachine.Config{Observer: telemetry.Multi(metrics, tracing)}
package telemetry
