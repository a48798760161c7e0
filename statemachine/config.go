package statemachine

import "go.uber.org/zap"

// DefaultMaxRecoveryAttempts bounds re-invocations of a turn that leave the
// same fault unhandled.
const DefaultMaxRecoveryAttempts = 1024

// Config configures a machine. A nil *Config means defaults.
type Config struct {
	// Logger overrides the package logger for this machine.
	Logger *zap.Logger
	// Observer receives lifecycle events.
	Observer Observer
	// Registry tracks the machine while it is in flight.
	Registry *Registry
	// Dispatch runs continuations. Nil runs them inline on the goroutine
	// that completed the awaited operation.
	Dispatch func(func())
	// Name labels the computation in logs, metrics and spans.
	Name string
	// MaxRecoveryAttempts bounds how many consecutive re-invocations may
	// raise while the captured fault is still unhandled. Recovering a fault
	// resets the count. Zero means DefaultMaxRecoveryAttempts.
	MaxRecoveryAttempts int
}

func (c *Config) withDefaults() Config {
	var out Config
	if c != nil {
		out = *c
	}
	if out.Logger == nil {
		out.Logger = Logger()
	}
	if out.MaxRecoveryAttempts <= 0 {
		out.MaxRecoveryAttempts = DefaultMaxRecoveryAttempts
	}
	if out.Name == "" {
		out.Name = "anonymous"
	}
	return out
}
