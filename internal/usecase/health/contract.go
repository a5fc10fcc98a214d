package health

import "context"

// Checker reports whether a dependency is reachable.
// db.Client (Ping), the OpenAI embedder and completer (HealthCheck) adapt to it.
type Checker interface {
	Check(ctx context.Context) error
}

// CheckFunc adapts a plain function to Checker.
type CheckFunc func(ctx context.Context) error

// Check calls f.
func (f CheckFunc) Check(ctx context.Context) error { return f(ctx) }
