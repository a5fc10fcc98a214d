package health

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates an optional component is failing.
	Degraded Status = "degraded"
	// Unhealthy indicates a required component is failing.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// DefaultTimeout bounds each component check.
const DefaultTimeout = 3 * time.Second

// Component is a named dependency. A failing Required component makes the
// service Unhealthy; any other failure only degrades it.
type Component struct {
	Name     string
	Checker  Checker
	Required bool
}

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	components []Component
	timeout    time.Duration
	logger     *zap.Logger
}

// New creates a Service. Components with a nil Checker are skipped.
func New(logger *zap.Logger, components ...Component) *Service {
	kept := make([]Component, 0, len(components))
	for _, c := range components {
		if c.Checker != nil {
			kept = append(kept, c)
		}
	}
	return &Service{components: kept, timeout: DefaultTimeout, logger: logger}
}

// WithTimeout overrides the per-component timeout.
func (s *Service) WithTimeout(d time.Duration) *Service {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// Check runs all component checks concurrently.
func (s *Service) Check(ctx context.Context) Report {
	results := make([]error, len(s.components))

	var g errgroup.Group
	for i, c := range s.components {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			results[i] = c.Checker.Check(cctx)
			return nil
		})
	}
	_ = g.Wait()

	checks := make(map[string]CheckResult, len(s.components))
	status := Healthy
	for i, c := range s.components {
		if results[i] == nil {
			checks[c.Name] = CheckOK
			continue
		}
		checks[c.Name] = CheckError
		s.logger.Warn("Health check failed", zap.String("component", c.Name), zap.Error(results[i]))
		switch {
		case c.Required:
			status = Unhealthy
		case status == Healthy:
			status = Degraded
		}
	}

	return Report{Status: status, Checks: checks}
}
