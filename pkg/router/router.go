package router

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tombee/maestro/internal/log"
	"github.com/tombee/maestro/pkg/backend"
	pkgerrors "github.com/tombee/maestro/pkg/errors"
)

// Config configures router behavior.
type Config struct {
	// InvokeTimeout bounds each backend call. A timeout is treated
	// identically to a backend error and triggers the fallback attempt.
	InvokeTimeout time.Duration

	// Estimate is the pre-flight cost heuristic.
	Estimate EstimateConfig

	// OnFallback is called when the primary backend failed and the
	// secondary is about to be tried. Useful for logging and monitoring.
	OnFallback func(tier, from, to string, err error)
}

// DefaultConfig returns sensible router defaults.
func DefaultConfig() Config {
	return Config{
		InvokeTimeout: 60 * time.Second,
		Estimate:      DefaultEstimateConfig(),
	}
}

// Router selects a tier for a task and executes it against that tier's
// backends. It never degrades to a cheaper tier: fallback trades
// provider risk, not cost.
type Router struct {
	tiers    Tiers
	registry *backend.Registry
	config   Config
	logger   *slog.Logger
}

// New creates a Router over a static tier table and a backend registry.
func New(tiers Tiers, registry *backend.Registry, config Config, logger *slog.Logger) (*Router, error) {
	if err := tiers.Validate(); err != nil {
		return nil, err
	}
	if registry == nil {
		return nil, &pkgerrors.ValidationError{
			Field:   "registry",
			Message: "backend registry cannot be nil",
		}
	}
	if config.InvokeTimeout <= 0 {
		config.InvokeTimeout = DefaultConfig().InvokeTimeout
	}
	if config.Estimate.AssumedOutputRatio == 0 && config.Estimate.MinAssumedOutputTokens == 0 {
		config.Estimate = DefaultEstimateConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Router{
		tiers:    tiers,
		registry: registry,
		config:   config,
		logger:   logger,
	}, nil
}

// Tiers returns the router's static tier table.
func (r *Router) Tiers() Tiers {
	return r.tiers
}

// TierFor resolves the tier a descriptor routes to, without executing.
func (r *Router) TierFor(descriptor TaskDescriptor) (*Tier, error) {
	return r.tiers.ForComplexity(descriptor.Complexity)
}

// Estimate returns the pre-flight cost estimate for a descriptor.
// Pure: never invokes a backend.
func (r *Router) Estimate(descriptor TaskDescriptor) (decimal.Decimal, error) {
	if err := descriptor.Validate(); err != nil {
		return decimal.Zero, err
	}
	tier, err := r.TierFor(descriptor)
	if err != nil {
		return decimal.Zero, err
	}
	return EstimateCost(tier, descriptor.InputSize, r.config.Estimate), nil
}

// Execute routes a descriptor to its tier and runs it: primary backend
// first, then exactly one fallback against the tier's secondary backend
// on any failure. A double failure returns a failed ExecutionResult
// carrying the secondary's error; err is non-nil only for routing
// problems (invalid descriptor, unknown tier or backend).
func (r *Router) Execute(ctx context.Context, descriptor TaskDescriptor) (*ExecutionResult, error) {
	if err := descriptor.Validate(); err != nil {
		return nil, err
	}
	tier, err := r.TierFor(descriptor)
	if err != nil {
		return nil, err
	}

	req := backend.Request{
		Prompt:          descriptor.Prompt,
		Model:           tier.Model,
		ReasoningEffort: descriptor.ReasoningEffort,
	}
	// Reasoning hints are a no-op on tiers that do not support them.
	if !tier.SupportsReasoning {
		req.ReasoningEffort = backend.ReasoningNone
	}

	start := time.Now()

	resp, primaryErr := r.invoke(ctx, tier.PrimaryBackend, req)
	if primaryErr == nil {
		result := r.successResult(descriptor, tier, tier.PrimaryBackend, false, resp, start)
		taskExecutions.WithLabelValues(tier.Name, tier.PrimaryBackend, "success").Inc()
		return result, nil
	}
	// Non-retryable invoke errors are routing problems (an unregistered
	// backend, not a failing one); fallback cannot help.
	if !pkgerrors.IsRetryable(primaryErr) {
		return nil, primaryErr
	}

	r.logger.Warn("primary backend failed, trying secondary",
		slog.String(log.TierKey, tier.Name),
		slog.String(log.BackendKey, tier.PrimaryBackend),
		log.Error(primaryErr))
	taskExecutions.WithLabelValues(tier.Name, tier.PrimaryBackend, "failure").Inc()
	fallbacks.WithLabelValues(tier.Name).Inc()

	if r.config.OnFallback != nil {
		r.config.OnFallback(tier.Name, tier.PrimaryBackend, tier.SecondaryBackend, primaryErr)
	}

	resp, secondaryErr := r.invoke(ctx, tier.SecondaryBackend, req)
	if secondaryErr == nil {
		result := r.successResult(descriptor, tier, tier.SecondaryBackend, true, resp, start)
		taskExecutions.WithLabelValues(tier.Name, tier.SecondaryBackend, "success").Inc()
		return result, nil
	}
	if !pkgerrors.IsRetryable(secondaryErr) {
		return nil, secondaryErr
	}

	r.logger.Error("secondary backend failed, task exhausted",
		slog.String(log.TierKey, tier.Name),
		slog.String(log.BackendKey, tier.SecondaryBackend),
		log.Error(secondaryErr))
	taskExecutions.WithLabelValues(tier.Name, tier.SecondaryBackend, "failure").Inc()

	// Double failure: return the secondary's error, never silently
	// degrade to a different tier.
	return &ExecutionResult{
		TaskType:  descriptor.TaskType,
		Tier:      tier.Name,
		BackendID: tier.SecondaryBackend,
		Fallback:  true,
		Cost:      decimal.Zero,
		LatencyMS: time.Since(start).Milliseconds(),
		Succeeded: false,
		Err:       secondaryErr,
	}, nil
}

// invoke runs one backend call under the configured timeout and
// normalizes malformed responses into backend errors.
func (r *Router) invoke(ctx context.Context, backendID string, req backend.Request) (*backend.Response, error) {
	client, err := r.registry.Get(backendID)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, r.config.InvokeTimeout)
	defer cancel()

	resp, err := client.Invoke(callCtx, req)
	if err != nil {
		if pkgerrors.Is(err, context.DeadlineExceeded) {
			return nil, &pkgerrors.TimeoutError{
				Operation: "backend invoke",
				Duration:  r.config.InvokeTimeout,
				Cause:     err,
			}
		}
		// Normalize provider errors so callers can classify them.
		var backendErr *pkgerrors.BackendError
		if !pkgerrors.As(err, &backendErr) {
			return nil, &pkgerrors.BackendError{
				Backend: backendID,
				Message: err.Error(),
				Cause:   err,
			}
		}
		return nil, err
	}
	if resp == nil || resp.TokensIn < 0 || resp.TokensOut < 0 {
		return nil, &pkgerrors.BackendError{
			Backend: backendID,
			Message: "malformed response",
		}
	}
	return resp, nil
}

func (r *Router) successResult(descriptor TaskDescriptor, tier *Tier, backendID string, fallback bool, resp *backend.Response, start time.Time) *ExecutionResult {
	return &ExecutionResult{
		TaskType:  descriptor.TaskType,
		Tier:      tier.Name,
		BackendID: backendID,
		Fallback:  fallback,
		Cost:      ActualCost(tier, resp.TokensIn, resp.TokensOut),
		TokensIn:  resp.TokensIn,
		TokensOut: resp.TokensOut,
		LatencyMS: time.Since(start).Milliseconds(),
		Output:    resp.Text,
		Succeeded: true,
	}
}
