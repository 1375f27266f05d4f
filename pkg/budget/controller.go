package budget

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/tombee/maestro/internal/log"
	pkgerrors "github.com/tombee/maestro/pkg/errors"
	"github.com/tombee/maestro/pkg/ledger"
	"github.com/tombee/maestro/pkg/router"
)

// WarnLevel is a non-blocking signal that approved spend is nearing the
// daily ceiling. It never changes the approval outcome.
type WarnLevel string

const (
	// WarnNone means spend is comfortably under the ceiling.
	WarnNone WarnLevel = ""

	// WarnNotice means spend has crossed 75% of the daily limit.
	WarnNotice WarnLevel = "notice"

	// WarnCritical means spend has crossed 90% of the daily limit.
	WarnCritical WarnLevel = "critical"
)

// Snapshot is a tenant's budget state at check time. Derived, never
// stored: spend figures come from the ledger, limits from the plan.
type Snapshot struct {
	// TenantID is the tenant this snapshot describes.
	TenantID string

	// Plan is the tenant's subscription plan name.
	Plan string

	// DailyLimit and MonthlyLimit are the plan ceilings.
	DailyLimit   decimal.Decimal
	MonthlyLimit decimal.Decimal

	// SpentToday and SpentThisMonth are pulled fresh from the ledger.
	SpentToday     decimal.Decimal
	SpentThisMonth decimal.Decimal

	// AllowedTiers is the set of model tiers the plan may use.
	AllowedTiers []string

	// Warning is the soft proximity warning, if any.
	Warning WarnLevel
}

// Decision is the outcome of an admission check.
type Decision struct {
	// Approved is whether the task may execute.
	Approved bool

	// Reason is the machine-readable rejection reason when not approved.
	Reason string

	// Cause is the typed rejection error when not approved: a
	// *pkgerrors.TierRestrictedError or *pkgerrors.BudgetExceededError.
	// Nil on approval. Reason always equals pkgerrors.Reason(Cause).
	Cause error

	// Estimate is the pre-flight cost estimate used for the check.
	// Zero when the check was rejected before estimation.
	Estimate decimal.Decimal

	// Snapshot is the tenant budget state the decision was made against.
	Snapshot Snapshot
}

// Estimator provides pure pre-flight cost estimates. *router.Router
// satisfies this interface.
type Estimator interface {
	Estimate(descriptor router.TaskDescriptor) (decimal.Decimal, error)
}

// Controller performs admission control: it approves, warns, or rejects
// a proposed task before the router executes it. The check-then-record
// sequence is deliberately not atomic across the backend call;
// correctness relies on atomic ledger appends and tolerating one
// in-flight task's worth of transient overshoot.
type Controller struct {
	plans     Plans
	lookup    PlanLookup
	ledger    ledger.Ledger
	estimator Estimator
	logger    *slog.Logger
}

// NewController creates a budget controller.
func NewController(plans Plans, lookup PlanLookup, led ledger.Ledger, estimator Estimator, logger *slog.Logger) (*Controller, error) {
	if err := plans.Validate(); err != nil {
		return nil, err
	}
	if lookup == nil {
		return nil, &pkgerrors.ValidationError{Field: "lookup", Message: "plan lookup cannot be nil"}
	}
	if led == nil {
		return nil, &pkgerrors.ValidationError{Field: "ledger", Message: "ledger cannot be nil"}
	}
	if estimator == nil {
		return nil, &pkgerrors.ValidationError{Field: "estimator", Message: "estimator cannot be nil"}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Controller{
		plans:     plans,
		lookup:    lookup,
		ledger:    led,
		estimator: estimator,
		logger:    logger,
	}, nil
}

// Check decides whether a tenant may execute the described task.
// Rejections are encoded in the Decision, not the error: a non-nil
// error means the check itself could not run.
func (c *Controller) Check(ctx context.Context, tenantID string, descriptor router.TaskDescriptor) (*Decision, error) {
	snapshot, plan, err := c.snapshot(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	// Tier restriction is checked first, regardless of remaining
	// budget and before any estimate.
	tierName, err := router.TierForComplexity(descriptor.Complexity)
	if err != nil {
		return nil, err
	}
	if !plan.AllowsTier(tierName) {
		cause := &pkgerrors.TierRestrictedError{
			TenantID: tenantID,
			Plan:     plan.Name,
			Tier:     tierName,
		}
		c.logger.Info("task rejected: tier restricted",
			slog.String(log.TenantIDKey, tenantID),
			slog.String("plan", plan.Name),
			slog.String(log.TierKey, tierName))
		budgetRejections.WithLabelValues(cause.Reason()).Inc()
		return &Decision{
			Approved: false,
			Reason:   cause.Reason(),
			Cause:    cause,
			Snapshot: *snapshot,
		}, nil
	}

	estimate, err := c.estimator.Estimate(descriptor)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "estimating task cost")
	}

	projectedDay := snapshot.SpentToday.Add(estimate)
	if projectedDay.GreaterThan(snapshot.DailyLimit) {
		cause := &pkgerrors.BudgetExceededError{
			TenantID: tenantID,
			Period:   "day",
			Limit:    snapshot.DailyLimit,
			Spent:    snapshot.SpentToday,
			Estimate: estimate,
		}
		c.logger.Info("task rejected: daily budget exceeded",
			slog.String(log.TenantIDKey, tenantID),
			slog.String("spent", snapshot.SpentToday.String()),
			slog.String("estimate", estimate.String()),
			slog.String("limit", snapshot.DailyLimit.String()))
		budgetRejections.WithLabelValues(cause.Reason()).Inc()
		return &Decision{
			Approved: false,
			Reason:   cause.Reason(),
			Cause:    cause,
			Estimate: estimate,
			Snapshot: *snapshot,
		}, nil
	}

	projectedMonth := snapshot.SpentThisMonth.Add(estimate)
	if projectedMonth.GreaterThan(snapshot.MonthlyLimit) {
		cause := &pkgerrors.BudgetExceededError{
			TenantID: tenantID,
			Period:   "month",
			Limit:    snapshot.MonthlyLimit,
			Spent:    snapshot.SpentThisMonth,
			Estimate: estimate,
		}
		c.logger.Info("task rejected: monthly budget exceeded",
			slog.String(log.TenantIDKey, tenantID),
			slog.String("spent", snapshot.SpentThisMonth.String()),
			slog.String("estimate", estimate.String()),
			slog.String("limit", snapshot.MonthlyLimit.String()))
		budgetRejections.WithLabelValues(cause.Reason()).Inc()
		return &Decision{
			Approved: false,
			Reason:   cause.Reason(),
			Cause:    cause,
			Estimate: estimate,
			Snapshot: *snapshot,
		}, nil
	}

	// Approved: attach a soft warning if projected daily spend crosses
	// the notice or critical threshold.
	snapshot.Warning = warnLevel(projectedDay, snapshot.DailyLimit)

	return &Decision{
		Approved: true,
		Estimate: estimate,
		Snapshot: *snapshot,
	}, nil
}

// Record appends an executed task's cost to the ledger. Failed tasks
// contribute zero and are skipped.
func (c *Controller) Record(ctx context.Context, tenantID string, result *router.ExecutionResult) error {
	if result == nil {
		return &pkgerrors.ValidationError{Field: "result", Message: "result cannot be nil"}
	}
	if !result.Succeeded || result.Cost.IsZero() {
		return nil
	}

	return c.ledger.Append(ctx, ledger.Entry{
		TenantID: tenantID,
		Amount:   result.Cost,
		TaskType: result.TaskType,
	})
}

// Status returns a tenant's current budget snapshot without checking a
// task. Used by the caller-facing budget status API.
func (c *Controller) Status(ctx context.Context, tenantID string) (*Snapshot, error) {
	snapshot, _, err := c.snapshot(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	snapshot.Warning = warnLevel(snapshot.SpentToday, snapshot.DailyLimit)
	return snapshot, nil
}

// Plan returns the plan a tenant is on.
func (c *Controller) Plan(ctx context.Context, tenantID string) (Plan, error) {
	planName, err := c.lookup.PlanFor(ctx, tenantID)
	if err != nil {
		return Plan{}, err
	}
	return c.plans.Get(planName)
}

// snapshot loads the tenant's plan and fresh spend figures.
func (c *Controller) snapshot(ctx context.Context, tenantID string) (*Snapshot, Plan, error) {
	if tenantID == "" {
		return nil, Plan{}, &pkgerrors.ValidationError{
			Field:   "tenant_id",
			Message: "tenant ID cannot be empty",
		}
	}

	plan, err := c.Plan(ctx, tenantID)
	if err != nil {
		return nil, Plan{}, err
	}

	spentToday, err := c.ledger.Spend(ctx, tenantID, ledger.PeriodDay)
	if err != nil {
		return nil, Plan{}, pkgerrors.Wrap(err, "reading daily spend")
	}
	spentMonth, err := c.ledger.Spend(ctx, tenantID, ledger.PeriodMonth)
	if err != nil {
		return nil, Plan{}, pkgerrors.Wrap(err, "reading monthly spend")
	}

	return &Snapshot{
		TenantID:       tenantID,
		Plan:           plan.Name,
		DailyLimit:     plan.DailyLimit,
		MonthlyLimit:   plan.MonthlyLimit,
		SpentToday:     spentToday,
		SpentThisMonth: spentMonth,
		AllowedTiers:   append([]string(nil), plan.AllowedTiers...),
	}, plan, nil
}

// warnLevel maps projected daily spend to a soft warning level.
func warnLevel(projected, limit decimal.Decimal) WarnLevel {
	if limit.IsZero() {
		return WarnNone
	}
	ratio := projected.Div(limit)
	switch {
	case ratio.GreaterThanOrEqual(decimal.RequireFromString("0.9")):
		return WarnCritical
	case ratio.GreaterThanOrEqual(decimal.RequireFromString("0.75")):
		return WarnNotice
	default:
		return WarnNone
	}
}
