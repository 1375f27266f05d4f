// Package budget gates task execution against tenant spending ceilings
// and plan tier restrictions. The controller performs no execution
// itself: callers check, execute via the router on approval, then
// record the result.
package budget

import (
	"context"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/tombee/maestro/pkg/errors"
	"github.com/tombee/maestro/pkg/router"
)

// Built-in plan names.
const (
	PlanBasic      = "basic"
	PlanPro        = "pro"
	PlanEnterprise = "enterprise"
)

// Plan is a business-facing subscription plan, distinct from a model
// tier. It carries the monetary ceilings and the set of model tiers the
// plan may use.
type Plan struct {
	// Name identifies the plan (basic, pro, enterprise).
	Name string

	// DailyLimit is the spending ceiling per UTC calendar day in USD.
	DailyLimit decimal.Decimal

	// MonthlyLimit is the spending ceiling per UTC calendar month in USD.
	MonthlyLimit decimal.Decimal

	// AllowedTiers is the set of model tiers the plan may use. Lower
	// plans are barred from the full tier regardless of task complexity.
	AllowedTiers []string

	// MaxConcurrentWorkflows caps in-flight workflows per tenant.
	MaxConcurrentWorkflows int
}

// AllowsTier returns true if the plan may use the given model tier.
func (p Plan) AllowsTier(tier string) bool {
	for _, allowed := range p.AllowedTiers {
		if allowed == tier {
			return true
		}
	}
	return false
}

// Plans is a lookup from plan name to plan.
type Plans map[string]Plan

// Get returns the named plan.
func (ps Plans) Get(name string) (Plan, error) {
	plan, exists := ps[name]
	if !exists {
		return Plan{}, &pkgerrors.NotFoundError{Resource: "plan", ID: name}
	}
	return plan, nil
}

// Merge overlays user-configured plans onto the built-in table. User
// plans take precedence for matching names; unknown names are added.
func (ps Plans) Merge(overrides Plans) Plans {
	merged := make(Plans, len(ps)+len(overrides))
	for name, plan := range ps {
		merged[name] = plan
	}
	for name, plan := range overrides {
		plan.Name = name
		merged[name] = plan
	}
	return merged
}

// Validate checks every plan for usable limits and known tier names.
func (ps Plans) Validate() error {
	for name, plan := range ps {
		if plan.DailyLimit.IsNegative() || plan.MonthlyLimit.IsNegative() {
			return &pkgerrors.ConfigError{
				Key:    "plans." + name,
				Reason: "limits cannot be negative",
			}
		}
		if plan.DailyLimit.GreaterThan(plan.MonthlyLimit) {
			return &pkgerrors.ConfigError{
				Key:    "plans." + name,
				Reason: "daily limit cannot exceed monthly limit",
			}
		}
		if len(plan.AllowedTiers) == 0 {
			return &pkgerrors.ConfigError{
				Key:    "plans." + name,
				Reason: "plan must allow at least one tier",
			}
		}
		for _, tier := range plan.AllowedTiers {
			switch tier {
			case router.TierNano, router.TierMini, router.TierFull:
			default:
				return &pkgerrors.ConfigError{
					Key:    "plans." + name,
					Reason: "unknown tier " + tier,
				}
			}
		}
	}
	return nil
}

// BuiltInPlans returns the default plan table.
func BuiltInPlans() Plans {
	return Plans{
		PlanBasic: {
			Name:                   PlanBasic,
			DailyLimit:             decimal.RequireFromString("10.00"),
			MonthlyLimit:           decimal.RequireFromString("100.00"),
			AllowedTiers:           []string{router.TierNano},
			MaxConcurrentWorkflows: 1,
		},
		PlanPro: {
			Name:                   PlanPro,
			DailyLimit:             decimal.RequireFromString("50.00"),
			MonthlyLimit:           decimal.RequireFromString("500.00"),
			AllowedTiers:           []string{router.TierNano, router.TierMini},
			MaxConcurrentWorkflows: 3,
		},
		PlanEnterprise: {
			Name:                   PlanEnterprise,
			DailyLimit:             decimal.RequireFromString("500.00"),
			MonthlyLimit:           decimal.RequireFromString("5000.00"),
			AllowedTiers:           []string{router.TierNano, router.TierMini, router.TierFull},
			MaxConcurrentWorkflows: 10,
		},
	}
}

// PlanLookup maps a tenant to its subscription plan name. Backed by the
// billing system in production; static in tests and single-tenant use.
type PlanLookup interface {
	PlanFor(ctx context.Context, tenantID string) (string, error)
}

// StaticPlanLookup is a PlanLookup backed by a fixed map with a
// default plan for unlisted tenants.
type StaticPlanLookup struct {
	// Tenants maps tenant IDs to plan names.
	Tenants map[string]string

	// Default is used for tenants not present in Tenants. Empty means
	// unlisted tenants are an error.
	Default string
}

// PlanFor implements PlanLookup.
func (s StaticPlanLookup) PlanFor(ctx context.Context, tenantID string) (string, error) {
	if plan, exists := s.Tenants[tenantID]; exists {
		return plan, nil
	}
	if s.Default != "" {
		return s.Default, nil
	}
	return "", &pkgerrors.NotFoundError{Resource: "tenant plan", ID: tenantID}
}
