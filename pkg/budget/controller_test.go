package budget

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/tombee/maestro/pkg/errors"
	"github.com/tombee/maestro/pkg/ledger"
	"github.com/tombee/maestro/pkg/router"
)

// fixedEstimator returns a constant estimate and counts calls so tests
// can assert a rejection happened before estimation.
type fixedEstimator struct {
	estimate  decimal.Decimal
	callCount int
}

func (f *fixedEstimator) Estimate(descriptor router.TaskDescriptor) (decimal.Decimal, error) {
	f.callCount++
	return f.estimate, nil
}

func newTestController(t *testing.T, estimate string, lookup PlanLookup) (*Controller, *ledger.MemoryLedger, *fixedEstimator) {
	t.Helper()

	led := ledger.NewMemoryLedger()
	est := &fixedEstimator{estimate: decimal.RequireFromString(estimate)}
	c, err := NewController(BuiltInPlans(), lookup, led, est, nil)
	if err != nil {
		t.Fatalf("NewController failed: %v", err)
	}
	return c, led, est
}

func seedSpend(t *testing.T, led *ledger.MemoryLedger, tenantID, amount string) {
	t.Helper()
	err := led.Append(context.Background(), ledger.Entry{
		TenantID: tenantID,
		Amount:   decimal.RequireFromString(amount),
	})
	if err != nil {
		t.Fatalf("seeding ledger failed: %v", err)
	}
}

func TestCheck_ApprovedWithCleanLedger(t *testing.T) {
	lookup := StaticPlanLookup{Default: PlanPro}
	c, _, _ := newTestController(t, "0.50", lookup)

	decision, err := c.Check(context.Background(), "tenant-1", router.TaskDescriptor{
		Complexity: router.ComplexityBalanced,
		InputSize:  1000,
	})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}

	if !decision.Approved {
		t.Fatalf("expected approval, got reason %q", decision.Reason)
	}
	if decision.Snapshot.Warning != WarnNone {
		t.Errorf("Warning = %q, want none", decision.Snapshot.Warning)
	}
	if !decision.Estimate.Equal(decimal.RequireFromString("0.50")) {
		t.Errorf("Estimate = %s, want 0.50", decision.Estimate)
	}
}

func TestCheck_TierRestrictedBeforeEstimate(t *testing.T) {
	// basic plan allows only nano; complex maps to full.
	lookup := StaticPlanLookup{Default: PlanBasic}
	c, _, est := newTestController(t, "0.01", lookup)

	decision, err := c.Check(context.Background(), "tenant-1", router.TaskDescriptor{
		Complexity: router.ComplexityComplex,
		InputSize:  10,
	})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}

	if decision.Approved {
		t.Fatal("expected rejection for restricted tier")
	}
	if decision.Reason != pkgerrors.ReasonTierRestricted {
		t.Errorf("Reason = %q, want %q", decision.Reason, pkgerrors.ReasonTierRestricted)
	}
	var restricted *pkgerrors.TierRestrictedError
	if !pkgerrors.As(decision.Cause, &restricted) {
		t.Fatalf("Cause = %v, want *TierRestrictedError", decision.Cause)
	}
	if restricted.Plan != PlanBasic || restricted.Tier != router.TierFull {
		t.Errorf("Cause = %+v, want basic plan barred from full", restricted)
	}
	if est.callCount != 0 {
		t.Errorf("estimator called %d times before tier rejection, want 0", est.callCount)
	}
}

func TestCheck_TierRestrictedIgnoresRemainingBudget(t *testing.T) {
	// Plenty of budget left; restriction must still win.
	lookup := StaticPlanLookup{Default: PlanBasic}
	c, _, _ := newTestController(t, "0.01", lookup)

	decision, err := c.Check(context.Background(), "rich-tenant", router.TaskDescriptor{
		Complexity: router.ComplexityComplex,
	})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if decision.Approved || decision.Reason != pkgerrors.ReasonTierRestricted {
		t.Errorf("decision = %+v, want tier restriction", decision)
	}
}

func TestCheck_DailyBudgetExceeded(t *testing.T) {
	lookup := StaticPlanLookup{Default: PlanPro} // daily limit 50.00
	c, led, _ := newTestController(t, "1.00", lookup)
	seedSpend(t, led, "tenant-1", "49.99")

	decision, err := c.Check(context.Background(), "tenant-1", router.TaskDescriptor{
		Complexity: router.ComplexitySimple,
		InputSize:  100,
	})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}

	if decision.Approved {
		t.Fatal("expected rejection: 49.99 + 1.00 > 50.00")
	}
	if decision.Reason != pkgerrors.ReasonDailyBudgetExceeded {
		t.Errorf("Reason = %q, want %q", decision.Reason, pkgerrors.ReasonDailyBudgetExceeded)
	}
	var exceeded *pkgerrors.BudgetExceededError
	if !pkgerrors.As(decision.Cause, &exceeded) {
		t.Fatalf("Cause = %v, want *BudgetExceededError", decision.Cause)
	}
	if exceeded.Period != "day" || pkgerrors.Reason(decision.Cause) != decision.Reason {
		t.Errorf("Cause = %+v, want day period matching the reason", exceeded)
	}
}

func TestCheck_MonthlyCeilingCarriesTypedCause(t *testing.T) {
	lookup := StaticPlanLookup{Default: PlanPro} // daily 50.00, monthly 500.00
	c, led, _ := newTestController(t, "1.00", lookup)

	// Pin the clock mid-month and put the spend on an earlier day, so
	// the daily window is clean while the monthly one is exhausted.
	now := time.Date(2026, time.June, 15, 12, 0, 0, 0, time.UTC)
	led.SetClock(func() time.Time { return now })
	err := led.Append(context.Background(), ledger.Entry{
		TenantID: "tenant-1",
		Amount:   decimal.RequireFromString("499.50"),
		At:       time.Date(2026, time.June, 10, 9, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	decision, err := c.Check(context.Background(), "tenant-1", router.TaskDescriptor{
		Complexity: router.ComplexitySimple,
	})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if decision.Approved {
		t.Fatal("expected rejection: 499.50 + 1.00 > 500.00 this month")
	}
	if decision.Reason != pkgerrors.ReasonMonthlyBudgetExceeded {
		t.Errorf("Reason = %q, want %q", decision.Reason, pkgerrors.ReasonMonthlyBudgetExceeded)
	}
	var exceeded *pkgerrors.BudgetExceededError
	if !pkgerrors.As(decision.Cause, &exceeded) {
		t.Fatalf("Cause = %v, want *BudgetExceededError", decision.Cause)
	}
	if exceeded.Period != "month" {
		t.Errorf("Period = %q, want month", exceeded.Period)
	}
}

func TestCheck_RejectionPersistsUntilRollover(t *testing.T) {
	lookup := StaticPlanLookup{Default: PlanPro}
	c, led, _ := newTestController(t, "1.00", lookup)
	seedSpend(t, led, "tenant-1", "50.00")

	// Repeated checks keep rejecting while the window holds.
	for i := 0; i < 3; i++ {
		decision, err := c.Check(context.Background(), "tenant-1", router.TaskDescriptor{
			Complexity: router.ComplexitySimple,
		})
		if err != nil {
			t.Fatalf("Check failed: %v", err)
		}
		if decision.Approved {
			t.Fatalf("check %d approved despite exhausted budget", i)
		}
	}
}

func TestCheck_MonthlyBudgetExceeded(t *testing.T) {
	lookup := StaticPlanLookup{Default: PlanPro} // monthly limit 500.00
	c, led, _ := newTestController(t, "1.00", lookup)

	// Spread spend over the month but not today, staying under the
	// daily ceiling while exhausting the monthly one.
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		err := led.Append(ctx, ledger.Entry{
			TenantID: "tenant-1",
			Amount:   decimal.RequireFromString("49.99"),
		})
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	decision, err := c.Check(ctx, "tenant-1", router.TaskDescriptor{
		Complexity: router.ComplexitySimple,
	})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if decision.Approved {
		t.Fatal("expected rejection against a ceiling")
	}
	// 499.90 today also exceeds the 50.00 daily limit, which is
	// checked first.
	if decision.Reason != pkgerrors.ReasonDailyBudgetExceeded {
		t.Errorf("Reason = %q, want %q", decision.Reason, pkgerrors.ReasonDailyBudgetExceeded)
	}
}

func TestCheck_WarningLevels(t *testing.T) {
	tests := []struct {
		name       string
		spentToday string
		estimate   string
		want       WarnLevel
	}{
		{"well under", "10.00", "1.00", WarnNone},
		{"crosses 75 percent", "37.00", "1.00", WarnNotice},
		{"crosses 90 percent", "45.00", "1.00", WarnCritical},
		{"exactly at limit", "49.00", "1.00", WarnCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lookup := StaticPlanLookup{Default: PlanPro} // daily limit 50.00
			c, led, _ := newTestController(t, tt.estimate, lookup)
			seedSpend(t, led, "t", tt.spentToday)

			decision, err := c.Check(context.Background(), "t", router.TaskDescriptor{
				Complexity: router.ComplexitySimple,
			})
			if err != nil {
				t.Fatalf("Check failed: %v", err)
			}
			if !decision.Approved {
				t.Fatalf("expected approval, got reason %q", decision.Reason)
			}
			if decision.Snapshot.Warning != tt.want {
				t.Errorf("Warning = %q, want %q", decision.Snapshot.Warning, tt.want)
			}
		})
	}
}

func TestRecord_AppendsCostOnce(t *testing.T) {
	lookup := StaticPlanLookup{Default: PlanPro}
	c, led, _ := newTestController(t, "1.00", lookup)
	ctx := context.Background()

	err := c.Record(ctx, "tenant-1", &router.ExecutionResult{
		TaskType:  "analysis",
		Tier:      router.TierMini,
		Cost:      decimal.RequireFromString("0.42"),
		Succeeded: true,
	})
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	spend, _ := led.Spend(ctx, "tenant-1", ledger.PeriodDay)
	if !spend.Equal(decimal.RequireFromString("0.42")) {
		t.Errorf("recorded spend = %s, want 0.42", spend)
	}
}

func TestRecord_SkipsFailedTasks(t *testing.T) {
	lookup := StaticPlanLookup{Default: PlanPro}
	c, led, _ := newTestController(t, "1.00", lookup)
	ctx := context.Background()

	err := c.Record(ctx, "tenant-1", &router.ExecutionResult{
		Tier:      router.TierMini,
		Cost:      decimal.Zero,
		Succeeded: false,
	})
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	if led.EntryCount("tenant-1") != 0 {
		t.Errorf("failed task recorded %d entries, want 0", led.EntryCount("tenant-1"))
	}
}

func TestStatus_ReflectsLedger(t *testing.T) {
	lookup := StaticPlanLookup{Tenants: map[string]string{"t": PlanEnterprise}}
	c, led, _ := newTestController(t, "1.00", lookup)
	seedSpend(t, led, "t", "12.34")

	snapshot, err := c.Status(context.Background(), "t")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}

	if snapshot.Plan != PlanEnterprise {
		t.Errorf("Plan = %q, want enterprise", snapshot.Plan)
	}
	if !snapshot.SpentToday.Equal(decimal.RequireFromString("12.34")) {
		t.Errorf("SpentToday = %s, want 12.34", snapshot.SpentToday)
	}
	if len(snapshot.AllowedTiers) != 3 {
		t.Errorf("AllowedTiers = %v, want all three tiers", snapshot.AllowedTiers)
	}
}

func TestCheck_UnknownTenantWithoutDefault(t *testing.T) {
	lookup := StaticPlanLookup{Tenants: map[string]string{}}
	c, _, _ := newTestController(t, "1.00", lookup)

	_, err := c.Check(context.Background(), "ghost", router.TaskDescriptor{
		Complexity: router.ComplexitySimple,
	})
	var notFound *pkgerrors.NotFoundError
	if !pkgerrors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestPlans_MergeOverrides(t *testing.T) {
	plans := BuiltInPlans().Merge(Plans{
		PlanPro: {
			DailyLimit:             decimal.RequireFromString("75.00"),
			MonthlyLimit:           decimal.RequireFromString("750.00"),
			AllowedTiers:           []string{router.TierNano, router.TierMini, router.TierFull},
			MaxConcurrentWorkflows: 5,
		},
	})

	pro, err := plans.Get(PlanPro)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !pro.DailyLimit.Equal(decimal.RequireFromString("75.00")) {
		t.Errorf("DailyLimit = %s, want override 75.00", pro.DailyLimit)
	}
	if pro.Name != PlanPro {
		t.Errorf("Name = %q, want pro (set during merge)", pro.Name)
	}

	// Untouched plans survive the merge.
	if _, err := plans.Get(PlanBasic); err != nil {
		t.Errorf("basic plan lost in merge: %v", err)
	}
}
