package ledger

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func newTestSQLiteLedger(t *testing.T) *SQLiteLedger {
	t.Helper()

	path := filepath.Join(t.TempDir(), "ledger.db")
	l, err := NewSQLiteLedger(path)
	if err != nil {
		t.Fatalf("NewSQLiteLedger failed: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestSQLiteLedger_AppendAndSpend(t *testing.T) {
	l := newTestSQLiteLedger(t)
	ctx := context.Background()

	for _, amount := range []string{"0.003", "1.20", "0.50"} {
		err := l.Append(ctx, Entry{
			TenantID: "tenant-1",
			Amount:   decimal.RequireFromString(amount),
			TaskType: "option-generation",
		})
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	got, err := l.Spend(ctx, "tenant-1", PeriodDay)
	if err != nil {
		t.Fatalf("Spend failed: %v", err)
	}
	want := decimal.RequireFromString("1.703")
	if !got.Equal(want) {
		t.Errorf("Spend = %s, want %s", got, want)
	}
}

func TestSQLiteLedger_WindowFiltering(t *testing.T) {
	l := newTestSQLiteLedger(t)
	ctx := context.Background()

	now := time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	entries := []struct {
		amount string
		at     time.Time
	}{
		{"1.00", now.Add(-time.Hour)},                 // today
		{"2.00", now.AddDate(0, 0, -3)},               // this month, not today
		{"4.00", now.AddDate(0, -1, 0)},               // last month
		{"8.00", time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)}, // month boundary, inclusive
	}
	for _, e := range entries {
		err := l.Append(ctx, Entry{
			TenantID: "t",
			Amount:   decimal.RequireFromString(e.amount),
			At:       e.at,
		})
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	daily, err := l.Spend(ctx, "t", PeriodDay)
	if err != nil {
		t.Fatalf("Spend(day) failed: %v", err)
	}
	if !daily.Equal(decimal.RequireFromString("1.00")) {
		t.Errorf("daily spend = %s, want 1.00", daily)
	}

	monthly, err := l.Spend(ctx, "t", PeriodMonth)
	if err != nil {
		t.Fatalf("Spend(month) failed: %v", err)
	}
	if !monthly.Equal(decimal.RequireFromString("11.00")) {
		t.Errorf("monthly spend = %s, want 11.00", monthly)
	}
}

func TestSQLiteLedger_UnknownTenantIsZero(t *testing.T) {
	l := newTestSQLiteLedger(t)

	got, err := l.Spend(context.Background(), "nobody", PeriodMonth)
	if err != nil {
		t.Fatalf("Spend failed: %v", err)
	}
	if !got.IsZero() {
		t.Errorf("Spend = %s, want 0 for unknown tenant", got)
	}
}

func TestSQLiteLedger_ConcurrentAppends(t *testing.T) {
	l := newTestSQLiteLedger(t)
	ctx := context.Background()

	const goroutines = 10
	const perGoroutine = 10
	amount := decimal.RequireFromString("0.05")

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				if err := l.Append(ctx, Entry{TenantID: "t", Amount: amount}); err != nil {
					t.Errorf("Append failed: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	got, err := l.Spend(ctx, "t", PeriodDay)
	if err != nil {
		t.Fatalf("Spend failed: %v", err)
	}
	want := amount.Mul(decimal.NewFromInt(goroutines * perGoroutine))
	if !got.Equal(want) {
		t.Errorf("Spend = %s, want %s after concurrent appends", got, want)
	}
}
