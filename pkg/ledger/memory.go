package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// MemoryLedger is an in-memory Ledger implementation. It is thread-safe
// and suitable for testing or single-instance deployments.
type MemoryLedger struct {
	mu      sync.RWMutex
	entries map[string][]Entry

	// now is injectable for tests that exercise period rollover.
	now func() time.Time
}

// NewMemoryLedger creates a new in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		entries: make(map[string][]Entry),
		now:     time.Now,
	}
}

// SetClock overrides the ledger's time source. Test use only.
func (l *MemoryLedger) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// Append atomically records a spend entry.
func (l *MemoryLedger) Append(ctx context.Context, entry Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if entry.At.IsZero() {
		entry.At = l.now()
	}
	l.entries[entry.TenantID] = append(l.entries[entry.TenantID], entry)
	return nil
}

// Spend returns the total recorded spend for a tenant in the current
// period window.
func (l *MemoryLedger) Spend(ctx context.Context, tenantID string, period Period) (decimal.Decimal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	start := windowStart(period, l.now())
	total := decimal.Zero
	for _, entry := range l.entries[tenantID] {
		if !entry.At.UTC().Before(start) {
			total = total.Add(entry.Amount)
		}
	}
	return total, nil
}

// EntryCount returns the number of recorded entries for a tenant.
func (l *MemoryLedger) EntryCount(tenantID string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries[tenantID])
}
