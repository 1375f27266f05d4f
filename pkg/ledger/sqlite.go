package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	pkgerrors "github.com/tombee/maestro/pkg/errors"
)

// SQLiteLedger is a Ledger backed by SQLite, suitable for single-node
// deployments that need spend totals to survive restarts.
//
// WAL mode allows concurrent readers while appends serialize on the
// writer; each INSERT is atomic, which is the property the budget
// controller's check-then-record sequence relies on.
type SQLiteLedger struct {
	db *sql.DB

	// now is injectable for tests that exercise period rollover.
	now func() time.Time
}

// NewSQLiteLedger opens (creating if needed) a spend ledger at path.
func NewSQLiteLedger(path string) (*SQLiteLedger, error) {
	if path == "" {
		return nil, &pkgerrors.ConfigError{
			Key:    "ledger.path",
			Reason: "database path is required",
		}
	}

	connStr := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to ledger database: %w", err)
	}

	l := &SQLiteLedger{db: db, now: time.Now}
	if err := l.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run ledger migrations: %w", err)
	}
	return l, nil
}

// sqlTimeFormat is fixed-width so lexicographic comparison in SQL
// matches chronological order. RFC3339Nano trims trailing zeros and
// would not.
const sqlTimeFormat = "2006-01-02 15:04:05.000000000"

// migrate creates the spend schema.
func (l *SQLiteLedger) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS spend_entries (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			amount TEXT NOT NULL,
			task_type TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_spend_tenant_time
			ON spend_entries(tenant_id, created_at)`,
	}

	for _, migration := range migrations {
		if _, err := l.db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// Append atomically records a spend entry.
func (l *SQLiteLedger) Append(ctx context.Context, entry Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	at := entry.At
	if at.IsZero() {
		at = l.now()
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO spend_entries (id, tenant_id, amount, task_type, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(),
		entry.TenantID,
		entry.Amount.String(),
		entry.TaskType,
		at.UTC().Format(sqlTimeFormat),
	)
	if err != nil {
		return fmt.Errorf("failed to append spend entry: %w", err)
	}
	return nil
}

// Spend returns the total recorded spend for a tenant in the current
// period window. Amounts are summed as decimals in Go; SQLite only
// filters the window.
func (l *SQLiteLedger) Spend(ctx context.Context, tenantID string, period Period) (decimal.Decimal, error) {
	start := windowStart(period, l.now())

	rows, err := l.db.QueryContext(ctx,
		`SELECT amount FROM spend_entries
		 WHERE tenant_id = ? AND created_at >= ?`,
		tenantID,
		start.Format(sqlTimeFormat),
	)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query spend: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return decimal.Zero, fmt.Errorf("failed to scan spend entry: %w", err)
		}
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, fmt.Errorf("corrupt spend amount %q: %w", raw, err)
		}
		total = total.Add(amount)
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, fmt.Errorf("failed to iterate spend entries: %w", err)
	}
	return total, nil
}

// Close releases the underlying database handle.
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}
