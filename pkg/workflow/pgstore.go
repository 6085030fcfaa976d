package workflow

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"staff-appraisal/internal/db"
	"staff-appraisal/pkg/audit"
	"staff-appraisal/pkg/ledger"
	"staff-appraisal/pkg/notify"
	"staff-appraisal/pkg/staff"
	"staff-appraisal/pkg/task"
)

// PgStore is a Store backed by a PostgreSQL pool.
type PgStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPgStore creates a PgStore. A nil logger falls back to slog.Default.
func NewPgStore(pool *pgxpool.Pool, logger *slog.Logger) *PgStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PgStore{pool: pool, logger: logger}
}

// InTx runs fn in one transaction, then seals the audit events it recorded.
// A failed seal does not undo the committed work; the events stay pending
// and are sealed by the next flush.
func (s *PgStore) InTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) error {
	err := db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(ctx, reposOn(tx))
	})
	if err != nil {
		return err
	}
	if _, err := audit.Flush(ctx, s.pool); err != nil {
		s.logger.Warn("audit flush failed; events stay pending", "error", err)
	}
	return nil
}

func (s *PgStore) Reads() Repos {
	return reposOn(s.pool)
}

// Notifications returns the notification store on the same pool.
func (s *PgStore) Notifications() *notify.PgStore {
	return notify.NewPgStore(s.pool)
}

// EnsureSchema creates every table the workflow uses.
func (s *PgStore) EnsureSchema(ctx context.Context) error {
	r := s.Reads()
	if err := r.Staff.EnsureTable(ctx); err != nil {
		return err
	}
	if err := r.Tasks.EnsureTable(ctx); err != nil {
		return err
	}
	if err := r.Audit.EnsureTable(ctx); err != nil {
		return err
	}
	if err := s.Notifications().EnsureTable(ctx); err != nil {
		return err
	}
	// Seal anything a crash left between commit and flush.
	n, err := audit.Flush(ctx, s.pool)
	if err != nil {
		return err
	}
	if n > 0 {
		s.logger.Info("sealed pending audit events", "count", n)
	}
	return nil
}

func reposOn(conn db.DBTX) Repos {
	return Repos{
		Tasks:  task.NewPgStore(conn),
		Staff:  staff.NewPgStore(conn),
		Ledger: ledger.NewPgLedger(conn),
		Audit:  audit.NewPgStore(conn),
	}
}
