package workflow

import (
	"context"

	"staff-appraisal/pkg/audit"
	"staff-appraisal/pkg/ledger"
	"staff-appraisal/pkg/staff"
	"staff-appraisal/pkg/task"
)

// Repos groups the repositories one unit of work operates on.
type Repos struct {
	Tasks  task.Store
	Staff  staff.Store
	Ledger ledger.Ledger
	Audit  audit.Log
}

// Store opens units of work over the record store.
type Store interface {
	// InTx runs fn against repositories bound to one transaction. Every write
	// fn makes commits when it returns nil and none does otherwise.
	InTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) error

	// Reads returns repositories for queries outside a transaction.
	Reads() Repos
}
