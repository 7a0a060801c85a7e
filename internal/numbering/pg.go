package numbering

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Querier is satisfied by *pgxpool.Pool and pgx.Tx, so counters can be
// allocated standalone or inside an enclosing transaction. Allocating inside
// the transaction ties the increment to the caller's commit: a rolled back
// creation never leaves a reserved-but-unrecorded number behind.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGSequencer backs counters with a number_sequences table. The upsert is a
// single atomic read-modify-write; the row lock serialises concurrent callers.
type PGSequencer struct {
	db Querier
}

// NewPGSequencer constructs a PostgreSQL sequencer.
func NewPGSequencer(db Querier) *PGSequencer {
	return &PGSequencer{db: db}
}

// NextValue increments and returns the counter for scope.
func (s *PGSequencer) NextValue(ctx context.Context, scope Scope) (int64, error) {
	const q = `INSERT INTO number_sequences (scope, value) VALUES ($1, 1)
ON CONFLICT (scope) DO UPDATE SET value = number_sequences.value + 1
RETURNING value`
	var value int64
	if err := s.db.QueryRow(ctx, q, string(scope)).Scan(&value); err != nil {
		return 0, err
	}
	return value, nil
}
