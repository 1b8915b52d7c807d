package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const appendQuery = `
	INSERT INTO submissions (id, kind, function, fields, amount, outcome, detail, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

// Postgres persists submissions via sqlx. Schema lives in migrations/.
type Postgres struct {
	db *sqlx.DB
}

// NewPostgres wraps an already-connected pool.
func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db}
}

// Append implements Store.
func (p *Postgres) Append(ctx context.Context, sub Submission) error {
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	fields, err := json.Marshal(sub.Fields)
	if err != nil {
		return fmt.Errorf("journal: encode fields: %w", err)
	}
	_, err = p.db.ExecContext(ctx, appendQuery,
		sub.ID, sub.Kind, sub.Function, fields, sub.Amount, sub.Outcome, sub.Detail, sub.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("journal: insert submission: %w", err)
	}
	return nil
}

// Close releases the underlying pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}
