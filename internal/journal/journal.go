// Package journal keeps a local audit trail of submission attempts. The
// external ledger has no idempotency key, so this trail is the only way to
// investigate a suspected double entry after the fact.
package journal

import (
	"context"
	"time"

	"github.com/avelezco/ledgerbot/core/logger"
	"github.com/avelezco/ledgerbot/internal/entry"
	"log/slog"
)

// Submission is one recorded attempt, successful or not.
type Submission struct {
	ID        string            `db:"id"`
	Kind      string            `db:"kind"`
	Function  string            `db:"function"`
	Fields    map[string]string `db:"-"`
	Amount    int64             `db:"amount"`
	Outcome   string            `db:"outcome"`
	Detail    string            `db:"detail"`
	CreatedAt time.Time         `db:"created_at"`
}

// Store persists submissions. Implementations must tolerate being called
// concurrently from different conversations.
type Store interface {
	Append(ctx context.Context, sub Submission) error
	Close() error
}

// Nop discards all submissions; used when the journal is disabled.
type Nop struct{}

// Append implements Store.
func (Nop) Append(context.Context, Submission) error { return nil }

// Close implements Store.
func (Nop) Close() error { return nil }

// Submitter decorates an entry.Submitter, appending every attempt and its
// outcome to the journal. Journal failures never affect the submission
// result; they are logged and dropped.
type Submitter struct {
	inner entry.Submitter
	store Store
	fn    func(entry.Kind) string
}

// NewSubmitter wraps inner so each Submit call is journaled.
// fn maps a kind to the ledger's operation discriminator.
func NewSubmitter(inner entry.Submitter, store Store, fn func(entry.Kind) string) *Submitter {
	return &Submitter{inner: inner, store: store, fn: fn}
}

// Submit implements entry.Submitter.
func (s *Submitter) Submit(ctx context.Context, rec entry.Record) entry.Outcome {
	outcome := s.inner.Submit(ctx, rec)

	sub := Submission{
		Kind:      string(rec.Kind),
		Function:  s.fn(rec.Kind),
		Fields:    rec.Fields,
		Amount:    rec.Amount,
		Outcome:   string(outcome.Status),
		Detail:    outcome.Message,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.Append(ctx, sub); err != nil {
		logger.Warn(ctx, "journal", "append",
			slog.String("status", "fail"),
			slog.String("kind", sub.Kind),
			slog.String("err", err.Error()),
		)
	}
	return outcome
}
