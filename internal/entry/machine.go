package entry

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/avelezco/ledgerbot/core/logger"
	"log/slog"
)

// Event is an inbound unit of input for a conversation step.
type Event interface {
	isEvent()
}

// ChoiceSelected carries the stable value of a tapped option button,
// tagged with the step the button was rendered for.
type ChoiceSelected struct {
	Step  Step
	Value string
}

func (ChoiceSelected) isEvent() {}

// TextEntered carries a raw free-text message.
type TextEntered struct {
	Text string
}

func (TextEntered) isEvent() {}

// Record is the immutable, fully-validated result of a completed
// conversation, handed to the submitter as a snapshot.
type Record struct {
	Kind      Kind
	Fields    map[string]string
	Amount    int64
	CreatedAt time.Time
}

// OutcomeStatus classifies a submission attempt.
type OutcomeStatus string

const (
	// OutcomeSuccess means the ledger acknowledged the record.
	OutcomeSuccess OutcomeStatus = "ok"
	// OutcomeAppError means the ledger answered but rejected the record.
	OutcomeAppError OutcomeStatus = "app_error"
	// OutcomeTransportError means the call could not be completed.
	OutcomeTransportError OutcomeStatus = "transport_error"
)

// Outcome is the classified result of one submission attempt.
type Outcome struct {
	Status  OutcomeStatus
	Message string
	Err     error
}

// Submitter performs the outbound ledger call for a completed record.
// Implementations must not retry: a duplicate call double-records.
type Submitter interface {
	Submit(ctx context.Context, rec Record) Outcome
}

// Prompt tells the presenter which step to ask for next.
type Prompt struct {
	Kind Kind
	Spec FieldSpec
}

// Result is what SubmitField produced: either the next prompt or, once the
// flow completed, the submitted record and its outcome.
type Result struct {
	Prompt  *Prompt
	Record  *Record
	Outcome *Outcome
}

// Machine drives per-chat entry conversations: it validates each event
// against the current step, advances state, and submits completed records.
type Machine struct {
	store     *Store
	submitter Submitter
	now       func() time.Time
}

// NewMachine wires a machine over the given store and submitter.
func NewMachine(store *Store, submitter Submitter) *Machine {
	return &Machine{
		store:     store,
		submitter: submitter,
		now:       time.Now,
	}
}

// StartConversation creates state at the first step of the kind's flow and
// returns its prompt. An active conversation is never silently replaced:
// the call fails with ErrConflict and the existing state is untouched.
func (m *Machine) StartConversation(ctx context.Context, chatID int64, kind Kind) (Prompt, error) {
	flow := Flow(kind)
	if flow == nil {
		return Prompt{}, fmt.Errorf("entry: unknown kind %q", kind)
	}

	conv := &Conversation{
		ChatID:    chatID,
		Kind:      kind,
		Fields:    make(map[string]string, len(flow)),
		CreatedAt: m.now(),
	}
	if err := m.store.Create(chatID, conv); err != nil {
		return Prompt{}, err
	}

	logger.Info(ctx, "entry", "conversation.started",
		slog.String("kind", string(kind)),
		slog.String("step", string(flow[0].Step)),
	)
	return Prompt{Kind: kind, Spec: flow[0]}, nil
}

// SubmitField validates the event against the chat's current step. On
// validator failure the state is unchanged and the same step is retried.
// On success the value is recorded and the step advances; completing the
// final step submits the record exactly once and removes the conversation
// whatever the outcome.
func (m *Machine) SubmitField(ctx context.Context, chatID int64, ev Event) (Result, error) {
	var res Result

	err := m.store.Update(chatID, func(conv *Conversation) (bool, error) {
		spec, ok := conv.CurrentSpec()
		if !ok {
			// Terminal state is never retained; treat as already gone.
			return true, ErrNoActiveConversation
		}

		value, err := m.validateEvent(spec, ev)
		if err != nil {
			return false, err
		}

		conv.Fields[spec.Field] = value
		conv.StepIndex++

		if !conv.Complete() {
			next, _ := conv.CurrentSpec()
			res.Prompt = &Prompt{Kind: conv.Kind, Spec: next}
			logger.Debug(ctx, "entry", "step.advanced",
				slog.String("kind", string(conv.Kind)),
				slog.String("step", string(next.Step)),
			)
			return false, nil
		}

		rec, err := buildRecord(conv)
		if err != nil {
			// Broken invariant; abandon the conversation rather than
			// submit a corrupt record.
			return true, err
		}

		outcome := m.submitter.Submit(ctx, rec)
		res.Record = &rec
		res.Outcome = &outcome
		logger.Info(ctx, "entry", "conversation.submitted",
			slog.String("kind", string(conv.Kind)),
			slog.Int64("amount", rec.Amount),
			slog.String("outcome", string(outcome.Status)),
		)
		return true, nil
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// CancelConversation removes state unconditionally. Cancelling a chat
// without a conversation is a no-op, not an error.
func (m *Machine) CancelConversation(ctx context.Context, chatID int64) {
	m.store.Remove(chatID)
	logger.Debug(ctx, "entry", "conversation.cancelled")
}

// validateEvent checks the event shape against the step type, then runs the
// field validator. A button tap for some other step (a stale keyboard) and
// free text on a choice step are both rejected without touching state.
func (m *Machine) validateEvent(spec FieldSpec, ev Event) (string, error) {
	switch e := ev.(type) {
	case ChoiceSelected:
		if spec.Type != FieldChoice || e.Step != spec.Step {
			return "", &ValidationError{Reason: ReasonNotInChoiceSet, Spec: spec}
		}
		return validateField(spec, e.Value)
	case TextEntered:
		if spec.Type == FieldChoice {
			return "", &ValidationError{Reason: ReasonNotInChoiceSet, Spec: spec}
		}
		return validateField(spec, e.Text)
	default:
		return "", fmt.Errorf("entry: unsupported event %T", ev)
	}
}

func buildRecord(conv *Conversation) (Record, error) {
	fields := make(map[string]string, len(conv.Fields))
	for k, v := range conv.Fields {
		fields[k] = v
	}
	raw, ok := fields["amount"]
	if !ok {
		return Record{}, fmt.Errorf("entry: completed conversation missing amount")
	}
	delete(fields, "amount")
	amount, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("entry: stored amount %q is not numeric: %w", raw, err)
	}
	return Record{
		Kind:      conv.Kind,
		Fields:    fields,
		Amount:    amount,
		CreatedAt: conv.CreatedAt,
	}, nil
}
