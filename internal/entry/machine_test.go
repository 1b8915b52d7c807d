package entry

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type fakeSubmitter struct {
	mu      sync.Mutex
	records []Record
	outcome Outcome
}

func (f *fakeSubmitter) Submit(_ context.Context, rec Record) Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return f.outcome
}

func (f *fakeSubmitter) submitted() []Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Record(nil), f.records...)
}

func newTestMachine(outcome Outcome) (*Machine, *Store, *fakeSubmitter) {
	store := NewStore()
	sub := &fakeSubmitter{outcome: outcome}
	return NewMachine(store, sub), store, sub
}

func TestMachineIncomeFlow(t *testing.T) {
	ctx := context.Background()
	m, store, sub := newTestMachine(Outcome{Status: OutcomeSuccess})

	prompt, err := m.StartConversation(ctx, 1, KindIncome)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if prompt.Spec.Step != StepCategory {
		t.Fatalf("first step = %s, want category", prompt.Spec.Step)
	}

	steps := []struct {
		ev       Event
		nextStep Step
	}{
		{ChoiceSelected{Step: StepCategory, Value: "Salary"}, StepAccount},
		{ChoiceSelected{Step: StepAccount, Value: "Bancolombia"}, StepDescription},
		{TextEntered{Text: "January pay"}, StepAmount},
	}
	for _, st := range steps {
		res, err := m.SubmitField(ctx, 1, st.ev)
		if err != nil {
			t.Fatalf("submit %+v: %v", st.ev, err)
		}
		if res.Prompt == nil || res.Prompt.Spec.Step != st.nextStep {
			t.Fatalf("after %+v: prompt = %+v, want step %s", st.ev, res.Prompt, st.nextStep)
		}
	}

	res, err := m.SubmitField(ctx, 1, TextEntered{Text: "1,000,000"})
	if err != nil {
		t.Fatalf("final submit: %v", err)
	}
	if res.Prompt != nil {
		t.Fatal("completed flow should not prompt again")
	}
	if res.Outcome == nil || res.Outcome.Status != OutcomeSuccess {
		t.Fatalf("outcome = %+v", res.Outcome)
	}

	recs := sub.submitted()
	if len(recs) != 1 {
		t.Fatalf("submissions = %d, want 1", len(recs))
	}
	rec := recs[0]
	if rec.Kind != KindIncome || rec.Amount != 1000000 {
		t.Fatalf("record = %+v", rec)
	}
	want := map[string]string{
		"category":    "Salary",
		"account":     "Bancolombia",
		"description": "January pay",
	}
	for k, v := range want {
		if rec.Fields[k] != v {
			t.Errorf("field %s = %q, want %q", k, rec.Fields[k], v)
		}
	}
	if _, ok := rec.Fields["amount"]; ok {
		t.Error("amount must not appear in Fields")
	}

	if _, ok := store.Get(1); ok {
		t.Fatal("conversation should be removed after submission")
	}
}

func TestMachineSavingFlow(t *testing.T) {
	ctx := context.Background()
	m, _, sub := newTestMachine(Outcome{Status: OutcomeSuccess})

	if _, err := m.StartConversation(ctx, 7, KindSaving); err != nil {
		t.Fatalf("start: %v", err)
	}
	events := []Event{
		ChoiceSelected{Step: StepGoal, Value: "Emergency Fund"},
		ChoiceSelected{Step: StepCurrency, Value: "COP"},
		TextEntered{Text: "250000"},
	}
	for _, ev := range events {
		if _, err := m.SubmitField(ctx, 7, ev); err != nil {
			t.Fatalf("submit %+v: %v", ev, err)
		}
	}

	recs := sub.submitted()
	if len(recs) != 1 {
		t.Fatalf("submissions = %d, want 1", len(recs))
	}
	rec := recs[0]
	if rec.Kind != KindSaving || rec.Amount != 250000 {
		t.Fatalf("record = %+v", rec)
	}
	if rec.Fields["goalName"] != "Emergency Fund" || rec.Fields["currency"] != "COP" {
		t.Fatalf("fields = %+v", rec.Fields)
	}
}

func TestMachineStartConflict(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestMachine(Outcome{Status: OutcomeSuccess})

	if _, err := m.StartConversation(ctx, 1, KindIncome); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := m.StartConversation(ctx, 1, KindExpense); !errors.Is(err, ErrConflict) {
		t.Fatalf("second start: got %v, want ErrConflict", err)
	}
}

func TestMachineUnknownKind(t *testing.T) {
	m, _, _ := newTestMachine(Outcome{Status: OutcomeSuccess})
	if _, err := m.StartConversation(context.Background(), 1, Kind("loan")); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestMachineInvalidInputKeepsState(t *testing.T) {
	ctx := context.Background()
	m, store, sub := newTestMachine(Outcome{Status: OutcomeSuccess})

	if _, err := m.StartConversation(ctx, 1, KindExpense); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Free text on a choice step is rejected.
	_, err := m.SubmitField(ctx, 1, TextEntered{Text: "Groceries"})
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Reason != ReasonNotInChoiceSet {
		t.Fatalf("text on choice step: got %v", err)
	}

	// A tap from a stale keyboard (wrong step) is rejected.
	_, err = m.SubmitField(ctx, 1, ChoiceSelected{Step: StepAccount, Value: "Nequi"})
	if !errors.As(err, &ve) || ve.Reason != ReasonNotInChoiceSet {
		t.Fatalf("stale choice: got %v", err)
	}

	conv, ok := store.Get(1)
	if !ok || conv.StepIndex != 0 || len(conv.Fields) != 0 {
		t.Fatalf("state changed by invalid input: %+v, ok=%v", conv, ok)
	}
	if len(sub.submitted()) != 0 {
		t.Fatal("nothing should be submitted")
	}

	// The same step still accepts valid input afterwards.
	res, err := m.SubmitField(ctx, 1, ChoiceSelected{Step: StepCategory, Value: "Groceries"})
	if err != nil || res.Prompt == nil || res.Prompt.Spec.Step != StepAccount {
		t.Fatalf("valid retry: res=%+v err=%v", res, err)
	}
}

func TestMachineNoActiveConversation(t *testing.T) {
	m, _, _ := newTestMachine(Outcome{Status: OutcomeSuccess})
	_, err := m.SubmitField(context.Background(), 1, TextEntered{Text: "5000"})
	if !errors.Is(err, ErrNoActiveConversation) {
		t.Fatalf("got %v, want ErrNoActiveConversation", err)
	}
}

func TestMachineCancel(t *testing.T) {
	ctx := context.Background()
	m, store, _ := newTestMachine(Outcome{Status: OutcomeSuccess})

	// Cancelling without a conversation is a no-op.
	m.CancelConversation(ctx, 1)

	if _, err := m.StartConversation(ctx, 1, KindIncome); err != nil {
		t.Fatalf("start: %v", err)
	}
	m.CancelConversation(ctx, 1)
	if _, ok := store.Get(1); ok {
		t.Fatal("conversation should be gone after cancel")
	}

	// The chat is free for a new conversation.
	if _, err := m.StartConversation(ctx, 1, KindSaving); err != nil {
		t.Fatalf("restart after cancel: %v", err)
	}
}

func TestMachineRemovesStateOnFailedOutcome(t *testing.T) {
	ctx := context.Background()
	m, store, sub := newTestMachine(Outcome{Status: OutcomeTransportError, Message: "connection refused"})

	if _, err := m.StartConversation(ctx, 5, KindSaving); err != nil {
		t.Fatalf("start: %v", err)
	}
	events := []Event{
		ChoiceSelected{Step: StepGoal, Value: "Travel"},
		ChoiceSelected{Step: StepCurrency, Value: "USD"},
	}
	for _, ev := range events {
		if _, err := m.SubmitField(ctx, 5, ev); err != nil {
			t.Fatalf("submit %+v: %v", ev, err)
		}
	}

	res, err := m.SubmitField(ctx, 5, TextEntered{Text: "100"})
	if err != nil {
		t.Fatalf("final submit: %v", err)
	}
	if res.Outcome == nil || res.Outcome.Status != OutcomeTransportError {
		t.Fatalf("outcome = %+v", res.Outcome)
	}

	// A failed attempt is never retried from retained state.
	if _, ok := store.Get(5); ok {
		t.Fatal("conversation should be removed whatever the outcome")
	}
	if len(sub.submitted()) != 1 {
		t.Fatalf("submissions = %d, want 1", len(sub.submitted()))
	}
}

func TestMachineConcurrentFinalEvents(t *testing.T) {
	ctx := context.Background()
	m, _, sub := newTestMachine(Outcome{Status: OutcomeSuccess})

	if _, err := m.StartConversation(ctx, 1, KindSaving); err != nil {
		t.Fatalf("start: %v", err)
	}
	setup := []Event{
		ChoiceSelected{Step: StepGoal, Value: "House"},
		ChoiceSelected{Step: StepCurrency, Value: "COP"},
	}
	for _, ev := range setup {
		if _, err := m.SubmitField(ctx, 1, ev); err != nil {
			t.Fatalf("submit %+v: %v", ev, err)
		}
	}

	// Two racing final messages: exactly one submission, the loser sees
	// the conversation gone.
	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.SubmitField(ctx, 1, TextEntered{Text: "90000"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var failures int
	for err := range errs {
		if err != nil {
			if !errors.Is(err, ErrNoActiveConversation) {
				t.Fatalf("unexpected error: %v", err)
			}
			failures++
		}
	}
	if failures != 1 {
		t.Fatalf("losing events = %d, want 1", failures)
	}
	if len(sub.submitted()) != 1 {
		t.Fatalf("submissions = %d, want exactly 1", len(sub.submitted()))
	}
}
