package entry

import (
	"errors"
	"fmt"
)

var (
	// ErrConflict is returned when a conversation is already active for the chat.
	ErrConflict = errors.New("entry: conversation already active")
	// ErrNoActiveConversation is returned for events addressed to a chat
	// without an in-progress conversation.
	ErrNoActiveConversation = errors.New("entry: no active conversation")
)

// Reason is a machine-distinguishable validation failure code. The presenter
// maps reasons to user-facing messages; the core never carries display text.
type Reason string

const (
	ReasonEmptyInput     Reason = "empty_input"
	ReasonNotInChoiceSet Reason = "not_in_choice_set"
	ReasonNotANumber     Reason = "not_a_number"
	ReasonNonPositive    Reason = "non_positive"
)

// ValidationError reports invalid input for the current step. The
// conversation state is unchanged: the same spec governs the next attempt.
type ValidationError struct {
	Reason Reason
	Spec   FieldSpec
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("entry: invalid input for step %s: %s", e.Spec.Step, e.Reason)
}

// Code exposes the reason for structured logging.
func (e *ValidationError) Code() string {
	return string(e.Reason)
}
