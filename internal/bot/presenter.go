package bot

import (
	"fmt"
	"strings"

	"github.com/avelezco/ledgerbot/core/telegram/keyboard"
	"github.com/avelezco/ledgerbot/internal/entry"

	tele "gopkg.in/telebot.v4"
)

// Callback keys routed by handleCallback.
const (
	cbPick   = "pick"
	cbCancel = "entry_cancel"
)

const choiceButtonsPerRow = 2

var kindTitles = map[entry.Kind]string{
	entry.KindIncome:  "Income",
	entry.KindExpense: "Expense",
	entry.KindSaving:  "Saving",
}

// decorations map canonical option values to their display labels. Only the
// label is decorated; callbacks and submissions carry the canonical value.
var decorations = map[string]string{
	"Salary":              "💼 Salary",
	"Commissions":         "🤝 Commissions",
	"Loans":               "🏦 Loans",
	"Bonus":               "🎁 Bonus",
	"Groceries":           "🛒 Groceries",
	"Personal Care":       "🧴 Personal Care",
	"Subscriptions":       "📺 Subscriptions",
	"Utilities":           "💡 Utilities",
	"Cravings":            "🍫 Cravings",
	"House Expenses":      "🏠 House Expenses",
	"Debt Paid Off":       "💳 Debt Paid Off",
	"Study":               "📚 Study",
	"Incidental Expenses": "🧾 Incidental Expenses",
	"Health":              "🏥 Health",
	"Gifts":               "🎀 Gifts",
	"Cash":                "💵 Cash",
	"Emergency Fund":      "🚨 Emergency Fund",
	"Travel":              "✈️ Travel",
	"Investments":         "📈 Investments",
	"House":               "🏠 House",
}

func decorate(value string) string {
	if label, ok := decorations[value]; ok {
		return label
	}
	return value
}

// promptMessage renders the next-step prompt and, for choice steps, the
// option keyboard whose callback payloads carry "<step>:<canonical value>".
func promptMessage(p entry.Prompt) (string, *tele.ReplyMarkup) {
	title := kindTitles[p.Kind]
	text := fmt.Sprintf("%s — %s", title, p.Spec.Prompt)

	var rows [][]keyboard.InlineBtn
	if p.Spec.Type == entry.FieldChoice {
		var row []keyboard.InlineBtn
		for _, choice := range p.Spec.Choices {
			row = append(row, keyboard.InlineBtn{
				Text:   decorate(choice),
				Unique: cbPick,
				Data:   string(p.Spec.Step) + ":" + choice,
			})
			if len(row) == choiceButtonsPerRow {
				rows = append(rows, row)
				row = nil
			}
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}
	rows = append(rows, []keyboard.InlineBtn{{Text: "✖ Cancel", Unique: cbCancel, Data: "cancel"}})

	return text, keyboard.InlineButtonsRows(rows...)
}

// validationMessage renders a retry hint for the failed step.
func validationMessage(ve *entry.ValidationError) string {
	switch ve.Reason {
	case entry.ReasonEmptyInput:
		return "That looks empty. " + ve.Spec.Prompt
	case entry.ReasonNotInChoiceSet:
		return "Please pick one of the buttons below."
	case entry.ReasonNotANumber:
		return "The amount must be a whole number, e.g. 50000 or 50,000."
	case entry.ReasonNonPositive:
		return "The amount must be greater than zero."
	default:
		return "Invalid input. " + ve.Spec.Prompt
	}
}

// outcomeMessage renders the final submission outcome.
func outcomeMessage(rec *entry.Record, out *entry.Outcome) string {
	title := kindTitles[rec.Kind]
	switch out.Status {
	case entry.OutcomeSuccess:
		return fmt.Sprintf("%s record added successfully!", title)
	case entry.OutcomeAppError:
		return fmt.Sprintf("The ledger rejected the %s record: %s", strings.ToLower(title), out.Message)
	default:
		return fmt.Sprintf("Could not reach the ledger; the %s record was not saved. Please start over.", strings.ToLower(title))
	}
}

const welcomeText = "To start adding records to your spreadsheet, use /income, /expense or /saving. Use /cancel to abandon an entry in progress."

const noConversationText = "No entry in progress. Start one with /income, /expense or /saving."

const conflictText = "You already have an entry in progress. Finish it or /cancel first."

const cancelledText = "Entry cancelled."

const internalErrorText = "Something went wrong on my side. Please try again."
