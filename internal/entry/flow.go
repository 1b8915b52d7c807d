package entry

// Kind identifies which transaction flow a conversation collects.
type Kind string

const (
	// KindIncome records money coming in.
	KindIncome Kind = "income"
	// KindExpense records money going out.
	KindExpense Kind = "expense"
	// KindSaving records a deposit toward a saving goal.
	KindSaving Kind = "saving"
)

// Step names one field-collection stage within a conversation.
type Step string

const (
	StepCategory    Step = "category"
	StepAccount     Step = "account"
	StepDescription Step = "description"
	StepAmount      Step = "amount"
	StepGoal        Step = "goal"
	StepCurrency    Step = "currency"
)

// FieldType selects the validation rule applied to a step's input.
type FieldType int

const (
	// FieldChoice accepts only one of the step's enumerated canonical values.
	FieldChoice FieldType = iota
	// FieldText accepts any non-empty free text.
	FieldText
	// FieldAmount accepts a positive integer amount in minor units.
	FieldAmount
)

// FieldSpec describes one step of a flow: the field it fills, how its input
// is validated, and the prompt shown when the step becomes current.
type FieldSpec struct {
	Step    Step
	Field   string
	Type    FieldType
	Choices []string
	Prompt  string
}

// Option sets mirror the categories configured in the ledger spreadsheet.
var (
	incomeCategories = []string{
		"Salary", "Commissions", "Loans", "Bonus",
	}
	expenseCategories = []string{
		"Groceries", "Personal Care", "Subscriptions", "Utilities",
		"Cravings", "House Expenses", "Debt Paid Off", "Study",
		"Incidental Expenses", "Health", "Gifts",
	}
	accounts = []string{
		"Bancolombia", "Nequi", "Daviplata", "Binance",
		"Scotiabank", "Davivienda", "Cash",
	}
	savingGoals = []string{
		"Emergency Fund", "Travel", "Investments", "House",
	}
	savingCurrencies = []string{
		"COP", "USD", "EUR",
	}
)

var flows = map[Kind][]FieldSpec{
	KindIncome: {
		{Step: StepCategory, Field: "category", Type: FieldChoice, Choices: incomeCategories, Prompt: "Select the income category:"},
		{Step: StepAccount, Field: "account", Type: FieldChoice, Choices: accounts, Prompt: "Select the account:"},
		{Step: StepDescription, Field: "description", Type: FieldText, Prompt: "Enter a description:"},
		{Step: StepAmount, Field: "amount", Type: FieldAmount, Prompt: "Enter the amount:"},
	},
	KindExpense: {
		{Step: StepCategory, Field: "category", Type: FieldChoice, Choices: expenseCategories, Prompt: "Select the expense category:"},
		{Step: StepAccount, Field: "account", Type: FieldChoice, Choices: accounts, Prompt: "Select the account:"},
		{Step: StepDescription, Field: "description", Type: FieldText, Prompt: "Enter a description:"},
		{Step: StepAmount, Field: "amount", Type: FieldAmount, Prompt: "Enter the amount:"},
	},
	KindSaving: {
		{Step: StepGoal, Field: "goalName", Type: FieldChoice, Choices: savingGoals, Prompt: "Select the saving goal:"},
		{Step: StepCurrency, Field: "currency", Type: FieldChoice, Choices: savingCurrencies, Prompt: "Select the currency:"},
		{Step: StepAmount, Field: "amount", Type: FieldAmount, Prompt: "Enter the amount:"},
	},
}

// Flow returns the ordered field specs for a kind, or nil for an unknown kind.
func Flow(kind Kind) []FieldSpec {
	return flows[kind]
}

// ValidKind reports whether kind names a known transaction flow.
func ValidKind(kind Kind) bool {
	_, ok := flows[kind]
	return ok
}
