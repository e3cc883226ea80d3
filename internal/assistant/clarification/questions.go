// internal/assistant/clarification/questions.go
package clarification

import "strings"

// Reason is why the assistant needs a narrowing answer.
type Reason string

const (
	ReasonDomain                 Reason = "domain"
	ReasonMetric                 Reason = "metric"
	ReasonTimeRange              Reason = "time_range"
	ReasonAccountSelection       Reason = "account_selection"
	ReasonIntentExtractionFailed Reason = "intent_extraction_failed"
	ReasonOther                  Reason = "other"
)

// Expected answer types handed to the intent resolver as grounding.
const (
	AnswerDomain    = "domain"
	AnswerMetric    = "metric"
	AnswerDateRange = "date_range"
	AnswerAccount   = "account"
	AnswerFreeText  = "free_text"
)

type template struct {
	question     string
	expectedType string
}

var templates = map[Reason]template{
	ReasonDomain: {
		question:     "Which product would you like to know about: current account, foreign currency account, credit card, loan, mortgage, deposit or securities?",
		expectedType: AnswerDomain,
	},
	ReasonMetric: {
		question:     "What would you like to know: the balance, a list of transactions, or a total, count, average, minimum or maximum?",
		expectedType: AnswerMetric,
	},
	ReasonTimeRange: {
		question:     "Which period should I look at? For example this month, last week or 2025-11-01 to 2025-11-30.",
		expectedType: AnswerDateRange,
	},
	ReasonAccountSelection: {
		question:     "Which account do you mean? You can use its nickname or the last digits of its number.",
		expectedType: AnswerAccount,
	},
	ReasonIntentExtractionFailed: {
		question:     "Sorry, I did not quite understand. Could you rephrase your question about your accounts?",
		expectedType: AnswerFreeText,
	},
	ReasonOther: {
		question:     "Could you give me a bit more detail about what you need?",
		expectedType: AnswerFreeText,
	},
}

// ParseReason maps the resolver's free-form reason onto a known Reason.
func ParseReason(s string) Reason {
	r := Reason(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := templates[r]; ok {
		return r
	}
	switch r {
	case "account", "accounts", "entity":
		return ReasonAccountSelection
	case "timerange", "time", "date", "date_range", "period":
		return ReasonTimeRange
	}
	return ReasonOther
}

// QuestionFor returns the fixed question and expected answer type for a reason.
func QuestionFor(r Reason) (string, string) {
	t, ok := templates[r]
	if !ok {
		t = templates[ReasonOther]
	}
	return t.question, t.expectedType
}
