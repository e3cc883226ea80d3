// internal/models/response.go
package models

// AssistantResponse is what ProcessMessage returns to every caller.
type AssistantResponse struct {
	Answer        string  `json:"answer"`
	Explanation   string  `json:"explanation,omitempty"`
	Tables        []Table `json:"tables,omitempty"`
	CorrelationID string  `json:"correlationId"`
	LanguageCode  string  `json:"languageCode,omitempty"`
	Exit          string  `json:"exit"`
}

// Table is optional structured data returned alongside the answer.
type Table struct {
	Title   string     `json:"title,omitempty"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Pipeline exit paths.
const (
	ExitCompleted      = "completed"
	ExitConversational = "conversational"
	ExitClarification  = "clarification"
	ExitRefused        = "refused"
	ExitDraftFallback  = "draft_fallback"
	ExitError          = "error"
)
