// internal/integrations/genai/types.go
package genai

import "banking-assistant/internal/models"

// IntentRequest is sent to the intent resolver. Message is already in the working
// language.
type IntentRequest struct {
	Message      string                         `json:"message"`
	LanguageCode string                         `json:"languageCode,omitempty"`
	Timezone     string                         `json:"timezone,omitempty"`
	Today        string                         `json:"today,omitempty"`
	Grounding    *models.ClarificationGrounding `json:"clarification,omitempty"`
	History      []models.ConversationSummary   `json:"history,omitempty"`
	LastIntents  []models.Intent                `json:"lastIntents,omitempty"`
}

type timeRangeRequest struct {
	Hint     string `json:"hint"`
	Timezone string `json:"timezone"`
	Today    string `json:"today"`
}

// DraftRequest carries canonical data for the reply drafter.
type DraftRequest struct {
	Message      string                       `json:"message"`
	LanguageCode string                       `json:"languageCode,omitempty"`
	Intents      []models.Intent              `json:"intents"`
	TimeRange    models.TimeRange             `json:"timeRange"`
	Data         []models.NormalizedData      `json:"data"`
	History      []models.ConversationSummary `json:"history,omitempty"`
}

// Draft is the drafted reply.
type Draft struct {
	Text        string         `json:"text"`
	Explanation string         `json:"explanation,omitempty"`
	Tables      []models.Table `json:"tables,omitempty"`
}

// ConverseRequest is used for non-banking turns.
type ConverseRequest struct {
	Message      string                       `json:"message"`
	LanguageCode string                       `json:"languageCode,omitempty"`
	History      []models.ConversationSummary `json:"history,omitempty"`
}

type textPayload struct {
	Text string `json:"text"`
}

// Detection is the language detector's answer.
type Detection struct {
	LanguageCode string  `json:"languageCode"`
	Confidence   float64 `json:"confidence"`
}

type translateRequest struct {
	Text           string `json:"text"`
	SourceLanguage string `json:"sourceLanguage,omitempty"`
	TargetLanguage string `json:"targetLanguage"`
}

// Screening is the content guard's verdict.
type Screening struct {
	Malicious bool   `json:"malicious"`
	Category  string `json:"category,omitempty"`
}
