// internal/assistant/orchestrator/state.go
package orchestrator

import (
	"time"

	"banking-assistant/internal/assistant/datafetch"
	"banking-assistant/internal/assistant/timerange"
	apperrors "banking-assistant/internal/common/errors"
	"banking-assistant/internal/common/logger"
	"banking-assistant/internal/integrations/genai"
	"banking-assistant/internal/models"
)

// Stage names one step of the pipeline.
type Stage string

const (
	StageLoadContext        Stage = "load_context"
	StageApplyClarification Stage = "apply_clarification"
	StageDetectLanguage     Stage = "detect_language"
	StageScreen             Stage = "screen"
	StageTranslate          Stage = "translate"
	StageResolveIntent      Stage = "resolve_intent"
	StageConverse           Stage = "converse"
	StageResolveTimeRange   Stage = "resolve_time_range"
	StageClarify            Stage = "clarify"
	StageFetch              Stage = "fetch"
	StageNormalize          Stage = "normalize"
	StageAppendSummary      Stage = "append_summary"
	StageDraft              Stage = "draft"
	StageSaveContext        Stage = "save_context"
)

// State is the working record of one request. It is created per message, passed by
// reference through every stage and dropped after the response. Each field group
// is written by the stage named next to it and only read afterwards.
type State struct {
	CorrelationID string
	CustomerID    string
	Message       string
	StartedAt     time.Time

	// load_context, apply_clarification
	Session   *models.SessionContext
	Grounding *models.ClarificationGrounding

	// detect_language, translate
	LanguageCode       string
	LanguageConfidence float64
	WorkingMessage     string

	// resolve_intent; clarify replaces Resolution once when it substitutes defaults
	History    []models.ConversationSummary
	Resolution *models.IntentResolution

	// resolve_time_range
	TimeRange        models.TimeRange
	TimeRangeOutcome timerange.Outcome

	// fetch, normalize
	Fetched    []datafetch.Result
	Normalized []models.NormalizedData

	// append_summary, draft
	Summary string
	Draft   *genai.Draft

	// written once by whichever stage ends the turn
	Exit        string
	Answer      string
	Explanation string
	Tables      []models.Table
	ErrorCode   apperrors.ErrorCode

	Stage Stage
	log   logger.Logger
}

func newState(customerID, correlationID, message string, now time.Time, log logger.Logger) *State {
	return &State{
		log: log.With(map[string]interface{}{
			"correlationId": correlationID,
			"customerId":    customerID,
		}),
		CorrelationID:  correlationID,
		CustomerID:     customerID,
		Message:        message,
		WorkingMessage: message,
		StartedAt:      now,
	}
}

// Intents returns the resolved intents, or nil before intent resolution.
func (s *State) Intents() []models.Intent {
	if s.Resolution == nil {
		return nil
	}
	return s.Resolution.Intents
}

// Grounded reports whether this turn answers an open clarification question.
func (s *State) Grounded() bool {
	return s.Grounding != nil
}
