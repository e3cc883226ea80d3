// internal/models/intent.go
package models

import "time"

// Intent is one resolved request inside a customer message.
type Intent struct {
	Domain        Domain                 `json:"domain"`
	Metric        Metric                 `json:"metric"`
	TimeRangeHint string                 `json:"timeRangeHint,omitempty"`
	EntityHints   *EntityHints           `json:"entityHints,omitempty"`
	Parameters    map[string]interface{} `json:"parameters,omitempty"`
}

// EntityHints only ever carries identifiers explicitly present in the current message.
type EntityHints struct {
	AccountIDs    []string               `json:"accountIds,omitempty"`
	CardIDs       []string               `json:"cardIds,omitempty"`
	OtherEntities map[string]interface{} `json:"otherEntities,omitempty"`
}

// IsEmpty reports whether no identifiers are present.
func (h *EntityHints) IsEmpty() bool {
	return h == nil || (len(h.AccountIDs) == 0 && len(h.CardIDs) == 0 && len(h.OtherEntities) == 0)
}

// IntentResolution is the intent resolver's structured answer for one message.
type IntentResolution struct {
	Intents             []Intent `json:"intents"`
	Confidence          float64  `json:"confidence"`
	NeedsClarification  bool     `json:"needsClarification"`
	ClarificationNeeded string   `json:"clarificationNeeded,omitempty"`
	IsFollowUp          bool     `json:"isFollowUp,omitempty"`
}

// AllUnknown reports whether there is nothing to fetch: no intents, or only UNKNOWN ones.
func AllUnknown(intents []Intent) bool {
	for _, in := range intents {
		if in.Domain != DomainUnknown {
			return false
		}
	}
	return true
}

// FirstTimeRangeHint returns the first non-empty hint across intents.
func FirstTimeRangeHint(intents []Intent) string {
	for _, in := range intents {
		if in.TimeRangeHint != "" {
			return in.TimeRangeHint
		}
	}
	return ""
}

// ClarificationGrounding is handed to the intent resolver on the turn that answers
// an open clarification question.
type ClarificationGrounding struct {
	Question             string                 `json:"question"`
	ExpectedAnswerType   string                 `json:"expectedAnswerType"`
	Answer               string                 `json:"answer"`
	ClarificationContext map[string]interface{} `json:"clarificationContext,omitempty"`
	AskedAt              time.Time              `json:"askedAt"`
}
