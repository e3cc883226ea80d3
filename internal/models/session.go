// internal/models/session.go
package models

import "time"

// SessionContext is the per-customer conversational state persisted between turns.
type SessionContext struct {
	SessionID          string  `json:"sessionId"`
	CustomerID         string  `json:"customerId"`
	LanguageCode       string  `json:"languageCode,omitempty"`
	LanguageConfidence float64 `json:"languageConfidence,omitempty"`
	Timezone           string  `json:"timezone,omitempty"`

	LastResolvedIntents   []Intent     `json:"lastResolvedIntents,omitempty"`
	LastResolvedTimeRange *TimeRange   `json:"lastResolvedTimeRange,omitempty"`
	LastSelectedEntities  *EntityHints `json:"lastSelectedEntities,omitempty"`

	// ClarificationState is owned by the clarification coordinator.
	ClarificationState    *ClarificationState `json:"clarificationState,omitempty"`
	AwaitingClarification bool                `json:"awaitingClarification"`

	Defaults              *SessionDefaults      `json:"defaults,omitempty"`
	ConversationSummaries []ConversationSummary `json:"conversationSummaries,omitempty"`

	CreatedAt      time.Time `json:"createdAt"`
	LastActivityAt time.Time `json:"lastActivityAt"`
	Version        int64     `json:"version"`
}

// ClarificationState is the single open question of a session.
type ClarificationState struct {
	Question             string                 `json:"question"`
	Reason               string                 `json:"reason"`
	ExpectedAnswerType   string                 `json:"expectedAnswerType"`
	ClarificationContext map[string]interface{} `json:"clarificationContext,omitempty"`
	AskedAt              time.Time              `json:"askedAt"`
}

// SessionDefaults are presentation defaults initialised once per session.
type SessionDefaults struct {
	TransactionStatus  string `json:"transactionStatus"`
	CurrencyPreference string `json:"currencyPreference"`
	PagingPolicy       string `json:"pagingPolicy"`
	PageSize           int    `json:"pageSize"`
}

// DefaultSessionDefaults returns the fixed defaults applied to new sessions.
func DefaultSessionDefaults() *SessionDefaults {
	return &SessionDefaults{
		TransactionStatus:  "BOOKED",
		CurrencyPreference: "ACCOUNT",
		PagingPolicy:       "LATEST_FIRST",
		PageSize:           20,
	}
}

// ConversationSummary is one (user message, response summary) pair of the rolling log.
type ConversationSummary struct {
	UserMessage     string    `json:"userMessage"`
	ResponseSummary string    `json:"responseSummary"`
	CreatedAt       time.Time `json:"createdAt"`
}

// NewSessionContext creates an empty session for customerID.
func NewSessionContext(sessionID, customerID, timezone string, now time.Time) *SessionContext {
	return &SessionContext{
		SessionID:      sessionID,
		CustomerID:     customerID,
		Timezone:       timezone,
		Defaults:       DefaultSessionDefaults(),
		CreatedAt:      now,
		LastActivityAt: now,
	}
}

// IsIdle reports whether the session has been inactive for longer than ttl.
func (s *SessionContext) IsIdle(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && !s.LastActivityAt.IsZero() && now.Sub(s.LastActivityAt) > ttl
}

// ClearCarriedContext drops follow-up context after an idle period. Language,
// timezone, defaults and summaries survive.
func (s *SessionContext) ClearCarriedContext() {
	s.LastResolvedIntents = nil
	s.LastResolvedTimeRange = nil
	s.LastSelectedEntities = nil
	s.ClarificationState = nil
	s.AwaitingClarification = false
}

// EnsureDefaults initialises Defaults once.
func (s *SessionContext) EnsureDefaults() {
	if s.Defaults == nil {
		s.Defaults = DefaultSessionDefaults()
	}
}

// SetLanguageOnce stores the detected language only if none is stored yet.
func (s *SessionContext) SetLanguageOnce(code string, confidence float64) bool {
	if s.LanguageCode != "" || code == "" {
		return false
	}
	s.LanguageCode = code
	s.LanguageConfidence = confidence
	return true
}
