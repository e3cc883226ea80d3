// internal/assistant/memory/memory.go
package memory

import (
	"strings"
	"time"
	"unicode/utf8"

	"banking-assistant/internal/models"
)

const (
	DefaultCap    = 10
	DefaultWindow = 5

	// maxDigestRunes bounds each stored side of a summary pair.
	maxDigestRunes = 280
)

// Memory keeps the bounded rolling log of conversation summaries on a session.
type Memory struct {
	cap    int
	window int
}

func New(capacity, window int) *Memory {
	if capacity <= 0 {
		capacity = DefaultCap
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if window > capacity {
		window = capacity
	}
	return &Memory{cap: capacity, window: window}
}

// Append adds one (user message, response summary) pair and evicts the oldest
// entries beyond the cap.
func (m *Memory) Append(s *models.SessionContext, userMessage, responseSummary string, now time.Time) {
	s.ConversationSummaries = append(s.ConversationSummaries, models.ConversationSummary{
		UserMessage:     Digest(userMessage),
		ResponseSummary: Digest(responseSummary),
		CreatedAt:       now,
	})
	if over := len(s.ConversationSummaries) - m.cap; over > 0 {
		kept := make([]models.ConversationSummary, m.cap)
		copy(kept, s.ConversationSummaries[over:])
		s.ConversationSummaries = kept
	}
}

// Recent returns a copy of the newest entries, oldest first, bounded by the history
// window handed to text generation.
func (m *Memory) Recent(s *models.SessionContext) []models.ConversationSummary {
	if s == nil || len(s.ConversationSummaries) == 0 {
		return nil
	}
	start := len(s.ConversationSummaries) - m.window
	if start < 0 {
		start = 0
	}
	out := make([]models.ConversationSummary, len(s.ConversationSummaries)-start)
	copy(out, s.ConversationSummaries[start:])
	return out
}

// Cap returns the configured capacity.
func (m *Memory) Cap() int { return m.cap }

// Digest collapses whitespace and truncates text to a short summary.
func Digest(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= maxDigestRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxDigestRunes-1]) + "…"
}
