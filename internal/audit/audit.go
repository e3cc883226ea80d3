// internal/audit/audit.go
package audit

import (
	"context"
	"time"

	apperrors "banking-assistant/internal/common/errors"
	"banking-assistant/internal/common/logger"
)

// TurnRecord describes one processed message. It never carries balances or
// transaction data.
type TurnRecord struct {
	CorrelationID string    `json:"correlationId"`
	CustomerID    string    `json:"customerId"`
	SessionID     string    `json:"sessionId,omitempty"`
	Exit          string    `json:"exit"`
	LanguageCode  string    `json:"languageCode,omitempty"`
	Domains       []string  `json:"domains,omitempty"`
	IntentCount   int       `json:"intentCount"`
	FromDate      string    `json:"fromDate,omitempty"`
	ToDate        string    `json:"toDate,omitempty"`
	ErrorCode     string    `json:"errorCode,omitempty"`
	DurationMs    int64     `json:"durationMs"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Recorder persists or publishes turn records.
type Recorder interface {
	Record(ctx context.Context, rec TurnRecord) error
}

// Fanout sends each record to every sink. Failures are logged and never returned,
// so auditing cannot fail a turn.
type Fanout struct {
	sinks  map[string]Recorder
	logger logger.Logger
}

func NewFanout(log logger.Logger) *Fanout {
	return &Fanout{sinks: map[string]Recorder{}, logger: logger.ForComponent(log, "audit")}
}

// Add registers a named sink.
func (f *Fanout) Add(name string, r Recorder) *Fanout {
	if r != nil {
		f.sinks[name] = r
	}
	return f
}

// Len returns the number of registered sinks.
func (f *Fanout) Len() int { return len(f.sinks) }

func (f *Fanout) Record(ctx context.Context, rec TurnRecord) error {
	for name, sink := range f.sinks {
		if err := sink.Record(ctx, rec); err != nil {
			f.logger.Warn("audit sink failed", map[string]interface{}{
				"sink":          name,
				"correlationId": rec.CorrelationID,
				"error":         apperrors.NewAuditWriteFailedError(name, err),
			})
		}
	}
	return nil
}
