// internal/assistant/clarification/coordinator.go
package clarification

import (
	"context"
	"time"

	"banking-assistant/internal/assistant/session"
	"banking-assistant/internal/common/logger"
	"banking-assistant/internal/common/metrics"
	"banking-assistant/internal/models"
)

// SessionUpdater persists a mutation against the latest stored session.
type SessionUpdater interface {
	Update(ctx context.Context, customerID string, fn session.Mutation) (*models.SessionContext, error)
}

// Question is the terminal clarification reply of a turn.
type Question struct {
	Reason             Reason    `json:"reason"`
	Text               string    `json:"text"`
	ExpectedAnswerType string    `json:"expectedAnswerType"`
	AskedAt            time.Time `json:"askedAt"`
}

// Coordinator is the only component that sets or clears a session's open question.
type Coordinator struct {
	sessions         SessionUpdater
	fallbackDomain   models.Domain
	mainAccountAlias string
	now              func() time.Time
	logger           logger.Logger
}

type Option func(*Coordinator)

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithFallbacks overrides the fallback domain and the conventional main account alias.
func WithFallbacks(domain models.Domain, mainAccountAlias string) Option {
	return func(c *Coordinator) {
		if domain.IsBanking() {
			c.fallbackDomain = domain
		}
		if mainAccountAlias != "" {
			c.mainAccountAlias = mainAccountAlias
		}
	}
}

func NewCoordinator(sessions SessionUpdater, log logger.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		sessions:         sessions,
		fallbackDomain:   models.DomainCurrentAccounts,
		mainAccountAlias: "main",
		now:              time.Now,
		logger:           logger.ForComponent(log, "clarification"),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// AskClarifier records one open question for the customer, replacing any previous
// one, and returns it as the turn's terminal reply.
func (c *Coordinator) AskClarifier(ctx context.Context, customerID string, reason Reason, clarificationContext map[string]interface{}) (*Question, error) {
	text, expected := QuestionFor(reason)
	q := &Question{
		Reason:             reason,
		Text:               text,
		ExpectedAnswerType: expected,
		AskedAt:            c.now(),
	}

	_, err := c.sessions.Update(ctx, customerID, func(s *models.SessionContext) error {
		s.ClarificationState = &models.ClarificationState{
			Question:             q.Text,
			Reason:               string(q.Reason),
			ExpectedAnswerType:   q.ExpectedAnswerType,
			ClarificationContext: copyContext(clarificationContext),
			AskedAt:              q.AskedAt,
		}
		s.AwaitingClarification = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.ClarificationsAsked.WithLabelValues(string(reason)).Inc()
	c.logger.Info("clarification asked", map[string]interface{}{
		"customerId": customerID,
		"reason":     reason,
	})
	return q, nil
}

// ApplyClarification turns the stored question plus the customer's answer into
// grounding for the intent resolver and clears the question whatever the answer
// looks like. A session flagged as awaiting without a stored question is healed and
// yields nil grounding. s is updated in place to match what was persisted; a store
// failure is returned alongside the grounding.
func (c *Coordinator) ApplyClarification(ctx context.Context, s *models.SessionContext, answer string) (*models.ClarificationGrounding, error) {
	if s == nil || (!s.AwaitingClarification && s.ClarificationState == nil) {
		return nil, nil
	}

	var grounding *models.ClarificationGrounding
	if st := s.ClarificationState; st != nil {
		grounding = &models.ClarificationGrounding{
			Question:             st.Question,
			ExpectedAnswerType:   st.ExpectedAnswerType,
			Answer:               answer,
			ClarificationContext: copyContext(st.ClarificationContext),
			AskedAt:              st.AskedAt,
		}
	} else {
		c.logger.Warn("awaiting clarification without a stored question, clearing flag", map[string]interface{}{
			"customerId": s.CustomerID,
		})
	}

	clearState := func(sc *models.SessionContext) error {
		sc.ClarificationState = nil
		sc.AwaitingClarification = false
		return nil
	}
	_ = clearState(s)

	_, err := c.sessions.Update(ctx, s.CustomerID, clearState)
	if err != nil {
		c.logger.Error("failed to persist cleared clarification", map[string]interface{}{
			"customerId": s.CustomerID,
			"error":      err,
		})
	}
	return grounding, err
}

// ShouldAsk reports whether an ambiguous resolution may produce a new question.
// A turn that was itself grounded by an answer never asks again.
func ShouldAsk(res *models.IntentResolution, grounded bool) bool {
	return res != nil && res.NeedsClarification && !grounded
}

func copyContext(in map[string]interface{}) map[string]interface{} {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
