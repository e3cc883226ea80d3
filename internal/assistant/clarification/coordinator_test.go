package clarification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"banking-assistant/internal/assistant/session"
	"banking-assistant/internal/common/logger"
	"banking-assistant/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryUpdater is an in-process stand-in for the Redis session manager.
type memoryUpdater struct {
	mu       sync.Mutex
	sessions map[string]*models.SessionContext
	err      error
}

func newMemoryUpdater() *memoryUpdater {
	return &memoryUpdater{sessions: map[string]*models.SessionContext{}}
}

func (u *memoryUpdater) Update(ctx context.Context, customerID string, fn session.Mutation) (*models.SessionContext, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.err != nil {
		return nil, u.err
	}
	s, ok := u.sessions[customerID]
	if !ok {
		s = models.NewSessionContext("sess-"+customerID, customerID, "UTC", time.Now())
	}
	cp := *s
	if err := fn(&cp); err != nil {
		return nil, err
	}
	cp.Version++
	u.sessions[customerID] = &cp
	return &cp, nil
}

func (u *memoryUpdater) get(customerID string) *models.SessionContext {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.sessions[customerID]
}

var askedAt = time.Date(2025, 12, 13, 9, 30, 0, 0, time.UTC)

func newTestCoordinator(t *testing.T, u SessionUpdater) *Coordinator {
	return NewCoordinator(u, logger.NewTestLogger(t), WithClock(func() time.Time { return askedAt }))
}

// ==========================
// Ask / apply round trip
// ==========================

func TestAskClarifier_RecordsOneOpenQuestion(t *testing.T) {
	u := newMemoryUpdater()
	c := newTestCoordinator(t, u)
	ctx := context.Background()

	q, err := c.AskClarifier(ctx, "cust-1", ReasonDomain, nil)
	require.NoError(t, err)
	assert.Equal(t, AnswerDomain, q.ExpectedAnswerType)

	q, err = c.AskClarifier(ctx, "cust-1", ReasonTimeRange, map[string]interface{}{"domain": "LOANS"})
	require.NoError(t, err)

	s := u.get("cust-1")
	require.NotNil(t, s.ClarificationState)
	assert.True(t, s.AwaitingClarification)
	assert.Equal(t, q.Text, s.ClarificationState.Question)
	assert.Equal(t, string(ReasonTimeRange), s.ClarificationState.Reason)
	assert.Equal(t, AnswerDateRange, s.ClarificationState.ExpectedAnswerType)
	assert.Equal(t, "LOANS", s.ClarificationState.ClarificationContext["domain"])
	assert.Equal(t, askedAt, s.ClarificationState.AskedAt)
}

func TestApplyClarification_ClearsRegardlessOfAnswer(t *testing.T) {
	answers := []string{"last month", "", "banana", "???"}

	for _, answer := range answers {
		t.Run(answer, func(t *testing.T) {
			u := newMemoryUpdater()
			c := newTestCoordinator(t, u)
			ctx := context.Background()

			_, err := c.AskClarifier(ctx, "cust-1", ReasonTimeRange, map[string]interface{}{"metric": "sum"})
			require.NoError(t, err)

			s := u.get("cust-1")
			grounding, err := c.ApplyClarification(ctx, s, answer)
			require.NoError(t, err)

			require.NotNil(t, grounding)
			assert.Equal(t, answer, grounding.Answer)
			assert.Equal(t, AnswerDateRange, grounding.ExpectedAnswerType)
			assert.Equal(t, "sum", grounding.ClarificationContext["metric"])
			assert.Equal(t, askedAt, grounding.AskedAt)

			stored := u.get("cust-1")
			assert.Nil(t, stored.ClarificationState)
			assert.False(t, stored.AwaitingClarification)
			assert.Nil(t, s.ClarificationState)
			assert.False(t, s.AwaitingClarification)
		})
	}
}

func TestApplyClarification_SelfHealsMissingQuestion(t *testing.T) {
	u := newMemoryUpdater()
	c := newTestCoordinator(t, u)

	s := models.NewSessionContext("s", "cust-1", "UTC", askedAt)
	s.AwaitingClarification = true

	grounding, err := c.ApplyClarification(context.Background(), s, "anything")
	require.NoError(t, err)
	assert.Nil(t, grounding)
	assert.False(t, s.AwaitingClarification)
	assert.False(t, u.get("cust-1").AwaitingClarification)
}

func TestApplyClarification_NothingPending(t *testing.T) {
	u := newMemoryUpdater()
	c := newTestCoordinator(t, u)

	grounding, err := c.ApplyClarification(context.Background(), models.NewSessionContext("s", "cust-1", "UTC", askedAt), "hi")
	assert.NoError(t, err)
	assert.Nil(t, grounding)
	assert.Nil(t, u.get("cust-1"))
}

func TestApplyClarification_StoreFailureStillClearsInMemory(t *testing.T) {
	u := newMemoryUpdater()
	c := newTestCoordinator(t, u)
	_, err := c.AskClarifier(context.Background(), "cust-1", ReasonMetric, nil)
	require.NoError(t, err)

	s := u.get("cust-1")
	u.err = errors.New("redis down")

	grounding, err := c.ApplyClarification(context.Background(), s, "the balance")
	assert.Error(t, err)
	require.NotNil(t, grounding)
	assert.Nil(t, s.ClarificationState)
}

func TestAskClarifier_StoreFailure(t *testing.T) {
	u := newMemoryUpdater()
	u.err = errors.New("redis down")
	c := newTestCoordinator(t, u)

	q, err := c.AskClarifier(context.Background(), "cust-1", ReasonDomain, nil)
	assert.Error(t, err)
	assert.Nil(t, q)
}

func TestShouldAsk(t *testing.T) {
	ambiguous := &models.IntentResolution{NeedsClarification: true}

	assert.True(t, ShouldAsk(ambiguous, false))
	assert.False(t, ShouldAsk(ambiguous, true))
	assert.False(t, ShouldAsk(&models.IntentResolution{}, false))
	assert.False(t, ShouldAsk(nil, false))
}

// ==========================
// Questions
// ==========================

func TestQuestionFor_EveryReason(t *testing.T) {
	seen := map[string]bool{}
	for _, r := range []Reason{ReasonDomain, ReasonMetric, ReasonTimeRange, ReasonAccountSelection, ReasonIntentExtractionFailed, ReasonOther} {
		q, expected := QuestionFor(r)
		assert.NotEmpty(t, q, r)
		assert.NotEmpty(t, expected, r)
		assert.False(t, seen[q], "question reused for %s", r)
		seen[q] = true
	}

	q, _ := QuestionFor("unheard-of")
	other, _ := QuestionFor(ReasonOther)
	assert.Equal(t, other, q)
}

func TestParseReason(t *testing.T) {
	tests := []struct {
		in   string
		want Reason
	}{
		{"domain", ReasonDomain},
		{" TIME_RANGE ", ReasonTimeRange},
		{"period", ReasonTimeRange},
		{"account", ReasonAccountSelection},
		{"intent_extraction_failed", ReasonIntentExtractionFailed},
		{"", ReasonOther},
		{"weather", ReasonOther},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseReason(tt.in), tt.in)
	}
}
