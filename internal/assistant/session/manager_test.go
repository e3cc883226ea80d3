package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	apperrors "banking-assistant/internal/common/errors"
	"banking-assistant/internal/common/logger"
	"banking-assistant/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func setupManager(t *testing.T, opts Options) (*Manager, *miniredis.Miniredis, *fakeClock) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	clock := &fakeClock{now: time.Date(2025, 12, 13, 10, 0, 0, 0, time.UTC)}
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = "assistant"
	}
	if opts.IdleTTL == 0 {
		opts.IdleTTL = 30 * time.Minute
	}
	if opts.RetentionTTL == 0 {
		opts.RetentionTTL = 24 * time.Hour
	}
	return NewManager(rdb, opts, logger.NewTestLogger(t), WithClock(clock.Now)), mr, clock
}

// ==========================
// Load
// ==========================

func TestLoad_NewSession(t *testing.T) {
	m, _, clock := setupManager(t, Options{DefaultTimezone: "Europe/Berlin"})

	s, err := m.Load(context.Background(), "cust-1")
	require.NoError(t, err)

	assert.NotEmpty(t, s.SessionID)
	assert.Equal(t, "cust-1", s.CustomerID)
	assert.Equal(t, "Europe/Berlin", s.Timezone)
	assert.Equal(t, models.DefaultSessionDefaults(), s.Defaults)
	assert.Equal(t, clock.Now(), s.CreatedAt)
	assert.Zero(t, s.Version)
}

func TestLoad_MissingCustomerID(t *testing.T) {
	m, _, _ := setupManager(t, Options{})

	_, err := m.Load(context.Background(), "")
	assert.Equal(t, apperrors.ErrCodeMissingCustomerID, apperrors.CodeOf(err))
}

func TestLoad_IdleSessionLosesCarriedContext(t *testing.T) {
	m, _, clock := setupManager(t, Options{})
	ctx := context.Background()

	_, err := m.Update(ctx, "cust-1", func(s *models.SessionContext) error {
		s.LanguageCode = "de"
		s.Timezone = "Europe/Berlin"
		s.LastResolvedIntents = []models.Intent{{Domain: models.DomainLoans, Metric: models.MetricBalance}}
		s.LastResolvedTimeRange = &models.TimeRange{FromDate: "2025-12-01", ToDate: "2025-12-13"}
		s.LastSelectedEntities = &models.EntityHints{AccountIDs: []string{"acc-1"}}
		s.ClarificationState = &models.ClarificationState{Question: "Which account?"}
		s.AwaitingClarification = true
		return nil
	})
	require.NoError(t, err)

	tests := []struct {
		name    string
		advance time.Duration
		cleared bool
	}{
		{"within ttl", 29 * time.Minute, false},
		{"beyond ttl", 2 * time.Minute, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock.Advance(tt.advance)
			s, err := m.Load(ctx, "cust-1")
			require.NoError(t, err)

			assert.Equal(t, "de", s.LanguageCode)
			assert.Equal(t, "Europe/Berlin", s.Timezone)
			if tt.cleared {
				assert.Nil(t, s.LastResolvedIntents)
				assert.Nil(t, s.LastResolvedTimeRange)
				assert.Nil(t, s.LastSelectedEntities)
				assert.Nil(t, s.ClarificationState)
				assert.False(t, s.AwaitingClarification)
			} else {
				assert.Len(t, s.LastResolvedIntents, 1)
				assert.NotNil(t, s.ClarificationState)
			}
		})
	}
}

func TestLoad_UnreadableSessionStartsFresh(t *testing.T) {
	m, mr, _ := setupManager(t, Options{})
	require.NoError(t, mr.Set(m.Key("cust-1"), "{not json"))

	s, err := m.Load(context.Background(), "cust-1")
	require.NoError(t, err)
	assert.Equal(t, "cust-1", s.CustomerID)
	assert.Zero(t, s.Version)
}

func TestLoad_StoreError(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	m := NewManager(rdb, Options{KeyPrefix: "assistant"}, logger.NewNoOpLogger())

	mock.ExpectGet("assistant:session:cust-1").SetErr(errors.New("connection refused"))

	_, err := m.Load(context.Background(), "cust-1")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeSessionStoreFailed, apperrors.CodeOf(err))
	assert.ErrorIs(t, err, ErrSessionStore)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Update
// ==========================

func TestUpdate_PersistsWithRetentionTTL(t *testing.T) {
	m, mr, clock := setupManager(t, Options{RetentionTTL: 2 * time.Hour})
	ctx := context.Background()

	clock.Advance(time.Minute)
	saved, err := m.Update(ctx, "cust-1", func(s *models.SessionContext) error {
		s.SetLanguageOnce("fr", 0.93)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), saved.Version)
	assert.Equal(t, clock.Now(), saved.LastActivityAt)

	key := m.Key("cust-1")
	assert.Equal(t, "assistant:session:cust-1", key)
	assert.Equal(t, 2*time.Hour, mr.TTL(key))

	raw, err := mr.Get(key)
	require.NoError(t, err)
	var stored models.SessionContext
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	assert.Equal(t, "fr", stored.LanguageCode)
	assert.Equal(t, saved.SessionID, stored.SessionID)

	again, err := m.Update(ctx, "cust-1", func(s *models.SessionContext) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, int64(2), again.Version)
	assert.Equal(t, saved.SessionID, again.SessionID)
}

func TestUpdate_MutationErrorIsReturnedUnchanged(t *testing.T) {
	m, mr, _ := setupManager(t, Options{})
	boom := errors.New("boom")

	_, err := m.Update(context.Background(), "cust-1", func(s *models.SessionContext) error { return boom })
	assert.Same(t, boom, err)
	assert.False(t, mr.Exists(m.Key("cust-1")))
}

func TestUpdate_RetriesAfterConcurrentWrite(t *testing.T) {
	m, mr, _ := setupManager(t, Options{})
	ctx := context.Background()

	other := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer other.Close()

	attempts := 0
	saved, err := m.Update(ctx, "cust-1", func(s *models.SessionContext) error {
		attempts++
		if attempts == 1 {
			require.NoError(t, other.Set(ctx, m.Key("cust-1"), `{"customerId":"cust-1","version":7}`, 0).Err())
		}
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 2, attempts)
	assert.Equal(t, int64(8), saved.Version)
}

func TestUpdate_GivesUpAfterMaxAttempts(t *testing.T) {
	m, mr, _ := setupManager(t, Options{MaxAttempts: 3})
	ctx := context.Background()

	other := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer other.Close()

	attempts := 0
	_, err := m.Update(ctx, "cust-1", func(s *models.SessionContext) error {
		attempts++
		return other.Set(ctx, m.Key("cust-1"), `{"customerId":"cust-1"}`, 0).Err()
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeSessionConflict, apperrors.CodeOf(err))
	assert.Equal(t, 3, attempts)
}

func TestUpdate_SerializesSameCustomer(t *testing.T) {
	m, _, _ := setupManager(t, Options{})
	ctx := context.Background()

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Update(ctx, "cust-1", func(s *models.SessionContext) error {
				s.ConversationSummaries = append(s.ConversationSummaries, models.ConversationSummary{UserMessage: "hi"})
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	s, err := m.Load(ctx, "cust-1")
	require.NoError(t, err)
	assert.Equal(t, int64(writers), s.Version)
	assert.Len(t, s.ConversationSummaries, writers)
	assert.Zero(t, m.locks.size())
}

func TestUpdate_CompetingManagersDoNotLoseWrites(t *testing.T) {
	mr := miniredis.RunT(t)
	newManager := func() *Manager {
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = rdb.Close() })
		return NewManager(rdb, Options{KeyPrefix: "assistant", MaxAttempts: 100}, logger.NewNoOpLogger())
	}
	replicas := []*Manager{newManager(), newManager()}
	ctx := context.Background()

	const perReplica = 10
	var wg sync.WaitGroup
	for _, m := range replicas {
		for i := 0; i < perReplica; i++ {
			wg.Add(1)
			go func(m *Manager) {
				defer wg.Done()
				_, err := m.Update(ctx, "cust-1", func(s *models.SessionContext) error { return nil })
				assert.NoError(t, err)
			}(m)
		}
	}
	wg.Wait()

	s, err := replicas[0].Load(ctx, "cust-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2*perReplica), s.Version)
}

func TestDelete(t *testing.T) {
	m, mr, _ := setupManager(t, Options{})
	ctx := context.Background()

	_, err := m.Update(ctx, "cust-1", func(s *models.SessionContext) error { return nil })
	require.NoError(t, err)
	require.NoError(t, m.Delete(ctx, "cust-1"))
	assert.False(t, mr.Exists(m.Key("cust-1")))
}
