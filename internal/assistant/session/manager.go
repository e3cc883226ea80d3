// internal/assistant/session/manager.go
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	apperrors "banking-assistant/internal/common/errors"
	"banking-assistant/internal/common/logger"
	"banking-assistant/internal/common/metrics"
	"banking-assistant/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultMaxAttempts = 5
	keyNamespace       = "session"
)

var ErrSessionStore = errors.New("SESSION_STORE_FAILED")

// Options configure the session store contract.
type Options struct {
	KeyPrefix       string
	IdleTTL         time.Duration
	RetentionTTL    time.Duration
	DefaultTimezone string
	MaxAttempts     int
}

// Mutation changes a session in place. It may run more than once when a concurrent
// writer wins the race, each time against a freshly loaded copy.
type Mutation func(s *models.SessionContext) error

// Manager loads and persists SessionContext values in Redis. Writes for the same
// customer are serialized by an in-process keyed lock and a WATCH/MULTI transaction
// so concurrent replicas cannot overwrite each other.
type Manager struct {
	rdb    *redis.Client
	opts   Options
	locks  *keyedMutex
	now    func() time.Time
	logger logger.Logger
}

type ManagerOption func(*Manager)

// WithClock overrides time.Now, mostly for tests.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

func NewManager(rdb *redis.Client, opts Options, log logger.Logger, options ...ManagerOption) *Manager {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	m := &Manager{
		rdb:    rdb,
		opts:   opts,
		locks:  newKeyedMutex(),
		now:    time.Now,
		logger: logger.ForComponent(log, "session"),
	}
	for _, o := range options {
		o(m)
	}
	return m
}

// Key returns the Redis key of a customer's session.
func (m *Manager) Key(customerID string) string {
	if m.opts.KeyPrefix == "" {
		return keyNamespace + ":" + customerID
	}
	return m.opts.KeyPrefix + ":" + keyNamespace + ":" + customerID
}

// Load returns the customer's session, creating an unsaved one when none exists.
// A session idle for longer than the idle TTL comes back with its carried context
// cleared.
func (m *Manager) Load(ctx context.Context, customerID string) (*models.SessionContext, error) {
	if customerID == "" {
		return nil, apperrors.NewMissingCustomerIDError()
	}
	raw, err := m.rdb.Get(ctx, m.Key(customerID)).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, apperrors.NewSessionStoreFailedError("load", fmt.Errorf("%w: %v", ErrSessionStore, err))
	}
	return m.prepare(customerID, raw), nil
}

// Update applies fn to the latest stored session and persists the result with the
// retention TTL. The stored version is incremented on every successful write.
func (m *Manager) Update(ctx context.Context, customerID string, fn Mutation) (*models.SessionContext, error) {
	if customerID == "" {
		return nil, apperrors.NewMissingCustomerIDError()
	}
	key := m.Key(customerID)

	unlock := m.locks.Lock(key)
	defer unlock()

	var saved *models.SessionContext
	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}

		s := m.prepare(customerID, raw)
		if err := fn(s); err != nil {
			return &mutationError{err: err}
		}
		s.Version++
		s.LastActivityAt = m.now()

		data, err := json.Marshal(s)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, m.opts.RetentionTTL)
			return nil
		})
		if err == nil {
			saved = s
		}
		return err
	}

	for attempt := 1; attempt <= m.opts.MaxAttempts; attempt++ {
		err := m.rdb.Watch(ctx, txf, key)
		if err == nil {
			return saved, nil
		}

		var mErr *mutationError
		if errors.As(err, &mErr) {
			return nil, mErr.err
		}
		if errors.Is(err, redis.TxFailedErr) {
			metrics.SessionConflicts.Inc()
			m.logger.Warn("session changed concurrently, retrying", map[string]interface{}{
				"customerId": customerID,
				"attempt":    attempt,
			})
			continue
		}
		return nil, apperrors.NewSessionStoreFailedError("update", fmt.Errorf("%w: %v", ErrSessionStore, err))
	}

	return nil, apperrors.NewSessionConflictError(key, m.opts.MaxAttempts)
}

// Delete removes the customer's session.
func (m *Manager) Delete(ctx context.Context, customerID string) error {
	if err := m.rdb.Del(ctx, m.Key(customerID)).Err(); err != nil {
		return apperrors.NewSessionStoreFailedError("delete", fmt.Errorf("%w: %v", ErrSessionStore, err))
	}
	return nil
}

// prepare decodes a stored session or starts a fresh one, then applies the idle
// rule and one-time defaults.
func (m *Manager) prepare(customerID string, raw []byte) *models.SessionContext {
	now := m.now()

	if len(raw) > 0 {
		var s models.SessionContext
		if err := json.Unmarshal(raw, &s); err != nil {
			m.logger.Warn("discarding unreadable session", map[string]interface{}{
				"customerId": customerID,
				"error":      err,
			})
		} else if s.CustomerID == customerID {
			if s.IsIdle(now, m.opts.IdleTTL) {
				m.logger.Info("session idle, clearing carried context", map[string]interface{}{
					"customerId":     customerID,
					"lastActivityAt": s.LastActivityAt,
				})
				s.ClearCarriedContext()
			}
			s.EnsureDefaults()
			return &s
		} else {
			m.logger.Error("stored session belongs to another customer", map[string]interface{}{
				"customerId": customerID,
			})
		}
	}

	return models.NewSessionContext(uuid.NewString(), customerID, m.opts.DefaultTimezone, now)
}

// mutationError marks errors returned by the caller's Mutation so they are not
// mistaken for store failures.
type mutationError struct {
	err error
}

func (e *mutationError) Error() string { return e.err.Error() }
func (e *mutationError) Unwrap() error { return e.err }
