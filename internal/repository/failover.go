package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"sparkclean/internal/domain"
	"sparkclean/internal/models"

	"github.com/rs/zerolog"
)

const recheckInterval = time.Minute

// FailoverSessionStore uses the primary store (redis) until it errors, then
// serves from the fallback and retries the primary once a minute.
type FailoverSessionStore struct {
	primary   domain.SessionStore
	fallback  domain.SessionStore
	logger    *zerolog.Logger
	mu        sync.Mutex
	isDown    bool
	lastCheck time.Time
}

func NewFailoverSessionStore(primary, fallback domain.SessionStore, logger *zerolog.Logger) *FailoverSessionStore {
	return &FailoverSessionStore{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

// usePrimary reports whether the primary should be tried now.
func (r *FailoverSessionStore) usePrimary() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.isDown || time.Since(r.lastCheck) > recheckInterval
}

func (r *FailoverSessionStore) markDown(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.isDown {
		r.logger.Error().Err(err).Msg("Primary session store failed, falling back to memory")
	}
	r.isDown = true
	r.lastCheck = time.Now()
}

func (r *FailoverSessionStore) markUp() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.isDown {
		r.logger.Info().Msg("Primary session store recovered")
	}
	r.isDown = false
}

// IsDegraded reports whether calls currently go to the fallback.
func (r *FailoverSessionStore) IsDegraded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.isDown
}

func (r *FailoverSessionStore) StoreSession(ctx context.Context, session *models.Session) error {
	if r.usePrimary() {
		err := r.primary.StoreSession(ctx, session)
		if err == nil {
			r.markUp()
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.StoreSession(ctx, session)
}

func (r *FailoverSessionStore) GetSession(ctx context.Context, id string) (*models.Session, error) {
	if r.usePrimary() {
		s, err := r.primary.GetSession(ctx, id)
		if err == nil || errors.Is(err, ErrSessionNotFound) {
			r.markUp()
			if err == nil {
				return s, nil
			}
			// Sessions written while degraded live in the fallback.
			return r.fallback.GetSession(ctx, id)
		}
		r.markDown(err)
	}
	return r.fallback.GetSession(ctx, id)
}

func (r *FailoverSessionStore) RevokeSession(ctx context.Context, id string) error {
	// Revoke everywhere so a session cannot survive in either store.
	fbErr := r.fallback.RevokeSession(ctx, id)
	if r.usePrimary() {
		if err := r.primary.RevokeSession(ctx, id); err != nil {
			r.markDown(err)
		} else {
			r.markUp()
		}
	}
	return fbErr
}

func (r *FailoverSessionStore) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.usePrimary() {
		allowed, err := r.primary.CheckRateLimit(ctx, key, limit, window)
		if err == nil {
			r.markUp()
			return allowed, nil
		}
		r.markDown(err)
	}
	return r.fallback.CheckRateLimit(ctx, key, limit, window)
}
