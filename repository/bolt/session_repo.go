package bolt

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/fastygo/todo/domain"
	"github.com/fastygo/todo/internal/infrastructure/boltdb"
)

// SessionRepository stores sessions in BoltDB. Bolt has no key expiry, so
// expired sessions are hidden on read and removed by Sweep.
type SessionRepository struct {
	store *boltdb.Store
	ttl   time.Duration
	now   func() time.Time
}

// NewSessionRepository creates a BoltDB-backed session repository.
func NewSessionRepository(store *boltdb.Store, ttl time.Duration) *SessionRepository {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionRepository{store: store, ttl: ttl, now: time.Now}
}

func (r *SessionRepository) Get(ctx context.Context, id string) (*domain.Session, error) {
	var session domain.Session
	err := r.store.View(func(tx *bbolt.Tx) error {
		return boltdb.GetJSON(tx.Bucket([]byte(bucketSessions)), id, &session)
	})
	if err != nil {
		if errors.Is(err, boltdb.ErrNotFound) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}
	if session.IsExpired(r.now()) {
		return nil, domain.ErrSessionNotFound
	}
	return &session, nil
}

func (r *SessionRepository) Save(ctx context.Context, session *domain.Session) error {
	if session == nil || session.ID == "" {
		return domain.ErrInvalidPayload
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = r.now()
	}
	if session.ExpiresAt.Before(session.CreatedAt) {
		session.ExpiresAt = session.CreatedAt.Add(r.ttl)
	}
	return r.store.Update(func(tx *bbolt.Tx) error {
		return boltdb.PutJSON(tx.Bucket([]byte(bucketSessions)), session.ID, session)
	})
}

func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	return r.store.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketSessions)).Delete([]byte(id))
	})
}

// Sweep deletes every session expired at reference and returns how many were removed.
func (r *SessionRepository) Sweep(reference time.Time) (int, error) {
	removed := 0
	err := r.store.Update(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(bucketSessions)).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var session domain.Session
			if err := json.Unmarshal(v, &session); err != nil || session.IsExpired(reference) {
				if err := c.Delete(); err != nil {
					return err
				}
				removed++
			}
		}
		return nil
	})
	return removed, err
}
