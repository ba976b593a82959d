package ceremony

import (
	"errors"
	"time"

	"github.com/aidarkhanov/nanoid/v2"
	cmap "github.com/orcaman/concurrent-map/v2"
)

const (
	SessionTTL           = 5 * time.Minute
	sessionCleanInterval = time.Minute
	sessionIDLength      = 21
	minChallengeLength   = 16
)

var (
	ErrSessionNotFound  = errors.New("ceremony: session not found, expired or already consumed")
	ErrChallengeTooWeak = errors.New("ceremony: challenge carries less than 16 bytes of entropy")
)

type Kind string

const (
	KindRegistration   Kind = "registration"
	KindAuthentication Kind = "authentication"
)

type Session struct {
	ID        string
	Subject   string
	Kind      Kind
	Challenge []byte
	CreatedAt time.Time
	ExpiresAt time.Time
}

func (s *Session) Expires() time.Time {
	return s.ExpiresAt
}

// SessionStore maps session IDs to in-flight challenges. Two maps:
// byID holds the sessions, bySubject indexes the live session per
// (subject, kind) so a new Create can knock out the old one.
type SessionStore struct {
	byID      cmap.ConcurrentMap[string, *Session]
	bySubject cmap.ConcurrentMap[string, string]
	ttl       time.Duration
	now       func() time.Time
	stop      chan struct{}
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = SessionTTL
	}
	store := &SessionStore{
		byID:      cmap.New[*Session](),
		bySubject: cmap.New[string](),
		ttl:       ttl,
		now:       time.Now,
		stop:      make(chan struct{}),
	}
	store.startCleaner(sessionCleanInterval)
	return store
}

func subjectKey(subject string, kind Kind) string {
	return string(kind) + "|" + subject
}

// Create opens a session for (subject, kind), superseding any live one
// for the same pair: the previous session's ID stops being consumable
// the moment the new one exists.
func (store *SessionStore) Create(subject string, kind Kind, challenge []byte) (*Session, error) {
	if len(challenge) < minChallengeLength {
		return nil, ErrChallengeTooWeak
	}

	id, err := nanoid.GenerateString(nanoid.DefaultAlphabet, sessionIDLength)
	if err != nil {
		return nil, err
	}

	now := store.now()
	session := &Session{
		ID:        id,
		Subject:   subject,
		Kind:      kind,
		Challenge: challenge,
		CreatedAt: now,
		ExpiresAt: now.Add(store.ttl),
	}

	key := subjectKey(subject, kind)
	store.byID.Set(id, session)
	store.bySubject.Upsert(key, id, func(exist bool, prevID, newID string) string {
		if exist && prevID != newID {
			store.byID.Remove(prevID)
		}
		return newID
	})
	return session, nil
}

// Consume destructively retrieves a session. A second Consume for the
// same ID, or one past ExpiresAt, returns ErrSessionNotFound; replayed
// challenges die here.
func (store *SessionStore) Consume(id string) (*Session, error) {
	var session *Session
	store.byID.RemoveCb(id, func(key string, v *Session, exists bool) bool {
		if exists {
			session = v
		}
		return true
	})
	if session == nil {
		return nil, ErrSessionNotFound
	}

	store.bySubject.RemoveCb(subjectKey(session.Subject, session.Kind), func(key, liveID string, exists bool) bool {
		return exists && liveID == id
	})

	if store.now().After(session.ExpiresAt) {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Invalidate drops a session without consuming it, for callers that
// abandon a ceremony explicitly instead of letting the TTL run out.
func (store *SessionStore) Invalidate(id string) {
	session, ok := store.byID.Get(id)
	if !ok {
		return
	}
	store.byID.Remove(id)
	store.bySubject.RemoveCb(subjectKey(session.Subject, session.Kind), func(key, liveID string, exists bool) bool {
		return exists && liveID == id
	})
}

// SweepExpired removes every session past its deadline.
func (store *SessionStore) SweepExpired() {
	now := store.now()
	for entry := range store.byID.IterBuffered() {
		if now.After(entry.Val.ExpiresAt) {
			store.Invalidate(entry.Key)
		}
	}
}

func (store *SessionStore) startCleaner(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				store.SweepExpired()
			case <-store.stop:
				return
			}
		}
	}()
}

// Close stops the background sweeper.
func (store *SessionStore) Close() {
	close(store.stop)
}
