package ceremony

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func challenge() []byte {
	return []byte("0123456789abcdef0123456789abcdef")
}

func newTestStore(t *testing.T) *SessionStore {
	t.Helper()
	store := NewSessionStore(SessionTTL)
	t.Cleanup(store.Close)
	return store
}

func TestSessionStore_CreateAndConsume(t *testing.T) {
	store := newTestStore(t)

	session, err := store.Create("a@x.com", KindRegistration, challenge())
	require.NoError(t, err)
	require.NotEmpty(t, session.ID)
	assert.Equal(t, SessionTTL, session.ExpiresAt.Sub(session.CreatedAt))

	consumed, err := store.Consume(session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.Challenge, consumed.Challenge)
}

func TestSessionStore_ConsumeIsDestructive(t *testing.T) {
	store := newTestStore(t)

	session, err := store.Create("a@x.com", KindAuthentication, challenge())
	require.NoError(t, err)

	_, err = store.Consume(session.ID)
	require.NoError(t, err)

	// Replay: same ID never resolves twice.
	_, err = store.Consume(session.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionStore_SecondCreateSupersedesFirst(t *testing.T) {
	store := newTestStore(t)

	first, err := store.Create("a@x.com", KindRegistration, challenge())
	require.NoError(t, err)
	second, err := store.Create("a@x.com", KindRegistration, challenge())
	require.NoError(t, err)

	_, err = store.Consume(first.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound, "superseded session must not be consumable")

	_, err = store.Consume(second.ID)
	assert.NoError(t, err)
}

func TestSessionStore_KindsDoNotSupersedeEachOther(t *testing.T) {
	store := newTestStore(t)

	reg, err := store.Create("a@x.com", KindRegistration, challenge())
	require.NoError(t, err)
	auth, err := store.Create("a@x.com", KindAuthentication, challenge())
	require.NoError(t, err)

	_, err = store.Consume(reg.ID)
	assert.NoError(t, err)
	_, err = store.Consume(auth.ID)
	assert.NoError(t, err)
}

func TestSessionStore_SubjectsAreIndependent(t *testing.T) {
	store := newTestStore(t)

	a, err := store.Create("a@x.com", KindRegistration, challenge())
	require.NoError(t, err)
	b, err := store.Create("b@x.com", KindRegistration, challenge())
	require.NoError(t, err)

	_, err = store.Consume(a.ID)
	assert.NoError(t, err)
	_, err = store.Consume(b.ID)
	assert.NoError(t, err)
}

func TestSessionStore_ExpiredSessionNotConsumable(t *testing.T) {
	store := newTestStore(t)

	session, err := store.Create("a@x.com", KindRegistration, challenge())
	require.NoError(t, err)

	store.now = func() time.Time { return time.Now().Add(SessionTTL + time.Second) }

	_, err = store.Consume(session.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionStore_SweepExpired(t *testing.T) {
	store := newTestStore(t)

	session, err := store.Create("a@x.com", KindRegistration, challenge())
	require.NoError(t, err)

	store.now = func() time.Time { return time.Now().Add(SessionTTL + time.Second) }
	store.SweepExpired()

	assert.Equal(t, 0, store.byID.Count())
	_, err = store.Consume(session.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionStore_Invalidate(t *testing.T) {
	store := newTestStore(t)

	session, err := store.Create("a@x.com", KindRegistration, challenge())
	require.NoError(t, err)

	store.Invalidate(session.ID)

	_, err = store.Consume(session.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	// Index entry is gone too: a fresh session is unaffected.
	fresh, err := store.Create("a@x.com", KindRegistration, challenge())
	require.NoError(t, err)
	_, err = store.Consume(fresh.ID)
	assert.NoError(t, err)
}

func TestSessionStore_RejectsWeakChallenge(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Create("a@x.com", KindRegistration, []byte("short"))
	assert.ErrorIs(t, err, ErrChallengeTooWeak)
}
