package credential

import (
	"context"
	"fmt"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"passkey-server/device"
)

func newTestManager(t *testing.T, policy Policy) (*Manager, *MemoryRepository) {
	t.Helper()
	repo := NewMemoryRepository()
	return NewManager(repo, policy, log.New(io.Discard, "", 0)), repo
}

func addCredential(t *testing.T, m *Manager, id, owner string, createdAt time.Time) {
	t.Helper()
	require.NoError(t, m.Add(context.Background(), &Credential{
		ID:            id,
		Owner:         owner,
		PublicKey:     []byte("pk-" + id),
		DeviceName:    "Device " + id,
		BiometricType: device.MethodFingerprint,
		CreatedAt:     createdAt,
	}))
}

func TestManager_ListOrderedByCreation(t *testing.T) {
	m, _ := newTestManager(t, Policy{})
	base := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)

	// Insert out of order on purpose.
	addCredential(t, m, "c2", "a@x.com", base.Add(time.Hour))
	addCredential(t, m, "c1", "a@x.com", base)
	addCredential(t, m, "c3", "a@x.com", base.Add(2*time.Hour))

	creds, err := m.List(context.Background(), "a@x.com")
	require.NoError(t, err)
	require.Len(t, creds, 3)
	assert.Equal(t, "c1", creds[0].ID)
	assert.Equal(t, "c2", creds[1].ID)
	assert.Equal(t, "c3", creds[2].ID)
}

func TestManager_ListScopedToOwner(t *testing.T) {
	m, _ := newTestManager(t, Policy{})
	addCredential(t, m, "c1", "a@x.com", time.Now())
	addCredential(t, m, "c2", "b@x.com", time.Now())

	creds, err := m.List(context.Background(), "a@x.com")
	require.NoError(t, err)
	require.Len(t, creds, 1)
	assert.Equal(t, "c1", creds[0].ID)
}

func TestManager_AddEnforcesCap(t *testing.T) {
	m, _ := newTestManager(t, Policy{})
	for i := 1; i <= MaxActivePerOwner; i++ {
		addCredential(t, m, fmt.Sprintf("c%d", i), "a@x.com", time.Now())
	}

	err := m.Add(context.Background(), &Credential{ID: "c6", Owner: "a@x.com"})
	assert.ErrorIs(t, err, ErrDeviceLimit)

	active, err := m.ActiveCount(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, MaxActivePerOwner, active)
}

func TestManager_RevokedSlotFreesCap(t *testing.T) {
	m, _ := newTestManager(t, Policy{})
	for i := 1; i <= MaxActivePerOwner; i++ {
		addCredential(t, m, fmt.Sprintf("c%d", i), "a@x.com", time.Now())
	}

	require.NoError(t, m.Revoke(context.Background(), "c1", ""))

	err := m.Add(context.Background(), &Credential{ID: "c6", Owner: "a@x.com"})
	assert.NoError(t, err)
}

func TestManager_Rename(t *testing.T) {
	m, _ := newTestManager(t, Policy{})
	addCredential(t, m, "c1", "a@x.com", time.Now())

	cred, err := m.Rename(context.Background(), "c1", "Work phone")
	require.NoError(t, err)
	assert.Equal(t, "Work phone", cred.DeviceName)

	_, err = m.Rename(context.Background(), "missing", "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_RevokeIsSoftDelete(t *testing.T) {
	m, repo := newTestManager(t, Policy{})
	addCredential(t, m, "c1", "a@x.com", time.Now())

	require.NoError(t, m.Revoke(context.Background(), "c1", ""))

	// Still present for the audit trail, just inactive.
	stored, err := repo.Get(context.Background(), "c1")
	require.NoError(t, err)
	assert.False(t, stored.Active)
}

func TestManager_RevokeCurrentDevicePolicyEnforced(t *testing.T) {
	m, _ := newTestManager(t, Policy{ProtectCurrentDevice: true})
	addCredential(t, m, "c1", "a@x.com", time.Now())

	err := m.Revoke(context.Background(), "c1", "c1")
	assert.ErrorIs(t, err, ErrRevokeCurrentDevice)

	// A different credential is fine.
	addCredential(t, m, "c2", "a@x.com", time.Now())
	assert.NoError(t, m.Revoke(context.Background(), "c2", "c1"))
}

func TestManager_RevokeCurrentDevicePolicyDisabled(t *testing.T) {
	m, _ := newTestManager(t, Policy{ProtectCurrentDevice: false})
	addCredential(t, m, "c1", "a@x.com", time.Now())

	assert.NoError(t, m.Revoke(context.Background(), "c1", "c1"))
}

func TestManager_TouchAdvancesCounter(t *testing.T) {
	m, repo := newTestManager(t, Policy{})
	addCredential(t, m, "c1", "a@x.com", time.Now())

	cred, err := m.Touch(context.Background(), "c1", 1)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), cred.SignatureCounter)
	assert.False(t, cred.LastUsedAt.IsZero())

	cred, err = m.Touch(context.Background(), "c1", 7)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), cred.SignatureCounter)

	stored, err := repo.Get(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, uint32(7), stored.SignatureCounter)
}

func TestManager_TouchRejectsRegression(t *testing.T) {
	m, repo := newTestManager(t, Policy{})
	addCredential(t, m, "c1", "a@x.com", time.Now())

	_, err := m.Touch(context.Background(), "c1", 5)
	require.NoError(t, err)

	for _, replayed := range []uint32{5, 4, 0} {
		_, err = m.Touch(context.Background(), "c1", replayed)
		assert.ErrorIs(t, err, ErrCounterRegression)
	}

	stored, err := repo.Get(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, uint32(5), stored.SignatureCounter, "rejected touch must leave stored state alone")
}

func TestManager_ZeroZeroCounterLenientPolicy(t *testing.T) {
	m, _ := newTestManager(t, Policy{LenientZeroCounter: true})
	addCredential(t, m, "c1", "a@x.com", time.Now())

	// Authenticators that never increment report zero forever.
	cred, err := m.Touch(context.Background(), "c1", 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), cred.SignatureCounter)
	assert.False(t, cred.LastUsedAt.IsZero())
}

func TestManager_ZeroZeroCounterStrictPolicy(t *testing.T) {
	m, _ := newTestManager(t, Policy{LenientZeroCounter: false})
	addCredential(t, m, "c1", "a@x.com", time.Now())

	_, err := m.Touch(context.Background(), "c1", 0)
	assert.ErrorIs(t, err, ErrCounterRegression)
}

func TestManager_TouchUnknownCredential(t *testing.T) {
	m, _ := newTestManager(t, Policy{})
	_, err := m.Touch(context.Background(), "missing", 1)
	assert.ErrorIs(t, err, ErrNotFound)
}
