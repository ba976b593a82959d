package credential

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"
)

// Policy captures the two behaviors product has not settled yet.
// ProtectCurrentDevice makes Revoke refuse the credential backing the
// caller's own session. LenientZeroCounter exempts authenticators that
// never increment their counter (a stored zero followed by another
// zero) from the monotonicity check; the lenient path is still logged
// because it weakens clone detection.
type Policy struct {
	ProtectCurrentDevice bool
	LenientZeroCounter   bool
}

type Manager struct {
	repo   Repository
	policy Policy
	logger *log.Logger
	now    func() time.Time

	addMu sync.Mutex
}

func NewManager(repo Repository, policy Policy, logger *log.Logger) *Manager {
	return &Manager{
		repo:   repo,
		policy: policy,
		logger: logger,
		now:    time.Now,
	}
}

// List returns the owner's credentials ordered by creation time so
// device-management screens render deterministically.
func (m *Manager) List(ctx context.Context, owner string) ([]*Credential, error) {
	creds, err := m.repo.ByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	sort.Slice(creds, func(i, j int) bool {
		return creds[i].CreatedAt.Before(creds[j].CreatedAt)
	})
	return creds, nil
}

// ActiveCount counts credentials still usable for authentication.
func (m *Manager) ActiveCount(ctx context.Context, owner string) (int, error) {
	creds, err := m.repo.ByOwner(ctx, owner)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, cred := range creds {
		if cred.Active {
			n++
		}
	}
	return n, nil
}

// Add persists a credential minted by a completed registration
// ceremony. The count-then-put runs under a lock so two racing
// registrations cannot both squeeze under the cap.
func (m *Manager) Add(ctx context.Context, cred *Credential) error {
	m.addMu.Lock()
	defer m.addMu.Unlock()

	active, err := m.ActiveCount(ctx, cred.Owner)
	if err != nil {
		return err
	}
	if active >= MaxActivePerOwner {
		return ErrDeviceLimit
	}

	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = m.now()
	}
	cred.Active = true
	return m.repo.Put(ctx, cred)
}

func (m *Manager) Rename(ctx context.Context, id, newLabel string) (*Credential, error) {
	return m.repo.Swap(ctx, id, func(cred *Credential) error {
		cred.DeviceName = newLabel
		return nil
	})
}

// Revoke soft-deletes: the record stays for the audit trail, it just
// stops authenticating. currentID identifies the credential backing
// the caller's session, if any.
func (m *Manager) Revoke(ctx context.Context, id, currentID string) error {
	if m.policy.ProtectCurrentDevice && currentID != "" && id == currentID {
		return ErrRevokeCurrentDevice
	}
	_, err := m.repo.Swap(ctx, id, func(cred *Credential) error {
		cred.Active = false
		return nil
	})
	return err
}

// Touch applies a verified authentication to the stored record: the
// counter moves forward and LastUsedAt is stamped, atomically against
// any concurrent authentication of the same credential. A counter that
// fails to advance indicates a possibly cloned authenticator; stored
// state is left untouched and the event is audit-logged.
func (m *Manager) Touch(ctx context.Context, id string, newCounter uint32) (*Credential, error) {
	cred, err := m.repo.Swap(ctx, id, func(cred *Credential) error {
		if !m.counterAdvances(cred.SignatureCounter, newCounter) {
			return ErrCounterRegression
		}
		if cred.SignatureCounter == 0 && newCounter == 0 && m.logger != nil {
			m.logger.Printf("credential %s: authenticator never increments its counter, clone detection degraded", id)
		}
		cred.SignatureCounter = newCounter
		cred.LastUsedAt = m.now()
		return nil
	})
	if err == ErrCounterRegression && m.logger != nil {
		m.logger.Printf("AUDIT credential %s: signature counter regression (got %d), possible cloned authenticator", id, newCounter)
	}
	return cred, err
}

func (m *Manager) counterAdvances(stored, next uint32) bool {
	if stored == 0 && next == 0 {
		return m.policy.LenientZeroCounter
	}
	return next > stored
}
