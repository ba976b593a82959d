package ceremony

import (
	"time"

	"github.com/aidarkhanov/nanoid/v2"
	cmap "github.com/orcaman/concurrent-map/v2"
)

const (
	tokenLength        = 40
	TokenTTL           = 30 * 24 * time.Hour
	tokenCleanInterval = 24 * time.Hour
)

type TokenData struct {
	Subject      string
	CredentialID string
	Token        string
	expires      time.Time
}

func (t *TokenData) Expires() time.Time {
	return t.expires
}

// TokenStore issues and verifies the opaque session tokens minted when
// an authentication ceremony completes. Token -> TokenData, expired
// entries reaped in the background.
type TokenStore struct {
	tokens cmap.ConcurrentMap[string, *TokenData]
	ttl    time.Duration
	stop   chan struct{}
}

func NewTokenStore(ttl time.Duration) *TokenStore {
	if ttl <= 0 {
		ttl = TokenTTL
	}
	store := &TokenStore{
		tokens: cmap.New[*TokenData](),
		ttl:    ttl,
		stop:   make(chan struct{}),
	}
	store.startCleaner(tokenCleanInterval)
	return store
}

func (store *TokenStore) Issue(subject, credentialID string) (string, error) {
	token, err := nanoid.GenerateString(nanoid.DefaultAlphabet, tokenLength)
	if err != nil {
		return "", err
	}
	store.tokens.Set(token, &TokenData{
		Subject:      subject,
		CredentialID: credentialID,
		Token:        token,
		expires:      time.Now().Add(store.ttl),
	})
	return token, nil
}

func (store *TokenStore) Verify(token string) (*TokenData, bool) {
	data, ok := store.tokens.Get(token)
	if !ok {
		return nil, false
	}
	if time.Now().After(data.expires) {
		store.tokens.Remove(token)
		return nil, false
	}
	return data, true
}

// Revoke invalidates a token, logging the user out.
func (store *TokenStore) Revoke(token string) {
	store.tokens.Remove(token)
}

func (store *TokenStore) startCleaner(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				now := time.Now()
				for entry := range store.tokens.IterBuffered() {
					if now.After(entry.Val.expires) {
						store.tokens.Remove(entry.Key)
					}
				}
			case <-store.stop:
				return
			}
		}
	}()
}

func (store *TokenStore) Close() {
	close(store.stop)
}
