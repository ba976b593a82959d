package credential

import (
	"context"
	"errors"
)

var (
	ErrNotFound            = errors.New("credential: not found")
	ErrDeviceLimit         = errors.New("credential: active credential limit reached")
	ErrCounterRegression   = errors.New("credential: signature counter did not increase")
	ErrRevokeCurrentDevice = errors.New("credential: refusing to revoke the current device")
)

// Repository is durable storage keyed by credential ID and queryable
// by owner. Swap is the single atomic read-modify-write primitive;
// counter updates go through it so two concurrent authentications
// cannot both apply the same assertion.
type Repository interface {
	Get(ctx context.Context, id string) (*Credential, error)
	Put(ctx context.Context, cred *Credential) error
	ByOwner(ctx context.Context, owner string) ([]*Credential, error)
	Swap(ctx context.Context, id string, apply func(*Credential) error) (*Credential, error)
	Delete(ctx context.Context, id string) error
}
