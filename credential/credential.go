// Package credential owns the durable set of a user's registered
// passkeys: enumeration, post-ceremony adds, renames, soft revocation
// and the atomic signature-counter update that backs clone detection.
package credential

import (
	"time"

	"passkey-server/device"
)

// MaxActivePerOwner caps how many active passkeys one account may
// hold. The sixth registration fails before the user is ever prompted.
const MaxActivePerOwner = 5

type Credential struct {
	ID               string
	Owner            string
	PublicKey        []byte
	SignatureCounter uint32
	DeviceName       string
	ProfileSnapshot  device.Profile
	BiometricType    device.MethodType
	SecurityClass    device.SecurityClass
	CreatedAt        time.Time
	LastUsedAt       time.Time
	Active           bool
}
