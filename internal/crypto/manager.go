// Package crypto is the boundary to the credential cryptography. The wallet
// treats it as an opaque, possibly-failing capability: malformed input yields
// absence, never a fatal error.
package crypto

import (
	"time"

	"greenwallet/internal/event"
	"greenwallet/internal/policy"
)

// Manager is the crypto capability surface the wallet consumes.
type Manager interface {
	// ReadEuCredentials decodes an EU credential blob into its attributes.
	// Returns nil (no error) when the blob is unreadable.
	ReadEuCredentials(data []byte) *event.EuCredentialAttributes
	// DiscloseCredential produces the QR payload for a credential under the
	// active disclosure policy.
	DiscloseCredential(credential []byte, mode policy.Mode) ([]byte, error)
}

// Clock abstracts time.Now for testability.
type Clock func() time.Time
