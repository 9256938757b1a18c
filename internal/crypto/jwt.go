package crypto

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"greenwallet/internal/event"
	"greenwallet/internal/policy"
)

// JWTManager carries credentials as JWTs: the EU credential blob is a signed
// token whose claims hold the DCC payload, and disclosure mints a short-lived
// token over the credential for the QR code.
type JWTManager struct {
	signingKey []byte
	clock      Clock
}

// JWTOption configures a JWTManager.
type JWTOption func(*JWTManager)

// WithJWTClock sets the clock function for testability.
func WithJWTClock(clock Clock) JWTOption {
	return func(m *JWTManager) {
		if clock != nil {
			m.clock = clock
		}
	}
}

func NewJWTManager(signingKey []byte, opts ...JWTOption) (*JWTManager, error) {
	if len(signingKey) == 0 {
		return nil, fmt.Errorf("signing key is required")
	}
	m := &JWTManager{signingKey: signingKey, clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m, nil
}

// euClaims is the claim layout of an EU credential token.
type euClaims struct {
	DCC event.DigitalCovidCertificate `json:"dcc"`
	jwt.RegisteredClaims
}

// ReadEuCredentials parses the credential token without verifying the issuer
// signature; signature verification belongs to the issuing exchange, not to
// local reads. Unreadable blobs yield nil.
func (m *JWTManager) ReadEuCredentials(data []byte) *event.EuCredentialAttributes {
	var claims euClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(string(data), &claims); err != nil {
		return nil
	}
	attributes := &event.EuCredentialAttributes{Credential: claims.DCC, Issuer: claims.Issuer}
	if claims.ExpiresAt != nil {
		attributes.ExpirationTime = claims.ExpiresAt.Unix()
	}
	if claims.IssuedAt != nil {
		attributes.IssuedAt = claims.IssuedAt.Unix()
	}
	return attributes
}

// DiscloseCredential wraps the credential in a token scoped to the active
// policy mode, signed with the wallet's key so a verifier can pin the device.
func (m *JWTManager) DiscloseCredential(credential []byte, mode policy.Mode) ([]byte, error) {
	if len(credential) == 0 {
		return nil, fmt.Errorf("credential is required")
	}
	now := m.clock()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"credential": string(credential),
		"policy":     string(mode),
		"iat":        now.Unix(),
		"exp":        now.Add(3 * time.Minute).Unix(),
	})
	signed, err := token.SignedString(m.signingKey)
	if err != nil {
		return nil, fmt.Errorf("sign disclosure: %w", err)
	}
	return []byte(signed), nil
}

var _ Manager = (*JWTManager)(nil)
