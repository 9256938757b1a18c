package crypto

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"greenwallet/internal/wallet"
)

// Converter turns issuer credential material into wallet credentials. It
// implements the store's CredentialConverter contract on top of a Manager.
type Converter struct {
	manager Manager
	logger  *slog.Logger
}

func NewConverter(manager Manager, logger *slog.Logger) (*Converter, error) {
	if manager == nil {
		return nil, fmt.Errorf("crypto manager is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Converter{manager: manager, logger: logger}, nil
}

// domesticCredentialMessage is one entry of the issuer's
// createCredentialMessages batch.
type domesticCredentialMessage struct {
	Credential string `json:"credential"`
	Attributes struct {
		ValidFrom      int64 `json:"validFrom"`
		ExpirationTime int64 `json:"expirationTime"`
		Version        int   `json:"version"`
	} `json:"attributes"`
}

// DomesticCredentials decodes the issuer batch into the rolling credential
// supply for the domestic card.
func (c *Converter) DomesticCredentials(createCredentialMessages []byte) ([]wallet.Credential, error) {
	if len(createCredentialMessages) == 0 {
		return nil, nil
	}
	var messages []domesticCredentialMessage
	if err := json.Unmarshal(createCredentialMessages, &messages); err != nil {
		return nil, fmt.Errorf("decode credential messages: %w", err)
	}
	out := make([]wallet.Credential, 0, len(messages))
	for _, msg := range messages {
		out = append(out, wallet.Credential{
			Data:           []byte(msg.Credential),
			ValidFrom:      time.Unix(msg.Attributes.ValidFrom, 0),
			ExpirationTime: time.Unix(msg.Attributes.ExpirationTime, 0),
			Version:        msg.Attributes.Version,
		})
	}
	return out, nil
}

// EuCredential reads the DCC blob's attributes to bound the credential's
// validity. An unreadable blob yields no credential rather than an error so
// one malformed card cannot block storing the rest.
func (c *Converter) EuCredential(credential []byte) (*wallet.Credential, error) {
	attributes := c.manager.ReadEuCredentials(credential)
	if attributes == nil {
		c.logger.Warn("eu credential unreadable, storing card without credential")
		return nil, nil
	}
	return &wallet.Credential{
		Data:           append([]byte(nil), credential...),
		ValidFrom:      time.Unix(attributes.IssuedAt, 0),
		ExpirationTime: attributes.ExpiresAt(),
	}, nil
}

var _ wallet.CredentialConverter = (*Converter)(nil)
