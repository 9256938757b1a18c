package greencard

import "time"

// Response is the issuer's answer when stored events are exchanged for signed
// green cards.
type Response struct {
	DomesticGreenCard *DomesticGreenCard `json:"domesticGreencard,omitempty"`
	EuGreenCards      []EuGreenCard      `json:"euGreencards,omitempty"`
	BlobExpireDates   []BlobExpiry       `json:"blobExpireDates,omitempty"`
	Hints             []string           `json:"hints,omitempty"`
}

// DomesticGreenCard carries the origins plus the opaque batch of messages the
// crypto capability turns into disclosure credentials.
type DomesticGreenCard struct {
	Origins                  []Origin `json:"origins"`
	CreateCredentialMessages []byte   `json:"createCredentialMessages"`
}

// EuGreenCard carries the origins plus the single DCC credential blob.
type EuGreenCard struct {
	Origins    []Origin `json:"origins"`
	Credential string   `json:"credential"`
}

// BlobExpiry is a server-pushed signal that a previously issued event-group
// blob must be considered expired or blocked. Identifier matches the stored
// event group's unique identifier.
type BlobExpiry struct {
	Identifier     string    `json:"id"`
	ExpirationDate time.Time `json:"expiry"`
	Reason         string    `json:"reason,omitempty"`
}

// HasDomestic reports whether the response includes a domestic card.
func (r Response) HasDomestic() bool {
	return r.DomesticGreenCard != nil
}

// Origins flattens all origins across both regions.
func (r Response) Origins() []Origin {
	var out []Origin
	if r.DomesticGreenCard != nil {
		out = append(out, r.DomesticGreenCard.Origins...)
	}
	for _, card := range r.EuGreenCards {
		out = append(out, card.Origins...)
	}
	return out
}

// OriginsOfType returns all origins of the given type across both regions.
func (r Response) OriginsOfType(originType OriginType) []Origin {
	var out []Origin
	for _, origin := range r.Origins() {
		if origin.Type == originType {
			out = append(out, origin)
		}
	}
	return out
}
