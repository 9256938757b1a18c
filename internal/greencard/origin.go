package greencard

import (
	"encoding/json"
	"time"
)

// OriginType is the certified fact backing a validity window.
type OriginType string

const (
	OriginTypeVaccination           OriginType = "vaccination"
	OriginTypeRecovery              OriginType = "recovery"
	OriginTypeTest                  OriginType = "test"
	OriginTypeVaccinationAssessment OriginType = "vaccinationassessment"
	OriginTypeUnknown               OriginType = "unknown"
)

var validOriginTypes = map[OriginType]bool{
	OriginTypeVaccination:           true,
	OriginTypeRecovery:              true,
	OriginTypeTest:                  true,
	OriginTypeVaccinationAssessment: true,
}

// UnmarshalJSON degrades unrecognized origin types to OriginTypeUnknown so a
// new server-side origin kind never breaks decoding of the whole response.
func (t *OriginType) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	candidate := OriginType(raw)
	if !validOriginTypes[candidate] {
		candidate = OriginTypeUnknown
	}
	*t = candidate
	return nil
}

// Region scopes a green card to a disclosure context.
type Region string

const (
	RegionDomestic      Region = "domestic"
	RegionEuropeanUnion Region = "europeanUnion"
)

// Origin is one typed, time-bounded validity claim.
//
// The validity partition is exact: at any instant exactly one of past, current
// or future holds, with ValidFrom inclusive and ExpirationTime exclusive.
type Origin struct {
	Type           OriginType `json:"type"`
	EventTime      time.Time  `json:"eventTime"`
	ExpirationTime time.Time  `json:"expirationTime"`
	ValidFrom      time.Time  `json:"validFrom"`
	DoseNumber     *int       `json:"doseNumber,omitempty"`
}

// IsValidAt reports whether now falls inside [ValidFrom, ExpirationTime).
func (o Origin) IsValidAt(now time.Time) bool {
	return !now.Before(o.ValidFrom) && now.Before(o.ExpirationTime)
}

// IsFutureAt reports whether the window has not opened yet.
func (o Origin) IsFutureAt(now time.Time) bool {
	return now.Before(o.ValidFrom)
}

// IsExpiredAt reports whether the window has closed.
func (o Origin) IsExpiredAt(now time.Time) bool {
	return !now.Before(o.ExpirationTime)
}

// Equal compares origins field by field, treating DoseNumber by value.
func (o Origin) Equal(other Origin) bool {
	if o.Type != other.Type ||
		!o.EventTime.Equal(other.EventTime) ||
		!o.ExpirationTime.Equal(other.ExpirationTime) ||
		!o.ValidFrom.Equal(other.ValidFrom) {
		return false
	}
	if (o.DoseNumber == nil) != (other.DoseNumber == nil) {
		return false
	}
	return o.DoseNumber == nil || *o.DoseNumber == *other.DoseNumber
}
