package event

import "time"

// EuCredentialAttributes is the decoded payload of an EU Digital Covid
// Certificate credential as returned by the crypto capability.
type EuCredentialAttributes struct {
	Credential     DigitalCovidCertificate `json:"credential"`
	ExpirationTime int64                   `json:"expirationTime"`
	IssuedAt       int64                   `json:"issuedAt"`
	Issuer         string                  `json:"issuer"`
}

// ExpiresAt returns the credential expiry as a time value.
func (a EuCredentialAttributes) ExpiresAt() time.Time {
	return time.Unix(a.ExpirationTime, 0)
}

// DigitalCovidCertificate is the DCC body. At most one of the entry slices is
// populated per certificate.
type DigitalCovidCertificate struct {
	Version      string           `json:"ver"`
	DateOfBirth  string           `json:"dob"`
	Name         DCCName          `json:"nam"`
	Vaccinations []DCCVaccination `json:"v,omitempty"`
	Tests        []DCCTest        `json:"t,omitempty"`
	Recoveries   []DCCRecovery    `json:"r,omitempty"`
}

type DCCName struct {
	FirstName             string `json:"gn"`
	LastName              string `json:"fn"`
	StandardizedFirstName string `json:"gnt,omitempty"`
	StandardizedLastName  string `json:"fnt"`
}

type DCCVaccination struct {
	CertificateIdentifier string `json:"ci"`
	Country               string `json:"co"`
	DateOfVaccination     string `json:"dt"`
	DoseNumber            int    `json:"dn"`
	TotalDoses            int    `json:"sd"`
	MedicalProduct        string `json:"mp"`
	Manufacturer          string `json:"ma,omitempty"`
}

type DCCTest struct {
	CertificateIdentifier string `json:"ci"`
	Country               string `json:"co"`
	DateOfSample          string `json:"sc"`
	TestResult            string `json:"tr"`
	TypeOfTest            string `json:"tt"`
}

type DCCRecovery struct {
	CertificateIdentifier string `json:"ci"`
	Country               string `json:"co"`
	FirstPositiveTestDate string `json:"fr"`
	ValidFrom             string `json:"df"`
	ValidUntil            string `json:"du"`
}

// Identity maps the DCC name and date of birth onto the holder identity shape
// used for reconciliation.
func (a EuCredentialAttributes) Identity() Identity {
	return Identity{
		FirstName:       a.Credential.Name.FirstName,
		LastName:        a.Credential.Name.LastName,
		BirthDateString: a.Credential.DateOfBirth,
	}
}

// EventDate returns the date of the certified fact inside the DCC, nil when
// absent or unparseable.
func (a EuCredentialAttributes) EventDate() *time.Time {
	var raw string
	switch {
	case len(a.Credential.Vaccinations) > 0:
		raw = a.Credential.Vaccinations[0].DateOfVaccination
	case len(a.Credential.Recoveries) > 0:
		raw = a.Credential.Recoveries[0].FirstPositiveTestDate
	case len(a.Credential.Tests) > 0:
		raw = a.Credential.Tests[0].DateOfSample
	}
	if raw == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil
	}
	return &t
}
