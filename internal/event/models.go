package event

import (
	"time"
)

// Type discriminates the claimed health fact carried by an Event.
type Type string

const (
	TypeVaccination           Type = "vaccination"
	TypePositiveTest          Type = "positivetest"
	TypeNegativeTest          Type = "negativetest"
	TypeRecovery              Type = "recovery"
	TypeVaccinationAssessment Type = "vaccinationassessment"
	TypePaperProof            Type = "paperProof"
)

// Event is one claimed health fact from a provider. Exactly one of the typed
// payload pointers is set; paper proofs carry an opaque DCC instead.
type Event struct {
	Type                  Type                   `json:"type"`
	Unique                string                 `json:"unique"`
	Vaccination           *Vaccination           `json:"vaccination,omitempty"`
	PositiveTest          *TestEvent             `json:"positivetest,omitempty"`
	NegativeTest          *TestEvent             `json:"negativetest,omitempty"`
	Recovery              *Recovery              `json:"recovery,omitempty"`
	VaccinationAssessment *VaccinationAssessment `json:"vaccinationassessment,omitempty"`
	DCCEvent              *DCCEvent              `json:"dccEvent,omitempty"`
}

type Vaccination struct {
	Date                        string `json:"date"`
	HPKCode                     string `json:"hpkCode,omitempty"`
	Type                        string `json:"type,omitempty"`
	Manufacturer                string `json:"manufacturer,omitempty"`
	Brand                       string `json:"brand,omitempty"`
	DoseNumber                  *int   `json:"doseNumber,omitempty"`
	TotalDoses                  *int   `json:"totalDoses,omitempty"`
	Country                     string `json:"country,omitempty"`
	CompletedByMedicalStatement *bool  `json:"completedByMedicalStatement,omitempty"`
}

type TestEvent struct {
	SampleDate     string `json:"sampleDate"`
	ResultDate     string `json:"resultDate,omitempty"`
	NegativeResult bool   `json:"negativeResult,omitempty"`
	PositiveResult bool   `json:"positiveResult,omitempty"`
	TestType       string `json:"type,omitempty"`
	Name           string `json:"name,omitempty"`
	Manufacturer   string `json:"manufacturer,omitempty"`
	Country        string `json:"country,omitempty"`
}

type Recovery struct {
	SampleDate string `json:"sampleDate"`
	ValidFrom  string `json:"validFrom,omitempty"`
	ValidUntil string `json:"validUntil,omitempty"`
	Country    string `json:"country,omitempty"`
}

type VaccinationAssessment struct {
	AssessmentDate string `json:"assessmentDate"`
	Country        string `json:"country,omitempty"`
}

// DCCEvent is an opaque paper-flow Digital Covid Certificate scan.
type DCCEvent struct {
	DCC         string `json:"dcc"`
	CouplingCode string `json:"couplingCode,omitempty"`
}

const dateLayout = "2006-01-02"

// Date returns the point in time the event happened, or nil when the payload
// carries no parseable date. Malformed dates degrade to nil, never to an
// error.
func (e Event) Date() *time.Time {
	var raw string
	switch {
	case e.Vaccination != nil:
		raw = e.Vaccination.Date
	case e.PositiveTest != nil:
		raw = e.PositiveTest.SampleDate
	case e.NegativeTest != nil:
		raw = e.NegativeTest.SampleDate
	case e.Recovery != nil:
		raw = e.Recovery.SampleDate
	case e.VaccinationAssessment != nil:
		raw = e.VaccinationAssessment.AssessmentDate
	default:
		return nil
	}
	if raw == "" {
		return nil
	}
	// Assessment dates arrive with a time component, the rest as bare dates.
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil
	}
	return &t
}

// HasNegativeTest reports whether the event is a negative test result.
func (e Event) HasNegativeTest() bool { return e.NegativeTest != nil }

// HasVaccinationOutsideNL reports whether the event is a vaccination
// administered outside the Netherlands, which leaves a vaccination assessment
// pending until a separate assessment event arrives.
func (e Event) HasVaccinationOutsideNL() bool {
	return e.Vaccination != nil && e.Vaccination.Country != "" && e.Vaccination.Country != "NL"
}
