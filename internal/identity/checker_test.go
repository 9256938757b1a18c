package identity

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/suite"

	"greenwallet/internal/event"
)

type CheckerSuite struct {
	suite.Suite
	checker *Checker
}

func (s *CheckerSuite) SetupTest() {
	s.checker = NewChecker(nil)
}

func TestCheckerSuite(t *testing.T) {
	suite.Run(t, new(CheckerSuite))
}

func (s *CheckerSuite) storedPayload(firstName, lastName, birthDate string) []byte {
	wrapper := event.ResultWrapper{
		ProviderIdentifier: "GGD",
		Status:             event.StateComplete,
		Identity:           &event.Identity{FirstName: firstName, LastName: lastName, BirthDateString: birthDate},
	}
	payload, err := json.Marshal(wrapper)
	s.Require().NoError(err)
	return payload
}

func (s *CheckerSuite) remote(firstName, lastName, birthDate string) []event.RemoteEvent {
	return []event.RemoteEvent{{
		Wrapper: event.ResultWrapper{
			ProviderIdentifier: "RIVM",
			Status:             event.StateComplete,
			Identity:           &event.Identity{FirstName: firstName, LastName: lastName, BirthDateString: birthDate},
		},
	}}
}

// TestVacuousAcceptance verifies absence of identity data never blocks
// ingestion.
func (s *CheckerSuite) TestVacuousAcceptance() {
	s.Run("no stored payloads", func() {
		s.True(s.checker.Compare(nil, s.remote("Anna", "Jansen", "1980-07-02")))
	})

	s.Run("no remote identities", func() {
		payloads := [][]byte{s.storedPayload("Anna", "Jansen", "1980-07-02")}
		s.True(s.checker.Compare(payloads, []event.RemoteEvent{{}}))
	})

	s.Run("undecodable stored payloads contribute nothing", func() {
		payloads := [][]byte{[]byte("not json")}
		s.True(s.checker.Compare(payloads, s.remote("Anna", "Jansen", "1980-07-02")))
	})
}

// TestBirthDateGate verifies birth day and month drive the mismatch verdict.
func (s *CheckerSuite) TestBirthDateGate() {
	s.Run("same person matches", func() {
		payloads := [][]byte{s.storedPayload("Anna", "Jansen", "1980-07-02")}
		s.True(s.checker.Compare(payloads, s.remote("Anna", "Jansen", "1980-07-02")))
	})

	s.Run("different birth day mismatches", func() {
		payloads := [][]byte{s.storedPayload("Anna", "Jansen", "1980-07-02")}
		s.False(s.checker.Compare(payloads, s.remote("Anna", "Jansen", "1980-07-03")))
	})

	s.Run("different birth month mismatches", func() {
		payloads := [][]byte{s.storedPayload("Anna", "Jansen", "1980-07-02")}
		s.False(s.checker.Compare(payloads, s.remote("Anna", "Jansen", "1980-08-02")))
	})

	s.Run("same birth year is irrelevant", func() {
		payloads := [][]byte{s.storedPayload("Anna", "Jansen", "1975-07-02")}
		s.True(s.checker.Compare(payloads, s.remote("Anna", "Jansen", "1980-07-02")))
	})
}

// TestInitialMatching pins the current initial-matching behavior: a matching
// birth date is accepted even when the initials differ.
func (s *CheckerSuite) TestInitialMatching() {
	s.Run("differing first initials still match", func() {
		payloads := [][]byte{s.storedPayload("Anna", "Jansen", "1980-07-02")}
		s.True(s.checker.Compare(payloads, s.remote("Willem", "Jansen", "1980-07-02")))
	})

	s.Run("differing last initials still match", func() {
		payloads := [][]byte{s.storedPayload("Anna", "Jansen", "1980-07-02")}
		s.True(s.checker.Compare(payloads, s.remote("Anna", "Bakker", "1980-07-02")))
	})
}

// TestLegacyHolder verifies legacy v2 results participate on both sides.
func (s *CheckerSuite) TestLegacyHolder() {
	legacyPayload := func() []byte {
		wrapper := event.ResultWrapper{
			ProviderIdentifier: "GGD",
			Status:             event.StateComplete,
			Result: &event.TestResult{
				Unique: "abc",
				Holder: &event.LegacyHolder{
					FirstNameInitial: "A",
					LastNameInitial:  "J",
					BirthDay:         "2",
					BirthMonth:       "7",
				},
			},
		}
		payload, err := json.Marshal(wrapper)
		s.Require().NoError(err)
		return payload
	}

	s.Run("legacy stored holder matches same birth date", func() {
		s.True(s.checker.Compare([][]byte{legacyPayload()}, s.remote("Anna", "Jansen", "1980-07-02")))
	})

	s.Run("legacy stored holder rejects different birth date", func() {
		s.False(s.checker.Compare([][]byte{legacyPayload()}, s.remote("Anna", "Jansen", "1980-11-05")))
	})
}
