package event

import (
	"strconv"
	"strings"
	"time"
)

// Identity is the holder identity a provider asserted alongside its events.
type Identity struct {
	FirstName       string `json:"firstName"`
	InfixName       string `json:"infix,omitempty"`
	LastName        string `json:"lastName"`
	BirthDateString string `json:"birthDate"`

	// Legacy v2 holders only carried initials and a birth day/month.
	legacyBirthDay   string
	legacyBirthMonth string
}

// FullName renders the name the way the issuing provider would print it.
func (i Identity) FullName() string {
	parts := make([]string, 0, 2)
	last := strings.TrimSpace(strings.Join([]string{i.InfixName, i.LastName}, " "))
	if last != "" {
		parts = append(parts, last)
	}
	if i.FirstName != "" {
		parts = append(parts, i.FirstName)
	}
	return strings.Join(parts, ", ")
}

// Tuple is the reduced identity used for person-mismatch reconciliation:
// initials plus birth day and month. Fields are strings because legacy
// payloads carry them as strings and "X" placeholders occur in the wild.
type Tuple struct {
	FirstInitial string
	LastInitial  string
	BirthDay     string
	BirthMonth   string
}

// Empty reports whether nothing usable could be extracted.
func (t Tuple) Empty() bool {
	return t.FirstInitial == "" && t.LastInitial == "" && t.BirthDay == "" && t.BirthMonth == ""
}

// Tuple reduces the identity for comparison. Malformed birth dates degrade to
// empty day/month rather than failing.
func (i Identity) Tuple() Tuple {
	t := Tuple{
		FirstInitial: initial(i.FirstName),
		LastInitial:  initial(i.LastName),
		BirthDay:     i.legacyBirthDay,
		BirthMonth:   i.legacyBirthMonth,
	}
	if i.BirthDateString != "" {
		if parsed, err := time.Parse(dateLayout, i.BirthDateString); err == nil {
			t.BirthDay = strconv.Itoa(parsed.Day())
			t.BirthMonth = strconv.Itoa(int(parsed.Month()))
		}
	}
	return t
}

func initial(name string) string {
	trimmed := []rune(strings.TrimSpace(name))
	if len(trimmed) == 0 {
		return ""
	}
	return strings.ToUpper(string(trimmed[0]))
}
