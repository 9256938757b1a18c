// Package policy resolves the active disclosure policy mode from remote
// feature flags. The mode governs which origin types are eligible for
// domestic display.
package policy

// Mode is the active government disclosure policy.
type Mode string

const (
	Exclusive3G     Mode = "exclusive3G"
	Exclusive1G     Mode = "exclusive1G"
	Combined1GAnd3G Mode = "combined1gAnd3g"
	ZeroG           Mode = "zeroG"
)

// Flag values as they appear in the remote config disclosurePolicies array.
const (
	flag1G = "1G"
	flag3G = "3G"
)

// Resolve maps the remote config's policy flags onto a mode. Must be called
// on every recompute; flags change via remote config push and a cached mode
// goes stale.
func Resolve(disclosurePolicies []string) Mode {
	var has1G, has3G bool
	for _, flag := range disclosurePolicies {
		switch flag {
		case flag1G:
			has1G = true
		case flag3G:
			has3G = true
		}
	}
	switch {
	case has1G && has3G:
		return Combined1GAnd3G
	case has1G:
		return Exclusive1G
	case has3G:
		return Exclusive3G
	default:
		return ZeroG
	}
}

// ShowsDomesticPane reports whether any domestic certificate can be shown.
func (m Mode) ShowsDomesticPane() bool {
	return m != ZeroG
}
