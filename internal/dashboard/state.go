// Package dashboard derives the holder's renderable card list from wallet
// contents, refresher state, and policy flags. Derivation is pure; the
// aggregator only sequences mutations and short-circuits unchanged states.
package dashboard

import (
	"time"

	"greenwallet/internal/greencard"
	"greenwallet/internal/policy"
	"greenwallet/internal/strippen"
)

// QRCard is one renderable green card.
type QRCard struct {
	GreenCardID        string
	Region             greencard.Region
	Origins            []greencard.Origin
	HasValidCredential bool
}

// Equal compares cards field by field.
func (c QRCard) Equal(other QRCard) bool {
	if c.GreenCardID != other.GreenCardID ||
		c.Region != other.Region ||
		c.HasValidCredential != other.HasValidCredential ||
		len(c.Origins) != len(other.Origins) {
		return false
	}
	for i := range c.Origins {
		if !c.Origins[i].Equal(other.Origins[i]) {
			return false
		}
	}
	return true
}

// ExpiredCard is a green card the expiry sweep removed, kept visible until
// the holder dismisses it.
type ExpiredCard struct {
	Region     greencard.Region
	OriginType greencard.OriginType
}

// BlockedEventItem explains one server-blocked event to the holder.
type BlockedEventItem struct {
	Type      greencard.OriginType
	EventDate time.Time
	Reason    string
}

func (b BlockedEventItem) Equal(other BlockedEventItem) bool {
	return b.Type == other.Type && b.EventDate.Equal(other.EventDate) && b.Reason == other.Reason
}

// State is the dashboard snapshot. It is a value: rebuilt on every mutation
// trigger and compared structurally before any recompute is emitted.
type State struct {
	QRCards           []QRCard
	ExpiredCards      []ExpiredCard
	BlockedEventItems []BlockedEventItem

	Strippen                          strippen.State
	ErrorForQRCardsMissingCredentials string

	DeviceHasClockDeviation         bool
	ConfigIsAlmostOutOfDate         bool
	RecommendedUpdateAvailable      bool
	IsAwaitingVaccinationAssessment bool

	HasDismissedBlockedEventsBanner bool
	HasDismissedPolicyChangeBanner  bool
	PolicyModeChanged               bool

	ActiveDisclosurePolicyMode policy.Mode
}

// Equal compares states structurally. The aggregator uses it to suppress
// redundant recomputes.
func (s State) Equal(other State) bool {
	if len(s.QRCards) != len(other.QRCards) ||
		len(s.ExpiredCards) != len(other.ExpiredCards) ||
		len(s.BlockedEventItems) != len(other.BlockedEventItems) {
		return false
	}
	for i := range s.QRCards {
		if !s.QRCards[i].Equal(other.QRCards[i]) {
			return false
		}
	}
	for i := range s.ExpiredCards {
		if s.ExpiredCards[i] != other.ExpiredCards[i] {
			return false
		}
	}
	for i := range s.BlockedEventItems {
		if !s.BlockedEventItems[i].Equal(other.BlockedEventItems[i]) {
			return false
		}
	}
	return s.Strippen.Equal(other.Strippen) &&
		s.ErrorForQRCardsMissingCredentials == other.ErrorForQRCardsMissingCredentials &&
		s.DeviceHasClockDeviation == other.DeviceHasClockDeviation &&
		s.ConfigIsAlmostOutOfDate == other.ConfigIsAlmostOutOfDate &&
		s.RecommendedUpdateAvailable == other.RecommendedUpdateAvailable &&
		s.IsAwaitingVaccinationAssessment == other.IsAwaitingVaccinationAssessment &&
		s.HasDismissedBlockedEventsBanner == other.HasDismissedBlockedEventsBanner &&
		s.HasDismissedPolicyChangeBanner == other.HasDismissedPolicyChangeBanner &&
		s.PolicyModeChanged == other.PolicyModeChanged &&
		s.ActiveDisclosurePolicyMode == other.ActiveDisclosurePolicyMode
}

// IsRefreshingStrippen reports whether a credential refresh is in flight.
func (s State) IsRefreshingStrippen() bool { return s.Strippen.IsRefreshing() }

// HasQRCards reports whether anything is showable: any live card at all, or
// an expired card in the given region.
func (s State) HasQRCards(region greencard.Region) bool {
	if len(s.QRCards) > 0 {
		return true
	}
	for _, expired := range s.ExpiredCards {
		if expired.Region == region {
			return true
		}
	}
	return false
}

// HasInternationalQRCards reports whether the EU pane has content.
func (s State) HasInternationalQRCards() bool {
	for _, card := range s.QRCards {
		if card.Region == greencard.RegionEuropeanUnion {
			return true
		}
	}
	for _, expired := range s.ExpiredCards {
		if expired.Region == greencard.RegionEuropeanUnion {
			return true
		}
	}
	return false
}

// ShouldShowAddCertificateFooter gates the add-certificate call to action.
func (s State) ShouldShowAddCertificateFooter() bool {
	empty := len(s.QRCards) == 0 ||
		(s.ShouldShowOnlyInternationalPane() && !s.HasInternationalQRCards())
	return empty && !s.IsAwaitingVaccinationAssessment
}

// ShouldShowTabBar reports whether the domestic/international tab bar shows.
func (s State) ShouldShowTabBar() bool {
	return s.ActiveDisclosurePolicyMode != policy.ZeroG
}

// ShouldShowOnlyInternationalPane reports whether only the EU pane shows.
func (s State) ShouldShowOnlyInternationalPane() bool {
	return s.ActiveDisclosurePolicyMode == policy.ZeroG
}

// regionQRCards returns the live cards for one region.
func (s State) regionQRCards(region greencard.Region) []QRCard {
	var out []QRCard
	for _, card := range s.QRCards {
		if card.Region == region {
			out = append(out, card)
		}
	}
	return out
}

// regionExpiredCards returns the dismissed-pending expired cards for one
// region.
func (s State) regionExpiredCards(region greencard.Region) []ExpiredCard {
	var out []ExpiredCard
	for _, expired := range s.ExpiredCards {
		if expired.Region == region {
			out = append(out, expired)
		}
	}
	return out
}
