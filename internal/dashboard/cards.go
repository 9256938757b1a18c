package dashboard

import (
	"time"

	"greenwallet/internal/greencard"
	"greenwallet/internal/policy"
)

// CardKind identifies one renderable dashboard element. The values are
// declared in assembly order; DeriveCards emits kinds in this order and
// consumers may rely on it.
type CardKind int

const (
	CardEmptyStateDescription CardKind = iota
	CardHeaderMessage
	CardClockDeviationWarning
	CardConfigAlmostOutOfDate
	CardRecommendedUpdate
	CardVaccinationAssessmentIncomplete
	CardVaccinationAssessmentInvalidOutsideNL
	CardBlockedEvents
	CardExpiredQR
	CardDisclosurePolicyChange
	CardOriginNotValidInThisRegion
	CardEmptyStatePlaceholder
	CardQR
	CardAddCertificate
	CardRecommendCompanionApp
)

func (k CardKind) String() string {
	switch k {
	case CardEmptyStateDescription:
		return "emptyStateDescription"
	case CardHeaderMessage:
		return "headerMessage"
	case CardClockDeviationWarning:
		return "clockDeviationWarning"
	case CardConfigAlmostOutOfDate:
		return "configAlmostOutOfDate"
	case CardRecommendedUpdate:
		return "recommendedUpdate"
	case CardVaccinationAssessmentIncomplete:
		return "vaccinationAssessmentIncomplete"
	case CardVaccinationAssessmentInvalidOutsideNL:
		return "vaccinationAssessmentInvalidOutsideNL"
	case CardBlockedEvents:
		return "blockedEvents"
	case CardExpiredQR:
		return "expiredQR"
	case CardDisclosurePolicyChange:
		return "disclosurePolicyChange"
	case CardOriginNotValidInThisRegion:
		return "originNotValidInThisRegion"
	case CardEmptyStatePlaceholder:
		return "emptyStatePlaceholder"
	case CardQR:
		return "qr"
	case CardAddCertificate:
		return "addCertificate"
	case CardRecommendCompanionApp:
		return "recommendCompanionApp"
	default:
		return "unknown"
	}
}

// Card is one entry in a pane's render list. Fields beyond Kind are filled
// only where the kind uses them.
type Card struct {
	Kind       CardKind
	Region     greencard.Region
	OriginType greencard.OriginType
	QRCard     *QRCard
	Policy     policy.Mode
	ExpiryDate time.Time
	Blocked    []BlockedEventItem
}

// DeriveDomesticCards assembles the domestic pane. Under a 0G policy the
// pane does not exist and the result is nil.
func DeriveDomesticCards(s State) []Card {
	if !s.ActiveDisclosurePolicyMode.ShowsDomesticPane() {
		return nil
	}
	return deriveCards(s, greencard.RegionDomestic)
}

// DeriveInternationalCards assembles the international pane.
func DeriveInternationalCards(s State) []Card {
	return deriveCards(s, greencard.RegionEuropeanUnion)
}

// deriveCards runs the ordered assembly steps for one region. Banners come
// before QR cards, QR cards before footers; within a step, insertion follows
// wallet order.
func deriveCards(s State, region greencard.Region) []Card {
	regionCards := s.regionQRCards(region)
	regionExpired := s.regionExpiredCards(region)
	hasContent := len(regionCards) > 0 || len(regionExpired) > 0

	var out []Card

	if !hasContent {
		out = append(out, Card{Kind: CardEmptyStateDescription, Region: region})
	}
	if len(regionCards) > 0 {
		out = append(out, Card{Kind: CardHeaderMessage, Region: region})
	}
	if s.DeviceHasClockDeviation && len(regionCards) > 0 {
		out = append(out, Card{Kind: CardClockDeviationWarning, Region: region})
	}
	if s.ConfigIsAlmostOutOfDate {
		out = append(out, Card{Kind: CardConfigAlmostOutOfDate, Region: region})
	}
	if s.RecommendedUpdateAvailable {
		out = append(out, Card{Kind: CardRecommendedUpdate, Region: region})
	}
	if s.IsAwaitingVaccinationAssessment {
		if region == greencard.RegionDomestic {
			out = append(out, Card{Kind: CardVaccinationAssessmentIncomplete, Region: region})
		} else {
			out = append(out, Card{Kind: CardVaccinationAssessmentInvalidOutsideNL, Region: region})
		}
	}
	if len(s.BlockedEventItems) > 0 && !s.HasDismissedBlockedEventsBanner {
		out = append(out, Card{
			Kind:    CardBlockedEvents,
			Region:  region,
			Blocked: append([]BlockedEventItem(nil), s.BlockedEventItems...),
		})
	}
	for _, expired := range regionExpired {
		out = append(out, Card{
			Kind:       CardExpiredQR,
			Region:     region,
			OriginType: expired.OriginType,
		})
	}
	if s.PolicyModeChanged && !s.HasDismissedPolicyChangeBanner {
		out = append(out, Card{
			Kind:   CardDisclosurePolicyChange,
			Region: region,
			Policy: s.ActiveDisclosurePolicyMode,
		})
	}
	out = append(out, regionMismatchCards(s, region)...)
	if len(regionCards) == 0 {
		out = append(out, Card{Kind: CardEmptyStatePlaceholder, Region: region})
	}
	out = append(out, qrCards(s, region, regionCards)...)
	if s.ShouldShowAddCertificateFooter() {
		out = append(out, Card{Kind: CardAddCertificate, Region: region})
	}
	if region == greencard.RegionDomestic && len(regionCards) > 0 {
		out = append(out, Card{Kind: CardRecommendCompanionApp, Region: region})
	}
	return out
}

// regionMismatchCards explains origin types the holder owns in the opposite
// region only, one card per missing type.
func regionMismatchCards(s State, region greencard.Region) []Card {
	other := greencard.RegionEuropeanUnion
	if region == greencard.RegionEuropeanUnion {
		other = greencard.RegionDomestic
	}

	present := map[greencard.OriginType]bool{}
	for _, card := range s.regionQRCards(region) {
		for _, origin := range card.Origins {
			present[origin.Type] = true
		}
	}

	var out []Card
	seen := map[greencard.OriginType]bool{}
	for _, card := range s.regionQRCards(other) {
		for _, origin := range card.Origins {
			if present[origin.Type] || seen[origin.Type] {
				continue
			}
			seen[origin.Type] = true
			out = append(out, Card{
				Kind:       CardOriginNotValidInThisRegion,
				Region:     region,
				OriginType: origin.Type,
			})
		}
	}
	return out
}

// qrCards maps the region's wallet cards to renderable QR cards, applying
// the disclosure policy to the domestic pane. Under combined 1G+3G each
// domestic card renders twice: once per policy, the 3G rendition first.
func qrCards(s State, region greencard.Region, regionCards []QRCard) []Card {
	var out []Card
	for i := range regionCards {
		card := regionCards[i]
		if region != greencard.RegionDomestic {
			out = append(out, Card{Kind: CardQR, Region: region, QRCard: &card})
			continue
		}
		switch s.ActiveDisclosurePolicyMode {
		case policy.Exclusive1G:
			if filtered, ok := filterOrigins(card, testOnly); ok {
				out = append(out, Card{Kind: CardQR, Region: region, QRCard: &filtered, Policy: policy.Exclusive1G})
			}
		case policy.Combined1GAnd3G:
			threeG := card
			out = append(out, Card{Kind: CardQR, Region: region, QRCard: &threeG, Policy: policy.Exclusive3G})
			if filtered, ok := filterOrigins(card, testOnly); ok {
				out = append(out, Card{Kind: CardQR, Region: region, QRCard: &filtered, Policy: policy.Exclusive1G})
			}
		default:
			out = append(out, Card{Kind: CardQR, Region: region, QRCard: &card, Policy: policy.Exclusive3G})
		}
	}
	return out
}

func testOnly(t greencard.OriginType) bool { return t == greencard.OriginTypeTest }

// filterOrigins copies the card with only the origins the predicate keeps.
// The second return is false when nothing survives.
func filterOrigins(card QRCard, keep func(greencard.OriginType) bool) (QRCard, bool) {
	var origins []greencard.Origin
	for _, origin := range card.Origins {
		if keep(origin.Type) {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return QRCard{}, false
	}
	out := card
	out.Origins = origins
	return out, true
}
