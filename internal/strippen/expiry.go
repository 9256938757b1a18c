package strippen

import (
	"time"

	"greenwallet/internal/wallet"
)

// ComputeExpiryState classifies the credential supply of the given cards at
// now. Cards are expected to have unexpired origins; a card whose supply is
// empty or already lapsed forces Expired, otherwise the soonest exhaustion
// within the renewal window yields Expiring.
func ComputeExpiryState(cards []wallet.GreenCard, now time.Time, renewalWindow time.Duration) ExpiryState {
	if len(cards) == 0 {
		return ExpiryState{Phase: NoActionNeeded}
	}

	var soonest *time.Time
	for _, card := range cards {
		supplyExpiry := card.CredentialSupplyExpiry()
		if supplyExpiry == nil || !now.Before(*supplyExpiry) {
			return ExpiryState{Phase: Expired}
		}
		if soonest == nil || supplyExpiry.Before(*soonest) {
			soonest = supplyExpiry
		}
	}
	if soonest != nil && soonest.Before(now.Add(renewalWindow)) {
		return ExpiryState{Phase: Expiring, Date: *soonest}
	}
	return ExpiryState{Phase: NoActionNeeded}
}
