package wallet

import (
	"encoding/json"
	"time"

	"greenwallet/internal/event"
	"greenwallet/internal/greencard"
)

// RemovedEventsFromWrapper builds one audit record per event in the wrapper.
// The original event date is preserved; events without a parseable date fall
// back to now so the record is never dropped.
func RemovedEventsFromWrapper(wrapper event.ResultWrapper, reason RemovalReason, now time.Time) []RemovedEvent {
	out := make([]RemovedEvent, 0, len(wrapper.Events))
	for _, e := range wrapper.Events {
		date := now
		if d := e.Date(); d != nil {
			date = *d
		}
		out = append(out, RemovedEvent{
			Type:      originTypeForEvent(e),
			EventDate: date,
			Reason:    reason,
		})
	}
	return out
}

// RemovedEventFromEuAttributes builds an audit record for an invalidated DCC.
func RemovedEventFromEuAttributes(attributes event.EuCredentialAttributes, reason RemovalReason, now time.Time) RemovedEvent {
	date := now
	if d := attributes.EventDate(); d != nil {
		date = *d
	}
	return RemovedEvent{
		Type:      originTypeForEuAttributes(attributes),
		EventDate: date,
		Reason:    reason,
	}
}

// RemovedEventFromBlobExpiry builds an audit record for a server-blocked
// event group. The group's stored payload supplies the original event date;
// an undecodable payload falls back to the group's creation time.
func RemovedEventFromBlobExpiry(blob greencard.BlobExpiry, group EventGroup, now time.Time) RemovedEvent {
	reason := ReasonBlockedEvent
	if blob.Reason == string(ReasonEventGroupExpired) {
		reason = ReasonEventGroupExpired
	}
	removed := RemovedEvent{
		Type:      group.Type,
		EventDate: group.CreatedAt,
		Reason:    reason,
	}
	var wrapper event.ResultWrapper
	if err := json.Unmarshal(group.JSONData, &wrapper); err == nil && len(wrapper.Events) > 0 {
		if d := wrapper.Events[0].Date(); d != nil {
			removed.EventDate = *d
		}
	}
	return removed
}

func originTypeForEvent(e event.Event) greencard.OriginType {
	switch e.Type {
	case event.TypeVaccination:
		return greencard.OriginTypeVaccination
	case event.TypeRecovery, event.TypePositiveTest:
		return greencard.OriginTypeRecovery
	case event.TypeNegativeTest:
		return greencard.OriginTypeTest
	case event.TypeVaccinationAssessment:
		return greencard.OriginTypeVaccinationAssessment
	default:
		return greencard.OriginTypeUnknown
	}
}

func originTypeForEuAttributes(attributes event.EuCredentialAttributes) greencard.OriginType {
	switch {
	case len(attributes.Credential.Vaccinations) > 0:
		return greencard.OriginTypeVaccination
	case len(attributes.Credential.Recoveries) > 0:
		return greencard.OriginTypeRecovery
	case len(attributes.Credential.Tests) > 0:
		return greencard.OriginTypeTest
	default:
		return greencard.OriginTypeUnknown
	}
}
