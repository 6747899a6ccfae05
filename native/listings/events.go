package listings

import (
	"encoding/hex"
	"strconv"

	"leasechain/core/types"
)

const (
	EventTypeCreated       = "listing.created"
	EventTypeUpdated       = "listing.updated"
	EventTypeStatusChanged = "listing.status_changed"
)

// NewCreatedEvent returns the canonical payload for a newly registered listing.
func NewCreatedEvent(l *Listing) *types.Event { return newListingEvent(EventTypeCreated, l) }

// NewUpdatedEvent returns the canonical payload for a terms update.
func NewUpdatedEvent(l *Listing) *types.Event { return newListingEvent(EventTypeUpdated, l) }

// NewStatusChangedEvent returns the canonical payload for a status transition.
func NewStatusChangedEvent(l *Listing) *types.Event {
	return newListingEvent(EventTypeStatusChanged, l)
}

func newListingEvent(eventType string, l *Listing) *types.Event {
	attrs := make(map[string]string)
	if l == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["id"] = strconv.FormatUint(l.ID, 10)
	attrs["owner"] = hex.EncodeToString(l.Owner[:])
	attrs["status"] = l.Status.String()
	if l.PricePerPeriod != nil {
		attrs["pricePerPeriod"] = l.PricePerPeriod.String()
	}
	if l.DepositAmount != nil {
		attrs["depositAmount"] = l.DepositAmount.String()
	}
	attrs["minPeriod"] = strconv.FormatUint(l.MinPeriod, 10)
	attrs["maxPeriod"] = strconv.FormatUint(l.MaxPeriod, 10)
	return &types.Event{Type: eventType, Attributes: attrs}
}
