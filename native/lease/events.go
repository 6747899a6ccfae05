package lease

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"leasechain/core/types"
)

const (
	EventTypeCreated    = "lease.created"
	EventTypePayment    = "lease.payment"
	EventTypeCompleted  = "lease.completed"
	EventTypeDisputed   = "lease.disputed"
	EventTypeTerminated = "lease.terminated"
)

// NewCreatedEvent returns the canonical payload for a newly opened agreement.
func NewCreatedEvent(a *Agreement) *types.Event { return newLeaseEvent(EventTypeCreated, a) }

// NewPaymentEvent returns the canonical payload for a settled rent period,
// including the fee carved out of the gross amount.
func NewPaymentEvent(a *Agreement, gross, fee *big.Int) *types.Event {
	evt := newLeaseEvent(EventTypePayment, a)
	if gross != nil {
		evt.Attributes["gross"] = gross.String()
	}
	if fee != nil {
		evt.Attributes["fee"] = fee.String()
	}
	return evt
}

// NewCompletedEvent returns the canonical payload for cooperative completion.
func NewCompletedEvent(a *Agreement) *types.Event { return newLeaseEvent(EventTypeCompleted, a) }

// NewDisputedEvent returns the canonical payload emitted when an agreement is
// placed under dispute.
func NewDisputedEvent(a *Agreement) *types.Event { return newLeaseEvent(EventTypeDisputed, a) }

// NewTerminatedEvent returns the canonical payload for a dispute-driven
// termination.
func NewTerminatedEvent(a *Agreement) *types.Event { return newLeaseEvent(EventTypeTerminated, a) }

func newLeaseEvent(eventType string, a *Agreement) *types.Event {
	attrs := make(map[string]string)
	if a == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["id"] = strconv.FormatUint(a.ID, 10)
	attrs["listingId"] = strconv.FormatUint(a.ListingID, 10)
	attrs["landlord"] = hex.EncodeToString(a.Landlord[:])
	attrs["tenant"] = hex.EncodeToString(a.Tenant[:])
	attrs["status"] = a.Status.String()
	if a.DepositAmount != nil {
		attrs["deposit"] = a.DepositAmount.String()
	}
	if a.PeriodicAmount != nil {
		attrs["periodicAmount"] = a.PeriodicAmount.String()
	}
	attrs["start"] = strconv.FormatUint(a.Start, 10)
	attrs["end"] = strconv.FormatUint(a.End, 10)
	return &types.Event{Type: eventType, Attributes: attrs}
}
