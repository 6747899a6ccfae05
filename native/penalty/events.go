package penalty

import (
	"encoding/hex"
	"strconv"

	"leasechain/core/types"
)

const (
	EventTypeCreated   = "penalty.created"
	EventTypeFulfilled = "penalty.fulfilled"
	EventTypeClaimed   = "penalty.claimed"
	EventTypeDisputed  = "penalty.disputed"
	EventTypeResolved  = "penalty.resolved"
)

// NewCreatedEvent returns the canonical payload for a newly staked contract.
func NewCreatedEvent(c *Contract) *types.Event { return newPenaltyEvent(EventTypeCreated, c) }

// NewFulfilledEvent returns the canonical payload for a released stake.
func NewFulfilledEvent(c *Contract) *types.Event { return newPenaltyEvent(EventTypeFulfilled, c) }

// NewClaimedEvent returns the canonical payload for a forfeited stake.
func NewClaimedEvent(c *Contract) *types.Event { return newPenaltyEvent(EventTypeClaimed, c) }

// NewDisputedEvent returns the canonical payload for a frozen contract.
func NewDisputedEvent(c *Contract) *types.Event { return newPenaltyEvent(EventTypeDisputed, c) }

// NewResolvedEvent returns the canonical payload for a mediator settlement.
func NewResolvedEvent(c *Contract, refundPercent uint64) *types.Event {
	evt := newPenaltyEvent(EventTypeResolved, c)
	evt.Attributes["offenderRefundPercent"] = strconv.FormatUint(refundPercent, 10)
	return evt
}

func newPenaltyEvent(eventType string, c *Contract) *types.Event {
	attrs := make(map[string]string)
	if c == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["id"] = strconv.FormatUint(c.ID, 10)
	attrs["offender"] = hex.EncodeToString(c.Offender[:])
	attrs["beneficiary"] = hex.EncodeToString(c.Beneficiary[:])
	attrs["status"] = c.Status.String()
	if c.Amount != nil {
		attrs["amount"] = c.Amount.String()
	}
	attrs["deadline"] = strconv.FormatUint(c.Deadline, 10)
	return &types.Event{Type: eventType, Attributes: attrs}
}
