package dispute

import (
	"encoding/hex"
	"strconv"

	"leasechain/core/types"
)

const (
	EventTypeFiled    = "dispute.filed"
	EventTypeResolved = "dispute.resolved"
)

// NewFiledEvent returns the canonical payload for a newly opened dispute.
func NewFiledEvent(d *Dispute) *types.Event { return newDisputeEvent(EventTypeFiled, d) }

// NewResolvedEvent returns the canonical payload for a mediator settlement.
func NewResolvedEvent(d *Dispute, refundPercent uint64) *types.Event {
	evt := newDisputeEvent(EventTypeResolved, d)
	evt.Attributes["tenantRefundPercent"] = strconv.FormatUint(refundPercent, 10)
	return evt
}

func newDisputeEvent(eventType string, d *Dispute) *types.Event {
	attrs := make(map[string]string)
	if d == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["agreementId"] = strconv.FormatUint(d.AgreementID, 10)
	attrs["filedBy"] = hex.EncodeToString(d.FiledBy[:])
	attrs["status"] = d.Status.String()
	if d.Status == StatusResolved {
		attrs["mediator"] = hex.EncodeToString(d.Mediator[:])
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}
