package state

import (
	"fmt"

	"leasechain/native/dispute"
)

const disputeKeyFmt = "dispute/record/%d"

type storedDispute struct {
	AgreementID uint64
	FiledBy     [20]byte
	Reason      string
	Evidence    string
	Resolution  string
	Mediator    [20]byte
	Status      uint8
	CreatedAt   uint64
}

// DisputePut persists the dispute record keyed by agreement id.
func (m *Manager) DisputePut(d *dispute.Dispute) error {
	if d == nil {
		return fmt.Errorf("state: nil dispute")
	}
	if !d.Status.Valid() {
		return fmt.Errorf("state: invalid dispute status %d", d.Status)
	}
	stored := storedDispute{
		AgreementID: d.AgreementID,
		FiledBy:     d.FiledBy,
		Reason:      d.Reason,
		Evidence:    d.Evidence,
		Resolution:  d.Resolution,
		Mediator:    d.Mediator,
		Status:      uint8(d.Status),
		CreatedAt:   d.CreatedAt,
	}
	return m.KVPut([]byte(fmt.Sprintf(disputeKeyFmt, d.AgreementID)), stored)
}

// DisputeGet loads the dispute filed against the agreement, if any.
func (m *Manager) DisputeGet(agreementID uint64) (*dispute.Dispute, bool, error) {
	var stored storedDispute
	ok, err := m.KVGet([]byte(fmt.Sprintf(disputeKeyFmt, agreementID)), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	d := &dispute.Dispute{
		AgreementID: stored.AgreementID,
		FiledBy:     stored.FiledBy,
		Reason:      stored.Reason,
		Evidence:    stored.Evidence,
		Resolution:  stored.Resolution,
		Mediator:    stored.Mediator,
		Status:      dispute.Status(stored.Status),
		CreatedAt:   stored.CreatedAt,
	}
	return d, true, nil
}
