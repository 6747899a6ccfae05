package state

import (
	"fmt"
	"math/big"

	"leasechain/native/penalty"
)

const penaltyKeyFmt = "penalty/record/%d"

type storedPenalty struct {
	ID          uint64
	Offender    [20]byte
	Beneficiary [20]byte
	Amount      *big.Int
	Deadline    uint64
	Obligation  string
	Resolution  string
	Mediator    [20]byte
	Status      uint8
	CreatedAt   uint64
}

// PenaltyPut persists a penalty contract record.
func (m *Manager) PenaltyPut(c *penalty.Contract) error {
	if c == nil {
		return fmt.Errorf("state: nil penalty contract")
	}
	if !c.Status.Valid() {
		return fmt.Errorf("state: invalid penalty status %d", c.Status)
	}
	stored := storedPenalty{
		ID:          c.ID,
		Offender:    c.Offender,
		Beneficiary: c.Beneficiary,
		Amount:      c.Amount,
		Deadline:    c.Deadline,
		Obligation:  c.Obligation,
		Resolution:  c.Resolution,
		Mediator:    c.Mediator,
		Status:      uint8(c.Status),
		CreatedAt:   c.CreatedAt,
	}
	return m.KVPut([]byte(fmt.Sprintf(penaltyKeyFmt, c.ID)), stored)
}

// PenaltyGet loads a penalty contract record by id.
func (m *Manager) PenaltyGet(id uint64) (*penalty.Contract, bool, error) {
	var stored storedPenalty
	ok, err := m.KVGet([]byte(fmt.Sprintf(penaltyKeyFmt, id)), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	c := &penalty.Contract{
		ID:          stored.ID,
		Offender:    stored.Offender,
		Beneficiary: stored.Beneficiary,
		Amount:      stored.Amount,
		Deadline:    stored.Deadline,
		Obligation:  stored.Obligation,
		Resolution:  stored.Resolution,
		Mediator:    stored.Mediator,
		Status:      penalty.Status(stored.Status),
		CreatedAt:   stored.CreatedAt,
	}
	return c, true, nil
}
