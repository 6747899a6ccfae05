package penalty

import (
	"fmt"
	"math/big"
)

// Status enumerates the penalty contract lifecycle. Active→Fulfilled and
// Active→Claimed are the cooperative paths; Active→Disputed→Resolved is the
// contested one. Fulfilled, Claimed and Resolved are absorbing.
type Status uint8

const (
	StatusActive Status = iota
	StatusFulfilled
	StatusClaimed
	StatusDisputed
	StatusResolved
)

// Valid reports whether the status value is within the supported range.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusFulfilled, StatusClaimed, StatusDisputed, StatusResolved:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further lifecycle transition is permitted.
func (s Status) Terminal() bool {
	return s == StatusFulfilled || s == StatusClaimed || s == StatusResolved
}

// String returns the canonical lowercase name used in event attributes.
func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusFulfilled:
		return "fulfilled"
	case StatusClaimed:
		return "claimed"
	case StatusDisputed:
		return "disputed"
	case StatusResolved:
		return "resolved"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Contract is a penalty agreement: the offender stakes the penalty amount up
// front and either earns it back by fulfilling the obligation or forfeits it
// to the beneficiary after the deadline.
type Contract struct {
	ID          uint64
	Offender    [20]byte
	Beneficiary [20]byte
	Amount      *big.Int
	Deadline    uint64
	Obligation  string
	Resolution  string
	Mediator    [20]byte
	Status      Status
	CreatedAt   uint64
}

// Clone returns a deep copy of the contract.
func (c *Contract) Clone() *Contract {
	if c == nil {
		return nil
	}
	clone := *c
	if c.Amount != nil {
		clone.Amount = new(big.Int).Set(c.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	return &clone
}

// Party reports whether addr is one of the two contract parties.
func (c *Contract) Party(addr [20]byte) bool {
	if c == nil {
		return false
	}
	return addr == c.Offender || addr == c.Beneficiary
}
