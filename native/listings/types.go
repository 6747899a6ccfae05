package listings

import (
	"fmt"
	"math/big"
)

// Status enumerates the lifecycle states of a property listing.
type Status uint8

const (
	StatusActive Status = iota
	StatusRented
	StatusInactive
)

// Valid reports whether the status value is within the supported range.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusRented, StatusInactive:
		return true
	default:
		return false
	}
}

// String returns the canonical lowercase name used in event attributes.
func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusRented:
		return "rented"
	case StatusInactive:
		return "inactive"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Terms captures the owner-mutable portion of a listing. Period bounds are
// expressed in logical time units and recorded on the listing at creation, so
// later term changes never affect agreements already running against it.
type Terms struct {
	PricePerPeriod *big.Int
	DepositAmount  *big.Int
	MinPeriod      uint64
	MaxPeriod      uint64
}

// Validate enforces the invariants required of every stored listing:
// positive price, non-negative deposit and a non-inverted period range.
func (t Terms) Validate() error {
	if t.PricePerPeriod == nil || t.PricePerPeriod.Sign() <= 0 {
		return ErrInvalidTerms
	}
	if t.DepositAmount == nil || t.DepositAmount.Sign() < 0 {
		return ErrInvalidTerms
	}
	if t.MaxPeriod < t.MinPeriod {
		return ErrInvalidTerms
	}
	return nil
}

// Listing is a property posting owned by its creator. It is never deleted;
// retirement is expressed through StatusInactive.
type Listing struct {
	ID             uint64
	Owner          [20]byte
	PricePerPeriod *big.Int
	DepositAmount  *big.Int
	MinPeriod      uint64
	MaxPeriod      uint64
	Status         Status
	CreatedAt      uint64
}

// Clone returns a deep copy so callers can mutate the result without touching
// the stored instance.
func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	clone := *l
	if l.PricePerPeriod != nil {
		clone.PricePerPeriod = new(big.Int).Set(l.PricePerPeriod)
	} else {
		clone.PricePerPeriod = big.NewInt(0)
	}
	if l.DepositAmount != nil {
		clone.DepositAmount = new(big.Int).Set(l.DepositAmount)
	} else {
		clone.DepositAmount = big.NewInt(0)
	}
	return &clone
}

// Terms returns the mutable term fields of the listing.
func (l *Listing) Terms() Terms {
	if l == nil {
		return Terms{}
	}
	return Terms{
		PricePerPeriod: l.PricePerPeriod,
		DepositAmount:  l.DepositAmount,
		MinPeriod:      l.MinPeriod,
		MaxPeriod:      l.MaxPeriod,
	}
}
