package lease

import (
	"fmt"
	"math/big"
)

// Status enumerates the agreement lifecycle. The only transitions are
// Active→Completed (cooperative completion), Active→Disputed (dispute filing)
// and Disputed→Terminated (dispute resolution). Completed and Terminated are
// absorbing.
type Status uint8

const (
	StatusActive Status = iota
	StatusCompleted
	StatusTerminated
	StatusDisputed
)

// Valid reports whether the status value is within the supported range.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusCompleted, StatusTerminated, StatusDisputed:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further lifecycle transition is permitted.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusTerminated
}

// String returns the canonical lowercase name used in event attributes.
func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusCompleted:
		return "completed"
	case StatusTerminated:
		return "terminated"
	case StatusDisputed:
		return "disputed"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Agreement binds a tenant and a landlord to a listing with an escrowed
// deposit. PeriodicAmount and DepositAmount are frozen copies of the listing
// terms at creation time; later listing updates never reach a running
// agreement.
type Agreement struct {
	ID              uint64
	ListingID       uint64
	Landlord        [20]byte
	Tenant          [20]byte
	Start           uint64
	End             uint64
	PeriodicAmount  *big.Int
	DepositAmount   *big.Int
	LastPaymentTime uint64
	Status          Status
	CreatedAt       uint64
}

// Clone returns a deep copy of the agreement.
func (a *Agreement) Clone() *Agreement {
	if a == nil {
		return nil
	}
	clone := *a
	if a.PeriodicAmount != nil {
		clone.PeriodicAmount = new(big.Int).Set(a.PeriodicAmount)
	} else {
		clone.PeriodicAmount = big.NewInt(0)
	}
	if a.DepositAmount != nil {
		clone.DepositAmount = new(big.Int).Set(a.DepositAmount)
	} else {
		clone.DepositAmount = big.NewInt(0)
	}
	return &clone
}

// Party reports whether addr is one of the two agreement counterparties.
func (a *Agreement) Party(addr [20]byte) bool {
	if a == nil {
		return false
	}
	return addr == a.Landlord || addr == a.Tenant
}

// Counterparty returns the other party of the agreement relative to addr.
func (a *Agreement) Counterparty(addr [20]byte) ([20]byte, bool) {
	if a == nil {
		return [20]byte{}, false
	}
	switch addr {
	case a.Landlord:
		return a.Tenant, true
	case a.Tenant:
		return a.Landlord, true
	default:
		return [20]byte{}, false
	}
}

// PaymentKind tags entries of the per-agreement payment history.
type PaymentKind uint8

const (
	PaymentDeposit PaymentKind = iota
	PaymentPeriodic
	PaymentDepositReturn
	PaymentDisputeRefund
	PaymentDisputePayment
)

// Inbound reports whether the record moves value into escrow custody.
func (k PaymentKind) Inbound() bool {
	return k == PaymentDeposit
}

// String returns the canonical lowercase name used in event attributes.
func (k PaymentKind) String() string {
	switch k {
	case PaymentDeposit:
		return "deposit"
	case PaymentPeriodic:
		return "periodic"
	case PaymentDepositReturn:
		return "deposit_return"
	case PaymentDisputeRefund:
		return "dispute_refund"
	case PaymentDisputePayment:
		return "dispute_payment"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// PaymentRecord is one entry of the append-only audit trail kept per
// agreement. Records are never rewritten; for a terminal agreement the inbound
// escrow entries net out exactly against the outbound ones.
type PaymentRecord struct {
	Amount     *big.Int
	Timestamp  uint64
	Kind       PaymentKind
	RecordedBy [20]byte
}

// Clone returns a deep copy of the payment record.
func (r *PaymentRecord) Clone() *PaymentRecord {
	if r == nil {
		return nil
	}
	clone := *r
	if r.Amount != nil {
		clone.Amount = new(big.Int).Set(r.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	return &clone
}
