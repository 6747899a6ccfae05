package dispute

import "fmt"

// Status enumerates the dispute lifecycle. A dispute opens against an Active
// agreement and resolving it is the only path out; resolution coincides with
// the agreement terminating.
type Status uint8

const (
	StatusOpen Status = iota
	StatusResolved
)

// Valid reports whether the status value is within the supported range.
func (s Status) Valid() bool {
	return s == StatusOpen || s == StatusResolved
}

// String returns the canonical lowercase name used in event attributes.
func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusResolved:
		return "resolved"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Dispute is the one-to-one contest record keyed by agreement id. Resolution
// and Mediator stay zero until a mediator settles it.
type Dispute struct {
	AgreementID uint64
	FiledBy     [20]byte
	Reason      string
	Evidence    string
	Resolution  string
	Mediator    [20]byte
	Status      Status
	CreatedAt   uint64
}

// Clone returns a copy of the dispute record.
func (d *Dispute) Clone() *Dispute {
	if d == nil {
		return nil
	}
	clone := *d
	return &clone
}
