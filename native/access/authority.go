package access

import "errors"

// Role names persisted in the role store. The owner is a singleton record, not
// a role set, so it has no entry here.
const (
	RoleAdmin    = "admin"
	RoleMediator = "mediator"
)

// Capability identifies the authorization level an operation entry point
// demands. Each entry point evaluates exactly one capability check.
type Capability uint8

const (
	// CapOwner restricts an operation to the contract owner.
	CapOwner Capability = iota
	// CapAdmin admits the owner or any administrator.
	CapAdmin
	// CapMediator admits members of the mediator set only. Owner and
	// administrators do not implicitly hold it.
	CapMediator
)

var (
	// ErrNotAuthorized marks callers lacking the demanded capability.
	ErrNotAuthorized = errors.New("access: not authorized")
	// ErrOwnerUnset marks operations attempted before genesis installed an owner.
	ErrOwnerUnset = errors.New("access: owner not configured")

	errNilState = errors.New("access: state not configured")
)

type roleState interface {
	OwnerGet() ([20]byte, bool, error)
	OwnerPut([20]byte) error
	HasRole(role string, addr [20]byte) bool
	SetRole(role string, addr [20]byte) error
	RemoveRole(role string, addr [20]byte) error
}

// Authority is the single authorization predicate used across the engines.
type Authority struct {
	state roleState
}

// NewAuthority creates an authority over the provided role state.
func NewAuthority() *Authority { return &Authority{} }

// SetState configures the state backend used by the authority.
func (a *Authority) SetState(state roleState) { a.state = state }

// Owner returns the current owner identity.
func (a *Authority) Owner() ([20]byte, error) {
	if a == nil || a.state == nil {
		return [20]byte{}, errNilState
	}
	owner, ok, err := a.state.OwnerGet()
	if err != nil {
		return [20]byte{}, err
	}
	if !ok {
		return [20]byte{}, ErrOwnerUnset
	}
	return owner, nil
}

// Require reports whether the caller holds the demanded capability. It is the
// only authorization entry point; call sites never inspect role sets directly.
func (a *Authority) Require(caller [20]byte, capability Capability) error {
	if a == nil || a.state == nil {
		return errNilState
	}
	switch capability {
	case CapOwner:
		owner, err := a.Owner()
		if err != nil {
			return err
		}
		if caller != owner {
			return ErrNotAuthorized
		}
		return nil
	case CapAdmin:
		owner, err := a.Owner()
		if err != nil {
			return err
		}
		if caller == owner || a.state.HasRole(RoleAdmin, caller) {
			return nil
		}
		return ErrNotAuthorized
	case CapMediator:
		if a.state.HasRole(RoleMediator, caller) {
			return nil
		}
		return ErrNotAuthorized
	default:
		return ErrNotAuthorized
	}
}

// TransferOwner hands the owner record to a new identity. Owner-only.
func (a *Authority) TransferOwner(caller, next [20]byte) error {
	if err := a.Require(caller, CapOwner); err != nil {
		return err
	}
	return a.state.OwnerPut(next)
}

// InstallOwner seeds the owner record when none exists yet. Genesis-only: it
// refuses to overwrite an installed owner.
func (a *Authority) InstallOwner(owner [20]byte) error {
	if a == nil || a.state == nil {
		return errNilState
	}
	if _, ok, err := a.state.OwnerGet(); err != nil {
		return err
	} else if ok {
		return ErrNotAuthorized
	}
	return a.state.OwnerPut(owner)
}

// AddAdmin adds an administrator. Owner-only.
func (a *Authority) AddAdmin(caller, addr [20]byte) error {
	if err := a.Require(caller, CapOwner); err != nil {
		return err
	}
	return a.state.SetRole(RoleAdmin, addr)
}

// RemoveAdmin removes an administrator. Owner-only.
func (a *Authority) RemoveAdmin(caller, addr [20]byte) error {
	if err := a.Require(caller, CapOwner); err != nil {
		return err
	}
	return a.state.RemoveRole(RoleAdmin, addr)
}

// AddMediator adds a mediator. Owner or administrator.
func (a *Authority) AddMediator(caller, addr [20]byte) error {
	if err := a.Require(caller, CapAdmin); err != nil {
		return err
	}
	return a.state.SetRole(RoleMediator, addr)
}

// RemoveMediator removes a mediator. Owner or administrator.
func (a *Authority) RemoveMediator(caller, addr [20]byte) error {
	if err := a.Require(caller, CapAdmin); err != nil {
		return err
	}
	return a.state.RemoveRole(RoleMediator, addr)
}
