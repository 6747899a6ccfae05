package fees

import (
	"errors"
	"math/big"

	"leasechain/native/access"
)

const (
	// BpsScale is the basis-point denominator: 10000 bps = 100%.
	BpsScale = 10_000
	// CeilingBps is the hard upper bound on the platform fee (10%). The
	// parameter can never be raised past it, not even by the owner.
	CeilingBps = 1_000
)

var (
	// ErrInvalidBps marks update attempts exceeding the ceiling.
	ErrInvalidBps = errors.New("fees: bps exceeds ceiling")
	// ErrCollectorUnset marks fee routing before a collector was configured.
	ErrCollectorUnset = errors.New("fees: collector not configured")

	errNilState = errors.New("fees: state not configured")
)

type engineState interface {
	FeeBpsGet() (uint64, bool, error)
	FeeBpsPut(uint64) error
	CollectorGet() ([20]byte, bool, error)
	CollectorPut([20]byte) error
}

type authority interface {
	Require(caller [20]byte, capability access.Capability) error
}

// Engine stores the platform fee parameter and the wallet fees route to.
type Engine struct {
	state engineState
	auth  authority
}

// NewEngine creates a fee engine. State and authority are wired by the caller.
func NewEngine() *Engine { return &Engine{} }

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetAuthority configures the authorization predicate gating updates.
func (e *Engine) SetAuthority(auth authority) { e.auth = auth }

// Bps returns the current fee parameter. Unset state reads as zero.
func (e *Engine) Bps() (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	bps, ok, err := e.state.FeeBpsGet()
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return bps, nil
}

// Update replaces the fee parameter. Owner-only, ceiling-bounded.
func (e *Engine) Update(caller [20]byte, bps uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.auth.Require(caller, access.CapOwner); err != nil {
		return err
	}
	if bps > CeilingBps {
		return ErrInvalidBps
	}
	return e.state.FeeBpsPut(bps)
}

// Seed installs the fee parameter without an authorization check. Genesis-only:
// existing values are left untouched.
func (e *Engine) Seed(bps uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if bps > CeilingBps {
		return ErrInvalidBps
	}
	if _, ok, err := e.state.FeeBpsGet(); err != nil {
		return err
	} else if ok {
		return nil
	}
	return e.state.FeeBpsPut(bps)
}

// Collector returns the wallet that receives platform fees.
func (e *Engine) Collector() ([20]byte, error) {
	if e == nil || e.state == nil {
		return [20]byte{}, errNilState
	}
	addr, ok, err := e.state.CollectorGet()
	if err != nil {
		return [20]byte{}, err
	}
	if !ok {
		return [20]byte{}, ErrCollectorUnset
	}
	return addr, nil
}

// SetCollector routes future fees to the provided wallet. Owner-only.
func (e *Engine) SetCollector(caller, addr [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.auth.Require(caller, access.CapOwner); err != nil {
		return err
	}
	return e.state.CollectorPut(addr)
}

// SeedCollector installs the collector wallet during genesis when unset.
func (e *Engine) SeedCollector(addr [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if _, ok, err := e.state.CollectorGet(); err != nil {
		return err
	} else if ok {
		return nil
	}
	return e.state.CollectorPut(addr)
}

// Apply computes the platform fee for a gross amount at the given bps and the
// net remainder. Floor division rounds in favour of the platform by at most
// basis-point granularity, and fee+net always reconstructs gross exactly.
func Apply(gross *big.Int, bps uint64) (fee, net *big.Int) {
	if gross == nil || gross.Sign() <= 0 {
		return big.NewInt(0), big.NewInt(0)
	}
	if bps == 0 {
		return big.NewInt(0), new(big.Int).Set(gross)
	}
	fee = new(big.Int).Mul(gross, new(big.Int).SetUint64(bps))
	fee.Div(fee, big.NewInt(BpsScale))
	if fee.Cmp(gross) > 0 {
		fee = new(big.Int).Set(gross)
	}
	net = new(big.Int).Sub(gross, fee)
	return fee, net
}
