package penalty

import (
	"errors"
	"math/big"
	"strings"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"leasechain/core/events"
	"leasechain/core/types"
	"leasechain/native/access"
)

var (
	// ErrNotFound marks a lookup for a contract id that was never allocated.
	ErrNotFound = errors.New("penalty: contract not found")
	// ErrNotAuthorized marks calls by identities outside the required party.
	ErrNotAuthorized = errors.New("penalty: not authorized")
	// ErrInvalidTerms marks malformed contract parameters.
	ErrInvalidTerms = errors.New("penalty: invalid terms")
	// ErrInvalidState marks operations attempted outside the permitting status.
	ErrInvalidState = errors.New("penalty: invalid state")
	// ErrTooEarly marks claims before the contract deadline.
	ErrTooEarly = errors.New("penalty: deadline not reached")
	// ErrUnauthorizedMediator marks resolutions by callers outside the
	// mediator set.
	ErrUnauthorizedMediator = errors.New("penalty: unauthorized mediator")
	// ErrInvalidPercent marks refund percentages outside [0,100].
	ErrInvalidPercent = errors.New("penalty: refund percent out of range")

	errNilState = errors.New("penalty: state not configured")
)

const idCounter = "penalty/seq"

// vaultAddress is the custodian for staked penalty amounts, separate from the
// rental deposit vault so the two escrow pools never mix.
var vaultAddress = func() [20]byte {
	hash := ethcrypto.Keccak256([]byte("leasechain/vault/penalty"))
	var addr [20]byte
	copy(addr[:], hash[12:])
	return addr
}()

// VaultAddress returns the escrow custodian account for penalty stakes.
func VaultAddress() [20]byte { return vaultAddress }

type engineState interface {
	PenaltyPut(*Contract) error
	PenaltyGet(id uint64) (*Contract, bool, error)
	Transfer(from, to [20]byte, amount *big.Int) error
	Balance(addr [20]byte) (*big.Int, error)
	CounterNext(name string) (uint64, error)
}

type authority interface {
	Require(caller [20]byte, capability access.Capability) error
}

type penaltyEvent struct {
	evt *types.Event
}

func (e penaltyEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e penaltyEvent) Event() *types.Event { return e.evt }

// Engine drives penalty contracts: the simpler restatement of the escrow
// pattern where a single staked amount either returns to the offender or
// forfeits to the beneficiary.
type Engine struct {
	state   engineState
	auth    authority
	emitter events.Emitter
	nowFn   func() uint64
}

// NewEngine creates a penalty engine.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() uint64 { return uint64(time.Now().Unix()) },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetAuthority configures the predicate gating mediator resolutions.
func (e *Engine) SetAuthority(auth authority) { e.auth = auth }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the logical clock used for deadlines and timestamps.
func (e *Engine) SetNowFunc(now func() uint64) {
	if now == nil {
		e.nowFn = func() uint64 { return uint64(time.Now().Unix()) }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(penaltyEvent{evt: evt})
}

func (e *Engine) now() uint64 {
	if e == nil || e.nowFn == nil {
		return uint64(time.Now().Unix())
	}
	return e.nowFn()
}

func (e *Engine) load(id uint64) (*Contract, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	contract, ok, err := e.state.PenaltyGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return contract, nil
}

// Create opens a penalty contract. The caller is the offender and stakes the
// full penalty amount into the custodian vault. The id is allocated after all
// precondition checks and before the stake transfer.
func (e *Engine) Create(caller, beneficiary [20]byte, amount *big.Int, deadline uint64, obligation string) (*Contract, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidTerms
	}
	if caller == beneficiary {
		return nil, ErrInvalidTerms
	}
	if strings.TrimSpace(obligation) == "" {
		return nil, ErrInvalidTerms
	}
	now := e.now()
	if deadline < now {
		return nil, ErrInvalidTerms
	}
	id, err := e.state.CounterNext(idCounter)
	if err != nil {
		return nil, err
	}
	if err := e.state.Transfer(caller, vaultAddress, amount); err != nil {
		return nil, err
	}
	contract := &Contract{
		ID:          id,
		Offender:    caller,
		Beneficiary: beneficiary,
		Amount:      new(big.Int).Set(amount),
		Deadline:    deadline,
		Obligation:  obligation,
		Status:      StatusActive,
		CreatedAt:   now,
	}
	if err := e.state.PenaltyPut(contract); err != nil {
		return nil, err
	}
	e.emit(NewCreatedEvent(contract))
	return contract.Clone(), nil
}

// Fulfill acknowledges the obligation was met: the beneficiary releases the
// stake back to the offender.
func (e *Engine) Fulfill(caller [20]byte, id uint64) error {
	contract, err := e.load(id)
	if err != nil {
		return err
	}
	if contract.Status != StatusActive {
		return ErrInvalidState
	}
	if caller != contract.Beneficiary {
		return ErrNotAuthorized
	}
	if err := e.state.Transfer(vaultAddress, contract.Offender, contract.Amount); err != nil {
		return err
	}
	contract.Status = StatusFulfilled
	if err := e.state.PenaltyPut(contract); err != nil {
		return err
	}
	e.emit(NewFulfilledEvent(contract))
	return nil
}

// Claim forfeits the stake to the beneficiary once the deadline passed with
// the obligation still outstanding.
func (e *Engine) Claim(caller [20]byte, id uint64) error {
	contract, err := e.load(id)
	if err != nil {
		return err
	}
	if contract.Status != StatusActive {
		return ErrInvalidState
	}
	if caller != contract.Beneficiary {
		return ErrNotAuthorized
	}
	if e.now() < contract.Deadline {
		return ErrTooEarly
	}
	if err := e.state.Transfer(vaultAddress, contract.Beneficiary, contract.Amount); err != nil {
		return err
	}
	contract.Status = StatusClaimed
	if err := e.state.PenaltyPut(contract); err != nil {
		return err
	}
	e.emit(NewClaimedEvent(contract))
	return nil
}

// Dispute freezes an Active contract pending mediator resolution. Either party
// may invoke it.
func (e *Engine) Dispute(caller [20]byte, id uint64) error {
	contract, err := e.load(id)
	if err != nil {
		return err
	}
	if contract.Status != StatusActive {
		return ErrInvalidState
	}
	if !contract.Party(caller) {
		return ErrNotAuthorized
	}
	contract.Status = StatusDisputed
	if err := e.state.PenaltyPut(contract); err != nil {
		return err
	}
	e.emit(NewDisputedEvent(contract))
	return nil
}

// Resolve settles a disputed contract with the same exact split rule as rental
// disputes: offenderRefund = floor(amount*percent/100) returns to the offender
// and the remainder forfeits to the beneficiary.
func (e *Engine) Resolve(caller [20]byte, id uint64, resolution string, offenderRefundPercent uint64) error {
	contract, err := e.load(id)
	if err != nil {
		return err
	}
	if err := e.auth.Require(caller, access.CapMediator); err != nil {
		if errors.Is(err, access.ErrNotAuthorized) {
			return ErrUnauthorizedMediator
		}
		return err
	}
	if contract.Status != StatusDisputed {
		return ErrInvalidState
	}
	if offenderRefundPercent > 100 {
		return ErrInvalidPercent
	}
	refund := big.NewInt(0)
	if offenderRefundPercent > 0 {
		refund = new(big.Int).Mul(contract.Amount, new(big.Int).SetUint64(offenderRefundPercent))
		refund.Div(refund, big.NewInt(100))
	}
	forfeit := new(big.Int).Sub(contract.Amount, refund)
	vaultBalance, err := e.state.Balance(vaultAddress)
	if err != nil {
		return err
	}
	if vaultBalance.Cmp(contract.Amount) < 0 {
		return types.ErrInsufficientFunds
	}
	if refund.Sign() > 0 {
		if err := e.state.Transfer(vaultAddress, contract.Offender, refund); err != nil {
			return err
		}
	}
	if forfeit.Sign() > 0 {
		if err := e.state.Transfer(vaultAddress, contract.Beneficiary, forfeit); err != nil {
			return err
		}
	}
	contract.Status = StatusResolved
	contract.Resolution = resolution
	contract.Mediator = caller
	if err := e.state.PenaltyPut(contract); err != nil {
		return err
	}
	e.emit(NewResolvedEvent(contract, offenderRefundPercent))
	return nil
}

// Get returns a copy of the stored contract.
func (e *Engine) Get(id uint64) (*Contract, error) {
	contract, err := e.load(id)
	if err != nil {
		return nil, err
	}
	return contract.Clone(), nil
}
