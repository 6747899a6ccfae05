package dispute

import (
	"errors"
	"math/big"
	"strings"
	"time"

	"leasechain/core/events"
	"leasechain/core/types"
	"leasechain/native/access"
	"leasechain/native/lease"
)

var (
	// ErrNoDispute marks resolution attempts against agreements that were
	// never disputed.
	ErrNoDispute = errors.New("dispute: no dispute on record")
	// ErrDisputeExists marks a second filing against the same agreement.
	ErrDisputeExists = errors.New("dispute: dispute already filed")
	// ErrNotAuthorized marks filings from identities outside the agreement.
	ErrNotAuthorized = errors.New("dispute: not authorized")
	// ErrUnauthorizedMediator marks resolution attempts by callers outside
	// the mediator set.
	ErrUnauthorizedMediator = errors.New("dispute: unauthorized mediator")
	// ErrInvalidState marks filings against non-Active agreements and
	// resolutions of already-settled disputes.
	ErrInvalidState = errors.New("dispute: invalid state")
	// ErrInvalidPercent marks refund percentages outside [0,100].
	ErrInvalidPercent = errors.New("dispute: refund percent out of range")
	// ErrInvalidReason marks filings with an empty reason.
	ErrInvalidReason = errors.New("dispute: reason required")

	errNilState = errors.New("dispute: state not configured")
)

type engineState interface {
	DisputePut(*Dispute) error
	DisputeGet(agreementID uint64) (*Dispute, bool, error)
}

type authority interface {
	Require(caller [20]byte, capability access.Capability) error
}

type disputeEvent struct {
	evt *types.Event
}

func (e disputeEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e disputeEvent) Event() *types.Event { return e.evt }

// Engine suspends the normal agreement flow and routes decision rights to the
// mediator set. It is the only component authorized to force an agreement into
// a terminal state outside cooperative completion.
type Engine struct {
	state   engineState
	leases  *lease.Engine
	auth    authority
	emitter events.Emitter
	nowFn   func() uint64
}

// NewEngine creates a dispute engine layered over the lease engine.
func NewEngine(leases *lease.Engine) *Engine {
	return &Engine{
		leases:  leases,
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

// SetNowFunc overrides the logical clock used for filing timestamps.
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
	e.emitter.Emit(disputeEvent{evt: evt})
}

func (e *Engine) now() uint64 {
	if e == nil || e.nowFn == nil {
		return uint64(time.Now().Unix())
	}
	return e.nowFn()
}

// File opens a dispute against an Active agreement. Only the two agreement
// parties may file, and only one dispute may ever exist per agreement. The
// agreement flips to Disputed, freezing the normal payment and completion
// paths.
func (e *Engine) File(caller [20]byte, agreementID uint64, reason, evidence string) (*Dispute, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	agreement, err := e.leases.Get(agreementID)
	if err != nil {
		return nil, err
	}
	if !agreement.Party(caller) {
		return nil, ErrNotAuthorized
	}
	if agreement.Status != lease.StatusActive {
		return nil, ErrInvalidState
	}
	if strings.TrimSpace(reason) == "" {
		return nil, ErrInvalidReason
	}
	if _, ok, err := e.state.DisputeGet(agreementID); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrDisputeExists
	}
	d := &Dispute{
		AgreementID: agreementID,
		FiledBy:     caller,
		Reason:      reason,
		Evidence:    evidence,
		Status:      StatusOpen,
		CreatedAt:   e.now(),
	}
	if err := e.state.DisputePut(d); err != nil {
		return nil, err
	}
	if err := e.leases.MarkDisputed(agreementID); err != nil {
		return nil, err
	}
	e.emit(NewFiledEvent(d))
	return d.Clone(), nil
}

// Resolve settles an open dispute. Only mediators may resolve. The escrowed
// deposit partitions exactly: tenantRefund = floor(deposit*percent/100) and the
// landlord receives the remainder, so refund+remainder always equals the
// original deposit. Resolution terminates the agreement and re-opens the
// listing.
func (e *Engine) Resolve(caller [20]byte, agreementID uint64, resolution string, tenantRefundPercent uint64) (*Dispute, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := e.auth.Require(caller, access.CapMediator); err != nil {
		if errors.Is(err, access.ErrNotAuthorized) {
			return nil, ErrUnauthorizedMediator
		}
		return nil, err
	}
	d, ok, err := e.state.DisputeGet(agreementID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoDispute
	}
	if d.Status != StatusOpen {
		return nil, ErrInvalidState
	}
	if tenantRefundPercent > 100 {
		return nil, ErrInvalidPercent
	}
	agreement, err := e.leases.Get(agreementID)
	if err != nil {
		return nil, err
	}
	tenantRefund := SplitRefund(agreement.DepositAmount, tenantRefundPercent)
	if err := e.leases.Terminate(agreementID, caller, tenantRefund); err != nil {
		return nil, err
	}
	d.Status = StatusResolved
	d.Resolution = resolution
	d.Mediator = caller
	if err := e.state.DisputePut(d); err != nil {
		return nil, err
	}
	e.emit(NewResolvedEvent(d, tenantRefundPercent))
	return d.Clone(), nil
}

// Get returns the dispute filed against an agreement, if any.
func (e *Engine) Get(agreementID uint64) (*Dispute, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	d, ok, err := e.state.DisputeGet(agreementID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoDispute
	}
	return d.Clone(), nil
}

// SplitRefund computes the tenant's share of the deposit for a refund
// percentage using floor division. The integer-division remainder stays with
// the landlord's side, so the two legs always partition the deposit exactly.
func SplitRefund(deposit *big.Int, percent uint64) *big.Int {
	if deposit == nil || deposit.Sign() <= 0 || percent == 0 {
		return big.NewInt(0)
	}
	refund := new(big.Int).Mul(deposit, new(big.Int).SetUint64(percent))
	return refund.Div(refund, big.NewInt(100))
}
