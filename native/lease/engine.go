package lease

import (
	"errors"
	"math/big"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"leasechain/core/events"
	"leasechain/core/types"
	"leasechain/native/fees"
	"leasechain/native/listings"
)

var (
	// ErrNotFound marks a lookup for an agreement id that was never allocated.
	ErrNotFound = errors.New("lease: agreement not found")
	// ErrNotAuthorized marks calls by identities outside the required party.
	ErrNotAuthorized = errors.New("lease: not authorized")
	// ErrNotAvailable marks creation attempts against a listing that is not
	// open for rental.
	ErrNotAvailable = errors.New("lease: listing not available")
	// ErrInvalidTerms marks malformed agreement parameters.
	ErrInvalidTerms = errors.New("lease: invalid terms")
	// ErrInvalidState marks operations attempted outside the permitting status.
	ErrInvalidState = errors.New("lease: invalid state")
	// ErrTooEarly marks completion attempts before the agreement end time.
	ErrTooEarly = errors.New("lease: completion before end time")
	// ErrCapacityExceeded marks payment history growth past the configured cap.
	ErrCapacityExceeded = errors.New("lease: payment history capacity exceeded")

	errNilState = errors.New("lease: state not configured")
)

const (
	idCounter = "lease/seq"

	// DefaultHistoryCap bounds the per-agreement payment history. Overflow is
	// an explicit rejection, never silent truncation.
	DefaultHistoryCap = 256
)

// vaultAddress is the custodian account escrowed deposits live in. It is
// derived from a fixed label so no key material can ever spend from it.
var vaultAddress = func() [20]byte {
	hash := ethcrypto.Keccak256([]byte("leasechain/vault/lease"))
	var addr [20]byte
	copy(addr[:], hash[12:])
	return addr
}()

// VaultAddress returns the escrow custodian account for rental deposits.
func VaultAddress() [20]byte { return vaultAddress }

type engineState interface {
	AgreementPut(*Agreement) error
	AgreementGet(id uint64) (*Agreement, bool, error)
	PaymentAppend(agreementID uint64, record *PaymentRecord) error
	Payments(agreementID uint64) ([]*PaymentRecord, error)
	Transfer(from, to [20]byte, amount *big.Int) error
	Balance(addr [20]byte) (*big.Int, error)
	CounterNext(name string) (uint64, error)
}

type feePolicy interface {
	Bps() (uint64, error)
	Collector() ([20]byte, error)
}

type reputationLedger interface {
	Touch(addr [20]byte) error
}

type leaseEvent struct {
	evt *types.Event
}

func (e leaseEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e leaseEvent) Event() *types.Event { return e.evt }

// Engine drives the agreement lifecycle: escrowed creation, periodic rent with
// the platform fee split, and cooperative completion. The dispute engine layers
// the contested path on top through MarkDisputed and Terminate.
type Engine struct {
	state      engineState
	listings   *listings.Engine
	fees       feePolicy
	reputation reputationLedger
	emitter    events.Emitter
	nowFn      func() uint64
	historyCap int
}

// NewEngine creates a lease engine bound to the listing registry.
func NewEngine(reg *listings.Engine) *Engine {
	return &Engine{
		listings:   reg,
		emitter:    events.NoopEmitter{},
		nowFn:      func() uint64 { return uint64(time.Now().Unix()) },
		historyCap: DefaultHistoryCap,
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetFeePolicy configures the fee parameter source for rent splits.
func (e *Engine) SetFeePolicy(fees feePolicy) { e.fees = fees }

// SetReputation configures the ledger used for lazy profile initialisation.
func (e *Engine) SetReputation(ledger reputationLedger) { e.reputation = ledger }

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

// SetHistoryCap bounds the per-agreement payment history. Non-positive values
// restore the default.
func (e *Engine) SetHistoryCap(cap int) {
	if cap <= 0 {
		e.historyCap = DefaultHistoryCap
		return
	}
	e.historyCap = cap
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(leaseEvent{evt: evt})
}

func (e *Engine) now() uint64 {
	if e == nil || e.nowFn == nil {
		return uint64(time.Now().Unix())
	}
	return e.nowFn()
}

func (e *Engine) load(id uint64) (*Agreement, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	agreement, ok, err := e.state.AgreementGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return agreement, nil
}

func (e *Engine) ensureHistoryRoom(id uint64, incoming int) error {
	records, err := e.state.Payments(id)
	if err != nil {
		return err
	}
	if len(records)+incoming > e.historyCap {
		return ErrCapacityExceeded
	}
	return nil
}

// Create opens an agreement against an Active listing and escrows the deposit
// in the custodian vault. The listing owner becomes the landlord and the
// caller the tenant; the listing flips to Rented. The id is allocated strictly
// after all precondition checks and strictly before the escrow transfer.
func (e *Engine) Create(caller [20]byte, listingID, start, end uint64, deposit *big.Int) (*Agreement, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	listing, err := e.listings.Get(listingID)
	if err != nil {
		return nil, err
	}
	if listing.Status != listings.StatusActive {
		return nil, ErrNotAvailable
	}
	if caller == listing.Owner {
		return nil, ErrInvalidTerms
	}
	if end < start {
		return nil, ErrInvalidTerms
	}
	duration := end - start
	if duration < listing.MinPeriod || duration > listing.MaxPeriod {
		return nil, ErrInvalidTerms
	}
	if deposit == nil || deposit.Cmp(listing.DepositAmount) != 0 {
		return nil, ErrInvalidTerms
	}
	id, err := e.state.CounterNext(idCounter)
	if err != nil {
		return nil, err
	}
	if err := e.state.Transfer(caller, vaultAddress, deposit); err != nil {
		return nil, err
	}
	now := e.now()
	agreement := &Agreement{
		ID:             id,
		ListingID:      listingID,
		Landlord:       listing.Owner,
		Tenant:         caller,
		Start:          start,
		End:            end,
		PeriodicAmount: new(big.Int).Set(listing.PricePerPeriod),
		DepositAmount:  new(big.Int).Set(deposit),
		Status:         StatusActive,
		CreatedAt:      now,
	}
	if err := e.state.AgreementPut(agreement); err != nil {
		return nil, err
	}
	if err := e.listings.MarkRented(listingID); err != nil {
		return nil, err
	}
	if err := e.state.PaymentAppend(id, &PaymentRecord{
		Amount:     new(big.Int).Set(deposit),
		Timestamp:  now,
		Kind:       PaymentDeposit,
		RecordedBy: caller,
	}); err != nil {
		return nil, err
	}
	if e.reputation != nil {
		if err := e.reputation.Touch(caller); err != nil {
			return nil, err
		}
	}
	e.emit(NewCreatedEvent(agreement))
	return agreement.Clone(), nil
}

// PayPeriodic settles one rent period. Only the tenant may pay and only while
// the agreement is Active. The gross amount splits into the landlord's net and
// the platform fee; the two legs debit the same account, so the upfront
// balance check guarantees both succeed or neither runs.
func (e *Engine) PayPeriodic(caller [20]byte, id uint64) error {
	agreement, err := e.load(id)
	if err != nil {
		return err
	}
	if agreement.Status != StatusActive {
		return ErrInvalidState
	}
	if caller != agreement.Tenant {
		return ErrNotAuthorized
	}
	gross := agreement.PeriodicAmount
	if gross == nil || gross.Sign() <= 0 {
		return ErrInvalidTerms
	}
	bps, err := e.fees.Bps()
	if err != nil {
		return err
	}
	fee, net := fees.Apply(gross, bps)
	var collector [20]byte
	if fee.Sign() > 0 {
		collector, err = e.fees.Collector()
		if err != nil {
			return err
		}
	}
	if err := e.ensureHistoryRoom(id, 1); err != nil {
		return err
	}
	balance, err := e.state.Balance(caller)
	if err != nil {
		return err
	}
	if balance.Cmp(gross) < 0 {
		return types.ErrInsufficientFunds
	}
	if err := e.state.Transfer(caller, agreement.Landlord, net); err != nil {
		return err
	}
	if fee.Sign() > 0 {
		if err := e.state.Transfer(caller, collector, fee); err != nil {
			return err
		}
	}
	now := e.now()
	agreement.LastPaymentTime = now
	if err := e.state.AgreementPut(agreement); err != nil {
		return err
	}
	if err := e.state.PaymentAppend(id, &PaymentRecord{
		Amount:     new(big.Int).Set(gross),
		Timestamp:  now,
		Kind:       PaymentPeriodic,
		RecordedBy: caller,
	}); err != nil {
		return err
	}
	e.emit(NewPaymentEvent(agreement, gross, fee))
	return nil
}

// Complete finishes the agreement cooperatively: the landlord calls it at or
// after the end time, the full deposit returns from the vault to the tenant
// and the listing re-opens.
func (e *Engine) Complete(caller [20]byte, id uint64) error {
	agreement, err := e.load(id)
	if err != nil {
		return err
	}
	if agreement.Status != StatusActive {
		return ErrInvalidState
	}
	if caller != agreement.Landlord {
		return ErrNotAuthorized
	}
	now := e.now()
	if now < agreement.End {
		return ErrTooEarly
	}
	if err := e.ensureHistoryRoom(id, 1); err != nil {
		return err
	}
	if err := e.state.Transfer(vaultAddress, agreement.Tenant, agreement.DepositAmount); err != nil {
		return err
	}
	agreement.Status = StatusCompleted
	if err := e.state.AgreementPut(agreement); err != nil {
		return err
	}
	if err := e.state.PaymentAppend(id, &PaymentRecord{
		Amount:     new(big.Int).Set(agreement.DepositAmount),
		Timestamp:  now,
		Kind:       PaymentDepositReturn,
		RecordedBy: caller,
	}); err != nil {
		return err
	}
	if err := e.listings.MarkAvailable(agreement.ListingID); err != nil {
		return err
	}
	e.emit(NewCompletedEvent(agreement))
	return nil
}

// Get returns a copy of the stored agreement.
func (e *Engine) Get(id uint64) (*Agreement, error) {
	agreement, err := e.load(id)
	if err != nil {
		return nil, err
	}
	return agreement.Clone(), nil
}

// Payments returns the append-only payment history of an agreement.
func (e *Engine) Payments(id uint64) ([]*PaymentRecord, error) {
	if _, err := e.load(id); err != nil {
		return nil, err
	}
	return e.state.Payments(id)
}

// MarkDisputed flips an Active agreement to Disputed. Reserved for the dispute
// engine, which owns the filing preconditions.
func (e *Engine) MarkDisputed(id uint64) error {
	agreement, err := e.load(id)
	if err != nil {
		return err
	}
	if agreement.Status != StatusActive {
		return ErrInvalidState
	}
	agreement.Status = StatusDisputed
	if err := e.state.AgreementPut(agreement); err != nil {
		return err
	}
	e.emit(NewDisputedEvent(agreement))
	return nil
}

// Terminate settles a Disputed agreement according to the mediator's split.
// tenantRefund goes back to the tenant and the remainder of the deposit to the
// landlord; the two legs partition the deposit exactly. Zero-amount legs are
// skipped. The listing re-opens for new rentals.
func (e *Engine) Terminate(id uint64, mediator [20]byte, tenantRefund *big.Int) error {
	agreement, err := e.load(id)
	if err != nil {
		return err
	}
	if agreement.Status != StatusDisputed {
		return ErrInvalidState
	}
	if tenantRefund == nil || tenantRefund.Sign() < 0 {
		return ErrInvalidTerms
	}
	deposit := agreement.DepositAmount
	if tenantRefund.Cmp(deposit) > 0 {
		return ErrInvalidTerms
	}
	landlordAmount := new(big.Int).Sub(deposit, tenantRefund)
	legs := 0
	if tenantRefund.Sign() > 0 {
		legs++
	}
	if landlordAmount.Sign() > 0 {
		legs++
	}
	if err := e.ensureHistoryRoom(id, legs); err != nil {
		return err
	}
	vaultBalance, err := e.state.Balance(vaultAddress)
	if err != nil {
		return err
	}
	if vaultBalance.Cmp(deposit) < 0 {
		return types.ErrInsufficientFunds
	}
	now := e.now()
	if tenantRefund.Sign() > 0 {
		if err := e.state.Transfer(vaultAddress, agreement.Tenant, tenantRefund); err != nil {
			return err
		}
		if err := e.state.PaymentAppend(id, &PaymentRecord{
			Amount:     new(big.Int).Set(tenantRefund),
			Timestamp:  now,
			Kind:       PaymentDisputeRefund,
			RecordedBy: mediator,
		}); err != nil {
			return err
		}
	}
	if landlordAmount.Sign() > 0 {
		if err := e.state.Transfer(vaultAddress, agreement.Landlord, landlordAmount); err != nil {
			return err
		}
		if err := e.state.PaymentAppend(id, &PaymentRecord{
			Amount:     landlordAmount,
			Timestamp:  now,
			Kind:       PaymentDisputePayment,
			RecordedBy: mediator,
		}); err != nil {
			return err
		}
	}
	agreement.Status = StatusTerminated
	if err := e.state.AgreementPut(agreement); err != nil {
		return err
	}
	if err := e.listings.MarkAvailable(agreement.ListingID); err != nil {
		return err
	}
	e.emit(NewTerminatedEvent(agreement))
	return nil
}
