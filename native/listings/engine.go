package listings

import (
	"errors"
	"time"

	"leasechain/core/events"
	"leasechain/core/types"
)

var (
	// ErrNotFound marks a lookup for a listing id that was never allocated.
	ErrNotFound = errors.New("listings: not found")
	// ErrNotAuthorized marks a mutation attempted by anyone but the owner.
	ErrNotAuthorized = errors.New("listings: not authorized")
	// ErrInvalidTerms marks malformed listing terms.
	ErrInvalidTerms = errors.New("listings: invalid terms")
	// ErrAlreadyRented marks mutations that require the listing not to be
	// under an active agreement.
	ErrAlreadyRented = errors.New("listings: already rented")
	// ErrInvalidStatus marks a status value outside the supported range or a
	// transition reserved for the agreement engines.
	ErrInvalidStatus = errors.New("listings: invalid status")

	errNilState = errors.New("listings: state not configured")
)

const idCounter = "listings/seq"

type engineState interface {
	ListingPut(*Listing) error
	ListingGet(id uint64) (*Listing, bool, error)
	CounterNext(name string) (uint64, error)
}

type listingEvent struct {
	evt *types.Event
}

func (e listingEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e listingEvent) Event() *types.Event { return e.evt }

// Engine owns the listing registry: creation, owner-driven term updates and
// the status gate that keeps exactly one live agreement per listing.
type Engine struct {
	state   engineState
	emitter events.Emitter
	nowFn   func() uint64
}

// NewEngine creates a listing engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() uint64 { return uint64(time.Now().Unix()) },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the logical clock. Primarily intended for tests and the
// marketplace facade, which shares one clock across all engines.
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
	e.emitter.Emit(listingEvent{evt: evt})
}

func (e *Engine) now() uint64 {
	if e == nil || e.nowFn == nil {
		return uint64(time.Now().Unix())
	}
	return e.nowFn()
}

func (e *Engine) load(id uint64) (*Listing, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	listing, ok, err := e.state.ListingGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return listing, nil
}

// Create validates the supplied terms and registers a new Active listing owned
// by the caller. The id is allocated only after validation passes, so failed
// calls never burn an id.
func (e *Engine) Create(owner [20]byte, terms Terms) (*Listing, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := terms.Validate(); err != nil {
		return nil, err
	}
	id, err := e.state.CounterNext(idCounter)
	if err != nil {
		return nil, err
	}
	listing := &Listing{
		ID:             id,
		Owner:          owner,
		PricePerPeriod: terms.PricePerPeriod,
		DepositAmount:  terms.DepositAmount,
		MinPeriod:      terms.MinPeriod,
		MaxPeriod:      terms.MaxPeriod,
		Status:         StatusActive,
		CreatedAt:      e.now(),
	}
	if err := e.state.ListingPut(listing); err != nil {
		return nil, err
	}
	e.emit(NewCreatedEvent(listing))
	return listing.Clone(), nil
}

// Update replaces the mutable terms of a listing. Only the owner may update,
// and only while the listing is Active.
func (e *Engine) Update(caller [20]byte, id uint64, terms Terms) (*Listing, error) {
	listing, err := e.load(id)
	if err != nil {
		return nil, err
	}
	if listing.Owner != caller {
		return nil, ErrNotAuthorized
	}
	if listing.Status == StatusRented {
		return nil, ErrAlreadyRented
	}
	if listing.Status != StatusActive {
		return nil, ErrInvalidStatus
	}
	if err := terms.Validate(); err != nil {
		return nil, err
	}
	listing.PricePerPeriod = terms.PricePerPeriod
	listing.DepositAmount = terms.DepositAmount
	listing.MinPeriod = terms.MinPeriod
	listing.MaxPeriod = terms.MaxPeriod
	if err := e.state.ListingPut(listing); err != nil {
		return nil, err
	}
	e.emit(NewUpdatedEvent(listing))
	return listing.Clone(), nil
}

// SetStatus lets the owner park or reactivate a listing. Rented is reserved
// for the agreement engine, and a Rented listing can only be released by the
// agreement or dispute engines.
func (e *Engine) SetStatus(caller [20]byte, id uint64, status Status) (*Listing, error) {
	listing, err := e.load(id)
	if err != nil {
		return nil, err
	}
	if listing.Owner != caller {
		return nil, ErrNotAuthorized
	}
	if !status.Valid() || status == StatusRented {
		return nil, ErrInvalidStatus
	}
	if listing.Status == StatusRented {
		return nil, ErrAlreadyRented
	}
	if listing.Status == status {
		return listing.Clone(), nil
	}
	listing.Status = status
	if err := e.state.ListingPut(listing); err != nil {
		return nil, err
	}
	e.emit(NewStatusChangedEvent(listing))
	return listing.Clone(), nil
}

// Get returns a copy of the stored listing.
func (e *Engine) Get(id uint64) (*Listing, error) {
	listing, err := e.load(id)
	if err != nil {
		return nil, err
	}
	return listing.Clone(), nil
}

// MarkRented flips an Active listing to Rented. Reserved for the agreement
// engine; external callers go through SetStatus which refuses this value.
func (e *Engine) MarkRented(id uint64) error {
	listing, err := e.load(id)
	if err != nil {
		return err
	}
	if listing.Status != StatusActive {
		return ErrAlreadyRented
	}
	listing.Status = StatusRented
	if err := e.state.ListingPut(listing); err != nil {
		return err
	}
	e.emit(NewStatusChangedEvent(listing))
	return nil
}

// MarkAvailable returns a Rented listing to Active once its agreement reached
// a terminal state. Reserved for the agreement and dispute engines.
func (e *Engine) MarkAvailable(id uint64) error {
	listing, err := e.load(id)
	if err != nil {
		return err
	}
	if listing.Status != StatusRented {
		return ErrInvalidStatus
	}
	listing.Status = StatusActive
	if err := e.state.ListingPut(listing); err != nil {
		return err
	}
	e.emit(NewStatusChangedEvent(listing))
	return nil
}
