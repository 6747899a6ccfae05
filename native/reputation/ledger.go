package reputation

import (
	"errors"
	"time"

	"leasechain/core/events"
	"leasechain/core/types"
	"leasechain/native/lease"
)

var (
	// ErrNotFound marks lookups for identities with no reputation record.
	ErrNotFound = errors.New("reputation: profile not found")
	// ErrNotAuthorized marks ratings from identities outside the agreement.
	ErrNotAuthorized = errors.New("reputation: not authorized")
	// ErrInvalidState marks ratings against non-terminal agreements.
	ErrInvalidState = errors.New("reputation: agreement not settled")
	// ErrInvalidRating marks ratings outside the 1..5 scale.
	ErrInvalidRating = errors.New("reputation: rating out of range")
	// ErrInvalidRatee marks ratings that do not target the other party.
	ErrInvalidRatee = errors.New("reputation: ratee must be the counterparty")
	// ErrAlreadyRated marks duplicate reviews for the same agreement, reviewer
	// and ratee combination.
	ErrAlreadyRated = errors.New("reputation: already rated")
	// ErrCapacityExceeded marks review list growth past the configured cap.
	ErrCapacityExceeded = errors.New("reputation: review capacity exceeded")

	errNilState = errors.New("reputation: state not configured")
)

// DefaultReviewCap bounds the per-identity review list. Overflow is an
// explicit rejection, never silent truncation.
const DefaultReviewCap = 512

type ledgerState interface {
	ProfilePut(addr [20]byte, profile *Profile) error
	ProfileGet(addr [20]byte) (*Profile, bool, error)
	ReviewAppend(addr [20]byte, review *Review) error
	Reviews(addr [20]byte) ([]*Review, error)
}

type reputationEvent struct {
	evt *types.Event
}

func (e reputationEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e reputationEvent) Event() *types.Event { return e.evt }

// Ledger records post-settlement ratings and maintains the running average per
// identity. Ratings only open up once the underlying agreement reached a
// terminal state.
type Ledger struct {
	state     ledgerState
	leases    *lease.Engine
	emitter   events.Emitter
	nowFn     func() uint64
	reviewCap int
}

// NewLedger creates a reputation ledger bound to the lease engine.
func NewLedger(leases *lease.Engine) *Ledger {
	return &Ledger{
		leases:    leases,
		emitter:   events.NoopEmitter{},
		nowFn:     func() uint64 { return uint64(time.Now().Unix()) },
		reviewCap: DefaultReviewCap,
	}
}

// SetState configures the state backend used by the ledger.
func (l *Ledger) SetState(state ledgerState) { l.state = state }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

// SetNowFunc overrides the logical clock used for review timestamps.
func (l *Ledger) SetNowFunc(now func() uint64) {
	if now == nil {
		l.nowFn = func() uint64 { return uint64(time.Now().Unix()) }
		return
	}
	l.nowFn = now
}

// SetReviewCap bounds the per-identity review list. Non-positive values
// restore the default.
func (l *Ledger) SetReviewCap(cap int) {
	if cap <= 0 {
		l.reviewCap = DefaultReviewCap
		return
	}
	l.reviewCap = cap
}

func (l *Ledger) emit(evt *types.Event) {
	if l == nil || l.emitter == nil || evt == nil {
		return
	}
	l.emitter.Emit(reputationEvent{evt: evt})
}

func (l *Ledger) now() uint64 {
	if l == nil || l.nowFn == nil {
		return uint64(time.Now().Unix())
	}
	return l.nowFn()
}

// Touch lazily initialises the profile for an identity on first interaction.
func (l *Ledger) Touch(addr [20]byte) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if _, ok, err := l.state.ProfileGet(addr); err != nil {
		return err
	} else if ok {
		return nil
	}
	return l.state.ProfilePut(addr, &Profile{})
}

// Profile returns the aggregate record for an identity.
func (l *Ledger) Profile(addr [20]byte) (*Profile, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	profile, ok, err := l.state.ProfileGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return profile.Clone(), nil
}

// Reviews returns the append-only review list for an identity.
func (l *Ledger) Reviews(addr [20]byte) ([]*Review, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	return l.state.Reviews(addr)
}

// Rate records a rating of the counterparty once the agreement is Completed or
// Terminated. Each (agreement, reviewer, ratee) combination contributes at
// most one review; the running average truncates toward zero.
func (l *Ledger) Rate(caller [20]byte, agreementID uint64, ratee [20]byte, rating uint8, comment string) (*Profile, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	agreement, err := l.leases.Get(agreementID)
	if err != nil {
		return nil, err
	}
	if !agreement.Status.Terminal() {
		return nil, ErrInvalidState
	}
	if !agreement.Party(caller) {
		return nil, ErrNotAuthorized
	}
	counterparty, ok := agreement.Counterparty(caller)
	if !ok || ratee != counterparty || ratee == caller {
		return nil, ErrInvalidRatee
	}
	review := &Review{
		AgreementID: agreementID,
		Reviewer:    caller,
		Rating:      rating,
		Comment:     comment,
		Timestamp:   l.now(),
	}
	if err := review.Validate(); err != nil {
		return nil, err
	}
	existing, err := l.state.Reviews(ratee)
	if err != nil {
		return nil, err
	}
	for _, prior := range existing {
		if prior.Reviewer == caller && prior.AgreementID == agreementID {
			return nil, ErrAlreadyRated
		}
	}
	if len(existing)+1 > l.reviewCap {
		return nil, ErrCapacityExceeded
	}
	profile, ok, err := l.state.ProfileGet(ratee)
	if err != nil {
		return nil, err
	}
	if !ok {
		profile = &Profile{}
	}
	total := profile.AvgRating*profile.TotalRatings + uint64(rating)
	profile.TotalRatings++
	profile.AvgRating = total / profile.TotalRatings
	if err := l.state.ProfilePut(ratee, profile); err != nil {
		return nil, err
	}
	if err := l.state.ReviewAppend(ratee, review); err != nil {
		return nil, err
	}
	l.emit(NewRatedEvent(ratee, review, profile))
	return profile.Clone(), nil
}
