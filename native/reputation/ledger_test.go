package reputation

import (
	"errors"
	"math/big"
	"testing"

	"leasechain/core/types"
	"leasechain/native/lease"
	"leasechain/native/listings"
)

// mockState backs the listing registry, the lease engine and the reputation
// ledger so ratings run against real terminal agreements.
type mockState struct {
	listings   map[uint64]*listings.Listing
	agreements map[uint64]*lease.Agreement
	payments   map[uint64][]*lease.PaymentRecord
	profiles   map[[20]byte]*Profile
	reviews    map[[20]byte][]*Review
	balances   map[[20]byte]*big.Int
	counters   map[string]uint64
}

func newMockState() *mockState {
	return &mockState{
		listings:   make(map[uint64]*listings.Listing),
		agreements: make(map[uint64]*lease.Agreement),
		payments:   make(map[uint64][]*lease.PaymentRecord),
		profiles:   make(map[[20]byte]*Profile),
		reviews:    make(map[[20]byte][]*Review),
		balances:   make(map[[20]byte]*big.Int),
		counters:   make(map[string]uint64),
	}
}

func (m *mockState) ListingPut(l *listings.Listing) error {
	m.listings[l.ID] = l.Clone()
	return nil
}

func (m *mockState) ListingGet(id uint64) (*listings.Listing, bool, error) {
	l, ok := m.listings[id]
	if !ok {
		return nil, false, nil
	}
	return l.Clone(), true, nil
}

func (m *mockState) AgreementPut(a *lease.Agreement) error {
	m.agreements[a.ID] = a.Clone()
	return nil
}

func (m *mockState) AgreementGet(id uint64) (*lease.Agreement, bool, error) {
	a, ok := m.agreements[id]
	if !ok {
		return nil, false, nil
	}
	return a.Clone(), true, nil
}

func (m *mockState) PaymentAppend(id uint64, record *lease.PaymentRecord) error {
	m.payments[id] = append(m.payments[id], record.Clone())
	return nil
}

func (m *mockState) Payments(id uint64) ([]*lease.PaymentRecord, error) {
	records := make([]*lease.PaymentRecord, len(m.payments[id]))
	for i, record := range m.payments[id] {
		records[i] = record.Clone()
	}
	return records, nil
}

func (m *mockState) ProfilePut(addr [20]byte, profile *Profile) error {
	m.profiles[addr] = profile.Clone()
	return nil
}

func (m *mockState) ProfileGet(addr [20]byte) (*Profile, bool, error) {
	profile, ok := m.profiles[addr]
	if !ok {
		return nil, false, nil
	}
	return profile.Clone(), true, nil
}

func (m *mockState) ReviewAppend(addr [20]byte, review *Review) error {
	m.reviews[addr] = append(m.reviews[addr], review.Clone())
	return nil
}

func (m *mockState) Reviews(addr [20]byte) ([]*Review, error) {
	reviews := make([]*Review, len(m.reviews[addr]))
	for i, review := range m.reviews[addr] {
		reviews[i] = review.Clone()
	}
	return reviews, nil
}

func (m *mockState) Balance(addr [20]byte) (*big.Int, error) {
	if balance, ok := m.balances[addr]; ok {
		return new(big.Int).Set(balance), nil
	}
	return big.NewInt(0), nil
}

func (m *mockState) Transfer(from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	fromBalance, _ := m.Balance(from)
	if fromBalance.Cmp(amount) < 0 {
		return types.ErrInsufficientFunds
	}
	toBalance, _ := m.Balance(to)
	m.balances[from] = fromBalance.Sub(fromBalance, amount)
	m.balances[to] = toBalance.Add(toBalance, amount)
	return nil
}

func (m *mockState) CounterNext(name string) (uint64, error) {
	m.counters[name]++
	return m.counters[name], nil
}

type stubFees struct{}

func (stubFees) Bps() (uint64, error)         { return 0, nil }
func (stubFees) Collector() ([20]byte, error) { return [20]byte{}, nil }

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

type testEnv struct {
	state     *mockState
	leases    *lease.Engine
	ledger    *Ledger
	now       uint64
	landlord  [20]byte
	tenant    [20]byte
	listingID uint64
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		state:    newMockState(),
		now:      1_000,
		landlord: newTestAddress(0x01),
		tenant:   newTestAddress(0x02),
	}
	clock := func() uint64 { return env.now }
	registry := listings.NewEngine()
	registry.SetState(env.state)
	registry.SetNowFunc(clock)
	env.leases = lease.NewEngine(registry)
	env.leases.SetState(env.state)
	env.leases.SetFeePolicy(stubFees{})
	env.leases.SetNowFunc(clock)
	env.ledger = NewLedger(env.leases)
	env.ledger.SetState(env.state)
	env.ledger.SetNowFunc(clock)

	listing, err := registry.Create(env.landlord, listings.Terms{
		PricePerPeriod: big.NewInt(10_000),
		DepositAmount:  big.NewInt(50_000),
		MinPeriod:      10,
		MaxPeriod:      500,
	})
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}
	env.listingID = listing.ID
	env.state.balances[env.tenant] = big.NewInt(200_000)
	return env
}

// settle runs one agreement through creation and cooperative completion,
// returning its id.
func (env *testEnv) settle(t *testing.T) uint64 {
	t.Helper()
	agreement, err := env.leases.Create(env.tenant, env.listingID, env.now, env.now+100, big.NewInt(50_000))
	if err != nil {
		t.Fatalf("create agreement: %v", err)
	}
	env.now += 100
	if err := env.leases.Complete(env.landlord, agreement.ID); err != nil {
		t.Fatalf("complete agreement: %v", err)
	}
	return agreement.ID
}

func TestTouchInitialisesOnce(t *testing.T) {
	env := newTestEnv(t)
	addr := newTestAddress(0x07)
	if _, err := env.ledger.Profile(addr); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := env.ledger.Touch(addr); err != nil {
		t.Fatalf("touch: %v", err)
	}
	profile, err := env.ledger.Profile(addr)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if profile.AvgRating != 0 || profile.TotalRatings != 0 {
		t.Fatalf("fresh profile must be zero, got %+v", profile)
	}
	// Touch must not reset an established profile.
	env.state.profiles[addr] = &Profile{AvgRating: 4, TotalRatings: 2}
	if err := env.ledger.Touch(addr); err != nil {
		t.Fatalf("touch: %v", err)
	}
	profile, _ = env.ledger.Profile(addr)
	if profile.TotalRatings != 2 {
		t.Fatalf("touch reset the profile: %+v", profile)
	}
}

func TestRateRequiresTerminalAgreement(t *testing.T) {
	env := newTestEnv(t)
	agreement, err := env.leases.Create(env.tenant, env.listingID, env.now, env.now+100, big.NewInt(50_000))
	if err != nil {
		t.Fatalf("create agreement: %v", err)
	}
	if _, err := env.ledger.Rate(env.tenant, agreement.ID, env.landlord, 5, "great"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("active agreement: expected ErrInvalidState, got %v", err)
	}
}

func TestRateUpdatesRunningAverage(t *testing.T) {
	env := newTestEnv(t)
	id := env.settle(t)
	profile, err := env.ledger.Rate(env.tenant, id, env.landlord, 5, "responsive landlord")
	if err != nil {
		t.Fatalf("rate: %v", err)
	}
	if profile.AvgRating != 5 || profile.TotalRatings != 1 {
		t.Fatalf("unexpected profile %+v", profile)
	}
	second := env.settle(t)
	profile, err = env.ledger.Rate(env.tenant, second, env.landlord, 2, "slow repairs")
	if err != nil {
		t.Fatalf("rate: %v", err)
	}
	// (5 + 2) / 2 truncates to 3.
	if profile.AvgRating != 3 || profile.TotalRatings != 2 {
		t.Fatalf("expected truncated avg 3 over 2 ratings, got %+v", profile)
	}
	reviews, err := env.ledger.Reviews(env.landlord)
	if err != nil {
		t.Fatalf("reviews: %v", err)
	}
	if len(reviews) != 2 || reviews[1].Rating != 2 {
		t.Fatalf("unexpected reviews %+v", reviews)
	}
}

func TestRateBothDirections(t *testing.T) {
	env := newTestEnv(t)
	id := env.settle(t)
	if _, err := env.ledger.Rate(env.tenant, id, env.landlord, 4, ""); err != nil {
		t.Fatalf("tenant rates landlord: %v", err)
	}
	if _, err := env.ledger.Rate(env.landlord, id, env.tenant, 5, ""); err != nil {
		t.Fatalf("landlord rates tenant: %v", err)
	}
	tenantProfile, _ := env.ledger.Profile(env.tenant)
	if tenantProfile.TotalRatings != 1 || tenantProfile.AvgRating != 5 {
		t.Fatalf("unexpected tenant profile %+v", tenantProfile)
	}
}

func TestRateGuards(t *testing.T) {
	env := newTestEnv(t)
	id := env.settle(t)

	if _, err := env.ledger.Rate(newTestAddress(0x09), id, env.landlord, 4, ""); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("outsider: expected ErrNotAuthorized, got %v", err)
	}
	if _, err := env.ledger.Rate(env.tenant, id, env.tenant, 4, ""); !errors.Is(err, ErrInvalidRatee) {
		t.Fatalf("self-rating: expected ErrInvalidRatee, got %v", err)
	}
	if _, err := env.ledger.Rate(env.tenant, id, newTestAddress(0x09), 4, ""); !errors.Is(err, ErrInvalidRatee) {
		t.Fatalf("third-party ratee: expected ErrInvalidRatee, got %v", err)
	}
	for _, rating := range []uint8{0, 6} {
		if _, err := env.ledger.Rate(env.tenant, id, env.landlord, rating, ""); !errors.Is(err, ErrInvalidRating) {
			t.Fatalf("rating %d: expected ErrInvalidRating, got %v", rating, err)
		}
	}
	if _, err := env.ledger.Rate(env.tenant, id, env.landlord, 4, ""); err != nil {
		t.Fatalf("rate: %v", err)
	}
	if _, err := env.ledger.Rate(env.tenant, id, env.landlord, 5, "changed my mind"); !errors.Is(err, ErrAlreadyRated) {
		t.Fatalf("duplicate: expected ErrAlreadyRated, got %v", err)
	}
	if _, err := env.ledger.Rate(env.tenant, 99, env.landlord, 4, ""); !errors.Is(err, lease.ErrNotFound) {
		t.Fatalf("unknown agreement: expected lease.ErrNotFound, got %v", err)
	}
}

func TestRateOncePerAgreementPair(t *testing.T) {
	env := newTestEnv(t)
	first := env.settle(t)
	second := env.settle(t)
	if _, err := env.ledger.Rate(env.tenant, first, env.landlord, 4, ""); err != nil {
		t.Fatalf("rate: %v", err)
	}
	// A new agreement between the same parties re-opens rating.
	if _, err := env.ledger.Rate(env.tenant, second, env.landlord, 5, ""); err != nil {
		t.Fatalf("second agreement rate: %v", err)
	}
}

func TestRateReviewCap(t *testing.T) {
	env := newTestEnv(t)
	env.ledger.SetReviewCap(1)
	first := env.settle(t)
	second := env.settle(t)
	if _, err := env.ledger.Rate(env.tenant, first, env.landlord, 4, ""); err != nil {
		t.Fatalf("rate: %v", err)
	}
	if _, err := env.ledger.Rate(env.tenant, second, env.landlord, 5, ""); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}
	profile, _ := env.ledger.Profile(env.landlord)
	if profile.TotalRatings != 1 {
		t.Fatalf("rejected review must not touch the aggregate, got %+v", profile)
	}
}

func TestRateWorksAfterDisputeTermination(t *testing.T) {
	env := newTestEnv(t)
	agreement, err := env.leases.Create(env.tenant, env.listingID, env.now, env.now+100, big.NewInt(50_000))
	if err != nil {
		t.Fatalf("create agreement: %v", err)
	}
	if err := env.leases.MarkDisputed(agreement.ID); err != nil {
		t.Fatalf("mark disputed: %v", err)
	}
	if err := env.leases.Terminate(agreement.ID, newTestAddress(0x05), big.NewInt(25_000)); err != nil {
		t.Fatalf("terminate: %v", err)
	}
	if _, err := env.ledger.Rate(env.landlord, agreement.ID, env.tenant, 1, "left early"); err != nil {
		t.Fatalf("rate after termination: %v", err)
	}
}
