package lease

import (
	"errors"
	"math/big"
	"testing"

	"leasechain/core/types"
	"leasechain/native/listings"
)

// mockState backs both the listing registry and the lease engine so tests can
// exercise the full create/pay/complete flow against one ledger.
type mockState struct {
	listings   map[uint64]*listings.Listing
	agreements map[uint64]*Agreement
	payments   map[uint64][]*PaymentRecord
	balances   map[[20]byte]*big.Int
	counters   map[string]uint64
}

func newMockState() *mockState {
	return &mockState{
		listings:   make(map[uint64]*listings.Listing),
		agreements: make(map[uint64]*Agreement),
		payments:   make(map[uint64][]*PaymentRecord),
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

func (m *mockState) AgreementPut(a *Agreement) error {
	m.agreements[a.ID] = a.Clone()
	return nil
}

func (m *mockState) AgreementGet(id uint64) (*Agreement, bool, error) {
	a, ok := m.agreements[id]
	if !ok {
		return nil, false, nil
	}
	return a.Clone(), true, nil
}

func (m *mockState) PaymentAppend(id uint64, record *PaymentRecord) error {
	m.payments[id] = append(m.payments[id], record.Clone())
	return nil
}

func (m *mockState) Payments(id uint64) ([]*PaymentRecord, error) {
	records := make([]*PaymentRecord, len(m.payments[id]))
	for i, record := range m.payments[id] {
		records[i] = record.Clone()
	}
	return records, nil
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

func (m *mockState) fund(addr [20]byte, amount int64) {
	m.balances[addr] = big.NewInt(amount)
}

type stubFees struct {
	bps       uint64
	collector [20]byte
}

func (s *stubFees) Bps() (uint64, error)        { return s.bps, nil }
func (s *stubFees) Collector() ([20]byte, error) { return s.collector, nil }

type stubReputation struct {
	touched [][20]byte
}

func (s *stubReputation) Touch(addr [20]byte) error {
	s.touched = append(s.touched, addr)
	return nil
}

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

type testEnv struct {
	state      *mockState
	registry   *listings.Engine
	engine     *Engine
	reputation *stubReputation
	now        uint64
	landlord   [20]byte
	tenant     [20]byte
	collector  [20]byte
	listingID  uint64
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		state:      newMockState(),
		reputation: &stubReputation{},
		now:        1_000,
		landlord:   newTestAddress(0x01),
		tenant:     newTestAddress(0x02),
		collector:  newTestAddress(0x0f),
	}
	clock := func() uint64 { return env.now }
	env.registry = listings.NewEngine()
	env.registry.SetState(env.state)
	env.registry.SetNowFunc(clock)
	env.engine = NewEngine(env.registry)
	env.engine.SetState(env.state)
	env.engine.SetFeePolicy(&stubFees{bps: 250, collector: env.collector})
	env.engine.SetReputation(env.reputation)
	env.engine.SetNowFunc(clock)
	listing, err := env.registry.Create(env.landlord, listings.Terms{
		PricePerPeriod: big.NewInt(10_000),
		DepositAmount:  big.NewInt(50_000),
		MinPeriod:      10,
		MaxPeriod:      500,
	})
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}
	env.listingID = listing.ID
	env.state.fund(env.tenant, 200_000)
	return env
}

func (env *testEnv) create(t *testing.T) *Agreement {
	t.Helper()
	agreement, err := env.engine.Create(env.tenant, env.listingID, 1_000, 1_100, big.NewInt(50_000))
	if err != nil {
		t.Fatalf("create agreement: %v", err)
	}
	return agreement
}

func TestCreateEscrowsDeposit(t *testing.T) {
	env := newTestEnv(t)
	agreement := env.create(t)

	if agreement.ID != 1 {
		t.Fatalf("expected agreement id 1, got %d", agreement.ID)
	}
	if agreement.Status != StatusActive {
		t.Fatalf("expected active agreement, got %v", agreement.Status)
	}
	if agreement.Landlord != env.landlord || agreement.Tenant != env.tenant {
		t.Fatalf("parties not recorded")
	}
	vault, _ := env.state.Balance(VaultAddress())
	if vault.Int64() != 50_000 {
		t.Fatalf("expected 50000 in vault, got %s", vault)
	}
	tenant, _ := env.state.Balance(env.tenant)
	if tenant.Int64() != 150_000 {
		t.Fatalf("expected tenant balance 150000, got %s", tenant)
	}
	listing, _ := env.registry.Get(env.listingID)
	if listing.Status != listings.StatusRented {
		t.Fatalf("listing must flip to rented, got %v", listing.Status)
	}
	records, err := env.engine.Payments(agreement.ID)
	if err != nil {
		t.Fatalf("payments: %v", err)
	}
	if len(records) != 1 || records[0].Kind != PaymentDeposit {
		t.Fatalf("expected single deposit record, got %+v", records)
	}
	if len(env.reputation.touched) != 1 || env.reputation.touched[0] != env.tenant {
		t.Fatalf("tenant profile not touched")
	}
}

func TestCreatePreconditions(t *testing.T) {
	env := newTestEnv(t)
	deposit := big.NewInt(50_000)

	if _, err := env.engine.Create(env.tenant, 99, 1_000, 1_100, deposit); !errors.Is(err, listings.ErrNotFound) {
		t.Fatalf("unknown listing: expected ErrNotFound, got %v", err)
	}
	if _, err := env.engine.Create(env.landlord, env.listingID, 1_000, 1_100, deposit); !errors.Is(err, ErrInvalidTerms) {
		t.Fatalf("self-rental: expected ErrInvalidTerms, got %v", err)
	}
	if _, err := env.engine.Create(env.tenant, env.listingID, 1_100, 1_000, deposit); !errors.Is(err, ErrInvalidTerms) {
		t.Fatalf("inverted window: expected ErrInvalidTerms, got %v", err)
	}
	if _, err := env.engine.Create(env.tenant, env.listingID, 1_000, 1_005, deposit); !errors.Is(err, ErrInvalidTerms) {
		t.Fatalf("duration below min: expected ErrInvalidTerms, got %v", err)
	}
	if _, err := env.engine.Create(env.tenant, env.listingID, 1_000, 2_000, deposit); !errors.Is(err, ErrInvalidTerms) {
		t.Fatalf("duration above max: expected ErrInvalidTerms, got %v", err)
	}
	if _, err := env.engine.Create(env.tenant, env.listingID, 1_000, 1_100, big.NewInt(49_999)); !errors.Is(err, ErrInvalidTerms) {
		t.Fatalf("deposit mismatch: expected ErrInvalidTerms, got %v", err)
	}
	if env.state.counters[idCounter] != 0 {
		t.Fatalf("failed creates must not burn agreement ids")
	}

	broke := newTestAddress(0x03)
	if _, err := env.engine.Create(broke, env.listingID, 1_000, 1_100, deposit); !errors.Is(err, types.ErrInsufficientFunds) {
		t.Fatalf("unfunded tenant: expected ErrInsufficientFunds, got %v", err)
	}

	env.create(t)
	other := newTestAddress(0x04)
	env.state.fund(other, 100_000)
	if _, err := env.engine.Create(other, env.listingID, 1_000, 1_100, deposit); !errors.Is(err, ErrNotAvailable) {
		t.Fatalf("rented listing: expected ErrNotAvailable, got %v", err)
	}
}

func TestPayPeriodicSplitsFee(t *testing.T) {
	env := newTestEnv(t)
	agreement := env.create(t)
	env.now = 1_050

	if err := env.engine.PayPeriodic(env.tenant, agreement.ID); err != nil {
		t.Fatalf("pay: %v", err)
	}
	// 10000 gross at 250 bps: 250 fee, 9750 net.
	landlord, _ := env.state.Balance(env.landlord)
	if landlord.Int64() != 9_750 {
		t.Fatalf("expected landlord 9750, got %s", landlord)
	}
	collector, _ := env.state.Balance(env.collector)
	if collector.Int64() != 250 {
		t.Fatalf("expected collector 250, got %s", collector)
	}
	tenant, _ := env.state.Balance(env.tenant)
	if tenant.Int64() != 140_000 {
		t.Fatalf("expected tenant 140000, got %s", tenant)
	}
	updated, _ := env.engine.Get(agreement.ID)
	if updated.LastPaymentTime != 1_050 {
		t.Fatalf("expected last payment time 1050, got %d", updated.LastPaymentTime)
	}
	records, _ := env.engine.Payments(agreement.ID)
	if len(records) != 2 || records[1].Kind != PaymentPeriodic {
		t.Fatalf("expected periodic record appended, got %+v", records)
	}
}

func TestPayPeriodicZeroFee(t *testing.T) {
	env := newTestEnv(t)
	env.engine.SetFeePolicy(&stubFees{bps: 0})
	agreement := env.create(t)

	if err := env.engine.PayPeriodic(env.tenant, agreement.ID); err != nil {
		t.Fatalf("pay: %v", err)
	}
	landlord, _ := env.state.Balance(env.landlord)
	if landlord.Int64() != 10_000 {
		t.Fatalf("zero bps must route full gross, got %s", landlord)
	}
}

func TestPayPeriodicGuards(t *testing.T) {
	env := newTestEnv(t)
	agreement := env.create(t)

	if err := env.engine.PayPeriodic(env.landlord, agreement.ID); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("landlord pay: expected ErrNotAuthorized, got %v", err)
	}
	if err := env.engine.PayPeriodic(env.tenant, 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown agreement: expected ErrNotFound, got %v", err)
	}

	env.state.balances[env.tenant] = big.NewInt(9_999)
	if err := env.engine.PayPeriodic(env.tenant, agreement.ID); !errors.Is(err, types.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	// Neither leg may have run.
	landlord, _ := env.state.Balance(env.landlord)
	if landlord.Sign() != 0 {
		t.Fatalf("partial payment leaked: landlord=%s", landlord)
	}
	collector, _ := env.state.Balance(env.collector)
	if collector.Sign() != 0 {
		t.Fatalf("partial payment leaked: collector=%s", collector)
	}
}

func TestPayPeriodicHistoryCap(t *testing.T) {
	env := newTestEnv(t)
	agreement := env.create(t)
	env.engine.SetHistoryCap(2)

	if err := env.engine.PayPeriodic(env.tenant, agreement.ID); err != nil {
		t.Fatalf("pay: %v", err)
	}
	if err := env.engine.PayPeriodic(env.tenant, agreement.ID); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}
}

func TestCompleteReturnsDeposit(t *testing.T) {
	env := newTestEnv(t)
	agreement := env.create(t)

	if err := env.engine.Complete(env.landlord, agreement.ID); !errors.Is(err, ErrTooEarly) {
		t.Fatalf("before end: expected ErrTooEarly, got %v", err)
	}
	env.now = 1_100
	if err := env.engine.Complete(env.tenant, agreement.ID); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("tenant complete: expected ErrNotAuthorized, got %v", err)
	}
	if err := env.engine.Complete(env.landlord, agreement.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	updated, _ := env.engine.Get(agreement.ID)
	if updated.Status != StatusCompleted {
		t.Fatalf("expected completed, got %v", updated.Status)
	}
	vault, _ := env.state.Balance(VaultAddress())
	if vault.Sign() != 0 {
		t.Fatalf("vault must drain on completion, got %s", vault)
	}
	tenant, _ := env.state.Balance(env.tenant)
	if tenant.Int64() != 200_000 {
		t.Fatalf("deposit must return to tenant, got %s", tenant)
	}
	listing, _ := env.registry.Get(env.listingID)
	if listing.Status != listings.StatusActive {
		t.Fatalf("listing must re-open, got %v", listing.Status)
	}

	if err := env.engine.Complete(env.landlord, agreement.ID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("double complete: expected ErrInvalidState, got %v", err)
	}
	if err := env.engine.PayPeriodic(env.tenant, agreement.ID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("pay after terminal: expected ErrInvalidState, got %v", err)
	}
}

func TestMarkDisputedFreezesAgreement(t *testing.T) {
	env := newTestEnv(t)
	agreement := env.create(t)

	if err := env.engine.MarkDisputed(agreement.ID); err != nil {
		t.Fatalf("mark disputed: %v", err)
	}
	if err := env.engine.MarkDisputed(agreement.ID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("double dispute: expected ErrInvalidState, got %v", err)
	}
	if err := env.engine.PayPeriodic(env.tenant, agreement.ID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("pay while disputed: expected ErrInvalidState, got %v", err)
	}
	env.now = 1_100
	if err := env.engine.Complete(env.landlord, agreement.ID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("complete while disputed: expected ErrInvalidState, got %v", err)
	}
}

func TestTerminateSplitsDeposit(t *testing.T) {
	env := newTestEnv(t)
	agreement := env.create(t)
	mediator := newTestAddress(0x05)

	if err := env.engine.Terminate(agreement.ID, mediator, big.NewInt(20_000)); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("terminate active: expected ErrInvalidState, got %v", err)
	}
	if err := env.engine.MarkDisputed(agreement.ID); err != nil {
		t.Fatalf("mark disputed: %v", err)
	}
	if err := env.engine.Terminate(agreement.ID, mediator, big.NewInt(50_001)); !errors.Is(err, ErrInvalidTerms) {
		t.Fatalf("refund above deposit: expected ErrInvalidTerms, got %v", err)
	}
	if err := env.engine.Terminate(agreement.ID, mediator, big.NewInt(20_000)); err != nil {
		t.Fatalf("terminate: %v", err)
	}

	tenant, _ := env.state.Balance(env.tenant)
	if tenant.Int64() != 170_000 {
		t.Fatalf("expected tenant 170000, got %s", tenant)
	}
	landlord, _ := env.state.Balance(env.landlord)
	if landlord.Int64() != 30_000 {
		t.Fatalf("expected landlord 30000, got %s", landlord)
	}
	vault, _ := env.state.Balance(VaultAddress())
	if vault.Sign() != 0 {
		t.Fatalf("vault must drain, got %s", vault)
	}
	updated, _ := env.engine.Get(agreement.ID)
	if updated.Status != StatusTerminated {
		t.Fatalf("expected terminated, got %v", updated.Status)
	}
	listing, _ := env.registry.Get(env.listingID)
	if listing.Status != listings.StatusActive {
		t.Fatalf("listing must re-open, got %v", listing.Status)
	}
	records, _ := env.engine.Payments(agreement.ID)
	last := records[len(records)-1]
	if last.Kind != PaymentDisputePayment || last.RecordedBy != mediator {
		t.Fatalf("unexpected final record %+v", last)
	}
}

func TestTerminateSkipsZeroLegs(t *testing.T) {
	env := newTestEnv(t)
	agreement := env.create(t)
	mediator := newTestAddress(0x05)
	if err := env.engine.MarkDisputed(agreement.ID); err != nil {
		t.Fatalf("mark disputed: %v", err)
	}
	if err := env.engine.Terminate(agreement.ID, mediator, big.NewInt(0)); err != nil {
		t.Fatalf("terminate: %v", err)
	}
	records, _ := env.engine.Payments(agreement.ID)
	// Deposit record plus one landlord leg; the zero tenant leg is skipped.
	if len(records) != 2 || records[1].Kind != PaymentDisputePayment {
		t.Fatalf("expected single dispute payment record, got %+v", records)
	}
	landlord, _ := env.state.Balance(env.landlord)
	if landlord.Int64() != 50_000 {
		t.Fatalf("expected full deposit to landlord, got %s", landlord)
	}
}

func TestEscrowConservation(t *testing.T) {
	env := newTestEnv(t)
	agreement := env.create(t)
	if err := env.engine.MarkDisputed(agreement.ID); err != nil {
		t.Fatalf("mark disputed: %v", err)
	}
	if err := env.engine.Terminate(agreement.ID, newTestAddress(0x05), big.NewInt(16_667)); err != nil {
		t.Fatalf("terminate: %v", err)
	}
	records, _ := env.engine.Payments(agreement.ID)
	inbound := big.NewInt(0)
	outbound := big.NewInt(0)
	for _, record := range records {
		if record.Kind.Inbound() {
			inbound.Add(inbound, record.Amount)
		} else if record.Kind != PaymentPeriodic {
			outbound.Add(outbound, record.Amount)
		}
	}
	if inbound.Cmp(outbound) != 0 {
		t.Fatalf("escrow not conserved: in=%s out=%s", inbound, outbound)
	}
}
