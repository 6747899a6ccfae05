package core

import (
	"log/slog"
	"math/big"
	"time"

	"leasechain/config"
	"leasechain/core/events"
	"leasechain/core/state"
	"leasechain/native/access"
	nativecommon "leasechain/native/common"
	"leasechain/native/dispute"
	"leasechain/native/fees"
	"leasechain/native/lease"
	"leasechain/native/listings"
	"leasechain/native/penalty"
	"leasechain/native/reputation"
	"leasechain/observability"
	"leasechain/storage"
)

// Marketplace wires the state manager and the native engines into the single
// serialized entry point the platform exposes. Every operation takes the
// caller identity explicitly, runs against the state overlay and either
// commits in full or resets to the last committed state, so no caller ever
// observes a partially-applied mutation.
//
// Marketplace is not safe for concurrent use; the hosting platform serializes
// operations.
type Marketplace struct {
	cfg     *config.Config
	log     *slog.Logger
	metrics *observability.ModuleMetrics

	state      *state.Manager
	authority  *access.Authority
	fees       *fees.Engine
	listings   *listings.Engine
	leases     *lease.Engine
	disputes   *dispute.Engine
	reputation *reputation.Ledger
	penalties  *penalty.Engine

	nowFn   func() uint64
	lastNow uint64
}

// NewMarketplace assembles a marketplace over the provided database.
func NewMarketplace(db storage.Database, cfg *config.Config) *Marketplace {
	if cfg == nil {
		cfg = config.Default()
	}
	m := &Marketplace{
		cfg:     cfg,
		log:     slog.Default(),
		metrics: observability.Metrics(),
		state:   state.NewManager(db),
		nowFn:   func() uint64 { return uint64(time.Now().Unix()) },
	}

	m.authority = access.NewAuthority()
	m.authority.SetState(m.state)

	m.fees = fees.NewEngine()
	m.fees.SetState(m.state)
	m.fees.SetAuthority(m.authority)

	m.listings = listings.NewEngine()
	m.listings.SetState(m.state)

	m.leases = lease.NewEngine(m.listings)
	m.leases.SetState(m.state)
	m.leases.SetFeePolicy(m.fees)
	m.leases.SetHistoryCap(cfg.PaymentHistoryCap)

	m.reputation = reputation.NewLedger(m.leases)
	m.reputation.SetState(m.state)
	m.reputation.SetReviewCap(cfg.ReviewCap)
	m.leases.SetReputation(m.reputation)

	m.disputes = dispute.NewEngine(m.leases)
	m.disputes.SetState(m.state)
	m.disputes.SetAuthority(m.authority)

	m.penalties = penalty.NewEngine()
	m.penalties.SetState(m.state)
	m.penalties.SetAuthority(m.authority)

	clock := m.now
	m.listings.SetNowFunc(clock)
	m.leases.SetNowFunc(clock)
	m.disputes.SetNowFunc(clock)
	m.reputation.SetNowFunc(clock)
	m.penalties.SetNowFunc(clock)

	return m
}

// SetLogger overrides the structured logger used for operation outcomes.
func (m *Marketplace) SetLogger(log *slog.Logger) {
	if log == nil {
		log = slog.Default()
	}
	m.log = log
}

// SetEmitter forwards an event emitter to every engine.
func (m *Marketplace) SetEmitter(emitter events.Emitter) {
	m.listings.SetEmitter(emitter)
	m.leases.SetEmitter(emitter)
	m.disputes.SetEmitter(emitter)
	m.reputation.SetEmitter(emitter)
	m.penalties.SetEmitter(emitter)
}

// SetNowFunc overrides the logical clock shared by all engines. Readings are
// clamped so the clock never runs backwards across operations.
func (m *Marketplace) SetNowFunc(now func() uint64) {
	if now == nil {
		now = func() uint64 { return uint64(time.Now().Unix()) }
	}
	m.nowFn = now
}

func (m *Marketplace) now() uint64 {
	t := m.nowFn()
	if t < m.lastNow {
		return m.lastNow
	}
	m.lastNow = t
	return t
}

// ApplyGenesis seeds the owner record, role sets, fee parameters and opening
// balances from the genesis file, then commits. Safe to call on a fresh
// database only; an installed owner aborts the whole seed.
func (m *Marketplace) ApplyGenesis(genesis *config.Genesis) error {
	err := func() error {
		owner, err := config.ParseAddress(genesis.Owner)
		if err != nil {
			return err
		}
		if err := m.authority.InstallOwner(owner); err != nil {
			return err
		}
		for _, raw := range genesis.Admins {
			addr, err := config.ParseAddress(raw)
			if err != nil {
				return err
			}
			if err := m.state.SetRole(access.RoleAdmin, addr); err != nil {
				return err
			}
		}
		for _, raw := range genesis.Mediators {
			addr, err := config.ParseAddress(raw)
			if err != nil {
				return err
			}
			if err := m.state.SetRole(access.RoleMediator, addr); err != nil {
				return err
			}
		}
		collector := owner
		if genesis.FeeCollector != "" {
			collector, err = config.ParseAddress(genesis.FeeCollector)
			if err != nil {
				return err
			}
		}
		if err := m.fees.SeedCollector(collector); err != nil {
			return err
		}
		if err := m.fees.Seed(m.cfg.FeeBps); err != nil {
			return err
		}
		for raw, rawAmount := range genesis.Balances {
			addr, err := config.ParseAddress(raw)
			if err != nil {
				return err
			}
			amount, err := config.ParseAmount(rawAmount)
			if err != nil {
				return err
			}
			if amount.Sign() == 0 {
				continue
			}
			if err := m.state.Mint(addr, amount); err != nil {
				return err
			}
		}
		return nil
	}()
	if err != nil {
		m.state.Reset()
		return err
	}
	return m.state.Commit()
}

// run executes one operation with the all-or-nothing contract: the pause
// guard and the engine call run against the overlay, a failure resets it and
// success commits it. Metrics and logs record the outcome either way.
func (m *Marketplace) run(module, op string, fn func() error) error {
	return m.execute(module, op, true, fn)
}

// runAdmin executes fee and access operations. These bypass the pause guard
// so a paused deployment can always be administered back to life.
func (m *Marketplace) runAdmin(module, op string, fn func() error) error {
	return m.execute(module, op, false, fn)
}

func (m *Marketplace) execute(module, op string, guarded bool, fn func() error) error {
	start := time.Now()
	var err error
	if guarded {
		err = nativecommon.Guard(m.state, module)
	}
	if err == nil {
		err = fn()
	}
	if err != nil {
		m.state.Reset()
	} else {
		err = m.state.Commit()
	}
	m.metrics.Observe(module, op, err, start)
	if err != nil {
		m.log.Warn("operation rejected", "module", module, "op", op, "err", err)
	} else {
		m.log.Info("operation applied", "module", module, "op", op)
	}
	return err
}

// --- Listing Registry ---

// CreateListing registers a new Active listing owned by the caller.
func (m *Marketplace) CreateListing(caller [20]byte, terms listings.Terms) (*listings.Listing, error) {
	var out *listings.Listing
	err := m.run(nativecommon.ModuleListings, "create", func() error {
		l, err := m.listings.Create(caller, terms)
		out = l
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateListing replaces the mutable terms of a caller-owned Active listing.
func (m *Marketplace) UpdateListing(caller [20]byte, id uint64, terms listings.Terms) (*listings.Listing, error) {
	var out *listings.Listing
	err := m.run(nativecommon.ModuleListings, "update", func() error {
		l, err := m.listings.Update(caller, id, terms)
		out = l
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SetListingStatus parks or reactivates a caller-owned listing.
func (m *Marketplace) SetListingStatus(caller [20]byte, id uint64, status listings.Status) (*listings.Listing, error) {
	var out *listings.Listing
	err := m.run(nativecommon.ModuleListings, "set_status", func() error {
		l, err := m.listings.SetStatus(caller, id, status)
		out = l
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetListing returns the stored listing.
func (m *Marketplace) GetListing(id uint64) (*listings.Listing, error) {
	return m.listings.Get(id)
}

// --- Agreement Engine ---

// CreateAgreement opens an agreement against an Active listing, escrowing the
// deposit. The caller becomes the tenant.
func (m *Marketplace) CreateAgreement(caller [20]byte, listingID, start, end uint64, deposit *big.Int) (*lease.Agreement, error) {
	var out *lease.Agreement
	err := m.run(nativecommon.ModuleLease, "create", func() error {
		a, err := m.leases.Create(caller, listingID, start, end, deposit)
		out = a
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PayRent settles one rent period on an Active agreement.
func (m *Marketplace) PayRent(caller [20]byte, agreementID uint64) error {
	return m.run(nativecommon.ModuleLease, "pay_periodic", func() error {
		return m.leases.PayPeriodic(caller, agreementID)
	})
}

// CompleteAgreement finishes an agreement cooperatively at or after its end.
func (m *Marketplace) CompleteAgreement(caller [20]byte, agreementID uint64) error {
	return m.run(nativecommon.ModuleLease, "complete", func() error {
		return m.leases.Complete(caller, agreementID)
	})
}

// GetAgreement returns the stored agreement.
func (m *Marketplace) GetAgreement(id uint64) (*lease.Agreement, error) {
	return m.leases.Get(id)
}

// AgreementPayments returns the append-only payment history of an agreement.
func (m *Marketplace) AgreementPayments(id uint64) ([]*lease.PaymentRecord, error) {
	return m.leases.Payments(id)
}

// --- Dispute Resolution ---

// FileDispute opens a dispute against an Active agreement.
func (m *Marketplace) FileDispute(caller [20]byte, agreementID uint64, reason, evidence string) (*dispute.Dispute, error) {
	var out *dispute.Dispute
	err := m.run(nativecommon.ModuleDispute, "file", func() error {
		d, err := m.disputes.File(caller, agreementID, reason, evidence)
		out = d
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ResolveDispute settles an open dispute with the mediator's split.
func (m *Marketplace) ResolveDispute(caller [20]byte, agreementID uint64, resolution string, tenantRefundPercent uint64) (*dispute.Dispute, error) {
	var out *dispute.Dispute
	err := m.run(nativecommon.ModuleDispute, "resolve", func() error {
		d, err := m.disputes.Resolve(caller, agreementID, resolution, tenantRefundPercent)
		out = d
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetDispute returns the dispute filed against an agreement, if any.
func (m *Marketplace) GetDispute(agreementID uint64) (*dispute.Dispute, error) {
	return m.disputes.Get(agreementID)
}

// --- Reputation ---

// Rate records a post-settlement rating of the agreement counterparty.
func (m *Marketplace) Rate(caller [20]byte, agreementID uint64, ratee [20]byte, rating uint8, comment string) (*reputation.Profile, error) {
	var out *reputation.Profile
	err := m.run(nativecommon.ModuleReputation, "rate", func() error {
		p, err := m.reputation.Rate(caller, agreementID, ratee, rating, comment)
		out = p
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReputationOf returns the aggregate reputation record for an identity.
func (m *Marketplace) ReputationOf(addr [20]byte) (*reputation.Profile, error) {
	return m.reputation.Profile(addr)
}

// ReviewsOf returns the review list for an identity.
func (m *Marketplace) ReviewsOf(addr [20]byte) ([]*reputation.Review, error) {
	return m.reputation.Reviews(addr)
}

// --- Penalty contracts ---

// CreatePenalty stakes a penalty amount against an obligation. The caller is
// the offender.
func (m *Marketplace) CreatePenalty(caller, beneficiary [20]byte, amount *big.Int, deadline uint64, obligation string) (*penalty.Contract, error) {
	var out *penalty.Contract
	err := m.run(nativecommon.ModulePenalty, "create", func() error {
		c, err := m.penalties.Create(caller, beneficiary, amount, deadline, obligation)
		out = c
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FulfillPenalty releases the stake back to the offender.
func (m *Marketplace) FulfillPenalty(caller [20]byte, id uint64) error {
	return m.run(nativecommon.ModulePenalty, "fulfill", func() error {
		return m.penalties.Fulfill(caller, id)
	})
}

// ClaimPenalty forfeits the stake to the beneficiary after the deadline.
func (m *Marketplace) ClaimPenalty(caller [20]byte, id uint64) error {
	return m.run(nativecommon.ModulePenalty, "claim", func() error {
		return m.penalties.Claim(caller, id)
	})
}

// DisputePenalty freezes a penalty contract pending mediator resolution.
func (m *Marketplace) DisputePenalty(caller [20]byte, id uint64) error {
	return m.run(nativecommon.ModulePenalty, "dispute", func() error {
		return m.penalties.Dispute(caller, id)
	})
}

// ResolvePenalty settles a disputed penalty contract.
func (m *Marketplace) ResolvePenalty(caller [20]byte, id uint64, resolution string, offenderRefundPercent uint64) error {
	return m.run(nativecommon.ModulePenalty, "resolve", func() error {
		return m.penalties.Resolve(caller, id, resolution, offenderRefundPercent)
	})
}

// GetPenalty returns the stored penalty contract.
func (m *Marketplace) GetPenalty(id uint64) (*penalty.Contract, error) {
	return m.penalties.Get(id)
}

// --- Fees & administration ---

// UpdateFee replaces the platform fee parameter. Owner-only, ceiling-bounded.
func (m *Marketplace) UpdateFee(caller [20]byte, bps uint64) error {
	return m.runAdmin("fees", "update", func() error {
		return m.fees.Update(caller, bps)
	})
}

// FeeBps returns the current platform fee parameter.
func (m *Marketplace) FeeBps() (uint64, error) {
	return m.fees.Bps()
}

// SetFeeCollector routes future fees to the provided wallet. Owner-only.
func (m *Marketplace) SetFeeCollector(caller, addr [20]byte) error {
	return m.runAdmin("fees", "set_collector", func() error {
		return m.fees.SetCollector(caller, addr)
	})
}

// TransferOwner hands the owner record to a new identity.
func (m *Marketplace) TransferOwner(caller, next [20]byte) error {
	return m.runAdmin("access", "transfer_owner", func() error {
		return m.authority.TransferOwner(caller, next)
	})
}

// AddAdmin adds an administrator. Owner-only.
func (m *Marketplace) AddAdmin(caller, addr [20]byte) error {
	return m.runAdmin("access", "add_admin", func() error {
		return m.authority.AddAdmin(caller, addr)
	})
}

// RemoveAdmin removes an administrator. Owner-only.
func (m *Marketplace) RemoveAdmin(caller, addr [20]byte) error {
	return m.runAdmin("access", "remove_admin", func() error {
		return m.authority.RemoveAdmin(caller, addr)
	})
}

// AddMediator adds a mediator. Owner or administrator.
func (m *Marketplace) AddMediator(caller, addr [20]byte) error {
	return m.runAdmin("access", "add_mediator", func() error {
		return m.authority.AddMediator(caller, addr)
	})
}

// RemoveMediator removes a mediator. Owner or administrator.
func (m *Marketplace) RemoveMediator(caller, addr [20]byte) error {
	return m.runAdmin("access", "remove_mediator", func() error {
		return m.authority.RemoveMediator(caller, addr)
	})
}

// PauseModule administratively halts a module. Owner-only.
func (m *Marketplace) PauseModule(caller [20]byte, module string) error {
	return m.runAdmin("access", "pause", func() error {
		if err := m.authority.Require(caller, access.CapOwner); err != nil {
			return err
		}
		return m.state.PausePut(module, true)
	})
}

// ResumeModule lifts an administrative halt. Owner-only.
func (m *Marketplace) ResumeModule(caller [20]byte, module string) error {
	return m.runAdmin("access", "resume", func() error {
		if err := m.authority.Require(caller, access.CapOwner); err != nil {
			return err
		}
		return m.state.PausePut(module, false)
	})
}

// BalanceOf returns the ledger balance of an identity.
func (m *Marketplace) BalanceOf(addr [20]byte) (*big.Int, error) {
	return m.state.Balance(addr)
}
