package state

import (
	"fmt"
	"math/big"

	"leasechain/native/listings"
)

const listingKeyFmt = "listings/record/%d"

type storedListing struct {
	ID             uint64
	Owner          [20]byte
	PricePerPeriod *big.Int
	DepositAmount  *big.Int
	MinPeriod      uint64
	MaxPeriod      uint64
	Status         uint8
	CreatedAt      uint64
}

// ListingPut persists a listing record.
func (m *Manager) ListingPut(l *listings.Listing) error {
	if l == nil {
		return fmt.Errorf("state: nil listing")
	}
	if !l.Status.Valid() {
		return fmt.Errorf("state: invalid listing status %d", l.Status)
	}
	stored := storedListing{
		ID:             l.ID,
		Owner:          l.Owner,
		PricePerPeriod: l.PricePerPeriod,
		DepositAmount:  l.DepositAmount,
		MinPeriod:      l.MinPeriod,
		MaxPeriod:      l.MaxPeriod,
		Status:         uint8(l.Status),
		CreatedAt:      l.CreatedAt,
	}
	return m.KVPut([]byte(fmt.Sprintf(listingKeyFmt, l.ID)), stored)
}

// ListingGet loads a listing record by id.
func (m *Manager) ListingGet(id uint64) (*listings.Listing, bool, error) {
	var stored storedListing
	ok, err := m.KVGet([]byte(fmt.Sprintf(listingKeyFmt, id)), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	listing := &listings.Listing{
		ID:             stored.ID,
		Owner:          stored.Owner,
		PricePerPeriod: stored.PricePerPeriod,
		DepositAmount:  stored.DepositAmount,
		MinPeriod:      stored.MinPeriod,
		MaxPeriod:      stored.MaxPeriod,
		Status:         listings.Status(stored.Status),
		CreatedAt:      stored.CreatedAt,
	}
	return listing, true, nil
}
