package state

import (
	"fmt"
	"math/big"

	"leasechain/native/lease"
)

const (
	agreementKeyFmt = "lease/record/%d"
	paymentsKeyFmt  = "lease/payments/%d"
)

type storedAgreement struct {
	ID              uint64
	ListingID       uint64
	Landlord        [20]byte
	Tenant          [20]byte
	Start           uint64
	End             uint64
	PeriodicAmount  *big.Int
	DepositAmount   *big.Int
	LastPaymentTime uint64
	Status          uint8
	CreatedAt       uint64
}

type storedPaymentRecord struct {
	Amount     *big.Int
	Timestamp  uint64
	Kind       uint8
	RecordedBy [20]byte
}

// AgreementPut persists an agreement record.
func (m *Manager) AgreementPut(a *lease.Agreement) error {
	if a == nil {
		return fmt.Errorf("state: nil agreement")
	}
	if !a.Status.Valid() {
		return fmt.Errorf("state: invalid agreement status %d", a.Status)
	}
	stored := storedAgreement{
		ID:              a.ID,
		ListingID:       a.ListingID,
		Landlord:        a.Landlord,
		Tenant:          a.Tenant,
		Start:           a.Start,
		End:             a.End,
		PeriodicAmount:  a.PeriodicAmount,
		DepositAmount:   a.DepositAmount,
		LastPaymentTime: a.LastPaymentTime,
		Status:          uint8(a.Status),
		CreatedAt:       a.CreatedAt,
	}
	return m.KVPut([]byte(fmt.Sprintf(agreementKeyFmt, a.ID)), stored)
}

// AgreementGet loads an agreement record by id.
func (m *Manager) AgreementGet(id uint64) (*lease.Agreement, bool, error) {
	var stored storedAgreement
	ok, err := m.KVGet([]byte(fmt.Sprintf(agreementKeyFmt, id)), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	agreement := &lease.Agreement{
		ID:              stored.ID,
		ListingID:       stored.ListingID,
		Landlord:        stored.Landlord,
		Tenant:          stored.Tenant,
		Start:           stored.Start,
		End:             stored.End,
		PeriodicAmount:  stored.PeriodicAmount,
		DepositAmount:   stored.DepositAmount,
		LastPaymentTime: stored.LastPaymentTime,
		Status:          lease.Status(stored.Status),
		CreatedAt:       stored.CreatedAt,
	}
	return agreement, true, nil
}

// PaymentAppend appends a record to the agreement's audit trail. The list is
// append-only; stored entries are never rewritten.
func (m *Manager) PaymentAppend(agreementID uint64, record *lease.PaymentRecord) error {
	if record == nil {
		return fmt.Errorf("state: nil payment record")
	}
	key := []byte(fmt.Sprintf(paymentsKeyFmt, agreementID))
	var stored []storedPaymentRecord
	if _, err := m.KVGet(key, &stored); err != nil {
		return err
	}
	stored = append(stored, storedPaymentRecord{
		Amount:     record.Amount,
		Timestamp:  record.Timestamp,
		Kind:       uint8(record.Kind),
		RecordedBy: record.RecordedBy,
	})
	return m.KVPut(key, stored)
}

// Payments returns the agreement's payment history in append order.
func (m *Manager) Payments(agreementID uint64) ([]*lease.PaymentRecord, error) {
	var stored []storedPaymentRecord
	if _, err := m.KVGet([]byte(fmt.Sprintf(paymentsKeyFmt, agreementID)), &stored); err != nil {
		return nil, err
	}
	records := make([]*lease.PaymentRecord, 0, len(stored))
	for _, entry := range stored {
		amount := big.NewInt(0)
		if entry.Amount != nil {
			amount = new(big.Int).Set(entry.Amount)
		}
		records = append(records, &lease.PaymentRecord{
			Amount:     amount,
			Timestamp:  entry.Timestamp,
			Kind:       lease.PaymentKind(entry.Kind),
			RecordedBy: entry.RecordedBy,
		})
	}
	return records, nil
}
