package state

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"leasechain/core/types"
	"leasechain/storage"
)

// ErrInsufficientFunds is surfaced when a transfer would overdraw the sender.
// The ledger fails closed: neither account is touched.
var ErrInsufficientFunds = types.ErrInsufficientFunds

var (
	balancePrefix = []byte("account:")
	rolePrefix    = []byte("role:")
	counterPrefix = []byte("counter:")
)

// Manager is the single state backend behind every engine. Reads consult an
// in-memory overlay before falling through to the database; writes accumulate
// in the overlay until Commit flushes them. Reset discards the overlay, which
// is how a failed operation leaves zero observable state change.
//
// Manager is not safe for concurrent use. Operations are serialized by the
// marketplace facade.
type Manager struct {
	db      storage.Database
	pending map[string]pendingWrite
}

type pendingWrite struct {
	value   []byte
	deleted bool
}

// NewManager creates a state manager over the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db, pending: make(map[string]pendingWrite)}
}

func accountKey(addr [20]byte) []byte {
	buf := make([]byte, len(balancePrefix)+len(addr))
	copy(buf, balancePrefix)
	copy(buf[len(balancePrefix):], addr[:])
	return ethcrypto.Keccak256(buf)
}

func roleKey(role string) []byte {
	buf := make([]byte, len(rolePrefix)+len(role))
	copy(buf, rolePrefix)
	copy(buf[len(rolePrefix):], role)
	return ethcrypto.Keccak256(buf)
}

func counterKey(name string) []byte {
	buf := make([]byte, len(counterPrefix)+len(name))
	copy(buf, counterPrefix)
	copy(buf[len(counterPrefix):], name)
	return ethcrypto.Keccak256(buf)
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

func (m *Manager) rawGet(hashed []byte) ([]byte, error) {
	if entry, ok := m.pending[string(hashed)]; ok {
		if entry.deleted {
			return nil, nil
		}
		return entry.value, nil
	}
	data, err := m.db.Get(hashed)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (m *Manager) rawPut(hashed, value []byte) {
	m.pending[string(hashed)] = pendingWrite{value: append([]byte(nil), value...)}
}

func (m *Manager) rawDelete(hashed []byte) {
	m.pending[string(hashed)] = pendingWrite{deleted: true}
}

// Commit flushes all buffered writes to the backing database and clears the
// overlay. Writes are applied in sorted key order for determinism.
func (m *Manager) Commit() error {
	keys := make([]string, 0, len(m.pending))
	for key := range m.pending {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		entry := m.pending[key]
		if entry.deleted {
			if err := m.db.Delete([]byte(key)); err != nil {
				return err
			}
			continue
		}
		if err := m.db.Put([]byte(key), entry.value); err != nil {
			return err
		}
	}
	m.pending = make(map[string]pendingWrite)
	return nil
}

// Reset discards all buffered writes, rolling the manager back to the last
// committed state.
func (m *Manager) Reset() {
	m.pending = make(map[string]pendingWrite)
}

// Dirty reports whether uncommitted writes are buffered.
func (m *Manager) Dirty() bool {
	return len(m.pending) > 0
}

type storedAccount struct {
	Nonce   uint64
	Balance *big.Int
}

// GetAccount loads the account record for addr, returning a zero-balance
// account when none has been persisted yet.
func (m *Manager) GetAccount(addr [20]byte) (*types.Account, error) {
	data, err := m.rawGet(accountKey(addr))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return &types.Account{Balance: big.NewInt(0)}, nil
	}
	var stored storedAccount
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return nil, err
	}
	balance := big.NewInt(0)
	if stored.Balance != nil {
		balance = new(big.Int).Set(stored.Balance)
	}
	return &types.Account{Nonce: stored.Nonce, Balance: balance}, nil
}

// PutAccount persists the account record for addr.
func (m *Manager) PutAccount(addr [20]byte, account *types.Account) error {
	if account == nil {
		return fmt.Errorf("state: nil account")
	}
	balance := account.Balance
	if balance == nil {
		balance = big.NewInt(0)
	}
	if balance.Sign() < 0 {
		return fmt.Errorf("state: negative balance for %x", addr)
	}
	encoded, err := rlp.EncodeToBytes(storedAccount{Nonce: account.Nonce, Balance: balance})
	if err != nil {
		return err
	}
	m.rawPut(accountKey(addr), encoded)
	return nil
}

// Transfer moves amount from one account to the other. A zero amount is a
// no-op. The debit and credit land in the overlay together, so a later Reset
// removes both.
func (m *Manager) Transfer(from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("state: negative transfer amount")
	}
	if from == to {
		return nil
	}
	fromAcc, err := m.GetAccount(from)
	if err != nil {
		return err
	}
	if fromAcc.Balance.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	toAcc, err := m.GetAccount(to)
	if err != nil {
		return err
	}
	fromAcc.Balance = new(big.Int).Sub(fromAcc.Balance, amount)
	toAcc.Balance = new(big.Int).Add(toAcc.Balance, amount)
	if err := m.PutAccount(from, fromAcc); err != nil {
		return err
	}
	return m.PutAccount(to, toAcc)
}

// Balance returns the spendable balance for addr.
func (m *Manager) Balance(addr [20]byte) (*big.Int, error) {
	account, err := m.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	return account.Balance, nil
}

// Mint credits freshly created funds to addr. Only genesis loading uses it.
func (m *Manager) Mint(addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("state: mint amount must be positive")
	}
	account, err := m.GetAccount(addr)
	if err != nil {
		return err
	}
	account.Balance = new(big.Int).Add(account.Balance, amount)
	return m.PutAccount(addr, account)
}

// SetRole associates an address with the specified role. Duplicate assignments
// are ignored while the stored list remains sorted for determinism.
func (m *Manager) SetRole(role string, addr [20]byte) error {
	trimmed := strings.TrimSpace(role)
	if trimmed == "" {
		return fmt.Errorf("state: role must not be empty")
	}
	members, err := m.RoleMembers(trimmed)
	if err != nil {
		return err
	}
	for _, existing := range members {
		if existing == addr {
			return nil
		}
	}
	members = append(members, addr)
	sort.Slice(members, func(i, j int) bool {
		return hex.EncodeToString(members[i][:]) < hex.EncodeToString(members[j][:])
	})
	return m.storeRoleMembers(trimmed, members)
}

// RemoveRole disassociates an address from the specified role. Removing an
// absent member is a no-op.
func (m *Manager) RemoveRole(role string, addr [20]byte) error {
	trimmed := strings.TrimSpace(role)
	if trimmed == "" {
		return fmt.Errorf("state: role must not be empty")
	}
	members, err := m.RoleMembers(trimmed)
	if err != nil {
		return err
	}
	filtered := members[:0]
	for _, existing := range members {
		if existing != addr {
			filtered = append(filtered, existing)
		}
	}
	return m.storeRoleMembers(trimmed, filtered)
}

func (m *Manager) storeRoleMembers(role string, members [][20]byte) error {
	raw := make([][]byte, len(members))
	for i, member := range members {
		raw[i] = append([]byte(nil), member[:]...)
	}
	encoded, err := rlp.EncodeToBytes(raw)
	if err != nil {
		return err
	}
	m.rawPut(roleKey(role), encoded)
	return nil
}

// RoleMembers returns all addresses assigned to the provided role.
func (m *Manager) RoleMembers(role string) ([][20]byte, error) {
	data, err := m.rawGet(roleKey(strings.TrimSpace(role)))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return [][20]byte{}, nil
	}
	var raw [][]byte
	if err := rlp.DecodeBytes(data, &raw); err != nil {
		return nil, err
	}
	members := make([][20]byte, 0, len(raw))
	for _, entry := range raw {
		if len(entry) != 20 {
			return nil, fmt.Errorf("state: malformed role member %x", entry)
		}
		var addr [20]byte
		copy(addr[:], entry)
		members = append(members, addr)
	}
	return members, nil
}

// HasRole reports whether the provided address is associated with the
// specified role. Read errors surface as false, matching the best-effort
// semantics required by authorization call sites.
func (m *Manager) HasRole(role string, addr [20]byte) bool {
	members, err := m.RoleMembers(role)
	if err != nil {
		return false
	}
	for _, member := range members {
		if bytes.Equal(member[:], addr[:]) {
			return true
		}
	}
	return false
}

// CounterNext increments the named monotonic counter and returns the new
// value. The first allocation for any name returns 1. The increment lives in
// the overlay, so a failed operation never burns an id.
func (m *Manager) CounterNext(name string) (uint64, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return 0, fmt.Errorf("state: counter name must not be empty")
	}
	key := counterKey(trimmed)
	data, err := m.rawGet(key)
	if err != nil {
		return 0, err
	}
	var current uint64
	if len(data) > 0 {
		if err := rlp.DecodeBytes(data, &current); err != nil {
			return 0, err
		}
	}
	next := current + 1
	encoded, err := rlp.EncodeToBytes(next)
	if err != nil {
		return 0, err
	}
	m.rawPut(key, encoded)
	return next, nil
}

// KVPut stores the provided value under the supplied key using RLP encoding.
// The key is hashed with keccak256 before hitting the database.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("state: kv key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	m.rawPut(kvKey(key), encoded)
	return nil
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean reports whether the key existed.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("state: kv key must not be empty")
	}
	data, err := m.rawGet(kvKey(key))
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVDelete removes the value stored under the supplied key.
func (m *Manager) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("state: kv key must not be empty")
	}
	m.rawDelete(kvKey(key))
	return nil
}
