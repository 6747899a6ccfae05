package config

import (
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// Genesis seeds the initial marketplace state: the owner record, role
// membership, the fee collector wallet and opening balances. Addresses are
// 0x-prefixed hex.
type Genesis struct {
	Owner        string            `yaml:"owner"`
	FeeCollector string            `yaml:"feeCollector"`
	Admins       []string          `yaml:"admins"`
	Mediators    []string          `yaml:"mediators"`
	Balances     map[string]string `yaml:"balances"`
}

// LoadGenesis reads and validates a genesis seed file.
func LoadGenesis(path string) (*Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var genesis Genesis
	if err := yaml.Unmarshal(data, &genesis); err != nil {
		return nil, err
	}
	if _, err := ParseAddress(genesis.Owner); err != nil {
		return nil, fmt.Errorf("genesis: owner: %w", err)
	}
	if genesis.FeeCollector != "" {
		if _, err := ParseAddress(genesis.FeeCollector); err != nil {
			return nil, fmt.Errorf("genesis: feeCollector: %w", err)
		}
	}
	for _, addr := range append(append([]string{}, genesis.Admins...), genesis.Mediators...) {
		if _, err := ParseAddress(addr); err != nil {
			return nil, fmt.Errorf("genesis: role member: %w", err)
		}
	}
	for addr, amount := range genesis.Balances {
		if _, err := ParseAddress(addr); err != nil {
			return nil, fmt.Errorf("genesis: balance entry: %w", err)
		}
		if _, err := ParseAmount(amount); err != nil {
			return nil, fmt.Errorf("genesis: balance for %s: %w", addr, err)
		}
	}
	return &genesis, nil
}

// ParseAddress decodes a 0x-prefixed hex address.
func ParseAddress(raw string) ([20]byte, error) {
	if !common.IsHexAddress(raw) {
		return [20]byte{}, fmt.Errorf("invalid address %q", raw)
	}
	return common.HexToAddress(raw), nil
}

// ParseAmount decodes a base-10 balance amount.
func ParseAmount(raw string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	return amount, nil
}
