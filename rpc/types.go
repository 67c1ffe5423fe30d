package rpc

import (
	"fmt"
	"math/big"
	"strings"

	"sharebook/crypto"
)

// addressParam decodes a bech32 share-register address supplied by a client.
func addressParam(value string) ([20]byte, error) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return [20]byte{}, fmt.Errorf("invalid address: %w", err)
	}
	if addr.Prefix() != crypto.ShrPrefix {
		return [20]byte{}, fmt.Errorf("invalid address prefix %q", addr.Prefix())
	}
	return addr.Raw(), nil
}

// amountParam parses a decimal unit count. Units are indivisible integers.
func amountParam(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("amount must be supplied")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	return amount, nil
}

type createLedgerParams struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

type addressParams struct {
	Address string `json:"address"`
}

type whitelistParams struct {
	Address string `json:"address"`
	Info    string `json:"info"`
}

type issueParams struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

type transferParams struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type cancelParams struct {
	Original    string `json:"original"`
	Replacement string `json:"replacement"`
}

type migrateRecordParams struct {
	Address string `json:"address"`
	Info    string `json:"info"`
	Balance string `json:"balance,omitempty"`
}

type finishMigrationParams struct {
	NewOwner string `json:"newOwner,omitempty"`
}

type fingerprintParams struct {
	Address     string `json:"address"`
	Fingerprint string `json:"fingerprint"`
}

type holderAtParams struct {
	Index int `json:"index"`
}

type auditRangeParams struct {
	From uint64 `json:"from"`
	To   uint64 `json:"to"`
}

type statusResult struct {
	Deployed bool   `json:"deployed"`
	Migrated bool   `json:"migrated"`
	Closed   bool   `json:"closed"`
	Owner    string `json:"owner"`
}

type ledgerInfoResult struct {
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	TotalSupply string `json:"totalSupply"`
	HolderCount int    `json:"holderCount"`
	Frozen      bool   `json:"frozen"`
	Closed      bool   `json:"closed"`
}

type toggleResult struct {
	Enabled bool `json:"enabled"`
}

type balanceResult struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
}

type addressResult struct {
	Address string `json:"address"`
}

type boolResult struct {
	Value bool `json:"value"`
}
