package registry

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"sort"

	"sharebook/crypto"
)

// State is the JSON-friendly export of a ledger used for durable snapshots.
// Addresses and fingerprints are hex encoded; amounts are decimal strings so
// arbitrary-precision values survive the round trip.
type State struct {
	Name          string               `json:"name"`
	Symbol        string               `json:"symbol"`
	Admin         string               `json:"admin"`
	Identities    []IdentityRecord     `json:"identities"`
	Balances      []BalanceRecord      `json:"balances"`
	Holders       []string             `json:"holders"`
	Allowances    []AllowanceRecord    `json:"allowances,omitempty"`
	Cancellations []CancellationRecord `json:"cancellations,omitempty"`
	Locked        []string             `json:"locked,omitempty"`
	Frozen        bool                 `json:"frozen"`
	Closed        bool                 `json:"closed"`
	TotalSupply   string               `json:"totalSupply"`
}

type IdentityRecord struct {
	Address     string `json:"address"`
	Fingerprint string `json:"fingerprint"`
}

type BalanceRecord struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

type AllowanceRecord struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

type CancellationRecord struct {
	Original    string `json:"original"`
	Replacement string `json:"replacement"`
}

func encodeAddr(addr [20]byte) string {
	return hex.EncodeToString(addr[:])
}

func decodeAddr(s string) ([20]byte, error) {
	var addr [20]byte
	raw, err := hex.DecodeString(s)
	if err != nil {
		return addr, fmt.Errorf("registry: invalid address %q: %w", s, err)
	}
	if len(raw) != len(addr) {
		return addr, fmt.Errorf("registry: address %q must be %d bytes", s, len(addr))
	}
	copy(addr[:], raw)
	return addr, nil
}

func parseAmount(s string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(s, 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("registry: invalid amount %q", s)
	}
	return amount, nil
}

// Snapshot exports the full ledger state under the lock. Map-backed sections
// are sorted so repeated snapshots of the same state are byte-identical.
func (l *Ledger) Snapshot() *State {
	l.mu.Lock()
	defer l.mu.Unlock()

	st := &State{
		Name:        l.name,
		Symbol:      l.symbol,
		Admin:       encodeAddr(l.admin),
		Frozen:      l.frozen,
		Closed:      l.closed,
		TotalSupply: l.totalSupply.String(),
	}
	for addr, fp := range l.fingerprints {
		st.Identities = append(st.Identities, IdentityRecord{
			Address:     encodeAddr(addr),
			Fingerprint: hex.EncodeToString(fp[:]),
		})
	}
	sort.Slice(st.Identities, func(i, j int) bool { return st.Identities[i].Address < st.Identities[j].Address })

	for addr, amount := range l.balances {
		st.Balances = append(st.Balances, BalanceRecord{
			Address: encodeAddr(addr),
			Amount:  amount.String(),
		})
	}
	sort.Slice(st.Balances, func(i, j int) bool { return st.Balances[i].Address < st.Balances[j].Address })

	for _, addr := range l.holders {
		st.Holders = append(st.Holders, encodeAddr(addr))
	}

	for owner, grants := range l.allowances {
		for spender, amount := range grants {
			st.Allowances = append(st.Allowances, AllowanceRecord{
				Owner:   encodeAddr(owner),
				Spender: encodeAddr(spender),
				Amount:  amount.String(),
			})
		}
	}
	sort.Slice(st.Allowances, func(i, j int) bool {
		if st.Allowances[i].Owner != st.Allowances[j].Owner {
			return st.Allowances[i].Owner < st.Allowances[j].Owner
		}
		return st.Allowances[i].Spender < st.Allowances[j].Spender
	})

	for original, replacement := range l.cancellations {
		st.Cancellations = append(st.Cancellations, CancellationRecord{
			Original:    encodeAddr(original),
			Replacement: encodeAddr(replacement),
		})
	}
	sort.Slice(st.Cancellations, func(i, j int) bool { return st.Cancellations[i].Original < st.Cancellations[j].Original })

	for addr := range l.locked {
		st.Locked = append(st.Locked, encodeAddr(addr))
	}
	sort.Strings(st.Locked)

	return st
}

// NewLedgerFromState rebuilds a ledger from a snapshot, re-deriving the
// reverse holder index and validating the index/balance consistency invariant
// before handing the ledger back.
func NewLedgerFromState(st *State) (*Ledger, error) {
	if st == nil {
		return nil, fmt.Errorf("registry: nil state")
	}
	admin, err := decodeAddr(st.Admin)
	if err != nil {
		return nil, err
	}
	l := NewLedger(st.Name, st.Symbol, admin)

	for _, rec := range st.Identities {
		addr, err := decodeAddr(rec.Address)
		if err != nil {
			return nil, err
		}
		fp, err := crypto.ParseFingerprint(rec.Fingerprint)
		if err != nil {
			return nil, err
		}
		if fp.IsZero() {
			return nil, fmt.Errorf("registry: zero fingerprint for %s", rec.Address)
		}
		l.fingerprints[addr] = fp
	}

	for _, rec := range st.Balances {
		addr, err := decodeAddr(rec.Address)
		if err != nil {
			return nil, err
		}
		amount, err := parseAmount(rec.Amount)
		if err != nil {
			return nil, err
		}
		if amount.Sign() == 0 {
			continue
		}
		l.balances[addr] = amount
	}

	for i, encoded := range st.Holders {
		addr, err := decodeAddr(encoded)
		if err != nil {
			return nil, err
		}
		if _, dup := l.holderIndex[addr]; dup {
			return nil, fmt.Errorf("registry: duplicate holder %s", encoded)
		}
		l.holderIndex[addr] = i
		l.holders = append(l.holders, addr)
	}
	if len(l.holders) != len(l.balances) {
		return nil, fmt.Errorf("registry: holder index and balance map disagree (%d holders, %d balances)", len(l.holders), len(l.balances))
	}
	for addr := range l.balances {
		if _, ok := l.holderIndex[addr]; !ok {
			return nil, fmt.Errorf("registry: holder %s missing from index", encodeAddr(addr))
		}
	}

	for _, rec := range st.Allowances {
		owner, err := decodeAddr(rec.Owner)
		if err != nil {
			return nil, err
		}
		spender, err := decodeAddr(rec.Spender)
		if err != nil {
			return nil, err
		}
		amount, err := parseAmount(rec.Amount)
		if err != nil {
			return nil, err
		}
		l.setAllowance(owner, spender, amount)
	}

	for _, rec := range st.Cancellations {
		original, err := decodeAddr(rec.Original)
		if err != nil {
			return nil, err
		}
		replacement, err := decodeAddr(rec.Replacement)
		if err != nil {
			return nil, err
		}
		l.cancellations[original] = replacement
	}

	for _, encoded := range st.Locked {
		addr, err := decodeAddr(encoded)
		if err != nil {
			return nil, err
		}
		l.locked[addr] = true
	}

	supply, err := parseAmount(st.TotalSupply)
	if err != nil {
		return nil, err
	}
	sum := new(big.Int)
	for _, amount := range l.balances {
		sum.Add(sum, amount)
	}
	if sum.Cmp(supply) != 0 {
		return nil, fmt.Errorf("registry: balance sum %s does not match total supply %s", sum, supply)
	}
	l.totalSupply = supply

	l.frozen = st.Frozen
	l.closed = st.Closed
	return l, nil
}
