package registry

import (
	"math/big"

	"sharebook/core/types"
	"sharebook/crypto"
)

const (
	EventTypeIdentityAdded     = "registry.identity.added"
	EventTypeIdentityRemoved   = "registry.identity.removed"
	EventTypeIdentityUpdated   = "registry.identity.updated"
	EventTypeSharesIssued      = "registry.shares.issued"
	EventTypeSharesTransferred = "registry.shares.transferred"
	EventTypeSharesBurned      = "registry.shares.burned"
	EventTypeApprovalSet       = "registry.approval.set"
	EventTypeHolderSuperseded  = "registry.holder.superseded"
	EventTypeFreezeToggled     = "registry.freeze.toggled"
	EventTypeLockToggled       = "registry.lock.toggled"
	EventTypeLedgerClosed      = "registry.closed"
)

func addressString(addr [20]byte) string {
	return crypto.MustNewAddress(addr).String()
}

func amountString(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.String()
}

// IdentityAdded is emitted when an address is verified for the first time.
type IdentityAdded struct {
	Address     [20]byte
	Fingerprint crypto.Fingerprint
}

func (IdentityAdded) EventType() string { return EventTypeIdentityAdded }

// Event converts the strongly typed event to the generic representation used
// by subscribers.
func (e IdentityAdded) Event() *types.Event {
	return &types.Event{
		Type: EventTypeIdentityAdded,
		Attributes: map[string]string{
			"address":     addressString(e.Address),
			"fingerprint": e.Fingerprint.Hex(),
		},
	}
}

// IdentityRemoved is emitted when a zero-balance address loses verification.
type IdentityRemoved struct {
	Address [20]byte
}

func (IdentityRemoved) EventType() string { return EventTypeIdentityRemoved }

func (e IdentityRemoved) Event() *types.Event {
	return &types.Event{
		Type: EventTypeIdentityRemoved,
		Attributes: map[string]string{
			"address": addressString(e.Address),
		},
	}
}

// IdentityUpdated is emitted when a verified address receives a new
// fingerprint. Carries both digests so the off-ledger database can reconcile.
type IdentityUpdated struct {
	Address        [20]byte
	OldFingerprint crypto.Fingerprint
	NewFingerprint crypto.Fingerprint
}

func (IdentityUpdated) EventType() string { return EventTypeIdentityUpdated }

func (e IdentityUpdated) Event() *types.Event {
	return &types.Event{
		Type: EventTypeIdentityUpdated,
		Attributes: map[string]string{
			"address": addressString(e.Address),
			"old":     e.OldFingerprint.Hex(),
			"new":     e.NewFingerprint.Hex(),
		},
	}
}

// SharesIssued is emitted when the administrator mints units to a holder.
type SharesIssued struct {
	To          [20]byte
	Amount      *big.Int
	TotalSupply *big.Int
}

func (SharesIssued) EventType() string { return EventTypeSharesIssued }

func (e SharesIssued) Event() *types.Event {
	return &types.Event{
		Type: EventTypeSharesIssued,
		Attributes: map[string]string{
			"to":          addressString(e.To),
			"amount":      amountString(e.Amount),
			"totalSupply": amountString(e.TotalSupply),
		},
	}
}

// SharesTransferred is emitted on every successful transfer.
type SharesTransferred struct {
	From   [20]byte
	To     [20]byte
	Amount *big.Int
}

func (SharesTransferred) EventType() string { return EventTypeSharesTransferred }

func (e SharesTransferred) Event() *types.Event {
	return &types.Event{
		Type: EventTypeSharesTransferred,
		Attributes: map[string]string{
			"from":   addressString(e.From),
			"to":     addressString(e.To),
			"amount": amountString(e.Amount),
		},
	}
}

// SharesBurned is emitted when the administrator retires units.
type SharesBurned struct {
	From        [20]byte
	Amount      *big.Int
	TotalSupply *big.Int
}

func (SharesBurned) EventType() string { return EventTypeSharesBurned }

func (e SharesBurned) Event() *types.Event {
	return &types.Event{
		Type: EventTypeSharesBurned,
		Attributes: map[string]string{
			"from":        addressString(e.From),
			"amount":      amountString(e.Amount),
			"totalSupply": amountString(e.TotalSupply),
		},
	}
}

// ApprovalSet is emitted when an allowance is set or adjusted.
type ApprovalSet struct {
	Owner   [20]byte
	Spender [20]byte
	Amount  *big.Int
}

func (ApprovalSet) EventType() string { return EventTypeApprovalSet }

func (e ApprovalSet) Event() *types.Event {
	return &types.Event{
		Type: EventTypeApprovalSet,
		Attributes: map[string]string{
			"owner":   addressString(e.Owner),
			"spender": addressString(e.Spender),
			"amount":  amountString(e.Amount),
		},
	}
}

// HolderSuperseded is emitted when cancel-and-reissue splices a replacement
// address into an original holder's position.
type HolderSuperseded struct {
	Original    [20]byte
	Replacement [20]byte
	Amount      *big.Int
}

func (HolderSuperseded) EventType() string { return EventTypeHolderSuperseded }

func (e HolderSuperseded) Event() *types.Event {
	return &types.Event{
		Type: EventTypeHolderSuperseded,
		Attributes: map[string]string{
			"original":    addressString(e.Original),
			"replacement": addressString(e.Replacement),
			"amount":      amountString(e.Amount),
		},
	}
}

// FreezeToggled carries the new state of the ledger-wide freeze flag.
type FreezeToggled struct {
	Frozen bool
}

func (FreezeToggled) EventType() string { return EventTypeFreezeToggled }

func (e FreezeToggled) Event() *types.Event {
	frozen := "false"
	if e.Frozen {
		frozen = "true"
	}
	return &types.Event{
		Type:       EventTypeFreezeToggled,
		Attributes: map[string]string{"frozen": frozen},
	}
}

// LockToggled carries the new state of a per-address lock.
type LockToggled struct {
	Address [20]byte
	Locked  bool
}

func (LockToggled) EventType() string { return EventTypeLockToggled }

func (e LockToggled) Event() *types.Event {
	locked := "false"
	if e.Locked {
		locked = "true"
	}
	return &types.Event{
		Type: EventTypeLockToggled,
		Attributes: map[string]string{
			"address": addressString(e.Address),
			"locked":  locked,
		},
	}
}

// LedgerClosed is emitted exactly once, when the terminal migration freeze
// takes effect.
type LedgerClosed struct {
	Name   string
	Symbol string
}

func (LedgerClosed) EventType() string { return EventTypeLedgerClosed }

func (e LedgerClosed) Event() *types.Event {
	return &types.Event{
		Type: EventTypeLedgerClosed,
		Attributes: map[string]string{
			"name":   e.Name,
			"symbol": e.Symbol,
		},
	}
}
