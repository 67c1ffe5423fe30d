package registrar

import (
	"sharebook/core/types"
	"sharebook/crypto"
)

const (
	EventTypeDeployed = "registrar.deployed"
	EventTypeReady    = "registrar.ready"
	EventTypeClosed   = "registrar.closed"
)

// Deployed is emitted when the controller instantiates its ledger.
type Deployed struct {
	Name   string
	Symbol string
	Admin  [20]byte
}

func (Deployed) EventType() string { return EventTypeDeployed }

func (e Deployed) Event() *types.Event {
	return &types.Event{
		Type: EventTypeDeployed,
		Attributes: map[string]string{
			"name":   e.Name,
			"symbol": e.Symbol,
			"admin":  crypto.MustNewAddress(e.Admin).String(),
		},
	}
}

// Ready is emitted when bulk onboarding completes and ownership rests with the
// permanent administrator.
type Ready struct {
	Owner [20]byte
}

func (Ready) EventType() string { return EventTypeReady }

func (e Ready) Event() *types.Event {
	return &types.Event{
		Type: EventTypeReady,
		Attributes: map[string]string{
			"owner": crypto.MustNewAddress(e.Owner).String(),
		},
	}
}

// Closed is emitted exactly once, when the controller shuts down for
// migration and cascades the terminal freeze into its ledger.
type Closed struct {
	Owner [20]byte
}

func (Closed) EventType() string { return EventTypeClosed }

func (e Closed) Event() *types.Event {
	return &types.Event{
		Type: EventTypeClosed,
		Attributes: map[string]string{
			"owner": crypto.MustNewAddress(e.Owner).String(),
		},
	}
}
