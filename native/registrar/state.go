package registrar

import (
	"encoding/hex"
	"fmt"

	"sharebook/core/events"
	"sharebook/native/registry"
)

// State is the JSON-friendly export of the controller lifecycle used for
// durable snapshots. The ledger snapshots separately.
type State struct {
	Owner    string `json:"owner"`
	Identity string `json:"identity"`
	Deployed bool   `json:"deployed"`
	Migrated bool   `json:"migrated"`
	Closed   bool   `json:"closed"`
}

func encodeAddr(addr [20]byte) string {
	return hex.EncodeToString(addr[:])
}

func decodeAddr(s string) ([20]byte, error) {
	var addr [20]byte
	raw, err := hex.DecodeString(s)
	if err != nil {
		return addr, fmt.Errorf("registrar: invalid address %q: %w", s, err)
	}
	if len(raw) != len(addr) {
		return addr, fmt.Errorf("registrar: address %q must be %d bytes", s, len(addr))
	}
	copy(addr[:], raw)
	return addr, nil
}

// Snapshot exports the controller lifecycle under the lock.
func (c *Controller) Snapshot() *State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &State{
		Owner:    encodeAddr(c.owner),
		Identity: encodeAddr(c.identity),
		Deployed: c.deployed,
		Migrated: c.migrated,
		Closed:   c.closed,
	}
}

// NewControllerFromState rebuilds a controller from a snapshot and, when the
// controller is deployed and still open, reattaches its ledger. The ledger's
// recorded administrator must match the controller identity; anything else
// means the snapshots drifted apart.
func NewControllerFromState(st *State, ledger *registry.Ledger) (*Controller, error) {
	if st == nil {
		return nil, fmt.Errorf("registrar: nil state")
	}
	owner, err := decodeAddr(st.Owner)
	if err != nil {
		return nil, err
	}
	identity, err := decodeAddr(st.Identity)
	if err != nil {
		return nil, err
	}
	if owner == zeroAddress {
		return nil, fmt.Errorf("%w: zero owner address", ErrInvalidArgument)
	}
	c := &Controller{
		owner:    owner,
		identity: identity,
		deployed: st.Deployed,
		migrated: st.Migrated,
		closed:   st.Closed,
		emitter:  events.NoopEmitter{},
	}
	if st.Closed {
		return c, nil
	}
	if st.Deployed {
		if ledger == nil {
			return nil, fmt.Errorf("registrar: deployed controller restored without a ledger")
		}
		if ledger.Admin() != identity {
			return nil, fmt.Errorf("registrar: ledger administrator does not match controller identity")
		}
		c.ledger = ledger
	}
	return c, nil
}
