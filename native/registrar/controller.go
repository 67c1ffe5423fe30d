package registrar

import (
	"fmt"
	"math/big"
	"sync"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"sharebook/core/events"
	"sharebook/crypto"
	"sharebook/native/registry"
)

var zeroAddress [20]byte

// Controller is the privileged façade over exactly one registry.Ledger. It
// gates every mutation behind the owner identity, translates raw identity
// info into fingerprints before anything reaches the ledger, and owns the
// deployment lifecycle: NotDeployed → Deployed(onboarding) → Deployed(ready)
// → Closed. Closed is terminal; after CloseForMigration the controller is
// permanently inert.
//
// The controller is a caller like any other from the ledger's point of view:
// it holds the ledger's administrator identity and goes through the exported
// ledger operations only, never the ledger's internal state.
type Controller struct {
	mu sync.Mutex

	owner    [20]byte
	identity [20]byte
	ledger   *registry.Ledger

	deployed bool
	migrated bool
	closed   bool

	emitter events.Emitter
}

// NewController creates a controller owned by the deployer identity. The
// controller's own ledger-administrator identity is derived deterministically
// from the initial owner so a restarted process reconstructs the same
// administrator binding.
func NewController(owner [20]byte) (*Controller, error) {
	if owner == zeroAddress {
		return nil, fmt.Errorf("%w: zero owner address", ErrInvalidArgument)
	}
	return &Controller{
		owner:    owner,
		identity: deriveIdentity(owner),
		emitter:  events.NoopEmitter{},
	}, nil
}

// deriveIdentity hashes the initial owner into the 20-byte administrator
// identity the controller presents to its ledger.
func deriveIdentity(owner [20]byte) [20]byte {
	digest := ethcrypto.Keccak256([]byte("sharebook/registrar"), owner[:])
	var identity [20]byte
	copy(identity[:], digest[12:])
	return identity
}

// SetEmitter configures the event emitter for the controller and, once
// deployed, its ledger. Passing nil resets to a no-op implementation.
func (c *Controller) SetEmitter(emitter events.Emitter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if emitter == nil {
		c.emitter = events.NoopEmitter{}
	} else {
		c.emitter = emitter
	}
	if c.ledger != nil {
		c.ledger.SetEmitter(c.emitter)
	}
}

func (c *Controller) emit(evt events.Event) {
	if c.emitter != nil {
		c.emitter.Emit(evt)
	}
}

// guard runs the shared precondition chain: the controller must not be
// closed, the caller must be the owner, and (when required) the ledger must
// exist.
func (c *Controller) guard(caller [20]byte, needLedger bool) error {
	if c.closed {
		return ErrControllerClosed
	}
	if caller != c.owner {
		return ErrNotOwner
	}
	if needLedger && !c.deployed {
		return ErrNotDeployed
	}
	return nil
}

// CreateLedger instantiates the one ledger this controller will ever own and
// binds the controller as its administrator. A second invocation fails hard.
func (c *Controller) CreateLedger(caller [20]byte, name, symbol string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guard(caller, false); err != nil {
		return err
	}
	if c.deployed {
		return ErrAlreadyDeployed
	}
	ledger := registry.NewLedger(name, symbol, c.identity)
	ledger.SetEmitter(c.emitter)
	c.ledger = ledger
	c.deployed = true
	c.emit(Deployed{Name: name, Symbol: symbol, Admin: c.identity})
	return nil
}

// Whitelist fingerprints the raw identity info and verifies the address.
func (c *Controller) Whitelist(caller, addr [20]byte, rawInfo string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guard(caller, true); err != nil {
		return err
	}
	fingerprint, err := crypto.FingerprintInfo(rawInfo)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return c.ledger.AddVerified(c.identity, addr, fingerprint)
}

// RemoveWhitelist clears the verification of a zero-balance address.
func (c *Controller) RemoveWhitelist(caller, addr [20]byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guard(caller, true); err != nil {
		return err
	}
	return c.ledger.RemoveVerified(c.identity, addr)
}

// UpdateWhitelist rebinds a verified address to a new identity record.
func (c *Controller) UpdateWhitelist(caller, addr [20]byte, rawInfo string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guard(caller, true); err != nil {
		return err
	}
	fingerprint, err := crypto.FingerprintInfo(rawInfo)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return c.ledger.UpdateVerified(c.identity, addr, fingerprint)
}

// Issue mints units to a verified holder.
func (c *Controller) Issue(caller, to [20]byte, amount *big.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guard(caller, true); err != nil {
		return err
	}
	return c.ledger.Issue(c.identity, to, amount)
}

// MasterTransfer forwards a transfer on behalf of any holder. The normal
// transfer rules (freeze, locks, receiver verification) still apply.
func (c *Controller) MasterTransfer(caller, from, to [20]byte, amount *big.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guard(caller, true); err != nil {
		return err
	}
	return c.ledger.Transfer(from, to, amount)
}

// Burn retires units held by an address.
func (c *Controller) Burn(caller, from [20]byte, amount *big.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guard(caller, true); err != nil {
		return err
	}
	return c.ledger.Burn(c.identity, from, amount)
}

// ToggleFreeze flips the ledger-wide freeze and returns the new state.
func (c *Controller) ToggleFreeze(caller [20]byte) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guard(caller, true); err != nil {
		return false, err
	}
	return c.ledger.ToggleFreeze(c.identity)
}

// ToggleLock flips a per-address lock and returns the new state.
func (c *Controller) ToggleLock(caller, addr [20]byte) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guard(caller, true); err != nil {
		return false, err
	}
	return c.ledger.ToggleLock(c.identity, addr)
}

// CancelAndReissue splices a replacement address into an existing holder's
// position, identity and balance included.
func (c *Controller) CancelAndReissue(caller, original, replacement [20]byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guard(caller, true); err != nil {
		return err
	}
	return c.ledger.CancelAndReissue(c.identity, original, replacement)
}

// MigrateRecord onboards one externally sourced (address, info, balance)
// record: verify, then issue when the balance is positive. The external
// orchestrator drives it once per record; a retried record fails cleanly on
// the duplicate AddVerified without touching state.
func (c *Controller) MigrateRecord(caller, addr [20]byte, rawInfo string, balance *big.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guard(caller, true); err != nil {
		return err
	}
	if c.migrated {
		return ErrAlreadyMigrated
	}
	fingerprint, err := crypto.FingerprintInfo(rawInfo)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	if err := c.ledger.AddVerified(c.identity, addr, fingerprint); err != nil {
		return err
	}
	if balance != nil && balance.Sign() > 0 {
		return c.ledger.Issue(c.identity, addr, balance)
	}
	return nil
}

// FinishMigration closes the bulk-onboarding window and, when a fresh owner
// address is supplied, hands the controller to the permanent administrator.
func (c *Controller) FinishMigration(caller, newOwner [20]byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guard(caller, true); err != nil {
		return err
	}
	if c.migrated {
		return ErrAlreadyMigrated
	}
	if newOwner != zeroAddress && newOwner != c.owner {
		c.owner = newOwner
	}
	c.migrated = true
	c.emit(Ready{Owner: c.owner})
	return nil
}

// CloseForMigration is the irreversible shutdown path: it cascades the
// terminal freeze into the ledger, marks the controller closed and drops the
// ledger handle. Every subsequent call fails with ErrControllerClosed.
func (c *Controller) CloseForMigration(caller [20]byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guard(caller, true); err != nil {
		return err
	}
	if err := c.ledger.FreezeSuper(c.identity); err != nil {
		return err
	}
	c.closed = true
	c.ledger = nil
	c.emit(Closed{Owner: c.owner})
	return nil
}

// --- Queries ---

// Owner returns the current owner identity.
func (c *Controller) Owner() [20]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.owner
}

// Identity returns the administrator identity the controller presents to its
// ledger.
func (c *Controller) Identity() [20]byte {
	return c.identity
}

// Ledger returns the owned ledger for read-only queries, or nil before
// deployment and after closing.
func (c *Controller) Ledger() *registry.Ledger {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ledger
}

// Deployed reports whether CreateLedger has run.
func (c *Controller) Deployed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deployed
}

// Migrated reports whether bulk onboarding has finished.
func (c *Controller) Migrated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.migrated
}

// Closed reports whether the controller has shut down for migration.
func (c *Controller) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
