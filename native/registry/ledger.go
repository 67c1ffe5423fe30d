package registry

import (
	"fmt"
	"math/big"
	"sync"

	"sharebook/core/events"
	"sharebook/crypto"
)

// maxCancellationHops bounds the iterative cancellation-chain walk. The chain
// is append-only and every replacement must be verified at record time, so a
// well-formed register never comes close to this depth.
const maxCancellationHops = 32

var zeroAddress [20]byte

// Ledger is the authoritative state machine of the share register: verified
// identities, balances, the shareholder index, per-address locks, the
// cancellation chain and the terminal migration flag. All invariants are
// enforced here and nowhere else; callers (including the registrar) only ever
// go through the exported operations.
//
// Every mutating operation runs inside one exclusive critical section and
// either applies all of its effects or none of them. Exactly one event is
// emitted per successful mutation, after the state change is complete.
type Ledger struct {
	mu sync.Mutex

	name   string
	symbol string
	admin  [20]byte

	fingerprints  map[[20]byte]crypto.Fingerprint
	balances      map[[20]byte]*big.Int
	allowances    map[[20]byte]map[[20]byte]*big.Int
	holders       [][20]byte
	holderIndex   map[[20]byte]int
	cancellations map[[20]byte][20]byte
	locked        map[[20]byte]bool

	frozen      bool
	closed      bool
	totalSupply *big.Int

	emitter events.Emitter
}

// NewLedger creates an empty register with an immutable name/symbol pair and a
// single administrator identity.
func NewLedger(name, symbol string, admin [20]byte) *Ledger {
	return &Ledger{
		name:          name,
		symbol:        symbol,
		admin:         admin,
		fingerprints:  make(map[[20]byte]crypto.Fingerprint),
		balances:      make(map[[20]byte]*big.Int),
		allowances:    make(map[[20]byte]map[[20]byte]*big.Int),
		holderIndex:   make(map[[20]byte]int),
		cancellations: make(map[[20]byte][20]byte),
		locked:        make(map[[20]byte]bool),
		totalSupply:   big.NewInt(0),
		emitter:       events.NoopEmitter{},
	}
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op
// implementation. Wiring happens before the ledger starts serving.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

func (l *Ledger) emit(evt events.Event) {
	if l.emitter != nil {
		l.emitter.Emit(evt)
	}
}

// requireAdmin gates every privileged operation behind the single recorded
// administrator identity.
func (l *Ledger) requireAdmin(caller [20]byte) error {
	if caller != l.admin {
		return ErrUnauthorized
	}
	return nil
}

// requireOpen rejects every mutation once the terminal migration freeze has
// taken effect.
func (l *Ledger) requireOpen() error {
	if l.closed {
		return ErrLedgerClosed
	}
	return nil
}

func validAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// balanceOf returns the stored balance without copying. Callers must hold the
// lock and must not mutate the result.
func (l *Ledger) balanceOf(addr [20]byte) *big.Int {
	if bal, ok := l.balances[addr]; ok {
		return bal
	}
	return big.NewInt(0)
}

// ensureHolder inserts addr at the tail of the shareholder index if absent.
func (l *Ledger) ensureHolder(addr [20]byte) {
	if _, ok := l.holderIndex[addr]; ok {
		return
	}
	l.holderIndex[addr] = len(l.holders)
	l.holders = append(l.holders, addr)
}

// pruneHolder removes addr from the shareholder index by swapping the last
// entry into its slot and truncating. O(1); iteration order is not preserved.
func (l *Ledger) pruneHolder(addr [20]byte) {
	idx, ok := l.holderIndex[addr]
	if !ok {
		return
	}
	last := len(l.holders) - 1
	moved := l.holders[last]
	l.holders[idx] = moved
	l.holderIndex[moved] = idx
	l.holders = l.holders[:last]
	delete(l.holderIndex, addr)
}

// --- Identity registry ---

// AddVerified records a fingerprint for a fresh address, marking it eligible
// to hold shares.
func (l *Ledger) AddVerified(caller, addr [20]byte, fingerprint crypto.Fingerprint) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.requireAdmin(caller); err != nil {
		return err
	}
	if err := l.requireOpen(); err != nil {
		return err
	}
	if addr == zeroAddress {
		return ErrInvalidAddress
	}
	if fingerprint.IsZero() {
		return ErrInvalidFingerprint
	}
	if _, cancelled := l.cancellations[addr]; cancelled {
		return ErrAddressCancelled
	}
	if _, ok := l.fingerprints[addr]; ok {
		return ErrAlreadyVerified
	}
	l.fingerprints[addr] = fingerprint
	l.emit(IdentityAdded{Address: addr, Fingerprint: fingerprint})
	return nil
}

// RemoveVerified clears a zero-balance address's fingerprint. Clearing an
// already-unverified address is a silent no-op so the off-ledger database can
// retry removals safely.
func (l *Ledger) RemoveVerified(caller, addr [20]byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.requireAdmin(caller); err != nil {
		return err
	}
	if err := l.requireOpen(); err != nil {
		return err
	}
	if l.balanceOf(addr).Sign() != 0 {
		return fmt.Errorf("%w: cannot unverify a holder with a balance", ErrShareholderExists)
	}
	if _, ok := l.fingerprints[addr]; !ok {
		return nil
	}
	delete(l.fingerprints, addr)
	l.emit(IdentityRemoved{Address: addr})
	return nil
}

// UpdateVerified replaces the fingerprint of a verified address. Supplying the
// stored value is a no-op and emits nothing.
func (l *Ledger) UpdateVerified(caller, addr [20]byte, fingerprint crypto.Fingerprint) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.requireAdmin(caller); err != nil {
		return err
	}
	if err := l.requireOpen(); err != nil {
		return err
	}
	if fingerprint.IsZero() {
		return ErrInvalidFingerprint
	}
	current, ok := l.fingerprints[addr]
	if !ok {
		return ErrNotVerified
	}
	if current == fingerprint {
		return nil
	}
	l.fingerprints[addr] = fingerprint
	l.emit(IdentityUpdated{Address: addr, OldFingerprint: current, NewFingerprint: fingerprint})
	return nil
}

// --- Share movement ---

// Issue mints units to a verified address, growing the total supply.
func (l *Ledger) Issue(caller, to [20]byte, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.requireAdmin(caller); err != nil {
		return err
	}
	if err := l.requireOpen(); err != nil {
		return err
	}
	if err := validAmount(amount); err != nil {
		return err
	}
	if _, ok := l.fingerprints[to]; !ok {
		return ErrNotVerified
	}
	l.ensureHolder(to)
	l.balances[to] = new(big.Int).Add(l.balanceOf(to), amount)
	l.totalSupply = new(big.Int).Add(l.totalSupply, amount)
	l.emit(SharesIssued{To: to, Amount: new(big.Int).Set(amount), TotalSupply: new(big.Int).Set(l.totalSupply)})
	return nil
}

// Transfer moves units from the caller to a verified, unlocked receiver.
func (l *Ledger) Transfer(from, to [20]byte, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.transferChecks(from, to, amount); err != nil {
		return err
	}
	l.applyTransfer(from, to, amount)
	return nil
}

// TransferFrom moves units on behalf of a holder under a previously approved
// allowance. The allowance is consumed before the transfer applies so a
// spender can never reuse it.
func (l *Ledger) TransferFrom(spender, from, to [20]byte, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.transferChecks(from, to, amount); err != nil {
		return err
	}
	granted := l.allowance(from, spender)
	if granted.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}
	l.setAllowance(from, spender, new(big.Int).Sub(granted, amount))
	l.applyTransfer(from, to, amount)
	return nil
}

// transferChecks validates every transfer precondition without mutating
// anything, so a rejection leaves the state untouched.
func (l *Ledger) transferChecks(from, to [20]byte, amount *big.Int) error {
	if err := l.requireOpen(); err != nil {
		return err
	}
	if l.frozen {
		return ErrLedgerFrozen
	}
	if err := validAmount(amount); err != nil {
		return err
	}
	if from == zeroAddress || to == zeroAddress {
		return ErrInvalidAddress
	}
	if l.locked[from] || l.locked[to] {
		return ErrAddressLocked
	}
	if _, ok := l.fingerprints[to]; !ok {
		return ErrNotVerified
	}
	if l.balanceOf(from).Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	return nil
}

// applyTransfer performs the validated balance movement. The receiver joins
// the shareholder index before balances change; the sender prune check reads
// the post-transfer balance. Both orderings are load-bearing for the index
// consistency invariant.
func (l *Ledger) applyTransfer(from, to [20]byte, amount *big.Int) {
	l.ensureHolder(to)
	if from != to {
		remaining := new(big.Int).Sub(l.balanceOf(from), amount)
		l.balances[to] = new(big.Int).Add(l.balanceOf(to), amount)
		if remaining.Sign() == 0 {
			delete(l.balances, from)
			l.pruneHolder(from)
		} else {
			l.balances[from] = remaining
		}
	}
	l.emit(SharesTransferred{From: from, To: to, Amount: new(big.Int).Set(amount)})
}

// Approve overwrites the spender's allowance over the owner's units.
func (l *Ledger) Approve(owner, spender [20]byte, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.requireOpen(); err != nil {
		return err
	}
	if owner == zeroAddress || spender == zeroAddress {
		return ErrInvalidAddress
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	l.setAllowance(owner, spender, new(big.Int).Set(amount))
	l.emit(ApprovalSet{Owner: owner, Spender: spender, Amount: new(big.Int).Set(amount)})
	return nil
}

// IncreaseAllowance raises the spender's allowance by amount.
func (l *Ledger) IncreaseAllowance(owner, spender [20]byte, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.requireOpen(); err != nil {
		return err
	}
	if owner == zeroAddress || spender == zeroAddress {
		return ErrInvalidAddress
	}
	if err := validAmount(amount); err != nil {
		return err
	}
	next := new(big.Int).Add(l.allowance(owner, spender), amount)
	l.setAllowance(owner, spender, next)
	l.emit(ApprovalSet{Owner: owner, Spender: spender, Amount: new(big.Int).Set(next)})
	return nil
}

// DecreaseAllowance lowers the spender's allowance by amount. Reducing below
// zero is rejected rather than clamped.
func (l *Ledger) DecreaseAllowance(owner, spender [20]byte, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.requireOpen(); err != nil {
		return err
	}
	if owner == zeroAddress || spender == zeroAddress {
		return ErrInvalidAddress
	}
	if err := validAmount(amount); err != nil {
		return err
	}
	granted := l.allowance(owner, spender)
	if granted.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}
	next := new(big.Int).Sub(granted, amount)
	l.setAllowance(owner, spender, next)
	l.emit(ApprovalSet{Owner: owner, Spender: spender, Amount: new(big.Int).Set(next)})
	return nil
}

func (l *Ledger) allowance(owner, spender [20]byte) *big.Int {
	if grants, ok := l.allowances[owner]; ok {
		if amount, ok := grants[spender]; ok {
			return amount
		}
	}
	return big.NewInt(0)
}

func (l *Ledger) setAllowance(owner, spender [20]byte, amount *big.Int) {
	grants, ok := l.allowances[owner]
	if !ok {
		if amount.Sign() == 0 {
			return
		}
		grants = make(map[[20]byte]*big.Int)
		l.allowances[owner] = grants
	}
	if amount.Sign() == 0 {
		delete(grants, spender)
		if len(grants) == 0 {
			delete(l.allowances, owner)
		}
		return
	}
	grants[spender] = amount
}

// Burn retires units held by an address, shrinking the total supply. This is
// an administrator override: neither verification nor locks are consulted.
func (l *Ledger) Burn(caller, from [20]byte, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.requireAdmin(caller); err != nil {
		return err
	}
	if err := l.requireOpen(); err != nil {
		return err
	}
	if err := validAmount(amount); err != nil {
		return err
	}
	balance := l.balanceOf(from)
	if balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	remaining := new(big.Int).Sub(balance, amount)
	if remaining.Sign() == 0 {
		delete(l.balances, from)
		l.pruneHolder(from)
	} else {
		l.balances[from] = remaining
	}
	l.totalSupply = new(big.Int).Sub(l.totalSupply, amount)
	l.emit(SharesBurned{From: from, Amount: new(big.Int).Set(amount), TotalSupply: new(big.Int).Set(l.totalSupply)})
	return nil
}

// CancelAndReissue retires a holder's address and splices a verified,
// zero-balance replacement into its exact shareholder slot, moving the entire
// balance in one step. It is the administrative remedy for lost keys and
// deliberately bypasses lock and freeze checks. The retired address keeps a
// permanent cancellation record pointing at its replacement.
func (l *Ledger) CancelAndReissue(caller, original, replacement [20]byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.requireAdmin(caller); err != nil {
		return err
	}
	if err := l.requireOpen(); err != nil {
		return err
	}
	if original == zeroAddress || replacement == zeroAddress || original == replacement {
		return ErrInvalidAddress
	}
	idx, holder := l.holderIndex[original]
	if !holder {
		return ErrNotShareholder
	}
	if _, ok := l.fingerprints[replacement]; !ok {
		return ErrNotVerified
	}
	if l.balanceOf(replacement).Sign() != 0 {
		return fmt.Errorf("%w: replacement must hold zero balance", ErrShareholderExists)
	}

	moved := l.balanceOf(original)
	delete(l.fingerprints, original)
	l.cancellations[original] = replacement
	l.holders[idx] = replacement
	l.holderIndex[replacement] = idx
	delete(l.holderIndex, original)
	l.balances[replacement] = moved
	delete(l.balances, original)

	l.emit(HolderSuperseded{Original: original, Replacement: replacement, Amount: new(big.Int).Set(moved)})
	return nil
}

// --- Lifecycle ---

// ToggleFreeze flips the ledger-wide freeze flag and returns the new state.
// Reversible until the ledger closes.
func (l *Ledger) ToggleFreeze(caller [20]byte) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.requireAdmin(caller); err != nil {
		return l.frozen, err
	}
	if err := l.requireOpen(); err != nil {
		return l.frozen, err
	}
	l.frozen = !l.frozen
	l.emit(FreezeToggled{Frozen: l.frozen})
	return l.frozen, nil
}

// ToggleLock flips the per-address lock and returns the new state. A locked
// address stays verified but can neither send nor receive.
func (l *Ledger) ToggleLock(caller, addr [20]byte) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.requireAdmin(caller); err != nil {
		return l.locked[addr], err
	}
	if err := l.requireOpen(); err != nil {
		return l.locked[addr], err
	}
	if addr == zeroAddress {
		return false, ErrInvalidAddress
	}
	if l.locked[addr] {
		delete(l.locked, addr)
	} else {
		l.locked[addr] = true
	}
	l.emit(LockToggled{Address: addr, Locked: l.locked[addr]})
	return l.locked[addr], nil
}

// FreezeSuper performs the terminal migration transition: the ledger freezes
// and closes in one step, permanently. Only read queries remain available
// afterwards; every mutation rejects with ErrLedgerClosed.
func (l *Ledger) FreezeSuper(caller [20]byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.requireAdmin(caller); err != nil {
		return err
	}
	if err := l.requireOpen(); err != nil {
		return err
	}
	l.frozen = true
	l.closed = true
	l.emit(LedgerClosed{Name: l.name, Symbol: l.symbol})
	return nil
}

// --- Queries ---

// Name returns the immutable register name.
func (l *Ledger) Name() string { return l.name }

// Symbol returns the immutable register symbol.
func (l *Ledger) Symbol() string { return l.symbol }

// Admin returns the administrator identity bound at construction.
func (l *Ledger) Admin() [20]byte { return l.admin }

// TotalSupply returns the current number of issued, unburned units.
func (l *Ledger) TotalSupply() *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.totalSupply)
}

// BalanceOf returns the unit balance held by addr.
func (l *Ledger) BalanceOf(addr [20]byte) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.balanceOf(addr))
}

// Allowance returns the amount spender may move on owner's behalf.
func (l *Ledger) Allowance(owner, spender [20]byte) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.allowance(owner, spender))
}

// IsVerified reports whether addr carries a non-zero fingerprint.
func (l *Ledger) IsVerified(addr [20]byte) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.fingerprints[addr]
	return ok
}

// IsHolder reports whether addr currently holds a non-zero balance.
func (l *Ledger) IsHolder(addr [20]byte) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.holderIndex[addr]
	return ok
}

// HasFingerprint reports whether addr's stored fingerprint equals the
// supplied one. A zero address or zero fingerprint always reports false
// rather than erroring.
func (l *Ledger) HasFingerprint(addr [20]byte, fingerprint crypto.Fingerprint) bool {
	if addr == zeroAddress || fingerprint.IsZero() {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fingerprints[addr] == fingerprint
}

// HolderCount returns the number of addresses with a non-zero balance.
func (l *Ledger) HolderCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.holders)
}

// HolderAt returns the holder at the given index. Order is not stable across
// holder-set changes; only membership and count are guaranteed.
func (l *Ledger) HolderAt(index int) ([20]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if index < 0 || index >= len(l.holders) {
		return zeroAddress, ErrIndexOutOfRange
	}
	return l.holders[index], nil
}

// Holders returns a copy of the current shareholder set.
func (l *Ledger) Holders() [][20]byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([][20]byte, len(l.holders))
	copy(out, l.holders)
	return out
}

// IsSuperseded reports whether addr was retired via cancel-and-reissue.
func (l *Ledger) IsSuperseded(addr [20]byte) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.cancellations[addr]
	return ok
}

// CurrentAddressFor follows the cancellation chain from addr to the address
// that currently stands in for it, which is addr itself when it was never
// cancelled. The walk is iterative with a defensive hop bound; exceeding the
// bound means the append-only chain invariant was violated somewhere and is
// surfaced as ErrChainTooDeep.
func (l *Ledger) CurrentAddressFor(addr [20]byte) ([20]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	current := addr
	for hops := 0; hops < maxCancellationHops; hops++ {
		next, ok := l.cancellations[current]
		if !ok {
			return current, nil
		}
		current = next
	}
	return zeroAddress, ErrChainTooDeep
}

// IsLocked reports whether addr is currently barred from sending and
// receiving.
func (l *Ledger) IsLocked(addr [20]byte) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.locked[addr]
}

// IsFrozen reports whether ledger-wide transfers are currently disabled.
func (l *Ledger) IsFrozen() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.frozen
}

// IsClosed reports whether the terminal migration freeze has taken effect.
func (l *Ledger) IsClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}
