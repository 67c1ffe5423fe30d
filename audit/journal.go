package audit

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"sharebook/core/events"
	"sharebook/core/types"
	"sharebook/storage"
)

var (
	entryPrefix = []byte("audit/entry/")
	nextSeqKey  = []byte("audit/next")

	// ErrEntryNotFound is returned when a sequence number was never journalled.
	ErrEntryNotFound = errors.New("audit: entry not found")
)

// Entry is one durably recorded domain event. Sequence numbers start at zero
// and never repeat; the identifier is a random UUID so external consumers can
// deduplicate across exports.
type Entry struct {
	Sequence   uint64            `json:"sequence"`
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes,omitempty"`
	RecordedAt int64             `json:"recordedAt"`
}

// payloadEvent is satisfied by every typed register event, exposing the
// generic representation the journal persists.
type payloadEvent interface {
	Event() *types.Event
}

// Journal is an events.Emitter that appends every emission to a key-value
// store. One successful mutation emits exactly once, so the journal holds
// exactly one entry per state change in emission order.
type Journal struct {
	mu     sync.Mutex
	db     storage.Database
	next   uint64
	logger *slog.Logger
	nowFn  func() int64
}

// NewJournal opens (or starts) a journal on the given store, resuming the
// sequence counter from the last run.
func NewJournal(db storage.Database, logger *slog.Logger) (*Journal, error) {
	if db == nil {
		return nil, errors.New("audit: nil database")
	}
	if logger == nil {
		logger = slog.Default()
	}
	j := &Journal{
		db:     db,
		logger: logger,
		nowFn:  func() int64 { return time.Now().Unix() },
	}
	raw, err := db.Get(nextSeqKey)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("audit: load sequence counter: %w", err)
	case len(raw) != 8:
		return nil, fmt.Errorf("audit: corrupt sequence counter (%d bytes)", len(raw))
	default:
		j.next = binary.BigEndian.Uint64(raw)
	}
	return j, nil
}

// SetNowFunc overrides the timestamp source. Primarily intended for tests.
func (j *Journal) SetNowFunc(now func() int64) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if now == nil {
		j.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	j.nowFn = now
}

// Emit implements events.Emitter. A storage failure is logged rather than
// propagated: emitters are called after the state change committed, and the
// ledger's invariants must not depend on journal availability.
func (j *Journal) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	entry := Entry{
		ID:   uuid.NewString(),
		Type: evt.EventType(),
	}
	if payload, ok := evt.(payloadEvent); ok {
		if generic := payload.Event(); generic != nil {
			entry.Attributes = generic.Attributes
		}
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	entry.Sequence = j.next
	entry.RecordedAt = j.nowFn()

	encoded, err := json.Marshal(entry)
	if err != nil {
		j.logger.Error("audit: encode entry", "type", entry.Type, "err", err)
		return
	}
	if err := j.db.Put(entryKey(entry.Sequence), encoded); err != nil {
		j.logger.Error("audit: persist entry", "type", entry.Type, "seq", entry.Sequence, "err", err)
		return
	}
	var counter [8]byte
	binary.BigEndian.PutUint64(counter[:], entry.Sequence+1)
	if err := j.db.Put(nextSeqKey, counter[:]); err != nil {
		j.logger.Error("audit: persist sequence counter", "seq", entry.Sequence, "err", err)
		return
	}
	j.next = entry.Sequence + 1
}

// Len returns the number of journalled entries.
func (j *Journal) Len() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.next
}

// Entry loads a single journalled entry by sequence number.
func (j *Journal) Entry(seq uint64) (Entry, error) {
	raw, err := j.db.Get(entryKey(seq))
	if errors.Is(err, storage.ErrNotFound) {
		return Entry{}, ErrEntryNotFound
	}
	if err != nil {
		return Entry{}, err
	}
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return Entry{}, fmt.Errorf("audit: decode entry %d: %w", seq, err)
	}
	return entry, nil
}

// Range returns entries with sequence in [from, to), capped at the journal
// head.
func (j *Journal) Range(from, to uint64) ([]Entry, error) {
	head := j.Len()
	if to > head {
		to = head
	}
	if from >= to {
		return nil, nil
	}
	entries := make([]Entry, 0, to-from)
	for seq := from; seq < to; seq++ {
		entry, err := j.Entry(seq)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func entryKey(seq uint64) []byte {
	key := make([]byte, len(entryPrefix)+8)
	copy(key, entryPrefix)
	binary.BigEndian.PutUint64(key[len(entryPrefix):], seq)
	return key
}
