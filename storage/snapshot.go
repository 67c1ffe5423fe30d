package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"sharebook/native/registrar"
	"sharebook/native/registry"
)

var (
	ledgerStateKey     = []byte("register/ledger")
	controllerStateKey = []byte("register/controller")
)

// SnapshotStore persists the ledger and controller snapshots so a restarted
// daemon resumes the register exactly where it stopped.
type SnapshotStore struct {
	db Database
}

func NewSnapshotStore(db Database) *SnapshotStore {
	return &SnapshotStore{db: db}
}

// SaveLedger writes the ledger snapshot, replacing any previous one.
func (s *SnapshotStore) SaveLedger(st *registry.State) error {
	if st == nil {
		return errors.New("storage: nil ledger state")
	}
	encoded, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("storage: encode ledger state: %w", err)
	}
	return s.db.Put(ledgerStateKey, encoded)
}

// LoadLedger reads the stored ledger snapshot. Returns (nil, nil) when no
// snapshot has been written yet.
func (s *SnapshotStore) LoadLedger() (*registry.State, error) {
	encoded, err := s.db.Get(ledgerStateKey)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	st := &registry.State{}
	if err := json.Unmarshal(encoded, st); err != nil {
		return nil, fmt.Errorf("storage: decode ledger state: %w", err)
	}
	return st, nil
}

// SaveController writes the controller snapshot, replacing any previous one.
func (s *SnapshotStore) SaveController(st *registrar.State) error {
	if st == nil {
		return errors.New("storage: nil controller state")
	}
	encoded, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("storage: encode controller state: %w", err)
	}
	return s.db.Put(controllerStateKey, encoded)
}

// LoadController reads the stored controller snapshot. Returns (nil, nil)
// when no snapshot has been written yet.
func (s *SnapshotStore) LoadController() (*registrar.State, error) {
	encoded, err := s.db.Get(controllerStateKey)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	st := &registrar.State{}
	if err := json.Unmarshal(encoded, st); err != nil {
		return nil, fmt.Errorf("storage: decode controller state: %w", err)
	}
	return st, nil
}
