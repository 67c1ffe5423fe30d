package storage

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"sharebook/native/registrar"
	"sharebook/native/registry"
)

func TestSnapshotStoreRoundTrip(t *testing.T) {
	store := NewSnapshotStore(NewMemDB())

	ledgerState, err := store.LoadLedger()
	require.NoError(t, err)
	require.Nil(t, ledgerState)
	controllerState, err := store.LoadController()
	require.NoError(t, err)
	require.Nil(t, controllerState)

	var owner [20]byte
	owner[19] = 1
	controller, err := registrar.NewController(owner)
	require.NoError(t, err)
	require.NoError(t, controller.CreateLedger(owner, "Example Ordinary Shares", "EXOS"))
	var holder [20]byte
	holder[19] = 2
	require.NoError(t, controller.Whitelist(owner, holder, "holder kyc"))
	require.NoError(t, controller.Issue(owner, holder, big.NewInt(42)))

	require.NoError(t, store.SaveLedger(controller.Ledger().Snapshot()))
	require.NoError(t, store.SaveController(controller.Snapshot()))

	ledgerState, err = store.LoadLedger()
	require.NoError(t, err)
	restoredLedger, err := registry.NewLedgerFromState(ledgerState)
	require.NoError(t, err)
	require.Zero(t, restoredLedger.BalanceOf(holder).Cmp(big.NewInt(42)))

	controllerState, err = store.LoadController()
	require.NoError(t, err)
	restored, err := registrar.NewControllerFromState(controllerState, restoredLedger)
	require.NoError(t, err)
	require.Equal(t, owner, restored.Owner())
	require.True(t, restored.Deployed())
}
