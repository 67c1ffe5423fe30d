package registry

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildPopulatedLedger(t *testing.T) (*Ledger, [20]byte) {
	t.Helper()
	admin := addr(0xAA)
	ledger := NewLedger("Example Ordinary Shares", "EXOS", admin)
	a, b, c := addr(1), addr(2), addr(3)
	require.NoError(t, ledger.AddVerified(admin, a, fp(t, "alice")))
	require.NoError(t, ledger.AddVerified(admin, b, fp(t, "bob")))
	require.NoError(t, ledger.AddVerified(admin, c, fp(t, "carol")))
	require.NoError(t, ledger.Issue(admin, a, big.NewInt(700)))
	require.NoError(t, ledger.Issue(admin, b, big.NewInt(300)))
	require.NoError(t, ledger.Approve(a, b, big.NewInt(50)))
	require.NoError(t, ledger.CancelAndReissue(admin, b, c))
	_, err := ledger.ToggleLock(admin, a)
	require.NoError(t, err)
	return ledger, admin
}

func TestSnapshotRoundTrip(t *testing.T) {
	ledger, _ := buildPopulatedLedger(t)
	snapshot := ledger.Snapshot()

	encoded, err := json.Marshal(snapshot)
	require.NoError(t, err)
	var decoded State
	require.NoError(t, json.Unmarshal(encoded, &decoded))

	restored, err := NewLedgerFromState(&decoded)
	require.NoError(t, err)

	require.Equal(t, ledger.Name(), restored.Name())
	require.Equal(t, ledger.Symbol(), restored.Symbol())
	require.Equal(t, ledger.Admin(), restored.Admin())
	require.Zero(t, ledger.TotalSupply().Cmp(restored.TotalSupply()))
	require.Equal(t, ledger.HolderCount(), restored.HolderCount())
	require.Equal(t, ledger.Holders(), restored.Holders())

	a, b, c := addr(1), addr(2), addr(3)
	require.Zero(t, restored.BalanceOf(a).Cmp(big.NewInt(700)))
	require.Zero(t, restored.BalanceOf(c).Cmp(big.NewInt(300)))
	require.True(t, restored.IsVerified(a))
	require.False(t, restored.IsVerified(b))
	require.True(t, restored.IsSuperseded(b))
	resolved, err := restored.CurrentAddressFor(b)
	require.NoError(t, err)
	require.Equal(t, c, resolved)
	require.True(t, restored.IsLocked(a))
	require.Zero(t, restored.Allowance(a, b).Cmp(big.NewInt(50)))
	checkInvariants(t, restored)

	// Snapshots of identical state are byte-identical.
	again, err := json.Marshal(ledger.Snapshot())
	require.NoError(t, err)
	require.Equal(t, encoded, again)
}

func TestSnapshotOfClosedLedger(t *testing.T) {
	ledger, admin := buildPopulatedLedger(t)
	require.NoError(t, ledger.FreezeSuper(admin))

	restored, err := NewLedgerFromState(ledger.Snapshot())
	require.NoError(t, err)
	require.True(t, restored.IsClosed())
	require.True(t, restored.IsFrozen())
	require.ErrorIs(t, restored.Issue(admin, addr(1), big.NewInt(1)), ErrLedgerClosed)
}

func TestRestoreRejectsInconsistentState(t *testing.T) {
	ledger, _ := buildPopulatedLedger(t)

	supplyDrift := ledger.Snapshot()
	supplyDrift.TotalSupply = "999999"
	_, err := NewLedgerFromState(supplyDrift)
	require.ErrorContains(t, err, "total supply")

	duplicated := ledger.Snapshot()
	duplicated.Holders = append(duplicated.Holders, duplicated.Holders[0])
	_, err = NewLedgerFromState(duplicated)
	require.ErrorContains(t, err, "duplicate holder")

	orphaned := ledger.Snapshot()
	orphaned.Holders = orphaned.Holders[:1]
	_, err = NewLedgerFromState(orphaned)
	require.Error(t, err)

	badAddr := ledger.Snapshot()
	badAddr.Balances[0].Address = "zz"
	_, err = NewLedgerFromState(badAddr)
	require.Error(t, err)
}
