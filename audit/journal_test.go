package audit

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"sharebook/native/registry"
	"sharebook/storage"
)

func addr(b byte) [20]byte {
	var a [20]byte
	a[19] = b
	return a
}

func TestJournalRecordsEmissionsInOrder(t *testing.T) {
	db := storage.NewMemDB()
	journal, err := NewJournal(db, nil)
	require.NoError(t, err)
	journal.SetNowFunc(func() int64 { return 1700000000 })

	journal.Emit(registry.SharesIssued{To: addr(1), Amount: big.NewInt(100), TotalSupply: big.NewInt(100)})
	journal.Emit(registry.SharesTransferred{From: addr(1), To: addr(2), Amount: big.NewInt(40)})

	require.Equal(t, uint64(2), journal.Len())

	first, err := journal.Entry(0)
	require.NoError(t, err)
	require.Equal(t, registry.EventTypeSharesIssued, first.Type)
	require.Equal(t, "100", first.Attributes["amount"])
	require.Equal(t, int64(1700000000), first.RecordedAt)
	require.NotEmpty(t, first.ID)

	second, err := journal.Entry(1)
	require.NoError(t, err)
	require.Equal(t, registry.EventTypeSharesTransferred, second.Type)
	require.Equal(t, uint64(1), second.Sequence)
	require.NotEqual(t, first.ID, second.ID)

	_, err = journal.Entry(2)
	require.ErrorIs(t, err, ErrEntryNotFound)
}

func TestJournalResumesSequence(t *testing.T) {
	db := storage.NewMemDB()
	journal, err := NewJournal(db, nil)
	require.NoError(t, err)
	journal.Emit(registry.FreezeToggled{Frozen: true})

	reopened, err := NewJournal(db, nil)
	require.NoError(t, err)
	require.Equal(t, uint64(1), reopened.Len())
	reopened.Emit(registry.FreezeToggled{Frozen: false})

	entries, err := reopened.Range(0, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "true", entries[0].Attributes["frozen"])
	require.Equal(t, "false", entries[1].Attributes["frozen"])
}

func TestJournalRangeBounds(t *testing.T) {
	db := storage.NewMemDB()
	journal, err := NewJournal(db, nil)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		journal.Emit(registry.FreezeToggled{Frozen: i%2 == 0})
	}

	entries, err := journal.Range(2, 4)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, uint64(2), entries[0].Sequence)

	entries, err = journal.Range(4, 100)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	entries, err = journal.Range(7, 3)
	require.NoError(t, err)
	require.Empty(t, entries)
}
