package migration

import (
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"sharebook/crypto"
)

func bech(t *testing.T, b byte) string {
	t.Helper()
	var raw [20]byte
	raw[19] = b
	return crypto.MustNewAddress(raw).String()
}

func TestLoadRecordsParsesRowsAndHeader(t *testing.T) {
	input := "address,info,balance\n" +
		bech(t, 1) + ",alice kyc#1,100\n" +
		bech(t, 2) + ",bob kyc#2,\n"
	records, err := LoadRecords(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 2)

	require.Equal(t, "alice kyc#1", records[0].RawInfo)
	require.Zero(t, records[0].Balance.Cmp(big.NewInt(100)))
	require.Equal(t, byte(1), records[0].Address[19])

	// Missing balance means verify-only.
	require.Zero(t, records[1].Balance.Sign())
}

func TestLoadRecordsWithoutHeader(t *testing.T) {
	input := bech(t, 3) + ",carol kyc#3,25\n"
	records, err := LoadRecords(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Zero(t, records[0].Balance.Cmp(big.NewInt(25)))
}

func TestLoadRecordsRejectsBadRows(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"bad address", "notanaddress,info,1\n", "address"},
		{"empty info", bech(t, 1) + ",,1\n", "identity info"},
		{"negative balance", bech(t, 1) + ",info,-5\n", "balance"},
		{"garbage balance", bech(t, 1) + ",info,12x\n", "balance"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadRecords(strings.NewReader(tc.input))
			require.ErrorContains(t, err, tc.want)
		})
	}
}
