// Package migration parses the externally supplied bulk-onboarding list of
// (address, identity info, balance) records. The register consumes these one
// record at a time; looping and retry policy stay with the orchestrator
// driving the controller, never inside the core.
package migration

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"

	"sharebook/crypto"
)

// Record is one onboarding row: who to verify, the raw identity info to
// fingerprint, and how many units they held on the legacy register.
type Record struct {
	Address [20]byte
	RawInfo string
	Balance *big.Int
}

// LoadRecords reads CSV rows of the form `address,info,balance`. A first row
// reading `address,info,balance` is treated as a header and skipped. The
// balance column may be empty for verify-only records.
func LoadRecords(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 3
	reader.TrimLeadingSpace = true

	var records []Record
	line := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return nil, fmt.Errorf("migration: line %d: %w", line+1, err)
		}
		line++
		if line == 1 && isHeader(row) {
			continue
		}
		record, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("migration: line %d: %w", line, err)
		}
		records = append(records, record)
	}
}

// LoadRecordsFile reads onboarding records from a CSV file on disk.
func LoadRecordsFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadRecords(f)
}

func isHeader(row []string) bool {
	return strings.EqualFold(strings.TrimSpace(row[0]), "address") &&
		strings.EqualFold(strings.TrimSpace(row[1]), "info") &&
		strings.EqualFold(strings.TrimSpace(row[2]), "balance")
}

func parseRow(row []string) (Record, error) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(row[0]))
	if err != nil {
		return Record{}, fmt.Errorf("address %q: %w", row[0], err)
	}
	if addr.Prefix() != crypto.ShrPrefix {
		return Record{}, fmt.Errorf("address %q: unexpected prefix %q", row[0], addr.Prefix())
	}
	info := strings.TrimSpace(row[1])
	if info == "" {
		return Record{}, fmt.Errorf("empty identity info for %q", row[0])
	}

	balance := new(big.Int)
	if raw := strings.TrimSpace(row[2]); raw != "" {
		parsed, ok := new(big.Int).SetString(raw, 10)
		if !ok || parsed.Sign() < 0 {
			return Record{}, fmt.Errorf("invalid balance %q", row[2])
		}
		balance = parsed
	}
	return Record{Address: addr.Raw(), RawInfo: info, Balance: balance}, nil
}
