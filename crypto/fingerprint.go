package crypto

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Fingerprint is the opaque 32-byte digest standing in for a holder's
// off-ledger identity record. The registry only stores and compares
// fingerprints; it never sees the raw identity data behind them.
type Fingerprint [32]byte

// ErrEmptyIdentityInfo is returned when fingerprinting a blank identity string.
var ErrEmptyIdentityInfo = errors.New("crypto: empty identity info")

// FingerprintInfo derives the canonical fingerprint for a raw identity-info
// string using Keccak-256 over the trimmed UTF-8 bytes.
func FingerprintInfo(rawInfo string) (Fingerprint, error) {
	trimmed := strings.TrimSpace(rawInfo)
	if trimmed == "" {
		return Fingerprint{}, ErrEmptyIdentityInfo
	}
	var fp Fingerprint
	copy(fp[:], ethcrypto.Keccak256([]byte(trimmed)))
	return fp, nil
}

// IsZero reports whether the fingerprint is the all-zero value, which the
// registry interprets as "not verified".
func (f Fingerprint) IsZero() bool {
	return f == Fingerprint{}
}

// Hex returns the 0x-prefixed hexadecimal rendering of the fingerprint.
func (f Fingerprint) Hex() string {
	return "0x" + hex.EncodeToString(f[:])
}

// ParseFingerprint decodes a fingerprint from its hexadecimal rendering, with
// or without the 0x prefix.
func ParseFingerprint(s string) (Fingerprint, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("crypto: invalid fingerprint hex: %w", err)
	}
	if len(decoded) != len(Fingerprint{}) {
		return Fingerprint{}, fmt.Errorf("crypto: fingerprint must be %d bytes, got %d", len(Fingerprint{}), len(decoded))
	}
	var fp Fingerprint
	copy(fp[:], decoded)
	return fp, nil
}
