package ledger

import (
	"encoding/hex"
	"fmt"
)

// KeySize is the length in bytes of an operation key.
const KeySize = 32

// Key is a caller-supplied, globally unique identifier for one logical
// operation. The caller contract is that a key is never reused; the
// registry enforces at-most-once application on top of that.
type Key [KeySize]byte

// ParseKey decodes a 64-character hex string into a Key.
func ParseKey(s string) (Key, error) {
	var k Key
	b, err := hex.DecodeString(s)
	if err != nil {
		return k, fmt.Errorf("invalid operation key %q: %w", s, err)
	}
	if len(b) != KeySize {
		return k, fmt.Errorf("invalid operation key length %d, want %d", len(b), KeySize)
	}
	copy(k[:], b)
	return k, nil
}

// String returns the hex encoding of the key.
func (k Key) String() string { return hex.EncodeToString(k[:]) }

// IsZero reports whether the key is all zero bytes. The zero key is
// reserved and rejected by every operation entry point.
func (k Key) IsZero() bool { return k == Key{} }

// Status identifies which terminal operation a registry record represents
type Status uint8

const (
	// StatusNonexistent is the implicit state of every unregistered key
	StatusNonexistent Status = iota
	// StatusTransferExecuted records a frozen-balance transfer
	StatusTransferExecuted
	// StatusUpdateIncreaseExecuted records a frozen-balance increase
	StatusUpdateIncreaseExecuted
	// StatusUpdateDecreaseExecuted records a frozen-balance decrease
	StatusUpdateDecreaseExecuted
	// StatusUpdateReplacementExecuted records a frozen-balance set
	StatusUpdateReplacementExecuted
)

var statusNames = map[Status]string{
	StatusNonexistent:               "nonexistent",
	StatusTransferExecuted:          "transfer-executed",
	StatusUpdateIncreaseExecuted:    "update-increase-executed",
	StatusUpdateDecreaseExecuted:    "update-decrease-executed",
	StatusUpdateReplacementExecuted: "update-replacement-executed",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// Terminal reports whether s is one of the four executed states.
func (s Status) Terminal() bool {
	return s > StatusNonexistent && s <= StatusUpdateReplacementExecuted
}

// Operation is one registry record. A record is written exactly once by
// the insert path and never mutated or deleted afterwards; reads return
// copies.
type Operation struct {
	Account string
	Key     Key
	Amount  uint64
	Status  Status
}

// Nonexistent returns the zero-value record for key, the result of
// looking up a key that was never registered.
func Nonexistent(key Key) Operation {
	return Operation{Key: key, Status: StatusNonexistent}
}
