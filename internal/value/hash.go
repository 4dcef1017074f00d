package value

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
)

// Hash computes the content identity of a property map: the hex SHA-256 of
// the canonical JSON object {prop: [state, entry]}.
func Hash(props map[string]Value) (string, error) {
	canonical, err := MarshalCanonical(props)
	if err != nil {
		return "", fmt.Errorf("hash: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// Compare orders two entries written with the same state token. Two numbers
// closer than epsilon are equal; everything else compares by canonical JSON.
// The result is negative, zero or positive like strings.Compare.
func Compare(a, b Entry, epsilon float64) int {
	if fa, ok := AsNumber(a); ok {
		if fb, ok := AsNumber(b); ok && math.Abs(fa-fb) < epsilon {
			return 0
		}
	}
	ca, errA := MarshalCanonical(EncodeEntry(a))
	cb, errB := MarshalCanonical(EncodeEntry(b))
	switch {
	case errA != nil && errB != nil:
		return 0
	case errA != nil:
		return -1
	case errB != nil:
		return 1
	}
	return bytes.Compare(ca, cb)
}
