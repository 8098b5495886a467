// Package gameid generates sortable game identifiers for probe runs.
package gameid

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Base32 alphabet used by TypeID (Crockford's base32)
const alphabet = "0123456789abcdefghjkmnpqrstvwxyz"

// Length of an encoded id.
const Length = 26

// Generate creates a new game ID: a UUIDv7 encoded as a 26-character base32 string.
// IDs generated later sort after earlier ones.
func Generate() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Only fails when the system random source is unavailable
		panic("failed to generate UUIDv7: " + err.Error())
	}
	return Encode(id)
}

// WithPrefix returns prefix_<id>, the form used in logs and decision files.
func WithPrefix(prefix string) string {
	if prefix == "" {
		return Generate()
	}
	return prefix + "_" + Generate()
}

// Parse splits a prefix_<id> string produced by WithPrefix and decodes the id.
// The prefix is empty for a bare id.
func Parse(s string) (string, uuid.UUID, error) {
	prefix, id := "", s
	if i := strings.LastIndexByte(s, '_'); i >= 0 {
		prefix, id = s[:i], s[i+1:]
	}
	u, err := Decode(id)
	if err != nil {
		return "", uuid.UUID{}, fmt.Errorf("parse %q: %w", s, err)
	}
	return prefix, u, nil
}

// bit returns bit j of the 130-bit big-endian stream formed by two zero bits
// followed by the 128 bits of u.
func bit(u uuid.UUID, j int) byte {
	if j < 2 {
		return 0
	}
	j -= 2
	return (u[j/8] >> (7 - j%8)) & 1
}

// Encode renders u in TypeID base32.
func Encode(u uuid.UUID) string {
	var out [Length]byte
	for i := 0; i < Length; i++ {
		var v byte
		for k := 0; k < 5; k++ {
			v = v<<1 | bit(u, i*5+k)
		}
		out[i] = alphabet[v]
	}
	return string(out[:])
}

// Decode parses an encoded id back into its UUID.
func Decode(id string) (uuid.UUID, error) {
	var u uuid.UUID
	if err := Validate(id); err != nil {
		return u, err
	}
	for i := 0; i < Length; i++ {
		v := strings.IndexByte(alphabet, id[i])
		for k := 0; k < 5; k++ {
			j := i*5 + k - 2
			if j < 0 {
				continue
			}
			if (v>>(4-k))&1 == 1 {
				u[j/8] |= 1 << (7 - j%8)
			}
		}
	}
	return u, nil
}

// Validate checks if a game ID is valid (26 characters, valid base32)
func Validate(id string) error {
	if len(id) != Length {
		return fmt.Errorf("game ID must be exactly %d characters, got %d", Length, len(id))
	}

	// The two leading pad bits must be zero
	if id[0] > '7' {
		return fmt.Errorf("game ID first character must be 0-7, got %c", id[0])
	}

	for i := 0; i < len(id); i++ {
		if strings.IndexByte(alphabet, id[i]) < 0 {
			return fmt.Errorf("invalid character %c at position %d", id[i], i)
		}
	}
	return nil
}
