package intlhash

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Alphabet is the character table used by both hashing schemes.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

// TokenLength is the length of every hashed key.
const TokenLength = 6

// Scheme identifies one of the coexisting key hashing schemes.
type Scheme string

const (
	// SchemeCurrent is the scheme the host ships today.
	SchemeCurrent Scheme = "current"
	// SchemeLegacy is the scheme still present in builds that have not migrated.
	SchemeLegacy Scheme = "legacy"
)

// Hashed holds both obfuscated forms of a single key.
type Hashed struct {
	Key     string `json:"key"`
	Current string `json:"current"`
	Legacy  string `json:"legacy"`
}

// Forms returns the distinct hashed forms, current first.
func (h Hashed) Forms() []string {
	if h.Current == h.Legacy {
		return []string{h.Current}
	}
	return []string{h.Current, h.Legacy}
}

// HashBoth computes both forms of key.
func HashBoth(key string) Hashed {
	return Hashed{Key: key, Current: Hash(key), Legacy: HashLegacy(key)}
}

// Hash returns the current-scheme token for key.
func Hash(key string) string {
	return packCurrent(xxhash.Sum64String(key))
}

// packCurrent encodes the first four little-endian bytes of sum.
func packCurrent(sum uint64) string {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], sum)

	out := [TokenLength]byte{
		Alphabet[b[0]>>2],
		Alphabet[(b[0]&0x03)<<4|b[1]>>4],
		Alphabet[(b[1]&0x0f)<<2|b[2]>>6],
		Alphabet[b[2]&0x3f],
		Alphabet[b[3]>>2],
		// The host packs the fourth byte twice here; matching it is the point.
		Alphabet[(b[3]&0x03)<<4|b[3]>>4],
	}
	return string(out[:])
}

// HashLegacy returns the legacy-scheme token for key.
func HashLegacy(key string) string {
	return packLegacy(xxhash.Sum64String(key))
}

// packLegacy is the standard base64 of big-endian sum, truncated.
func packLegacy(sum uint64) string {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], sum)
	return base64.StdEncoding.EncodeToString(b[:])[:TokenLength]
}

// ParseScheme validates a scheme name.
func ParseScheme(name string) (Scheme, error) {
	switch s := Scheme(name); s {
	case SchemeCurrent, SchemeLegacy:
		return s, nil
	default:
		return "", fmt.Errorf("unknown hash scheme %q (want %q or %q)", name, SchemeCurrent, SchemeLegacy)
	}
}

// ForScheme dispatches to the hash function for s. Unknown schemes fall back
// to the current scheme.
func ForScheme(s Scheme, key string) string {
	if s == SchemeLegacy {
		return HashLegacy(key)
	}
	return Hash(key)
}
