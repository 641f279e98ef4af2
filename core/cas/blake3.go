package cas

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/zeebo/blake3"
)

// Digest is a 256-bit BLAKE3 digest.
type Digest [32]byte

// Sum returns the BLAKE3 digest of data.
func Sum(data []byte) Digest {
	return Digest(blake3.Sum256(data))
}

// SumString returns the BLAKE3 digest of s.
func SumString(s string) Digest {
	return Sum([]byte(s))
}

// Hex returns the lowercase hex encoding of the digest (64 characters).
func (d Digest) Hex() string {
	return hex.EncodeToString(d[:])
}

// Short returns the first n hex characters, for log output.
func (d Digest) Short(n int) string {
	h := d.Hex()
	if n <= 0 || n > len(h) {
		return h
	}
	return h[:n]
}

// Keyed returns the keyed BLAKE3 digest of data under key. Choices are
// identified this way so that identical text in two questions gets two
// identifiers.
func Keyed(key Digest, data []byte) Digest {
	h, err := blake3.NewKeyed(key[:])
	if err != nil {
		// NewKeyed only fails for keys that are not 32 bytes.
		panic(fmt.Sprintf("cas: keyed hash: %v", err))
	}
	h.Write(data)
	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}

// Parts hashes a sequence of strings with length framing so that
// ("ab", "c") and ("a", "bc") produce different digests.
func Parts(parts ...string) Digest {
	h := blake3.New()
	var n [8]byte
	for _, p := range parts {
		binary.BigEndian.PutUint64(n[:], uint64(len(p)))
		h.Write(n[:])
		h.Write([]byte(p))
	}
	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}

// Combine hashes a set of digests independent of their order. Groups and
// whole quizzes derive their identifiers from their members this way.
func Combine(digests []Digest) Digest {
	sorted := make([]Digest, len(digests))
	copy(sorted, digests)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i][:], sorted[j][:]) < 0
	})
	h := blake3.New()
	for _, d := range sorted {
		h.Write(d[:])
	}
	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}

// Blake3Hash computes the hex BLAKE3 hash of the given data.
func Blake3Hash(data []byte) string {
	return Sum(data).Hex()
}
