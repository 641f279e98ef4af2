// Package cas provides BLAKE3 content identifiers and a small
// content-addressed blob set. Quiz elements derive their stable identifiers
// from here, and images bundled into an archive are deduplicated by digest.
package cas

import (
	"errors"
	"regexp"
	"sort"
)

// ErrBlobNotFound is returned when a blob with the given hash does not exist.
var ErrBlobNotFound = errors.New("blob not found")

// ErrInvalidHash is returned when a hash string is not a valid 64-character
// lowercase hex string.
var ErrInvalidHash = errors.New("invalid hash format")

var hashPattern = regexp.MustCompile(`^[a-f0-9]{64}$`)

func isValidHash(hash string) bool {
	return hashPattern.MatchString(hash)
}

// Blob is stored content plus the name hint it was first added with.
type Blob struct {
	Hash string
	Name string // e.g. "a1b2....png"
	Data []byte
}

// Store is an in-memory content-addressed blob set. It is owned by a single
// conversion and is not safe for concurrent use.
type Store struct {
	blobs map[string]*Blob
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{blobs: make(map[string]*Blob)}
}

// Put stores data and returns its hash. ext (including the dot) is appended
// to the hash to form the blob name. Storing identical content twice is a
// no-op that returns the same hash.
func (s *Store) Put(data []byte, ext string) string {
	hash := Blake3Hash(data)
	if _, ok := s.blobs[hash]; ok {
		return hash
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	s.blobs[hash] = &Blob{Hash: hash, Name: hash + ext, Data: buf}
	return hash
}

// Get returns the blob with the given hash.
func (s *Store) Get(hash string) (*Blob, error) {
	if !isValidHash(hash) {
		return nil, ErrInvalidHash
	}
	b, ok := s.blobs[hash]
	if !ok {
		return nil, ErrBlobNotFound
	}
	return b, nil
}

// Len returns the number of distinct blobs.
func (s *Store) Len() int {
	return len(s.blobs)
}

// Blobs returns all blobs sorted by name, for deterministic archive output.
func (s *Store) Blobs() []*Blob {
	out := make([]*Blob, 0, len(s.blobs))
	for _, b := range s.blobs {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
