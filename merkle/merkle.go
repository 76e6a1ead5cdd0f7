// Package merkle implements the commitment scheme used by the storage
// challenge protocol: binary sha256 trees where a leaf's position decides
// whether it hashes on the left or the right of its sibling.
package merkle

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

const HashSize = sha256.Size

type Hash [HashSize]byte

func (h Hash) Hex() string {
	return hex.EncodeToString(h[:])
}

func ParseHex(s string) (Hash, bool) {
	var h Hash
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != HashSize {
		return h, false
	}
	copy(h[:], b)
	return h, true
}

// Hashes travel hex encoded over the wire.
func (h Hash) MarshalJSON() ([]byte, error) {
	return []byte(`"` + h.Hex() + `"`), nil
}

func (h *Hash) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, ok := ParseHex(s)
	if !ok {
		return fmt.Errorf("invalid hash %q", s)
	}
	*h = parsed
	return nil
}

// LeafHash hashes one data block into its leaf.
func LeafHash(data []byte) Hash {
	return sha256.Sum256(data)
}

func combine(left, right Hash) Hash {
	var buf [2 * HashSize]byte
	copy(buf[:HashSize], left[:])
	copy(buf[HashSize:], right[:])
	return sha256.Sum256(buf[:])
}

// WalkPath folds a leaf up through its sibling path. The leaf index is
// halved at each level; an even index puts the running hash on the left.
func WalkPath(leaf Hash, index uint64, path []Hash) Hash {
	h := leaf
	for _, sibling := range path {
		if index%2 == 0 {
			h = combine(h, sibling)
		} else {
			h = combine(sibling, h)
		}
		index /= 2
	}
	return h
}

// VerifyPath reports whether the sibling path proves the leaf at index
// under root.
func VerifyPath(leaf Hash, index uint64, path []Hash, root Hash) bool {
	return WalkPath(leaf, index, path) == root
}

// Tree is a whole in-memory tree, used to produce commitments and proofs.
// Odd levels duplicate their last node.
type Tree struct {
	levels [][]Hash
}

func BuildTree(leaves []Hash) *Tree {
	if len(leaves) == 0 {
		return &Tree{}
	}
	levels := [][]Hash{leaves}
	for len(levels[len(levels)-1]) > 1 {
		cur := levels[len(levels)-1]
		if len(cur)%2 == 1 {
			cur = append(cur, cur[len(cur)-1])
		}
		next := make([]Hash, 0, len(cur)/2)
		for i := 0; i < len(cur); i += 2 {
			next = append(next, combine(cur[i], cur[i+1]))
		}
		levels = append(levels, next)
	}
	return &Tree{levels: levels}
}

func (t *Tree) Root() Hash {
	if len(t.levels) == 0 {
		return Hash{}
	}
	return t.levels[len(t.levels)-1][0]
}

// Path returns the sibling path for the leaf at index.
func (t *Tree) Path(index uint64) []Hash {
	if len(t.levels) == 0 || index >= uint64(len(t.levels[0])) {
		return nil
	}
	var path []Hash
	for _, level := range t.levels[:len(t.levels)-1] {
		sibling := index ^ 1
		if sibling >= uint64(len(level)) {
			sibling = index // duplicated last node
		}
		path = append(path, level[sibling])
		index /= 2
	}
	return path
}
