package merkle

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func leavesOf(n int) []Hash {
	leaves := make([]Hash, n)
	for i := range leaves {
		leaves[i] = LeafHash([]byte(fmt.Sprintf("block-%d", i)))
	}
	return leaves
}

func TestPathProvesEveryLeaf(t *testing.T) {
	for _, n := range []int{1, 2, 3, 4, 5, 8, 13} {
		leaves := leavesOf(n)
		tree := BuildTree(leaves)
		root := tree.Root()
		for i := range leaves {
			path := tree.Path(uint64(i))
			require.True(t, VerifyPath(leaves[i], uint64(i), path, root),
				"leaf %d of %d", i, n)
		}
	}
}

func TestTamperedLeafFails(t *testing.T) {
	leaves := leavesOf(5)
	tree := BuildTree(leaves)
	path := tree.Path(2)

	require.False(t, VerifyPath(LeafHash([]byte("tampered")), 2, path, tree.Root()))
	// right data under the wrong index fails too
	require.False(t, VerifyPath(leaves[2], 3, path, tree.Root()))
}

func TestSingleLeafTree(t *testing.T) {
	leaf := LeafHash([]byte("only"))
	tree := BuildTree([]Hash{leaf})
	require.Equal(t, leaf, tree.Root())
	require.Empty(t, tree.Path(0))
	require.True(t, VerifyPath(leaf, 0, nil, tree.Root()))
}

func TestPathOutOfRange(t *testing.T) {
	tree := BuildTree(leavesOf(4))
	require.Nil(t, tree.Path(4))
	require.Nil(t, BuildTree(nil).Path(0))
}

func TestHashJSONRoundTrip(t *testing.T) {
	h := LeafHash([]byte("payload"))
	raw, err := json.Marshal(h)
	require.NoError(t, err)
	require.Equal(t, `"`+h.Hex()+`"`, string(raw))

	var back Hash
	require.NoError(t, json.Unmarshal(raw, &back))
	require.Equal(t, h, back)

	require.Error(t, json.Unmarshal([]byte(`"zz"`), &back))
}
