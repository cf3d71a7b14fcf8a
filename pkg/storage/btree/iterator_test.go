package btree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIterator_FullScan(t *testing.T) {
	tree := newTestTree(t, 2, 3, 32)

	for _, k := range []int64{12, 4, 8, 2, 10, 6} {
		mustInsert(t, tree, k)
	}
	assert.Equal(t, []int64{2, 4, 6, 8, 10, 12}, collectKeys(t, tree))
}

func TestIterator_BeginAt(t *testing.T) {
	tree := newTestTree(t, 2, 3, 32)

	for k := int64(1); k <= 20; k++ {
		mustInsert(t, tree, k)
	}

	it, err := tree.BeginAt(15)
	require.NoError(t, err)
	var got []int64
	for !it.IsEnd() {
		k, _, err := it.Entry()
		require.NoError(t, err)
		got = append(got, k)
		require.NoError(t, it.Next())
	}
	assert.Equal(t, seq(15, 20), got)

	// Absent key positions at the end.
	it, err = tree.BeginAt(99)
	require.NoError(t, err)
	assert.True(t, it.IsEnd())
}

func TestIterator_Equality(t *testing.T) {
	tree := newTestTree(t, 2, 3, 32)

	// On an empty tree every iterator is the end iterator.
	a, err := tree.Begin()
	require.NoError(t, err)
	assert.True(t, a.Equal(tree.End()))

	for _, k := range []int64{1, 2, 3} {
		mustInsert(t, tree, k)
	}

	b, err := tree.Begin()
	require.NoError(t, err)
	c, err := tree.Begin()
	require.NoError(t, err)
	assert.True(t, b.Equal(c))
	assert.False(t, b.Equal(tree.End()))

	d, err := tree.BeginAt(1)
	require.NoError(t, err)
	assert.True(t, b.Equal(d))

	require.NoError(t, c.Next())
	assert.False(t, b.Equal(c))

	for !c.IsEnd() {
		require.NoError(t, c.Next())
	}
	assert.True(t, c.Equal(tree.End()))
}

func TestIterator_EntryAtEnd(t *testing.T) {
	tree := newTestTree(t, 2, 3, 32)

	it := tree.End()
	_, _, err := it.Entry()
	assert.ErrorIs(t, err, ErrStaleIterator)
	assert.NoError(t, it.Next(), "advancing the end iterator stays at end")
	assert.True(t, it.IsEnd())
}

// Iteration is not snapshot isolated: a structural change between
// calls may invalidate the current slot, which dereference reports
// rather than hiding.
func TestIterator_StalePositionSurfaces(t *testing.T) {
	tree := newTestTree(t, 4, 4, 32)

	for k := int64(1); k <= 4; k++ {
		mustInsert(t, tree, k)
	}
	it, err := tree.Begin()
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, it.Next())
	}

	// Shrink the leaf under the cursor.
	mustRemove(t, tree, 3)
	mustRemove(t, tree, 4)

	_, _, err = it.Entry()
	assert.ErrorIs(t, err, ErrStaleIterator)
}
