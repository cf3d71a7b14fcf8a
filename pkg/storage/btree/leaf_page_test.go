package btree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"treestore/pkg/primitives"
)

func newLeaf(t *testing.T, pid primitives.PageID, maxSize int) leafPage[int64] {
	t.Helper()
	p := asLeaf[int64](make([]byte, primitives.PageSize), Int64Codec{})
	p.init(pid, primitives.InvalidPageID, maxSize, 0, primitives.InvalidPageID)
	return p
}

func leafKeys(p leafPage[int64]) []int64 {
	keys := make([]int64, 0, p.size())
	for i := 0; i < p.size(); i++ {
		keys = append(keys, p.keyAt(i))
	}
	return keys
}

func TestLeafPage_Init(t *testing.T) {
	p := newLeaf(t, 7, 4)

	assert.Equal(t, primitives.PageID(7), p.pageID())
	assert.True(t, p.isLeaf())
	assert.True(t, p.isRoot())
	assert.Equal(t, 0, p.size())
	assert.Equal(t, 4, p.maxSize())
	assert.Equal(t, primitives.InvalidPageID, p.nextPageID())
}

func TestLeafPage_InsertKeepsOrder(t *testing.T) {
	p := newLeaf(t, 1, 8)

	for _, k := range []int64{5, 1, 9, 3, 7} {
		require.True(t, p.insert(k, primitives.NewRID(0, uint32(k))))
	}
	assert.Equal(t, []int64{1, 3, 5, 7, 9}, leafKeys(p))
	assert.Equal(t, uint32(3), p.valueAt(1).Slot)
}

func TestLeafPage_InsertDuplicateIsNoOp(t *testing.T) {
	p := newLeaf(t, 1, 8)

	require.True(t, p.insert(4, primitives.NewRID(0, 40)))
	assert.False(t, p.insert(4, primitives.NewRID(0, 41)))
	assert.Equal(t, 1, p.size())
	assert.Equal(t, uint32(40), p.valueAt(0).Slot)
}

func TestLeafPage_KeyIndex(t *testing.T) {
	p := newLeaf(t, 1, 8)
	for _, k := range []int64{10, 20, 30} {
		p.insert(k, primitives.RID{})
	}

	tests := []struct {
		key  int64
		want int
	}{
		{5, 0}, {10, 0}, {15, 1}, {20, 1}, {30, 2}, {35, 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.keyIndex(tt.key), "keyIndex(%d)", tt.key)
	}
}

func TestLeafPage_Remove(t *testing.T) {
	p := newLeaf(t, 1, 8)
	for _, k := range []int64{1, 2, 3} {
		p.insert(k, primitives.RID{})
	}

	assert.True(t, p.remove(2))
	assert.Equal(t, []int64{1, 3}, leafKeys(p))

	assert.False(t, p.remove(99))
	assert.Equal(t, 2, p.size())
}

func TestLeafPage_MoveHalfTo(t *testing.T) {
	left := newLeaf(t, 1, 4)
	right := newLeaf(t, 2, 4)
	for k := int64(1); k <= 5; k++ {
		left.insert(k, primitives.RID{})
	}

	left.moveHalfTo(right)
	assert.Equal(t, []int64{1, 2}, leafKeys(left))
	assert.Equal(t, []int64{3, 4, 5}, leafKeys(right))
}

func TestLeafPage_MoveAllToForwardsNext(t *testing.T) {
	left := newLeaf(t, 1, 4)
	right := newLeaf(t, 2, 4)
	left.insert(1, primitives.RID{})
	right.insert(5, primitives.RID{})
	right.insert(6, primitives.RID{})
	right.setNextPageID(9)

	right.moveAllTo(left)
	assert.Equal(t, []int64{1, 5, 6}, leafKeys(left))
	assert.Equal(t, 0, right.size())
	assert.Equal(t, primitives.PageID(9), left.nextPageID())
}

func TestLeafPage_MoveOneTo(t *testing.T) {
	a := newLeaf(t, 1, 4)
	b := newLeaf(t, 2, 4)
	for _, k := range []int64{4, 5} {
		a.insert(k, primitives.NewRID(0, uint32(k)))
	}
	for _, k := range []int64{1, 2} {
		b.insert(k, primitives.NewRID(0, uint32(k)))
	}

	// First of a to the end of b (borrow from right sibling).
	a.moveOneTo(0, b, b.size())
	assert.Equal(t, []int64{1, 2, 4}, leafKeys(b))
	assert.Equal(t, []int64{5}, leafKeys(a))

	// Last of b to the front of a (borrow from left sibling).
	b.moveOneTo(b.size()-1, a, 0)
	assert.Equal(t, []int64{1, 2}, leafKeys(b))
	assert.Equal(t, []int64{4, 5}, leafKeys(a))
	assert.Equal(t, uint32(4), a.valueAt(0).Slot)
}

func TestLeafPage_SlotBoundsPanic(t *testing.T) {
	p := newLeaf(t, 1, 4)
	assert.Panics(t, func() { p.keyAt(-1) })
	assert.Panics(t, func() { p.keyAt(p.slotCapacity()) })
}
