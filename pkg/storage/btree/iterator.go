package btree

import (
	"errors"

	"treestore/pkg/primitives"
)

// ErrStaleIterator is returned when the slot an iterator points at no
// longer exists, which can happen when the tree is modified between
// iterator calls.
var ErrStaleIterator = errors.New("btree: iterator position no longer valid")

// Iterator is a forward cursor over the leaf chain. It is a plain
// (page id, slot) position: each call briefly latches the current leaf
// and releases it before returning, so an iterator never blocks
// writers between calls.
//
// Iteration is not snapshot isolated. A structural change between two
// advances may skip or repeat entries; a dereference of a vanished
// slot reports ErrStaleIterator.
type Iterator[K any] struct {
	tree   *BPlusTree[K]
	pageID primitives.PageID
	slot   int
}

// Begin returns an iterator at the first entry in key order, or the
// end iterator if the tree is empty.
func (t *BPlusTree[K]) Begin() (*Iterator[K], error) {
	g, err := t.findLeftmostLeaf()
	if err != nil {
		return nil, err
	}
	if g == nil {
		return t.End(), nil
	}
	pid := asNode(g.Data()).pageID()
	g.Drop()
	return &Iterator[K]{tree: t, pageID: pid}, nil
}

// BeginAt returns an iterator positioned at key, or the end iterator
// if the key is not present.
func (t *BPlusTree[K]) BeginAt(key K) (*Iterator[K], error) {
	g, err := t.findLeaf(key)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return t.End(), nil
	}
	leaf := asLeaf(g.Data(), t.codec)
	idx := leaf.keyIndex(key)
	if idx == leaf.size() || t.codec.Compare(leaf.keyAt(idx), key) != 0 {
		g.Drop()
		return t.End(), nil
	}
	pid := leaf.pageID()
	g.Drop()
	return &Iterator[K]{tree: t, pageID: pid, slot: idx}, nil
}

// End returns the past-the-end iterator.
func (t *BPlusTree[K]) End() *Iterator[K] {
	return &Iterator[K]{tree: t, pageID: primitives.InvalidPageID}
}

// IsEnd reports whether the iterator is past the last entry.
func (it *Iterator[K]) IsEnd() bool {
	return !it.pageID.IsValid()
}

// Entry returns the key/value pair at the current position.
func (it *Iterator[K]) Entry() (K, primitives.RID, error) {
	var zeroK K
	var zeroV primitives.RID
	if it.IsEnd() {
		return zeroK, zeroV, ErrStaleIterator
	}
	g, err := it.tree.bpm.ReadPage(it.pageID)
	if err != nil {
		return zeroK, zeroV, err
	}
	leaf := asLeaf(g.Data(), it.tree.codec)
	// The leaf may have been reclaimed and reused since the last call.
	if !leaf.isLeaf() || it.slot >= leaf.size() {
		g.Drop()
		return zeroK, zeroV, ErrStaleIterator
	}
	k := leaf.keyAt(it.slot)
	v := leaf.valueAt(it.slot)
	g.Drop()
	return k, v, nil
}

// Next advances to the following entry, moving to the next leaf when
// the current one is exhausted.
func (it *Iterator[K]) Next() error {
	if it.IsEnd() {
		return nil
	}
	g, err := it.tree.bpm.ReadPage(it.pageID)
	if err != nil {
		return err
	}
	leaf := asLeaf(g.Data(), it.tree.codec)
	if !leaf.isLeaf() {
		g.Drop()
		return ErrStaleIterator
	}
	if it.slot >= leaf.size()-1 {
		it.pageID = leaf.nextPageID()
		it.slot = 0
	} else {
		it.slot++
	}
	g.Drop()
	return nil
}

// Equal reports whether two iterators denote the same position. All
// end iterators compare equal.
func (it *Iterator[K]) Equal(other *Iterator[K]) bool {
	if it.IsEnd() && other.IsEnd() {
		return true
	}
	return it.pageID == other.pageID && it.slot == other.slot
}
