package btree

import (
	"fmt"
	"sync"

	"treestore/pkg/buffer"
	"treestore/pkg/primitives"
)

// BPlusTree is a concurrent B+ tree index over buffer-pool pages.
// Keys are unique and fixed-size (per the codec); values are record
// ids. Readers descend with shared latch crabbing, writers with
// exclusive crabbing, so operations from many goroutines may run
// against the same tree.
type BPlusTree[K any] struct {
	name            string
	headerPageID    primitives.PageID
	bpm             *buffer.BufferPoolManager
	codec           KeyCodec[K]
	leafMaxSize     int
	internalMaxSize int

	// rootLatch serializes access to the root page id stored in the
	// header page. It is deliberately separate from the header page's
	// frame latch: crabbing releases it mid-descent, long before the
	// operation completes.
	rootLatch sync.RWMutex
}

// New creates a tree rooted at the given header page, which is
// initialized to an empty tree. Max sizes configured at the physical
// slot capacity are reduced by 2 so a node can transiently overflow by
// one entry before splitting.
func New[K any](name string, headerPageID primitives.PageID, bpm *buffer.BufferPoolManager,
	codec KeyCodec[K], leafMaxSize, internalMaxSize int) (*BPlusTree[K], error) {
	if leafMaxSize < 2 {
		return nil, fmt.Errorf("leaf max size must be at least 2, got %d", leafMaxSize)
	}
	if internalMaxSize < 3 {
		return nil, fmt.Errorf("internal max size must be at least 3, got %d", internalMaxSize)
	}
	if cap := leafSlotCapacity(codec.Size()); leafMaxSize > cap-2 {
		leafMaxSize = cap - 2
	}
	if cap := internalSlotCapacity(codec.Size()); internalMaxSize > cap-2 {
		internalMaxSize = cap - 2
	}

	t := &BPlusTree[K]{
		name:            name,
		headerPageID:    headerPageID,
		bpm:             bpm,
		codec:           codec,
		leafMaxSize:     leafMaxSize,
		internalMaxSize: internalMaxSize,
	}
	hg, err := bpm.WritePage(headerPageID)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize index %q header: %w", name, err)
	}
	asHeader(hg.DataMut()).setRootPageID(primitives.InvalidPageID)
	hg.Drop()
	return t, nil
}

// GetRootPageID returns the header page id: the stable entry point of
// the index.
func (t *BPlusTree[K]) GetRootPageID() primitives.PageID {
	return t.headerPageID
}

// IsEmpty reports whether the tree holds no entries.
func (t *BPlusTree[K]) IsEmpty() (bool, error) {
	t.rootLatch.RLock()
	defer t.rootLatch.RUnlock()

	hg, err := t.bpm.ReadPage(t.headerPageID)
	if err != nil {
		return false, err
	}
	defer hg.Drop()
	return !asHeader(hg.Data()).rootPageID().IsValid(), nil
}

// GetValue looks up key and returns its value. The second result is
// false when the key is absent.
func (t *BPlusTree[K]) GetValue(key K) (primitives.RID, bool, error) {
	var zero primitives.RID

	cur, err := t.findLeaf(key)
	if err != nil || cur == nil {
		return zero, false, err
	}
	leaf := asLeaf(cur.Data(), t.codec)
	idx := leaf.keyIndex(key)
	if idx < leaf.size() && t.codec.Compare(leaf.keyAt(idx), key) == 0 {
		v := leaf.valueAt(idx)
		cur.Drop()
		return v, true, nil
	}
	cur.Drop()
	return zero, false, nil
}

// findLeaf descends with shared latch crabbing to the leaf that would
// contain key and returns its read guard, or nil if the tree is
// empty. The parent guard is held only until the child is latched; the
// root-pointer latch is released as soon as the descent is past the
// root.
func (t *BPlusTree[K]) findLeaf(key K) (*buffer.ReadGuard, error) {
	return t.descend(func(ip internalPage[K]) primitives.PageID {
		return ip.childAt(ip.keyIndex(key) - 1)
	})
}

// findLeftmostLeaf descends to the first leaf in key order.
func (t *BPlusTree[K]) findLeftmostLeaf() (*buffer.ReadGuard, error) {
	return t.descend(func(ip internalPage[K]) primitives.PageID {
		return ip.childAt(0)
	})
}

func (t *BPlusTree[K]) descend(pick func(internalPage[K]) primitives.PageID) (*buffer.ReadGuard, error) {
	t.rootLatch.RLock()
	hg, err := t.bpm.ReadPage(t.headerPageID)
	if err != nil {
		t.rootLatch.RUnlock()
		return nil, err
	}
	root := asHeader(hg.Data()).rootPageID()
	if !root.IsValid() {
		hg.Drop()
		t.rootLatch.RUnlock()
		return nil, nil
	}
	cur, err := t.bpm.ReadPage(root)
	if err != nil {
		hg.Drop()
		t.rootLatch.RUnlock()
		return nil, err
	}
	hg.Drop()
	t.rootLatch.RUnlock()

	for {
		node := asNode(cur.Data())
		if node.isLeaf() {
			return cur, nil
		}
		child := pick(asInternal(cur.Data(), t.codec))
		next, err := t.bpm.ReadPage(child)
		if err != nil {
			cur.Drop()
			return nil, err
		}
		cur.Drop()
		cur = next
	}
}

// leafViewMut and friends attach typed views to guard memory.

func (t *BPlusTree[K]) leafViewMut(g *buffer.WriteGuard) leafPage[K] {
	return asLeaf(g.DataMut(), t.codec)
}

func (t *BPlusTree[K]) internalViewMut(g *buffer.WriteGuard) internalPage[K] {
	return asInternal(g.DataMut(), t.codec)
}

// adopter returns a callback that re-parents a child page under the
// given parent, taking a write guard on the child for the update.
func (t *BPlusTree[K]) adopter(parent primitives.PageID) func(primitives.PageID) error {
	return func(child primitives.PageID) error {
		cg, err := t.bpm.WritePage(child)
		if err != nil {
			return err
		}
		asNode(cg.DataMut()).setParentPageID(parent)
		cg.Drop()
		return nil
	}
}
