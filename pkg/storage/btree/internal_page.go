package btree

import "treestore/pkg/primitives"

// internalPage is a typed view over an internal node: size child page
// ids and size-1 separator keys. Key slot 0 is unused; for any key K
// reachable through child i, keys[i] <= K < keys[i+1].
type internalPage[K any] struct {
	nodePage
	codec KeyCodec[K]
}

func asInternal[K any](data []byte, codec KeyCodec[K]) internalPage[K] {
	return internalPage[K]{nodePage: asNode(data), codec: codec}
}

// internalSlotCapacity is the physical number of key/child slots an
// internal page can hold for the given key width.
func internalSlotCapacity(keySize int) int {
	return (primitives.PageSize - internalHeaderSize) / (keySize + pageIDSize)
}

func (p internalPage[K]) slotCapacity() int {
	return internalSlotCapacity(p.codec.Size())
}

func (p internalPage[K]) init(pid, parent primitives.PageID, maxSize, size int) {
	p.setPageType(pageTypeInternal)
	p.setSize(size)
	p.setMaxSize(maxSize)
	p.setPageID(pid)
	p.setParentPageID(parent)
}

func (p internalPage[K]) keyOffset(i int) int {
	return internalHeaderSize + i*p.codec.Size()
}

func (p internalPage[K]) childOffset(i int) int {
	return internalHeaderSize + p.slotCapacity()*p.codec.Size() + i*pageIDSize
}

func (p internalPage[K]) keyAt(i int) K {
	checkSlot(i, p.slotCapacity(), "internal")
	return p.codec.Decode(p.data[p.keyOffset(i):])
}

func (p internalPage[K]) setKeyAt(i int, k K) {
	checkSlot(i, p.slotCapacity(), "internal")
	p.codec.Encode(p.data[p.keyOffset(i):], k)
}

func (p internalPage[K]) childAt(i int) primitives.PageID {
	checkSlot(i, p.slotCapacity(), "internal")
	return p.getPageID(p.childOffset(i))
}

func (p internalPage[K]) setChildAt(i int, pid primitives.PageID) {
	checkSlot(i, p.slotCapacity(), "internal")
	p.putPageID(p.childOffset(i), pid)
}

// keyIndex returns the smallest index i >= 1 whose key is strictly
// greater than key, or size if no such key exists. The descent for key
// follows child keyIndex-1.
func (p internalPage[K]) keyIndex(key K) int {
	lo, hi := 1, p.size()
	for lo < hi {
		mid := (lo + hi) / 2
		if p.codec.Compare(p.keyAt(mid), key) > 0 {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo
}

// childIndex returns the slot holding the given child page id, or -1.
func (p internalPage[K]) childIndex(pid primitives.PageID) int {
	for i := 0; i < p.size(); i++ {
		if p.childAt(i) == pid {
			return i
		}
	}
	return -1
}

// insert places key and its right child at the sorted position,
// shifting later slots right.
func (p internalPage[K]) insert(key K, child primitives.PageID) {
	idx := p.keyIndex(key)
	n := p.size()
	for j := n; j > idx; j-- {
		p.setKeyAt(j, p.keyAt(j-1))
		p.setChildAt(j, p.childAt(j-1))
	}
	p.setKeyAt(idx, key)
	p.setChildAt(idx, child)
	p.setSize(n + 1)
}

// remove deletes the key and child at slot i (i >= 1), shifting later
// slots left.
func (p internalPage[K]) remove(i int) {
	n := p.size()
	for j := i; j < n-1; j++ {
		p.setKeyAt(j, p.keyAt(j+1))
		p.setChildAt(j, p.childAt(j+1))
	}
	p.setSize(n - 1)
}

// removeFirstKey drops the key at slot 1 and the child at slot 0. The
// split path uses it to strip the promoted separator out of a fresh
// right sibling; pairing the removal with the slot-1 promotion keeps
// keys and children aligned.
func (p internalPage[K]) removeFirstKey() {
	n := p.size()
	for j := 1; j < n-1; j++ {
		p.setKeyAt(j, p.keyAt(j+1))
	}
	for j := 0; j < n-1; j++ {
		p.setChildAt(j, p.childAt(j+1))
	}
	p.setSize(n - 1)
}

// moveHalfTo moves the upper half of the slots into the right sibling
// and re-parents every moved child through adopt.
func (p internalPage[K]) moveHalfTo(dst internalPage[K], adopt func(primitives.PageID) error) error {
	start := p.minSize()
	n := p.size()
	base := dst.size()
	for j := start; j < n; j++ {
		dst.setKeyAt(base+j-start, p.keyAt(j))
		dst.setChildAt(base+j-start, p.childAt(j))
		if err := adopt(p.childAt(j)); err != nil {
			return err
		}
	}
	dst.changeSizeBy(n - start)
	p.setSize(start)
	return nil
}

// moveAllTo appends every slot to dst, using pullDownKey as the
// separator for the first moved child, and re-parents moved children.
// This page ends up empty.
func (p internalPage[K]) moveAllTo(dst internalPage[K], pullDownKey K, adopt func(primitives.PageID) error) error {
	p.setKeyAt(0, pullDownKey)
	n := p.size()
	base := dst.size()
	for j := 0; j < n; j++ {
		dst.setKeyAt(base+j, p.keyAt(j))
		dst.setChildAt(base+j, p.childAt(j))
		if err := adopt(p.childAt(j)); err != nil {
			return err
		}
	}
	dst.changeSizeBy(n)
	p.setSize(0)
	return nil
}

// moveFirstToEnd rotates this page's first child to the end of the
// left sibling dst, keyed by the parent separator pulled down.
func (p internalPage[K]) moveFirstToEnd(dst internalPage[K], pullDownKey K, adopt func(primitives.PageID) error) error {
	dst.setKeyAt(dst.size(), pullDownKey)
	dst.setChildAt(dst.size(), p.childAt(0))
	if err := adopt(p.childAt(0)); err != nil {
		return err
	}
	n := p.size()
	for j := 1; j < n-1; j++ {
		p.setKeyAt(j, p.keyAt(j+1))
	}
	for j := 0; j < n-1; j++ {
		p.setChildAt(j, p.childAt(j+1))
	}
	dst.changeSizeBy(1)
	p.setSize(n - 1)
	return nil
}

// moveLastToBegin rotates this page's last child to the front of the
// right sibling dst, keyed by the parent separator pulled down.
func (p internalPage[K]) moveLastToBegin(dst internalPage[K], pullDownKey K, adopt func(primitives.PageID) error) error {
	m := dst.size()
	for j := m; j >= 2; j-- {
		dst.setKeyAt(j, dst.keyAt(j-1))
	}
	for j := m; j >= 1; j-- {
		dst.setChildAt(j, dst.childAt(j-1))
	}
	n := p.size()
	dst.setKeyAt(1, pullDownKey)
	dst.setChildAt(0, p.childAt(n-1))
	if err := adopt(p.childAt(n - 1)); err != nil {
		return err
	}
	dst.changeSizeBy(1)
	p.setSize(n - 1)
	return nil
}
