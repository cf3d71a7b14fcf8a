package btree

import "treestore/pkg/primitives"

// leafPage is a typed view over a leaf node: size sorted key/value
// pairs plus a pointer to the next leaf in key order.
type leafPage[K any] struct {
	nodePage
	codec KeyCodec[K]
}

func asLeaf[K any](data []byte, codec KeyCodec[K]) leafPage[K] {
	return leafPage[K]{nodePage: asNode(data), codec: codec}
}

// leafSlotCapacity is the physical number of key/value slots a leaf
// page can hold for the given key width.
func leafSlotCapacity(keySize int) int {
	return (primitives.PageSize - leafHeaderSize) / (keySize + ridSize)
}

func (p leafPage[K]) slotCapacity() int {
	return leafSlotCapacity(p.codec.Size())
}

func (p leafPage[K]) init(pid, parent primitives.PageID, maxSize, size int, next primitives.PageID) {
	p.setPageType(pageTypeLeaf)
	p.setSize(size)
	p.setMaxSize(maxSize)
	p.setPageID(pid)
	p.setParentPageID(parent)
	p.setNextPageID(next)
}

func (p leafPage[K]) nextPageID() primitives.PageID {
	return p.getPageID(offNextPageID)
}

func (p leafPage[K]) setNextPageID(pid primitives.PageID) {
	p.putPageID(offNextPageID, pid)
}

func (p leafPage[K]) keyOffset(i int) int {
	return leafHeaderSize + i*p.codec.Size()
}

func (p leafPage[K]) valueOffset(i int) int {
	return leafHeaderSize + p.slotCapacity()*p.codec.Size() + i*ridSize
}

func (p leafPage[K]) keyAt(i int) K {
	checkSlot(i, p.slotCapacity(), "leaf")
	return p.codec.Decode(p.data[p.keyOffset(i):])
}

func (p leafPage[K]) setKeyAt(i int, k K) {
	checkSlot(i, p.slotCapacity(), "leaf")
	p.codec.Encode(p.data[p.keyOffset(i):], k)
}

func (p leafPage[K]) valueAt(i int) primitives.RID {
	checkSlot(i, p.slotCapacity(), "leaf")
	return decodeRID(p.data[p.valueOffset(i):])
}

func (p leafPage[K]) setValueAt(i int, v primitives.RID) {
	checkSlot(i, p.slotCapacity(), "leaf")
	encodeRID(p.data[p.valueOffset(i):], v)
}

// keyIndex returns the smallest index whose key is >= key, or size if
// every key is smaller.
func (p leafPage[K]) keyIndex(key K) int {
	lo, hi := 0, p.size()
	for lo < hi {
		mid := (lo + hi) / 2
		if p.codec.Compare(p.keyAt(mid), key) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// insert places the pair at its sorted position, shifting later slots
// right. Returns false without modifying the page if the key is
// already present.
func (p leafPage[K]) insert(key K, v primitives.RID) bool {
	idx := p.keyIndex(key)
	n := p.size()
	if idx < n && p.codec.Compare(p.keyAt(idx), key) == 0 {
		return false
	}
	for j := n; j > idx; j-- {
		p.setKeyAt(j, p.keyAt(j-1))
		p.setValueAt(j, p.valueAt(j-1))
	}
	p.setKeyAt(idx, key)
	p.setValueAt(idx, v)
	p.setSize(n + 1)
	return true
}

// remove deletes the pair for key, shifting later slots left. Returns
// false if the key is absent.
func (p leafPage[K]) remove(key K) bool {
	idx := p.keyIndex(key)
	n := p.size()
	if idx >= n || p.codec.Compare(p.keyAt(idx), key) != 0 {
		return false
	}
	for j := idx; j < n-1; j++ {
		p.setKeyAt(j, p.keyAt(j+1))
		p.setValueAt(j, p.valueAt(j+1))
	}
	p.setSize(n - 1)
	return true
}

// moveHalfTo moves the upper half of this page's pairs to the (empty)
// right sibling, leaving minSize pairs behind.
func (p leafPage[K]) moveHalfTo(dst leafPage[K]) {
	start := p.minSize()
	n := p.size()
	base := dst.size()
	for j := start; j < n; j++ {
		dst.setKeyAt(base+j-start, p.keyAt(j))
		dst.setValueAt(base+j-start, p.valueAt(j))
	}
	dst.changeSizeBy(n - start)
	p.setSize(start)
}

// moveAllTo appends every pair to dst and forwards the next-leaf
// pointer; this page ends up empty.
func (p leafPage[K]) moveAllTo(dst leafPage[K]) {
	n := p.size()
	base := dst.size()
	for j := 0; j < n; j++ {
		dst.setKeyAt(base+j, p.keyAt(j))
		dst.setValueAt(base+j, p.valueAt(j))
	}
	dst.setNextPageID(p.nextPageID())
	dst.changeSizeBy(n)
	p.setSize(0)
}

// moveOneTo moves the pair at srcIdx into dst at dstIdx, shifting dst
// right if the slot is occupied.
func (p leafPage[K]) moveOneTo(srcIdx int, dst leafPage[K], dstIdx int) {
	m := dst.size()
	for j := m; j > dstIdx; j-- {
		dst.setKeyAt(j, dst.keyAt(j-1))
		dst.setValueAt(j, dst.valueAt(j-1))
	}
	dst.setKeyAt(dstIdx, p.keyAt(srcIdx))
	dst.setValueAt(dstIdx, p.valueAt(srcIdx))

	n := p.size()
	for j := srcIdx; j < n-1; j++ {
		p.setKeyAt(j, p.keyAt(j+1))
		p.setValueAt(j, p.valueAt(j+1))
	}
	dst.changeSizeBy(1)
	p.setSize(n - 1)
}
