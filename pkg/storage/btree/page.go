package btree

import (
	"encoding/binary"
	"fmt"

	"treestore/pkg/primitives"
)

// Page type tags stored in the common node header.
const (
	pageTypeInvalid  uint32 = 0
	pageTypeLeaf     uint32 = 1
	pageTypeInternal uint32 = 2
)

// Node page layout. Every tree node starts with the same 20-byte
// header; leaves add a 4-byte next-leaf pointer. The slot arrays that
// follow are sized by the physical slot capacity of the page, so an
// insert may transiently occupy one slot past maxSize before a split.
//
//	common: page_id(4) | parent_page_id(4) | page_type(4) | size(4) | max_size(4)
//	leaf:   common | next_page_id(4) | keys[cap] | rids[cap]
//	intern: common | keys[cap] | child_page_ids[cap]   (key slot 0 unused)
const (
	offPageID   = 0
	offParentID = 4
	offPageType = 8
	offSize     = 12
	offMaxSize  = 16

	nodeHeaderSize     = 20
	internalHeaderSize = nodeHeaderSize
	offNextPageID      = nodeHeaderSize
	leafHeaderSize     = nodeHeaderSize + 4

	pageIDSize = 4
)

// nodePage is a view over the common header shared by internal and
// leaf pages. Views never own memory: they decorate the frame bytes
// exposed by a page guard.
type nodePage struct {
	data []byte
}

func asNode(data []byte) nodePage {
	return nodePage{data: data}
}

func (p nodePage) pageID() primitives.PageID {
	return p.getPageID(offPageID)
}

func (p nodePage) setPageID(pid primitives.PageID) {
	p.putPageID(offPageID, pid)
}

func (p nodePage) parentPageID() primitives.PageID {
	return p.getPageID(offParentID)
}

func (p nodePage) setParentPageID(pid primitives.PageID) {
	p.putPageID(offParentID, pid)
}

func (p nodePage) isLeaf() bool {
	return binary.BigEndian.Uint32(p.data[offPageType:]) == pageTypeLeaf
}

func (p nodePage) setPageType(t uint32) {
	binary.BigEndian.PutUint32(p.data[offPageType:], t)
}

// isRoot reports whether this node is the tree root.
func (p nodePage) isRoot() bool {
	return !p.parentPageID().IsValid()
}

func (p nodePage) size() int {
	return int(int32(binary.BigEndian.Uint32(p.data[offSize:])))
}

func (p nodePage) setSize(n int) {
	binary.BigEndian.PutUint32(p.data[offSize:], uint32(int32(n)))
}

func (p nodePage) changeSizeBy(d int) {
	p.setSize(p.size() + d)
}

func (p nodePage) maxSize() int {
	return int(int32(binary.BigEndian.Uint32(p.data[offMaxSize:])))
}

func (p nodePage) setMaxSize(n int) {
	binary.BigEndian.PutUint32(p.data[offMaxSize:], uint32(int32(n)))
}

// minSize is the smallest legal size for a non-root node:
// ceil(maxSize/2), bumped to 2 for internal pages so an internal node
// never degenerates to a single child.
func (p nodePage) minSize() int {
	m := (p.maxSize() + 1) / 2
	if !p.isLeaf() && m < 2 {
		m = 2
	}
	return m
}

func (p nodePage) getPageID(off int) primitives.PageID {
	return primitives.PageID(int32(binary.BigEndian.Uint32(p.data[off:])))
}

func (p nodePage) putPageID(off int, pid primitives.PageID) {
	binary.BigEndian.PutUint32(p.data[off:], uint32(int32(pid)))
}

func checkSlot(i, capacity int, kind string) {
	if i < 0 || i >= capacity {
		panic(fmt.Sprintf("%s page slot %d out of range [0, %d)", kind, i, capacity))
	}
}

// headerPage is the fixed entry page of a tree. It records only the
// current root page id.
type headerPage struct {
	data []byte
}

func asHeader(data []byte) headerPage {
	return headerPage{data: data}
}

func (h headerPage) rootPageID() primitives.PageID {
	return primitives.PageID(int32(binary.BigEndian.Uint32(h.data)))
}

func (h headerPage) setRootPageID(pid primitives.PageID) {
	binary.BigEndian.PutUint32(h.data, uint32(int32(pid)))
}
