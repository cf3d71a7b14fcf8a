package buffer

import "treestore/pkg/primitives"

// ReadGuard is a scoped handle to a pinned frame latched in shared
// mode. Dropping the guard releases the latch and the pin exactly
// once; Drop is idempotent so it can sit in a defer alongside earlier
// explicit drops.
type ReadGuard struct {
	bpm     *BufferPoolManager
	f       *frame
	dropped bool
}

// Data returns a read-only view of the page contents. The slice is
// only valid until the guard is dropped.
func (g *ReadGuard) Data() []byte {
	if g.dropped {
		panic("access through dropped read guard")
	}
	return g.f.data
}

// PageID returns the id of the guarded page.
func (g *ReadGuard) PageID() primitives.PageID {
	if g.dropped {
		panic("access through dropped read guard")
	}
	return g.f.pageID
}

// Drop releases the latch and unpins the frame.
func (g *ReadGuard) Drop() {
	if g.dropped {
		return
	}
	g.dropped = true
	g.f.latch.RUnlock()
	g.bpm.unpin(g.f)
}

// WriteGuard is a scoped handle to a pinned frame latched in exclusive
// mode. Mutating the page through DataMut marks the frame dirty.
type WriteGuard struct {
	bpm     *BufferPoolManager
	f       *frame
	dropped bool
}

// Data returns the page contents without marking the frame dirty.
func (g *WriteGuard) Data() []byte {
	if g.dropped {
		panic("access through dropped write guard")
	}
	return g.f.data
}

// DataMut marks the frame dirty and returns a mutable view of the
// page contents. The slice is only valid until the guard is dropped.
func (g *WriteGuard) DataMut() []byte {
	if g.dropped {
		panic("access through dropped write guard")
	}
	g.f.dirty = true
	return g.f.data
}

// PageID returns the id of the guarded page.
func (g *WriteGuard) PageID() primitives.PageID {
	if g.dropped {
		panic("access through dropped write guard")
	}
	return g.f.pageID
}

// Drop releases the latch and unpins the frame.
func (g *WriteGuard) Drop() {
	if g.dropped {
		return
	}
	g.dropped = true
	g.f.latch.Unlock()
	g.bpm.unpin(g.f)
}
