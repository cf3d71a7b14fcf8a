package buffer

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"treestore/pkg/primitives"
	"treestore/pkg/storage/disk"
)

var (
	// ErrNoFreeFrame is returned when the pool has neither a free nor
	// an evictable frame to satisfy a page request.
	ErrNoFreeFrame = errors.New("buffer pool: no free or evictable frame")

	// ErrPagePinned is returned by DeletePage when the page is still
	// in use.
	ErrPagePinned = errors.New("buffer pool: page is pinned")
)

// frame is one page-sized buffer in the pool. Its contents are
// protected by latch; pinCount and pageID are protected by the pool
// mutex. dirty is set through a write guard under the exclusive latch,
// cleared by FlushPage under the shared latch, and reset under the pool
// mutex only while no guard holds the frame.
type frame struct {
	id       primitives.FrameID
	latch    sync.RWMutex
	data     []byte
	pageID   primitives.PageID
	pinCount int
	dirty    bool
}

// BufferPoolManager maps page ids to a bounded set of in-memory
// frames. Callers acquire pages through scoped guards
// (ReadPage/WritePage); a guard pins its frame and holds the per-frame
// latch in shared or exclusive mode until dropped. When every frame is
// occupied the LRU-K replacer names a victim, whose contents are
// written back if dirty.
type BufferPoolManager struct {
	mu          sync.Mutex
	disk        disk.Manager
	replacer    *LRUKReplacer
	frames      []*frame
	pageTable   map[primitives.PageID]primitives.FrameID
	freeFrames  []primitives.FrameID
	nextPageID  primitives.PageID
	freePageIDs []primitives.PageID
}

// NewBufferPoolManager creates a pool with numFrames frames, an LRU-K
// replacer of depth k, and the given backing store.
func NewBufferPoolManager(numFrames, k int, d disk.Manager) *BufferPoolManager {
	b := &BufferPoolManager{
		disk:       d,
		replacer:   NewLRUKReplacer(numFrames, k),
		frames:     make([]*frame, numFrames),
		pageTable:  make(map[primitives.PageID]primitives.FrameID, numFrames),
		freeFrames: make([]primitives.FrameID, 0, numFrames),
	}
	for i := range b.frames {
		b.frames[i] = &frame{
			id:     primitives.FrameID(i),
			data:   make([]byte, primitives.PageSize),
			pageID: primitives.InvalidPageID,
		}
		b.freeFrames = append(b.freeFrames, primitives.FrameID(i))
	}
	return b
}

// NewPage allocates a fresh page id. The page materializes in the pool
// on first access and reads as zeroes until written. Ids released by
// DeletePage are recycled.
func (b *BufferPoolManager) NewPage() primitives.PageID {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n := len(b.freePageIDs); n > 0 {
		pid := b.freePageIDs[n-1]
		b.freePageIDs = b.freePageIDs[:n-1]
		return pid
	}
	pid := b.nextPageID
	b.nextPageID++
	return pid
}

// ReadPage pins the page and returns a guard holding its latch in
// shared mode. Blocks while a writer holds the frame.
func (b *BufferPoolManager) ReadPage(pid primitives.PageID) (*ReadGuard, error) {
	f, err := b.pinPage(pid, AccessLookup)
	if err != nil {
		return nil, err
	}
	f.latch.RLock()
	return &ReadGuard{bpm: b, f: f}, nil
}

// WritePage pins the page and returns a guard holding its latch in
// exclusive mode. Blocks while any other guard holds the frame.
func (b *BufferPoolManager) WritePage(pid primitives.PageID) (*WriteGuard, error) {
	f, err := b.pinPage(pid, AccessIndex)
	if err != nil {
		return nil, err
	}
	f.latch.Lock()
	return &WriteGuard{bpm: b, f: f}, nil
}

// pinPage locates or loads the page into a frame and pins it. The
// frame latch is not taken here; callers latch after the pool mutex is
// released so that latch waits never block the pool.
func (b *BufferPoolManager) pinPage(pid primitives.PageID, at AccessType) (*frame, error) {
	if !pid.IsValid() {
		panic(fmt.Sprintf("pinPage on invalid page id %v", pid))
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if fid, ok := b.pageTable[pid]; ok {
		f := b.frames[fid]
		f.pinCount++
		b.replacer.RecordAccess(fid, at)
		b.replacer.SetEvictable(fid, false)
		return f, nil
	}

	fid, err := b.acquireFrame()
	if err != nil {
		return nil, err
	}
	f := b.frames[fid]
	f.pageID = pid
	f.pinCount = 1
	f.dirty = false
	if err := b.disk.ReadPage(pid, f.data); err != nil {
		f.pageID = primitives.InvalidPageID
		f.pinCount = 0
		b.freeFrames = append(b.freeFrames, fid)
		return nil, fmt.Errorf("failed to load page %v: %w", pid, err)
	}
	b.pageTable[pid] = fid
	b.replacer.RecordAccess(fid, at)
	b.replacer.SetEvictable(fid, false)
	return f, nil
}

// acquireFrame returns a free frame id, evicting a victim if needed.
// Called with the pool mutex held. A dirty victim is flushed; its pin
// count is zero, so no latch holder can exist and the write is safe.
func (b *BufferPoolManager) acquireFrame() (primitives.FrameID, error) {
	if n := len(b.freeFrames); n > 0 {
		fid := b.freeFrames[n-1]
		b.freeFrames = b.freeFrames[:n-1]
		return fid, nil
	}

	victim, ok := b.replacer.Evict()
	if !ok {
		return 0, ErrNoFreeFrame
	}
	vf := b.frames[victim]
	if vf.dirty {
		if err := b.disk.WritePage(vf.pageID, vf.data); err != nil {
			// Restore the victim so the pool stays consistent.
			b.replacer.RecordAccess(victim, AccessUnknown)
			b.replacer.SetEvictable(victim, true)
			return 0, fmt.Errorf("failed to flush victim page %v: %w", vf.pageID, err)
		}
		vf.dirty = false
	}
	delete(b.pageTable, vf.pageID)
	vf.pageID = primitives.InvalidPageID
	return victim, nil
}

// unpin releases one pin on the frame; the frame becomes evictable
// when the last pin goes away.
func (b *BufferPoolManager) unpin(f *frame) {
	b.mu.Lock()
	defer b.mu.Unlock()

	f.pinCount--
	if f.pinCount < 0 {
		panic(fmt.Sprintf("unpin of unpinned frame %v", f.id))
	}
	if f.pinCount == 0 {
		b.replacer.SetEvictable(f.id, true)
	}
}

// FlushPage writes the page back to disk if it is resident, clearing
// its dirty flag. A no-op for pages not in the pool.
func (b *BufferPoolManager) FlushPage(pid primitives.PageID) error {
	b.mu.Lock()
	fid, ok := b.pageTable[pid]
	if !ok {
		b.mu.Unlock()
		return nil
	}
	f := b.frames[fid]
	// Pin so the frame cannot be evicted while we wait for the latch.
	f.pinCount++
	b.replacer.SetEvictable(fid, false)
	b.mu.Unlock()

	f.latch.RLock()
	err := b.disk.WritePage(f.pageID, f.data)
	if err == nil {
		f.dirty = false
	}
	f.latch.RUnlock()
	b.unpin(f)
	if err != nil {
		return fmt.Errorf("failed to flush page %v: %w", pid, err)
	}
	return nil
}

// FlushAll writes every resident page back to disk.
func (b *BufferPoolManager) FlushAll() error {
	b.mu.Lock()
	pids := make([]primitives.PageID, 0, len(b.pageTable))
	for pid := range b.pageTable {
		pids = append(pids, pid)
	}
	b.mu.Unlock()

	var g errgroup.Group
	for _, pid := range pids {
		pid := pid
		g.Go(func() error {
			return b.FlushPage(pid)
		})
	}
	return g.Wait()
}

// DeletePage drops the page from the pool and recycles its id. The
// page must be unpinned; its contents are discarded, not flushed, and
// its on-disk copy is zeroed.
func (b *BufferPoolManager) DeletePage(pid primitives.PageID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if fid, ok := b.pageTable[pid]; ok {
		f := b.frames[fid]
		if f.pinCount > 0 {
			return fmt.Errorf("%w: %v", ErrPagePinned, pid)
		}
		b.replacer.Remove(fid)
		delete(b.pageTable, pid)
		f.pageID = primitives.InvalidPageID
		f.dirty = false
		b.freeFrames = append(b.freeFrames, fid)
	}
	// Clear the on-disk copy so the recycled id reads as zeroes.
	if err := b.disk.WritePage(pid, make([]byte, primitives.PageSize)); err != nil {
		return fmt.Errorf("failed to clear page %v: %w", pid, err)
	}
	b.freePageIDs = append(b.freePageIDs, pid)
	return nil
}

// PinCount returns the current pin count of the page, or 0 if the page
// is not resident.
func (b *BufferPoolManager) PinCount(pid primitives.PageID) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if fid, ok := b.pageTable[pid]; ok {
		return b.frames[fid].pinCount
	}
	return 0
}
