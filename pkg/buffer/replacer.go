// Package buffer provides the in-memory frame pool for database pages:
// a buffer pool manager, scoped page guards, and the LRU-K replacement
// policy that decides which frame to spill when the pool is full.
package buffer

import (
	"fmt"
	"sync"

	"treestore/pkg/primitives"
)

// AccessType describes why a frame is being touched. RecordAccess
// accepts it as a hint and discards it; the policy treats all kinds
// alike.
type AccessType int

const (
	AccessUnknown AccessType = iota
	AccessLookup
	AccessScan
	AccessIndex
)

// lruKNode tracks the access history of a single frame.
// Timestamps are stored most recent first.
type lruKNode struct {
	history   []uint64
	evictable bool
}

// kthRecent returns the k-th most recent access timestamp, or false
// if the frame has fewer than k recorded accesses.
func (n *lruKNode) kthRecent(k int) (uint64, bool) {
	if len(n.history) < k {
		return 0, false
	}
	return n.history[k-1], true
}

// earliest returns the oldest recorded access timestamp.
func (n *lruKNode) earliest() uint64 {
	return n.history[len(n.history)-1]
}

// LRUKReplacer implements the LRU-K replacement policy over a bounded
// set of frames.
//
// The policy evicts the evictable frame whose backward k-distance (time
// since the k-th most recent access) is largest. A frame with fewer
// than k recorded accesses has an infinite backward k-distance; among
// those, the frame whose earliest access is oldest is chosen first.
//
// The replacer is thread-safe.
type LRUKReplacer struct {
	mu        sync.Mutex
	nodes     map[primitives.FrameID]*lruKNode
	clock     uint64 // monotonic access tick
	numFrames int
	k         int
	curSize   int // number of evictable entries
}

// NewLRUKReplacer creates a replacer for numFrames frames with a
// history depth of k accesses.
func NewLRUKReplacer(numFrames, k int) *LRUKReplacer {
	return &LRUKReplacer{
		nodes:     make(map[primitives.FrameID]*lruKNode),
		numFrames: numFrames,
		k:         k,
	}
}

// RecordAccess records that the frame was accessed now, creating its
// history entry if this is the first access. A frame id outside
// [0, numFrames) is a programming error and panics.
func (r *LRUKReplacer) RecordAccess(fid primitives.FrameID, _ AccessType) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.checkFrameID(fid)
	n, ok := r.nodes[fid]
	if !ok {
		n = &lruKNode{}
		r.nodes[fid] = n
	}

	r.clock++
	n.history = append(n.history, 0)
	copy(n.history[1:], n.history)
	n.history[0] = r.clock
	if len(n.history) > r.k {
		n.history = n.history[:r.k]
	}
}

// SetEvictable toggles whether the frame may be evicted, maintaining
// the count of evictable entries. Unknown frames are ignored.
func (r *LRUKReplacer) SetEvictable(fid primitives.FrameID, evictable bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.checkFrameID(fid)
	n, ok := r.nodes[fid]
	if !ok || n.evictable == evictable {
		return
	}
	n.evictable = evictable
	if evictable {
		r.curSize++
	} else {
		r.curSize--
	}
}

// Remove drops the frame and its history from the replacer, regardless
// of its backward k-distance. Removing an unknown frame is a no-op;
// removing a non-evictable frame is a programming error and panics.
func (r *LRUKReplacer) Remove(fid primitives.FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.nodes[fid]
	if !ok {
		return
	}
	if !n.evictable {
		panic(fmt.Sprintf("cannot remove non-evictable frame %v", fid))
	}
	delete(r.nodes, fid)
	r.curSize--
}

// Evict chooses the evictable frame with the largest backward
// k-distance, removes it along with its history, and returns its id.
// Returns false if no frame is evictable.
func (r *LRUKReplacer) Evict() (primitives.FrameID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		infVictim   primitives.FrameID
		infEarliest uint64
		haveInf     bool

		fullVictim primitives.FrameID
		fullKth    uint64
		haveFull   bool
	)
	for fid, n := range r.nodes {
		if !n.evictable {
			continue
		}
		if kth, ok := n.kthRecent(r.k); ok {
			// Largest k-distance == smallest k-th most recent access.
			if !haveFull || kth < fullKth {
				haveFull, fullKth, fullVictim = true, kth, fid
			}
		} else {
			if !haveInf || n.earliest() < infEarliest {
				haveInf, infEarliest, infVictim = true, n.earliest(), fid
			}
		}
	}

	var victim primitives.FrameID
	switch {
	case haveInf:
		victim = infVictim
	case haveFull:
		victim = fullVictim
	default:
		return 0, false
	}
	delete(r.nodes, victim)
	r.curSize--
	return victim, true
}

// Size returns the number of evictable frames.
func (r *LRUKReplacer) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.curSize
}

func (r *LRUKReplacer) checkFrameID(fid primitives.FrameID) {
	if fid < 0 || int(fid) >= r.numFrames {
		panic(fmt.Sprintf("frame id %v out of range [0, %d)", fid, r.numFrames))
	}
}
