// Package primitives defines the core identifier types shared by the
// storage and buffer layers.
package primitives

import "fmt"

// PageSize is the size of a single on-disk page in bytes.
const PageSize = 4096

// PageID identifies a page within the database file.
// Negative values are sentinels and never name a real page.
type PageID int32

// InvalidPageID marks the absence of a page.
const InvalidPageID PageID = -1

// IsValid reports whether the PageID names a real page.
func (p PageID) IsValid() bool {
	return p >= 0
}

// String returns a string representation of the PageID.
func (p PageID) String() string {
	return fmt.Sprintf("PageID(%d)", int32(p))
}

// FrameID identifies a frame in the buffer pool. Frame ids are dense:
// a pool with n frames uses ids 0..n-1.
type FrameID int32

// String returns a string representation of the FrameID.
func (f FrameID) String() string {
	return fmt.Sprintf("FrameID(%d)", int32(f))
}

// RID locates a tuple: the heap page it lives on and its slot within
// that page. It is the fixed-size value payload stored by the index.
type RID struct {
	PageID PageID
	Slot   uint32
}

// NewRID creates a record id for the given page and slot.
func NewRID(pid PageID, slot uint32) RID {
	return RID{PageID: pid, Slot: slot}
}

// String returns a string representation of the RID.
func (r RID) String() string {
	return fmt.Sprintf("RID(%d:%d)", int32(r.PageID), r.Slot)
}
