// Package btree implements a concurrent on-disk B+ tree index over
// fixed-size pages served by the buffer pool. All values live in
// leaves linked in key order; internal pages route the descent.
package btree

import (
	"encoding/binary"

	"treestore/pkg/primitives"
)

// KeyCodec defines a fixed-width, totally ordered key encoding. The
// tree, pages and iterator are generic over the key type it encodes,
// so one tree type serves every key width.
type KeyCodec[K any] interface {
	// Size returns the encoded width in bytes. Must be constant.
	Size() int

	// Compare orders two keys: negative if a < b, zero if equal,
	// positive if a > b.
	Compare(a, b K) int

	// Encode writes k into dst[:Size()].
	Encode(dst []byte, k K)

	// Decode reads a key from src[:Size()]. The result must not alias
	// src; page memory is only valid while its guard is held.
	Decode(src []byte) K
}

// Int64Codec encodes int64 keys as 8 BigEndian bytes.
type Int64Codec struct{}

func (Int64Codec) Size() int { return 8 }

func (Int64Codec) Compare(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func (Int64Codec) Encode(dst []byte, k int64) {
	binary.BigEndian.PutUint64(dst, uint64(k))
}

func (Int64Codec) Decode(src []byte) int64 {
	return int64(binary.BigEndian.Uint64(src))
}

// BytesCodec encodes fixed-width byte-string keys compared
// lexicographically. Shorter keys are zero-padded.
type BytesCodec struct {
	Width int
}

func (c BytesCodec) Size() int { return c.Width }

func (c BytesCodec) Compare(a, b []byte) int {
	for i := 0; i < c.Width; i++ {
		var x, y byte
		if i < len(a) {
			x = a[i]
		}
		if i < len(b) {
			y = b[i]
		}
		if x != y {
			return int(x) - int(y)
		}
	}
	return 0
}

func (c BytesCodec) Encode(dst []byte, k []byte) {
	n := copy(dst[:c.Width], k)
	for i := n; i < c.Width; i++ {
		dst[i] = 0
	}
}

func (c BytesCodec) Decode(src []byte) []byte {
	out := make([]byte, c.Width)
	copy(out, src)
	return out
}

// ridSize is the encoded width of a primitives.RID leaf value.
const ridSize = 8

func encodeRID(dst []byte, r primitives.RID) {
	binary.BigEndian.PutUint32(dst, uint32(int32(r.PageID)))
	binary.BigEndian.PutUint32(dst[4:], r.Slot)
}

func decodeRID(src []byte) primitives.RID {
	return primitives.RID{
		PageID: primitives.PageID(int32(binary.BigEndian.Uint32(src))),
		Slot:   binary.BigEndian.Uint32(src[4:]),
	}
}
