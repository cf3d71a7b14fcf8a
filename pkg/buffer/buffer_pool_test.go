package buffer

import (
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"treestore/pkg/primitives"
	"treestore/pkg/storage/disk"
)

func newTestPool(numFrames int) (*BufferPoolManager, *disk.MemManager) {
	mem := disk.NewMemManager()
	return NewBufferPoolManager(numFrames, 2, mem), mem
}

func stampPage(t *testing.T, b *BufferPoolManager, pid primitives.PageID, v byte) {
	t.Helper()
	g, err := b.WritePage(pid)
	require.NoError(t, err)
	data := g.DataMut()
	for i := range data {
		data[i] = v
	}
	g.Drop()
}

func TestBufferPool_WriteReadRoundTrip(t *testing.T) {
	b, _ := newTestPool(4)

	pid := b.NewPage()
	stampPage(t, b, pid, 0xAB)

	g, err := b.ReadPage(pid)
	require.NoError(t, err)
	assert.Equal(t, byte(0xAB), g.Data()[0])
	assert.Equal(t, byte(0xAB), g.Data()[primitives.PageSize-1])
	assert.Equal(t, pid, g.PageID())
	g.Drop()
}

func TestBufferPool_NewPageReadsAsZeroes(t *testing.T) {
	b, _ := newTestPool(4)

	pid := b.NewPage()
	g, err := b.ReadPage(pid)
	require.NoError(t, err)
	for _, by := range g.Data() {
		if by != 0 {
			t.Fatalf("fresh page has non-zero byte")
		}
	}
	g.Drop()
}

func TestBufferPool_EvictionWritesBack(t *testing.T) {
	b, _ := newTestPool(3)

	var pids []primitives.PageID
	for i := 0; i < 6; i++ {
		pid := b.NewPage()
		pids = append(pids, pid)
		stampPage(t, b, pid, byte(i+1))
	}

	// Only 3 frames exist, so earlier pages were evicted and must
	// read back from disk intact.
	for i, pid := range pids {
		g, err := b.ReadPage(pid)
		require.NoError(t, err)
		assert.Equal(t, byte(i+1), g.Data()[0], "page %v", pid)
		g.Drop()
	}
}

func TestBufferPool_NoFreeFrame(t *testing.T) {
	b, _ := newTestPool(2)

	g1, err := b.WritePage(b.NewPage())
	require.NoError(t, err)
	g2, err := b.WritePage(b.NewPage())
	require.NoError(t, err)

	_, err = b.ReadPage(b.NewPage())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoFreeFrame))

	g1.Drop()
	g2.Drop()

	g3, err := b.ReadPage(b.NewPage())
	require.NoError(t, err)
	g3.Drop()
}

func TestBufferPool_PinCounts(t *testing.T) {
	b, _ := newTestPool(4)

	pid := b.NewPage()
	assert.Equal(t, 0, b.PinCount(pid))

	g1, err := b.ReadPage(pid)
	require.NoError(t, err)
	assert.Equal(t, 1, b.PinCount(pid))

	g2, err := b.ReadPage(pid)
	require.NoError(t, err)
	assert.Equal(t, 2, b.PinCount(pid))

	g1.Drop()
	assert.Equal(t, 1, b.PinCount(pid))
	g2.Drop()
	assert.Equal(t, 0, b.PinCount(pid))
}

func TestBufferPool_WriterExcludesReader(t *testing.T) {
	b, _ := newTestPool(4)

	pid := b.NewPage()
	wg, err := b.WritePage(pid)
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		rg, err := b.ReadPage(pid)
		if err == nil {
			rg.Drop()
		}
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("reader acquired a write-latched page")
	case <-time.After(50 * time.Millisecond):
	}

	wg.Drop()
	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("reader never acquired the page after writer dropped")
	}
}

func TestBufferPool_FlushPage(t *testing.T) {
	b, mem := newTestPool(4)

	pid := b.NewPage()
	stampPage(t, b, pid, 0x5C)

	// Nothing on disk until a flush or an eviction happens.
	require.NoError(t, b.FlushPage(pid))
	snap := mem.Snapshot()
	require.Contains(t, snap, pid)
	assert.Equal(t, byte(0x5C), snap[pid][0])
}

func TestBufferPool_FlushAll(t *testing.T) {
	b, mem := newTestPool(8)

	var pids []primitives.PageID
	for i := 0; i < 5; i++ {
		pid := b.NewPage()
		pids = append(pids, pid)
		stampPage(t, b, pid, byte(0x10+i))
	}

	require.NoError(t, b.FlushAll())
	snap := mem.Snapshot()
	for i, pid := range pids {
		require.Contains(t, snap, pid)
		assert.Equal(t, byte(0x10+i), snap[pid][0])
	}
}

func TestBufferPool_DeletePage(t *testing.T) {
	b, _ := newTestPool(4)

	pid := b.NewPage()
	g, err := b.WritePage(pid)
	require.NoError(t, err)

	err = b.DeletePage(pid)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPagePinned))

	g.Drop()
	require.NoError(t, b.DeletePage(pid))

	// The id is recycled by the next allocation.
	assert.Equal(t, pid, b.NewPage())
}

func TestBufferPool_ConcurrentCounters(t *testing.T) {
	const (
		numPages      = 16
		numGoroutines = 8
		opsPerWorker  = 200
	)
	b, _ := newTestPool(8)

	pids := make([]primitives.PageID, numPages)
	for i := range pids {
		pids[i] = b.NewPage()
	}

	var g errgroup.Group
	for w := 0; w < numGoroutines; w++ {
		w := w
		g.Go(func() error {
			for i := 0; i < opsPerWorker; i++ {
				pid := pids[(w+i)%numPages]
				wg, err := b.WritePage(pid)
				if err != nil {
					return err
				}
				data := wg.DataMut()
				binary.BigEndian.PutUint32(data, binary.BigEndian.Uint32(data)+1)
				wg.Drop()
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	var total uint32
	for _, pid := range pids {
		rg, err := b.ReadPage(pid)
		require.NoError(t, err)
		total += binary.BigEndian.Uint32(rg.Data())
		rg.Drop()
	}
	assert.Equal(t, uint32(numGoroutines*opsPerWorker), total)
}
