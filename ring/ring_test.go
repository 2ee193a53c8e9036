package ring

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestRing(t *testing.T, bufSize uint32) (*Ring, Layout) {
	t.Helper()
	l := validLayout(bufSize, 32)
	r, err := Create(l, Polled)
	require.NoError(t, err)
	return r, l
}

func pushTail(l Layout, n uint32) {
	cur := binary.LittleEndian.Uint32(l.Shared[l.TailOffset:])
	binary.LittleEndian.PutUint32(l.Shared[l.TailOffset:], cur+n)
}

func TestRingReadAdvancesCursorAndStats(t *testing.T) {
	r, l := newTestRing(t, 16)

	copy(l.Shared[64:64+8], []byte{1, 2, 3, 4, 5, 6, 7, 8})
	pushTail(l, 8)

	require.Equal(t, uint32(8), r.Available())
	dst := make([]byte, 8)
	require.NoError(t, r.Read(dst))
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, dst)
	require.Equal(t, uint32(0), r.Available())
	require.Equal(t, uint64(8), r.Stats().BytesRead)
}

func TestRingReadWraparound(t *testing.T) {
	r, l := newTestRing(t, 16)

	// First frame: 12 bytes, fills [0,12).
	first := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	copy(l.Shared[64:64+12], first)
	pushTail(l, 12)
	require.NoError(t, r.Read(make([]byte, 12)))

	// Second frame: 8 bytes straddling the wrap: 4 at [12,16), 4 at [0,4).
	second := []byte{21, 22, 23, 24, 25, 26, 27, 28}
	copy(l.Shared[64+12:64+16], second[:4])
	copy(l.Shared[64:64+4], second[4:])
	pushTail(l, 8)

	dst := make([]byte, 8)
	require.NoError(t, r.Read(dst))
	require.Equal(t, second, dst)
}

func TestRingReadUnderflowErrors(t *testing.T) {
	r, _ := newTestRing(t, 16)
	err := r.Read(make([]byte, 4))
	require.Error(t, err)
}

func TestRingPeekDoesNotConsume(t *testing.T) {
	r, l := newTestRing(t, 16)
	copy(l.Shared[64:64+8], []byte{1, 2, 3, 4, 5, 6, 7, 8})
	pushTail(l, 8)

	var buf [8]byte
	require.True(t, r.Peek(buf[:]))
	require.Equal(t, uint32(8), r.Available())

	require.NoError(t, r.Read(buf[:]))
	require.Equal(t, uint32(0), r.Available())
}

func TestRingPeekReportsFalseWhenShort(t *testing.T) {
	r, l := newTestRing(t, 16)
	copy(l.Shared[64:64+4], []byte{1, 2, 3, 4})
	pushTail(l, 4)

	var buf [8]byte
	require.False(t, r.Peek(buf[:]))
}

func TestRingPublishHeadWritesReadCursor(t *testing.T) {
	r, l := newTestRing(t, 16)
	copy(l.Shared[64:64+8], []byte{1, 2, 3, 4, 5, 6, 7, 8})
	pushTail(l, 8)
	require.NoError(t, r.Read(make([]byte, 8)))

	r.PublishHead()
	require.Equal(t, uint32(8), binary.LittleEndian.Uint32(l.Shared[l.HeadOffset:]))
}

func TestRingExtraGetBoundsChecked(t *testing.T) {
	r, _ := newTestRing(t, 16)
	require.NotNil(t, r.ExtraGet(0, 32))
	require.Nil(t, r.ExtraGet(0, 33))
	require.Nil(t, r.ExtraGet(1<<31, 1<<31)) // overflow check
}

func TestRingWriteReply(t *testing.T) {
	r, _ := newTestRing(t, 16)
	require.NoError(t, r.WriteReply(4, []byte{9, 9, 9}))
	got := r.ExtraGet(4, 3)
	require.Equal(t, []byte{9, 9, 9}, got)
}

func TestRingFaultSetsStatus(t *testing.T) {
	r, _ := newTestRing(t, 16)
	require.Equal(t, StatusIdle, r.Status())
	r.Fault()
	require.Equal(t, StatusError, r.Status())
}
