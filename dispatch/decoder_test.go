package dispatch

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/venus-hv/gpucore/ring"
	"github.com/venus-hv/gpucore/wire"
)

func newTestDecoder(t *testing.T) (*Decoder, *ring.Ring, ring.Layout) {
	t.Helper()
	shared := make([]byte, 64+256+32)
	layout := ring.Layout{
		Shared:       shared,
		HeadOffset:   0,
		TailOffset:   4,
		StatusOffset: 8,
		BufferOffset: 64,
		BufferSize:   256,
		ExtraOffset:  64 + 256,
		ExtraSize:    32,
	}
	r, err := ring.Create(layout, ring.Polled)
	require.NoError(t, err)
	return New(r, nil), r, layout
}

func pushFrame(l ring.Layout, id uint32, payload []byte) {
	frame := make([]byte, wire.HeaderSize+len(payload))
	wire.EncodeHeader(frame, wire.Header{CommandID: id, CommandSize: uint32(len(frame))})
	copy(frame[wire.HeaderSize:], payload)

	tail := binary.LittleEndian.Uint32(l.Shared[l.TailOffset:])
	for i, b := range frame {
		l.Shared[l.BufferOffset+(tail+uint32(i))%l.BufferSize] = b
	}
	binary.LittleEndian.PutUint32(l.Shared[l.TailOffset:], tail+uint32(len(frame)))
}

func TestDecodeOneOnEmptyRing(t *testing.T) {
	d, _, _ := newTestDecoder(t)
	ok, err := d.DecodeOne(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDecodeOneSkipsPerFrameInvalidHeaderAndKeepsDispatching(t *testing.T) {
	d, r, l := newTestDecoder(t)
	var got []byte
	d.Register(wire.CmdCreateInstance, func(ctx context.Context, payload []byte, reply *ring.Ring) error {
		got = append([]byte(nil), payload...)
		return nil
	})

	// A bogus header declaring command_size = 4 (below MinFrameSize),
	// immediately followed by a real CreateInstance frame (S4).
	binary.LittleEndian.PutUint32(l.Shared[l.BufferOffset:], 0)
	binary.LittleEndian.PutUint32(l.Shared[l.BufferOffset+4:], 4)
	binary.LittleEndian.PutUint32(l.Shared[l.TailOffset:], wire.HeaderSize)
	pushFrame(l, wire.CmdCreateInstance, []byte{9, 9})

	ok, err := d.DecodeOne(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, ring.StatusIdle, r.Status()) // per-frame error, not a fault
	require.Equal(t, uint64(1), r.Stats().Errors)

	ok, err = d.DecodeOne(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte{9, 9}, got) // CreateInstance still dispatched
}

func TestDecodeOneFaultsRingWhenCommandSizeExceedsCapacity(t *testing.T) {
	d, r, l := newTestDecoder(t)
	// command_size larger than the ring's own buffer: unrecoverable.
	binary.LittleEndian.PutUint32(l.Shared[l.BufferOffset:], 0)
	binary.LittleEndian.PutUint32(l.Shared[l.BufferOffset+4:], r.Capacity()+1)
	binary.LittleEndian.PutUint32(l.Shared[l.TailOffset:], wire.HeaderSize)

	ok, err := d.DecodeOne(context.Background())
	require.Error(t, err)
	require.False(t, ok)
	require.Equal(t, ring.StatusError, r.Status())
}

func TestDecodeOneDispatchesToRegisteredHandler(t *testing.T) {
	d, r, l := newTestDecoder(t)
	var got []byte
	d.Register(wire.CmdCreateInstance, func(ctx context.Context, payload []byte, reply *ring.Ring) error {
		got = append([]byte(nil), payload...)
		return nil
	})
	pushFrame(l, wire.CmdCreateInstance, []byte{1, 2, 3, 4})

	ok, err := d.DecodeOne(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte{1, 2, 3, 4}, got)
	require.Equal(t, uint64(1), r.Stats().CommandsProcessed)
}

func TestDecodeOneCountsUnknownCommand(t *testing.T) {
	d, r, l := newTestDecoder(t)
	pushFrame(l, 499, nil)

	ok, err := d.DecodeOne(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(1), d.UnknownCount())
	require.Equal(t, uint64(0), r.Stats().Errors) // unknown ids are consumed successfully, not failed
}

func TestDecodeOneIsolatesHandlerFailure(t *testing.T) {
	d, r, l := newTestDecoder(t)
	d.Register(wire.CmdCreateInstance, func(ctx context.Context, payload []byte, reply *ring.Ring) error {
		return context.DeadlineExceeded
	})
	pushFrame(l, wire.CmdCreateInstance, nil)

	ok, err := d.DecodeOne(context.Background())
	require.NoError(t, err) // the frame itself decoded fine; only the handler failed
	require.True(t, ok)
	require.Equal(t, uint64(1), r.Stats().Errors)
	require.Equal(t, ring.StatusIdle, r.Status()) // handler failure never faults the ring
}

func TestDecodeAllPublishesHeadOncePerBatch(t *testing.T) {
	d, r, l := newTestDecoder(t)
	d.Register(wire.CmdCreateInstance, func(ctx context.Context, payload []byte, reply *ring.Ring) error { return nil })
	pushFrame(l, wire.CmdCreateInstance, []byte{1})
	pushFrame(l, wire.CmdCreateInstance, []byte{2})

	d.DecodeAll(context.Background())

	require.Equal(t, uint64(2), r.Stats().CommandsProcessed)
	head := binary.LittleEndian.Uint32(l.Shared[l.HeadOffset:])
	tail := binary.LittleEndian.Uint32(l.Shared[l.TailOffset:])
	require.Equal(t, tail, head)
}

func TestDecodeOneWaitsForRestOfFrame(t *testing.T) {
	d, _, l := newTestDecoder(t)
	// Header declares a 16-byte frame but only the header itself has landed.
	binary.LittleEndian.PutUint32(l.Shared[l.BufferOffset:], wire.CmdCreateInstance)
	binary.LittleEndian.PutUint32(l.Shared[l.BufferOffset+4:], 16)
	binary.LittleEndian.PutUint32(l.Shared[l.TailOffset:], wire.HeaderSize)

	ok, err := d.DecodeOne(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
}
