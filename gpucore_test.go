package gpucore

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/venus-hv/gpucore/backend"
	"github.com/venus-hv/gpucore/objtable"
	"github.com/venus-hv/gpucore/ring"
	"github.com/venus-hv/gpucore/wire"
)

func newTestContext(t *testing.T) (*Context, ring.Layout) {
	t.Helper()
	shared := make([]byte, 64+512+64)
	layout := ring.Layout{
		Shared:       shared,
		HeadOffset:   0,
		TailOffset:   4,
		StatusOffset: 8,
		BufferOffset: 64,
		BufferSize:   512,
		ExtraOffset:  64 + 512,
		ExtraSize:    64,
	}
	r, err := ring.Create(layout, ring.Polled)
	require.NoError(t, err)
	return New(r, backend.NewStub()), layout
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

func encode(t *testing.T, v interface{}) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, v))
	return buf.Bytes()
}

// TestInstanceToCommandBufferLifecycle drives one guest session through
// instance creation, physical device enumeration, device, queue and
// command pool setup, command buffer recording, submission with a fence,
// a fence status query, and teardown — checking each created object, the
// command buffer state after every transition, the published fence
// signal, and that Close empties the object table.
func TestInstanceToCommandBufferLifecycle(t *testing.T) {
	ctx, l := newTestContext(t)
	background := context.Background()

	pushFrame(l, wire.CmdCreateInstance, encode(t, wire.CreateInstanceIn{GuestID: 1, PortabilityEnumeration: 1}))
	ctx.Pump(background)
	_, ok := ctx.Objects.GetTyped(1, objtable.Instance)
	require.True(t, ok)

	enumIn := wire.EnumeratePhysicalDevicesIn{InstanceGuestID: 1, Count: 1, ReplyOffset: 0}
	payload := encode(t, enumIn)
	payload = wire.EncodeGuestIDs(payload, []uint64{2})
	pushFrame(l, wire.CmdEnumeratePhysicalDevices, payload)
	ctx.Pump(background)
	_, ok = ctx.Objects.GetTyped(2, objtable.PhysicalDevice)
	require.True(t, ok)

	pushFrame(l, wire.CmdCreateDevice, encode(t, wire.CreateDeviceIn{PhysicalDeviceGuestID: 2, GuestID: 3, QueueFamilyIndex: 0}))
	ctx.Pump(background)
	_, ok = ctx.Objects.GetTyped(3, objtable.Device)
	require.True(t, ok)

	pushFrame(l, wire.CmdGetDeviceQueue, encode(t, wire.GetDeviceQueueIn{DeviceGuestID: 3, GuestID: 4, QueueFamilyIndex: 0, QueueIndex: 0}))
	ctx.Pump(background)
	_, ok = ctx.Objects.GetTyped(4, objtable.Queue)
	require.True(t, ok)

	pushFrame(l, wire.CmdCreateCommandPool, encode(t, wire.CreateCommandPoolIn{DeviceGuestID: 3, GuestID: 5, QueueFamilyIndex: 0}))
	ctx.Pump(background)
	_, ok = ctx.Objects.GetTyped(5, objtable.CommandPool)
	require.True(t, ok)

	allocIn := wire.AllocateCommandBuffersIn{CommandPoolGuestID: 5, Count: 1}
	payload = encode(t, allocIn)
	payload = wire.EncodeGuestIDs(payload, []uint64{6})
	pushFrame(l, wire.CmdAllocateCommandBuffers, payload)
	ctx.Pump(background)
	state, ok := ctx.Objects.State(6)
	require.True(t, ok)
	require.Equal(t, objtable.Initial, state)

	pushFrame(l, wire.CmdBeginCommandBuffer, encode(t, struct{ GuestID uint64 }{6}))
	ctx.Pump(background)
	state, _ = ctx.Objects.State(6)
	require.Equal(t, objtable.Recording, state)

	pushFrame(l, wire.CmdEndCommandBuffer, encode(t, struct{ GuestID uint64 }{6}))
	ctx.Pump(background)
	state, _ = ctx.Objects.State(6)
	require.Equal(t, objtable.Executable, state)

	pushFrame(l, wire.CmdCreateFence, encode(t, wire.CreateFenceIn{DeviceGuestID: 3, GuestID: 7, Signaled: 0}))
	ctx.Pump(background)

	sub := ctx.Fences.Subscribe(1)
	defer sub.Close()

	submitIn := wire.QueueSubmitIn{QueueGuestID: 4, FenceGuestID: 7, Count: 1}
	payload = encode(t, submitIn)
	payload = wire.EncodeGuestIDs(payload, []uint64{6})
	pushFrame(l, wire.CmdQueueSubmit, payload)
	ctx.Pump(background)

	state, _ = ctx.Objects.State(6)
	require.Equal(t, objtable.Pending, state)

	select {
	case sig := <-sub.C():
		require.Equal(t, uint64(7), sig.FenceID)
	default:
		t.Fatal("expected a fence signal to be published on submit")
	}

	pushFrame(l, wire.CmdGetFenceStatus, encode(t, deviceQueryPayload{TargetGuestID: 7, ReplyOffset: 0}))
	ctx.Pump(background)
	var status wire.FenceStatusOut
	require.NoError(t, binary.Read(bytes.NewReader(ctx.Ring.ExtraGet(0, 8)), binary.LittleEndian, &status))
	require.Equal(t, uint32(1), status.Signaled)

	require.NoError(t, ctx.Close(background))
	require.Equal(t, 0, ctx.Objects.Count())
}

type deviceQueryPayload struct {
	TargetGuestID uint64
	ReplyOffset   uint32
	_             uint32
}

func TestBackendFailureIsolatesOneCommand(t *testing.T) {
	ctx, l := newTestContext(t)
	background := context.Background()

	stub := ctx.Backend.(*backend.Stub)
	stub.FailNext = "CreateInstance"

	pushFrame(l, wire.CmdCreateInstance, encode(t, wire.CreateInstanceIn{GuestID: 1, PortabilityEnumeration: 0}))
	ctx.Pump(background)

	_, ok := ctx.Objects.GetTyped(1, objtable.Instance)
	require.False(t, ok)
	require.Equal(t, ring.StatusIdle, ctx.Ring.Status()) // one bad command never faults the ring
	require.Equal(t, uint64(1), ctx.Ring.Stats().Errors)

	// The ring keeps serving subsequent commands.
	pushFrame(l, wire.CmdCreateInstance, encode(t, wire.CreateInstanceIn{GuestID: 1, PortabilityEnumeration: 0}))
	ctx.Pump(background)
	_, ok = ctx.Objects.GetTyped(1, objtable.Instance)
	require.True(t, ok)
}

// TestCommandBufferReRecordableFromExecutable exercises the state-machine
// rule that Begin is legal from Initial or Executable, not Initial alone —
// a command buffer that finished recording once must be re-recordable.
func TestCommandBufferReRecordableFromExecutable(t *testing.T) {
	ctx, l := newTestContext(t)
	background := context.Background()

	pushFrame(l, wire.CmdCreateInstance, encode(t, wire.CreateInstanceIn{GuestID: 1}))
	ctx.Pump(background)

	enumIn := wire.EnumeratePhysicalDevicesIn{InstanceGuestID: 1, Count: 1, ReplyOffset: 0}
	payload := encode(t, enumIn)
	payload = wire.EncodeGuestIDs(payload, []uint64{2})
	pushFrame(l, wire.CmdEnumeratePhysicalDevices, payload)
	ctx.Pump(background)

	pushFrame(l, wire.CmdCreateDevice, encode(t, wire.CreateDeviceIn{PhysicalDeviceGuestID: 2, GuestID: 3, QueueFamilyIndex: 0}))
	ctx.Pump(background)

	pushFrame(l, wire.CmdCreateCommandPool, encode(t, wire.CreateCommandPoolIn{DeviceGuestID: 3, GuestID: 5, QueueFamilyIndex: 0}))
	ctx.Pump(background)

	allocIn := wire.AllocateCommandBuffersIn{CommandPoolGuestID: 5, Count: 1}
	payload = encode(t, allocIn)
	payload = wire.EncodeGuestIDs(payload, []uint64{6})
	pushFrame(l, wire.CmdAllocateCommandBuffers, payload)
	ctx.Pump(background)

	pushFrame(l, wire.CmdBeginCommandBuffer, encode(t, struct{ GuestID uint64 }{6}))
	ctx.Pump(background)
	pushFrame(l, wire.CmdEndCommandBuffer, encode(t, struct{ GuestID uint64 }{6}))
	ctx.Pump(background)
	state, _ := ctx.Objects.State(6)
	require.Equal(t, objtable.Executable, state)

	pushFrame(l, wire.CmdBeginCommandBuffer, encode(t, struct{ GuestID uint64 }{6}))
	ctx.Pump(background)
	state, _ = ctx.Objects.State(6)
	require.Equal(t, objtable.Recording, state)
	require.Equal(t, ring.StatusIdle, ctx.Ring.Status())
}

func TestUnknownCommandIsCountedNotFatal(t *testing.T) {
	ctx, l := newTestContext(t)
	pushFrame(l, 450, nil)
	ctx.Pump(context.Background())
	require.Equal(t, uint64(1), ctx.Decoder.UnknownCount())
	require.Equal(t, ring.StatusIdle, ctx.Ring.Status())
}
