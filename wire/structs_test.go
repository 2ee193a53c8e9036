package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateInstanceRoundTrip(t *testing.T) {
	in := CreateInstanceIn{GuestID: 7, PortabilityEnumeration: 1}
	buf, err := encodeFixed(nil, in)
	require.NoError(t, err)

	got, err := DecodeCreateInstanceIn(buf)
	require.NoError(t, err)
	require.Equal(t, in, got)
}

func TestEnumeratePhysicalDevicesTrailingIDs(t *testing.T) {
	in := EnumeratePhysicalDevicesIn{InstanceGuestID: 1, Count: 3, ReplyOffset: 128}
	buf, err := encodeFixed(nil, in)
	require.NoError(t, err)
	buf = EncodeGuestIDs(buf, []uint64{10, 20, 30})

	gotIn, ids, err := DecodeEnumeratePhysicalDevicesIn(buf)
	require.NoError(t, err)
	require.Equal(t, in, gotIn)
	require.Equal(t, []uint64{10, 20, 30}, ids)
}

func TestEnumeratePhysicalDevicesTruncatedTrailerErrors(t *testing.T) {
	in := EnumeratePhysicalDevicesIn{InstanceGuestID: 1, Count: 3, ReplyOffset: 0}
	buf, err := encodeFixed(nil, in)
	require.NoError(t, err)
	buf = EncodeGuestIDs(buf, []uint64{10}) // declares 3, supplies 1

	_, _, err = DecodeEnumeratePhysicalDevicesIn(buf)
	require.Error(t, err)
}

func TestEncodePhysicalDeviceIDs(t *testing.T) {
	out := EncodePhysicalDeviceIDs([]uint64{5, 6})
	require.Len(t, out, 8+16)
	ids, err := DecodeGuestIDs(out, 8, 2)
	require.NoError(t, err)
	require.Equal(t, []uint64{5, 6}, ids)
}

func TestQueueSubmitTrailingCommandBuffers(t *testing.T) {
	in := QueueSubmitIn{QueueGuestID: 1, FenceGuestID: 2, Count: 2}
	buf, err := encodeFixed(nil, in)
	require.NoError(t, err)
	buf = EncodeGuestIDs(buf, []uint64{100, 101})

	gotIn, ids, err := DecodeQueueSubmitIn(buf)
	require.NoError(t, err)
	require.Equal(t, in, gotIn)
	require.Equal(t, []uint64{100, 101}, ids)
}

func TestGetFenceStatusRoundTrip(t *testing.T) {
	buf, err := encodeFixed(nil, deviceQueryIn{TargetGuestID: 9, ReplyOffset: 64})
	require.NoError(t, err)

	guestID, replyOffset, err := DecodeGetFenceStatusIn(buf)
	require.NoError(t, err)
	require.Equal(t, uint64(9), guestID)
	require.Equal(t, uint32(64), replyOffset)
}
