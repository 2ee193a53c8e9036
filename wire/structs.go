package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/venus-hv/gpucore/gpuerr"
)

// requireLen returns payload[:n], or an error wrapping gpuerr.ErrInvalidHeader
// if the guest-controlled payload is shorter than the fixed-size prefix a
// decoder is about to read. Every multi-field decoder that slices payload
// before handing it to decodeFixed must go through this first.
func requireLen(payload []byte, n int) ([]byte, error) {
	if len(payload) < n {
		return nil, fmt.Errorf("%w: payload is %d bytes, need at least %d", gpuerr.ErrInvalidHeader, len(payload), n)
	}
	return payload[:n], nil
}

// Payload structs mirror the subset of Vulkan structures each handler in
// package handlers actually consumes (SPEC_FULL.md §6), not the full
// upstream Vulkan struct. All fields are fixed-size integers so they
// round-trip through encoding/binary without reflection surprises;
// VkBool32-style flags are carried as uint32, matching the Vulkan ABI
// convention the guest itself uses.

// decodeFixed reads a fixed-size struct from the front of payload.
func decodeFixed(payload []byte, v interface{}) error {
	return binary.Read(bytes.NewReader(payload), binary.LittleEndian, v)
}

// encodeFixed appends the little-endian encoding of v to dst.
func encodeFixed(dst []byte, v interface{}) ([]byte, error) {
	buf := bytes.NewBuffer(dst)
	if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeGuestIDs reads count little-endian uint64 guest ids starting at
// offset in payload.
func DecodeGuestIDs(payload []byte, offset int, count uint32) ([]uint64, error) {
	need := offset + int(count)*8
	if need > len(payload) || need < offset {
		return nil, fmt.Errorf("guest id array out of bounds: need %d have %d", need, len(payload))
	}
	ids := make([]uint64, count)
	for i := range ids {
		ids[i] = binary.LittleEndian.Uint64(payload[offset+i*8:])
	}
	return ids, nil
}

// EncodeGuestIDs appends ids as little-endian uint64 values.
func EncodeGuestIDs(dst []byte, ids []uint64) []byte {
	for _, id := range ids {
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], id)
		dst = append(dst, b[:]...)
	}
	return dst
}

type CreateInstanceIn struct {
	GuestID                     uint64
	PortabilityEnumeration      uint32
	_                           uint32
}

func DecodeCreateInstanceIn(payload []byte) (CreateInstanceIn, error) {
	var v CreateInstanceIn
	err := decodeFixed(payload, &v)
	return v, err
}

type DestroyInstanceIn struct {
	GuestID uint64
}

func DecodeDestroyInstanceIn(payload []byte) (DestroyInstanceIn, error) {
	var v DestroyInstanceIn
	err := decodeFixed(payload, &v)
	return v, err
}

// EnumeratePhysicalDevicesIn is followed in the payload by Count
// little-endian uint64 guest ids, one per physical device the guest
// wants bound (the guest pre-allocates ids for an enumeration it hasn't
// seen the size of yet, capped by Count; hosts with fewer devices than
// Count only populate the first N and report N back via the extra
// region reply).
type EnumeratePhysicalDevicesIn struct {
	InstanceGuestID uint64
	Count           uint32
	ReplyOffset     uint32
}

func DecodeEnumeratePhysicalDevicesIn(payload []byte) (EnumeratePhysicalDevicesIn, []uint64, error) {
	var v EnumeratePhysicalDevicesIn
	fixed, err := requireLen(payload, 16)
	if err != nil {
		return v, nil, err
	}
	if err := decodeFixed(fixed, &v); err != nil {
		return v, nil, err
	}
	ids, err := DecodeGuestIDs(payload, 16, v.Count)
	return v, ids, err
}

type deviceQueryIn struct {
	TargetGuestID uint64
	ReplyOffset   uint32
	_             uint32
}

func decodeDeviceQueryIn(payload []byte) (uint64, uint32, error) {
	var v deviceQueryIn
	if err := decodeFixed(payload, &v); err != nil {
		return 0, 0, err
	}
	return v.TargetGuestID, v.ReplyOffset, nil
}

// DecodeGetPhysicalDeviceFeaturesIn reads the physical device guest id and
// extra-region reply offset.
func DecodeGetPhysicalDeviceFeaturesIn(payload []byte) (uint64, uint32, error) {
	return decodeDeviceQueryIn(payload)
}

// DecodeGetPhysicalDevicePropertiesIn mirrors the features query shape.
func DecodeGetPhysicalDevicePropertiesIn(payload []byte) (uint64, uint32, error) {
	return decodeDeviceQueryIn(payload)
}

// DecodeGetPhysicalDeviceMemoryPropertiesIn mirrors the features query shape.
func DecodeGetPhysicalDeviceMemoryPropertiesIn(payload []byte) (uint64, uint32, error) {
	return decodeDeviceQueryIn(payload)
}

// DecodeGetBufferMemoryRequirementsIn mirrors the features query shape,
// keyed by buffer guest id.
func DecodeGetBufferMemoryRequirementsIn(payload []byte) (uint64, uint32, error) {
	return decodeDeviceQueryIn(payload)
}

// DecodeGetImageMemoryRequirementsIn mirrors the features query shape,
// keyed by image guest id.
func DecodeGetImageMemoryRequirementsIn(payload []byte) (uint64, uint32, error) {
	return decodeDeviceQueryIn(payload)
}

type CreateDeviceIn struct {
	PhysicalDeviceGuestID uint64
	GuestID               uint64
	QueueFamilyIndex      uint32
	_                     uint32
}

func DecodeCreateDeviceIn(payload []byte) (CreateDeviceIn, error) {
	var v CreateDeviceIn
	err := decodeFixed(payload, &v)
	return v, err
}

type guestIDOnly struct {
	GuestID uint64
}

func decodeGuestIDOnly(payload []byte) (uint64, error) {
	var v guestIDOnly
	err := decodeFixed(payload, &v)
	return v.GuestID, err
}

func DecodeDestroyDeviceIn(payload []byte) (uint64, error)     { return decodeGuestIDOnly(payload) }
func DecodeFreeMemoryIn(payload []byte) (uint64, error)        { return decodeGuestIDOnly(payload) }
func DecodeDestroyBufferIn(payload []byte) (uint64, error)     { return decodeGuestIDOnly(payload) }
func DecodeDestroyImageIn(payload []byte) (uint64, error)      { return decodeGuestIDOnly(payload) }
func DecodeDestroyCommandPoolIn(payload []byte) (uint64, error) { return decodeGuestIDOnly(payload) }
func DecodeResetCommandPoolIn(payload []byte) (uint64, error)   { return decodeGuestIDOnly(payload) }
func DecodeBeginCommandBufferIn(payload []byte) (uint64, error) { return decodeGuestIDOnly(payload) }
func DecodeEndCommandBufferIn(payload []byte) (uint64, error)   { return decodeGuestIDOnly(payload) }
func DecodeQueueWaitIdleIn(payload []byte) (uint64, error)      { return decodeGuestIDOnly(payload) }
func DecodeDeviceWaitIdleIn(payload []byte) (uint64, error)     { return decodeGuestIDOnly(payload) }
func DecodeDestroyFenceIn(payload []byte) (uint64, error)       { return decodeGuestIDOnly(payload) }
func DecodeDestroySemaphoreIn(payload []byte) (uint64, error)   { return decodeGuestIDOnly(payload) }

// DecodeGetFenceStatusIn reads the fence guest id and the extra-region
// offset the signaled/not-signaled result is written back to, mirroring
// the device-query shape since this is itself a query.
func DecodeGetFenceStatusIn(payload []byte) (uint64, uint32, error) {
	return decodeDeviceQueryIn(payload)
}

type GetDeviceQueueIn struct {
	DeviceGuestID    uint64
	GuestID          uint64
	QueueFamilyIndex uint32
	QueueIndex       uint32
}

func DecodeGetDeviceQueueIn(payload []byte) (GetDeviceQueueIn, error) {
	var v GetDeviceQueueIn
	err := decodeFixed(payload, &v)
	return v, err
}

type AllocateMemoryIn struct {
	DeviceGuestID   uint64
	GuestID         uint64
	Size            uint64
	MemoryTypeIndex uint32
	_               uint32
}

func DecodeAllocateMemoryIn(payload []byte) (AllocateMemoryIn, error) {
	var v AllocateMemoryIn
	err := decodeFixed(payload, &v)
	return v, err
}

type BindMemoryIn struct {
	TargetGuestID uint64
	MemoryGuestID uint64
	Offset        uint64
}

func DecodeBindBufferMemoryIn(payload []byte) (BindMemoryIn, error) {
	var v BindMemoryIn
	err := decodeFixed(payload, &v)
	return v, err
}

func DecodeBindImageMemoryIn(payload []byte) (BindMemoryIn, error) {
	var v BindMemoryIn
	err := decodeFixed(payload, &v)
	return v, err
}

type CreateBufferIn struct {
	DeviceGuestID uint64
	GuestID       uint64
	Size          uint64
	Usage         uint32
	_             uint32
}

func DecodeCreateBufferIn(payload []byte) (CreateBufferIn, error) {
	var v CreateBufferIn
	err := decodeFixed(payload, &v)
	return v, err
}

type CreateImageIn struct {
	DeviceGuestID uint64
	GuestID       uint64
	Width         uint32
	Height        uint32
	Format        uint32
	Usage         uint32
}

func DecodeCreateImageIn(payload []byte) (CreateImageIn, error) {
	var v CreateImageIn
	err := decodeFixed(payload, &v)
	return v, err
}

type CreateCommandPoolIn struct {
	DeviceGuestID    uint64
	GuestID          uint64
	QueueFamilyIndex uint32
	_                uint32
}

func DecodeCreateCommandPoolIn(payload []byte) (CreateCommandPoolIn, error) {
	var v CreateCommandPoolIn
	err := decodeFixed(payload, &v)
	return v, err
}

// AllocateCommandBuffersIn is followed by Count little-endian uint64
// guest ids, one per command buffer to allocate.
type AllocateCommandBuffersIn struct {
	CommandPoolGuestID uint64
	Count              uint32
	_                  uint32
}

func DecodeAllocateCommandBuffersIn(payload []byte) (AllocateCommandBuffersIn, []uint64, error) {
	var v AllocateCommandBuffersIn
	fixed, err := requireLen(payload, 16)
	if err != nil {
		return v, nil, err
	}
	if err := decodeFixed(fixed, &v); err != nil {
		return v, nil, err
	}
	ids, err := DecodeGuestIDs(payload, 16, v.Count)
	return v, ids, err
}

// FreeCommandBuffersIn shares AllocateCommandBuffersIn's shape.
func DecodeFreeCommandBuffersIn(payload []byte) (AllocateCommandBuffersIn, []uint64, error) {
	return DecodeAllocateCommandBuffersIn(payload)
}

// QueueSubmitIn is followed by Count little-endian uint64 command buffer
// guest ids.
type QueueSubmitIn struct {
	QueueGuestID  uint64
	FenceGuestID  uint64 // 0 if no fence supplied
	Count         uint32
	_             uint32
}

func DecodeQueueSubmitIn(payload []byte) (QueueSubmitIn, []uint64, error) {
	var v QueueSubmitIn
	fixed, err := requireLen(payload, 24)
	if err != nil {
		return v, nil, err
	}
	if err := decodeFixed(fixed, &v); err != nil {
		return v, nil, err
	}
	ids, err := DecodeGuestIDs(payload, 24, v.Count)
	return v, ids, err
}

type CreateFenceIn struct {
	DeviceGuestID uint64
	GuestID       uint64
	Signaled      uint32
	_             uint32
}

func DecodeCreateFenceIn(payload []byte) (CreateFenceIn, error) {
	var v CreateFenceIn
	err := decodeFixed(payload, &v)
	return v, err
}

// ResetFencesIn is followed by Count little-endian uint64 fence guest ids.
type ResetFencesIn struct {
	Count uint32
	_     uint32
}

func DecodeResetFencesIn(payload []byte) (ResetFencesIn, []uint64, error) {
	var v ResetFencesIn
	fixed, err := requireLen(payload, 8)
	if err != nil {
		return v, nil, err
	}
	if err := decodeFixed(fixed, &v); err != nil {
		return v, nil, err
	}
	ids, err := DecodeGuestIDs(payload, 8, v.Count)
	return v, ids, err
}

// WaitForFencesIn is followed by Count little-endian uint64 fence guest ids.
type WaitForFencesIn struct {
	Count     uint32
	WaitAll   uint32
	TimeoutNs uint64
}

func DecodeWaitForFencesIn(payload []byte) (WaitForFencesIn, []uint64, error) {
	var v WaitForFencesIn
	fixed, err := requireLen(payload, 16)
	if err != nil {
		return v, nil, err
	}
	if err := decodeFixed(fixed, &v); err != nil {
		return v, nil, err
	}
	ids, err := DecodeGuestIDs(payload, 16, v.Count)
	return v, ids, err
}

type CreateSemaphoreIn struct {
	DeviceGuestID uint64
	GuestID       uint64
}

func DecodeCreateSemaphoreIn(payload []byte) (CreateSemaphoreIn, error) {
	var v CreateSemaphoreIn
	err := decodeFixed(payload, &v)
	return v, err
}

// Reply structs, written into the ring's extra region at the
// guest-supplied offset.

type PhysicalDeviceFeaturesOut struct {
	GeometryShader    uint32
	TessellationShader uint32
	MultiDrawIndirect uint32
	SamplerAnisotropy uint32
}

func EncodePhysicalDeviceFeaturesOut(v PhysicalDeviceFeaturesOut) ([]byte, error) {
	return encodeFixed(nil, v)
}

type PhysicalDevicePropertiesOut struct {
	VendorID       uint32
	DeviceID       uint32
	DeviceType     uint32
	DriverVersion  uint32
	MaxMemoryAllocationCount uint32
	_                        uint32
}

func EncodePhysicalDevicePropertiesOut(v PhysicalDevicePropertiesOut) ([]byte, error) {
	return encodeFixed(nil, v)
}

type MemoryPropertiesOut struct {
	MemoryTypeCount uint32
	MemoryHeapCount uint32
	DeviceLocalHeapSize uint64
}

func EncodeMemoryPropertiesOut(v MemoryPropertiesOut) ([]byte, error) {
	return encodeFixed(nil, v)
}

type MemoryRequirementsOut struct {
	Size           uint64
	Alignment      uint64
	MemoryTypeBits uint32
	_              uint32
}

func EncodeMemoryRequirementsOut(v MemoryRequirementsOut) ([]byte, error) {
	return encodeFixed(nil, v)
}

type FenceStatusOut struct {
	Signaled uint32
	_        uint32
}

func EncodeFenceStatusOut(v FenceStatusOut) ([]byte, error) {
	return encodeFixed(nil, v)
}

// EncodePhysicalDeviceIDs writes the count plus the guest ids that were
// actually bound, for the EnumeratePhysicalDevices reply.
func EncodePhysicalDeviceIDs(ids []uint64) []byte {
	out := make([]byte, 0, 4+4+8*len(ids))
	var countBuf [4]byte
	binary.LittleEndian.PutUint32(countBuf[:], uint32(len(ids)))
	out = append(out, countBuf[:]...)
	out = append(out, 0, 0, 0, 0)
	out = EncodeGuestIDs(out, ids)
	return out
}
