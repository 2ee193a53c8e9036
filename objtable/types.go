package objtable

import "github.com/venus-hv/gpucore/backend"

// ObjectType is the closed enumeration of Vulkan object kinds the Object
// Table tracks (SPEC_FULL.md §3).
type ObjectType uint8

const (
	Instance ObjectType = iota
	PhysicalDevice
	Device
	Queue
	Semaphore
	Fence
	DeviceMemory
	Buffer
	Image
	CommandPool
	CommandBuffer
)

func (t ObjectType) String() string {
	switch t {
	case Instance:
		return "Instance"
	case PhysicalDevice:
		return "PhysicalDevice"
	case Device:
		return "Device"
	case Queue:
		return "Queue"
	case Semaphore:
		return "Semaphore"
	case Fence:
		return "Fence"
	case DeviceMemory:
		return "DeviceMemory"
	case Buffer:
		return "Buffer"
	case Image:
		return "Image"
	case CommandPool:
		return "CommandPool"
	case CommandBuffer:
		return "CommandBuffer"
	default:
		return "Unknown"
	}
}

// CommandBufferState is the recording state machine of SPEC_FULL.md §4.4,
// tracked on a CommandBuffer entry since the stub backend does not
// enforce it itself.
type CommandBufferState uint8

const (
	Initial CommandBufferState = iota
	Recording
	Executable
	Pending
)

// Entry is one Object Table slot.
type Entry struct {
	InUse    bool
	GuestID  uint64
	Host     backend.Handle
	Type     ObjectType
	State    CommandBufferState
}
