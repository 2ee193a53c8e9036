// Package backend specifies the interface the GPU command virtualization
// core consumes from the native GPU backend (SPEC_FULL.md §4.5): the
// Vulkan-on-Metal translation layer that does the real work. The core
// never constructs a Backend itself; one is handed to gpucore.New.
package backend

import "context"

// Handle is an opaque host-resident Vulkan object handle. It is always a
// 64-bit integer newtype, never a Go pointer, matching SPEC_FULL.md §9's
// directive against punning dispatchable/non-dispatchable handles through
// pointer types.
type Handle uint64

// Zero reports whether h is the null handle.
func (h Handle) Zero() bool { return h == 0 }

type PhysicalDeviceFeatures struct {
	GeometryShader     bool
	TessellationShader bool
	MultiDrawIndirect  bool
	SamplerAnisotropy  bool
}

type PhysicalDeviceProperties struct {
	VendorID                 uint32
	DeviceID                 uint32
	DeviceType               uint32
	DriverVersion            uint32
	MaxMemoryAllocationCount uint32
}

type MemoryProperties struct {
	MemoryTypeCount     uint32
	MemoryHeapCount     uint32
	DeviceLocalHeapSize uint64
}

type MemoryRequirements struct {
	Size           uint64
	Alignment      uint64
	MemoryTypeBits uint32
}

// Backend is the native GPU backend interface: a Vulkan-1.0-class
// instance with portability enumeration, one graphics-capable queue
// family, and the memory/buffer/image/command-pool/command-buffer/queue
// lifecycle the covered command subset needs (SPEC_FULL.md §4.5). All
// methods return (result, error); a non-nil error is always wrapped with
// gpuerr.BackendFailure by the caller in package handlers.
type Backend interface {
	CreateInstance(ctx context.Context, portabilityEnumeration bool) (Handle, error)
	DestroyInstance(ctx context.Context, instance Handle) error
	EnumeratePhysicalDevices(ctx context.Context, instance Handle, max int) ([]Handle, error)

	GetPhysicalDeviceFeatures(ctx context.Context, pd Handle) (PhysicalDeviceFeatures, error)
	GetPhysicalDeviceProperties(ctx context.Context, pd Handle) (PhysicalDeviceProperties, error)
	GetPhysicalDeviceMemoryProperties(ctx context.Context, pd Handle) (MemoryProperties, error)

	CreateDevice(ctx context.Context, pd Handle, queueFamilyIndex uint32) (Handle, error)
	DestroyDevice(ctx context.Context, device Handle) error
	GetDeviceQueue(ctx context.Context, device Handle, queueFamilyIndex, queueIndex uint32) (Handle, error)

	AllocateMemory(ctx context.Context, device Handle, size uint64, memoryTypeIndex uint32) (Handle, error)
	FreeMemory(ctx context.Context, memory Handle) error
	BindBufferMemory(ctx context.Context, buffer, memory Handle, offset uint64) error
	BindImageMemory(ctx context.Context, image, memory Handle, offset uint64) error
	GetBufferMemoryRequirements(ctx context.Context, buffer Handle) (MemoryRequirements, error)
	GetImageMemoryRequirements(ctx context.Context, image Handle) (MemoryRequirements, error)

	CreateBuffer(ctx context.Context, device Handle, size uint64, usage uint32) (Handle, error)
	DestroyBuffer(ctx context.Context, buffer Handle) error
	CreateImage(ctx context.Context, device Handle, width, height, format, usage uint32) (Handle, error)
	DestroyImage(ctx context.Context, image Handle) error

	CreateFence(ctx context.Context, device Handle, signaled bool) (Handle, error)
	DestroyFence(ctx context.Context, fence Handle) error
	ResetFences(ctx context.Context, fences []Handle) error
	GetFenceStatus(ctx context.Context, fence Handle) (bool, error)
	WaitForFences(ctx context.Context, fences []Handle, waitAll bool, timeoutNs uint64) error
	CreateSemaphore(ctx context.Context, device Handle) (Handle, error)
	DestroySemaphore(ctx context.Context, semaphore Handle) error

	CreateCommandPool(ctx context.Context, device Handle, queueFamilyIndex uint32) (Handle, error)
	DestroyCommandPool(ctx context.Context, pool Handle) error
	ResetCommandPool(ctx context.Context, pool Handle) error
	AllocateCommandBuffers(ctx context.Context, pool Handle, count int) ([]Handle, error)
	FreeCommandBuffers(ctx context.Context, pool Handle, buffers []Handle) error
	BeginCommandBuffer(ctx context.Context, cb Handle) error
	EndCommandBuffer(ctx context.Context, cb Handle) error

	QueueSubmit(ctx context.Context, queue Handle, commandBuffers []Handle, fence Handle) error
	QueueWaitIdle(ctx context.Context, queue Handle) error
	DeviceWaitIdle(ctx context.Context, device Handle) error
}
