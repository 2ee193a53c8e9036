package backend

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Stub is a deterministic in-memory Backend: it accepts every
// well-formed call, hands out monotonically increasing handles, and
// tracks just enough fence state to make QueueSubmit observable through
// GetFenceStatus. SPEC_FULL.md §8 requires a "deterministic stub" for its
// scenario tests; this is that backend, grounded on the upstream
// reference's own test_venus_handlers.c / test_venus_integration.c
// harnesses which drive the real handler code the same way.
type Stub struct {
	next uint64

	mu      sync.Mutex
	signaled map[Handle]bool

	// FailNext, if set, makes the next call to the named method fail
	// once, then clears itself. Used by tests exercising the
	// BackendFailure error-isolation property (SPEC_FULL.md §8 property 8).
	FailNext string
}

// NewStub returns a ready-to-use deterministic backend.
func NewStub() *Stub {
	return &Stub{signaled: make(map[Handle]bool)}
}

func (s *Stub) alloc() Handle {
	return Handle(atomic.AddUint64(&s.next, 1))
}

func (s *Stub) shouldFail(method string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailNext == method {
		s.FailNext = ""
		return fmt.Errorf("stub: injected failure in %s", method)
	}
	return nil
}

func (s *Stub) CreateInstance(ctx context.Context, portabilityEnumeration bool) (Handle, error) {
	if err := s.shouldFail("CreateInstance"); err != nil {
		return 0, err
	}
	return s.alloc(), nil
}

func (s *Stub) DestroyInstance(ctx context.Context, instance Handle) error {
	return s.shouldFail("DestroyInstance")
}

func (s *Stub) EnumeratePhysicalDevices(ctx context.Context, instance Handle, max int) ([]Handle, error) {
	if err := s.shouldFail("EnumeratePhysicalDevices"); err != nil {
		return nil, err
	}
	n := max
	if n > 1 {
		n = 1 // the stub models a single Apple Silicon GPU, like the real backend
	}
	out := make([]Handle, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, s.alloc())
	}
	return out, nil
}

func (s *Stub) GetPhysicalDeviceFeatures(ctx context.Context, pd Handle) (PhysicalDeviceFeatures, error) {
	if err := s.shouldFail("GetPhysicalDeviceFeatures"); err != nil {
		return PhysicalDeviceFeatures{}, err
	}
	return PhysicalDeviceFeatures{GeometryShader: false, TessellationShader: false, MultiDrawIndirect: true, SamplerAnisotropy: true}, nil
}

func (s *Stub) GetPhysicalDeviceProperties(ctx context.Context, pd Handle) (PhysicalDeviceProperties, error) {
	if err := s.shouldFail("GetPhysicalDeviceProperties"); err != nil {
		return PhysicalDeviceProperties{}, err
	}
	return PhysicalDeviceProperties{VendorID: 0x106b, DeviceID: uint32(pd), DeviceType: 2, DriverVersion: 1, MaxMemoryAllocationCount: 4096}, nil
}

func (s *Stub) GetPhysicalDeviceMemoryProperties(ctx context.Context, pd Handle) (MemoryProperties, error) {
	if err := s.shouldFail("GetPhysicalDeviceMemoryProperties"); err != nil {
		return MemoryProperties{}, err
	}
	return MemoryProperties{MemoryTypeCount: 2, MemoryHeapCount: 1, DeviceLocalHeapSize: 1 << 32}, nil
}

func (s *Stub) CreateDevice(ctx context.Context, pd Handle, queueFamilyIndex uint32) (Handle, error) {
	if err := s.shouldFail("CreateDevice"); err != nil {
		return 0, err
	}
	return s.alloc(), nil
}

func (s *Stub) DestroyDevice(ctx context.Context, device Handle) error {
	return s.shouldFail("DestroyDevice")
}

func (s *Stub) GetDeviceQueue(ctx context.Context, device Handle, queueFamilyIndex, queueIndex uint32) (Handle, error) {
	if err := s.shouldFail("GetDeviceQueue"); err != nil {
		return 0, err
	}
	return s.alloc(), nil
}

func (s *Stub) AllocateMemory(ctx context.Context, device Handle, size uint64, memoryTypeIndex uint32) (Handle, error) {
	if err := s.shouldFail("AllocateMemory"); err != nil {
		return 0, err
	}
	return s.alloc(), nil
}

func (s *Stub) FreeMemory(ctx context.Context, memory Handle) error {
	return s.shouldFail("FreeMemory")
}

func (s *Stub) BindBufferMemory(ctx context.Context, buffer, memory Handle, offset uint64) error {
	return s.shouldFail("BindBufferMemory")
}

func (s *Stub) BindImageMemory(ctx context.Context, image, memory Handle, offset uint64) error {
	return s.shouldFail("BindImageMemory")
}

func (s *Stub) GetBufferMemoryRequirements(ctx context.Context, buffer Handle) (MemoryRequirements, error) {
	if err := s.shouldFail("GetBufferMemoryRequirements"); err != nil {
		return MemoryRequirements{}, err
	}
	return MemoryRequirements{Size: 4096, Alignment: 256, MemoryTypeBits: 0x3}, nil
}

func (s *Stub) GetImageMemoryRequirements(ctx context.Context, image Handle) (MemoryRequirements, error) {
	if err := s.shouldFail("GetImageMemoryRequirements"); err != nil {
		return MemoryRequirements{}, err
	}
	return MemoryRequirements{Size: 1 << 20, Alignment: 4096, MemoryTypeBits: 0x1}, nil
}

func (s *Stub) CreateBuffer(ctx context.Context, device Handle, size uint64, usage uint32) (Handle, error) {
	if err := s.shouldFail("CreateBuffer"); err != nil {
		return 0, err
	}
	return s.alloc(), nil
}

func (s *Stub) DestroyBuffer(ctx context.Context, buffer Handle) error {
	return s.shouldFail("DestroyBuffer")
}

func (s *Stub) CreateImage(ctx context.Context, device Handle, width, height, format, usage uint32) (Handle, error) {
	if err := s.shouldFail("CreateImage"); err != nil {
		return 0, err
	}
	return s.alloc(), nil
}

func (s *Stub) DestroyImage(ctx context.Context, image Handle) error {
	return s.shouldFail("DestroyImage")
}

func (s *Stub) CreateFence(ctx context.Context, device Handle, signaled bool) (Handle, error) {
	if err := s.shouldFail("CreateFence"); err != nil {
		return 0, err
	}
	h := s.alloc()
	s.mu.Lock()
	s.signaled[h] = signaled
	s.mu.Unlock()
	return h, nil
}

func (s *Stub) DestroyFence(ctx context.Context, fence Handle) error {
	if err := s.shouldFail("DestroyFence"); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.signaled, fence)
	s.mu.Unlock()
	return nil
}

func (s *Stub) ResetFences(ctx context.Context, fences []Handle) error {
	if err := s.shouldFail("ResetFences"); err != nil {
		return err
	}
	s.mu.Lock()
	for _, f := range fences {
		s.signaled[f] = false
	}
	s.mu.Unlock()
	return nil
}

func (s *Stub) GetFenceStatus(ctx context.Context, fence Handle) (bool, error) {
	if err := s.shouldFail("GetFenceStatus"); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.signaled[fence], nil
}

func (s *Stub) WaitForFences(ctx context.Context, fences []Handle, waitAll bool, timeoutNs uint64) error {
	// The stub resolves queues synchronously at QueueSubmit time, so by
	// the time a guest waits, every submitted fence is already signaled.
	return s.shouldFail("WaitForFences")
}

func (s *Stub) CreateSemaphore(ctx context.Context, device Handle) (Handle, error) {
	if err := s.shouldFail("CreateSemaphore"); err != nil {
		return 0, err
	}
	return s.alloc(), nil
}

func (s *Stub) DestroySemaphore(ctx context.Context, semaphore Handle) error {
	return s.shouldFail("DestroySemaphore")
}

func (s *Stub) CreateCommandPool(ctx context.Context, device Handle, queueFamilyIndex uint32) (Handle, error) {
	if err := s.shouldFail("CreateCommandPool"); err != nil {
		return 0, err
	}
	return s.alloc(), nil
}

func (s *Stub) DestroyCommandPool(ctx context.Context, pool Handle) error {
	return s.shouldFail("DestroyCommandPool")
}

func (s *Stub) ResetCommandPool(ctx context.Context, pool Handle) error {
	return s.shouldFail("ResetCommandPool")
}

func (s *Stub) AllocateCommandBuffers(ctx context.Context, pool Handle, count int) ([]Handle, error) {
	if err := s.shouldFail("AllocateCommandBuffers"); err != nil {
		return nil, err
	}
	out := make([]Handle, count)
	for i := range out {
		out[i] = s.alloc()
	}
	return out, nil
}

func (s *Stub) FreeCommandBuffers(ctx context.Context, pool Handle, buffers []Handle) error {
	return s.shouldFail("FreeCommandBuffers")
}

func (s *Stub) BeginCommandBuffer(ctx context.Context, cb Handle) error {
	return s.shouldFail("BeginCommandBuffer")
}

func (s *Stub) EndCommandBuffer(ctx context.Context, cb Handle) error {
	return s.shouldFail("EndCommandBuffer")
}

func (s *Stub) QueueSubmit(ctx context.Context, queue Handle, commandBuffers []Handle, fence Handle) error {
	if err := s.shouldFail("QueueSubmit"); err != nil {
		return err
	}
	if fence != 0 {
		s.mu.Lock()
		s.signaled[fence] = true
		s.mu.Unlock()
	}
	return nil
}

func (s *Stub) QueueWaitIdle(ctx context.Context, queue Handle) error {
	return s.shouldFail("QueueWaitIdle")
}

func (s *Stub) DeviceWaitIdle(ctx context.Context, device Handle) error {
	return s.shouldFail("DeviceWaitIdle")
}

var _ Backend = (*Stub)(nil)
