package ring

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/venus-hv/gpucore/gpuerr"
	"github.com/venus-hv/gpucore/wire"
)

// Status is the three-value ring status word (SPEC_FULL.md §3).
type Status uint32

const (
	StatusIdle Status = iota
	StatusRunning
	StatusError
)

// Mode selects the consumer-loop strategy (SPEC_FULL.md §5).
type Mode int

const (
	// Threaded runs a dedicated consumer goroutine.
	Threaded Mode = iota
	// Polled expects an outer scheduler to call DecodeAll whenever the
	// virtio-gpu notification fires; Start spawns no goroutine and Notify
	// only sets an edge-triggered flag (see ConsumeNotification).
	Polled
)

// Ring is the host side of the shared-memory command ring.
type Ring struct {
	shared []byte

	headPtr   *uint32
	tailPtr   *uint32
	statusPtr *uint32

	buffer []byte // BufferSize bytes, power-of-two length
	mask   uint32
	extra  []byte

	readPos uint32 // single read cursor, published on PublishHead

	mode Mode

	mu       sync.Mutex
	cond     *sync.Cond
	running  bool
	loopWG   *sync.WaitGroup
	notified int32 // Polled-mode edge-triggered notification flag

	stats Stats
}

// Stats carries the supplemental per-ring counters from
// original_source/GPU/include/pv_venus_ring.h's pv_venus_ring_stats,
// folded into this module per SPEC_FULL.md §3/§4.1.
type Stats struct {
	CommandsProcessed uint64
	BytesRead         uint64
	Errors            uint64
	Waits             uint64
}

func atomicPtr(shared []byte, offset uint32) (*uint32, error) {
	if int(offset)+4 > len(shared) {
		return nil, fmt.Errorf("ring: offset %d out of bounds", offset)
	}
	if offset%4 != 0 {
		return nil, fmt.Errorf("ring: offset %d is not 4-byte aligned", offset)
	}
	return (*uint32)(unsafe.Pointer(&shared[offset])), nil
}

// Create validates layout and returns a ready Ring with head and status
// initialized to 0/idle, per SPEC_FULL.md §4.1. Fails with
// gpuerr.ErrInvalidLayout otherwise.
func Create(layout Layout, mode Mode) (*Ring, error) {
	if err := layout.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", gpuerr.ErrInvalidLayout, err)
	}

	headPtr, err := atomicPtr(layout.Shared, layout.HeadOffset)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", gpuerr.ErrInvalidLayout, err)
	}
	tailPtr, err := atomicPtr(layout.Shared, layout.TailOffset)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", gpuerr.ErrInvalidLayout, err)
	}
	statusPtr, err := atomicPtr(layout.Shared, layout.StatusOffset)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", gpuerr.ErrInvalidLayout, err)
	}

	r := &Ring{
		shared:    layout.Shared,
		headPtr:   headPtr,
		tailPtr:   tailPtr,
		statusPtr: statusPtr,
		buffer:    layout.Shared[layout.BufferOffset : layout.BufferOffset+layout.BufferSize],
		mask:      layout.BufferSize - 1,
		mode:      mode,
	}
	if layout.ExtraSize > 0 {
		r.extra = layout.Shared[layout.ExtraOffset : layout.ExtraOffset+layout.ExtraSize]
	}
	r.cond = sync.NewCond(&r.mu)

	atomic.StoreUint32(r.headPtr, 0)
	atomic.StoreUint32(r.statusPtr, uint32(StatusIdle))
	return r, nil
}

// Mode reports the ring's configured consumer strategy.
func (r *Ring) Mode() Mode { return r.mode }

// Capacity returns the ring buffer's total byte capacity — the threshold
// past which a declared command_size is unrecoverable corruption rather
// than a per-frame error: a frame larger than the ring itself can never be
// delivered whole.
func (r *Ring) Capacity() uint32 { return uint32(len(r.buffer)) }

// Status returns the current status word.
func (r *Ring) Status() Status {
	return Status(atomic.LoadUint32(r.statusPtr))
}

// setStatus transitions the status word; used to enter StatusError on
// unrecoverable corruption (SPEC_FULL.md §7).
func (r *Ring) setStatus(s Status) {
	atomic.StoreUint32(r.statusPtr, uint32(s))
}

// tail does an acquire load of the guest-owned tail cursor.
func (r *Ring) tail() uint32 {
	return atomic.LoadUint32(r.tailPtr)
}

// Available returns tail - readPos as a 32-bit unsigned (wrapping)
// difference, using an acquire load for tail (SPEC_FULL.md §4.1). It is
// not reduced modulo the buffer size, so a full ring reports N, not 0.
func (r *Ring) Available() uint32 {
	return r.tail() - r.readPos
}

// Read copies size bytes starting at the ring's internal read cursor,
// splitting across the wrap, and advances the in-register read cursor.
// It does not block and does not publish the head word; the caller must
// have verified availability first (SPEC_FULL.md §4.1).
func (r *Ring) Read(dest []byte) error {
	size := uint32(len(dest))
	if size > r.Available() {
		return fmt.Errorf("ring: read underflow: want %d have %d", size, r.Available())
	}

	start := r.readPos & r.mask
	n := uint32(len(r.buffer))
	first := n - start
	if first > size {
		first = size
	}
	copy(dest[:first], r.buffer[start:start+first])
	if first < size {
		copy(dest[first:], r.buffer[:size-first])
	}

	r.readPos += size
	atomic.AddUint64(&r.stats.BytesRead, uint64(size))
	return nil
}

// Skip advances the read cursor by n bytes without copying, used to
// discard a malformed frame whose declared size is known to be within
// the available bytes (SPEC_FULL.md §4.2).
func (r *Ring) Skip(n uint32) {
	r.readPos += n
}

// Peek copies len(dest) bytes starting at the read cursor without
// advancing it, for header lookahead before committing to a frame. It
// reports false without copying anything if fewer than len(dest) bytes
// are available (SPEC_FULL.md §4.2's "wait for the rest of the frame"
// case).
func (r *Ring) Peek(dest []byte) bool {
	size := uint32(len(dest))
	if size > r.Available() {
		return false
	}
	start := r.readPos & r.mask
	n := uint32(len(r.buffer))
	first := n - start
	if first > size {
		first = size
	}
	copy(dest[:first], r.buffer[start:start+first])
	if first < size {
		copy(dest[first:], r.buffer[:size-first])
	}
	return true
}

// Fault transitions the ring to StatusError, the terminal state reached
// when a frame header fails validation and the read cursor can no
// longer be trusted to point at a frame boundary (SPEC_FULL.md §4.2,
// §7).
func (r *Ring) Fault() {
	r.setStatus(StatusError)
}

// MarkProcessed and MarkError let package dispatch update the ring's
// diagnostic counters without reaching into its internals.
func (r *Ring) MarkProcessed() { r.recordProcessed() }
func (r *Ring) MarkError()     { r.recordError() }

// PublishHead releases the ring's current read cursor to the shared head
// word, retiring every frame consumed since the last publish.
func (r *Ring) PublishHead() {
	atomic.StoreUint32(r.headPtr, r.readPos)
}

// ExtraGet returns a bounds-checked borrow into the extra region for
// zero-copy reads of large structures, or nil if the range is invalid
// (SPEC_FULL.md §4.1). The addition is overflow-checked.
func (r *Ring) ExtraGet(offset, size uint32) []byte {
	end := uint64(offset) + uint64(size)
	if end > uint64(len(r.extra)) {
		return nil
	}
	return r.extra[offset:end]
}

// WriteReply writes data into the extra region at offset, for handlers
// writing query replies back to the guest (SPEC_FULL.md §4.4 step 5).
func (r *Ring) WriteReply(offset uint32, data []byte) error {
	dst := r.ExtraGet(offset, uint32(len(data)))
	if dst == nil {
		return fmt.Errorf("ring: reply offset %d size %d out of bounds of %d-byte extra region", offset, len(data), len(r.extra))
	}
	copy(dst, data)
	return nil
}

// MaxFrameSize is the implementation constant from SPEC_FULL.md §3.
const MaxFrameSize = wire.MaxFrameSize

// Stats returns a snapshot of the per-ring counters.
func (r *Ring) Stats() Stats {
	return Stats{
		CommandsProcessed: atomic.LoadUint64(&r.stats.CommandsProcessed),
		BytesRead:         atomic.LoadUint64(&r.stats.BytesRead),
		Errors:            atomic.LoadUint64(&r.stats.Errors),
		Waits:             atomic.LoadUint64(&r.stats.Waits),
	}
}

func (r *Ring) recordProcessed() { atomic.AddUint64(&r.stats.CommandsProcessed, 1) }
func (r *Ring) recordError()     { atomic.AddUint64(&r.stats.Errors, 1) }
