// Package gpucore wires the ring transport, the command decoder, the
// object table, and a native GPU backend into one running command
// virtualization core (SPEC_FULL.md §3). It is the root of the module's
// public API; everything else is an implementation detail reachable
// through a Context.
package gpucore

import (
	"context"

	"go.uber.org/zap"

	"github.com/venus-hv/gpucore/backend"
	"github.com/venus-hv/gpucore/dispatch"
	"github.com/venus-hv/gpucore/fence"
	"github.com/venus-hv/gpucore/handlers"
	"github.com/venus-hv/gpucore/objtable"
	"github.com/venus-hv/gpucore/ring"
)

// Context owns one guest ring's entire command-processing pipeline.
type Context struct {
	Ring    *ring.Ring
	Decoder *dispatch.Decoder
	Objects *objtable.Table
	Backend backend.Backend
	Fences  *fence.Publisher

	log *zap.Logger
}

type options struct {
	log     *zap.Logger
	objects *objtable.Table
	fences  *fence.Publisher
}

// Option configures New.
type Option func(*options)

// WithLogger attaches a zap logger; the default discards everything.
func WithLogger(l *zap.Logger) Option { return func(o *options) { o.log = l } }

// WithObjectTable supplies a pre-built table, e.g. one shared across
// rings in a multi-queue guest; the default is a fresh Table.
func WithObjectTable(t *objtable.Table) Option { return func(o *options) { o.objects = t } }

// WithFencePublisher supplies a pre-built fence.Publisher; the default
// is a fresh Publisher private to this Context.
func WithFencePublisher(p *fence.Publisher) Option { return func(o *options) { o.fences = p } }

// New binds r and be into a ready Context with every command handler
// registered. It does not start consuming; call Start or Pump.
func New(r *ring.Ring, be backend.Backend, opts ...Option) *Context {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}
	if o.objects == nil {
		o.objects = objtable.New()
	}
	if o.fences == nil {
		o.fences = fence.NewPublisher()
	}

	dec := dispatch.New(r, o.log)
	handlers.RegisterAll(handlers.Deps{
		Backend: be,
		Objects: o.objects,
		Fences:  o.fences,
		Log:     o.log,
	}, dec)

	return &Context{
		Ring:    r,
		Decoder: dec,
		Objects: o.objects,
		Backend: be,
		Fences:  o.fences,
		log:     o.log,
	}
}

// Start begins consuming commands. In ring.Threaded mode this spawns the
// dedicated consumer goroutine; in ring.Polled mode it only marks the
// ring running, and the caller must drive Pump itself on every guest
// notification.
func (c *Context) Start(ctx context.Context) {
	c.Ring.Start(func() { c.Decoder.DecodeAll(ctx) })
}

// Pump drains every fully-landed frame currently on the ring once. Call
// this from an outer scheduler tick when the ring runs in ring.Polled
// mode.
func (c *Context) Pump(ctx context.Context) {
	c.Decoder.DecodeAll(ctx)
}

// Close stops the consumer and releases every object table resident
// through the backend before returning, reporting the first release
// error if any. Leaf objects (memory, buffers, images, fences,
// semaphores, command pools) go first, then devices, then instances, so
// a real Vulkan backend never sees a destroy call on a still-referenced
// parent.
func (c *Context) Close(ctx context.Context) error {
	c.Ring.Stop()

	// Snapshot first: Remove takes the table's write lock, which Each's
	// own read lock cannot be upgraded to from inside its callback.
	var leaves, devices, instances []objtable.Entry
	c.Objects.Each(func(e objtable.Entry) {
		switch e.Type {
		case objtable.Device:
			devices = append(devices, e)
		case objtable.Instance:
			instances = append(instances, e)
		default:
			leaves = append(leaves, e)
		}
	})

	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, e := range leaves {
		record(releaseLeaf(ctx, c.Backend, e))
		c.Objects.Remove(e.GuestID)
	}
	for _, e := range devices {
		record(c.Backend.DestroyDevice(ctx, e.Host))
		c.Objects.Remove(e.GuestID)
	}
	for _, e := range instances {
		record(c.Backend.DestroyInstance(ctx, e.Host))
		c.Objects.Remove(e.GuestID)
	}
	return firstErr
}

func releaseLeaf(ctx context.Context, be backend.Backend, e objtable.Entry) error {
	switch e.Type {
	case objtable.DeviceMemory:
		return be.FreeMemory(ctx, e.Host)
	case objtable.Buffer:
		return be.DestroyBuffer(ctx, e.Host)
	case objtable.Image:
		return be.DestroyImage(ctx, e.Host)
	case objtable.Fence:
		return be.DestroyFence(ctx, e.Host)
	case objtable.Semaphore:
		return be.DestroySemaphore(ctx, e.Host)
	case objtable.CommandPool:
		return be.DestroyCommandPool(ctx, e.Host)
	default:
		// PhysicalDevice, Queue, and CommandBuffer have no explicit
		// destroy call; they are released implicitly by their parent.
		return nil
	}
}
