// Package dispatch implements the Command Decoder (C2): it pulls framed
// commands off a ring.Ring, validates the header, and invokes the
// registered handler from a dense table indexed by command id
// (SPEC_FULL.md §4.2). Grounded on the teacher's fuse/opcode.go dense
// opcode table and fuse/request.go's header-then-payload read sequence,
// adapted from FUSE's kernel-ABI framing to the Venus protocol's 8-byte
// header.
package dispatch

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/venus-hv/gpucore/gpuerr"
	"github.com/venus-hv/gpucore/ring"
	"github.com/venus-hv/gpucore/wire"
)

// HandlerFunc translates one decoded command. payload is the frame body
// (command_size minus the 8-byte header); it is only valid for the
// duration of the call, since the decoder reuses its scratch buffer.
// reply lets a handler write a response into the ring's extra region via
// reply.WriteReply.
type HandlerFunc func(ctx context.Context, payload []byte, reply *ring.Ring) error

// Decoder owns the dense dispatch table and the scratch buffer commands
// are decoded into. A Decoder is bound to exactly one Ring.
type Decoder struct {
	ring     *ring.Ring
	handlers [wire.MaxCommandID]HandlerFunc
	scratch  []byte
	log      *zap.Logger

	unknownCount uint64
}

// New returns a Decoder bound to r. log may be nil, in which case
// diagnostics are discarded.
func New(r *ring.Ring, log *zap.Logger) *Decoder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Decoder{ring: r, log: log, scratch: make([]byte, 256)}
}

// Register installs h as the handler for command id. Registering the
// same id twice replaces the previous handler. Panics if id is outside
// the dense table's bounds, which is a programming error, not something
// a guest can trigger.
func (d *Decoder) Register(id uint32, h HandlerFunc) {
	d.handlers[id] = h
}

// UnknownCount returns the number of frames seen with a command id that
// had no registered handler. Such frames are consumed and counted here
// only; they do not count as ring errors.
func (d *Decoder) UnknownCount() uint64 { return d.unknownCount }

func (d *Decoder) scratchOf(n uint32) []byte {
	if uint32(cap(d.scratch)) < n {
		d.scratch = make([]byte, n)
	}
	return d.scratch[:n]
}

// DecodeOne attempts to decode and dispatch a single frame. It reports
// (false, nil) when fewer bytes are available than the next frame needs
// (either less than a header, or a declared frame that hasn't fully
// landed yet) — not an error, just "try again later". A header with an
// out-of-range command_size is a per-frame InvalidHeader: it is counted
// and skipped past (the declared size if it has already landed, the
// 8-byte header otherwise) so the next frame still dispatches. Only a
// command_size larger than the ring's own capacity is unrecoverable —
// the read cursor can no longer be trusted to point at any frame
// boundary, so the ring is faulted and the error is returned (§4.2, §7).
// A handler error is isolated to that one command and never returned
// from DecodeOne; it is logged and counted instead.
func (d *Decoder) DecodeOne(ctx context.Context) (bool, error) {
	var hdrBuf [wire.HeaderSize]byte
	if !d.ring.Peek(hdrBuf[:]) {
		return false, nil
	}
	hdr := wire.DecodeHeader(hdrBuf[:])

	if hdr.CommandSize > d.ring.Capacity() {
		d.ring.Fault()
		err := fmt.Errorf("%w: command_size %d exceeds ring capacity %d", gpuerr.ErrInvalidHeader, hdr.CommandSize, d.ring.Capacity())
		d.log.Error("ring faulted", zap.String("kind", gpuerr.Tag(err)), zap.Error(err))
		return false, err
	}

	if hdr.CommandSize < wire.MinFrameSize || hdr.CommandSize > wire.MaxFrameSize {
		skip := uint32(wire.HeaderSize)
		if hdr.CommandSize >= wire.HeaderSize && d.ring.Available() >= hdr.CommandSize {
			skip = hdr.CommandSize
		}
		d.ring.Skip(skip)
		d.ring.MarkError()
		d.log.Warn("invalid command header",
			zap.String("kind", gpuerr.Tag(gpuerr.ErrInvalidHeader)),
			zap.Uint32("command_size", hdr.CommandSize))
		return true, nil
	}

	if d.ring.Available() < hdr.CommandSize {
		return false, nil // rest of the frame hasn't landed yet
	}

	d.ring.Skip(wire.HeaderSize)
	payload := d.scratchOf(hdr.PayloadSize())
	if len(payload) > 0 {
		if err := d.ring.Read(payload); err != nil {
			d.ring.Fault()
			return false, err
		}
	}

	handler := d.lookup(hdr.CommandID)
	if handler == nil {
		d.unknownCount++
		d.log.Warn("unknown command id",
			zap.String("kind", gpuerr.Tag(gpuerr.ErrUnknownCommand)),
			zap.String("command", wire.CommandName(hdr.CommandID)))
		return true, nil
	}

	if err := handler(ctx, payload, d.ring); err != nil {
		d.ring.MarkError()
		d.log.Warn("handler failed",
			zap.String("command", wire.CommandName(hdr.CommandID)),
			zap.String("kind", gpuerr.Tag(err)),
			zap.Error(err))
		return true, nil
	}

	d.ring.MarkProcessed()
	return true, nil
}

func (d *Decoder) lookup(id uint32) HandlerFunc {
	if id >= wire.MaxCommandID {
		return nil
	}
	return d.handlers[id]
}

// DecodeAll drains every fully-landed frame currently on the ring,
// publishing the read cursor exactly once at the end regardless of how
// many frames it processed (SPEC_FULL.md §9's single-publish-per-batch
// resolution). Call this from a Polled-mode scheduler tick, or pass it
// as the process function to Ring.Start in Threaded mode.
func (d *Decoder) DecodeAll(ctx context.Context) {
	defer d.ring.PublishHead()
	for {
		ok, err := d.DecodeOne(ctx)
		if err != nil {
			return
		}
		if !ok {
			return
		}
	}
}
