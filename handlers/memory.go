package handlers

import (
	"context"

	"github.com/venus-hv/gpucore/backend"
	"github.com/venus-hv/gpucore/dispatch"
	"github.com/venus-hv/gpucore/objtable"
	"github.com/venus-hv/gpucore/ring"
	"github.com/venus-hv/gpucore/wire"
)

func registerMemory(d Deps, dec *dispatch.Decoder) {
	dec.Register(wire.CmdAllocateMemory, d.allocateMemory)
	dec.Register(wire.CmdFreeMemory, d.freeMemory)
	dec.Register(wire.CmdBindBufferMemory, d.bindBufferMemory)
	dec.Register(wire.CmdBindImageMemory, d.bindImageMemory)
	dec.Register(wire.CmdGetBufferMemoryRequirements, d.getBufferMemoryRequirements)
	dec.Register(wire.CmdGetImageMemoryRequirements, d.getImageMemoryRequirements)
}

func (d Deps) allocateMemory(ctx context.Context, payload []byte, r *ring.Ring) error {
	in, err := wire.DecodeAllocateMemoryIn(payload)
	if err != nil {
		return err
	}
	dev, err := d.handle(in.DeviceGuestID, objtable.Device)
	if err != nil {
		return err
	}
	h, err := d.Backend.AllocateMemory(ctx, dev, in.Size, in.MemoryTypeIndex)
	if err != nil {
		return backendErr(err)
	}
	return d.add(in.GuestID, h, objtable.DeviceMemory)
}

func (d Deps) freeMemory(ctx context.Context, payload []byte, r *ring.Ring) error {
	guestID, err := wire.DecodeFreeMemoryIn(payload)
	if err != nil {
		return err
	}
	h, err := d.handle(guestID, objtable.DeviceMemory)
	if err != nil {
		return err
	}
	if err := d.Backend.FreeMemory(ctx, h); err != nil {
		return backendErr(err)
	}
	d.Objects.Remove(guestID)
	return nil
}

func (d Deps) bindBufferMemory(ctx context.Context, payload []byte, r *ring.Ring) error {
	in, err := wire.DecodeBindBufferMemoryIn(payload)
	if err != nil {
		return err
	}
	buf, err := d.handle(in.TargetGuestID, objtable.Buffer)
	if err != nil {
		return err
	}
	mem, err := d.handle(in.MemoryGuestID, objtable.DeviceMemory)
	if err != nil {
		return err
	}
	return backendErr(d.Backend.BindBufferMemory(ctx, buf, mem, in.Offset))
}

func (d Deps) bindImageMemory(ctx context.Context, payload []byte, r *ring.Ring) error {
	in, err := wire.DecodeBindImageMemoryIn(payload)
	if err != nil {
		return err
	}
	img, err := d.handle(in.TargetGuestID, objtable.Image)
	if err != nil {
		return err
	}
	mem, err := d.handle(in.MemoryGuestID, objtable.DeviceMemory)
	if err != nil {
		return err
	}
	return backendErr(d.Backend.BindImageMemory(ctx, img, mem, in.Offset))
}

func (d Deps) getBufferMemoryRequirements(ctx context.Context, payload []byte, r *ring.Ring) error {
	guestID, replyOffset, err := wire.DecodeGetBufferMemoryRequirementsIn(payload)
	if err != nil {
		return err
	}
	buf, err := d.handle(guestID, objtable.Buffer)
	if err != nil {
		return err
	}
	req, err := d.Backend.GetBufferMemoryRequirements(ctx, buf)
	if err != nil {
		return backendErr(err)
	}
	return writeMemoryRequirements(r, replyOffset, req)
}

func (d Deps) getImageMemoryRequirements(ctx context.Context, payload []byte, r *ring.Ring) error {
	guestID, replyOffset, err := wire.DecodeGetImageMemoryRequirementsIn(payload)
	if err != nil {
		return err
	}
	img, err := d.handle(guestID, objtable.Image)
	if err != nil {
		return err
	}
	req, err := d.Backend.GetImageMemoryRequirements(ctx, img)
	if err != nil {
		return backendErr(err)
	}
	return writeMemoryRequirements(r, replyOffset, req)
}

func writeMemoryRequirements(r *ring.Ring, replyOffset uint32, req backend.MemoryRequirements) error {
	enc, err := wire.EncodeMemoryRequirementsOut(wire.MemoryRequirementsOut{
		Size:           req.Size,
		Alignment:      req.Alignment,
		MemoryTypeBits: req.MemoryTypeBits,
	})
	if err != nil {
		return err
	}
	return r.WriteReply(replyOffset, enc)
}
