package handlers

import (
	"context"

	"github.com/venus-hv/gpucore/dispatch"
	"github.com/venus-hv/gpucore/objtable"
	"github.com/venus-hv/gpucore/ring"
	"github.com/venus-hv/gpucore/wire"
)

func registerBufferImage(d Deps, dec *dispatch.Decoder) {
	dec.Register(wire.CmdCreateBuffer, d.createBuffer)
	dec.Register(wire.CmdDestroyBuffer, d.destroyBuffer)
	dec.Register(wire.CmdCreateImage, d.createImage)
	dec.Register(wire.CmdDestroyImage, d.destroyImage)
}

func (d Deps) createBuffer(ctx context.Context, payload []byte, r *ring.Ring) error {
	in, err := wire.DecodeCreateBufferIn(payload)
	if err != nil {
		return err
	}
	dev, err := d.handle(in.DeviceGuestID, objtable.Device)
	if err != nil {
		return err
	}
	h, err := d.Backend.CreateBuffer(ctx, dev, in.Size, in.Usage)
	if err != nil {
		return backendErr(err)
	}
	return d.add(in.GuestID, h, objtable.Buffer)
}

func (d Deps) destroyBuffer(ctx context.Context, payload []byte, r *ring.Ring) error {
	guestID, err := wire.DecodeDestroyBufferIn(payload)
	if err != nil {
		return err
	}
	h, err := d.handle(guestID, objtable.Buffer)
	if err != nil {
		return err
	}
	if err := d.Backend.DestroyBuffer(ctx, h); err != nil {
		return backendErr(err)
	}
	d.Objects.Remove(guestID)
	return nil
}

func (d Deps) createImage(ctx context.Context, payload []byte, r *ring.Ring) error {
	in, err := wire.DecodeCreateImageIn(payload)
	if err != nil {
		return err
	}
	dev, err := d.handle(in.DeviceGuestID, objtable.Device)
	if err != nil {
		return err
	}
	h, err := d.Backend.CreateImage(ctx, dev, in.Width, in.Height, in.Format, in.Usage)
	if err != nil {
		return backendErr(err)
	}
	return d.add(in.GuestID, h, objtable.Image)
}

func (d Deps) destroyImage(ctx context.Context, payload []byte, r *ring.Ring) error {
	guestID, err := wire.DecodeDestroyImageIn(payload)
	if err != nil {
		return err
	}
	h, err := d.handle(guestID, objtable.Image)
	if err != nil {
		return err
	}
	if err := d.Backend.DestroyImage(ctx, h); err != nil {
		return backendErr(err)
	}
	d.Objects.Remove(guestID)
	return nil
}
