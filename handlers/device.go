package handlers

import (
	"context"

	"github.com/venus-hv/gpucore/dispatch"
	"github.com/venus-hv/gpucore/objtable"
	"github.com/venus-hv/gpucore/ring"
	"github.com/venus-hv/gpucore/wire"
)

func registerDevice(d Deps, dec *dispatch.Decoder) {
	dec.Register(wire.CmdCreateDevice, d.createDevice)
	dec.Register(wire.CmdDestroyDevice, d.destroyDevice)
	dec.Register(wire.CmdGetDeviceQueue, d.getDeviceQueue)
	dec.Register(wire.CmdDeviceWaitIdle, d.deviceWaitIdle)
}

func (d Deps) createDevice(ctx context.Context, payload []byte, r *ring.Ring) error {
	in, err := wire.DecodeCreateDeviceIn(payload)
	if err != nil {
		return err
	}
	pd, err := d.handle(in.PhysicalDeviceGuestID, objtable.PhysicalDevice)
	if err != nil {
		return err
	}
	h, err := d.Backend.CreateDevice(ctx, pd, in.QueueFamilyIndex)
	if err != nil {
		return backendErr(err)
	}
	return d.add(in.GuestID, h, objtable.Device)
}

func (d Deps) destroyDevice(ctx context.Context, payload []byte, r *ring.Ring) error {
	guestID, err := wire.DecodeDestroyDeviceIn(payload)
	if err != nil {
		return err
	}
	h, err := d.handle(guestID, objtable.Device)
	if err != nil {
		return err
	}
	if err := d.Backend.DestroyDevice(ctx, h); err != nil {
		return backendErr(err)
	}
	d.Objects.Remove(guestID)
	return nil
}

func (d Deps) getDeviceQueue(ctx context.Context, payload []byte, r *ring.Ring) error {
	in, err := wire.DecodeGetDeviceQueueIn(payload)
	if err != nil {
		return err
	}
	dev, err := d.handle(in.DeviceGuestID, objtable.Device)
	if err != nil {
		return err
	}
	h, err := d.Backend.GetDeviceQueue(ctx, dev, in.QueueFamilyIndex, in.QueueIndex)
	if err != nil {
		return backendErr(err)
	}
	return d.add(in.GuestID, h, objtable.Queue)
}

func (d Deps) deviceWaitIdle(ctx context.Context, payload []byte, r *ring.Ring) error {
	guestID, err := wire.DecodeDeviceWaitIdleIn(payload)
	if err != nil {
		return err
	}
	h, err := d.handle(guestID, objtable.Device)
	if err != nil {
		return err
	}
	return backendErr(d.Backend.DeviceWaitIdle(ctx, h))
}
