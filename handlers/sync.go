package handlers

import (
	"context"

	"github.com/venus-hv/gpucore/dispatch"
	"github.com/venus-hv/gpucore/objtable"
	"github.com/venus-hv/gpucore/ring"
	"github.com/venus-hv/gpucore/wire"
)

func registerSync(d Deps, dec *dispatch.Decoder) {
	dec.Register(wire.CmdCreateFence, d.createFence)
	dec.Register(wire.CmdDestroyFence, d.destroyFence)
	dec.Register(wire.CmdResetFences, d.resetFences)
	dec.Register(wire.CmdGetFenceStatus, d.getFenceStatus)
	dec.Register(wire.CmdWaitForFences, d.waitForFences)
	dec.Register(wire.CmdCreateSemaphore, d.createSemaphore)
	dec.Register(wire.CmdDestroySemaphore, d.destroySemaphore)
}

func (d Deps) createFence(ctx context.Context, payload []byte, r *ring.Ring) error {
	in, err := wire.DecodeCreateFenceIn(payload)
	if err != nil {
		return err
	}
	dev, err := d.handle(in.DeviceGuestID, objtable.Device)
	if err != nil {
		return err
	}
	h, err := d.Backend.CreateFence(ctx, dev, in.Signaled != 0)
	if err != nil {
		return backendErr(err)
	}
	return d.add(in.GuestID, h, objtable.Fence)
}

func (d Deps) destroyFence(ctx context.Context, payload []byte, r *ring.Ring) error {
	guestID, err := wire.DecodeDestroyFenceIn(payload)
	if err != nil {
		return err
	}
	h, err := d.handle(guestID, objtable.Fence)
	if err != nil {
		return err
	}
	if err := d.Backend.DestroyFence(ctx, h); err != nil {
		return backendErr(err)
	}
	d.Objects.Remove(guestID)
	return nil
}

func (d Deps) resetFences(ctx context.Context, payload []byte, r *ring.Ring) error {
	_, guestIDs, err := wire.DecodeResetFencesIn(payload)
	if err != nil {
		return err
	}
	hosts, err := d.handles(guestIDs, objtable.Fence)
	if err != nil {
		return err
	}
	return backendErr(d.Backend.ResetFences(ctx, hosts))
}

func (d Deps) getFenceStatus(ctx context.Context, payload []byte, r *ring.Ring) error {
	guestID, replyOffset, err := wire.DecodeGetFenceStatusIn(payload)
	if err != nil {
		return err
	}
	h, err := d.handle(guestID, objtable.Fence)
	if err != nil {
		return err
	}
	signaled, err := d.Backend.GetFenceStatus(ctx, h)
	if err != nil {
		return backendErr(err)
	}
	enc, err := wire.EncodeFenceStatusOut(wire.FenceStatusOut{Signaled: boolU32(signaled)})
	if err != nil {
		return err
	}
	return r.WriteReply(replyOffset, enc)
}

func (d Deps) waitForFences(ctx context.Context, payload []byte, r *ring.Ring) error {
	in, guestIDs, err := wire.DecodeWaitForFencesIn(payload)
	if err != nil {
		return err
	}
	hosts, err := d.handles(guestIDs, objtable.Fence)
	if err != nil {
		return err
	}
	return backendErr(d.Backend.WaitForFences(ctx, hosts, in.WaitAll != 0, in.TimeoutNs))
}

func (d Deps) createSemaphore(ctx context.Context, payload []byte, r *ring.Ring) error {
	in, err := wire.DecodeCreateSemaphoreIn(payload)
	if err != nil {
		return err
	}
	dev, err := d.handle(in.DeviceGuestID, objtable.Device)
	if err != nil {
		return err
	}
	h, err := d.Backend.CreateSemaphore(ctx, dev)
	if err != nil {
		return backendErr(err)
	}
	return d.add(in.GuestID, h, objtable.Semaphore)
}

func (d Deps) destroySemaphore(ctx context.Context, payload []byte, r *ring.Ring) error {
	guestID, err := wire.DecodeDestroySemaphoreIn(payload)
	if err != nil {
		return err
	}
	h, err := d.handle(guestID, objtable.Semaphore)
	if err != nil {
		return err
	}
	if err := d.Backend.DestroySemaphore(ctx, h); err != nil {
		return backendErr(err)
	}
	d.Objects.Remove(guestID)
	return nil
}
