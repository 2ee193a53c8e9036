package handlers

import (
	"context"
	"fmt"

	"github.com/venus-hv/gpucore/dispatch"
	"github.com/venus-hv/gpucore/gpuerr"
	"github.com/venus-hv/gpucore/objtable"
	"github.com/venus-hv/gpucore/ring"
	"github.com/venus-hv/gpucore/wire"
)

func registerCommandPool(d Deps, dec *dispatch.Decoder) {
	dec.Register(wire.CmdCreateCommandPool, d.createCommandPool)
	dec.Register(wire.CmdDestroyCommandPool, d.destroyCommandPool)
	dec.Register(wire.CmdResetCommandPool, d.resetCommandPool)
	dec.Register(wire.CmdAllocateCommandBuffers, d.allocateCommandBuffers)
	dec.Register(wire.CmdFreeCommandBuffers, d.freeCommandBuffers)
	dec.Register(wire.CmdBeginCommandBuffer, d.beginCommandBuffer)
	dec.Register(wire.CmdEndCommandBuffer, d.endCommandBuffer)
}

func (d Deps) createCommandPool(ctx context.Context, payload []byte, r *ring.Ring) error {
	in, err := wire.DecodeCreateCommandPoolIn(payload)
	if err != nil {
		return err
	}
	dev, err := d.handle(in.DeviceGuestID, objtable.Device)
	if err != nil {
		return err
	}
	h, err := d.Backend.CreateCommandPool(ctx, dev, in.QueueFamilyIndex)
	if err != nil {
		return backendErr(err)
	}
	return d.add(in.GuestID, h, objtable.CommandPool)
}

func (d Deps) destroyCommandPool(ctx context.Context, payload []byte, r *ring.Ring) error {
	guestID, err := wire.DecodeDestroyCommandPoolIn(payload)
	if err != nil {
		return err
	}
	h, err := d.handle(guestID, objtable.CommandPool)
	if err != nil {
		return err
	}
	if err := d.Backend.DestroyCommandPool(ctx, h); err != nil {
		return backendErr(err)
	}
	d.Objects.Remove(guestID)
	return nil
}

func (d Deps) resetCommandPool(ctx context.Context, payload []byte, r *ring.Ring) error {
	guestID, err := wire.DecodeResetCommandPoolIn(payload)
	if err != nil {
		return err
	}
	h, err := d.handle(guestID, objtable.CommandPool)
	if err != nil {
		return err
	}
	return backendErr(d.Backend.ResetCommandPool(ctx, h))
}

func (d Deps) allocateCommandBuffers(ctx context.Context, payload []byte, r *ring.Ring) error {
	in, guestIDs, err := wire.DecodeAllocateCommandBuffersIn(payload)
	if err != nil {
		return err
	}
	pool, err := d.handle(in.CommandPoolGuestID, objtable.CommandPool)
	if err != nil {
		return err
	}
	hosts, err := d.Backend.AllocateCommandBuffers(ctx, pool, len(guestIDs))
	if err != nil {
		return backendErr(err)
	}
	for i, h := range hosts {
		if err := d.add(guestIDs[i], h, objtable.CommandBuffer); err != nil {
			return err
		}
		d.Objects.SetState(guestIDs[i], objtable.Initial)
	}
	return nil
}

func (d Deps) freeCommandBuffers(ctx context.Context, payload []byte, r *ring.Ring) error {
	in, guestIDs, err := wire.DecodeFreeCommandBuffersIn(payload)
	if err != nil {
		return err
	}
	pool, err := d.handle(in.CommandPoolGuestID, objtable.CommandPool)
	if err != nil {
		return err
	}
	hosts, err := d.handles(guestIDs, objtable.CommandBuffer)
	if err != nil {
		return err
	}
	if err := d.Backend.FreeCommandBuffers(ctx, pool, hosts); err != nil {
		return backendErr(err)
	}
	for _, id := range guestIDs {
		d.Objects.Remove(id)
	}
	return nil
}

func (d Deps) beginCommandBuffer(ctx context.Context, payload []byte, r *ring.Ring) error {
	guestID, err := wire.DecodeBeginCommandBufferIn(payload)
	if err != nil {
		return err
	}
	h, err := d.handle(guestID, objtable.CommandBuffer)
	if err != nil {
		return err
	}
	state, _ := d.Objects.State(guestID)
	if state != objtable.Initial && state != objtable.Executable {
		return fmt.Errorf("%w: command buffer %#x is in state %d, want Initial or Executable", gpuerr.ErrInvalidState, guestID, state)
	}
	if err := d.Backend.BeginCommandBuffer(ctx, h); err != nil {
		return backendErr(err)
	}
	d.Objects.SetState(guestID, objtable.Recording)
	return nil
}

func (d Deps) endCommandBuffer(ctx context.Context, payload []byte, r *ring.Ring) error {
	guestID, err := wire.DecodeEndCommandBufferIn(payload)
	if err != nil {
		return err
	}
	h, err := d.handle(guestID, objtable.CommandBuffer)
	if err != nil {
		return err
	}
	state, _ := d.Objects.State(guestID)
	if state != objtable.Recording {
		return fmt.Errorf("%w: command buffer %#x is in state %d, want Recording", gpuerr.ErrInvalidState, guestID, state)
	}
	if err := d.Backend.EndCommandBuffer(ctx, h); err != nil {
		return backendErr(err)
	}
	d.Objects.SetState(guestID, objtable.Executable)
	return nil
}
