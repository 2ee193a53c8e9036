package handlers

import (
	"context"

	"github.com/venus-hv/gpucore/backend"
	"github.com/venus-hv/gpucore/dispatch"
	"github.com/venus-hv/gpucore/fence"
	"github.com/venus-hv/gpucore/objtable"
	"github.com/venus-hv/gpucore/ring"
	"github.com/venus-hv/gpucore/wire"
)

func registerQueue(d Deps, dec *dispatch.Decoder) {
	dec.Register(wire.CmdQueueSubmit, d.queueSubmit)
	dec.Register(wire.CmdQueueWaitIdle, d.queueWaitIdle)
}

func (d Deps) queueSubmit(ctx context.Context, payload []byte, r *ring.Ring) error {
	in, cbIDs, err := wire.DecodeQueueSubmitIn(payload)
	if err != nil {
		return err
	}
	queue, err := d.handle(in.QueueGuestID, objtable.Queue)
	if err != nil {
		return err
	}
	cbs, err := d.handles(cbIDs, objtable.CommandBuffer)
	if err != nil {
		return err
	}

	var fenceHandle backend.Handle
	if in.FenceGuestID != 0 {
		h, err := d.handle(in.FenceGuestID, objtable.Fence)
		if err != nil {
			return err
		}
		fenceHandle = h
	}

	if err := d.Backend.QueueSubmit(ctx, queue, cbs, fenceHandle); err != nil {
		return backendErr(err)
	}

	for _, id := range cbIDs {
		d.Objects.SetState(id, objtable.Pending)
	}
	if in.FenceGuestID != 0 && d.Fences != nil {
		d.Fences.Publish(fence.Signal{FenceID: in.FenceGuestID})
	}
	return nil
}

func (d Deps) queueWaitIdle(ctx context.Context, payload []byte, r *ring.Ring) error {
	guestID, err := wire.DecodeQueueWaitIdleIn(payload)
	if err != nil {
		return err
	}
	h, err := d.handle(guestID, objtable.Queue)
	if err != nil {
		return err
	}
	return backendErr(d.Backend.QueueWaitIdle(ctx, h))
}
