package handlers

import (
	"context"

	"github.com/venus-hv/gpucore/dispatch"
	"github.com/venus-hv/gpucore/objtable"
	"github.com/venus-hv/gpucore/ring"
	"github.com/venus-hv/gpucore/wire"
)

func registerInstance(d Deps, dec *dispatch.Decoder) {
	dec.Register(wire.CmdCreateInstance, d.createInstance)
	dec.Register(wire.CmdDestroyInstance, d.destroyInstance)
	dec.Register(wire.CmdEnumeratePhysicalDevices, d.enumeratePhysicalDevices)
	dec.Register(wire.CmdGetPhysicalDeviceFeatures, d.getPhysicalDeviceFeatures)
	dec.Register(wire.CmdGetPhysicalDeviceProperties, d.getPhysicalDeviceProperties)
	dec.Register(wire.CmdGetPhysicalDeviceMemoryProperties, d.getPhysicalDeviceMemoryProperties)
}

func (d Deps) createInstance(ctx context.Context, payload []byte, r *ring.Ring) error {
	in, err := wire.DecodeCreateInstanceIn(payload)
	if err != nil {
		return err
	}
	h, err := d.Backend.CreateInstance(ctx, in.PortabilityEnumeration != 0)
	if err != nil {
		return backendErr(err)
	}
	return d.add(in.GuestID, h, objtable.Instance)
}

func (d Deps) destroyInstance(ctx context.Context, payload []byte, r *ring.Ring) error {
	in, err := wire.DecodeDestroyInstanceIn(payload)
	if err != nil {
		return err
	}
	h, err := d.handle(in.GuestID, objtable.Instance)
	if err != nil {
		return err
	}
	if err := d.Backend.DestroyInstance(ctx, h); err != nil {
		return backendErr(err)
	}
	d.Objects.Remove(in.GuestID)
	return nil
}

func (d Deps) enumeratePhysicalDevices(ctx context.Context, payload []byte, r *ring.Ring) error {
	in, guestIDs, err := wire.DecodeEnumeratePhysicalDevicesIn(payload)
	if err != nil {
		return err
	}
	instance, err := d.handle(in.InstanceGuestID, objtable.Instance)
	if err != nil {
		return err
	}
	hosts, err := d.Backend.EnumeratePhysicalDevices(ctx, instance, len(guestIDs))
	if err != nil {
		return backendErr(err)
	}
	bound := guestIDs[:len(hosts)]
	for i, h := range hosts {
		if err := d.add(bound[i], h, objtable.PhysicalDevice); err != nil {
			return err
		}
	}
	return r.WriteReply(in.ReplyOffset, wire.EncodePhysicalDeviceIDs(bound))
}

func (d Deps) getPhysicalDeviceFeatures(ctx context.Context, payload []byte, r *ring.Ring) error {
	guestID, replyOffset, err := wire.DecodeGetPhysicalDeviceFeaturesIn(payload)
	if err != nil {
		return err
	}
	pd, err := d.handle(guestID, objtable.PhysicalDevice)
	if err != nil {
		return err
	}
	feat, err := d.Backend.GetPhysicalDeviceFeatures(ctx, pd)
	if err != nil {
		return backendErr(err)
	}
	out := wire.PhysicalDeviceFeaturesOut{
		GeometryShader:     boolU32(feat.GeometryShader),
		TessellationShader: boolU32(feat.TessellationShader),
		MultiDrawIndirect:  boolU32(feat.MultiDrawIndirect),
		SamplerAnisotropy:  boolU32(feat.SamplerAnisotropy),
	}
	enc, err := wire.EncodePhysicalDeviceFeaturesOut(out)
	if err != nil {
		return err
	}
	return r.WriteReply(replyOffset, enc)
}

func (d Deps) getPhysicalDeviceProperties(ctx context.Context, payload []byte, r *ring.Ring) error {
	guestID, replyOffset, err := wire.DecodeGetPhysicalDevicePropertiesIn(payload)
	if err != nil {
		return err
	}
	pd, err := d.handle(guestID, objtable.PhysicalDevice)
	if err != nil {
		return err
	}
	props, err := d.Backend.GetPhysicalDeviceProperties(ctx, pd)
	if err != nil {
		return backendErr(err)
	}
	enc, err := wire.EncodePhysicalDevicePropertiesOut(wire.PhysicalDevicePropertiesOut{
		VendorID:                 props.VendorID,
		DeviceID:                 props.DeviceID,
		DeviceType:               props.DeviceType,
		DriverVersion:            props.DriverVersion,
		MaxMemoryAllocationCount: props.MaxMemoryAllocationCount,
	})
	if err != nil {
		return err
	}
	return r.WriteReply(replyOffset, enc)
}

func (d Deps) getPhysicalDeviceMemoryProperties(ctx context.Context, payload []byte, r *ring.Ring) error {
	guestID, replyOffset, err := wire.DecodeGetPhysicalDeviceMemoryPropertiesIn(payload)
	if err != nil {
		return err
	}
	pd, err := d.handle(guestID, objtable.PhysicalDevice)
	if err != nil {
		return err
	}
	mem, err := d.Backend.GetPhysicalDeviceMemoryProperties(ctx, pd)
	if err != nil {
		return backendErr(err)
	}
	enc, err := wire.EncodeMemoryPropertiesOut(wire.MemoryPropertiesOut{
		MemoryTypeCount:     mem.MemoryTypeCount,
		MemoryHeapCount:     mem.MemoryHeapCount,
		DeviceLocalHeapSize: mem.DeviceLocalHeapSize,
	})
	if err != nil {
		return err
	}
	return r.WriteReply(replyOffset, enc)
}

func boolU32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
