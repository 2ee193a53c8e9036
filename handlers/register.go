package handlers

import "github.com/venus-hv/gpucore/dispatch"

// RegisterAll installs every command translation this core implements
// into dec, sharing deps across all of them.
func RegisterAll(deps Deps, dec *dispatch.Decoder) {
	registerInstance(deps, dec)
	registerDevice(deps, dec)
	registerMemory(deps, dec)
	registerBufferImage(deps, dec)
	registerCommandPool(deps, dec)
	registerQueue(deps, dec)
	registerSync(deps, dec)
}
