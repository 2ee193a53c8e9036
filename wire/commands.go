package wire

import "fmt"

// Command ids, numbered per the upstream VkCommandTypeEXT registry
// (original_source/GPU/include/pv_venus_protocol.h). MaxCommandID bounds
// the dense dispatch table in package dispatch.
const MaxCommandID = 500

const (
	CmdCreateInstance              = 0
	CmdDestroyInstance             = 1
	CmdEnumeratePhysicalDevices    = 2
	CmdGetPhysicalDeviceFeatures   = 3
	CmdGetPhysicalDeviceProperties = 6
	CmdGetPhysicalDeviceMemoryProperties = 8

	CmdCreateDevice  = 11
	CmdDestroyDevice = 12
	CmdGetDeviceQueue = 17

	CmdQueueSubmit    = 18
	CmdQueueWaitIdle  = 19
	CmdDeviceWaitIdle = 20

	CmdAllocateMemory              = 21
	CmdFreeMemory                  = 22
	CmdBindBufferMemory            = 28
	CmdBindImageMemory             = 29
	CmdGetBufferMemoryRequirements = 30
	CmdGetImageMemoryRequirements  = 31

	CmdCreateFence     = 35
	CmdDestroyFence    = 36
	CmdResetFences     = 37
	CmdGetFenceStatus  = 38
	CmdWaitForFences   = 39
	CmdCreateSemaphore  = 40
	CmdDestroySemaphore = 41

	CmdCreateBuffer  = 50
	CmdDestroyBuffer = 51
	CmdCreateImage   = 54
	CmdDestroyImage  = 55

	CmdCreateCommandPool       = 85
	CmdDestroyCommandPool      = 86
	CmdResetCommandPool        = 87
	CmdAllocateCommandBuffers  = 88
	CmdFreeCommandBuffers      = 89
	CmdBeginCommandBuffer      = 90
	CmdEndCommandBuffer        = 91
)

var commandNames = map[uint32]string{
	CmdCreateInstance:                    "CreateInstance",
	CmdDestroyInstance:                   "DestroyInstance",
	CmdEnumeratePhysicalDevices:          "EnumeratePhysicalDevices",
	CmdGetPhysicalDeviceFeatures:         "GetPhysicalDeviceFeatures",
	CmdGetPhysicalDeviceProperties:       "GetPhysicalDeviceProperties",
	CmdGetPhysicalDeviceMemoryProperties: "GetPhysicalDeviceMemoryProperties",
	CmdCreateDevice:                      "CreateDevice",
	CmdDestroyDevice:                     "DestroyDevice",
	CmdGetDeviceQueue:                    "GetDeviceQueue",
	CmdQueueSubmit:                       "QueueSubmit",
	CmdQueueWaitIdle:                     "QueueWaitIdle",
	CmdDeviceWaitIdle:                    "DeviceWaitIdle",
	CmdAllocateMemory:                    "AllocateMemory",
	CmdFreeMemory:                        "FreeMemory",
	CmdBindBufferMemory:                  "BindBufferMemory",
	CmdBindImageMemory:                   "BindImageMemory",
	CmdGetBufferMemoryRequirements:       "GetBufferMemoryRequirements",
	CmdGetImageMemoryRequirements:        "GetImageMemoryRequirements",
	CmdCreateFence:                       "CreateFence",
	CmdDestroyFence:                      "DestroyFence",
	CmdResetFences:                       "ResetFences",
	CmdGetFenceStatus:                    "GetFenceStatus",
	CmdWaitForFences:                     "WaitForFences",
	CmdCreateSemaphore:                   "CreateSemaphore",
	CmdDestroySemaphore:                  "DestroySemaphore",
	CmdCreateBuffer:                      "CreateBuffer",
	CmdDestroyBuffer:                     "DestroyBuffer",
	CmdCreateImage:                       "CreateImage",
	CmdDestroyImage:                      "DestroyImage",
	CmdCreateCommandPool:                 "CreateCommandPool",
	CmdDestroyCommandPool:                "DestroyCommandPool",
	CmdResetCommandPool:                  "ResetCommandPool",
	CmdAllocateCommandBuffers:            "AllocateCommandBuffers",
	CmdFreeCommandBuffers:                "FreeCommandBuffers",
	CmdBeginCommandBuffer:                "BeginCommandBuffer",
	CmdEndCommandBuffer:                  "EndCommandBuffer",
}

// CommandName renders a human-readable name for diagnostics. Unknown ids
// render as Unknown(0xHH) per SPEC_FULL.md §6.
func CommandName(id uint32) string {
	if name, ok := commandNames[id]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(0x%X)", id)
}
