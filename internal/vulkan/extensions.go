package vulkan

import (
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/extensions/v2/khr_external_memory"
	"github.com/vkngwrapper/extensions/v2/khr_external_memory_capabilities"

	"github.com/antonio-lunarg/vk-external-memory-go/khr_external_memory_fd"
)

type ExtensionData struct {
	// ExternalMemory is true when external-memory allocation info structs may
	// be chained into resource creation and memory allocation, either via
	// core 1.1 promotion or the khr_external_memory device extension
	ExternalMemory bool
	// ExternalMemoryCapabilities is true when the instance can report
	// external-memory handle capabilities
	ExternalMemoryCapabilities bool
	// ExternalMemoryFd performs the fd export half of the protocol. Nil when
	// khr_external_memory_fd is not active on the device.
	ExternalMemoryFd khr_external_memory_fd.Extension
}

func NewExtensionData(device core1_0.Device, instance core1_0.Instance) *ExtensionData {
	data := &ExtensionData{}

	// Apply device capabilities- add core or extension capabilities to the
	// protocol. Only the presence of the promoted structs matters here, so
	// the version check is enough and no promoted device commands are needed.
	if device.APIVersion().IsAtLeast(common.Vulkan1_1) {
		// Core 1.1 active - that means we can use khr_external_memory
		data.ExternalMemory = true
	}

	if instance.APIVersion().IsAtLeast(common.Vulkan1_1) {
		// Core 1.1 active on the instance side - that means we can use
		// khr_external_memory_capabilities
		data.ExternalMemoryCapabilities = true
	}

	// khr_external_memory if core 1.1 is not active
	if !data.ExternalMemory && device.IsDeviceExtensionActive(khr_external_memory.ExtensionName) {
		data.ExternalMemory = true
	}

	// khr_external_memory_capabilities if core 1.1 is not active
	if !data.ExternalMemoryCapabilities && instance.IsInstanceExtensionActive(khr_external_memory_capabilities.ExtensionName) {
		data.ExternalMemoryCapabilities = true
	}

	// khr_external_memory_fd has no core promotion- it must always be enabled
	// explicitly
	if device.IsDeviceExtensionActive(khr_external_memory_fd.ExtensionName) {
		data.ExternalMemoryFd = khr_external_memory_fd.CreateExtensionFromDevice(device)
	}

	return data
}
