package khr_external_memory_fd

/*
#include <stdlib.h>
#include "vulkan/vulkan.h"
*/
import "C"

import (
	"unsafe"

	"github.com/CannibalVox/cgoparam"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/extensions/v2/khr_external_memory_capabilities"
)

// MemoryGetFdInfo contains the parameters of a memory fd export operation
type MemoryGetFdInfo struct {
	// Memory is the memory object from which the handle will be exported
	Memory core1_0.DeviceMemory
	// HandleType is the type of handle requested. The memory must have been
	// allocated with HandleType chained into its export options.
	HandleType khr_external_memory_capabilities.ExternalMemoryHandleTypeFlags

	common.NextOptions
}

func (o MemoryGetFdInfo) PopulateCPointer(allocator *cgoparam.Allocator, preallocatedPointer unsafe.Pointer, next unsafe.Pointer) (unsafe.Pointer, error) {
	if preallocatedPointer == unsafe.Pointer(nil) {
		preallocatedPointer = allocator.Malloc(C.sizeof_struct_VkMemoryGetFdInfoKHR)
	}

	info := (*C.VkMemoryGetFdInfoKHR)(preallocatedPointer)
	info.sType = C.VK_STRUCTURE_TYPE_MEMORY_GET_FD_INFO_KHR
	info.pNext = next
	info.memory = C.VkDeviceMemory(unsafe.Pointer(o.Memory.Handle()))
	info.handleType = C.VkExternalMemoryHandleTypeFlagBits(o.HandleType)

	return preallocatedPointer, nil
}
