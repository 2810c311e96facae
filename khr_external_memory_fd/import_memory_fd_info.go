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
	"github.com/vkngwrapper/extensions/v2/khr_external_memory_capabilities"
)

// ImportMemoryFdInfo chains into core1_0.MemoryAllocateInfo to wrap a received
// POSIX file descriptor into the new allocation. On success, ownership of the
// descriptor passes to the Vulkan driver: the application must not close it.
type ImportMemoryFdInfo struct {
	// HandleType is the handle type of Fd. It must match the handle type the
	// exporting process allocated with.
	HandleType khr_external_memory_capabilities.ExternalMemoryHandleTypeFlags
	// Fd is the external handle to import
	Fd int

	common.NextOptions
}

func (o ImportMemoryFdInfo) PopulateCPointer(allocator *cgoparam.Allocator, preallocatedPointer unsafe.Pointer, next unsafe.Pointer) (unsafe.Pointer, error) {
	if preallocatedPointer == unsafe.Pointer(nil) {
		preallocatedPointer = allocator.Malloc(C.sizeof_struct_VkImportMemoryFdInfoKHR)
	}

	info := (*C.VkImportMemoryFdInfoKHR)(preallocatedPointer)
	info.sType = C.VK_STRUCTURE_TYPE_IMPORT_MEMORY_FD_INFO_KHR
	info.pNext = next
	info.handleType = C.VkExternalMemoryHandleTypeFlagBits(o.HandleType)
	info.fd = C.int(o.Fd)

	return preallocatedPointer, nil
}
