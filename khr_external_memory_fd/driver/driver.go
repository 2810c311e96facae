package khr_external_memory_fd_driver

/*
#include <stdlib.h>
#include "../vulkan/vulkan.h"

VkResult cgoGetMemoryFdKHR(PFN_vkGetMemoryFdKHR fn, VkDevice device, VkMemoryGetFdInfoKHR *pGetFdInfo, int *pFd) {
	return fn(device, pGetFdInfo, pFd);
}
*/
import "C"

import (
	"unsafe"

	"github.com/CannibalVox/cgoparam"
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/driver"
)

type VkMemoryGetFdInfoKHR C.VkMemoryGetFdInfoKHR

// Driver executes the raw khr_external_memory_fd commands against a Vulkan
// device driver
type Driver interface {
	VkGetMemoryFdKHR(device driver.VkDevice, pGetFdInfo *VkMemoryGetFdInfoKHR, pFd *int) (common.VkResult, error)
}

// CDriver is an implementation of the Driver interface that actually
// communicates with Vulkan
type CDriver struct {
	coreDriver driver.Driver

	getMemoryFd C.PFN_vkGetMemoryFdKHR
}

// CreateDriverFromCore loads the extension's command pointers from a core
// Vulkan driver
func CreateDriverFromCore(coreDriver driver.Driver) *CDriver {
	arena := cgoparam.GetAlloc()
	defer cgoparam.ReturnAlloc(arena)

	return &CDriver{
		coreDriver: coreDriver,

		getMemoryFd: (C.PFN_vkGetMemoryFdKHR)(coreDriver.LoadProcAddr((*driver.Char)(arena.CString("vkGetMemoryFdKHR")))),
	}
}

func (d *CDriver) VkGetMemoryFdKHR(device driver.VkDevice, pGetFdInfo *VkMemoryGetFdInfoKHR, pFd *int) (common.VkResult, error) {
	if d.getMemoryFd == nil {
		return core1_0.VKErrorUnknown, errors.New("attempt to call extension method vkGetMemoryFdKHR when extension not present")
	}

	var fd C.int
	res := common.VkResult(C.cgoGetMemoryFdKHR(d.getMemoryFd,
		C.VkDevice(unsafe.Pointer(device)),
		(*C.VkMemoryGetFdInfoKHR)(pGetFdInfo),
		&fd))
	*pFd = int(fd)

	return res, res.ToError()
}
