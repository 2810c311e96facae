// Package khr_external_memory_fd wraps the fd half of the
// VK_KHR_external_memory_fd device extension: pulling an opaque POSIX file
// descriptor out of an exportable memory allocation, and the import options
// that wrap a received descriptor back into device memory.
package khr_external_memory_fd

//go:generate mockgen -source extension.go -destination ./mock_external_memory_fd/extension.go -package mock_external_memory_fd

import (
	"github.com/CannibalVox/cgoparam"
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"

	khr_external_memory_fd_driver "github.com/antonio-lunarg/vk-external-memory-go/khr_external_memory_fd/driver"
)

// Extension contains all commands for the khr_external_memory_fd extension
type Extension interface {
	// GetMemoryFd gets a POSIX file descriptor for a memory object. The
	// returned descriptor is owned by the caller.
	//
	// device - The Device that owns o.Memory
	//
	// o - Describes the memory object and the requested handle type
	GetMemoryFd(device core1_0.Device, o MemoryGetFdInfo) (int, common.VkResult, error)
}

// VulkanExtension is an implementation of the Extension interface that
// actually communicates with Vulkan
type VulkanExtension struct {
	driver khr_external_memory_fd_driver.Driver
}

// CreateExtensionFromDevice produces an Extension object from a Device with
// khr_external_memory_fd loaded. Returns nil when the extension is not active
// on the device.
func CreateExtensionFromDevice(device core1_0.Device) *VulkanExtension {
	if !device.IsDeviceExtensionActive(ExtensionName) {
		return nil
	}

	return CreateExtensionFromDriver(khr_external_memory_fd_driver.CreateDriverFromCore(device.Driver()))
}

// CreateExtensionFromDriver generates an Extension from a driver.Driver
// object- this is usually used in tests to build an Extension from a mock
// driver
func CreateExtensionFromDriver(driver khr_external_memory_fd_driver.Driver) *VulkanExtension {
	return &VulkanExtension{
		driver: driver,
	}
}

func (e *VulkanExtension) GetMemoryFd(device core1_0.Device, o MemoryGetFdInfo) (int, common.VkResult, error) {
	if o.Memory == nil {
		return -1, core1_0.VKErrorUnknown, errors.New("khr_external_memory_fd.MemoryGetFdInfo.Memory cannot be nil")
	}

	arena := cgoparam.GetAlloc()
	defer cgoparam.ReturnAlloc(arena)

	optionsPtr, err := common.AllocOptions(arena, o)
	if err != nil {
		return -1, core1_0.VKErrorUnknown, err
	}

	var fd int
	res, err := e.driver.VkGetMemoryFdKHR(device.Handle(),
		(*khr_external_memory_fd_driver.VkMemoryGetFdInfoKHR)(optionsPtr),
		&fd)
	if err != nil {
		return -1, res, err
	}

	return fd, res, nil
}
