package khr_external_memory_fd

/*
#include <stdlib.h>
#include "vulkan/vulkan.h"
*/
import "C"

const (
	// ExtensionName is "VK_KHR_external_memory_fd"
	ExtensionName string = C.VK_KHR_EXTERNAL_MEMORY_FD_EXTENSION_NAME
)
