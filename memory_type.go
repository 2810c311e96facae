package extmem

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
)

// FindMemoryTypeIndex locates the first device memory type that is permitted
// by typeBits and carries all of requiredFlags. The protocol requires
// host-visible and host-coherent memory on both sides so that the backing
// store stays interpretable across the process boundary.
//
// Failure is a configuration error: either the device cannot export
// host-visible memory at all, or the producer and consumer resource
// descriptions disagree. There is nothing to retry.
func FindMemoryTypeIndex(memoryProperties *core1_0.PhysicalDeviceMemoryProperties, typeBits uint32, requiredFlags core1_0.MemoryPropertyFlags) (int, common.VkResult, error) {
	for memTypeIndex, memType := range memoryProperties.MemoryTypes {
		memTypeBit := uint32(1 << memTypeIndex)

		if memTypeBit&typeBits == 0 {
			// This memory type is banned by the bitmask
			continue
		}

		if requiredFlags&memType.PropertyFlags != requiredFlags {
			// This memory type is missing required flags
			continue
		}

		return memTypeIndex, core1_0.VKSuccess, nil
	}

	return -1, core1_0.VKErrorFeatureNotPresent, errors.Newf(
		"no memory type satisfies mask 0x%x with properties %s- the exporting and importing resource descriptions may disagree",
		typeBits, requiredFlags.String())
}
