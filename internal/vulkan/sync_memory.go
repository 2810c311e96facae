package vulkan

import (
	"unsafe"

	"github.com/antonio-lunarg/vk-external-memory-go/internal/utils"
	"github.com/pkg/errors"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/driver"
)

// SynchronizedMemory wraps a single core1_0.DeviceMemory that backs one shared
// resource, guarding mapping state and guaranteeing the memory is freed
// exactly once. Whether the memory was allocated locally (export side) or
// imported from a foreign fd (import side) makes no difference here- once
// AllocateMemory has returned, both are ordinary device memory to this
// process.
type SynchronizedMemory struct {
	mapReferences int
	mapData       unsafe.Pointer

	mapMutex utils.OptionalMutex
	memory   core1_0.DeviceMemory
	freed    bool

	allocationCallbacks *driver.AllocationCallbacks
}

func AllocateSynchronizedMemory(device core1_0.Device, useMutex bool, callbacks *driver.AllocationCallbacks, allocateInfo core1_0.MemoryAllocateInfo) (*SynchronizedMemory, common.VkResult, error) {
	memory, res, err := device.AllocateMemory(callbacks, allocateInfo)
	if err != nil {
		return nil, res, err
	}

	mem := &SynchronizedMemory{
		memory: memory,
		mapMutex: utils.OptionalMutex{
			UseMutex: useMutex,
		},
		allocationCallbacks: callbacks,
	}

	return mem, res, nil
}

func (m *SynchronizedMemory) VulkanDeviceMemory() core1_0.DeviceMemory {
	return m.memory
}

func (m *SynchronizedMemory) BindVulkanBuffer(offset int, buffer core1_0.Buffer) (common.VkResult, error) {
	m.mapMutex.Lock()
	defer m.mapMutex.Unlock()

	return buffer.BindBufferMemory(m.memory, offset)
}

func (m *SynchronizedMemory) BindVulkanImage(offset int, image core1_0.Image) (common.VkResult, error) {
	m.mapMutex.Lock()
	defer m.mapMutex.Unlock()

	return image.BindImageMemory(m.memory, offset)
}

func (m *SynchronizedMemory) MappedData() unsafe.Pointer {
	return m.mapData
}

func (m *SynchronizedMemory) Map(offset int, size int, flags core1_0.MemoryMapFlags) (unsafe.Pointer, common.VkResult, error) {
	m.mapMutex.Lock()
	defer m.mapMutex.Unlock()

	if m.mapReferences > 0 {
		m.mapReferences++
		if m.mapData == nil {
			return nil, core1_0.VKErrorUnknown, errors.New("the memory is showing existing mapping references, but no mapped memory")
		}

		return m.mapData, core1_0.VKSuccess, nil
	}

	mappedData, result, err := m.memory.Map(offset, size, flags)
	if err != nil {
		return nil, result, err
	}

	m.mapData = mappedData
	m.mapReferences = 1
	return mappedData, result, nil
}

func (m *SynchronizedMemory) Unmap() error {
	m.mapMutex.Lock()
	defer m.mapMutex.Unlock()

	if m.mapReferences < 1 {
		return errors.New("device memory is being unmapped but is not currently mapped")
	}

	m.mapReferences--
	if m.mapReferences == 0 {
		m.memory.Unmap()
		m.mapData = nil
	}

	return nil
}

func (m *SynchronizedMemory) FreeMemory() {
	m.mapMutex.Lock()
	defer m.mapMutex.Unlock()

	if m.freed {
		panic("attempted to free device memory for a shared resource twice")
	}
	m.freed = true

	m.memory.Free(m.allocationCallbacks)
}
