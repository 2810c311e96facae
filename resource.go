package extmem

import (
	"unsafe"

	"github.com/antonio-lunarg/vk-external-memory-go/internal/vulkan"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/driver"
)

// Resource is a process-local wrapper over a bound image or buffer and the
// device memory backing it. Each process owns its Resource objects
// exclusively- when the backing memory has crossed a process boundary via fd
// export and import, the two processes hold two independent Resource wrappers
// over the same kernel memory object, and destroying one does not invalidate
// the other (the kernel reference-counts the memory object).
type Resource struct {
	// pool is nil for imported resources, which are not allocated from the
	// exportable pool
	pool        *Pool
	description ResourceDescription

	image  core1_0.Image
	buffer core1_0.Buffer
	memory *vulkan.SynchronizedMemory

	allocationSize  int
	memoryTypeIndex int

	allocationCallbacks *driver.AllocationCallbacks

	destroyed bool
}

func (r *Resource) Kind() ResourceKind {
	return r.description.Kind
}

func (r *Resource) Description() ResourceDescription {
	return r.description
}

// VulkanImage returns the wrapped image, or nil for buffer resources
func (r *Resource) VulkanImage() core1_0.Image {
	return r.image
}

// VulkanBuffer returns the wrapped buffer, or nil for image resources
func (r *Resource) VulkanBuffer() core1_0.Buffer {
	return r.buffer
}

// Memory returns the device memory backing this resource
func (r *Resource) Memory() *vulkan.SynchronizedMemory {
	return r.memory
}

// AllocationSize is the byte size the driver reported for the backing
// allocation. It is at least Description().ByteSize() but may be larger due
// to row padding on linear images.
func (r *Resource) AllocationSize() int {
	return r.allocationSize
}

func (r *Resource) MemoryTypeIndex() int {
	return r.memoryTypeIndex
}

// Map maps the backing memory into the host address space. Valid because the
// protocol only allocates host-visible, host-coherent memory.
func (r *Resource) Map() (unsafe.Pointer, common.VkResult, error) {
	return r.memory.Map(0, r.allocationSize, 0)
}

func (r *Resource) Unmap() error {
	return r.memory.Unmap()
}

// Destroy releases the image or buffer and then frees the backing memory, in
// that order. It must be called exactly once, before the owning pool (if any)
// is destroyed.
func (r *Resource) Destroy() {
	if r.destroyed {
		panic("attempted to destroy a shared resource twice")
	}
	r.destroyed = true

	callbacks := r.allocationCallbacks
	if r.pool != nil {
		callbacks = r.pool.allocationCallbacks
	}

	if r.image != nil {
		r.image.Destroy(callbacks)
	}
	if r.buffer != nil {
		r.buffer.Destroy(callbacks)
	}

	r.memory.FreeMemory()

	if r.pool != nil {
		r.pool.removeBlockAllocation(r.allocationSize)
	}
}
