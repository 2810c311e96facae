package extmem

import (
	"sync/atomic"

	"github.com/antonio-lunarg/vk-external-memory-go/internal/vulkan"
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/driver"
	"github.com/vkngwrapper/extensions/v2/khr_external_memory"
	"github.com/vkngwrapper/extensions/v2/khr_external_memory_capabilities"
	"golang.org/x/exp/slog"
)

// PoolCreateFlags indicate specific pool behaviors to activate or deactivate
type PoolCreateFlags int32

var poolCreateFlagsMapping = common.NewFlagStringMapping[PoolCreateFlags]()

func (f PoolCreateFlags) Register(str string) {
	poolCreateFlagsMapping.Register(f, str)
}
func (f PoolCreateFlags) String() string {
	return poolCreateFlagsMapping.FlagsToString(f)
}

const (
	// PoolCreateExternallySynchronized ensures that this pool and all resources created from it
	// will not be synchronized internally. The consumer must guarantee they are used from only one
	// thread at a time or are synchronized by some other mechanism.
	PoolCreateExternallySynchronized PoolCreateFlags = 1 << iota
)

func init() {
	PoolCreateExternallySynchronized.Register("PoolCreateExternallySynchronized")
}

// PoolCreateOptions contains optional settings when creating a Pool
type PoolCreateOptions struct {
	// Flags indicates specific pool behaviors to activate or deactivate
	Flags PoolCreateFlags

	// RequiredProperties are the memory property flags every allocation made
	// from this pool must carry. When left at zero, host-visible plus
	// host-coherent is used, the only combination the fd-sharing protocol
	// supports for linear resources.
	RequiredProperties core1_0.MemoryPropertyFlags

	// HandleType is the external-memory handle type allocations are flagged
	// with at allocation time. When left at zero, the opaque fd handle type is
	// used. The whole protocol is specified in terms of opaque fds, so there
	// is rarely a reason to set this.
	HandleType khr_external_memory_capabilities.ExternalMemoryHandleTypeFlags

	// VulkanCallbacks is an optional set of callbacks that will be executed from Vulkan on memory
	// created from this pool
	VulkanCallbacks *driver.AllocationCallbacks
}

// Pool allocates GPU memory whose backing store is flagged as exportable via
// an external-memory handle type. Exactly one Pool exists per producer
// process: it is created during sample setup and destroyed once at teardown,
// after every Resource created from it has been destroyed.
type Pool struct {
	logger         *slog.Logger
	device         core1_0.Device
	physicalDevice core1_0.PhysicalDevice
	extensionData  *vulkan.ExtensionData

	useMutex            bool
	allocationCallbacks *driver.AllocationCallbacks

	handleType         khr_external_memory_capabilities.ExternalMemoryHandleTypeFlags
	requiredProperties core1_0.MemoryPropertyFlags
	memoryProperties   *core1_0.PhysicalDeviceMemoryProperties

	blockCount int32
	blockBytes int64

	destroyed bool
}

// NewPool creates a new exportable memory pool
//
// instance - The instance that owns the provided Device
//
// physicalDevice - The PhysicalDevice that owns the provided Device
//
// device - The Device that exportable memory will be allocated into
//
// options - Optional parameters: it is valid to leave all the fields blank
func NewPool(logger *slog.Logger, instance core1_0.Instance, physicalDevice core1_0.PhysicalDevice, device core1_0.Device, options PoolCreateOptions) (*Pool, error) {
	extensionData := vulkan.NewExtensionData(device, instance)
	if !extensionData.ExternalMemory {
		return nil, errors.New("exportable memory requested, but neither core 1.1 nor the extension khr_external_memory is active")
	}

	pool := &Pool{
		logger:         logger,
		device:         device,
		physicalDevice: physicalDevice,
		extensionData:  extensionData,

		useMutex:            options.Flags&PoolCreateExternallySynchronized == 0,
		allocationCallbacks: options.VulkanCallbacks,

		handleType:         options.HandleType,
		requiredProperties: options.RequiredProperties,
		memoryProperties:   physicalDevice.MemoryProperties(),
	}

	if pool.handleType == 0 {
		pool.handleType = khr_external_memory_capabilities.ExternalMemoryHandleTypeOpaqueFD
	}
	if pool.requiredProperties == 0 {
		pool.requiredProperties = core1_0.MemoryPropertyHostVisible | core1_0.MemoryPropertyHostCoherent
	}

	return pool, nil
}

// ExtensionData exposes the detected external-memory capabilities of the
// device this pool allocates from
func (p *Pool) ExtensionData() *vulkan.ExtensionData {
	return p.extensionData
}

// HandleType is the external-memory handle type allocations from this pool
// are flagged with
func (p *Pool) HandleType() khr_external_memory_capabilities.ExternalMemoryHandleTypeFlags {
	return p.handleType
}

// CreateExportableImage creates a linear-tiled 2D image together with a
// dedicated exportable memory allocation and binds the two at offset 0.
// The image is created with an external-memory handle type chained into both
// the image and the allocation, so its backing store can later be pulled out
// as an opaque fd by an Exporter.
func (p *Pool) CreateExportableImage(desc ResourceDescription, usage core1_0.ImageUsageFlags) (*Resource, common.VkResult, error) {
	p.logger.Debug("Pool::CreateExportableImage")

	if p.destroyed {
		panic("attempted to create a resource from a destroyed pool")
	}
	if desc.Kind != ResourceKindImage {
		return nil, core1_0.VKErrorUnknown, errors.Newf("attempted to create an exportable image from a %s description", desc.Kind.String())
	}
	err := desc.Validate()
	if err != nil {
		return nil, core1_0.VKErrorUnknown, err
	}

	image, res, err := p.device.CreateImage(p.allocationCallbacks, core1_0.ImageCreateInfo{
		ImageType: core1_0.ImageType2D,
		Format:    desc.Format,
		Extent: core1_0.Extent3D{
			Width:  desc.Extent.Width,
			Height: desc.Extent.Height,
			Depth:  1,
		},
		MipLevels:   1,
		ArrayLayers: 1,
		Samples:     core1_0.Samples1,
		// Optimal tiling is not importable over an opaque fd
		Tiling:        core1_0.ImageTilingLinear,
		Usage:         usage,
		SharingMode:   core1_0.SharingModeExclusive,
		InitialLayout: core1_0.ImageLayoutUndefined,
		NextOptions: common.NextOptions{
			Next: khr_external_memory.ExternalMemoryImageCreateInfo{
				HandleTypes: p.handleType,
			},
		},
	})
	if err != nil {
		return nil, res, err
	}

	memReqs := image.MemoryRequirements()
	memory, memoryTypeIndex, res, err := p.allocateExportableMemory(memReqs)
	if err != nil {
		image.Destroy(p.allocationCallbacks)
		return nil, res, err
	}

	res, err = memory.BindVulkanImage(0, image)
	if err != nil {
		memory.FreeMemory()
		image.Destroy(p.allocationCallbacks)
		p.removeBlockAllocation(memReqs.Size)
		return nil, res, err
	}

	return &Resource{
		pool:            p,
		description:     desc,
		image:           image,
		memory:          memory,
		allocationSize:  memReqs.Size,
		memoryTypeIndex: memoryTypeIndex,
	}, res, nil
}

// CreateExportableBuffer creates a buffer together with a dedicated
// exportable memory allocation and binds the two at offset 0
func (p *Pool) CreateExportableBuffer(desc ResourceDescription, usage core1_0.BufferUsageFlags) (*Resource, common.VkResult, error) {
	p.logger.Debug("Pool::CreateExportableBuffer")

	if p.destroyed {
		panic("attempted to create a resource from a destroyed pool")
	}
	if desc.Kind != ResourceKindBuffer {
		return nil, core1_0.VKErrorUnknown, errors.Newf("attempted to create an exportable buffer from a %s description", desc.Kind.String())
	}
	err := desc.Validate()
	if err != nil {
		return nil, core1_0.VKErrorUnknown, err
	}

	buffer, res, err := p.device.CreateBuffer(p.allocationCallbacks, core1_0.BufferCreateInfo{
		Size:        desc.BufferSize,
		Usage:       usage,
		SharingMode: core1_0.SharingModeExclusive,
		NextOptions: common.NextOptions{
			Next: khr_external_memory.ExternalMemoryBufferCreateInfo{
				HandleTypes: p.handleType,
			},
		},
	})
	if err != nil {
		return nil, res, err
	}

	memReqs := buffer.MemoryRequirements()
	memory, memoryTypeIndex, res, err := p.allocateExportableMemory(memReqs)
	if err != nil {
		buffer.Destroy(p.allocationCallbacks)
		return nil, res, err
	}

	res, err = memory.BindVulkanBuffer(0, buffer)
	if err != nil {
		memory.FreeMemory()
		buffer.Destroy(p.allocationCallbacks)
		p.removeBlockAllocation(memReqs.Size)
		return nil, res, err
	}

	return &Resource{
		pool:            p,
		description:     desc,
		buffer:          buffer,
		memory:          memory,
		allocationSize:  memReqs.Size,
		memoryTypeIndex: memoryTypeIndex,
	}, res, nil
}

func (p *Pool) allocateExportableMemory(memReqs *core1_0.MemoryRequirements) (*vulkan.SynchronizedMemory, int, common.VkResult, error) {
	memoryTypeIndex, res, err := FindMemoryTypeIndex(p.memoryProperties, memReqs.MemoryTypeBits, p.requiredProperties)
	if err != nil {
		return nil, -1, res, err
	}

	memory, res, err := vulkan.AllocateSynchronizedMemory(p.device, p.useMutex, p.allocationCallbacks,
		core1_0.MemoryAllocateInfo{
			AllocationSize:  memReqs.Size,
			MemoryTypeIndex: memoryTypeIndex,
			NextOptions: common.NextOptions{
				Next: khr_external_memory.ExportMemoryAllocateInfo{
					HandleTypes: p.handleType,
				},
			},
		})
	if err != nil {
		return nil, -1, res, err
	}

	atomic.AddInt32(&p.blockCount, 1)
	atomic.AddInt64(&p.blockBytes, int64(memReqs.Size))

	return memory, memoryTypeIndex, res, nil
}

func (p *Pool) removeBlockAllocation(size int) {
	newBytes := atomic.AddInt64(&p.blockBytes, int64(-size))
	if newBytes < 0 {
		panic("block bytes for the exportable pool went negative")
	}

	newCount := atomic.AddInt32(&p.blockCount, -1)
	if newCount < 0 {
		panic("block count for the exportable pool went negative")
	}
}

// Destroy tears the pool down. Every Resource created from this pool must be
// destroyed first- destroying the pool out from under live resources is
// rejected rather than risking a use-after-free of bound memory. Destroying
// a pool twice is a programming error.
func (p *Pool) Destroy() error {
	p.logger.Debug("Pool::Destroy")

	if p.destroyed {
		panic("attempted to destroy an exportable memory pool twice")
	}

	liveBlocks := atomic.LoadInt32(&p.blockCount)
	if liveBlocks > 0 {
		return errors.Newf("attempted to destroy an exportable memory pool while %d resources are still alive", liveBlocks)
	}

	p.destroyed = true
	return nil
}
