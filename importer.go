package extmem

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/driver"
	"github.com/vkngwrapper/extensions/v2/khr_external_memory"
	"github.com/vkngwrapper/extensions/v2/khr_external_memory_capabilities"
	"golang.org/x/exp/slog"

	"github.com/antonio-lunarg/vk-external-memory-go/internal/vulkan"
	"github.com/antonio-lunarg/vk-external-memory-go/khr_external_memory_fd"
)

// ImportState tracks whether an Importer has already consumed a descriptor
type ImportState uint32

const (
	// ImportIdle indicates no descriptor has been imported yet
	ImportIdle ImportState = iota
	// ImportDone indicates the descriptor has been wrapped into device memory
	ImportDone
)

var importStateMapping = make(map[ImportState]string)

func (s ImportState) String() string {
	return importStateMapping[s]
}

func init() {
	importStateMapping[ImportIdle] = "ImportIdle"
	importStateMapping[ImportDone] = "ImportDone"
}

// ImporterOptions contains optional settings when creating an Importer
type ImporterOptions struct {
	// RequiredProperties are the memory property flags the imported memory's
	// type must carry. When left at zero, host-visible plus host-coherent is
	// used, matching the exporting side's pool defaults.
	RequiredProperties core1_0.MemoryPropertyFlags

	// HandleType is the external-memory handle type the incoming descriptor
	// was exported with. When left at zero, the opaque fd handle type is used.
	HandleType khr_external_memory_capabilities.ExternalMemoryHandleTypeFlags

	// ExternallySynchronized disables internal locking on the imported
	// resource's memory wrapper
	ExternallySynchronized bool

	// VulkanCallbacks is an optional set of callbacks that will be executed
	// from Vulkan on memory imported through this Importer
	VulkanCallbacks *driver.AllocationCallbacks
}

// Importer turns a received opaque fd back into bound device memory. A single
// Importer consumes a single descriptor- the consumer process receives
// exactly one fd per sample run, and the one-shot guard lives here.
type Importer struct {
	logger         *slog.Logger
	device         core1_0.Device
	physicalDevice core1_0.PhysicalDevice
	extensionData  *vulkan.ExtensionData

	useMutex            bool
	allocationCallbacks *driver.AllocationCallbacks

	handleType         khr_external_memory_capabilities.ExternalMemoryHandleTypeFlags
	requiredProperties core1_0.MemoryPropertyFlags
	memoryProperties   *core1_0.PhysicalDeviceMemoryProperties

	state ImportState
}

// NewImporter creates a new Importer
//
// instance - The instance that owns the provided Device
//
// physicalDevice - The PhysicalDevice that owns the provided Device
//
// device - The Device the imported memory will be wrapped into
//
// options - Optional parameters: it is valid to leave all the fields blank
func NewImporter(logger *slog.Logger, instance core1_0.Instance, physicalDevice core1_0.PhysicalDevice, device core1_0.Device, options ImporterOptions) (*Importer, error) {
	extensionData := vulkan.NewExtensionData(device, instance)
	if !extensionData.ExternalMemory {
		return nil, errors.New("memory import requested, but neither core 1.1 nor the extension khr_external_memory is active")
	}

	importer := &Importer{
		logger:         logger,
		device:         device,
		physicalDevice: physicalDevice,
		extensionData:  extensionData,

		useMutex:            !options.ExternallySynchronized,
		allocationCallbacks: options.VulkanCallbacks,

		handleType:         options.HandleType,
		requiredProperties: options.RequiredProperties,
		memoryProperties:   physicalDevice.MemoryProperties(),
	}

	if importer.handleType == 0 {
		importer.handleType = khr_external_memory_capabilities.ExternalMemoryHandleTypeOpaqueFD
	}
	if importer.requiredProperties == 0 {
		importer.requiredProperties = core1_0.MemoryPropertyHostVisible | core1_0.MemoryPropertyHostCoherent
	}

	return importer, nil
}

// State reports whether a descriptor has been imported yet
func (i *Importer) State() ImportState {
	return i.state
}

// ImportImage creates a linear-tiled 2D image matching desc, wraps the
// received descriptor into device memory with an import chain and binds the
// image to it at offset 0.
//
// Ownership of fd passes to the driver when the allocation succeeds: the
// caller must not close it afterward. On failure the fd remains with the
// caller.
func (i *Importer) ImportImage(fd int, desc ResourceDescription, usage core1_0.ImageUsageFlags) (*Resource, common.VkResult, error) {
	i.logger.Debug("Importer::ImportImage")

	res, err := i.checkImport(fd, desc, ResourceKindImage)
	if err != nil {
		return nil, res, err
	}

	image, res, err := i.device.CreateImage(i.allocationCallbacks, core1_0.ImageCreateInfo{
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
		// Must match the exporting side: linear tiling only
		Tiling:        core1_0.ImageTilingLinear,
		Usage:         usage,
		SharingMode:   core1_0.SharingModeExclusive,
		InitialLayout: core1_0.ImageLayoutUndefined,
		NextOptions: common.NextOptions{
			Next: khr_external_memory.ExternalMemoryImageCreateInfo{
				HandleTypes: i.handleType,
			},
		},
	})
	if err != nil {
		return nil, res, err
	}

	memReqs := image.MemoryRequirements()
	memory, memoryTypeIndex, res, err := i.importMemory(fd, memReqs)
	if err != nil {
		image.Destroy(i.allocationCallbacks)
		return nil, res, err
	}

	res, err = memory.BindVulkanImage(0, image)
	if err != nil {
		memory.FreeMemory()
		image.Destroy(i.allocationCallbacks)
		return nil, res, err
	}

	i.state = ImportDone
	i.logger.Info("memory imported", slog.Int("fd", fd))

	return &Resource{
		description:         desc,
		image:               image,
		memory:              memory,
		allocationSize:      memReqs.Size,
		memoryTypeIndex:     memoryTypeIndex,
		allocationCallbacks: i.allocationCallbacks,
	}, res, nil
}

// ImportBuffer creates a buffer matching desc, wraps the received descriptor
// into device memory with an import chain and binds the buffer to it at
// offset 0. Descriptor ownership follows the same rules as ImportImage.
func (i *Importer) ImportBuffer(fd int, desc ResourceDescription, usage core1_0.BufferUsageFlags) (*Resource, common.VkResult, error) {
	i.logger.Debug("Importer::ImportBuffer")

	res, err := i.checkImport(fd, desc, ResourceKindBuffer)
	if err != nil {
		return nil, res, err
	}

	buffer, res, err := i.device.CreateBuffer(i.allocationCallbacks, core1_0.BufferCreateInfo{
		Size:        desc.BufferSize,
		Usage:       usage,
		SharingMode: core1_0.SharingModeExclusive,
		NextOptions: common.NextOptions{
			Next: khr_external_memory.ExternalMemoryBufferCreateInfo{
				HandleTypes: i.handleType,
			},
		},
	})
	if err != nil {
		return nil, res, err
	}

	memReqs := buffer.MemoryRequirements()
	memory, memoryTypeIndex, res, err := i.importMemory(fd, memReqs)
	if err != nil {
		buffer.Destroy(i.allocationCallbacks)
		return nil, res, err
	}

	res, err = memory.BindVulkanBuffer(0, buffer)
	if err != nil {
		memory.FreeMemory()
		buffer.Destroy(i.allocationCallbacks)
		return nil, res, err
	}

	i.state = ImportDone
	i.logger.Info("memory imported", slog.Int("fd", fd))

	return &Resource{
		description:         desc,
		buffer:              buffer,
		memory:              memory,
		allocationSize:      memReqs.Size,
		memoryTypeIndex:     memoryTypeIndex,
		allocationCallbacks: i.allocationCallbacks,
	}, res, nil
}

func (i *Importer) checkImport(fd int, desc ResourceDescription, expectedKind ResourceKind) (common.VkResult, error) {
	if i.state != ImportIdle {
		return core1_0.VKErrorUnknown, errors.Newf("attempted to import a descriptor twice (importer state is %s)", i.state.String())
	}
	if fd < 0 {
		return core1_0.VKErrorUnknown, errors.Newf("attempted to import an invalid descriptor %d- the transport receive was likely skipped or failed", fd)
	}
	if desc.Kind != expectedKind {
		return core1_0.VKErrorUnknown, errors.Newf("attempted to import a %s description as a %s", desc.Kind.String(), expectedKind.String())
	}

	err := desc.Validate()
	if err != nil {
		return core1_0.VKErrorUnknown, err
	}

	return core1_0.VKSuccess, nil
}

func (i *Importer) importMemory(fd int, memReqs *core1_0.MemoryRequirements) (*vulkan.SynchronizedMemory, int, common.VkResult, error) {
	memoryTypeIndex, res, err := FindMemoryTypeIndex(i.memoryProperties, memReqs.MemoryTypeBits, i.requiredProperties)
	if err != nil {
		return nil, -1, res, err
	}

	memory, res, err := vulkan.AllocateSynchronizedMemory(i.device, i.useMutex, i.allocationCallbacks,
		core1_0.MemoryAllocateInfo{
			AllocationSize:  memReqs.Size,
			MemoryTypeIndex: memoryTypeIndex,
			NextOptions: common.NextOptions{
				Next: khr_external_memory_fd.ImportMemoryFdInfo{
					HandleType: i.handleType,
					Fd:         fd,
				},
			},
		})
	if err != nil {
		return nil, -1, res, err
	}

	return memory, memoryTypeIndex, res, nil
}
