package extmem

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/core1_0"
)

// ResourceKind selects whether a shared resource is backed by a Vulkan image
// or a Vulkan buffer
type ResourceKind uint32

const (
	// ResourceKindImage indicates a 2D linear-tiled image resource
	ResourceKindImage ResourceKind = iota
	// ResourceKindBuffer indicates a plain buffer resource
	ResourceKindBuffer
)

var resourceKindMapping = make(map[ResourceKind]string)

func (k ResourceKind) String() string {
	return resourceKindMapping[k]
}

func init() {
	resourceKindMapping[ResourceKindImage] = "ResourceKindImage"
	resourceKindMapping[ResourceKindBuffer] = "ResourceKindBuffer"
}

// ResourceDescription is the out-of-band contract between the exporting and
// importing process. Both sides must build it with identical values: it is
// never transmitted or negotiated at runtime, and disagreement surfaces as a
// fatal allocation failure on the importing side.
type ResourceDescription struct {
	Kind ResourceKind

	// Extent is the image extent in pixels. Image resources only.
	Extent core1_0.Extent2D
	// Format is the image pixel format. Image resources only.
	Format core1_0.Format

	// BufferSize is the buffer byte size. Buffer resources only.
	BufferSize int
}

const imageChannelBytes = 4

// ByteSize returns the byte size of the backing store the description calls
// for. Image sizes assume a 4-channel 1-byte-per-channel format, matching the
// swapchain formats these samples share.
func (d ResourceDescription) ByteSize() int {
	if d.Kind == ResourceKindBuffer {
		return d.BufferSize
	}

	return d.Extent.Width * d.Extent.Height * imageChannelBytes
}

// Validate checks the description for values the export/import mechanism
// cannot represent. Only linear-tiled 2D color images and plain buffers can
// travel over an opaque fd in this protocol, so there is deliberately no
// tiling or dimensionality knob to get wrong.
func (d ResourceDescription) Validate() error {
	switch d.Kind {
	case ResourceKindImage:
		if d.Extent.Width < 1 || d.Extent.Height < 1 {
			return errors.Newf("image resource described with empty extent %dx%d", d.Extent.Width, d.Extent.Height)
		}
		if d.Format == core1_0.FormatUndefined {
			return errors.New("image resource described with an undefined format")
		}
	case ResourceKindBuffer:
		if d.BufferSize < 1 {
			return errors.Newf("buffer resource described with non-positive size %d", d.BufferSize)
		}
	default:
		return errors.Newf("unknown resource kind %d", d.Kind)
	}

	return nil
}
