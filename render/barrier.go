package render

import (
	"github.com/vkngwrapper/core/v2/core1_0"
)

// ImageBarrier bundles a layout transition with the access masks and pipeline
// stages that order it, for the full-subresource single-mip single-layer
// images these samples work with.
type ImageBarrier struct {
	OldLayout core1_0.ImageLayout
	NewLayout core1_0.ImageLayout

	SrcAccessMask core1_0.AccessFlags
	DstAccessMask core1_0.AccessFlags

	SrcStageMask core1_0.PipelineStageFlags
	DstStageMask core1_0.PipelineStageFlags
}

// Record writes the barrier into the command buffer for the given image
func (b ImageBarrier) Record(commandBuffer core1_0.CommandBuffer, image core1_0.Image, aspectMask core1_0.ImageAspectFlags) error {
	return commandBuffer.CmdPipelineBarrier(
		b.SrcStageMask, b.DstStageMask, 0,
		nil, nil,
		[]core1_0.ImageMemoryBarrier{
			{
				OldLayout:           b.OldLayout,
				NewLayout:           b.NewLayout,
				SrcAccessMask:       b.SrcAccessMask,
				DstAccessMask:       b.DstAccessMask,
				SrcQueueFamilyIndex: -1,
				DstQueueFamilyIndex: -1,
				Image:               image,
				SubresourceRange: core1_0.ImageSubresourceRange{
					AspectMask:     aspectMask,
					BaseMipLevel:   0,
					LevelCount:     1,
					BaseArrayLayer: 0,
					LayerCount:     1,
				},
			},
		})
}
