package render

import (
	"fmt"

	extmem "github.com/antonio-lunarg/vk-external-memory-go"
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/extensions/v2/khr_swapchain"
	"golang.org/x/exp/slog"
)

// Direction selects which way pixel data moves between the render target's
// color attachment and the shared resource
type Direction uint32

const (
	// CopyToShared copies the rendered color attachment into the shared
	// resource each frame (the exporting process)
	CopyToShared Direction = iota
	// CopyFromShared copies the shared resource into the color attachment
	// each frame (the importing process)
	CopyFromShared
)

var directionMapping = make(map[Direction]string)

func (d Direction) String() string {
	return directionMapping[d]
}

func init() {
	directionMapping[CopyToShared] = "CopyToShared"
	directionMapping[CopyFromShared] = "CopyFromShared"
}

// Indices into the render target's view list. View 1 is always the
// depth-stencil attachment in the sample framework's render targets.
const (
	swapchainViewIndex    = 0
	depthStencilViewIndex = 1
)

// FrameCopier records the per-frame barrier and copy commands that move
// pixel data between the shared resource and the render target's color
// attachment, leaving the color attachment in the present layout.
//
// The copy covers the full extent with a byte-exact extent/format match
// between the two sides as an unchecked precondition against the peer: only
// the local halves of the contract can be asserted here.
type FrameCopier struct {
	logger    *slog.Logger
	direction Direction
	shared    *extmem.Resource
}

func NewFrameCopier(logger *slog.Logger, direction Direction, shared *extmem.Resource) *FrameCopier {
	return &FrameCopier{
		logger:    logger,
		direction: direction,
		shared:    shared,
	}
}

func (c *FrameCopier) Direction() Direction {
	return c.direction
}

// RecordFrame drives one frame: attachment layout setup, the scene render
// pass (an external collaborator, invoked through drawRenderPass), the
// shared-resource copy leg, and the transition of the swapchain image to the
// present layout. drawRenderPass may be nil when there is no scene to draw.
func (c *FrameCopier) RecordFrame(commandBuffer core1_0.CommandBuffer, target RenderTarget, drawRenderPass func(core1_0.CommandBuffer, RenderTarget) error) error {
	c.logger.Debug("FrameCopier::RecordFrame")

	images := target.Images()
	if len(images) < 2 {
		return errors.Newf("render target has %d attachments- a color and a depth-stencil attachment are required", len(images))
	}

	// Image 0 is the swapchain
	colorBarrier := ImageBarrier{
		OldLayout:     core1_0.ImageLayoutUndefined,
		NewLayout:     core1_0.ImageLayoutColorAttachmentOptimal,
		DstAccessMask: core1_0.AccessColorAttachmentWrite,
		SrcStageMask:  core1_0.PipelineStageColorAttachmentOutput,
		DstStageMask:  core1_0.PipelineStageColorAttachmentOutput,
	}

	err := colorBarrier.Record(commandBuffer, images[swapchainViewIndex], core1_0.ImageAspectColor)
	if err != nil {
		return err
	}
	target.SetLayout(swapchainViewIndex, colorBarrier.NewLayout)

	// Skip 1 as it is handled later as a depth-stencil attachment
	for i := 2; i < len(images); i++ {
		err = colorBarrier.Record(commandBuffer, images[i], core1_0.ImageAspectColor)
		if err != nil {
			return err
		}
		target.SetLayout(i, colorBarrier.NewLayout)
	}

	depthBarrier := ImageBarrier{
		OldLayout:     core1_0.ImageLayoutUndefined,
		NewLayout:     core1_0.ImageLayoutDepthStencilAttachmentOptimal,
		DstAccessMask: core1_0.AccessDepthStencilAttachmentRead | core1_0.AccessDepthStencilAttachmentWrite,
		SrcStageMask:  core1_0.PipelineStageTopOfPipe,
		DstStageMask:  core1_0.PipelineStageEarlyFragmentTests | core1_0.PipelineStageLateFragmentTests,
	}

	err = depthBarrier.Record(commandBuffer, images[depthStencilViewIndex], core1_0.ImageAspectDepth|core1_0.ImageAspectStencil)
	if err != nil {
		return err
	}
	target.SetLayout(depthStencilViewIndex, depthBarrier.NewLayout)

	if drawRenderPass != nil {
		err = drawRenderPass(commandBuffer, target)
		if err != nil {
			return err
		}
	}

	err = c.recordCopy(commandBuffer, target)
	if err != nil {
		return err
	}

	// Prepare target image for presentation
	presentBarrier := ImageBarrier{
		OldLayout:     target.Layout(swapchainViewIndex),
		NewLayout:     khr_swapchain.ImageLayoutPresentSrc,
		SrcAccessMask: core1_0.AccessTransferWrite,
		SrcStageMask:  core1_0.PipelineStageTransfer,
		DstStageMask:  core1_0.PipelineStageBottomOfPipe,
	}

	err = presentBarrier.Record(commandBuffer, images[swapchainViewIndex], core1_0.ImageAspectColor)
	if err != nil {
		return err
	}
	target.SetLayout(swapchainViewIndex, presentBarrier.NewLayout)

	return nil
}

func (c *FrameCopier) recordCopy(commandBuffer core1_0.CommandBuffer, target RenderTarget) error {
	extent := target.Extent()
	desc := c.shared.Description()

	if desc.Kind == extmem.ResourceKindImage && desc.Extent != extent {
		panic(fmt.Sprintf("shared image extent %dx%d does not match render target extent %dx%d",
			desc.Extent.Width, desc.Extent.Height, extent.Width, extent.Height))
	}

	colorImage := target.Images()[swapchainViewIndex]

	// Prepare color image for copy
	colorNewLayout := core1_0.ImageLayoutTransferSrcOptimal
	colorDstAccess := core1_0.AccessTransferRead
	if c.direction == CopyFromShared {
		colorNewLayout = core1_0.ImageLayoutTransferDstOptimal
		colorDstAccess = core1_0.AccessTransferWrite
	}

	colorBarrier := ImageBarrier{
		OldLayout:     target.Layout(swapchainViewIndex),
		NewLayout:     colorNewLayout,
		SrcAccessMask: core1_0.AccessColorAttachmentWrite,
		DstAccessMask: colorDstAccess,
		SrcStageMask:  core1_0.PipelineStageColorAttachmentOutput,
		DstStageMask:  core1_0.PipelineStageTransfer,
	}

	err := colorBarrier.Record(commandBuffer, colorImage, core1_0.ImageAspectColor)
	if err != nil {
		return err
	}
	target.SetLayout(swapchainViewIndex, colorBarrier.NewLayout)

	if c.shared.Kind() == extmem.ResourceKindImage {
		err = c.prepareSharedImage(commandBuffer)
		if err != nil {
			return err
		}
	}

	switch {
	case c.shared.Kind() == extmem.ResourceKindImage && c.direction == CopyToShared:
		return commandBuffer.CmdCopyImage(
			colorImage, core1_0.ImageLayoutTransferSrcOptimal,
			c.shared.VulkanImage(), core1_0.ImageLayoutTransferDstOptimal,
			[]core1_0.ImageCopy{fullImageCopy(extent)})
	case c.shared.Kind() == extmem.ResourceKindImage && c.direction == CopyFromShared:
		return commandBuffer.CmdCopyImage(
			c.shared.VulkanImage(), core1_0.ImageLayoutTransferSrcOptimal,
			colorImage, core1_0.ImageLayoutTransferDstOptimal,
			[]core1_0.ImageCopy{fullImageCopy(extent)})
	case c.direction == CopyToShared:
		return commandBuffer.CmdCopyImageToBuffer(
			colorImage, core1_0.ImageLayoutTransferSrcOptimal,
			c.shared.VulkanBuffer(),
			[]core1_0.BufferImageCopy{fullBufferImageCopy(extent)})
	default:
		return commandBuffer.CmdCopyBufferToImage(
			c.shared.VulkanBuffer(),
			colorImage, core1_0.ImageLayoutTransferDstOptimal,
			[]core1_0.BufferImageCopy{fullBufferImageCopy(extent)})
	}
}

// prepareSharedImage moves the shared image into the transfer layout the copy
// needs. The previous frame's contents are irrelevant on both sides, so the
// old layout is always undefined.
func (c *FrameCopier) prepareSharedImage(commandBuffer core1_0.CommandBuffer) error {
	newLayout := core1_0.ImageLayoutTransferDstOptimal
	dstAccess := core1_0.AccessTransferWrite
	if c.direction == CopyFromShared {
		newLayout = core1_0.ImageLayoutTransferSrcOptimal
		dstAccess = core1_0.AccessTransferRead
	}

	barrier := ImageBarrier{
		OldLayout:     core1_0.ImageLayoutUndefined,
		NewLayout:     newLayout,
		DstAccessMask: dstAccess,
		SrcStageMask:  core1_0.PipelineStageTopOfPipe,
		DstStageMask:  core1_0.PipelineStageTransfer,
	}

	return barrier.Record(commandBuffer, c.shared.VulkanImage(), core1_0.ImageAspectColor)
}

func fullImageCopy(extent core1_0.Extent2D) core1_0.ImageCopy {
	subresource := core1_0.ImageSubresourceLayers{
		AspectMask:     core1_0.ImageAspectColor,
		MipLevel:       0,
		BaseArrayLayer: 0,
		LayerCount:     1,
	}

	return core1_0.ImageCopy{
		SrcSubresource: subresource,
		DstSubresource: subresource,
		Extent: core1_0.Extent3D{
			Width:  extent.Width,
			Height: extent.Height,
			Depth:  1,
		},
	}
}

func fullBufferImageCopy(extent core1_0.Extent2D) core1_0.BufferImageCopy {
	return core1_0.BufferImageCopy{
		ImageSubresource: core1_0.ImageSubresourceLayers{
			AspectMask:     core1_0.ImageAspectColor,
			MipLevel:       0,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
		ImageExtent: core1_0.Extent3D{
			Width:  extent.Width,
			Height: extent.Height,
			Depth:  1,
		},
	}
}
