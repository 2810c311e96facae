package render

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/mocks"
	"github.com/vkngwrapper/extensions/v2/khr_swapchain"
	"github.com/golang/mock/gomock"
	"golang.org/x/exp/slog"

	extmem "github.com/antonio-lunarg/vk-external-memory-go"
	"github.com/antonio-lunarg/vk-external-memory-go/internal/testrig"
	"github.com/antonio-lunarg/vk-external-memory-go/khr_external_memory_fd"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var testExtent = core1_0.Extent2D{Width: 800, Height: 600}

type fakeRenderTarget struct {
	*LayoutTracker

	images []core1_0.Image
	extent core1_0.Extent2D
}

func newFakeRenderTarget(extent core1_0.Extent2D, images ...core1_0.Image) *fakeRenderTarget {
	return &fakeRenderTarget{
		LayoutTracker: NewLayoutTracker(len(images)),

		images: images,
		extent: extent,
	}
}

func (f *fakeRenderTarget) Images() []core1_0.Image {
	return f.images
}

func (f *fakeRenderTarget) Views() []core1_0.ImageView {
	return nil
}

func (f *fakeRenderTarget) Extent() core1_0.Extent2D {
	return f.extent
}

// newSharedResource builds a resource over a fully mocked device so the
// copier has a real extmem.Resource to copy against
func newSharedResource(t *testing.T, ctrl *gomock.Controller, desc extmem.ResourceDescription) (*extmem.Resource, core1_0.Image, core1_0.Buffer) {
	instance, physicalDevice, device := testrig.MockRig(ctrl, common.Vulkan1_1, []string{},
		[]string{khr_external_memory_fd.ExtensionName})

	physicalDevice.EXPECT().MemoryProperties().Return(&core1_0.PhysicalDeviceMemoryProperties{
		MemoryTypes: []core1_0.MemoryType{
			{
				PropertyFlags: core1_0.MemoryPropertyHostVisible | core1_0.MemoryPropertyHostCoherent,
				HeapIndex:     0,
			},
		},
		MemoryHeaps: []core1_0.MemoryHeap{
			{
				Size:  1000000000,
				Flags: 0,
			},
		},
	}).AnyTimes()

	pool, err := extmem.NewPool(testLogger(), instance, physicalDevice, device, extmem.PoolCreateOptions{})
	require.NoError(t, err)

	memory := mocks.EasyMockDeviceMemory(ctrl)
	device.EXPECT().AllocateMemory(gomock.Nil(), gomock.Any()).Return(memory, core1_0.VKSuccess, nil)

	if desc.Kind == extmem.ResourceKindImage {
		image := mocks.EasyMockImage(ctrl)
		device.EXPECT().CreateImage(gomock.Nil(), gomock.Any()).Return(image, core1_0.VKSuccess, nil)
		image.EXPECT().MemoryRequirements().Return(&core1_0.MemoryRequirements{
			Size:           desc.ByteSize(),
			Alignment:      4,
			MemoryTypeBits: 0b1,
		})
		image.EXPECT().BindImageMemory(memory, 0).Return(core1_0.VKSuccess, nil)

		resource, _, err := pool.CreateExportableImage(desc, core1_0.ImageUsageTransferDst)
		require.NoError(t, err)
		return resource, image, nil
	}

	buffer := mocks.EasyMockBuffer(ctrl)
	device.EXPECT().CreateBuffer(gomock.Nil(), gomock.Any()).Return(buffer, core1_0.VKSuccess, nil)
	buffer.EXPECT().MemoryRequirements().Return(&core1_0.MemoryRequirements{
		Size:           desc.ByteSize(),
		Alignment:      4,
		MemoryTypeBits: 0b1,
	})
	buffer.EXPECT().BindBufferMemory(memory, 0).Return(core1_0.VKSuccess, nil)

	resource, _, err := pool.CreateExportableBuffer(desc, core1_0.BufferUsageTransferDst)
	require.NoError(t, err)
	return resource, nil, buffer
}

func imageCopyRegions() []core1_0.ImageCopy {
	subresource := core1_0.ImageSubresourceLayers{
		AspectMask: core1_0.ImageAspectColor,
		LayerCount: 1,
	}

	return []core1_0.ImageCopy{
		{
			SrcSubresource: subresource,
			DstSubresource: subresource,
			Extent: core1_0.Extent3D{
				Width:  testExtent.Width,
				Height: testExtent.Height,
				Depth:  1,
			},
		},
	}
}

func bufferImageCopyRegions() []core1_0.BufferImageCopy {
	return []core1_0.BufferImageCopy{
		{
			ImageSubresource: core1_0.ImageSubresourceLayers{
				AspectMask: core1_0.ImageAspectColor,
				LayerCount: 1,
			},
			ImageExtent: core1_0.Extent3D{
				Width:  testExtent.Width,
				Height: testExtent.Height,
				Depth:  1,
			},
		},
	}
}

func expectBarrier(commandBuffer *mocks.MockCommandBuffer, image core1_0.Image, aspectMask core1_0.ImageAspectFlags, barrier ImageBarrier) *gomock.Call {
	return commandBuffer.EXPECT().CmdPipelineBarrier(
		barrier.SrcStageMask, barrier.DstStageMask, core1_0.DependencyFlags(0),
		gomock.Nil(), gomock.Nil(),
		[]core1_0.ImageMemoryBarrier{
			{
				OldLayout:           barrier.OldLayout,
				NewLayout:           barrier.NewLayout,
				SrcAccessMask:       barrier.SrcAccessMask,
				DstAccessMask:       barrier.DstAccessMask,
				SrcQueueFamilyIndex: -1,
				DstQueueFamilyIndex: -1,
				Image:               image,
				SubresourceRange: core1_0.ImageSubresourceRange{
					AspectMask: aspectMask,
					LevelCount: 1,
					LayerCount: 1,
				},
			},
		}).Return(nil)
}

func expectFrameSetup(commandBuffer *mocks.MockCommandBuffer, colorImage core1_0.Image, depthImage core1_0.Image) []*gomock.Call {
	colorCall := expectBarrier(commandBuffer, colorImage, core1_0.ImageAspectColor, ImageBarrier{
		OldLayout:     core1_0.ImageLayoutUndefined,
		NewLayout:     core1_0.ImageLayoutColorAttachmentOptimal,
		DstAccessMask: core1_0.AccessColorAttachmentWrite,
		SrcStageMask:  core1_0.PipelineStageColorAttachmentOutput,
		DstStageMask:  core1_0.PipelineStageColorAttachmentOutput,
	})

	depthCall := expectBarrier(commandBuffer, depthImage, core1_0.ImageAspectDepth|core1_0.ImageAspectStencil, ImageBarrier{
		OldLayout:     core1_0.ImageLayoutUndefined,
		NewLayout:     core1_0.ImageLayoutDepthStencilAttachmentOptimal,
		DstAccessMask: core1_0.AccessDepthStencilAttachmentRead | core1_0.AccessDepthStencilAttachmentWrite,
		SrcStageMask:  core1_0.PipelineStageTopOfPipe,
		DstStageMask:  core1_0.PipelineStageEarlyFragmentTests | core1_0.PipelineStageLateFragmentTests,
	})

	return []*gomock.Call{colorCall, depthCall}
}

func TestFrameCopierCopyImageToShared(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	shared, sharedImage, _ := newSharedResource(t, ctrl, extmem.ResourceDescription{
		Kind:   extmem.ResourceKindImage,
		Extent: testExtent,
		Format: core1_0.FormatB8G8R8A8UnsignedNormalized,
	})

	colorImage := mocks.EasyMockImage(ctrl)
	depthImage := mocks.EasyMockImage(ctrl)
	target := newFakeRenderTarget(testExtent, colorImage, depthImage)

	commandBuffer := mocks.EasyMockCommandBuffer(ctrl)

	setup := expectFrameSetup(commandBuffer, colorImage, depthImage)

	colorToSrc := expectBarrier(commandBuffer, colorImage, core1_0.ImageAspectColor, ImageBarrier{
		OldLayout:     core1_0.ImageLayoutColorAttachmentOptimal,
		NewLayout:     core1_0.ImageLayoutTransferSrcOptimal,
		SrcAccessMask: core1_0.AccessColorAttachmentWrite,
		DstAccessMask: core1_0.AccessTransferRead,
		SrcStageMask:  core1_0.PipelineStageColorAttachmentOutput,
		DstStageMask:  core1_0.PipelineStageTransfer,
	})

	sharedToDst := expectBarrier(commandBuffer, sharedImage, core1_0.ImageAspectColor, ImageBarrier{
		OldLayout:     core1_0.ImageLayoutUndefined,
		NewLayout:     core1_0.ImageLayoutTransferDstOptimal,
		DstAccessMask: core1_0.AccessTransferWrite,
		SrcStageMask:  core1_0.PipelineStageTopOfPipe,
		DstStageMask:  core1_0.PipelineStageTransfer,
	})

	copyCall := commandBuffer.EXPECT().CmdCopyImage(
		colorImage, core1_0.ImageLayoutTransferSrcOptimal,
		sharedImage, core1_0.ImageLayoutTransferDstOptimal,
		imageCopyRegions()).Return(nil)

	presentCall := expectBarrier(commandBuffer, colorImage, core1_0.ImageAspectColor, ImageBarrier{
		OldLayout:     core1_0.ImageLayoutTransferSrcOptimal,
		NewLayout:     khr_swapchain.ImageLayoutPresentSrc,
		SrcAccessMask: core1_0.AccessTransferWrite,
		SrcStageMask:  core1_0.PipelineStageTransfer,
		DstStageMask:  core1_0.PipelineStageBottomOfPipe,
	})

	gomock.InOrder(setup[0], setup[1], colorToSrc, sharedToDst, copyCall, presentCall)

	drawCalled := false
	copier := NewFrameCopier(testLogger(), CopyToShared, shared)
	err := copier.RecordFrame(commandBuffer, target, func(cb core1_0.CommandBuffer, rt RenderTarget) error {
		drawCalled = true
		require.Equal(t, core1_0.ImageLayoutColorAttachmentOptimal, rt.Layout(0))
		require.Equal(t, core1_0.ImageLayoutDepthStencilAttachmentOptimal, rt.Layout(1))
		return nil
	})
	require.NoError(t, err)
	require.True(t, drawCalled)
	require.Equal(t, khr_swapchain.ImageLayoutPresentSrc, target.Layout(0))
}

func TestFrameCopierCopyImageFromShared(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	shared, sharedImage, _ := newSharedResource(t, ctrl, extmem.ResourceDescription{
		Kind:   extmem.ResourceKindImage,
		Extent: testExtent,
		Format: core1_0.FormatB8G8R8A8UnsignedNormalized,
	})

	colorImage := mocks.EasyMockImage(ctrl)
	depthImage := mocks.EasyMockImage(ctrl)
	target := newFakeRenderTarget(testExtent, colorImage, depthImage)

	commandBuffer := mocks.EasyMockCommandBuffer(ctrl)

	setup := expectFrameSetup(commandBuffer, colorImage, depthImage)

	colorToDst := expectBarrier(commandBuffer, colorImage, core1_0.ImageAspectColor, ImageBarrier{
		OldLayout:     core1_0.ImageLayoutColorAttachmentOptimal,
		NewLayout:     core1_0.ImageLayoutTransferDstOptimal,
		SrcAccessMask: core1_0.AccessColorAttachmentWrite,
		DstAccessMask: core1_0.AccessTransferWrite,
		SrcStageMask:  core1_0.PipelineStageColorAttachmentOutput,
		DstStageMask:  core1_0.PipelineStageTransfer,
	})

	sharedToSrc := expectBarrier(commandBuffer, sharedImage, core1_0.ImageAspectColor, ImageBarrier{
		OldLayout:     core1_0.ImageLayoutUndefined,
		NewLayout:     core1_0.ImageLayoutTransferSrcOptimal,
		DstAccessMask: core1_0.AccessTransferRead,
		SrcStageMask:  core1_0.PipelineStageTopOfPipe,
		DstStageMask:  core1_0.PipelineStageTransfer,
	})

	copyCall := commandBuffer.EXPECT().CmdCopyImage(
		sharedImage, core1_0.ImageLayoutTransferSrcOptimal,
		colorImage, core1_0.ImageLayoutTransferDstOptimal,
		imageCopyRegions()).Return(nil)

	presentCall := expectBarrier(commandBuffer, colorImage, core1_0.ImageAspectColor, ImageBarrier{
		OldLayout:     core1_0.ImageLayoutTransferDstOptimal,
		NewLayout:     khr_swapchain.ImageLayoutPresentSrc,
		SrcAccessMask: core1_0.AccessTransferWrite,
		SrcStageMask:  core1_0.PipelineStageTransfer,
		DstStageMask:  core1_0.PipelineStageBottomOfPipe,
	})

	gomock.InOrder(setup[0], setup[1], colorToDst, sharedToSrc, copyCall, presentCall)

	copier := NewFrameCopier(testLogger(), CopyFromShared, shared)
	err := copier.RecordFrame(commandBuffer, target, nil)
	require.NoError(t, err)
	require.Equal(t, khr_swapchain.ImageLayoutPresentSrc, target.Layout(0))
}

func TestFrameCopierCopyBufferToShared(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	shared, _, sharedBuffer := newSharedResource(t, ctrl, extmem.ResourceDescription{
		Kind:       extmem.ResourceKindBuffer,
		BufferSize: testExtent.Width * testExtent.Height * 4,
	})

	colorImage := mocks.EasyMockImage(ctrl)
	depthImage := mocks.EasyMockImage(ctrl)
	target := newFakeRenderTarget(testExtent, colorImage, depthImage)

	commandBuffer := mocks.EasyMockCommandBuffer(ctrl)

	setup := expectFrameSetup(commandBuffer, colorImage, depthImage)

	colorToSrc := expectBarrier(commandBuffer, colorImage, core1_0.ImageAspectColor, ImageBarrier{
		OldLayout:     core1_0.ImageLayoutColorAttachmentOptimal,
		NewLayout:     core1_0.ImageLayoutTransferSrcOptimal,
		SrcAccessMask: core1_0.AccessColorAttachmentWrite,
		DstAccessMask: core1_0.AccessTransferRead,
		SrcStageMask:  core1_0.PipelineStageColorAttachmentOutput,
		DstStageMask:  core1_0.PipelineStageTransfer,
	})

	// Buffers have no layout, so the only copy-leg barrier is on the color
	// image
	copyCall := commandBuffer.EXPECT().CmdCopyImageToBuffer(
		colorImage, core1_0.ImageLayoutTransferSrcOptimal,
		sharedBuffer,
		bufferImageCopyRegions()).Return(nil)

	presentCall := expectBarrier(commandBuffer, colorImage, core1_0.ImageAspectColor, ImageBarrier{
		OldLayout:     core1_0.ImageLayoutTransferSrcOptimal,
		NewLayout:     khr_swapchain.ImageLayoutPresentSrc,
		SrcAccessMask: core1_0.AccessTransferWrite,
		SrcStageMask:  core1_0.PipelineStageTransfer,
		DstStageMask:  core1_0.PipelineStageBottomOfPipe,
	})

	gomock.InOrder(setup[0], setup[1], colorToSrc, copyCall, presentCall)

	copier := NewFrameCopier(testLogger(), CopyToShared, shared)
	err := copier.RecordFrame(commandBuffer, target, nil)
	require.NoError(t, err)
}

func TestFrameCopierCopyBufferFromShared(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	shared, _, sharedBuffer := newSharedResource(t, ctrl, extmem.ResourceDescription{
		Kind:       extmem.ResourceKindBuffer,
		BufferSize: testExtent.Width * testExtent.Height * 4,
	})

	colorImage := mocks.EasyMockImage(ctrl)
	depthImage := mocks.EasyMockImage(ctrl)
	target := newFakeRenderTarget(testExtent, colorImage, depthImage)

	commandBuffer := mocks.EasyMockCommandBuffer(ctrl)

	setup := expectFrameSetup(commandBuffer, colorImage, depthImage)

	colorToDst := expectBarrier(commandBuffer, colorImage, core1_0.ImageAspectColor, ImageBarrier{
		OldLayout:     core1_0.ImageLayoutColorAttachmentOptimal,
		NewLayout:     core1_0.ImageLayoutTransferDstOptimal,
		SrcAccessMask: core1_0.AccessColorAttachmentWrite,
		DstAccessMask: core1_0.AccessTransferWrite,
		SrcStageMask:  core1_0.PipelineStageColorAttachmentOutput,
		DstStageMask:  core1_0.PipelineStageTransfer,
	})

	copyCall := commandBuffer.EXPECT().CmdCopyBufferToImage(
		sharedBuffer,
		colorImage, core1_0.ImageLayoutTransferDstOptimal,
		bufferImageCopyRegions()).Return(nil)

	presentCall := expectBarrier(commandBuffer, colorImage, core1_0.ImageAspectColor, ImageBarrier{
		OldLayout:     core1_0.ImageLayoutTransferDstOptimal,
		NewLayout:     khr_swapchain.ImageLayoutPresentSrc,
		SrcAccessMask: core1_0.AccessTransferWrite,
		SrcStageMask:  core1_0.PipelineStageTransfer,
		DstStageMask:  core1_0.PipelineStageBottomOfPipe,
	})

	gomock.InOrder(setup[0], setup[1], colorToDst, copyCall, presentCall)

	copier := NewFrameCopier(testLogger(), CopyFromShared, shared)
	err := copier.RecordFrame(commandBuffer, target, nil)
	require.NoError(t, err)
	require.Equal(t, khr_swapchain.ImageLayoutPresentSrc, target.Layout(0))
}

func TestFrameCopierExtentMismatchPanics(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	shared, _, _ := newSharedResource(t, ctrl, extmem.ResourceDescription{
		Kind:   extmem.ResourceKindImage,
		Extent: core1_0.Extent2D{Width: 1024, Height: 768},
		Format: core1_0.FormatB8G8R8A8UnsignedNormalized,
	})

	colorImage := mocks.EasyMockImage(ctrl)
	depthImage := mocks.EasyMockImage(ctrl)
	target := newFakeRenderTarget(testExtent, colorImage, depthImage)

	commandBuffer := mocks.EasyMockCommandBuffer(ctrl)
	commandBuffer.EXPECT().CmdPipelineBarrier(
		gomock.Any(), gomock.Any(), gomock.Any(),
		gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	copier := NewFrameCopier(testLogger(), CopyToShared, shared)
	require.Panics(t, func() {
		_ = copier.RecordFrame(commandBuffer, target, nil)
	})
}

func TestFrameCopierRequiresDepthAttachment(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	shared, _, _ := newSharedResource(t, ctrl, extmem.ResourceDescription{
		Kind:   extmem.ResourceKindImage,
		Extent: testExtent,
		Format: core1_0.FormatB8G8R8A8UnsignedNormalized,
	})

	colorImage := mocks.EasyMockImage(ctrl)
	target := newFakeRenderTarget(testExtent, colorImage)

	commandBuffer := mocks.EasyMockCommandBuffer(ctrl)

	copier := NewFrameCopier(testLogger(), CopyToShared, shared)
	err := copier.RecordFrame(commandBuffer, target, nil)
	require.Error(t, err)
}
