// Package sample wires the exportable-memory pool, the fd transport and the
// per-frame copier into the two halves of a cross-process sharing demo: an
// exporting producer and an importing consumer. The host framework drives
// each half through exactly two hooks, Prepare and Update. Everything beyond
// those hooks (windowing, swapchain management, scene content) stays behind
// the RenderContext collaborator.
package sample

import (
	"github.com/vkngwrapper/core/v2/core1_0"

	"github.com/antonio-lunarg/vk-external-memory-go/render"
)

// DefaultSocketPath is the rendezvous path both halves fall back to when no
// path is configured. Both processes must agree on it out of band, like they
// agree on the resource description.
const DefaultSocketPath = "/tmp/.external-memory"

// RenderContext is the surface the host framework exposes to a sample. It
// hands out one-time-submit command buffers and the render target for the
// current frame.
type RenderContext interface {
	// SurfaceExtent is the pixel extent of the presentation surface
	SurfaceExtent() core1_0.Extent2D
	// Format is the pixel format of the presentation surface
	Format() core1_0.Format
	// Begin allocates and begins a one-time-submit command buffer for the
	// current frame
	Begin() (core1_0.CommandBuffer, error)
	// Submit ends the command buffer and submits it to the graphics queue
	Submit(commandBuffer core1_0.CommandBuffer) error
	// ActiveRenderTarget is the render target the current frame draws into
	ActiveRenderTarget() render.RenderTarget
}

// DrawFunc records the scene render pass for one frame
type DrawFunc func(commandBuffer core1_0.CommandBuffer, target render.RenderTarget) error
