package render

import (
	"github.com/dolthub/swiss"
	"github.com/vkngwrapper/core/v2/core1_0"
)

// RenderTarget is the sample framework's per-frame attachment set. View 0 is
// the swapchain color image, view 1 is the depth-stencil attachment, any
// further views are additional color attachments. The frame copier reads
// images and extent from it and records every layout transition it performs
// back through SetLayout.
type RenderTarget interface {
	// Images returns the attachment images, indexed like Views
	Images() []core1_0.Image
	// Views returns the attachment views
	Views() []core1_0.ImageView
	// Extent is the pixel extent shared by the attachments
	Extent() core1_0.Extent2D
	// Layout reports the last layout recorded for the indexed view
	Layout(viewIndex int) core1_0.ImageLayout
	// SetLayout records a layout transition performed on the indexed view
	SetLayout(viewIndex int, layout core1_0.ImageLayout)
}

// LayoutTracker stores per-view image layouts. It provides the
// Layout/SetLayout half of RenderTarget for framework integrations and
// tests; views with no recorded transition report undefined.
type LayoutTracker struct {
	layouts *swiss.Map[int, core1_0.ImageLayout]
}

func NewLayoutTracker(viewCount int) *LayoutTracker {
	return &LayoutTracker{
		layouts: swiss.NewMap[int, core1_0.ImageLayout](uint32(viewCount)),
	}
}

func (t *LayoutTracker) Layout(viewIndex int) core1_0.ImageLayout {
	layout, ok := t.layouts.Get(viewIndex)
	if !ok {
		return core1_0.ImageLayoutUndefined
	}
	return layout
}

func (t *LayoutTracker) SetLayout(viewIndex int, layout core1_0.ImageLayout) {
	t.layouts.Put(viewIndex, layout)
}
