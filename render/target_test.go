package render

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v2/core1_0"
)

func TestLayoutTrackerDefaultsToUndefined(t *testing.T) {
	tracker := NewLayoutTracker(3)

	require.Equal(t, core1_0.ImageLayoutUndefined, tracker.Layout(0))
	require.Equal(t, core1_0.ImageLayoutUndefined, tracker.Layout(2))
}

func TestLayoutTrackerRecordsTransitions(t *testing.T) {
	tracker := NewLayoutTracker(3)

	tracker.SetLayout(0, core1_0.ImageLayoutColorAttachmentOptimal)
	tracker.SetLayout(1, core1_0.ImageLayoutDepthStencilAttachmentOptimal)

	require.Equal(t, core1_0.ImageLayoutColorAttachmentOptimal, tracker.Layout(0))
	require.Equal(t, core1_0.ImageLayoutDepthStencilAttachmentOptimal, tracker.Layout(1))
	require.Equal(t, core1_0.ImageLayoutUndefined, tracker.Layout(2))

	tracker.SetLayout(0, core1_0.ImageLayoutTransferSrcOptimal)
	require.Equal(t, core1_0.ImageLayoutTransferSrcOptimal, tracker.Layout(0))
}
