package sample

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/core1_0"
	"golang.org/x/exp/slog"

	extmem "github.com/antonio-lunarg/vk-external-memory-go"
	"github.com/antonio-lunarg/vk-external-memory-go/render"
	"github.com/antonio-lunarg/vk-external-memory-go/transport"
)

// ImportSampleOptions contains optional settings when creating an ImportSample
type ImportSampleOptions struct {
	// SocketPath is the rendezvous socket path. When left empty,
	// DefaultSocketPath is used.
	SocketPath string

	// Kind must match the kind the exporting process shares. The zero value
	// expects an image.
	Kind extmem.ResourceKind

	// DrawRenderPass records the scene for each frame. May be nil- a pure
	// consumer usually only presents the copied pixels.
	DrawRenderPass DrawFunc
}

// ImportSample is the consumer half of the demo. Prepare blocks on the
// rendezvous socket until the producer hands over the fd, wraps it into an
// identically-described resource, and each Update copies the shared pixels
// into the color attachment for presentation.
type ImportSample struct {
	logger  *slog.Logger
	device  core1_0.Device
	context RenderContext

	instance       core1_0.Instance
	physicalDevice core1_0.PhysicalDevice

	kind           extmem.ResourceKind
	drawRenderPass DrawFunc

	importer *extmem.Importer
	receiver *transport.Receiver
	resource *extmem.Resource
	copier   *render.FrameCopier

	closed bool
}

func NewImportSample(logger *slog.Logger, instance core1_0.Instance, physicalDevice core1_0.PhysicalDevice, device core1_0.Device, context RenderContext, options ImportSampleOptions) *ImportSample {
	path := options.SocketPath
	if path == "" {
		path = DefaultSocketPath
	}

	return &ImportSample{
		logger:  logger,
		device:  device,
		context: context,

		instance:       instance,
		physicalDevice: physicalDevice,

		kind:           options.Kind,
		drawRenderPass: options.DrawRenderPass,

		receiver: transport.NewReceiver(logger, path),
	}
}

// Prepare receives the fd from the producer and imports it. The producer must
// already be listening: there is no retry, a consumer started first fails
// immediately.
func (s *ImportSample) Prepare() error {
	s.logger.Debug("ImportSample::Prepare")

	importer, err := extmem.NewImporter(s.logger, s.instance, s.physicalDevice, s.device, extmem.ImporterOptions{})
	if err != nil {
		return err
	}
	s.importer = importer

	err = s.receiver.Connect()
	if err != nil {
		return err
	}

	fd, err := s.receiver.RecvFd()
	if err != nil {
		return err
	}

	desc := s.sharedDescription()

	switch s.kind {
	case extmem.ResourceKindImage:
		s.resource, _, err = importer.ImportImage(fd, desc, core1_0.ImageUsageTransferSrc)
	case extmem.ResourceKindBuffer:
		s.resource, _, err = importer.ImportBuffer(fd, desc, core1_0.BufferUsageTransferSrc)
	default:
		err = errors.Newf("unknown resource kind %d", s.kind)
	}
	if err != nil {
		return err
	}

	s.copier = render.NewFrameCopier(s.logger, render.CopyFromShared, s.resource)

	return nil
}

// Update copies the shared resource into the color attachment and presents it
func (s *ImportSample) Update(deltaTime float64) error {
	commandBuffer, err := s.context.Begin()
	if err != nil {
		return err
	}

	err = s.copier.RecordFrame(commandBuffer, s.context.ActiveRenderTarget(), s.drawRenderPass)
	if err != nil {
		return err
	}

	return s.context.Submit(commandBuffer)
}

// Close destroys the imported resource. The driver took ownership of the fd
// at import time, so freeing the wrapper is all the descriptor cleanup there
// is. Close must be called exactly once, after the device has gone idle.
func (s *ImportSample) Close() error {
	s.logger.Debug("ImportSample::Close")

	if s.closed {
		panic("attempted to close an import sample twice")
	}
	s.closed = true

	if s.resource != nil {
		s.resource.Destroy()
	}

	if s.receiver.State() != transport.ReceiverClosed {
		return s.receiver.Close()
	}

	return nil
}

func (s *ImportSample) sharedDescription() extmem.ResourceDescription {
	extent := s.context.SurfaceExtent()

	desc := extmem.ResourceDescription{
		Kind:   s.kind,
		Extent: extent,
		Format: s.context.Format(),
	}
	if s.kind == extmem.ResourceKindBuffer {
		// 4 bytes per pixel, matching the surface formats these samples use
		desc.BufferSize = extent.Width * extent.Height * 4
	}

	return desc
}
