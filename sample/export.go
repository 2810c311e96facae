package sample

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/core1_0"
	"golang.org/x/exp/slog"

	extmem "github.com/antonio-lunarg/vk-external-memory-go"
	"github.com/antonio-lunarg/vk-external-memory-go/render"
	"github.com/antonio-lunarg/vk-external-memory-go/transport"
)

// ExportSampleOptions contains optional settings when creating an ExportSample
type ExportSampleOptions struct {
	// SocketPath is the rendezvous socket path. When left empty,
	// DefaultSocketPath is used.
	SocketPath string

	// Kind selects whether the shared resource is an image or a buffer. The
	// zero value shares an image.
	Kind extmem.ResourceKind

	// DrawRenderPass records the scene for each frame. May be nil when the
	// sample has nothing to draw beyond the copy itself.
	DrawRenderPass DrawFunc
}

// ExportSample is the producer half of the demo. Each frame it renders the
// scene and copies the color attachment into a shared resource; after the
// first frame has gone through the queue it exports the resource's backing
// memory as an opaque fd and blocks until a consumer picks it up.
type ExportSample struct {
	logger  *slog.Logger
	device  core1_0.Device
	context RenderContext

	instance       core1_0.Instance
	physicalDevice core1_0.PhysicalDevice

	kind           extmem.ResourceKind
	drawRenderPass DrawFunc

	pool     *extmem.Pool
	resource *extmem.Resource
	exporter *extmem.Exporter
	sender   *transport.Sender
	copier   *render.FrameCopier

	exported bool
	closed   bool
}

func NewExportSample(logger *slog.Logger, instance core1_0.Instance, physicalDevice core1_0.PhysicalDevice, device core1_0.Device, context RenderContext, options ExportSampleOptions) *ExportSample {
	path := options.SocketPath
	if path == "" {
		path = DefaultSocketPath
	}

	return &ExportSample{
		logger:  logger,
		device:  device,
		context: context,

		instance:       instance,
		physicalDevice: physicalDevice,

		kind:           options.Kind,
		drawRenderPass: options.DrawRenderPass,

		sender: transport.NewSender(logger, path),
	}
}

// Prepare creates the exportable pool and allocates the shared resource,
// sized and formatted to match the presentation surface
func (s *ExportSample) Prepare() error {
	s.logger.Debug("ExportSample::Prepare")

	pool, err := extmem.NewPool(s.logger, s.instance, s.physicalDevice, s.device, extmem.PoolCreateOptions{})
	if err != nil {
		return err
	}
	s.pool = pool

	desc := s.sharedDescription()

	switch s.kind {
	case extmem.ResourceKindImage:
		s.resource, _, err = pool.CreateExportableImage(desc, core1_0.ImageUsageTransferDst)
	case extmem.ResourceKindBuffer:
		s.resource, _, err = pool.CreateExportableBuffer(desc, core1_0.BufferUsageTransferDst)
	default:
		err = errors.Newf("unknown resource kind %d", s.kind)
	}
	if err != nil {
		return err
	}

	s.exporter, err = extmem.NewExporter(s.logger, pool.ExtensionData().ExternalMemoryFd, s.resource)
	if err != nil {
		return err
	}

	s.copier = render.NewFrameCopier(s.logger, render.CopyToShared, s.resource)

	return nil
}

// Update renders one frame and copies it into the shared resource. The first
// time a frame completes it also performs the one-shot export handshake:
// drain the queue so the shared memory holds a finished frame, pull the fd
// out of the driver and block until a consumer connects and takes it.
func (s *ExportSample) Update(deltaTime float64) error {
	commandBuffer, err := s.context.Begin()
	if err != nil {
		return err
	}

	err = s.copier.RecordFrame(commandBuffer, s.context.ActiveRenderTarget(), s.drawRenderPass)
	if err != nil {
		return err
	}

	err = s.context.Submit(commandBuffer)
	if err != nil {
		return err
	}

	if !s.exported {
		err = s.exportAndSend()
		if err != nil {
			return err
		}
		s.exported = true
	}

	return nil
}

func (s *ExportSample) exportAndSend() error {
	// The consumer may map the memory the moment it gets the fd, so the
	// first frame must be fully written before the fd leaves this process
	_, err := s.device.WaitIdle()
	if err != nil {
		return errors.Wrap(err, "failed to drain the device queue before exporting")
	}

	fd, err := s.exporter.Export()
	if err != nil {
		return err
	}

	err = s.sender.Listen()
	if err != nil {
		return err
	}

	return s.sender.SendFd(fd)
}

// Close tears the sample down: the shared resource first, then the pool, then
// the rendezvous socket if the handshake never ran. Close must be called
// exactly once, after the device has gone idle.
func (s *ExportSample) Close() error {
	s.logger.Debug("ExportSample::Close")

	if s.closed {
		panic("attempted to close an export sample twice")
	}
	s.closed = true

	if s.resource != nil {
		s.resource.Destroy()
	}
	if s.pool != nil {
		err := s.pool.Destroy()
		if err != nil {
			return err
		}
	}

	if s.sender.State() != transport.SenderClosed {
		return s.sender.Close()
	}

	return nil
}

func (s *ExportSample) sharedDescription() extmem.ResourceDescription {
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
