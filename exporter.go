package extmem

import (
	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"

	"github.com/antonio-lunarg/vk-external-memory-go/khr_external_memory_fd"
)

// ExportState tracks whether an Exporter has already produced its descriptor
type ExportState uint32

const (
	// ExportIdle indicates the memory has not been exported yet
	ExportIdle ExportState = iota
	// ExportDone indicates the opaque fd has been handed out
	ExportDone
)

var exportStateMapping = make(map[ExportState]string)

func (s ExportState) String() string {
	return exportStateMapping[s]
}

func init() {
	exportStateMapping[ExportIdle] = "ExportIdle"
	exportStateMapping[ExportDone] = "ExportDone"
}

// Exporter pulls the opaque fd for an exportable resource's backing memory.
// The export happens at most once per process: the one-shot guard lives here,
// on the exporter, rather than in process-wide state.
//
// The returned descriptor is owned by the caller until it is handed to a
// transport Sender, which closes it after a successful transmission.
type Exporter struct {
	logger      *slog.Logger
	fdExtension khr_external_memory_fd.Extension
	resource    *Resource

	state ExportState
}

// NewExporter creates an Exporter for a resource previously created from an
// exportable Pool
func NewExporter(logger *slog.Logger, fdExtension khr_external_memory_fd.Extension, resource *Resource) (*Exporter, error) {
	if fdExtension == nil {
		return nil, errors.New("memory export requested, but khr_external_memory_fd is not active on the device")
	}
	if resource.pool == nil {
		return nil, errors.New("attempted to create an exporter for a resource that was not allocated as exportable")
	}

	return &Exporter{
		logger:      logger,
		fdExtension: fdExtension,
		resource:    resource,
	}, nil
}

// State reports whether the fd has been exported yet
func (e *Exporter) State() ExportState {
	return e.state
}

// Export requests the opaque file descriptor for the resource's backing
// memory. The kernel duplicates the memory handle into a new fd owned by this
// process. Calling Export a second time is an error- the channel the fd feeds
// is single-use, so a second descriptor has nowhere to go.
func (e *Exporter) Export() (int, error) {
	e.logger.Debug("Exporter::Export")

	if e.state != ExportIdle {
		return -1, errors.Newf("attempted to export memory twice (exporter state is %s)", e.state.String())
	}

	fd, _, err := e.fdExtension.GetMemoryFd(e.resource.pool.device, khr_external_memory_fd.MemoryGetFdInfo{
		Memory:     e.resource.memory.VulkanDeviceMemory(),
		HandleType: e.resource.pool.handleType,
	})
	if err != nil {
		return -1, errors.Wrap(err, "the backing memory was not created with an opaque-fd export chain")
	}

	e.state = ExportDone
	e.logger.Info("memory exported", slog.Int("fd", fd))

	return fd, nil
}
