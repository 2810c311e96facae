// Package extmem shares GPU-backed Vulkan memory between two processes through
// POSIX file descriptors, using the khr_external_memory_fd extension family.
//
// A producer process allocates an exportable image or buffer from a Pool,
// pulls an opaque fd for its backing memory with an Exporter and hands the
// descriptor to a consumer process over a UNIX-domain rendezvous socket (see
// the transport package). The consumer wraps the received descriptor back
// into device memory with an Importer and binds it to an identically-described
// resource of its own. Both processes then hold independent Vulkan wrappers
// over the same kernel memory object.
//
// The resource description (kind, extent, format, tiling, byte size) is an
// out-of-band contract: it is never exchanged at runtime, and the two
// processes must construct it identically. A mismatch surfaces as a fatal
// memory-type selection failure at import time, not as a negotiation error.
package extmem
