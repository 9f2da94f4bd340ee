package intercept

import (
	"os"

	"golang.org/x/sys/unix"
)

// endpoint is a readable or writable byte-stream handle: either one of the
// parent's own standard descriptors or one end of a pipe to the child. Pipe
// endpoints keep their *os.File so the descriptor stays alive and can be
// closed exactly once; inherited stdio endpoints have no file and are never
// closed by the wrapper.
type endpoint struct {
	fd   int
	file *os.File
}

// stdioEndpoint wraps an inherited descriptor such as the parent's stdin.
func stdioEndpoint(fd int) *endpoint {
	return &endpoint{fd: fd}
}

// pipeEndpoint takes ownership of one end of a pipe and switches it to
// non-blocking mode. Raw reads and writes go through the descriptor from
// here on; the file is retained only for closing.
func pipeEndpoint(file *os.File) *endpoint {
	fd := int(file.Fd())
	_ = unix.SetNonblock(fd, true)
	return &endpoint{fd: fd, file: file}
}

func (e *endpoint) close() {
	if e.file == nil {
		return
	}
	_ = e.file.Close()
	e.file = nil
	e.fd = -1
}
