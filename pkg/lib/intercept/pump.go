package intercept

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/jpmelos/fdintercept/pkg/lib"
)

// pump copies bytes from one endpoint to another in FIFO order, mirroring
// every byte that reaches the destination into the stream's log sink. Bytes
// in flight are bounded by the buffer: when it fills up, the pump stops
// asking for source readiness until the destination drains some of it.
type pump struct {
	stream lib.Stream
	src    *endpoint
	dst    *endpoint
	sink   *logSink

	// ownsSrc/ownsDst mark which endpoints are pipe ends the pump must
	// close when it finishes. The stdin pump owns its destination (the
	// child's stdin write end) so the child observes end-of-input; the
	// output pumps own their sources (the child's stdout/stderr read
	// ends).
	ownsSrc bool
	ownsDst bool

	// closeOnChildExit marks the pump whose source outlives the child
	// (parent stdin); it is shut down once the child is known to have
	// exited.
	closeOnChildExit bool

	buf        []byte
	start, end int
	srcClosed  bool
	dstClosed  bool
}

func (p *pump) pending() int {
	return p.end - p.start
}

// drained reports whether the pump is done: either its destination is gone,
// or its source is closed and everything buffered has been flushed.
func (p *pump) drained() bool {
	return p.dstClosed || (p.srcClosed && p.pending() == 0)
}

func (p *pump) wantsRead() bool {
	return !p.drained() && !p.srcClosed && p.pending() < len(p.buf)
}

func (p *pump) wantsWrite() bool {
	return !p.drained() && p.pending() > 0
}

// readStep performs one read from the source into the free tail of the
// buffer. A zero-length read marks the source closed. EAGAIN and EINTR are
// not errors; anything else is fatal for this pump only.
func (p *pump) readStep() {
	if p.drained() || p.srcClosed {
		return
	}

	if p.start > 0 {
		copy(p.buf, p.buf[p.start:p.end])
		p.end -= p.start
		p.start = 0
	}
	if p.end == len(p.buf) {
		return
	}

	n, err := unix.Read(p.src.fd, p.buf[p.end:])
	switch {
	case errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR):
		return
	case err != nil:
		p.fail("read", err)
	case n == 0:
		p.srcClosed = true
		p.finishIfDrained()
	default:
		p.end += n
	}
}

// writeStep performs one write of the buffered bytes to the destination.
// Partial writes just advance the cursor. Each byte accepted by the
// destination is mirrored to the log sink. A broken pipe means the consumer
// is gone and ends the pump.
func (p *pump) writeStep() {
	if p.drained() || p.pending() == 0 {
		return
	}

	n, err := unix.Write(p.dst.fd, p.buf[p.start:p.end])
	switch {
	case errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR):
		return
	case errors.Is(err, unix.EPIPE):
		p.dstClosed = true
		p.closeOwned()
		return
	case err != nil:
		p.fail("write", err)
		return
	}

	if n > 0 {
		p.sink.append(p.buf[p.start : p.start+n])
		p.start += n
	}
	p.finishIfDrained()
}

// shutdown stops reading new input. Already-buffered bytes are still flushed
// by the event loop before the pump reports drained.
func (p *pump) shutdown() {
	if p.drained() {
		return
	}
	p.srcClosed = true
	p.finishIfDrained()
}

// fail handles an unexpected I/O error: the error is reported and the pump is
// taken out of the run immediately, leaving the other streams alive.
func (p *pump) fail(op string, err error) {
	fmt.Fprintf(os.Stderr, "Error processing %s stream (%s): %v\n", p.stream, op, err)
	p.srcClosed = true
	p.dstClosed = true
	p.start, p.end = 0, 0
	p.closeOwned()
}

func (p *pump) finishIfDrained() {
	if p.drained() {
		p.closeOwned()
	}
}

func (p *pump) closeOwned() {
	if p.ownsSrc {
		p.src.close()
	}
	if p.ownsDst {
		p.dst.close()
	}
}
