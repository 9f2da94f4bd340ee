package intercept

import (
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"
)

// RelaySignals is the set of termination signals the wrapper intercepts and
// forwards to the child. Callers that need a different set can replace it
// before starting a supervisor.
var RelaySignals = []os.Signal{syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM}

// wakePipe is the self-pipe registered alongside the I/O endpoints, so that
// signal arrival and child exit are observed through the same poll as stream
// readiness.
type wakePipe struct {
	readEnd  *endpoint
	writeEnd *endpoint
}

func newWakePipe() (*wakePipe, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	return &wakePipe{readEnd: pipeEndpoint(r), writeEnd: pipeEndpoint(w)}, nil
}

func (p *wakePipe) poke() {
	// A full pipe already guarantees a wakeup, so EAGAIN is ignored.
	_, _ = unix.Write(p.writeEnd.fd, []byte{1})
}

func (p *wakePipe) drain() {
	var buf [64]byte
	for {
		n, err := unix.Read(p.readEnd.fd, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

func (p *wakePipe) close() {
	p.readEnd.close()
	p.writeEnd.close()
}

// signalRelay intercepts termination signals delivered to the parent. It does
// no forwarding itself: it only queues the signal and pokes the wake pipe,
// and the event loop acts on the queue from its own iteration.
type signalRelay struct {
	notify  chan os.Signal
	pending chan syscall.Signal
	stopped chan struct{}
}

func newSignalRelay(wake *wakePipe) *signalRelay {
	r := &signalRelay{
		notify:  make(chan os.Signal, 4),
		pending: make(chan syscall.Signal, 16),
		stopped: make(chan struct{}),
	}
	signal.Notify(r.notify, RelaySignals...)
	// SIGPIPE is intercepted but never queued: with a handler installed,
	// writes to a closed pipe surface as EPIPE instead of killing the
	// wrapper.
	signal.Notify(r.notify, syscall.SIGPIPE)

	go func() {
		defer close(r.stopped)
		for sig := range r.notify {
			unixSig, ok := sig.(syscall.Signal)
			if !ok || unixSig == syscall.SIGPIPE {
				continue
			}
			select {
			case r.pending <- unixSig:
			default:
			}
			wake.poke()
		}
	}()

	return r
}

// next pops one pending signal without blocking.
func (r *signalRelay) next() (syscall.Signal, bool) {
	select {
	case sig := <-r.pending:
		return sig, true
	default:
		return 0, false
	}
}

func (r *signalRelay) stop() {
	signal.Stop(r.notify)
	close(r.notify)
	<-r.stopped
}
