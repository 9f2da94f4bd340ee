package intercept

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jpmelos/fdintercept/pkg/lib"
)

// logSink owns the log file for one stream. Every byte delivered to a
// pump's destination is mirrored here. A nil sink means logging is disabled
// for the stream.
type logSink struct {
	stream lib.Stream
	file   *os.File
	failed bool
}

// newLogSink opens (or creates) the log file for a stream. With recreate set
// the file is truncated, otherwise bytes are appended. Parent directories are
// created as needed. An empty path disables logging and returns a nil sink.
func newLogSink(stream lib.Stream, path string, recreate bool) (*logSink, error) {
	if path == "" {
		return nil, nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating parent directories for log file %s: %w", path, err)
		}
	}

	flags := os.O_CREATE | os.O_WRONLY
	if recreate {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_APPEND
	}
	file, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("creating/opening log file %s: %w", path, err)
	}

	return &logSink{stream: stream, file: file}, nil
}

// append mirrors forwarded bytes into the log file. A write failure is
// reported once and disables the sink for the rest of the run; forwarding is
// unaffected.
func (s *logSink) append(data []byte) {
	if s == nil || s.failed {
		return
	}
	if _, err := s.file.Write(data); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing to %s log, disabling logging: %v\n", s.stream, err)
		s.failed = true
	}
}

func (s *logSink) close() {
	if s == nil || s.file == nil {
		return
	}
	_ = s.file.Close()
	s.file = nil
}
