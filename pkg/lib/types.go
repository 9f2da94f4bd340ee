package lib

// Stream identifies one of the three intercepted standard streams.
// It's intentionally a closed set; the wrapper never handles other
// file descriptors.
type Stream int

const (
	StreamStdin Stream = iota
	StreamStdout
	StreamStderr
)

func (s Stream) String() string {
	switch s {
	case StreamStdin:
		return "stdin"
	case StreamStdout:
		return "stdout"
	case StreamStderr:
		return "stderr"
	default:
		return "unknown"
	}
}

// Target captures the command that will be executed.
type Target struct {
	Executable string
	Args       []string
}
