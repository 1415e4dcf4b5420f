//go:build !windows

package util

import (
	"io"
	"os"
	"syscall"
)

// ShutdownSignals returns the signals to listen for graceful shutdown.
func ShutdownSignals() []os.Signal {
	return []os.Signal{syscall.SIGINT, syscall.SIGTERM}
}

// GracefulSignal attempts graceful process termination.
func GracefulSignal(p *os.Process) error {
	return p.Signal(syscall.SIGINT)
}

// StopFFmpegViaStdin sends 'q' to FFmpeg's stdin for graceful shutdown.
// Used alongside SIGINT so stop works the same on every platform.
func StopFFmpegViaStdin(stdin io.WriteCloser) error {
	if stdin == nil {
		return nil
	}
	// Send 'q' to trigger FFmpeg's quit command
	_, _ = stdin.Write([]byte("q"))
	return stdin.Close()
}
