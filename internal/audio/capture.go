package audio

import (
	"errors"
	"os/exec"
)

// ErrNoAudioDevice is returned when no audio input device is available.
var ErrNoAudioDevice = errors.New("no audio input device found")

// Device represents an available audio input device.
type Device struct {
	// ID is the device identifier passed to the capture backend.
	ID string `json:"id"`
	// Name is the device display name.
	Name string `json:"name"`
}

// CaptureConfig defines the platform-specific audio capture backend.
type CaptureConfig struct {
	// Command is the executable name (e.g., "arecord", "ffmpeg").
	Command string

	// DefaultDevice is used when no device is configured.
	DefaultDevice string

	// UsesFFmpeg indicates if this platform captures through FFmpeg.
	UsesFFmpeg bool

	// BuildArgs returns the command arguments that capture the given
	// device as raw S16LE stereo on stdout.
	BuildArgs func(device string) []string
}

// CaptureCommand returns the platform capture executable name.
func CaptureCommand() string {
	return getPlatformConfig().Command
}

// CaptureAvailable reports whether the platform capture backend can run.
// FFmpeg platforms need a resolved ffmpeg path; the others probe for the
// platform capture command in PATH, so a Linux host without ffmpeg still
// meters through arecord.
func CaptureAvailable(ffmpegPath string) bool {
	cfg := getPlatformConfig()
	if cfg.UsesFFmpeg {
		return ffmpegPath != ""
	}
	_, err := exec.LookPath(cfg.Command)
	return err == nil
}

// BuildCaptureCommand returns the command and arguments for audio capture.
// An empty device falls back to the platform default, then to the first
// detected device. ffmpegPath overrides the binary on FFmpeg platforms.
func BuildCaptureCommand(device, ffmpegPath string) (cmd string, args []string, err error) {
	cfg := getPlatformConfig()

	if device == "" {
		device = cfg.DefaultDevice
	}
	if device == "" {
		devices := Devices()
		if len(devices) == 0 {
			return "", nil, ErrNoAudioDevice
		}
		device = devices[0].ID
	}

	command := cfg.Command
	if cfg.UsesFFmpeg && ffmpegPath != "" {
		command = ffmpegPath
	}

	return command, cfg.BuildArgs(device), nil
}
