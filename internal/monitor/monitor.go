// Package monitor provides the audio capture and metering engine.
// It manages the platform capture process, feeds raw PCM through the
// metering pipeline, and exposes the resulting meter state, with
// automatic retry and silence detection.
package monitor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/oszuidwest/zwfm-miccheck/internal/audio"
	"github.com/oszuidwest/zwfm-miccheck/internal/config"
	"github.com/oszuidwest/zwfm-miccheck/internal/metering"
	"github.com/oszuidwest/zwfm-miccheck/internal/notify"
	"github.com/oszuidwest/zwfm-miccheck/internal/types"
	"github.com/oszuidwest/zwfm-miccheck/internal/util"
)

// Sentinel errors for monitor operations.
var (
	ErrNoAudioInput   = errors.New("no audio input configured")
	ErrAlreadyRunning = errors.New("monitor already running")
	ErrNotRunning     = errors.New("monitor not running")
)

// Monitor manages audio capture and the metering pipeline.
type Monitor struct {
	config       *config.Config
	ffmpegPath   string
	sourceCmd    *exec.Cmd
	sourceCancel context.CancelFunc
	sourceStdout io.ReadCloser
	sourceStdin  io.WriteCloser
	state        types.MonitorState
	stopChan     chan struct{}
	mu           sync.RWMutex
	lastError    string
	startTime    time.Time
	retryCount   int
	backoff      *util.Backoff

	session       *metering.Session
	source        *metering.PushSource
	silenceDetect *audio.SilenceDetector
	notifier      *notify.AlertNotifier

	channelState    channelState
	lastKnownLevels types.LevelsPayload // Cache for TryRLock fallback
}

// channelState holds the most recent per-channel measurements and silence
// state from the pipeline, merged into the levels payload on read.
type channelState struct {
	levels            audio.Levels
	silence           bool
	silenceDurationMs int64
}

// New creates a new Monitor with the given configuration and FFmpeg binary path.
func New(cfg *config.Config, ffmpegPath string) *Monitor {
	snap := cfg.Snapshot()
	return &Monitor{
		config:        cfg,
		ffmpegPath:    ffmpegPath,
		state:         types.StateStopped,
		backoff:       util.NewBackoff(types.InitialRetryDelay, types.MaxRetryDelay),
		session:       metering.NewSession(snap.MeteringConfig()),
		source:        metering.NewPushSource(),
		silenceDetect: audio.NewSilenceDetector(),
		notifier:      notify.NewAlertNotifier(cfg),
	}
}

// State returns the current monitor state.
func (m *Monitor) State() types.MonitorState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// IsRunning reports whether the monitor is in running state.
func (m *Monitor) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state == types.StateRunning
}

// Status returns the current monitor status.
func (m *Monitor) Status() types.MonitorStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	uptime := ""
	if m.state == types.StateRunning {
		uptime = time.Since(m.startTime).Truncate(time.Second).String()
	}

	return types.MonitorStatus{
		State:            m.state,
		Uptime:           uptime,
		LastError:        m.lastError,
		SourceRetryCount: m.retryCount,
		SourceMaxRetries: types.MaxRetries,
	}
}

// Levels returns the current meter state for dashboard clients.
func (m *Monitor) Levels() types.LevelsPayload {
	if !m.mu.TryRLock() {
		return m.lastKnownLevels
	}
	session := m.session
	ch := m.channelState
	state := m.state
	m.mu.RUnlock()

	if state != types.StateRunning {
		return restingLevels()
	}
	return mergeLevels(session.Snapshot(), ch)
}

// Notifier returns the alert notifier so callers can invalidate cached
// clients when notification settings change.
func (m *Monitor) Notifier() *notify.AlertNotifier {
	return m.notifier
}

// ResetPeakHold clears the held peak and the max-since-reset readout.
func (m *Monitor) ResetPeakHold() {
	m.mu.RLock()
	session := m.session
	m.mu.RUnlock()
	session.ResetPeakHold()
}

// ReloadMeterConfig rebuilds the metering session from the current
// configuration. The meter restarts from the floor; capture is unaffected.
func (m *Monitor) ReloadMeterConfig() {
	snap := m.config.Snapshot()

	// Stop delivery before swapping so no tick runs against the old session.
	m.source.Stop()

	m.mu.Lock()
	m.session = metering.NewSession(snap.MeteringConfig())
	running := m.state == types.StateRunning || m.state == types.StateStarting
	m.mu.Unlock()

	if running {
		m.source.Start(m.tick)
	}
}

// Start begins audio capture and metering.
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == types.StateRunning || m.state == types.StateStarting {
		return ErrAlreadyRunning
	}

	m.state = types.StateStarting
	m.stopChan = make(chan struct{})
	m.retryCount = 0
	m.backoff.Reset()
	m.silenceDetect.Reset()
	m.notifier.Reset()
	m.session.Reset()
	m.channelState = channelState{levels: restingChannelLevels()}
	m.source.Start(m.tick)

	go m.runSourceLoop()

	return nil
}

// Stop stops the capture process with graceful shutdown.
func (m *Monitor) Stop() error {
	m.mu.Lock()

	if m.state == types.StateStopped || m.state == types.StateStopping {
		m.mu.Unlock()
		return nil
	}

	m.state = types.StateStopping

	if m.stopChan != nil {
		close(m.stopChan)
	}

	// Get references while holding lock
	sourceProcess := m.sourceCmd
	sourceCancel := m.sourceCancel
	sourceStdin := m.sourceStdin
	m.mu.Unlock()

	var errs []error

	// Send graceful termination signal to source.
	if sourceProcess != nil && sourceProcess.Process != nil {
		if err := util.GracefulSignal(sourceProcess.Process); err != nil {
			slog.Warn("failed to send signal to source", "error", err)
			errs = append(errs, fmt.Errorf("signal source: %w", err))
		}
		if err := util.StopFFmpegViaStdin(sourceStdin); err != nil {
			slog.Debug("failed to send quit via stdin", "error", err)
		}
	}

	stopped := m.pollUntil(func() bool {
		m.mu.RLock()
		defer m.mu.RUnlock()
		return m.sourceCmd == nil
	})

	select {
	case <-stopped:
		slog.Info("source capture stopped gracefully")
	case <-time.After(types.ShutdownTimeout):
		slog.Warn("source capture did not stop in time, forcing kill")
		if sourceCancel != nil {
			sourceCancel()
		}
		errs = append(errs, fmt.Errorf("source shutdown timeout"))
	}

	m.source.Stop()
	m.session.Reset()

	m.mu.Lock()
	m.state = types.StateStopped
	m.sourceCmd = nil
	m.sourceCancel = nil
	m.channelState = channelState{levels: restingChannelLevels()}
	m.lastKnownLevels = restingLevels()
	m.mu.Unlock()

	return errors.Join(errs...)
}

// Restart stops and starts the monitor.
func (m *Monitor) Restart() error {
	if err := m.Stop(); err != nil {
		return fmt.Errorf("stop: %w", err)
	}
	time.Sleep(1 * time.Second)
	return m.Start()
}

// TriggerTestEmail sends a test email to verify configuration.
func (m *Monitor) TriggerTestEmail() error {
	cfg := m.config.Snapshot()
	return notify.SendTestEmail(notify.BuildGraphConfig(&cfg), cfg.StationName)
}

// TriggerTestWebhook sends a test webhook to verify configuration.
func (m *Monitor) TriggerTestWebhook() error {
	cfg := m.config.Snapshot()
	return notify.SendTestWebhook(cfg.WebhookURL, cfg.StationName)
}

// TriggerTestLog writes a test entry to verify log file configuration.
func (m *Monitor) TriggerTestLog() error {
	return notify.WriteTestLog(m.config.Snapshot().LogPath)
}

// tick merges one session snapshot into the cached levels payload.
func (m *Monitor) tick(r metering.Reading) {
	m.mu.RLock()
	session := m.session
	m.mu.RUnlock()

	snap := session.Tick(r)

	m.mu.Lock()
	m.lastKnownLevels = mergeLevels(snap, m.channelState)
	m.mu.Unlock()
}

// updateChannelState stores the latest per-channel measurements from the pipeline.
func (m *Monitor) updateChannelState(levels audio.Levels, event audio.SilenceEvent) {
	m.mu.Lock()
	m.channelState = channelState{
		levels:            levels,
		silence:           event.InSilence,
		silenceDurationMs: event.DurationMs,
	}
	m.mu.Unlock()
}

// runSourceLoop runs the audio capture process with retry.
func (m *Monitor) runSourceLoop() {
	for {
		m.mu.Lock()
		if m.state == types.StateStopping || m.state == types.StateStopped {
			m.mu.Unlock()
			return
		}
		m.mu.Unlock()

		startTime := time.Now()
		stderrOutput, err := m.runSource()
		runDuration := time.Since(startTime)

		m.mu.Lock()
		if err != nil {
			errMsg := err.Error()
			if stderrOutput != "" {
				errMsg = stderrOutput
			}
			m.lastError = errMsg
			slog.Error("source capture error", "error", errMsg)

			if runDuration >= types.SuccessThreshold {
				m.retryCount = 0
				m.backoff.Reset()
			} else {
				m.retryCount++
			}

			if m.retryCount >= types.MaxRetries {
				slog.Error("source capture failed, giving up", "attempts", types.MaxRetries)
				m.state = types.StateStopped
				m.lastError = fmt.Sprintf("Stopped after %d failed attempts: %s", types.MaxRetries, errMsg)
				m.mu.Unlock()
				m.source.Stop()
				m.session.Reset()
				return
			}
		} else {
			m.retryCount = 0
			m.backoff.Reset()
		}

		if m.state == types.StateStopping || m.state == types.StateStopped {
			m.mu.Unlock()
			return
		}

		m.state = types.StateStarting
		retryDelay := m.backoff.Next()
		m.mu.Unlock()

		slog.Info("source stopped, waiting before restart",
			"delay", retryDelay, "attempt", m.retryCount+1, "max_retries", types.MaxRetries)
		select {
		case <-m.stopChan:
			return
		case <-time.After(retryDelay):
		}
	}
}

// runSource executes the audio capture process and pumps its output through
// the metering pipeline until the process exits.
func (m *Monitor) runSource() (string, error) {
	audioInput := m.config.Snapshot().AudioInput
	cmdName, args, err := audio.BuildCaptureCommand(audioInput, m.ffmpegPath)
	if err != nil {
		return "", err
	}

	slog.Info("starting audio capture", "command", cmdName, "input", audioInput)

	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, cmdName, args...)

	// Go 1.20+: Declarative graceful shutdown - sends signal first, waits, then kills.
	cmd.Cancel = func() error {
		return util.GracefulSignal(cmd.Process)
	}
	cmd.WaitDelay = types.ShutdownTimeout

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return "", err
	}

	// Stdin carries FFmpeg's 'q' quit command on platforms without SIGINT.
	stdinPipe, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return "", err
	}

	var stderrBuf bytes.Buffer
	cmd.Stderr = &stderrBuf

	func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.sourceCmd = cmd
		m.sourceCancel = cancel
		m.sourceStdout = stdoutPipe
		m.sourceStdin = stdinPipe
		m.state = types.StateRunning
		m.startTime = time.Now()
		m.lastError = ""
		m.channelState = channelState{levels: restingChannelLevels()}
	}()

	if err := cmd.Start(); err != nil {
		return "", err
	}

	go m.runPipeline()

	err = cmd.Wait()

	func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.sourceCmd = nil
		m.sourceCancel = nil
		m.sourceStdout = nil
		m.sourceStdin = nil
	}()

	return util.ExtractLastError(stderrBuf.String()), err
}

// runPipeline delivers captured PCM from the source to the metering pipeline.
func (m *Monitor) runPipeline() {
	buf := make([]byte, 19200) // ~100ms of audio at 48kHz stereo

	pipeline := NewPipeline(m.config, m.silenceDetect, m.notifier, m.source, m.updateChannelState)

	for {
		m.mu.RLock()
		state := m.state
		reader := m.sourceStdout
		stopChan := m.stopChan
		m.mu.RUnlock()

		if state != types.StateRunning || reader == nil {
			return
		}

		select {
		case <-stopChan:
			return
		default:
		}

		n, err := reader.Read(buf)
		if err != nil {
			return
		}
		if n == 0 {
			continue
		}

		pipeline.ProcessSamples(buf, n)
	}
}

// pollUntil signals when the given condition becomes true.
func (m *Monitor) pollUntil(condition func() bool) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		for !condition() {
			time.Sleep(types.PollInterval)
		}
		close(done)
	}()
	return done
}

// mergeLevels combines the session snapshot with the per-channel state.
func mergeLevels(snap metering.Snapshot, ch channelState) types.LevelsPayload {
	return types.LevelsPayload{
		DisplayedDB:     snap.DisplayedDB,
		HeldDB:          snap.HeldDB,
		MaxSinceResetDB: snap.MaxSinceResetDB,
		Zone:            snap.Zone,
		Message:         snap.Message,
		Clip:            snap.Clip,

		RMSLeft:   ch.levels.RMSLeft,
		RMSRight:  ch.levels.RMSRight,
		PeakLeft:  ch.levels.PeakLeft,
		PeakRight: ch.levels.PeakRight,

		Silence:           ch.silence,
		SilenceDurationMs: ch.silenceDurationMs,
	}
}

func restingChannelLevels() audio.Levels {
	return audio.Levels{
		RMSLeft: audio.MinDB, RMSRight: audio.MinDB,
		PeakLeft: audio.MinDB, PeakRight: audio.MinDB,
	}
}

func restingLevels() types.LevelsPayload {
	return mergeLevels(metering.Snapshot{
		DisplayedDB:     metering.FloorDB,
		HeldDB:          metering.FloorDB,
		MaxSinceResetDB: metering.FloorDB,
		Zone:            "quiet",
	}, channelState{levels: restingChannelLevels()})
}
