package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/oszuidwest/zwfm-miccheck/internal/types"
	"github.com/oszuidwest/zwfm-miccheck/internal/util"
	"golang.org/x/mod/semver"
)

const (
	releaseURL         = "https://api.github.com/repos/oszuidwest/zwfm-miccheck/releases/latest"
	releaseInterval    = 24 * time.Hour
	releaseFirstDelay  = 30 * time.Second // let the server come up before the first call
	releaseTimeout     = 30 * time.Second
	releaseMaxAttempts = 3
)

// VersionChecker polls the release feed once a day and remembers the newest
// published release. Safe for concurrent use.
type VersionChecker struct {
	mu     sync.RWMutex
	latest string
	etag   string // conditional requests; 304 means nothing changed
	stopCh chan struct{}
}

// NewVersionChecker starts the polling goroutine and returns the checker.
func NewVersionChecker() *VersionChecker {
	vc := &VersionChecker{stopCh: make(chan struct{})}
	go vc.run()
	return vc
}

// Stop halts the polling goroutine.
func (vc *VersionChecker) Stop() {
	close(vc.stopCh)
}

func (vc *VersionChecker) run() {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in version checker", "panic", r)
		}
	}()

	select {
	case <-time.After(releaseFirstDelay):
		vc.checkWithRetry()
	case <-vc.stopCh:
		return
	}

	ticker := time.NewTicker(releaseInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			vc.checkWithRetry()
		case <-vc.stopCh:
			return
		}
	}
}

// checkWithRetry retries transient failures with growing spacing; a cycle
// that keeps failing waits for the next daily tick.
func (vc *VersionChecker) checkWithRetry() {
	retry := util.NewBackoff(time.Minute, 4*time.Minute)
	for attempt := range releaseMaxAttempts {
		if vc.check() {
			return
		}
		if attempt == releaseMaxAttempts-1 {
			return
		}
		select {
		case <-time.After(retry.Next()):
		case <-vc.stopCh:
			return
		}
	}
}

type githubRelease struct {
	TagName    string `json:"tag_name"`
	Draft      bool   `json:"draft"`
	Prerelease bool   `json:"prerelease"`
}

// check fetches the latest release and reports whether this cycle is done.
// False asks for a retry; rate limits and server errors are the retryable
// cases, everything else (including "no releases yet") ends the cycle.
func (vc *VersionChecker) check() bool {
	ctx, cancel := context.WithTimeoutCause(
		context.Background(),
		releaseTimeout,
		errors.New("release feed request timeout"),
	)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, releaseURL, http.NoBody)
	if err != nil {
		return false
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", "zwfm-miccheck/"+Version)

	vc.mu.RLock()
	etag := vc.etag
	vc.mu.RUnlock()
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close() //nolint:errcheck // Best-effort cleanup; error doesn't affect caller
	}()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotModified, http.StatusNotFound:
		return true
	case http.StatusForbidden, http.StatusTooManyRequests:
		return false
	default:
		return resp.StatusCode < 500
	}

	var release githubRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return false
	}
	if release.Draft || release.Prerelease {
		return true
	}
	if release.TagName == "" {
		return false
	}

	vc.mu.Lock()
	vc.latest = strings.TrimPrefix(release.TagName, "v")
	if newEtag := resp.Header.Get("ETag"); newEtag != "" {
		vc.etag = newEtag
	}
	vc.mu.Unlock()

	return true
}

// Info returns the running build's version info for status responses.
func (vc *VersionChecker) Info() types.VersionInfo {
	vc.mu.RLock()
	defer vc.mu.RUnlock()

	current := strings.TrimPrefix(strings.TrimSpace(Version), "v")
	info := types.VersionInfo{
		Current:   current,
		Latest:    vc.latest,
		Commit:    Commit,
		BuildTime: util.FormatHumanTime(BuildTime),
	}

	// Dev and untagged builds never claim an update.
	if vc.latest != "" && current != "dev" && current != "unknown" {
		info.UpdateAvailable = semver.Compare(vPrefixed(vc.latest), vPrefixed(current)) > 0
	}

	return info
}

// vPrefixed puts back the "v" prefix semver.Compare requires; release tags
// and ldflags-injected versions carry it inconsistently.
func vPrefixed(v string) string {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}
