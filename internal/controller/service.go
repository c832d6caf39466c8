// Package controller orchestrates the window-naming pipeline: browser
// snapshots in, probe results matched, name cache updated, consumers
// notified.
package controller

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/dgnsrekt/window_namer/internal/fingerprint"
	"github.com/dgnsrekt/window_namer/internal/match"
	"github.com/dgnsrekt/window_namer/internal/namecache"
	"github.com/dgnsrekt/window_namer/internal/probe"
	"github.com/dgnsrekt/window_namer/internal/reconcile"
	"github.com/dgnsrekt/window_namer/internal/stream"
	"github.com/dgnsrekt/window_namer/internal/types"
)

const probeLogTailBytes = 4096

// WindowSource yields read-only browser window snapshots.
type WindowSource interface {
	Windows(ctx context.Context) ([]types.BrowserWindowRecord, error)
}

// Prober is the OS-level probe surface consumed by the service.
type Prober interface {
	WindowNames(ctx context.Context) ([]types.ProbeWindowRecord, error)
	DebugLog(ctx context.Context) (string, error)
	LogExtensionData(ctx context.Context, data map[string]any)
}

// Notify pushes a human-readable alert; nil disables alerting.
type Notify func(ctx context.Context, message string)

// Service ties the matching engine, name cache and reconciler to the live
// browser and probe. Every failure degrades to "keep showing previously
// cached names"; nothing here is fatal to the host process and nothing is
// retried; each triggering event is an independent one-shot attempt.
type Service struct {
	source WindowSource
	prober Prober
	store  *namecache.Store
	broker *stream.Broker
	notify Notify

	probeMu   sync.Mutex
	probeDown bool
}

// NewService wires the pipeline. broker and notify may be nil.
func NewService(source WindowSource, prober Prober, store *namecache.Store, broker *stream.Broker, notify Notify) *Service {
	return &Service{
		source: source,
		prober: prober,
		store:  store,
		broker: broker,
		notify: notify,
	}
}

// RefreshNames runs one matching cycle: snapshot browser windows, tombstone
// cache entries whose windows are gone, fetch probe results, pair them, and
// upsert names with fresh fingerprints. A probe that does not answer means
// "no fresh data this cycle", not an error to the caller.
func (s *Service) RefreshNames(ctx context.Context) error {
	windows, err := s.source.Windows(ctx)
	if err != nil {
		return newError(CodeCDPUnavailable, "failed to snapshot browser windows", err)
	}

	if err := s.tombstoneMissing(windows); err != nil {
		return err
	}

	probes, err := s.prober.WindowNames(ctx)
	if err != nil {
		if errors.Is(err, probe.ErrUnreachable) {
			s.setProbeDown(ctx, true)
			slog.Warn("probe unreachable, keeping cached names this cycle")
			return nil
		}
		return newError(CodeProbeUnreachable, "probe request failed", err)
	}
	s.setProbeDown(ctx, false)

	pairs := match.Match(probes, windows)
	slog.Debug("matching cycle", "probe_windows", len(probes), "browser_windows", len(windows), "pairs", len(pairs))

	fingerprints := make(map[int]string, len(windows))
	for _, window := range windows {
		fingerprints[window.ID] = fingerprint.Compute(window.Tabs)
	}

	matched := make(map[int]bool, len(pairs))
	for _, pair := range pairs {
		matched[pair.BrowserWindowID] = true
		if err := s.store.Upsert(pair.BrowserWindowID, pair.Name, fingerprints[pair.BrowserWindowID]); err != nil {
			slog.Error("name cache write failed, aborting cycle", "tag", "store_failure", "window_id", pair.BrowserWindowID, "error", err)
			return newError(CodeStoreFailure, "name cache write failed", err)
		}
	}

	// Windows that kept their cached name still drift tab-wise; keep their
	// fingerprints current so a later reconciliation sees recent data.
	for _, window := range windows {
		if matched[window.ID] {
			continue
		}
		if err := s.store.UpdateFingerprint(window.ID, fingerprints[window.ID]); err != nil {
			slog.Error("fingerprint update failed, aborting cycle", "tag", "store_failure", "window_id", window.ID, "error", err)
			return newError(CodeStoreFailure, "fingerprint update failed", err)
		}
	}

	s.publishNames()
	return nil
}

// ReconcileOnStartup re-attaches tombstoned names to the windows of a fresh
// browser session by fingerprint similarity. Runs before the first matching
// cycle; performs no writes when nothing qualifies.
func (s *Service) ReconcileOnStartup(ctx context.Context) error {
	cache, err := s.store.Load()
	if err != nil {
		return newError(CodeStoreFailure, "name cache read failed", err)
	}

	windows, err := s.source.Windows(ctx)
	if err != nil {
		return newError(CodeCDPUnavailable, "failed to snapshot browser windows", err)
	}

	updated, reassignments, changed := reconcile.Run(cache, windows)
	if !changed {
		slog.Debug("startup reconciliation: nothing to do", "tombstones", countClosed(cache), "windows", len(windows))
		return nil
	}

	if err := s.store.Replace(updated); err != nil {
		return newError(CodeStoreFailure, "name cache write failed", err)
	}
	for _, r := range reassignments {
		slog.Info("reassigned cached name",
			"name", r.Name,
			"old_key", r.OldKey,
			"window_id", r.WindowID,
			"similarity", r.Similarity,
		)
	}
	s.publishNames()
	return nil
}

// WindowNames returns the current cache contents, the consumer-facing query.
// The cache lives on local disk, so ctx is only checked, never awaited.
func (s *Service) WindowNames(ctx context.Context) (namecache.Cache, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cache, err := s.store.Load()
	if err != nil {
		return nil, newError(CodeStoreFailure, "name cache read failed", err)
	}
	return cache, nil
}

// DiagnoseReport is the structured observability view: probe reachability,
// every scored candidate pair from the diagnostic matcher, the current cache
// and a tail of the probe's own debug log.
type DiagnoseReport struct {
	ProbeReachable bool                        `json:"probeReachable"`
	ProbeWindows   []types.ProbeWindowRecord   `json:"probeWindows"`
	BrowserWindows []types.BrowserWindowRecord `json:"browserWindows"`
	Candidates     []match.CandidateScore      `json:"candidates"`
	Cache          namecache.Cache             `json:"cache"`
	ProbeLogTail   string                      `json:"probeLogTail"`
}

// Diagnose runs the diagnostic matcher and collects the report.
func (s *Service) Diagnose(ctx context.Context) (DiagnoseReport, error) {
	report := DiagnoseReport{}

	windows, err := s.source.Windows(ctx)
	if err != nil {
		return report, newError(CodeCDPUnavailable, "failed to snapshot browser windows", err)
	}
	report.BrowserWindows = windows

	probes, err := s.prober.WindowNames(ctx)
	if err == nil {
		report.ProbeReachable = true
		report.ProbeWindows = probes
		_, report.Candidates = match.MatchDiagnostics(probes, windows)
	}

	if log, err := s.prober.DebugLog(ctx); err == nil {
		report.ProbeLogTail = tail(log, probeLogTailBytes)
	}

	if cache, err := s.store.Load(); err == nil {
		report.Cache = cache
	}
	return report, nil
}

// ProbeDebugLog returns the probe's own debug log.
func (s *Service) ProbeDebugLog(ctx context.Context) (string, error) {
	log, err := s.prober.DebugLog(ctx)
	if err != nil {
		return "", newError(CodeProbeUnreachable, "probe debug log unavailable", err)
	}
	return log, nil
}

// ForwardExtensionData pushes arbitrary consumer data into the probe's debug
// log; fire-and-forget.
func (s *Service) ForwardExtensionData(ctx context.Context, data map[string]any) {
	s.prober.LogExtensionData(ctx, data)
}

// Watch drives refresh cycles from target lifecycle signals until ctx ends.
// Signals are debounced so a burst of tab events costs one cycle.
func (s *Service) Watch(ctx context.Context, changes <-chan struct{}, debounce time.Duration) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-changes:
		}

		timer := time.NewTimer(debounce)
	drain:
		for {
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-changes:
			case <-timer.C:
				break drain
			}
		}

		if err := s.RefreshNames(ctx); err != nil {
			slog.Error("refresh cycle failed", "error", err)
		}
	}
}

// tombstoneMissing marks cache entries whose window id is absent from the
// live snapshot as closed. Entries are retained for the reconciler.
func (s *Service) tombstoneMissing(windows []types.BrowserWindowRecord) error {
	cache, err := s.store.Load()
	if err != nil {
		return newError(CodeStoreFailure, "name cache read failed", err)
	}

	live := make(map[string]bool, len(windows))
	for _, window := range windows {
		live[namecache.Key(window.ID)] = true
	}

	for cacheKey, entry := range cache {
		if entry.Closed || live[cacheKey] {
			continue
		}
		windowID, err := strconv.Atoi(cacheKey)
		if err != nil {
			continue
		}
		if err := s.store.MarkClosed(windowID); err != nil {
			slog.Error("tombstone write failed, aborting cycle", "tag", "store_failure", "window_id", windowID, "error", err)
			return newError(CodeStoreFailure, "tombstone write failed", err)
		}
		slog.Info("window closed, name retained", "window_id", windowID, "name", entry.Name)
	}
	return nil
}

func (s *Service) setProbeDown(ctx context.Context, down bool) {
	s.probeMu.Lock()
	changed := down != s.probeDown
	s.probeDown = down
	s.probeMu.Unlock()
	if !changed {
		return
	}

	payload := `{"probeReachable":false}`
	if !down {
		payload = `{"probeReachable":true}`
	}
	if s.broker != nil {
		s.broker.Publish(stream.Event{Feed: stream.FeedDiagnostics, Payload: payload})
	}
	if down && s.notify != nil {
		s.notify(ctx, "window namer: probe unreachable, names frozen at last known state")
	}
}

func (s *Service) publishNames() {
	if s.broker == nil {
		return
	}
	cache, err := s.store.Load()
	if err != nil {
		slog.Debug("skipping names publish", "error", err)
		return
	}
	payload, err := json.Marshal(cache)
	if err != nil {
		return
	}
	s.broker.Publish(stream.Event{Feed: stream.FeedNames, Payload: string(payload)})
}

func countClosed(cache namecache.Cache) int {
	n := 0
	for _, entry := range cache {
		if entry.Closed {
			n++
		}
	}
	return n
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
