package controller

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/dgnsrekt/window_namer/internal/namecache"
	"github.com/dgnsrekt/window_namer/internal/probe"
	"github.com/dgnsrekt/window_namer/internal/stream"
	"github.com/dgnsrekt/window_namer/internal/types"
)

type fakeSource struct {
	windows []types.BrowserWindowRecord
	err     error
}

func (f *fakeSource) Windows(ctx context.Context) ([]types.BrowserWindowRecord, error) {
	return f.windows, f.err
}

type fakeProber struct {
	records []types.ProbeWindowRecord
	err     error
	log     string
	logged  []map[string]any
}

func (f *fakeProber) WindowNames(ctx context.Context) ([]types.ProbeWindowRecord, error) {
	return f.records, f.err
}

func (f *fakeProber) DebugLog(ctx context.Context) (string, error) {
	return f.log, nil
}

func (f *fakeProber) LogExtensionData(ctx context.Context, data map[string]any) {
	f.logged = append(f.logged, data)
}

func newTestService(t *testing.T, source *fakeSource, prober *fakeProber) (*Service, *namecache.Store) {
	t.Helper()
	store, err := namecache.NewStore(filepath.Join(t.TempDir(), "window_names.json"))
	if err != nil {
		t.Fatalf("namecache.NewStore() failed: %v", err)
	}
	return NewService(source, prober, store, stream.NewBroker(), nil), store
}

func devWindow(id int) types.BrowserWindowRecord {
	return types.BrowserWindowRecord{
		ID:     id,
		Bounds: types.Bounds{X: 0, Y: 0, Width: 800, Height: 600},
		Tabs: []types.TabRecord{
			{Title: "GitHub", URL: "https://github.com/x", Active: true},
			{Title: "SO", URL: "https://stackoverflow.com/q/1"},
		},
	}
}

func TestRefreshNamesUpsertsMatchedWindows(t *testing.T) {
	source := &fakeSource{windows: []types.BrowserWindowRecord{devWindow(5)}}
	prober := &fakeProber{records: []types.ProbeWindowRecord{
		{Name: "Dev Window", Bounds: types.Bounds{X: 0, Y: 0, Width: 800, Height: 600}, HasCustomName: true},
	}}
	svc, store := newTestService(t, source, prober)

	if err := svc.RefreshNames(context.Background()); err != nil {
		t.Fatalf("RefreshNames() = %v; want nil", err)
	}

	cache, _ := store.Load()
	entry, ok := cache["5"]
	if !ok {
		t.Fatalf("no cache entry for window 5: %v", cache)
	}
	if entry.Name != "Dev Window" {
		t.Fatalf("entry.Name = %q; want %q", entry.Name, "Dev Window")
	}
	if entry.URLFingerprint != "github.com|stackoverflow.com" {
		t.Fatalf("entry.URLFingerprint = %q; want computed fingerprint", entry.URLFingerprint)
	}
}

func TestWindowNamesCanceledContext(t *testing.T) {
	svc, _ := newTestService(t, &fakeSource{}, &fakeProber{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := svc.WindowNames(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("WindowNames() error = %v; want context.Canceled", err)
	}
}

func TestRefreshNamesProbeUnreachableKeepsCache(t *testing.T) {
	source := &fakeSource{windows: []types.BrowserWindowRecord{devWindow(5)}}
	prober := &fakeProber{err: probe.ErrUnreachable}
	svc, store := newTestService(t, source, prober)

	if err := store.Upsert(5, "Kept", "github.com|stackoverflow.com"); err != nil {
		t.Fatalf("Upsert() failed: %v", err)
	}

	if err := svc.RefreshNames(context.Background()); err != nil {
		t.Fatalf("RefreshNames() = %v; want nil when probe unreachable", err)
	}

	cache, _ := store.Load()
	if cache["5"].Name != "Kept" {
		t.Fatalf("cache[5] = %+v; want previous name kept", cache["5"])
	}
}

func TestRefreshNamesTombstonesMissingWindows(t *testing.T) {
	source := &fakeSource{windows: []types.BrowserWindowRecord{devWindow(5)}}
	prober := &fakeProber{}
	svc, store := newTestService(t, source, prober)

	if err := store.Upsert(9, "Gone", "old.example.com"); err != nil {
		t.Fatalf("Upsert() failed: %v", err)
	}

	if err := svc.RefreshNames(context.Background()); err != nil {
		t.Fatalf("RefreshNames() = %v; want nil", err)
	}

	cache, _ := store.Load()
	entry, ok := cache["9"]
	if !ok {
		t.Fatalf("entry 9 deleted; want tombstone retained")
	}
	if !entry.Closed || entry.Name != "Gone" {
		t.Fatalf("entry = %+v; want closed with name intact", entry)
	}
}

func TestRefreshNamesUpdatesUnmatchedFingerprints(t *testing.T) {
	source := &fakeSource{windows: []types.BrowserWindowRecord{devWindow(5)}}
	prober := &fakeProber{} // no probe windows, nothing matches
	svc, store := newTestService(t, source, prober)

	if err := store.Upsert(5, "Existing", "stale.example.com"); err != nil {
		t.Fatalf("Upsert() failed: %v", err)
	}

	if err := svc.RefreshNames(context.Background()); err != nil {
		t.Fatalf("RefreshNames() = %v; want nil", err)
	}

	cache, _ := store.Load()
	entry := cache["5"]
	if entry.URLFingerprint != "github.com|stackoverflow.com" {
		t.Fatalf("URLFingerprint = %q; want refreshed", entry.URLFingerprint)
	}
	if entry.Name != "Existing" {
		t.Fatalf("Name = %q; want unchanged", entry.Name)
	}
}

func TestRefreshNamesCDPFailureIsCoded(t *testing.T) {
	source := &fakeSource{err: errors.New("connection refused")}
	svc, _ := newTestService(t, source, &fakeProber{})

	err := svc.RefreshNames(context.Background())
	var coded *CodedError
	if !errors.As(err, &coded) {
		t.Fatalf("RefreshNames() error type = %T; want *CodedError", err)
	}
	if coded.Code != CodeCDPUnavailable {
		t.Fatalf("code = %q; want %q", coded.Code, CodeCDPUnavailable)
	}
}

func TestReconcileOnStartupReassigns(t *testing.T) {
	source := &fakeSource{windows: []types.BrowserWindowRecord{devWindow(21)}}
	svc, store := newTestService(t, source, &fakeProber{})

	if err := store.Replace(namecache.Cache{
		"10": {Name: "Dev Window", URLFingerprint: "github.com|stackoverflow.com", Closed: true},
	}); err != nil {
		t.Fatalf("Replace() failed: %v", err)
	}

	if err := svc.ReconcileOnStartup(context.Background()); err != nil {
		t.Fatalf("ReconcileOnStartup() = %v; want nil", err)
	}

	cache, _ := store.Load()
	if _, ok := cache["10"]; ok {
		t.Fatalf("tombstone 10 not evicted: %v", cache)
	}
	if cache["21"].Name != "Dev Window" {
		t.Fatalf("cache[21] = %+v; want reassigned Dev Window", cache["21"])
	}
}

func TestReconcileOnStartupNoWork(t *testing.T) {
	source := &fakeSource{windows: []types.BrowserWindowRecord{devWindow(21)}}
	svc, store := newTestService(t, source, &fakeProber{})

	if err := svc.ReconcileOnStartup(context.Background()); err != nil {
		t.Fatalf("ReconcileOnStartup() = %v; want nil", err)
	}
	cache, _ := store.Load()
	if len(cache) != 0 {
		t.Fatalf("cache = %v; want untouched empty cache", cache)
	}
}

func TestDiagnoseReport(t *testing.T) {
	bounds := types.Bounds{X: 0, Y: 0, Width: 800, Height: 600}
	source := &fakeSource{windows: []types.BrowserWindowRecord{devWindow(5)}}
	prober := &fakeProber{
		records: []types.ProbeWindowRecord{{Name: "Dev Window", Bounds: bounds, HasCustomName: true}},
		log:     "probe ok\n",
	}
	svc, _ := newTestService(t, source, prober)

	report, err := svc.Diagnose(context.Background())
	if err != nil {
		t.Fatalf("Diagnose() = %v; want nil", err)
	}
	if !report.ProbeReachable {
		t.Fatalf("report.ProbeReachable = false; want true")
	}
	if len(report.Candidates) == 0 {
		t.Fatalf("report.Candidates empty; want scored pairs")
	}
	if report.ProbeLogTail != "probe ok\n" {
		t.Fatalf("report.ProbeLogTail = %q; want probe log", report.ProbeLogTail)
	}
}

func TestDiagnoseProbeDown(t *testing.T) {
	source := &fakeSource{windows: []types.BrowserWindowRecord{devWindow(5)}}
	prober := &fakeProber{err: probe.ErrUnreachable}
	svc, _ := newTestService(t, source, prober)

	report, err := svc.Diagnose(context.Background())
	if err != nil {
		t.Fatalf("Diagnose() = %v; want nil", err)
	}
	if report.ProbeReachable {
		t.Fatalf("report.ProbeReachable = true; want false")
	}
}

func TestProbeUnreachableNotifiesOnce(t *testing.T) {
	source := &fakeSource{windows: []types.BrowserWindowRecord{devWindow(5)}}
	prober := &fakeProber{err: probe.ErrUnreachable}
	store, err := namecache.NewStore(filepath.Join(t.TempDir(), "window_names.json"))
	if err != nil {
		t.Fatalf("namecache.NewStore() failed: %v", err)
	}

	alerts := 0
	svc := NewService(source, prober, store, stream.NewBroker(), func(ctx context.Context, message string) {
		alerts++
	})

	for i := 0; i < 3; i++ {
		if err := svc.RefreshNames(context.Background()); err != nil {
			t.Fatalf("RefreshNames() = %v; want nil", err)
		}
	}
	if alerts != 1 {
		t.Fatalf("alert fired %d times; want once per transition", alerts)
	}
}
