// Package cdp provides the browser side of the window-naming pipeline:
// window snapshots over chromedp and a raw target-lifecycle watcher.
package cdp

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
	"github.com/dgnsrekt/window_namer/internal/types"
)

// Client connects to a running browser's debugging endpoint and snapshots
// its windows for the matching engine.
type Client struct {
	cdpURL      string
	evalTimeout time.Duration

	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// NewClient creates a client for the given CDP HTTP endpoint. evalTimeout
// bounds the per-target work inside Windows.
func NewClient(cdpURL string, evalTimeout time.Duration) *Client {
	return &Client{cdpURL: cdpURL, evalTimeout: evalTimeout}
}

// Connect establishes the remote allocator and verifies the browser answers.
// ctx bounds the initial dial only; the connection itself outlives it.
func (c *Client) Connect(ctx context.Context) error {
	slog.Info("connecting to browser", "url", c.cdpURL)

	c.allocCtx, c.allocCancel = chromedp.NewRemoteAllocator(context.Background(), c.cdpURL)
	c.browserCtx, c.browserCancel = chromedp.NewContext(c.allocCtx)

	dialCtx, cancel := context.WithCancel(c.browserCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(dialCtx); err != nil {
		_ = c.Close()
		return fmt.Errorf("failed to connect to browser: %w", err)
	}
	return nil
}

// Close tears down the CDP connection.
func (c *Client) Close() error {
	if c.browserCancel != nil {
		c.browserCancel()
	}
	if c.allocCancel != nil {
		c.allocCancel()
	}
	return nil
}

// Windows takes a read-only snapshot of every browser window: OS window id
// and bounds from the Browser domain, tabs from page targets grouped by
// window id, the visible tab marked active. Targets that fail to answer are
// skipped rather than failing the whole snapshot.
func (c *Client) Windows(ctx context.Context) ([]types.BrowserWindowRecord, error) {
	targets, err := chromedp.Targets(c.browserCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate targets: %w", err)
	}

	byWindow := make(map[int]*types.BrowserWindowRecord)
	for _, t := range targets {
		if t.Type != "page" {
			continue
		}

		tabCtx, tabCancel := chromedp.NewContext(c.browserCtx, chromedp.WithTargetID(t.TargetID))
		runCtx, runCancel := context.WithTimeout(tabCtx, c.evalTimeout)

		var windowID int
		var bounds *browser.Bounds
		var visibility string
		err := chromedp.Run(runCtx,
			chromedp.ActionFunc(func(ctx context.Context) error {
				id, b, err := browser.GetWindowForTarget().Do(ctx)
				if err != nil {
					return err
				}
				windowID = int(id)
				bounds = b
				return nil
			}),
			chromedp.Evaluate(`document.visibilityState`, &visibility),
		)
		runCancel()
		tabCancel()
		if err != nil {
			slog.Debug("skipping unresponsive target", "target_id", t.TargetID, "error", err)
			continue
		}

		window, ok := byWindow[windowID]
		if !ok {
			window = &types.BrowserWindowRecord{
				ID: windowID,
				Bounds: types.Bounds{
					X:      int(bounds.Left),
					Y:      int(bounds.Top),
					Width:  int(bounds.Width),
					Height: int(bounds.Height),
				},
			}
			byWindow[windowID] = window
		}
		window.Tabs = append(window.Tabs, types.TabRecord{
			Title:  t.Title,
			URL:    t.URL,
			Active: visibility == "visible",
		})
	}

	windows := make([]types.BrowserWindowRecord, 0, len(byWindow))
	for _, window := range byWindow {
		windows = append(windows, *window)
	}
	sort.Slice(windows, func(i, j int) bool { return windows[i].ID < windows[j].ID })

	slog.Debug("window snapshot taken", "windows", len(windows), "targets", len(targets))
	return windows, nil
}
