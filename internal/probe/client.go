// Package probe talks to the external OS-level window probe over its
// length-prefixed JSON stdio protocol.
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os/exec"

	"github.com/dgnsrekt/window_namer/internal/types"
)

// Client invokes the probe binary once per request. The probe is spawned
// fresh each time; there is no long-lived connection to manage or time out.
// Process-tree filtering (only windows belonging to the calling browser's
// process tree are reported) happens inside the probe and is relied on here
// as a contract, not re-checked.
type Client struct {
	browser string
	run     runFunc
}

// runFunc executes one probe round-trip: framed request in, raw probe output
// back. Swappable in tests.
type runFunc func(ctx context.Context, request []byte) ([]byte, error)

// NewClient creates a client for the probe binary at path, tagging every
// window request with the given browser label.
func NewClient(path, browser string) *Client {
	return &Client{
		browser: browser,
		run: func(ctx context.Context, request []byte) ([]byte, error) {
			cmd := exec.CommandContext(ctx, path)
			cmd.Stdin = bytes.NewReader(request)
			var stdout bytes.Buffer
			cmd.Stdout = &stdout
			if err := cmd.Run(); err != nil {
				return nil, err
			}
			return stdout.Bytes(), nil
		},
	}
}

type windowNamesResponse struct {
	Success bool              `json:"success"`
	Windows []json.RawMessage `json:"windows"`
	Error   string            `json:"error,omitempty"`
}

type debugLogResponse struct {
	Success bool   `json:"success"`
	Log     string `json:"log"`
}

// rawWindow mirrors types.ProbeWindowRecord but keeps Name optional so
// records the probe half-filled can be detected and skipped.
type rawWindow struct {
	Name           *string      `json:"name"`
	Bounds         types.Bounds `json:"bounds"`
	HasCustomName  bool         `json:"hasCustomName"`
	ActiveTabTitle string       `json:"activeTabTitle"`
}

// WindowNames asks the probe for the current OS-level window list. Returns
// ErrUnreachable when the probe cannot be spawned or answers with a malformed
// frame; individual malformed window records are skipped, not fatal.
func (c *Client) WindowNames(ctx context.Context) ([]types.ProbeWindowRecord, error) {
	request := map[string]any{"action": "get_window_names", "browser": c.browser}
	var resp windowNamesResponse
	if err := c.call(ctx, request, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		slog.Debug("probe reported failure", "error", resp.Error)
		return nil, nil
	}

	records := make([]types.ProbeWindowRecord, 0, len(resp.Windows))
	for _, raw := range resp.Windows {
		var w rawWindow
		if err := json.Unmarshal(raw, &w); err != nil || w.Name == nil {
			slog.Debug("skipping malformed probe window record")
			continue
		}
		records = append(records, types.ProbeWindowRecord{
			Name:           *w.Name,
			Bounds:         w.Bounds,
			HasCustomName:  w.HasCustomName,
			ActiveTabTitle: w.ActiveTabTitle,
		})
	}
	return records, nil
}

// DebugLog fetches the probe's own debug log for the diagnose report.
func (c *Client) DebugLog(ctx context.Context) (string, error) {
	var resp debugLogResponse
	if err := c.call(ctx, map[string]any{"action": "get_debug_log"}, &resp); err != nil {
		return "", err
	}
	return resp.Log, nil
}

// LogExtensionData forwards arbitrary data into the probe's debug log.
// Fire-and-forget: every failure is swallowed.
func (c *Client) LogExtensionData(ctx context.Context, data map[string]any) {
	request := map[string]any{"action": "log_extension_data", "data": data}
	var ack map[string]any
	if err := c.call(ctx, request, &ack); err != nil {
		slog.Debug("probe extension log dropped", "error", err)
	}
}

func (c *Client) call(ctx context.Context, request any, out any) error {
	frame, err := encodeFrame(request)
	if err != nil {
		return err
	}
	raw, err := c.run(ctx, frame)
	if err != nil {
		slog.Debug("probe invocation failed", "error", err)
		return ErrUnreachable
	}
	return decodeFrame(raw, out)
}
