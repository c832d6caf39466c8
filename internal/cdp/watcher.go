package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Watcher is a minimal raw CDP client that listens for page-target lifecycle
// events without chromedp's heavy session initialisation (SetAutoAttach,
// Page.Enable, DOM.Enable, etc.). Those commands destabilise some browser
// builds; for lifecycle notifications a bare Target.setDiscoverTargets
// subscription on the browser-level socket is enough.
type Watcher struct {
	httpBase string // e.g. "http://127.0.0.1:9222"

	mu   sync.Mutex
	conn net.Conn
	seq  atomic.Int64

	pending   map[int64]chan json.RawMessage
	pendingMu sync.Mutex

	changes chan struct{}
}

// NewWatcher creates a watcher for the given CDP HTTP endpoint.
func NewWatcher(httpBase string) *Watcher {
	return &Watcher{
		httpBase: strings.TrimRight(httpBase, "/"),
		pending:  make(map[int64]chan json.RawMessage),
		changes:  make(chan struct{}, 1),
	}
}

// Changes delivers one signal per burst of target lifecycle activity.
// Signals are coalesced: a pending, unconsumed signal absorbs later ones.
func (w *Watcher) Changes() <-chan struct{} {
	return w.changes
}

// Start dials the browser-level WebSocket endpoint and subscribes to target
// discovery events.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.conn != nil {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	wsURL, err := w.browserWSURL(ctx)
	if err != nil {
		return fmt.Errorf("watcher: browser ws url: %w", err)
	}

	slog.Debug("watcher connecting", "ws_url", wsURL)
	conn, _, _, err := ws.Dial(ctx, wsURL)
	if err != nil {
		return fmt.Errorf("watcher: dial: %w", err)
	}

	w.mu.Lock()
	w.conn = conn
	w.pending = make(map[int64]chan json.RawMessage)
	w.mu.Unlock()
	go w.readLoop()

	params := struct {
		Discover bool `json:"discover"`
	}{Discover: true}
	if _, err := w.send(ctx, "Target.setDiscoverTargets", params); err != nil {
		w.Stop()
		return fmt.Errorf("watcher: setDiscoverTargets: %w", err)
	}
	return nil
}

// Stop closes the WebSocket connection. Pending calls fail; the changes
// channel stays open so consumers do not need teardown ordering.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
}

// readLoop dispatches responses to waiters and lifecycle events to the
// changes channel.
func (w *Watcher) readLoop() {
	for {
		w.mu.Lock()
		conn := w.conn
		w.mu.Unlock()
		if conn == nil {
			return
		}

		data, err := wsutil.ReadServerText(conn)
		if err != nil {
			slog.Debug("watcher read loop exit", "error", err)
			w.closeAllPending()
			return
		}

		var msg struct {
			ID     int64           `json:"id"`
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
		}
		if json.Unmarshal(data, &msg) != nil {
			continue
		}
		if msg.ID > 0 {
			w.pendingMu.Lock()
			ch, ok := w.pending[msg.ID]
			if ok {
				delete(w.pending, msg.ID)
			}
			w.pendingMu.Unlock()
			if ok {
				ch <- json.RawMessage(data)
			}
			continue
		}

		switch msg.Method {
		case "Target.targetCreated", "Target.targetDestroyed", "Target.targetInfoChanged":
			if isPageTargetEvent(msg.Method, msg.Params) {
				w.notify()
			}
		}
	}
}

// isPageTargetEvent filters out workers, extensions and other non-page
// targets. targetDestroyed carries only the id, so it always passes.
func isPageTargetEvent(method string, params json.RawMessage) bool {
	if method == "Target.targetDestroyed" {
		return true
	}
	var ev struct {
		TargetInfo struct {
			Type string `json:"type"`
		} `json:"targetInfo"`
	}
	if json.Unmarshal(params, &ev) != nil {
		return false
	}
	return ev.TargetInfo.Type == "page"
}

func (w *Watcher) notify() {
	select {
	case w.changes <- struct{}{}:
	default:
	}
}

func (w *Watcher) closeAllPending() {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	for id, ch := range w.pending {
		close(ch)
		delete(w.pending, id)
	}
}

func (w *Watcher) deletePending(id int64) {
	w.pendingMu.Lock()
	delete(w.pending, id)
	w.pendingMu.Unlock()
}

// send sends a CDP command and waits for the matching response.
func (w *Watcher) send(ctx context.Context, method string, params any) (json.RawMessage, error) {
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()
	if conn == nil {
		return nil, fmt.Errorf("watcher: not connected")
	}

	id := w.seq.Add(1)
	req := struct {
		ID     int64  `json:"id"`
		Method string `json:"method"`
		Params any    `json:"params,omitempty"`
	}{ID: id, Method: method, Params: params}

	ch := make(chan json.RawMessage, 1)
	w.pendingMu.Lock()
	w.pending[id] = ch
	w.pendingMu.Unlock()

	data, err := json.Marshal(req)
	if err != nil {
		w.deletePending(id)
		return nil, fmt.Errorf("watcher: marshal: %w", err)
	}

	w.mu.Lock()
	err = wsutil.WriteClientText(conn, data)
	w.mu.Unlock()
	if err != nil {
		w.deletePending(id)
		return nil, fmt.Errorf("watcher: send: %w", err)
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, fmt.Errorf("watcher: connection closed")
		}
		return resp, nil
	case <-ctx.Done():
		w.deletePending(id)
		return nil, ctx.Err()
	}
}

// browserWSURL fetches the WebSocket debugger URL from /json/version.
func (w *Watcher) browserWSURL(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.httpBase+"/json/version", nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var version struct {
		WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
	}
	if err := json.Unmarshal(body, &version); err != nil {
		return "", err
	}
	if version.WebSocketDebuggerURL == "" {
		return "", fmt.Errorf("no webSocketDebuggerUrl in %s/json/version", w.httpBase)
	}
	return version.WebSocketDebuggerURL, nil
}
