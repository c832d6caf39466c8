package cdp

import (
	"context"
	"testing"
	"time"
)

func TestConnectCanceledContext(t *testing.T) {
	// Port 1 is never a CDP endpoint; with a canceled context the dial must
	// fail immediately instead of retrying until some internal timeout.
	client := NewClient("http://127.0.0.1:1", time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- client.Connect(ctx) }()

	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("Connect() = nil; want error for canceled context")
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Connect() did not return after context cancellation")
	}
}
