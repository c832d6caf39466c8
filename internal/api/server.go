// Package api serves the consumer-facing query surface: the popup UI reads
// window names and diagnostics here.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/dgnsrekt/window_namer/internal/controller"
	"github.com/dgnsrekt/window_namer/internal/namecache"
	"github.com/dgnsrekt/window_namer/internal/stream"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Service is the controller surface the API depends on.
type Service interface {
	WindowNames(ctx context.Context) (namecache.Cache, error)
	RefreshNames(ctx context.Context) error
	Diagnose(ctx context.Context) (controller.DiagnoseReport, error)
	ProbeDebugLog(ctx context.Context) (string, error)
	ForwardExtensionData(ctx context.Context, data map[string]any)
}

// NewServer builds the HTTP handler: huma-registered JSON endpoints plus the
// SSE event stream and the docs page.
func NewServer(svc Service, broker *stream.Broker) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("Window Namer API", "1.0.0")
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	router.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(docsHTML))
	})

	if broker != nil {
		router.Get("/api/v1/events", stream.SSEHandler(broker))
	}

	registerWindowHandlers(api, svc)
	registerProbeHandlers(api, svc)

	return router
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var coded *controller.CodedError
	if errors.As(err, &coded) {
		switch coded.Code {
		case controller.CodeValidation:
			return huma.Error400BadRequest(coded.Message)
		case controller.CodeProbeUnreachable, controller.CodeCDPUnavailable:
			return huma.Error503ServiceUnavailable(coded.Message)
		case controller.CodeStoreFailure:
			return huma.Error500InternalServerError(coded.Message)
		}
	}
	return huma.Error500InternalServerError(err.Error())
}
