package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dgnsrekt/window_namer/internal/controller"
	"github.com/dgnsrekt/window_namer/internal/namecache"
)

func registerWindowHandlers(api huma.API, svc Service) {
	type healthOutput struct {
		Body struct {
			Status string `json:"status"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "health", Method: http.MethodGet, Path: "/health", Summary: "Health check", Tags: []string{"Health"}},
		func(ctx context.Context, input *struct{}) (*healthOutput, error) {
			out := &healthOutput{}
			out.Body.Status = "ok"
			return out, nil
		})

	type windowNamesOutput struct {
		Body struct {
			Windows namecache.Cache `json:"windows"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "get-window-names", Method: http.MethodGet, Path: "/api/v1/windows", Summary: "Current window name cache", Tags: []string{"Windows"}},
		func(ctx context.Context, input *struct{}) (*windowNamesOutput, error) {
			cache, err := svc.WindowNames(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &windowNamesOutput{}
			out.Body.Windows = cache
			return out, nil
		})

	type refreshOutput struct {
		Body struct {
			Windows namecache.Cache `json:"windows"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "refresh-names", Method: http.MethodPost, Path: "/api/v1/refresh", Summary: "Run one matching cycle now", Tags: []string{"Windows"}},
		func(ctx context.Context, input *struct{}) (*refreshOutput, error) {
			if err := svc.RefreshNames(ctx); err != nil {
				return nil, mapErr(err)
			}
			cache, err := svc.WindowNames(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &refreshOutput{}
			out.Body.Windows = cache
			return out, nil
		})

	type diagnoseOutput struct {
		Body controller.DiagnoseReport
	}
	huma.Register(api, huma.Operation{OperationID: "diagnose", Method: http.MethodGet, Path: "/api/v1/diagnose", Summary: "Probe reachability and candidate scores", Tags: []string{"Diagnostics"}},
		func(ctx context.Context, input *struct{}) (*diagnoseOutput, error) {
			report, err := svc.Diagnose(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &diagnoseOutput{}
			out.Body = report
			return out, nil
		})
}

func registerProbeHandlers(api huma.API, svc Service) {
	type probeLogOutput struct {
		Body struct {
			Log string `json:"log"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "get-probe-log", Method: http.MethodGet, Path: "/api/v1/probe/log", Summary: "Probe debug log", Tags: []string{"Diagnostics"}},
		func(ctx context.Context, input *struct{}) (*probeLogOutput, error) {
			log, err := svc.ProbeDebugLog(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &probeLogOutput{}
			out.Body.Log = log
			return out, nil
		})

	type extensionLogInput struct {
		Body map[string]any
	}
	type extensionLogOutput struct {
		Body struct {
			Accepted bool `json:"accepted"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "log-extension-data", Method: http.MethodPost, Path: "/api/v1/probe/extension-log", Summary: "Forward data to probe debug log", Tags: []string{"Diagnostics"}},
		func(ctx context.Context, input *extensionLogInput) (*extensionLogOutput, error) {
			svc.ForwardExtensionData(ctx, input.Body)
			out := &extensionLogOutput{}
			out.Body.Accepted = true
			return out, nil
		})
}
