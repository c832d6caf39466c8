package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgnsrekt/window_namer/internal/api"
	"github.com/dgnsrekt/window_namer/internal/browser"
	"github.com/dgnsrekt/window_namer/internal/cdp"
	"github.com/dgnsrekt/window_namer/internal/config"
	"github.com/dgnsrekt/window_namer/internal/controller"
	"github.com/dgnsrekt/window_namer/internal/namecache"
	"github.com/dgnsrekt/window_namer/internal/netutil"
	"github.com/dgnsrekt/window_namer/internal/notify"
	"github.com/dgnsrekt/window_namer/internal/probe"
	"github.com/dgnsrekt/window_namer/internal/stream"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := setupLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		_, _ = io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n")
		os.Exit(1)
	}

	slog.Info("config loaded",
		"cdp_url", cfg.CDPURL(),
		"bind_addr", cfg.BindAddr,
		"probe_path", cfg.ProbePath,
		"browser_label", cfg.BrowserLabel,
		"cache_file", cfg.CacheFile,
		"log_level", cfg.LogLevel,
	)

	bindAddr, err := netutil.SelectBindAddr(cfg.BindAddr, cfg.PortCandidates, cfg.PortAutoFallback)
	if err != nil {
		slog.Error("failed to select bind address", "preferred", cfg.BindAddr, "error", err)
		os.Exit(1)
	}

	var launcher *browser.Launcher
	if cfg.LaunchBrowser {
		launcher = browser.NewLauncher(browser.Config{
			CDPAddress: cfg.CDPAddress,
			CDPPort:    cfg.CDPPort,
			StartURL:   cfg.StartURL,
			ProfileDir: cfg.ProfileDir,
		})
		if err := launcher.Launch(context.Background()); err != nil {
			slog.Error("failed to launch browser", "error", err)
			os.Exit(1)
		}
		defer launcher.Stop()
	}

	cdpClient := cdp.NewClient(cfg.CDPURL(), time.Duration(cfg.EvalTimeoutMS)*time.Millisecond)
	if err := cdpClient.Connect(context.Background()); err != nil {
		slog.Error("failed to connect to browser", "cdp_url", cfg.CDPURL(), "error", err)
		os.Exit(1)
	}
	defer func() { _ = cdpClient.Close() }()

	store, err := namecache.NewStore(cfg.CacheFile)
	if err != nil {
		slog.Error("failed to open name cache", "path", cfg.CacheFile, "error", err)
		os.Exit(1)
	}

	prober := probe.NewClient(cfg.ProbePath, cfg.BrowserLabel)
	broker := stream.NewBroker()

	var alert controller.Notify
	if cfg.NTFYEndpoint != "" {
		endpoint := cfg.NTFYEndpoint
		alert = func(ctx context.Context, message string) {
			if err := notify.Send(ctx, nil, endpoint, message); err != nil {
				slog.Debug("ntfy alert failed", "error", err)
			}
		}
	}

	svc := controller.NewService(cdpClient, prober, store, broker, alert)

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	if err := svc.ReconcileOnStartup(runCtx); err != nil {
		slog.Warn("startup reconciliation failed", "error", err)
	}
	if err := svc.RefreshNames(runCtx); err != nil {
		slog.Warn("initial refresh failed", "error", err)
	}

	watcher := cdp.NewWatcher(cfg.CDPURL())
	if err := watcher.Start(runCtx); err != nil {
		slog.Warn("target watcher unavailable, names refresh only on demand", "error", err)
	} else {
		defer watcher.Stop()
		go svc.Watch(runCtx, watcher.Changes(), time.Duration(cfg.RefreshDebounceMS)*time.Millisecond)
	}

	srv := &http.Server{Addr: bindAddr, Handler: api.NewServer(svc, broker)}

	go func() {
		slog.Info("window namer listening", "addr", bindAddr, "docs", "http://"+bindAddr+"/docs")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	runCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown failed", "error", err)
	}
}

func setupLogger(level, filename string) error {
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return err
	}

	logWriter := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    25,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}

	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	h := slog.NewTextHandler(io.MultiWriter(os.Stdout, logWriter), &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(h))
	return nil
}
