package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/debridui/debridui/internal/config"
	"github.com/debridui/debridui/internal/logger"
	"github.com/debridui/debridui/pkg/debrid/store"
	"github.com/debridui/debridui/pkg/downloader"
	"github.com/debridui/debridui/pkg/web"
)

func main() {
	configPath := flag.String("config", "/data", "path to the config directory")
	flag.Parse()

	config.SetConfigPath(*configPath)
	cfg := config.Get()

	logger.SetLevel(cfg.LogLevel)
	logger.SetLogDir(filepath.Join(cfg.Path, "logs"))
	_log := logger.Default()

	if err := run(cfg); err != nil {
		_log.Fatal().Err(err).Msg("debridui exited with error")
	}
}

func run(cfg *config.Config) error {
	_log := logger.Default()

	s, err := store.New(cfg)
	if err != nil {
		return fmt.Errorf("building debrid store: %w", err)
	}

	downloadFolder := cfg.DownloadFolder
	if downloadFolder == "" {
		downloadFolder = filepath.Join(cfg.Path, "downloads")
	}
	dl, err := downloader.New(downloadFolder, cfg.MaxDownloads)
	if err != nil {
		return fmt.Errorf("building downloader: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := s.Start(ctx, cfg.SyncInterval); err != nil {
		return fmt.Errorf("starting background jobs: %w", err)
	}
	defer s.Stop()

	handler := web.New(s, dl).Routes()
	if cfg.URLBase != "" && cfg.URLBase != "/" {
		mux := http.NewServeMux()
		mux.Handle(cfg.URLBase+"/", http.StripPrefix(cfg.URLBase, handler))
		handler = mux
	}

	addr := net.JoinHostPort(cfg.BindAddress, cfg.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	errChan := make(chan error, 1)
	go func() {
		_log.Info().Str("addr", addr).Msg("debridui listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
	}

	_log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
