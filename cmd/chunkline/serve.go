package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sir_venger/chunkline/internal/app/transferhttp"
	"github.com/sir_venger/chunkline/internal/config"
	"github.com/sir_venger/chunkline/internal/logger"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd(root *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the transfer server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.ListenAddr = addr
			}
			logger.Init(cfg.LogLevel, root.debug)
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address, overrides LISTEN_ADDR")
	return cmd
}

func serve(parent context.Context, cfg *config.Config) error {
	log := logger.Get("serve")

	h, srv, err := transferhttp.NewServer(cfg)
	if err != nil {
		return err
	}

	// Фоновый GC незавершённых загрузок.
	stopGC := transferhttp.StartGC(srv.Transfers, cfg.GC.TTL, cfg.GC.Interval)
	defer stopGC()

	server := &http.Server{Addr: cfg.ListenAddr, Handler: h}
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("shutdown error")
		}
	}()

	log.Info().
		Str("addr", cfg.ListenAddr).
		Str("upload_root", cfg.UploadRoot).
		Str("download_root", cfg.DownloadRoot).
		Str("artifact_root", cfg.Artifacts()).
		Str("checksum", cfg.ChecksumAlgorithm).
		Str("compression", cfg.ChunkCompression).
		Stringer("chunk_size", cfg.DefaultChunkSize).
		Dur("gc_ttl", cfg.GC.TTL).
		Dur("gc_every", cfg.GC.Interval).
		Msg("listening")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info().Msg("stopped")
	return nil
}
