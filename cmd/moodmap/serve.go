package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/justestif/moodmap/internal/cache"
	"github.com/justestif/moodmap/internal/device"
	"github.com/justestif/moodmap/internal/persist"
	"github.com/justestif/moodmap/internal/session"
	"github.com/justestif/moodmap/internal/suggest"
	syncer "github.com/justestif/moodmap/internal/sync"
	"github.com/justestif/moodmap/internal/telemetry"
	"github.com/justestif/moodmap/internal/web"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the session engine behind the HTTP control API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")
}

func runServe(ctx context.Context) error {
	if serveAddr != "" {
		cfg.Addr = serveAddr
	}

	shutdown, err := telemetry.Init(ctx, cfg.OTelEndpoint, cfg.ServiceName, cfg.OTelInsecure)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			logger.Warn("flushing metrics", zap.Error(err))
		}
	}()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	writer := persist.NewWriter(store, persist.WithLogger(logger.Named("persist")))
	defer writer.Close()

	hc, err := httpClient(ctx, cfg, cfg.HTTPTimeout)
	if err != nil {
		return fmt.Errorf("building HTTP client: %w", err)
	}
	remote, err := newBackend(hc, cfg, logger)
	if err != nil {
		return err
	}

	restored, err := session.Bootstrap(ctx, store, remote, logger.Named("bootstrap"))
	if err != nil {
		return fmt.Errorf("restoring state: %w", err)
	}

	assets, err := newAssetCache(ctx, cfg, logger.Named("cache"), cache.WithIndexWriter(writer))
	if err != nil {
		return err
	}
	defer assets.Close()
	assets.Restore(restored.CacheIndex)

	engine := syncer.New(device.NewFileCapture(cfg.CaptureClip, logger.Named("capture")), remote, assets,
		syncer.WithTimings(cfg.CaptureWindow, cfg.AnalysisDelay),
		syncer.WithLogger(logger.Named("sync")),
	)

	ctl := session.New(engine, device.NewLogPlayer(logger.Named("player")), assets,
		session.WithRestored(restored),
		session.WithWriter(writer),
		session.WithSuggester(suggest.New(remote, suggest.WithLogger(logger.Named("suggest")))),
		session.WithLogger(logger.Named("session")),
	)
	defer ctl.Close()

	server, err := web.NewServer(web.ServerConfig{
		Addr:       cfg.Addr,
		Controller: ctl,
		Logger:     logger.Named("web"),
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	return server.Run(ctx)
}
