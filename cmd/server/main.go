package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"wcp-bridge/server/config"
	"wcp-bridge/server/internal/api"
	"wcp-bridge/server/internal/app"
	"wcp-bridge/server/internal/convert"
	"wcp-bridge/server/internal/metrics"
	"wcp-bridge/server/internal/platform/logging"
	"wcp-bridge/server/internal/platform/otel"
	"wcp-bridge/server/internal/repo"
	"wcp-bridge/server/internal/session"
	"wcp-bridge/server/internal/transport"
	"wcp-bridge/server/internal/transport/tcp"
	"wcp-bridge/server/internal/transport/ws"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := logging.Setup(os.Stderr, cfg.Log.Level, cfg.Log.Format); err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	if err := run(cfg); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Setup(ctx, otel.Config{
		ServiceName: "wcp-server",
		Endpoint:    cfg.OTel.Endpoint,
		SampleRatio: cfg.OTel.SampleRatio,
	})
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		_ = shutdownTracing(ctx)
	}()

	// 1. Repository
	var r repo.Repository
	if cfg.Converter.Kind != "none" {
		log.Infof("Initializing SQLite conversion cache at %s...", cfg.DBPath)
		sqlite, err := repo.NewSQLiteRepo(cfg.DBPath)
		if err != nil {
			return err
		}
		defer sqlite.Close()
		r = sqlite
	}

	// 2. Converter and viewer session
	conv, err := convert.New(cfg.Converter, r)
	if err != nil {
		return err
	}
	if conv != nil {
		info := conv.Info()
		log.WithFields(log.Fields{"name": info.Name, "version": info.Version, "vendor": info.Vendor}).Info("FSDB converter ready")
	}
	sess := session.New(conv, session.WithBaseDir(cfg.BaseDir))
	defer sess.Close()

	// 3. Application Service
	m := metrics.New()
	svc := app.NewService(sess, m, stop)

	delim, err := tcp.Delimiter(cfg.Framing)
	if err != nil {
		return err
	}
	opts := transport.Options{RPS: cfg.RateLimit.RPS, Burst: cfg.RateLimit.Burst, Metrics: m}

	g, ctx := errgroup.WithContext(ctx)

	// 4. WCP over TCP
	g.Go(func() error {
		if cfg.Initiate != "" {
			err := tcp.Initiate(ctx, cfg.Initiate, svc, delim, opts)
			stop()
			return err
		}
		return tcp.NewServer(svc, delim, opts).ListenAndServe(ctx, cfg.ListenAddr)
	})

	// 5. HTTP: websocket, health, metrics
	if cfg.HTTPAddr != "" {
		h := api.NewHandler(svc, sess, m, ws.NewServer(ctx, svc, opts))
		srv := &http.Server{Addr: cfg.HTTPAddr, Handler: h.NewEngine()}
		g.Go(func() error {
			log.WithField("addr", cfg.HTTPAddr).Info("HTTP server starting")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	log.Info("server stopped")
	return err
}
