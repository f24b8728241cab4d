package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/matiasleandrokruk/ifcglb/internal/api"
	"github.com/matiasleandrokruk/ifcglb/internal/api/handlers"
	apmiddleware "github.com/matiasleandrokruk/ifcglb/internal/api/middleware"
	"github.com/matiasleandrokruk/ifcglb/internal/domain/conversion"
	"github.com/matiasleandrokruk/ifcglb/internal/infra/config"
	"github.com/matiasleandrokruk/ifcglb/internal/infra/eventbus"
	"github.com/matiasleandrokruk/ifcglb/internal/native"
	"github.com/matiasleandrokruk/ifcglb/internal/server"
)

const shutdownTimeout = 30 * time.Second

// busCloser adapts eventbus.Bus to io.Closer for server shutdown and
// reports events that subscribers were too slow to take.
type busCloser struct {
	bus *eventbus.Bus
	log *zap.Logger
}

func (c busCloser) Close() error {
	c.bus.Close()
	if n := c.bus.Dropped(); n > 0 {
		c.log.Warn("event bus dropped events", zap.Int64("dropped", n))
	}
	return nil
}

func runServe(ctx context.Context, args []string, _ io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var cf configFlags
	cf.register(fs)
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	cfg, log, err := cf.load()
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err) //nolint:errcheck
		return exitFailure
	}
	defer log.Sync() //nolint:errcheck

	srv, err := buildServer(ctx, cfg, log)
	if err != nil {
		log.Error("startup failed", zap.Error(err))
		return exitFailure
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error("server stopped", zap.Error(err))
			return exitFailure
		}
		return exitOK
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", zap.Error(err))
		return exitFailure
	}
	return exitOK
}

// buildServer wires storage, the converter, the event bus and the HTTP stack.
func buildServer(ctx context.Context, cfg config.Config, log *zap.Logger) (*server.Server, error) {
	db, err := openStore(cfg.DBPath, log)
	if err != nil {
		return nil, err
	}

	bus := eventbus.New()
	conv := newConverter(cfg, log)
	svc := newService(db, conv, bus, cfg, log)

	if !cfg.RetainInputs {
		conversion.NewJanitor(log).Start(ctx, bus)
	}

	router := api.NewRouter(api.Deps{
		Conversions: svc,
		Convert: handlers.ConvertConfig{
			InDir:          cfg.InDir,
			OutDir:         cfg.OutDir,
			MaxUploadBytes: cfg.MaxUploadBytes(),
		},
		Auth: apmiddleware.AuthConfig{
			JWTSecret:    []byte(cfg.JWTSecret),
			APIKeyHashes: cfg.APIKeyHashes,
		},
		NativeLoaded: native.Loaded,
		Log:          log,
	})

	log.Info("configuration loaded",
		zap.String("converter", conv.Name()),
		zap.Int("max_concurrent", cfg.MaxConcurrent),
		zap.String("in_dir", cfg.InDir),
		zap.String("out_dir", cfg.OutDir),
		zap.String("db_path", cfg.DBPath),
		zap.Bool("auth", cfg.AuthEnabled()),
		zap.Bool("retain_inputs", cfg.RetainInputs),
	)

	return server.NewServer(router, server.Config{
		Host:         cfg.Host,
		Port:         cfg.Port,
		ReadTimeout:  cfg.ReadTimeout.Std(),
		WriteTimeout: cfg.WriteTimeout.Std(),
		IdleTimeout:  server.DefaultConfig().IdleTimeout,
	}, log, busCloser{bus: bus, log: log}, db), nil
}
