package main

import (
	"context"
	"errors"
	"expvar"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"chainstate/internal/blob"
	"chainstate/internal/compiler"
	"chainstate/internal/config"
	"chainstate/internal/httpapi"
	"chainstate/internal/logging"
	"chainstate/internal/metrics"
	"chainstate/internal/uisink"
	"chainstate/internal/workspace"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Restore stored chains and serve the workspace over HTTP",
		Long: `Restore every stored chain, make sure one chain is current and serve the
HTTP API and the UI websocket until interrupted. All chains and the shared
compilation state are saved on shutdown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

// app is a fully wired service that has not started listening.
type app struct {
	ws      *workspace.Workspace
	hub     *uisink.Hub
	store   blob.Store
	watcher *compiler.Watcher
	handler http.Handler
	log     *logrus.Entry
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	log := logging.New("chainstate")
	store, err := blob.Open(ctx, cfg.Blob)
	if err != nil {
		return nil, err
	}

	var recorders metrics.Multi
	var prom *metrics.Prometheus
	if cfg.Metrics.Prometheus {
		prom = metrics.NewPrometheus(cfg.Metrics.Namespace)
		recorders = append(recorders, prom)
	}
	if cfg.Metrics.Expvar {
		recorders = append(recorders, metrics.NewExpvar(""))
	}

	hub := uisink.NewHub(logging.New("uisink"))
	ws, err := workspace.New(workspace.Options{
		Store:           store,
		Sink:            hub,
		Logger:          logging.New("workspace"),
		Metrics:         recorders,
		DisableAutosave: !cfg.Autosave.Enabled,
		AutosaveDelay:   cfg.Autosave.Delay(),
	})
	if err != nil {
		hub.Close()
		_ = blob.Close(store)
		return nil, err
	}

	a := &app{ws: ws, hub: hub, store: store, log: log}
	if len(cfg.Compiler.Roots) > 0 {
		a.watcher, err = compiler.NewWatcher(cfg.Compiler.Watcher(), ws.Compilation(), logging.New("compiler"))
		if err != nil {
			a.close()
			return nil, err
		}
	}

	opts := httpapi.Options{UI: hub, Logger: logging.New("httpapi")}
	if prom != nil {
		opts.Metrics = prom.Handler()
	}
	if cfg.Metrics.Expvar {
		opts.Vars = expvar.Handler()
	}
	a.handler = httpapi.NewRouter(ws, opts)
	return a, nil
}

// start restores stored chains and makes sure a current chain exists.
func (a *app) start(ctx context.Context) error {
	res, err := a.ws.Restore(ctx)
	if err != nil {
		return err
	}
	p, err := a.ws.EnsureChain(ctx)
	if err != nil {
		return err
	}
	a.log.WithFields(logrus.Fields{
		"restored": len(res.Loaded),
		"failed":   len(res.Failed),
		"current":  p.ID(),
	}).Info("workspace ready")
	if a.watcher != nil {
		go a.watcher.Start(ctx)
	}
	return nil
}

// shutdown saves everything and releases resources.
func (a *app) shutdown(ctx context.Context) error {
	err := a.ws.Teardown(ctx)
	a.close()
	return err
}

func (a *app) close() {
	if a.watcher != nil {
		_ = a.watcher.Close()
	}
	a.ws.Close()
	a.hub.Close()
	if err := blob.Close(a.store); err != nil {
		a.log.WithError(err).Warn("blob store close failed")
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	if err := a.start(ctx); err != nil {
		a.close()
		return err
	}

	srv := &http.Server{Addr: cfg.Listen, Handler: a.handler, ReadHeaderTimeout: 5 * time.Second}
	errc := make(chan error, 1)
	go func() {
		a.log.WithField("addr", cfg.Listen).Info("listening")
		errc <- srv.ListenAndServe()
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errc:
	}

	shutCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		a.log.WithError(err).Warn("http shutdown")
	}
	teardownErr := a.shutdown(shutCtx)
	if errors.Is(serveErr, http.ErrServerClosed) {
		serveErr = nil
	}
	return errors.Join(serveErr, teardownErr)
}
