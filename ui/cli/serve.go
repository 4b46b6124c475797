// Copyright (c) 2026 PanelApp Team
// PanelApp - gene panel curation service
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/genepanels/panelapp/internal/api"
	"github.com/genepanels/panelapp/internal/blob"
	"github.com/genepanels/panelapp/internal/core"
	"github.com/genepanels/panelapp/internal/exports"
	"github.com/genepanels/panelapp/internal/i18n"
	"github.com/genepanels/panelapp/internal/logging"
	"github.com/genepanels/panelapp/internal/metrics"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: i18n.T("serve.short"),
		Long: `Serves the REST API under /api/v1/, /healthz and /metrics, and runs the
background export workers. Stops gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx, nil)
		},
	}
	cmd.Flags().String("server.addr", ":8080", "listen address")
	return cmd
}

// serve runs until ctx is done. ready, when set, receives the bound address.
func (a *app) serve(ctx context.Context, ready chan<- string) error {
	rec := metrics.New()
	svc, err := a.service(core.WithMetrics(rec))
	if err != nil {
		return err
	}
	sink, err := blob.Open(ctx, a.cfg.Exports.Sink, a.cfg)
	if err != nil {
		return err
	}
	defer func() { _ = sink.Close() }()

	worker := exports.NewWorker(svc, sink,
		exports.WithObserver(rec),
		exports.WithWorkers(a.cfg.Exports.Workers),
	)
	server := api.New(svc,
		api.WithTokens(a.cfg.API.Tokens),
		api.WithPageSize(a.cfg.Server.PageSize),
		api.WithExports(worker),
		api.WithMetrics(rec),
	)
	httpServer := &http.Server{
		Handler:           server.Handler(),
		ReadTimeout:       a.cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      a.cfg.Server.WriteTimeout,
	}
	ln, err := net.Listen("tcp", a.cfg.Server.Addr)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return worker.Run(gctx) })
	g.Go(func() error {
		logging.Infof("%s", i18n.T("serve.listening", ln.Addr().String()))
		if ready != nil {
			ready <- ln.Addr().String()
		}
		if err := httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	err = g.Wait()
	logging.Infof("%s", i18n.T("serve.stopped"))
	return err
}
