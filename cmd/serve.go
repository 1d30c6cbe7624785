package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/MimeLyc/cinefluent/internal/httpapi"
	"github.com/MimeLyc/cinefluent/internal/service"
	"github.com/MimeLyc/cinefluent/pkg/log"
)

type httpServer interface {
	ListenAndServe(addr string) error
	Shutdown(ctx context.Context) error
}

type runner interface {
	Run(ctx context.Context) error
}

type lifecycle interface {
	Start(ctx context.Context)
	Stop()
}

func newServeCommand(ctx *commandContext) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the job workers and the periodic sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTP.Addr = addr
			}

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			scheduler, err := service.NewScheduler(a.svc, cfg.Cache.SweepCron)
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runWithComponents(runCtx, cfg.HTTP.Addr, a.svc, scheduler, httpapi.NewServer(a.svc))
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Override HTTP_ADDR")
	return cmd
}

// runWithComponents starts the workers, the scheduler and the HTTP server
// and shuts all of them down when ctx is done or one of them fails.
func runWithComponents(ctx context.Context, addr string, workers lifecycle, scheduler runner, srv httpServer) error {
	g, gctx := errgroup.WithContext(ctx)

	workers.Start(gctx)
	defer workers.Stop()

	g.Go(func() error {
		return scheduler.Run(gctx)
	})
	g.Go(func() error {
		log.Info("Listening on %s", addr)
		if err := srv.ListenAndServe(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
