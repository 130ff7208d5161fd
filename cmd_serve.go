package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ai_news_writer/generator"
	"ai_news_writer/jobs"
	"ai_news_writer/photos"
	"ai_news_writer/server"
)

var (
	serveAddr string
	serveSeed string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the generation service",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "http listen address (overrides config.server_addr)")
	serveCmd.Flags().StringVar(&serveSeed, "seed", "", "photo seed file (yaml/json) imported before serving")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	llm, err := buildLLM(ctx, cfg)
	if err != nil {
		return err
	}
	catalog, err := photos.Open(cfg.PhotoDB, logger)
	if err != nil {
		return err
	}
	defer catalog.Close()
	if serveSeed != "" {
		n, err := catalog.Import(ctx, serveSeed)
		if err != nil {
			return err
		}
		logger.Info("photo seed imported", zap.Int("count", n))
	}

	agent, err := generator.NewAgent(llm, generator.WithPhotoSource(catalog), generator.WithLogger(logger))
	if err != nil {
		return err
	}
	store := jobs.NewStore()
	runner := jobs.NewRunner(agent, store,
		jobs.WithMaxConcurrent(cfg.MaxConcurrent),
		jobs.WithJobTimeout(cfg.RequestTimeout.Std()),
		jobs.WithLogger(logger),
	)
	janitor := jobs.NewJanitor(store, cfg.JobTTL.Std(), logger)
	if err := janitor.Start(jobs.DefaultSweepSchedule); err != nil {
		return err
	}
	defer janitor.Stop()

	srv, err := server.New(runner, catalog, logger)
	if err != nil {
		return err
	}
	listen := cfg.ServerAddr
	if serveAddr != "" {
		listen = serveAddr
	}
	if listen == "" {
		listen = ":8080"
	}
	httpSrv := &http.Server{
		Addr:              listen,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting web server", zap.String("addr", listen))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := httpSrv.Shutdown(shutdownCtx)
		if rerr := runner.Shutdown(shutdownCtx); err == nil {
			err = rerr
		}
		logger.Info("web server stopped")
		return err
	})
	return g.Wait()
}
