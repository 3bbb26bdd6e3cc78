package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"league-crawler/internal/api"
	"league-crawler/internal/app"
	"league-crawler/internal/crawler"
	"league-crawler/internal/logging"
)

const shutdownTimeout = 10 * time.Second

func main() {
	port := flag.String("port", "", "Listen port (overrides SERVER_PORT)")
	flag.Parse()

	cfg, err := app.Setup()
	if err != nil {
		log.Fatal(err)
	}
	if *port != "" {
		cfg.ServerPort = *port
	}

	ctx := crawler.SetupSignalHandler(nil)

	s, err := app.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer s.Close()

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           api.NewRouter(s, logging.Component("api")),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("addr", srv.Addr).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
	log.Info("server stopped")
}
