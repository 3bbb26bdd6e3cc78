package crawler

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
)

// SetupSignalHandler returns a context cancelled on SIGTERM or SIGINT.
// shutdownFunc, if set, runs before the cancel. A second signal exits.
func SetupSignalHandler(shutdownFunc func(context.Context)) context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		sig := <-sigCh
		log.WithField("signal", sig.String()).Info("received signal, shutting down after the current unit of work")

		if shutdownFunc != nil {
			shutdownFunc(ctx)
		}
		cancel()

		sig = <-sigCh
		log.WithField("signal", sig.String()).Warn("received second signal, forcing exit")
		os.Exit(1)
	}()

	return ctx
}
