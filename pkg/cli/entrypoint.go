package cli

import (
	"context"
	"io"
	"os/signal"
	"syscall"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Entrypoint interface {
	io.Closer
	Run(ctx context.Context) error
}

// Run runs e until it returns or the process is interrupted, then closes it.
func Run(ctx context.Context, log *zap.Logger, e Entrypoint) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	eg, ctx := errgroup.WithContext(ctx)
	done := make(chan struct{})

	eg.Go(func() error {
		defer close(done)
		return e.Run(ctx)
	})

	// graceful shutdown
	eg.Go(func() error {
		select {
		case <-ctx.Done():
			log.Info("gracefully shutting down")
		case <-done:
		}
		if err := e.Close(); err != nil {
			return errors.Wrap(err, "close")
		}
		return nil
	})

	return eg.Wait()
}
