package graceful

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
)

func MakeSigintChan() chan os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	return sigCh
}

// WithSignalCancel returns a context cancelled on SIGINT/SIGTERM or when the
// returned cancel func is called, whichever comes first.
func WithSignalCancel(parent context.Context, logger logrus.FieldLogger) (context.Context, context.CancelFunc) {
	return withCancelOn(parent, MakeSigintChan(), logger)
}

func withCancelOn(parent context.Context, sigCh chan os.Signal, logger logrus.FieldLogger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		defer signal.Stop(sigCh)
		select {
		case sig := <-sigCh:
			logger.Infof("received %s, cancelling", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
