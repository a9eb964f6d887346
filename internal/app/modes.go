package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stackctl/internal/tui"
	"stackctl/pkg/logging"
)

// shutdownTimeout bounds the final drain of the stack once a stop was
// decided, in both modes.
const shutdownTimeout = 60 * time.Second

// runHeadless brings the stack up without a dashboard, keeps it running
// until interrupted, and tears it down on the way out.
func (a *Application) runHeadless(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := a.sup.Start(ctx); err != nil {
		return err
	}

	waitCtx, cancelWait := context.WithTimeout(ctx, a.config.WaitTimeout)
	err := a.sup.AwaitConverged(waitCtx)
	cancelWait()
	if err != nil {
		if stopErr := a.stopStack(); stopErr != nil {
			logging.Error("CLI", stopErr, "Stopping stack after failed convergence")
		}
		if errors.Is(err, context.Canceled) {
			// Interrupted while still converging; that is a user stop,
			// not a convergence verdict.
			return nil
		}
		return err
	}

	logging.Info("CLI", "Stack %q converged, all %d services healthy. Press Ctrl-C to stop.", a.registry.StackName(), a.registry.Len())
	<-ctx.Done()
	logging.Info("CLI", "Stopping stack %q", a.registry.StackName())
	return a.stopStack()
}

// runDashboard hands the stack to the interactive dashboard. The
// dashboard owns the shutdown: quitting it stops the stack before Run
// returns.
func (a *Application) runDashboard(ctx context.Context) error {
	logCh := logging.InitForTUI(logging.ParseLevel(a.config.LogLevel))
	defer logging.CloseTUIChannel()

	if err := a.sup.Start(ctx); err != nil {
		return err
	}
	return tui.Run(a.sup, a.registry.StackName(), logCh)
}

func (a *Application) stopStack() error {
	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return a.sup.StopAll(stopCtx)
}
