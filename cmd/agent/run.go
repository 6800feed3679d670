package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the agent tree until interrupted",
	RunE:  runAgents,
}

func runAgents(cmd *cobra.Command, _ []string) error {
	container, err := NewContainer(configPath, treePath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := container.Start(ctx); err != nil {
		return err
	}
	container.Logger.Info("agent tree running", "root", container.Tree.Root().Name())

	<-ctx.Done()
	container.Logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return container.Shutdown(shutdownCtx)
}
