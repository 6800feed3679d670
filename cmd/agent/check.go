package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"AgentTree/internal/agent/domain"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var errUnhealthy = errors.New("root agent is unhealthy")

var checkTimeout time.Duration

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Refresh every scheduled agent once, print the tree and exit",
	Long: `check starts the tree, waits until every scheduled agent has completed
its first refresh and prints each agent with its level. On-demand agents are
shown as last known. The command fails when the root is at error or worse.`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().DurationVar(&checkTimeout, "timeout", time.Minute, "how long to wait for the first refreshes")
}

func runCheck(cmd *cobra.Command, _ []string) error {
	container, err := NewContainer(configPath, treePath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), checkTimeout)
	defer cancel()

	started := time.Now()
	if err := container.Start(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
wait:
	for !settled(container.Tree, started) {
		select {
		case <-ctx.Done():
			container.Logger.Warn("timed out waiting for refreshes", "timeout", checkTimeout)
			break wait
		case <-ticker.C:
		}
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := container.Shutdown(shutdownCtx); err != nil {
		return err
	}

	printTree(cmd.OutOrStdout(), container.Tree)

	if root := container.Tree.Root(); root.State().Level() >= domain.LevelError {
		return fmt.Errorf("%w: %s", errUnhealthy, root.State())
	}
	return nil
}

// settled reports whether every scheduled agent finished a refresh after
// since, or is waiting out a startup delay or backoff.
func settled(tree *domain.Tree, since time.Time) bool {
	done := true
	tree.ForEach(domain.PreOrder, func(a *domain.Agent) {
		tm := a.Timing()
		if a.Refresher() == nil || tm.OnDemand {
			return
		}
		if tm.Refreshing() || (tm.LastSuccess.IsZero() && !tm.NextDue.After(since)) {
			done = false
		}
	})
	return done
}

// printTree writes one line per agent, indented by depth. The tree must be
// stopped.
func printTree(w io.Writer, tree *domain.Tree) {
	tree.ForEach(domain.PreOrder, func(a *domain.Agent) {
		depth := strings.Count(a.Path(), "/") - 1
		state := a.State()

		fmt.Fprintf(w, "%s%s ", strings.Repeat("  ", depth), a.Name())
		levelColor(state.Level()).Fprintf(w, "[%s]", state.Level())
		if summary := state.Summary(); summary != "" {
			fmt.Fprintf(w, " %s", summary)
		}
		if v := a.Value(); v.Kind() != domain.KindNone {
			fmt.Fprintf(w, " (%s)", v)
		}
		fmt.Fprintln(w)
	})
}

func levelColor(level domain.Level) *color.Color {
	switch level {
	case domain.LevelCritical:
		return color.New(color.FgRed, color.Bold)
	case domain.LevelError:
		return color.New(color.FgRed)
	case domain.LevelWarning:
		return color.New(color.FgYellow)
	case domain.LevelReady:
		return color.New(color.FgGreen)
	case domain.LevelUnimportant:
		return color.New(color.FgCyan)
	default:
		return color.New(color.FgWhite)
	}
}
