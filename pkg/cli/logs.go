package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/releasekit/releasekit/pkg/journal"
	"github.com/releasekit/releasekit/pkg/runctx"
)

func newLogsCmd() *cobra.Command {
	var follow bool
	var lines int

	cmd := &cobra.Command{
		Use:   "logs <package>",
		Short: "Show the release transcript for a package",
		Long:  `Display the append-only release journal of a package. Every run, stage transition, and command output line lands there.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogs(args[0], follow, lines)
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "follow the transcript as it grows")
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "number of lines to show")

	return cmd
}

func runLogs(packageName string, follow bool, lines int) error {
	rc, err := runctx.New(projectRoot)
	if err != nil {
		return err
	}

	path := journal.PathFor(rc, packageName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		printWarning(fmt.Sprintf("No transcript for %s yet. Run 'releasekit release %s <version>' first.", packageName, packageName))
		return nil
	}

	content, err := journal.TailLines(path, lines)
	if err != nil {
		return fmt.Errorf("failed to read transcript: %w", err)
	}
	fmt.Print(content)

	if !follow {
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := journal.Follow(ctx, path, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
