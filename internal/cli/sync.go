package cli

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
)

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Send queued workouts to the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tracker, closeStore, err := rootOpts.openTracker(cmd)
			if err != nil {
				return err
			}
			defer closeStore()

			result, err := tracker.Sync(cmd.Context())
			if err != nil {
				return err
			}
			return rootOpts.print(cmd, result,
				"synced %d, failed %d, dead-lettered %d, not attempted %d\n",
				result.Synced, result.Failed, result.DeadLettered, result.Remaining)
		},
	}
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show connectivity, the workout in progress and the sync queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tracker, closeStore, err := rootOpts.openTracker(cmd)
			if err != nil {
				return err
			}
			defer closeStore()

			status, err := tracker.Status(cmd.Context())
			if err != nil {
				return err
			}
			return rootOpts.printStatus(cmd, status)
		},
	}
}

// NewRetryCommand creates the retry command.
func NewRetryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <seq>",
		Short: "Return a dead-lettered entry to the sync queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seq, err := parseSeq(args[0])
			if err != nil {
				return err
			}
			tracker, closeStore, err := rootOpts.openTracker(cmd)
			if err != nil {
				return err
			}
			defer closeStore()

			if err := tracker.Retry(cmd.Context(), seq); err != nil {
				return err
			}
			return rootOpts.print(cmd, map[string]any{"rearmed": seq}, "entry #%d re-armed\n", seq)
		},
	}
}

// NewDropCommand creates the drop command.
func NewDropCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "drop <seq>",
		Short: "Remove an entry from the sync queue without sending it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seq, err := parseSeq(args[0])
			if err != nil {
				return err
			}
			tracker, closeStore, err := rootOpts.openTracker(cmd)
			if err != nil {
				return err
			}
			defer closeStore()

			if err := tracker.Drop(cmd.Context(), seq); err != nil {
				return err
			}
			return rootOpts.print(cmd, map[string]any{"dropped": seq}, "entry #%d dropped\n", seq)
		},
	}
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Autosave and sync in the foreground until interrupted",
		Long: `Run the connectivity monitor, the sync queue processor and interval
autosave until interrupted. Queued workouts are sent as soon as the server
becomes reachable.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tracker, closeStore, err := rootOpts.openTracker(cmd)
			if err != nil {
				return err
			}
			defer closeStore()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Fprintln(cmd.OutOrStdout(), "watching, press Ctrl+C to stop")
			tracker.Watch(ctx)
			return nil
		},
	}
}

func parseSeq(raw string) (int64, error) {
	seq, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || seq <= 0 {
		return 0, fmt.Errorf("invalid queue sequence %q", raw)
	}
	return seq, nil
}
