package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/joshua0624/gym-brain-v2-sub001/internal/client"
	"github.com/joshua0624/gym-brain-v2-sub001/internal/client/localstore"
)

// print writes v as JSON or the formatted text line, depending on --format.
func (o *RootOptions) print(cmd *cobra.Command, v any, format string, args ...any) error {
	if o.Format == "json" {
		return writeJSON(cmd, v)
	}
	_, err := fmt.Fprintf(cmd.OutOrStdout(), format, args...)
	return err
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (o *RootOptions) printDraft(cmd *cobra.Command, draft *localstore.Draft) error {
	if o.Format == "json" {
		return writeJSON(cmd, draft)
	}
	out := cmd.OutOrStdout()
	writeDraft(out, draft)
	return nil
}

func writeDraft(out io.Writer, draft *localstore.Draft) {
	w := draft.Workout
	fmt.Fprintf(out, "%s (started %s)\n", w.Name, w.StartedAt.Local().Format(time.Kitchen))
	for i, ex := range w.Exercises {
		fmt.Fprintf(out, "  [%d] %s\n", i, ex.ExerciseID)
		for _, set := range ex.Sets {
			fmt.Fprintf(out, "      %s\n", describeSet(set.Weight, set.Reps, set.DurationSeconds, set.Distance, set.IsWarmup))
		}
	}
	switch {
	case draft.RemoteSyncedAt != nil:
		fmt.Fprintf(out, "  saved on server %s\n", draft.RemoteSyncedAt.Local().Format(time.Kitchen))
	default:
		fmt.Fprintln(out, "  saved on this device only")
	}
}

func describeSet(weight *float64, reps, duration *int, distance *float64, warmup *bool) string {
	var s string
	switch {
	case weight != nil && reps != nil:
		s = fmt.Sprintf("%g x %d", *weight, *reps)
	case reps != nil:
		s = fmt.Sprintf("%d reps", *reps)
	case duration != nil:
		s = fmt.Sprintf("%ds", *duration)
	case distance != nil:
		s = fmt.Sprintf("%gm", *distance)
	default:
		s = "-"
	}
	if warmup != nil && *warmup {
		s += " (warm-up)"
	}
	return s
}

func (o *RootOptions) printStatus(cmd *cobra.Command, status *client.Status) error {
	if o.Format == "json" {
		return writeJSON(cmd, status)
	}
	out := cmd.OutOrStdout()
	if status.Online {
		fmt.Fprintln(out, "server: reachable")
	} else {
		fmt.Fprintln(out, "server: unreachable")
	}
	if status.Active != nil {
		writeDraft(out, status.Active)
	} else {
		fmt.Fprintln(out, "no workout in progress")
	}

	fmt.Fprintf(out, "queued: %d\n", len(status.Pending))
	for _, e := range status.Pending {
		writeEntry(out, e)
	}
	if len(status.Dead) > 0 {
		fmt.Fprintf(out, "dead-lettered: %d (gymsync retry <seq> | gymsync drop <seq>)\n", len(status.Dead))
		for _, e := range status.Dead {
			writeEntry(out, e)
		}
	}
	return nil
}

func writeEntry(out io.Writer, e localstore.QueueEntry) {
	line := fmt.Sprintf("  #%d %s queued %s", e.Seq, e.Operation, e.CreatedAt.Local().Format(time.DateTime))
	if e.RetryCount > 0 {
		line += fmt.Sprintf(", %d failed attempts", e.RetryCount)
	}
	if e.LastError != "" {
		line += ": " + e.LastError
	}
	fmt.Fprintln(out, line)
}
