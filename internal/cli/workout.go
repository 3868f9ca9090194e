package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/joshua0624/gym-brain-v2-sub001/internal/client"
)

// NewStartCommand creates the start command.
func NewStartCommand(rootOpts *RootOptions) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a new workout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tracker, closeStore, err := rootOpts.openTracker(cmd)
			if err != nil {
				return err
			}
			defer closeStore()

			tracker.Connect(cmd.Context())
			draft, err := tracker.Start(cmd.Context(), name)
			if err != nil {
				return err
			}
			return rootOpts.printDraft(cmd, draft)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "workout name (required)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

// NewAddExerciseCommand creates the add-exercise command.
func NewAddExerciseCommand(rootOpts *RootOptions) *cobra.Command {
	var exerciseID string
	cmd := &cobra.Command{
		Use:   "add-exercise",
		Short: "Add an exercise to the workout in progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tracker, closeStore, err := rootOpts.openTracker(cmd)
			if err != nil {
				return err
			}
			defer closeStore()

			draft, err := tracker.AddExercise(cmd.Context(), exerciseID)
			if err != nil {
				return err
			}
			return rootOpts.printDraft(cmd, draft)
		},
	}
	cmd.Flags().StringVar(&exerciseID, "exercise", "", "catalog exercise id (required)")
	_ = cmd.MarkFlagRequired("exercise")
	return cmd
}

// NewLogSetCommand creates the log-set command.
func NewLogSetCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		index    int
		weight   float64
		reps     int
		rir      int
		duration int
		distance float64
		warmup   bool
	)
	cmd := &cobra.Command{
		Use:   "log-set",
		Short: "Record a completed set and autosave the workout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tracker, closeStore, err := rootOpts.openTracker(cmd)
			if err != nil {
				return err
			}
			defer closeStore()

			in := client.SetInput{Warmup: warmup}
			flags := cmd.Flags()
			if flags.Changed("weight") {
				in.Weight = &weight
			}
			if flags.Changed("reps") {
				in.Reps = &reps
			}
			if flags.Changed("rir") {
				in.RIR = &rir
			}
			if flags.Changed("duration") {
				in.DurationSeconds = &duration
			}
			if flags.Changed("distance") {
				in.Distance = &distance
			}
			if in.Weight == nil && in.Reps == nil && in.DurationSeconds == nil && in.Distance == nil {
				return errors.New("a set needs at least one of --weight, --reps, --duration or --distance")
			}

			tracker.Connect(cmd.Context())
			draft, err := tracker.LogSet(cmd.Context(), index, in)
			if err != nil {
				return err
			}
			return rootOpts.printDraft(cmd, draft)
		},
	}
	cmd.Flags().IntVar(&index, "exercise-index", 0, "position of the exercise in the workout")
	cmd.Flags().Float64Var(&weight, "weight", 0, "load")
	cmd.Flags().IntVar(&reps, "reps", 0, "repetitions")
	cmd.Flags().IntVar(&rir, "rir", 0, "reps in reserve")
	cmd.Flags().IntVar(&duration, "duration", 0, "duration in seconds")
	cmd.Flags().Float64Var(&distance, "distance", 0, "distance")
	cmd.Flags().BoolVar(&warmup, "warmup", false, "warm-up set, excluded from volume")
	return cmd
}

// NewFinishCommand creates the finish command.
func NewFinishCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "finish",
		Short: "Finish the workout and queue it for sync",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tracker, closeStore, err := rootOpts.openTracker(cmd)
			if err != nil {
				return err
			}
			defer closeStore()

			ctx := cmd.Context()
			seq, err := tracker.Finish(ctx)
			if err != nil {
				return err
			}
			result, err := tracker.Sync(ctx)
			if err != nil {
				return err
			}
			return rootOpts.print(cmd, map[string]any{"queued": seq, "synced": result.Synced, "remaining": result.Remaining},
				"workout queued as #%d (synced %d, waiting %d)\n", seq, result.Synced, result.Remaining+result.Failed)
		},
	}
}

// NewDiscardCommand creates the discard command.
func NewDiscardCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "discard",
		Short: "Abandon the workout in progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tracker, closeStore, err := rootOpts.openTracker(cmd)
			if err != nil {
				return err
			}
			defer closeStore()

			tracker.Connect(cmd.Context())
			if err := tracker.Discard(cmd.Context()); err != nil {
				return err
			}
			return rootOpts.print(cmd, map[string]any{"discarded": true}, "workout discarded\n")
		},
	}
}

// NewResumeCommand creates the resume command.
func NewResumeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Continue the workout saved on the server by another device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tracker, closeStore, err := rootOpts.openTracker(cmd)
			if err != nil {
				return err
			}
			defer closeStore()

			draft, err := tracker.Resume(cmd.Context())
			if err != nil {
				return err
			}
			return rootOpts.printDraft(cmd, draft)
		},
	}
}
