// Package cli implements the gymsync command line client.
package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joshua0624/gym-brain-v2-sub001/internal/client"
	"github.com/joshua0624/gym-brain-v2-sub001/internal/client/localstore"
	"github.com/joshua0624/gym-brain-v2-sub001/internal/client/remote"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigFile string
	Verbose    bool
	Format     string // "json" | "text"

	viper  *viper.Viper
	config Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the gymsync CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{viper: viper.New()}

	cmd := &cobra.Command{
		Use:   "gymsync",
		Short: "Offline-first workout logger",
		Long: `gymsync logs workouts on this device and syncs them to the workout API.

A workout in progress is autosaved locally and, when the server is reachable,
to the server's draft slot. Finished workouts wait in a local queue until they
are accepted by the server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			cfg, err := LoadConfig(opts.viper, opts.ConfigFile, cmd.Flags())
			if err != nil {
				return err
			}
			opts.config = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "config file (default ./gymsync.yaml)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().String("server", "", "API base URL")
	cmd.PersistentFlags().String("token", "", "bearer token")
	cmd.PersistentFlags().String("db", "", "path to the local SQLite database")

	cmd.AddCommand(NewStartCommand(opts))
	cmd.AddCommand(NewAddExerciseCommand(opts))
	cmd.AddCommand(NewLogSetCommand(opts))
	cmd.AddCommand(NewFinishCommand(opts))
	cmd.AddCommand(NewDiscardCommand(opts))
	cmd.AddCommand(NewResumeCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewRetryCommand(opts))
	cmd.AddCommand(NewDropCommand(opts))
	cmd.AddCommand(NewCatalogCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewDevTokenCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func (o *RootOptions) logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// openTracker opens the local store and wires a Tracker. The returned func closes the store.
func (o *RootOptions) openTracker(cmd *cobra.Command) (*client.Tracker, func(), error) {
	store, err := localstore.Open(o.config.DBPath)
	if err != nil {
		return nil, nil, err
	}
	api := remote.New(o.config.ServerURL, o.config.Token, o.config.RequestTimeout)
	tracker := client.New(store, api, client.Config{
		AutosaveInterval: o.config.AutosaveInterval,
		ProbeInterval:    o.config.ProbeInterval,
		MaxRetries:       o.config.MaxRetries,
		Logger:           o.logger(cmd),
	})
	return tracker, func() { store.Close() }, nil
}
