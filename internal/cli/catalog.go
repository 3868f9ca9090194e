package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewCatalogCommand creates the catalog command group.
func NewCatalogCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the cached exercise catalog",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "refresh",
		Short: "Download the exercise catalog for offline use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tracker, closeStore, err := rootOpts.openTracker(cmd)
			if err != nil {
				return err
			}
			defer closeStore()

			n, err := tracker.RefreshCatalog(cmd.Context())
			if err != nil {
				return err
			}
			return rootOpts.print(cmd, map[string]any{"exercises": n}, "cached %d exercises\n", n)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print the cached exercise catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tracker, closeStore, err := rootOpts.openTracker(cmd)
			if err != nil {
				return err
			}
			defer closeStore()

			catalog, err := tracker.Catalog(cmd.Context())
			if err != nil {
				return err
			}
			if rootOpts.Format == "json" {
				return writeJSON(cmd, catalog)
			}
			for _, ex := range catalog {
				fmt.Fprintf(cmd.OutOrStdout(), "%-24s %-16s %s\n", ex.ID, ex.Type, ex.Name)
			}
			return nil
		},
	})
	return cmd
}
