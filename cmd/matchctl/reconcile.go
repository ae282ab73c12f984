package main

import (
	"github.com/spf13/cobra"

	"github.com/example/freight-matching/internal/models"
)

// newReconcileCmd lists routes and loads claimed without a recorded match,
// the residue of partial commits.
func newReconcileCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "List claimed routes and loads that have no match",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()
			orphans, err := c.store.ListOrphans(ctx)
			if err != nil {
				return err
			}
			if orphans == nil {
				orphans = []models.Orphan{}
			}
			c.logger.Info("reconcile scan", "orphans", len(orphans))
			return printJSON(cmd.OutOrStdout(), orphans)
		},
	}
}
