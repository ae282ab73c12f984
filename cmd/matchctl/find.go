package main

import (
	"github.com/spf13/cobra"

	"github.com/example/freight-matching/internal/matcher"
)

func newFindCmd(c *cli) *cobra.Command {
	var minScore int
	cmd := &cobra.Command{
		Use:   "find",
		Short: "List ranked route/load candidates without writing anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()
			res, err := c.finder().Find(ctx, minScore)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().IntVar(&minScore, "min-score", matcher.MinViableScore, "minimum score to report (never below 50)")
	return cmd
}

func (c *cli) finder() *matcher.Finder {
	return &matcher.Finder{
		Store:    c.store,
		Timeout:  c.cfg.FinderTimeout,
		MinScore: c.cfg.MinScore,
		Logger:   c.logger,
	}
}
