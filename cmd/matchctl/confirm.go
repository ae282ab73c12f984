package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/freight-matching/internal/events"
	"github.com/example/freight-matching/internal/matcher"
)

func newConfirmCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "confirm <candidate-id>",
		Short: "Re-run the finder and commit the named candidate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			res, err := c.finder().Find(ctx, 0)
			if err != nil {
				return err
			}
			for _, cand := range res.Candidates {
				if cand.ID != args[0] {
					continue
				}
				committer := &matcher.Committer{
					Store:      c.store,
					RetryDelay: c.cfg.CommitRetryDelay,
					Logger:     c.logger,
				}
				if len(c.cfg.KafkaBrokers) > 0 {
					kp := events.NewKafkaPublisher(c.cfg.KafkaBrokers, c.cfg.KafkaMatchTopic)
					defer kp.Close()
					committer.Events = kp
				}
				m, err := committer.Commit(ctx, cand)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), m)
			}
			return fmt.Errorf("candidate %q is not among the current matches", args[0])
		},
	}
}
