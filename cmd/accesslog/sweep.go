package main

import (
	"fmt"

	"github.com/PaulFidika/accesslog/core"
	"github.com/spf13/cobra"
)

func (a *app) sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep [set...]",
		Short: "Delete events older than each set's retention window",
		Long: `Run the retention sweep once.

Without arguments every configured set is swept in configuration order.
One summary line is printed per set. A failing set does not stop the
others; the command exits non-zero when any set failed.

Examples:
  accesslog sweep
  accesslog sweep set1 partners`,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, _, err := a.open()
			if err != nil {
				return err
			}
			defer a.closeRegistry(reg)

			sweeper := core.NewSweeper(reg, core.WithSweepLogger(a.logger))
			var results []core.SweepResult
			if len(args) == 0 {
				results = sweeper.SweepAll(cmd.Context())
			} else {
				results = sweeper.SweepSets(cmd.Context(), args...)
			}
			return printResults(cmd, results)
		},
	}
}

func printResults(cmd *cobra.Command, results []core.SweepResult) error {
	failed := 0
	for _, r := range results {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", r.Set, r.Summary())
		if r.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d sets failed", failed, len(results))
	}
	return nil
}
