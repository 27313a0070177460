package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/PaulFidika/accesslog/core"
	"github.com/PaulFidika/accesslog/scheduler"
	"github.com/spf13/cobra"
)

const stopTimeout = 30 * time.Second

func (a *app) scheduleCmd() *cobra.Command {
	var spec string
	var runNow bool
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the retention sweep on a cron schedule",
		Long: `Run the retention sweep on a cron schedule until interrupted.

The schedule comes from --cron, then the config file's schedule key,
then @daily. Standard five-field expressions and descriptors such as
@hourly or "@every 6h" are accepted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, f, err := a.open()
			if err != nil {
				return err
			}
			defer a.closeRegistry(reg)

			if spec == "" {
				spec = f.Schedule
			}
			out := cmd.OutOrStdout()
			s, err := scheduler.New(
				core.NewSweeper(reg, core.WithSweepLogger(a.logger)),
				spec,
				scheduler.WithLogger(a.logger),
				scheduler.WithReport(func(tag string, lines []string) {
					for _, l := range lines {
						fmt.Fprintln(out, l)
					}
				}),
			)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if runNow {
				s.RunNow(ctx)
			}
			s.Start()
			<-ctx.Done()

			a.logger.Info("accesslog: stopping scheduler")
			sctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
			defer cancel()
			return s.Stop(sctx)
		},
	}
	cmd.Flags().StringVar(&spec, "cron", "", "Cron expression (default: config schedule or @daily)")
	cmd.Flags().BoolVar(&runNow, "run-now", false, "Sweep once immediately before waiting for the schedule")
	return cmd
}
