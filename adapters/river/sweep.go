// Package riverjob runs the retention sweep as a river job, for hosts that already
// operate a river queue and prefer it over the in-process cron scheduler.
package riverjob

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PaulFidika/accesslog/core"
	"github.com/riverqueue/river"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// SweepArgs selects the sets to sweep; empty means every configured set.
type SweepArgs struct {
	Sets []string `json:"sets,omitempty"`
}

func (SweepArgs) Kind() string { return "accesslog_sweep" }

// InsertOpts keeps at most one pending sweep per argument set.
func (SweepArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		MaxAttempts: 3,
		UniqueOpts:  river.UniqueOpts{ByArgs: true},
	}
}

// SweepWorker runs the sweep. A job fails only when every swept set failed; partial
// failures are logged and the job completes so healthy sets are not swept twice.
type SweepWorker struct {
	river.WorkerDefaults[SweepArgs]
	Sweeper *core.Sweeper
	Logger  logrus.FieldLogger
}

func (w *SweepWorker) Work(ctx context.Context, job *river.Job[SweepArgs]) error {
	log := w.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	var results []core.SweepResult
	if len(job.Args.Sets) == 0 {
		results = w.Sweeper.SweepAll(ctx)
	} else {
		results = w.Sweeper.SweepSets(ctx, job.Args.Sets...)
	}
	var errs []error
	for _, r := range results {
		log.WithFields(logrus.Fields{"set": r.Set, "table": r.Table}).Info(r.Summary())
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	if len(results) == 0 || len(errs) < len(results) {
		return nil
	}
	err := errors.Join(errs...)
	if allConfiguration(errs) {
		// A retry cannot fix configuration.
		return river.JobCancel(err)
	}
	return err
}

func allConfiguration(errs []error) bool {
	for _, err := range errs {
		if !errors.Is(err, core.ErrConfiguration) {
			return false
		}
	}
	return true
}

// Register adds a SweepWorker for sweeper to workers.
func Register(workers *river.Workers, sweeper *core.Sweeper, logger logrus.FieldLogger) {
	river.AddWorker(workers, &SweepWorker{Sweeper: sweeper, Logger: logger})
}

// PeriodicSweep enqueues a full sweep on a standard cron schedule ("" means @daily).
func PeriodicSweep(spec string) (*river.PeriodicJob, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		spec = "@daily"
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}
	return river.NewPeriodicJob(
		schedule,
		func() (river.JobArgs, *river.InsertOpts) { return SweepArgs{}, nil },
		&river.PeriodicJobOpts{RunOnStart: false},
	), nil
}
