// Package scheduler triggers the retention sweep on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/PaulFidika/accesslog/core"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// DefaultSpec runs the sweep once a day.
const DefaultSpec = "@daily"

// Report receives the per-set summary lines of one run.
type Report func(tag string, summary []string)

// Scheduler runs Sweeper.SweepAll on a cron schedule. Runs never overlap.
type Scheduler struct {
	sweeper *core.Sweeper
	spec    string
	tag     string
	logger  logrus.FieldLogger
	report  Report

	cron *cron.Cron
	mu   sync.Mutex
}

type Option func(*Scheduler)

func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithReport sets the callback receiving summary lines after each run.
func WithReport(r Report) Option {
	return func(s *Scheduler) { s.report = r }
}

// WithTag labels runs in logs and reports.
func WithTag(tag string) Option {
	return func(s *Scheduler) {
		if strings.TrimSpace(tag) != "" {
			s.tag = strings.TrimSpace(tag)
		}
	}
}

// New validates spec (standard five-field cron or @descriptor) and builds a stopped scheduler.
func New(sweeper *core.Sweeper, spec string, opts ...Option) (*Scheduler, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		spec = DefaultSpec
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}
	s := &Scheduler{sweeper: sweeper, spec: spec, tag: spec, logger: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(s)
	}
	s.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{s.logger})))
	if _, err := s.cron.AddFunc(spec, func() { s.RunNow(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}
	return s, nil
}

// Spec returns the cron expression in use.
func (s *Scheduler) Spec() string { return s.spec }

// Start begins running on schedule in the background.
func (s *Scheduler) Start() {
	s.logger.WithField("schedule", s.spec).Info("accesslog: sweep scheduler started")
	s.cron.Start()
}

// Stop halts scheduling and waits for a running sweep, or for ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunNow sweeps every set immediately.
func (s *Scheduler) RunNow(ctx context.Context) []core.SweepResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger.WithField("tag", s.tag).Info("accesslog: running retention sweep")
	results := s.sweeper.SweepAll(ctx)
	if s.report != nil {
		lines := make([]string, len(results))
		for i, r := range results {
			lines[i] = r.Set + ": " + r.Summary()
		}
		s.report(s.tag, lines)
	}
	return results
}

// cronLogger adapts logrus to cron.Logger.
type cronLogger struct{ l logrus.FieldLogger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.WithFields(fields(keysAndValues)).Debug("cron: " + msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.WithFields(fields(keysAndValues)).WithError(err).Error("cron: " + msg)
}

func fields(kv []interface{}) logrus.Fields {
	out := logrus.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		out[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return out
}
