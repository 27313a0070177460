package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

// MonthDuration is the fixed month length used for retention windows.
const MonthDuration = 30 * 24 * time.Hour

// Cutoff returns now minus months fixed 30-day months, in Unix seconds.
func Cutoff(now time.Time, months int) int64 {
	return now.Add(-time.Duration(months) * MonthDuration).Unix()
}

// SweepResult reports the outcome of sweeping one set.
type SweepResult struct {
	Set     string
	Table   string
	Cutoff  int64
	Deleted int64
	Err     error
}

// Summary is the one-line report handed back to the scheduler.
func (r SweepResult) Summary() string {
	if r.Err != nil {
		return "Error during accesslog: " + r.Err.Error()
	}
	return fmt.Sprintf("%s rows deleted", humanize.Comma(r.Deleted))
}

// Sweeper deletes records older than each set's retention window.
type Sweeper struct {
	registry *Registry
	logger   logrus.FieldLogger
	now      func() time.Time
}

// SweeperOption customizes NewSweeper.
type SweeperOption func(*Sweeper)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) SweeperOption {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSweepLogger sets the sweeper logger.
func WithSweepLogger(l logrus.FieldLogger) SweeperOption {
	return func(s *Sweeper) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewSweeper(reg *Registry, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{registry: reg, logger: reg.logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run sweeps one set through a store of its own, never the capture store.
func (s *Sweeper) Run(ctx context.Context, set *Set) SweepResult {
	res := SweepResult{Set: set.Name, Table: set.Table, Cutoff: Cutoff(s.now(), set.RemoveAfter)}
	log := s.logger.WithFields(logrus.Fields{"set": set.Name, "table": set.Table, "cutoff": res.Cutoff})

	st, err := s.registry.factory.New(set)
	if err != nil {
		res.Err = err
		log.WithError(err).Error("accesslog: sweep failed")
		return res
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			log.WithError(cerr).Warn("accesslog: closing sweep store")
		}
	}()

	p, ok := st.(Pruner)
	if !ok {
		res.Err = &Error{Op: "sweep", Set: set.Name, Table: set.Table, Kind: ErrExecution, Err: fmt.Errorf("store %q does not support retention", set.Store.Kind)}
		log.WithError(res.Err).Error("accesslog: sweep failed")
		return res
	}
	n, err := p.DeleteBefore(ctx, res.Cutoff)
	if err != nil {
		res.Err = WithSet(err, set.Name)
		log.WithError(res.Err).Error("accesslog: sweep failed")
		return res
	}
	res.Deleted = n
	log.WithField("deleted", n).Info("accesslog: sweep completed")
	return res
}

// SweepAll sweeps every set in configuration order. A failing set never stops the rest.
func (s *Sweeper) SweepAll(ctx context.Context) []SweepResult {
	return s.SweepSets(ctx, s.registry.Names()...)
}

// SweepSets sweeps the named sets; unknown names are reported as failures.
func (s *Sweeper) SweepSets(ctx context.Context, names ...string) []SweepResult {
	out := make([]SweepResult, 0, len(names))
	for _, name := range names {
		set, ok := s.registry.Set(name)
		if !ok {
			out = append(out, SweepResult{Set: name, Err: &Error{Op: "sweep", Set: name, Kind: ErrInvalidSet, Err: errors.New("no such set")}})
			continue
		}
		out = append(out, s.Run(ctx, set))
	}
	return out
}
