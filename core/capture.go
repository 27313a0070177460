package core

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

// Assemble builds the record for one login without persisting it.
func Assemble(set *Set, req Request, now time.Time) (Record, error) {
	vals := req.Attributes[set.UIDField]
	if len(vals) == 0 {
		return nil, &Error{Op: "capture", Set: set.Name, Table: set.Table, Kind: ErrMissingIdentityField, Err: fmt.Errorf("%q", set.UIDField)}
	}
	service, ok := req.Destination[set.ServiceField]
	if !ok {
		return nil, &Error{Op: "capture", Set: set.Name, Table: set.Table, Kind: ErrMissingServiceField, Err: fmt.Errorf("%q", set.ServiceField)}
	}

	rec := Record{
		KeyUsername: vals[0],
		KeyService:  service,
		KeyDate:     strconv.FormatInt(now.Unix(), 10),
	}
	for _, e := range set.Mapping {
		if _, done := rec[e.Source]; done {
			continue
		}
		if fn, ok := set.extractors[e.Source]; ok {
			rec[e.Source] = fn(req.Transport)
		}
	}
	return rec, nil
}

// Capturer is the capture path of one set: assemble, then persist once.
type Capturer struct {
	set    *Set
	store  Store
	logger logrus.FieldLogger
	now    func() time.Time
}

func newCapturer(set *Set, st Store, logger logrus.FieldLogger) *Capturer {
	return &Capturer{
		set:    set,
		store:  st,
		logger: logger.WithFields(logrus.Fields{"set": set.Name, "table": set.Table}),
		now:    time.Now,
	}
}

// NewCapturer wires a capture path around an existing store.
func NewCapturer(set *Set, st Store, logger logrus.FieldLogger) *Capturer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return newCapturer(set, st, logger)
}

// Set returns the set this capturer writes for.
func (c *Capturer) Set() *Set { return c.set }

// Process records one login. Errors are returned as-is; nothing is retried or buffered.
func (c *Capturer) Process(ctx context.Context, req Request) (Record, error) {
	rec, err := Assemble(c.set, req, c.now())
	if err != nil {
		c.logger.WithError(err).Warn("accesslog: capture rejected")
		return nil, err
	}
	if err := c.store.Persist(ctx, rec); err != nil {
		err = WithSet(err, c.set.Name)
		c.logger.WithError(err).WithField("username", rec[KeyUsername]).Error("accesslog: persist failed")
		return rec, err
	}
	c.logger.WithFields(logrus.Fields{
		"username": rec[KeyUsername],
		"service":  rec[KeyService],
	}).Debug("accesslog: access recorded")
	return rec, nil
}
