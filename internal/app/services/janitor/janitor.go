// Package janitor runs periodic background maintenance.
package janitor

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/todo-platform/task-api/internal/app/storage"
	"github.com/todo-platform/task-api/internal/logging"
)

// Janitor purges expired entries from the refresh-token denylist on a cron
// schedule so the table does not grow without bound.
type Janitor struct {
	tokens   storage.TokenStore
	log      *logging.Logger
	schedule string
	cron     *cron.Cron
}

// New builds a Janitor. schedule is a standard cron expression; empty means
// hourly.
func New(tokens storage.TokenStore, schedule string, log *logging.Logger) *Janitor {
	if schedule == "" {
		schedule = "@hourly"
	}
	if log == nil {
		log = logging.NewDefault("janitor")
	}
	return &Janitor{tokens: tokens, log: log, schedule: schedule}
}

// Name implements system.Service.
func (j *Janitor) Name() string { return "janitor" }

// Start implements system.Service.
func (j *Janitor) Start(_ context.Context) error {
	j.cron = cron.New()
	if _, err := j.cron.AddFunc(j.schedule, j.runOnce); err != nil {
		return err
	}
	j.cron.Start()
	return nil
}

// Stop implements system.Service. Waits for an in-flight purge to finish.
func (j *Janitor) Stop(ctx context.Context) error {
	if j.cron == nil {
		return nil
	}
	done := j.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (j *Janitor) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	purged, err := j.tokens.PurgeExpiredTokens(ctx, time.Now().UTC())
	if err != nil {
		j.log.WithError(err).Warn("token purge failed")
		return
	}
	if purged > 0 {
		j.log.WithField("purged", purged).Info("expired refresh tokens purged")
	}
}
