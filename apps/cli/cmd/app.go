package cmd

import (
	"context"
	"fmt"

	"github.com/abdul-hamid-achik/hitcron/packages/core/runner"
	"github.com/abdul-hamid-achik/hitcron/packages/lease"
	"github.com/abdul-hamid-achik/hitcron/packages/metrics"
	"github.com/abdul-hamid-achik/hitcron/packages/notify"
	"github.com/abdul-hamid-achik/hitcron/packages/scheduler"
	"github.com/abdul-hamid-achik/hitcron/packages/store"
	"github.com/abdul-hamid-achik/hitcron/packages/workspace"
	"github.com/redis/go-redis/v9"
)

func openStore(ctx context.Context) (*store.Store, error) {
	st, err := store.Open(ctx, appConfig.Database, store.WithLogger(logger))
	if err != nil {
		return nil, withExitCode(ExitStoreError, err)
	}
	return st, nil
}

// importWorkspace loads a workspace file and upserts it into st
func importWorkspace(ctx context.Context, st *store.Store, path string) (*store.ImportSummary, error) {
	ws, err := workspace.Load(path)
	if err != nil {
		return nil, withExitCode(ExitParseError, err)
	}
	summary, err := st.Import(ctx, ws)
	if err != nil {
		return nil, withExitCode(ExitStoreError, err)
	}
	logger.WithField("workspace", path).WithField("collections", summary.Collections).
		WithField("schedules", summary.Schedules).Info("workspace imported")
	return summary, nil
}

// newRunner persists runs to st, and also records them in collector when it is set
func newRunner(st *store.Store, collector *metrics.Collector) *runner.Runner {
	var runs runner.RunWriter = st
	if collector != nil {
		runs = metrics.NewRecordingWriter(st, collector)
	}
	return runner.NewRunner(appConfig.RunnerConfig(logger), st, runs)
}

// newNotifier returns nil when SMTP is not configured
func newNotifier() (scheduler.Notifier, error) {
	if !appConfig.SMTPEnabled() {
		logger.Info("smtp not configured, report emails are disabled")
		return nil, nil
	}
	notifyOn, err := notify.ParseNotifyOn(appConfig.SMTP.NotifyOn)
	if err != nil {
		return nil, withExitCode(ExitConfigError, err)
	}
	mailer, err := notify.NewSMTPMailer(appConfig.MailerConfig())
	if err != nil {
		return nil, withExitCode(ExitConfigError, err)
	}
	return notify.NewEmailNotifier(mailer, notifyOn, logger), nil
}

// newLocker connects to redis when configured so that several instances
// sharing one store fire each scheduled test once. The returned client is
// nil for the process-local locker.
func newLocker(ctx context.Context) (lease.Locker, *redis.Client, error) {
	if appConfig.Redis.URL == "" {
		return lease.NewLocalLocker(), nil, nil
	}
	rdb, err := lease.DialRedis(ctx, appConfig.Redis.URL)
	if err != nil {
		return nil, nil, withExitCode(ExitConfigError, fmt.Errorf("connecting to redis: %w", err))
	}
	return lease.NewRedisLocker(rdb), rdb, nil
}
