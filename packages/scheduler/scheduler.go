package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/hitcron/packages/core/model"
	"github.com/abdul-hamid-achik/hitcron/packages/core/runner"
	"github.com/abdul-hamid-achik/hitcron/packages/lease"
	"github.com/abdul-hamid-achik/hitcron/packages/report"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

var (
	// ErrClosed is returned by Schedule and Trigger after Shutdown
	ErrClosed = errors.New("scheduler is shut down")
	// ErrRunning is returned by Trigger while a firing of the same test is in progress
	ErrRunning = errors.New("scheduled test is already running")
)

var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ValidateSpec reports whether spec is an accepted cron expression
func ValidateSpec(spec string) error {
	if strings.TrimSpace(spec) == "" {
		return errors.New("empty cron expression")
	}
	if _, err := parser.Parse(spec); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}
	return nil
}

// NextFire returns the first activation of spec strictly after t, in t's location
func NextFire(spec string, t time.Time) (time.Time, error) {
	schedule, err := parser.Parse(spec)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}
	return schedule.Next(t), nil
}

// Store is the persistence the scheduler reads from and writes to
type Store interface {
	ActiveScheduledTests(ctx context.Context) ([]*model.ScheduledTest, error)
	Collection(ctx context.Context, id string) (*model.Collection, error)
	Environment(ctx context.Context, id string) (*model.Environment, error)
	UpdateLastRunAt(ctx context.Context, id string, at time.Time) error
}

type BatchRunner interface {
	RunBatch(ctx context.Context, params runner.BatchParams) (*model.RunResult, error)
}

type Notifier interface {
	Notify(ctx context.Context, key string, to []string, r *report.Report) error
}

type Config struct {
	// Location evaluates cron expressions; defaults to time.Local
	Location *time.Location
	// Locker guards each cron tick across instances; defaults to a process-local locker
	Locker lease.Locker
	// LockTTL is how long a tick lease is kept; it must exceed the clock
	// skew between instances
	LockTTL time.Duration
	Logger  logrus.FieldLogger
}

// Entry describes one live job
type Entry struct {
	ID   string    `json:"id"`
	Cron string    `json:"cron"`
	Next time.Time `json:"next"`
	Prev time.Time `json:"prev,omitempty"`
}

type Scheduler struct {
	cron     *cron.Cron
	store    Store
	runner   BatchRunner
	notifier Notifier
	locker   lease.Locker
	lockTTL  time.Duration
	loc      *time.Location
	now      func() time.Time
	log      logrus.FieldLogger

	mu      sync.Mutex
	entries map[string]cron.EntryID
	specs   map[string]string
	running map[string]bool
	wg      sync.WaitGroup
	closed  bool
}

func New(store Store, batches BatchRunner, notifier Notifier, cfg *Config) *Scheduler {
	if cfg == nil {
		cfg = &Config{}
	}

	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("component", "scheduler")

	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}

	locker := cfg.Locker
	if locker == nil {
		locker = lease.NewLocalLocker()
	}
	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = lease.DefaultTTL
	}

	return &Scheduler{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLocation(loc),
			cron.WithLogger(cronLogger{log}),
		),
		store:    store,
		runner:   batches,
		notifier: notifier,
		locker:   locker,
		lockTTL:  lockTTL,
		loc:      loc,
		now:      time.Now,
		log:      log,
		entries:  make(map[string]cron.EntryID),
		specs:    make(map[string]string),
		running:  make(map[string]bool),
	}
}

// Start begins dispatching jobs. Jobs may be scheduled before or after Start.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Schedule replaces any job for test.ID with one on test.CronExpression.
// An inactive test only has its existing job removed.
func (s *Scheduler) Schedule(test *model.ScheduledTest) error {
	if test == nil || test.ID == "" {
		return &runner.ValidationError{Field: "id", Message: "scheduled test id is required"}
	}

	schedule, err := parser.Parse(test.CronExpression)
	if err != nil {
		return &runner.ValidationError{Field: "cronExpression", Message: err.Error()}
	}

	snapshot := *test
	snapshot.CollectionIDs = append([]string(nil), test.CollectionIDs...)
	snapshot.Emails = append([]string(nil), test.Emails...)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	s.removeLocked(test.ID)
	if !test.IsActive {
		return nil
	}

	id := s.cron.Schedule(schedule, cron.FuncJob(func() {
		s.run(snapshot, schedule)
	}))
	s.entries[test.ID] = id
	s.specs[test.ID] = test.CronExpression

	s.log.WithFields(logrus.Fields{
		"schedule_id": test.ID,
		"cron":        test.CronExpression,
		"next":        s.cron.Entry(id).Next,
	}).Info("scheduled test registered")
	return nil
}

// Stop cancels the job for id. It reports whether a job existed.
func (s *Scheduler) Stop(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := s.removeLocked(id)
	if removed {
		s.log.WithField("schedule_id", id).Info("scheduled test stopped")
	}
	return removed
}

func (s *Scheduler) removeLocked(id string) bool {
	entryID, ok := s.entries[id]
	if !ok {
		return false
	}
	s.cron.Remove(entryID)
	delete(s.entries, id)
	delete(s.specs, id)
	return true
}

// InitializeAllTasks clears every job and registers one per active scheduled
// test in the store. Records with an invalid cron expression are logged and
// skipped. It returns the number of jobs registered.
func (s *Scheduler) InitializeAllTasks(ctx context.Context) (int, error) {
	tests, err := s.store.ActiveScheduledTests(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading scheduled tests: %w", err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, ErrClosed
	}
	for id := range s.entries {
		s.removeLocked(id)
	}
	s.mu.Unlock()

	count := 0
	for _, test := range tests {
		if err := s.Schedule(test); err != nil {
			s.log.WithError(err).WithField("schedule_id", test.ID).Error("failed to register scheduled test")
			continue
		}
		count++
	}

	s.log.Infof("initialized %d of %d active scheduled tests", count, len(tests))
	return count, nil
}

// Entries lists live jobs sorted by id
func (s *Scheduler) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]Entry, 0, len(s.entries))
	for id, entryID := range s.entries {
		e := s.cron.Entry(entryID)
		entries = append(entries, Entry{
			ID:   id,
			Cron: s.specs[id],
			Next: e.Next,
			Prev: e.Prev,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ID < entries[j].ID
	})
	return entries
}

// Shutdown stops dispatching, waits for in-flight firings until ctx is done
// and discards every job
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for id := range s.entries {
		s.removeLocked(id)
	}
	s.mu.Unlock()

	cronDone := s.cron.Stop()

	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for running scheduled tests: %w", ctx.Err())
	}
}

// begin marks id as running unless it already is
func (s *Scheduler) begin(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.running[id] {
		return ErrRunning
	}
	s.running[id] = true
	s.wg.Add(1)
	return nil
}

func (s *Scheduler) end(id string) {
	s.mu.Lock()
	delete(s.running, id)
	s.mu.Unlock()
	s.wg.Done()
}

// run is the cron job body. It never panics and never returns an error:
// the job must stay registered for its next tick.
//
// The tick lease is never released. It expires with its TTL, so an instance
// dispatching the same tick late still finds it taken.
func (s *Scheduler) run(test model.ScheduledTest, schedule cron.Schedule) {
	log := s.log.WithField("schedule_id", test.ID)
	tick := tickAt(schedule, s.now().In(s.loc))

	if err := s.begin(test.ID); err != nil {
		if errors.Is(err, ErrRunning) {
			log.Warn("previous firing still running, skipping")
		}
		return
	}
	defer s.end(test.ID)

	acquired, err := s.locker.Acquire(context.Background(), lease.TickKey(test.ID, tick), s.lockTTL)
	if err != nil {
		log.WithError(err).Error("failed to acquire firing lease")
		return
	}
	if !acquired {
		log.WithField("tick", tick).Debug("tick already fired elsewhere, skipping")
		return
	}

	s.fire(test)
}

// Trigger fires test once, now, outside its cron schedule. It returns
// ErrRunning while a firing of test.ID is in progress on this instance and
// ErrClosed after Shutdown. Manual firings take no tick lease.
func (s *Scheduler) Trigger(test *model.ScheduledTest) error {
	if test == nil || test.ID == "" {
		return &runner.ValidationError{Field: "id", Message: "scheduled test id is required"}
	}
	snapshot := *test
	snapshot.CollectionIDs = append([]string(nil), test.CollectionIDs...)
	snapshot.Emails = append([]string(nil), test.Emails...)

	if err := s.begin(snapshot.ID); err != nil {
		return err
	}
	go func() {
		defer s.end(snapshot.ID)
		s.fire(snapshot)
	}()
	return nil
}

func (s *Scheduler) fire(test model.ScheduledTest) {
	log := s.log.WithField("schedule_id", test.ID)

	defer func() {
		if rec := recover(); rec != nil {
			log.Errorf("scheduled test panicked: %v", rec)
		}
	}()

	if err := s.Fire(context.Background(), &test); err != nil {
		log.WithError(err).Error("scheduled test firing failed")
	}
}

// maxLookback bounds the search for a past activation; cron gives up on
// schedules with no activation within five years
const maxLookback = 5 * 366 * 24 * time.Hour

// tickAt returns the latest activation of schedule at or before t. Every
// instance dispatching the same activation computes the same tick, whatever
// its dispatch delay, as long as the next activation has not come yet.
func tickAt(schedule cron.Schedule, t time.Time) time.Time {
	if every, ok := schedule.(cron.ConstantDelaySchedule); ok {
		return t.Truncate(every.Delay)
	}

	for back := time.Second; back <= maxLookback; back *= 2 {
		tick := schedule.Next(t.Add(-back))
		if tick.IsZero() {
			break
		}
		if tick.After(t) {
			continue
		}
		for {
			next := schedule.Next(tick)
			if next.IsZero() || next.After(t) {
				return tick
			}
			tick = next
		}
	}
	return t.Truncate(time.Second)
}

// Fire runs one batch per referenced collection, each under its own session
// id, updates lastRunAt and emails the combined report when addresses are
// configured. A failing collection does not stop the others.
func (s *Scheduler) Fire(ctx context.Context, test *model.ScheduledTest) error {
	log := s.log.WithField("schedule_id", test.ID)
	start := time.Now()

	envName := test.EnvironmentID
	if env, err := s.store.Environment(ctx, test.EnvironmentID); err == nil && env.Name != "" {
		envName = env.Name
	}

	var errs []error
	runs := make([]*model.RunResult, 0, len(test.CollectionIDs))

	for _, collectionID := range test.CollectionIDs {
		collection, err := s.store.Collection(ctx, collectionID)
		if err != nil {
			errs = append(errs, fmt.Errorf("collection %s: %w", collectionID, err))
			continue
		}
		if len(collection.APIs) == 0 {
			log.WithField("collection_id", collectionID).Warn("collection has no apis, skipping")
			continue
		}

		run, err := s.runner.RunBatch(ctx, runner.BatchParams{
			ApplicationID:    collection.ApplicationID,
			EnvironmentID:    test.EnvironmentID,
			AuthenticationID: test.AuthenticationID,
			APIs:             collection.APIs,
			SessionID:        uuid.New().String(),
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("collection %s: %w", collectionID, err))
			continue
		}
		runs = append(runs, run)
	}

	now := time.Now()
	if err := s.store.UpdateLastRunAt(ctx, test.ID, now); err != nil {
		errs = append(errs, fmt.Errorf("updating last run: %w", err))
	}

	if len(test.Emails) > 0 && len(runs) > 0 {
		if s.notifier == nil {
			log.Warn("emails configured but no notifier available")
		} else if err := s.notifier.Notify(ctx, test.ID, test.Emails, report.Build(envName, runs, now)); err != nil {
			errs = append(errs, err)
		}
	}

	log.WithFields(logrus.Fields{
		"collections": len(test.CollectionIDs),
		"runs":        len(runs),
		"elapsed":     time.Since(start).Round(time.Millisecond),
	}).Info("scheduled test fired")

	return errors.Join(errs...)
}

// cronLogger adapts logrus to the cron logger interface
type cronLogger struct {
	log logrus.FieldLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.WithFields(fields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.WithFields(fields(keysAndValues)).WithError(err).Error(msg)
}

func fields(keysAndValues []any) logrus.Fields {
	f := make(logrus.Fields, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		f[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return f
}
