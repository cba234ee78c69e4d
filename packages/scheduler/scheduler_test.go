package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/hitcron/packages/core/model"
	"github.com/abdul-hamid-achik/hitcron/packages/core/runner"
	"github.com/abdul-hamid-achik/hitcron/packages/lease"
	"github.com/abdul-hamid-achik/hitcron/packages/report"
	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu          sync.Mutex
	tests       []*model.ScheduledTest
	collections map[string]*model.Collection
	lastRun     map[string]time.Time
	err         error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		collections: map[string]*model.Collection{
			"smoke": {ID: "smoke", ApplicationID: "shop", APIs: []*model.ApiDefinition{{ID: "a1", URL: "https://x/a"}}},
			"regr":  {ID: "regr", ApplicationID: "shop", APIs: []*model.ApiDefinition{{ID: "b1", URL: "https://x/b"}, {ID: "b2", URL: "https://x/c"}}},
			"empty": {ID: "empty"},
		},
		lastRun: make(map[string]time.Time),
	}
}

func (f *fakeStore) ActiveScheduledTests(context.Context) ([]*model.ScheduledTest, error) {
	if f.err != nil {
		return nil, f.err
	}
	var active []*model.ScheduledTest
	for _, t := range f.tests {
		if t.IsActive {
			active = append(active, t)
		}
	}
	return active, nil
}

func (f *fakeStore) Collection(_ context.Context, id string) (*model.Collection, error) {
	c, ok := f.collections[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return c, nil
}

func (f *fakeStore) Environment(_ context.Context, id string) (*model.Environment, error) {
	return &model.Environment{ID: id, Name: "Staging"}, nil
}

func (f *fakeStore) UpdateLastRunAt(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastRun[id] = at
	return nil
}

func (f *fakeStore) lastRunAt(id string) (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	at, ok := f.lastRun[id]
	return at, ok
}

type fakeRunner struct {
	mu          sync.Mutex
	params      []runner.BatchParams
	delay       time.Duration
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	status      int
	panicOn     string
}

func (f *fakeRunner) RunBatch(_ context.Context, p runner.BatchParams) (*model.RunResult, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		cur := f.maxInFlight.Load()
		if n <= cur || f.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}

	f.mu.Lock()
	f.params = append(f.params, p)
	f.mu.Unlock()

	if len(p.APIs) > 0 && p.APIs[0].ID == f.panicOn {
		panic("runner exploded")
	}
	time.Sleep(f.delay)

	status := f.status
	if status == 0 {
		status = 200
	}
	run := &model.RunResult{ID: "run-" + p.SessionID, SessionID: p.SessionID}
	for _, api := range p.APIs {
		run.Calls = append(run.Calls, &model.CallResult{ApiID: api.ID, StatusCode: status, DurationMs: 1})
	}
	run.Status = runner.AggregateStatus(run.Calls)
	return run, nil
}

func (f *fakeRunner) calls() []runner.BatchParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]runner.BatchParams(nil), f.params...)
}

type fakeNotifier struct {
	mu      sync.Mutex
	reports []*report.Report
	to      [][]string
}

func (f *fakeNotifier) Notify(_ context.Context, _ string, to []string, r *report.Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, r)
	f.to = append(f.to, to)
	return nil
}

func newTestScheduler(store Store, r BatchRunner, n Notifier) *Scheduler {
	return New(store, r, n, &Config{Location: time.UTC})
}

func TestValidateSpec(t *testing.T) {
	valid := []string{"0 3 * * *", "*/5 * * * * *", "@hourly", "@every 10m"}
	for _, spec := range valid {
		assert.NoError(t, ValidateSpec(spec), spec)
	}

	invalid := []string{"", "not cron", "61 * * * *", "* * * * * * *"}
	for _, spec := range invalid {
		assert.Error(t, ValidateSpec(spec), spec)
	}
}

func TestSchedule_Registry(t *testing.T) {
	s := newTestScheduler(newFakeStore(), &fakeRunner{}, nil)

	test := &model.ScheduledTest{ID: "nightly", CronExpression: "0 3 * * *", IsActive: true}
	require.NoError(t, s.Schedule(test))
	require.NoError(t, s.Schedule(test))

	entries := s.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "nightly", entries[0].ID)
	assert.Equal(t, "0 3 * * *", entries[0].Cron)
	assert.Len(t, s.cron.Entries(), 1)

	test.CronExpression = "@hourly"
	require.NoError(t, s.Schedule(test))
	entries = s.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "@hourly", entries[0].Cron)
	assert.Len(t, s.cron.Entries(), 1)

	assert.True(t, s.Stop("nightly"))
	assert.False(t, s.Stop("nightly"))
	assert.Empty(t, s.Entries())
	assert.Empty(t, s.cron.Entries())
}

func TestSchedule_Inactive(t *testing.T) {
	s := newTestScheduler(newFakeStore(), &fakeRunner{}, nil)

	test := &model.ScheduledTest{ID: "nightly", CronExpression: "0 3 * * *", IsActive: true}
	require.NoError(t, s.Schedule(test))

	test.IsActive = false
	require.NoError(t, s.Schedule(test))
	assert.Empty(t, s.Entries())
}

func TestSchedule_Invalid(t *testing.T) {
	s := newTestScheduler(newFakeStore(), &fakeRunner{}, nil)

	var verr *runner.ValidationError
	err := s.Schedule(&model.ScheduledTest{ID: "x", CronExpression: "every day", IsActive: true})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "cronExpression", verr.Field)

	err = s.Schedule(&model.ScheduledTest{CronExpression: "@hourly", IsActive: true})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "id", verr.Field)

	assert.Error(t, s.Schedule(nil))
}

func TestInitializeAllTasks(t *testing.T) {
	store := newFakeStore()
	store.tests = []*model.ScheduledTest{
		{ID: "a", CronExpression: "@hourly", IsActive: true},
		{ID: "b", CronExpression: "bogus", IsActive: true},
		{ID: "c", CronExpression: "@daily", IsActive: false},
		{ID: "d", CronExpression: "0 3 * * *", IsActive: true},
	}
	s := newTestScheduler(store, &fakeRunner{}, nil)

	require.NoError(t, s.Schedule(&model.ScheduledTest{ID: "stale", CronExpression: "@hourly", IsActive: true}))

	n, err := s.InitializeAllTasks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	entries := s.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].ID)
	assert.Equal(t, "d", entries[1].ID)

	// running it again does not duplicate jobs
	_, err = s.InitializeAllTasks(context.Background())
	require.NoError(t, err)
	assert.Len(t, s.cron.Entries(), 2)

	store.err = errors.New("db down")
	_, err = s.InitializeAllTasks(context.Background())
	assert.Error(t, err)
	assert.Len(t, s.Entries(), 2)
}

func TestFire(t *testing.T) {
	store := newFakeStore()
	r := &fakeRunner{status: 500}
	n := &fakeNotifier{}
	s := newTestScheduler(store, r, n)

	test := &model.ScheduledTest{
		ID:               "nightly",
		EnvironmentID:    "env-1",
		AuthenticationID: "auth-1",
		CollectionIDs:    []string{"smoke", "missing", "empty", "regr"},
		Emails:           []string{"qa@example.com"},
	}

	err := s.Fire(context.Background(), test)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")

	calls := r.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "shop", calls[0].ApplicationID)
	assert.Equal(t, "env-1", calls[0].EnvironmentID)
	assert.Equal(t, "auth-1", calls[0].AuthenticationID)
	assert.NotEmpty(t, calls[0].SessionID)
	assert.NotEqual(t, calls[0].SessionID, calls[1].SessionID)

	_, ok := store.lastRunAt("nightly")
	assert.True(t, ok)

	require.Len(t, n.reports, 1)
	rep := n.reports[0]
	assert.Equal(t, "Staging", rep.Environment)
	assert.Equal(t, 3, rep.Total)
	assert.Equal(t, model.StatusFailed, rep.Status)
	assert.Len(t, rep.SessionIDs, 2)
	assert.Equal(t, []string{"qa@example.com"}, n.to[0])
}

func TestFire_NoEmails(t *testing.T) {
	n := &fakeNotifier{}
	s := newTestScheduler(newFakeStore(), &fakeRunner{}, n)

	require.NoError(t, s.Fire(context.Background(), &model.ScheduledTest{ID: "x", CollectionIDs: []string{"smoke"}}))
	assert.Empty(t, n.reports)
}

func mustParse(t *testing.T, spec string) cron.Schedule {
	t.Helper()
	schedule, err := parser.Parse(spec)
	require.NoError(t, err)
	return schedule
}

func TestRun_RecoversPanic(t *testing.T) {
	store := newFakeStore()
	s := newTestScheduler(store, &fakeRunner{panicOn: "a1"}, nil)
	tick := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return tick.Add(10 * time.Millisecond) }

	assert.NotPanics(t, func() {
		s.run(model.ScheduledTest{ID: "x", CollectionIDs: []string{"smoke"}}, mustParse(t, "0 * * * *"))
	})

	// the in-flight marker is cleared, the tick stays claimed
	require.NoError(t, s.begin("x"))
	s.end("x")
	ok, err := s.locker.Acquire(context.Background(), lease.TickKey("x", tick), time.Second)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRun_SkipsWhenTickLeaseHeld(t *testing.T) {
	locker := lease.NewLocalLocker()
	r := &fakeRunner{}
	s := New(newFakeStore(), r, nil, &Config{Location: time.UTC, Locker: locker})
	tick := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return tick.Add(250 * time.Millisecond) }

	ok, err := locker.Acquire(context.Background(), lease.TickKey("x", tick), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	s.run(model.ScheduledTest{ID: "x", CollectionIDs: []string{"smoke"}}, mustParse(t, "0 * * * *"))
	assert.Empty(t, r.calls())
}

func TestRun_SharedLockerFiresEachTickOnce(t *testing.T) {
	locker := lease.NewLocalLocker()
	store := newFakeStore()
	r := &fakeRunner{}
	a := New(store, r, nil, &Config{Location: time.UTC, Locker: locker})
	b := New(store, r, nil, &Config{Location: time.UTC, Locker: locker})

	schedule := mustParse(t, "*/30 * * * * *")
	test := model.ScheduledTest{ID: "shared", CollectionIDs: []string{"smoke"}}
	tick := time.Date(2026, 3, 10, 12, 0, 30, 0, time.UTC)

	// a finishes the tick before b, running with skew, dispatches it
	a.now = func() time.Time { return tick.Add(5 * time.Millisecond) }
	b.now = func() time.Time { return tick.Add(25 * time.Millisecond) }
	a.run(test, schedule)
	b.run(test, schedule)
	assert.Len(t, r.calls(), 1)

	// the next tick is free again, whichever instance gets there first
	b.now = func() time.Time { return tick.Add(30*time.Second + 2*time.Millisecond) }
	a.now = func() time.Time { return tick.Add(30*time.Second + 40*time.Millisecond) }
	b.run(test, schedule)
	a.run(test, schedule)
	assert.Len(t, r.calls(), 2)
}

func TestTickAt(t *testing.T) {
	at := time.Date(2026, 3, 10, 12, 30, 0, 0, time.UTC)

	tests := []struct {
		spec string
		now  time.Time
		want time.Time
	}{
		{"* * * * * *", at.Add(400 * time.Millisecond), at},
		{"*/30 * * * * *", at.Add(29 * time.Second), at},
		{"0 2 * * *", at, time.Date(2026, 3, 10, 2, 0, 0, 0, time.UTC)},
		{"0 2 * * *", time.Date(2026, 3, 10, 2, 0, 0, 3e6, time.UTC), time.Date(2026, 3, 10, 2, 0, 0, 0, time.UTC)},
		{"@hourly", at.Add(time.Minute), at.Add(-30 * time.Minute)},
		{"0 0 1 1 *", at, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"@every 10m", at.Add(7 * time.Minute), at},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			assert.Equal(t, tt.want, tickAt(mustParse(t, tt.spec), tt.now))
		})
	}
}

func TestScheduler_Fires(t *testing.T) {
	store := newFakeStore()
	r := &fakeRunner{}
	s := newTestScheduler(store, r, nil)
	s.Start()
	defer s.Shutdown(context.Background())

	require.NoError(t, s.Schedule(&model.ScheduledTest{
		ID:             "every-second",
		CronExpression: "* * * * * *",
		CollectionIDs:  []string{"smoke"},
		IsActive:       true,
	}))

	assert.Eventually(t, func() bool {
		_, ok := store.lastRunAt("every-second")
		return ok
	}, 3*time.Second, 50*time.Millisecond)
}

func TestScheduler_StopPreventsFirings(t *testing.T) {
	r := &fakeRunner{}
	s := newTestScheduler(newFakeStore(), r, nil)
	s.Start()
	defer s.Shutdown(context.Background())

	require.NoError(t, s.Schedule(&model.ScheduledTest{
		ID:             "x",
		CronExpression: "* * * * * *",
		CollectionIDs:  []string{"smoke"},
		IsActive:       true,
	}))
	require.True(t, s.Stop("x"))

	time.Sleep(1500 * time.Millisecond)
	assert.Empty(t, r.calls())
}

func TestScheduler_NoOverlappingFirings(t *testing.T) {
	r := &fakeRunner{delay: 1500 * time.Millisecond}
	s := newTestScheduler(newFakeStore(), r, nil)
	s.Start()

	test := &model.ScheduledTest{
		ID:             "slow",
		CronExpression: "* * * * * *",
		CollectionIDs:  []string{"smoke"},
		IsActive:       true,
	}
	require.NoError(t, s.Schedule(test))
	require.NoError(t, s.Schedule(test))

	time.Sleep(3500 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	assert.NotEmpty(t, r.calls())
	assert.Equal(t, int32(1), r.maxInFlight.Load())
}

func TestShutdown(t *testing.T) {
	s := newTestScheduler(newFakeStore(), &fakeRunner{}, nil)
	s.Start()
	require.NoError(t, s.Schedule(&model.ScheduledTest{ID: "x", CronExpression: "@hourly", IsActive: true}))

	require.NoError(t, s.Shutdown(context.Background()))
	assert.Empty(t, s.Entries())
	assert.ErrorIs(t, s.Schedule(&model.ScheduledTest{ID: "x", CronExpression: "@hourly", IsActive: true}), ErrClosed)
	_, err := s.InitializeAllTasks(context.Background())
	assert.ErrorIs(t, err, ErrClosed)

	// second call is a no-op
	assert.NoError(t, s.Shutdown(context.Background()))
}

func TestTrigger(t *testing.T) {
	store := newFakeStore()
	r := &fakeRunner{delay: 300 * time.Millisecond}
	s := newTestScheduler(store, r, nil)

	test := &model.ScheduledTest{ID: "manual", CollectionIDs: []string{"smoke"}}
	require.NoError(t, s.Trigger(test))
	// a second trigger while the first is running is rejected
	assert.ErrorIs(t, s.Trigger(test), ErrRunning)

	require.NoError(t, s.Shutdown(context.Background()))
	assert.Len(t, r.calls(), 1)
	_, ok := store.lastRunAt("manual")
	assert.True(t, ok)

	assert.ErrorIs(t, s.Trigger(test), ErrClosed)

	var validation *runner.ValidationError
	assert.ErrorAs(t, s.Trigger(&model.ScheduledTest{}), &validation)
}

func TestNextFire(t *testing.T) {
	from := time.Date(2026, 3, 10, 12, 30, 0, 0, time.UTC)

	next, err := NextFire("0 2 * * *", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 11, 2, 0, 0, 0, time.UTC), next)

	next, err = NextFire("*/15 * * * * *", from)
	require.NoError(t, err)
	assert.Equal(t, from.Add(15*time.Second), next)

	next, err = NextFire("@hourly", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 10, 13, 0, 0, 0, time.UTC), next)

	_, err = NextFire("not cron", from)
	assert.Error(t, err)
}
