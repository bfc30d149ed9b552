package cron

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/packfinderz-orderdesk/pkg/logger"
)

func mustRegistry(t *testing.T, jobs ...Job) *Registry {
	t.Helper()
	registry, err := NewRegistry(jobs...)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return registry
}

type fakeLock struct {
	acquired bool
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.acquired {
		return false, nil
	}
	f.acquired = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error { f.acquired = false; return nil }

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

func TestServiceRunCycleRunsAllJobsEvenOnFailure(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
	registry, err := NewRegistry(&testJob{name: "success"}, &testJob{name: "fail", err: errors.New("boom")})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	service, err := NewService(ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     &fakeLock{},
		Interval: 0,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	err = service.RunOnce(context.Background())
	if err == nil || !strings.Contains(err.Error(), "fail: boom") {
		t.Fatalf("expected the failing job in the cycle error, got %v", err)
	}
	jobs := registry.Jobs()
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if success, ok := jobs[0].(*testJob); ok {
		if success.runs != 1 {
			t.Fatalf("expected success job to run once, ran %d", success.runs)
		}
	} else {
		t.Fatalf("first job type mismatch")
	}
	if failure, ok := jobs[1].(*testJob); ok {
		if failure.runs != 1 {
			t.Fatalf("expected failure job to run once, ran %d", failure.runs)
		}
	} else {
		t.Fatalf("second job type mismatch")
	}
}

func TestServiceRunCycleSkipsWhenLockHeld(t *testing.T) {
	job := &testJob{name: "journal-retention"}
	lock := &LocalLock{}
	held, err := lock.Acquire(context.Background())
	if err != nil || !held {
		t.Fatalf("expected to take the lock first")
	}

	service, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard}),
		Registry: mustRegistry(t, job),
		Lock:     lock,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	if err := service.RunOnce(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("job ran while another instance held the lock")
	}

	if err := lock.Release(context.Background()); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := service.RunOnce(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if job.runs != 1 {
		t.Fatalf("expected job to run once after release, ran %d", job.runs)
	}
}

type fakeLockStore struct {
	values map[string]string
}

func (f *fakeLockStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := f.values[key]; ok {
		return false, nil
	}
	f.values[key] = value.(string)
	return true, nil
}

func (f *fakeLockStore) DelIfValue(_ context.Context, key, value string) (bool, error) {
	if f.values[key] != value {
		return false, nil
	}
	delete(f.values, key)
	return true, nil
}

func TestRedisLockReleasesOnlyOwnValue(t *testing.T) {
	store := &fakeLockStore{values: map[string]string{}}
	first, err := NewRedisLock(store, "orderdesk:cron:lock:test", time.Minute)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	second, _ := NewRedisLock(store, "orderdesk:cron:lock:test", time.Minute)

	if ok, _ := first.Acquire(context.Background()); !ok {
		t.Fatalf("expected first acquire to succeed")
	}
	if ok, _ := second.Acquire(context.Background()); ok {
		t.Fatalf("expected second acquire to fail")
	}
	if err := second.Release(context.Background()); err != nil {
		t.Fatalf("release by non-owner: %v", err)
	}
	if _, ok := store.values["orderdesk:cron:lock:test"]; !ok {
		t.Fatalf("non-owner release removed the lock")
	}
	if err := first.Release(context.Background()); err != nil {
		t.Fatalf("release by owner: %v", err)
	}
	if _, ok := store.values["orderdesk:cron:lock:test"]; ok {
		t.Fatalf("owner release left the lock behind")
	}
}

func TestRedisLockOwnerCarriesInstanceID(t *testing.T) {
	t.Setenv("ORDERDESK_INSTANCE_ID", "cron-b")
	store := &fakeLockStore{values: map[string]string{}}
	lock, err := NewRedisLock(store, "orderdesk:cron:lock:test", 0)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	if ok, _ := lock.Acquire(context.Background()); !ok {
		t.Fatalf("expected acquire to succeed")
	}
	if owner := store.values["orderdesk:cron:lock:test"]; !strings.HasPrefix(owner, "cron-b:") {
		t.Fatalf("expected owner to start with the instance id, got %q", owner)
	}
}

func TestRedisLockLeavesForeignLeaseAfterExpiry(t *testing.T) {
	store := &fakeLockStore{values: map[string]string{}}
	lock, _ := NewRedisLock(store, "orderdesk:cron:lock:test", time.Minute)
	if ok, _ := lock.Acquire(context.Background()); !ok {
		t.Fatalf("expected acquire to succeed")
	}
	if ok, _ := lock.Acquire(context.Background()); ok {
		t.Fatalf("re-acquiring a held lock must report false")
	}

	// the lease expired and another worker took it
	store.values["orderdesk:cron:lock:test"] = "cron-c:other"
	if err := lock.Release(context.Background()); err != nil {
		t.Fatalf("release: %v", err)
	}
	if store.values["orderdesk:cron:lock:test"] != "cron-c:other" {
		t.Fatalf("release removed another worker's lease")
	}
	if ok, _ := lock.Acquire(context.Background()); ok {
		t.Fatalf("expected acquire to lose against the other worker")
	}
}
