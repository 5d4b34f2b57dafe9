package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/orderflow-backend/pkg/logger"
	"github.com/angelmondragon/orderflow-backend/pkg/metrics"
)

type fakeLock struct {
	held     map[string]bool
	released []string
	job      string
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.held[f.job] {
		return false, nil
	}
	f.held[f.job] = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	delete(f.held, f.job)
	f.released = append(f.released, f.job)
	return nil
}

type fakeLocker struct {
	held  map[string]bool
	locks []*fakeLock
}

func newFakeLocker() *fakeLocker { return &fakeLocker{held: map[string]bool{}} }

func (f *fakeLocker) For(job string) Lock {
	lock := &fakeLock{held: f.held, job: job}
	f.locks = append(f.locks, lock)
	return lock
}

type testJob struct {
	name        string
	err         error
	panics      bool
	runs        int
	hadDeadline bool
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(ctx context.Context) error {
	t.runs++
	_, t.hadDeadline = ctx.Deadline()
	if t.panics {
		panic("nil map write")
	}
	return t.err
}

func newTestService(t *testing.T, locker Locker, reg prometheus.Registerer, jobs ...Job) *Service {
	t.Helper()
	registry := NewRegistry()
	for _, job := range jobs {
		if err := registry.Register(job); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	service, err := NewService(ServiceParams{
		Logger:   logger.Nop(),
		Registry: registry,
		Locker:   locker,
		Metrics:  metrics.NewCronJobMetrics(reg),
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	return service
}

func TestServiceRunCycleRunsAllJobsEvenOnFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	ok := &testJob{name: "success"}
	failing := &testJob{name: "fail", err: errors.New("boom")}
	service := newTestService(t, newFakeLocker(), reg, ok, failing)

	service.runCycle(context.Background())

	if ok.runs != 1 || failing.runs != 1 {
		t.Fatalf("expected each job to run once, got %d and %d", ok.runs, failing.runs)
	}
	if got := runCount(t, reg, "success", metrics.CronSucceeded); got != 1 {
		t.Fatalf("expected success=1, got %f", got)
	}
	if got := runCount(t, reg, "fail", metrics.CronFailed); got != 1 {
		t.Fatalf("expected failure=1, got %f", got)
	}
}

func TestServiceSurvivesPanickingJob(t *testing.T) {
	reg := prometheus.NewRegistry()
	locker := newFakeLocker()
	broken := &testJob{name: "broken", panics: true}
	after := &testJob{name: "after"}
	service := newTestService(t, locker, reg, broken, after)

	service.runCycle(context.Background())

	if after.runs != 1 {
		t.Fatalf("expected the next job to run, ran %d", after.runs)
	}
	if !after.hadDeadline {
		t.Fatal("expected jobs to run under a deadline")
	}
	if got := runCount(t, reg, "broken", metrics.CronFailed); got != 1 {
		t.Fatalf("expected failure=1, got %f", got)
	}
	if locker.held["broken"] {
		t.Fatal("expected lock of panicking job to be released")
	}
}

func TestServiceSkipsJobHeldElsewhere(t *testing.T) {
	reg := prometheus.NewRegistry()
	locker := newFakeLocker()
	locker.held["reservation-reaper"] = true
	held := &testJob{name: "reservation-reaper"}
	free := &testJob{name: "reservation-purge"}
	service := newTestService(t, locker, reg, held, free)

	service.runCycle(context.Background())

	if held.runs != 0 {
		t.Fatalf("expected held job to be skipped, ran %d", held.runs)
	}
	if free.runs != 1 {
		t.Fatalf("expected free job to run once, ran %d", free.runs)
	}
	if got := runCount(t, reg, "reservation-reaper", metrics.CronSkipped); got != 1 {
		t.Fatalf("expected skipped=1, got %f", got)
	}
	if locker.held["reservation-purge"] {
		t.Fatal("expected purge lock to be released")
	}
}

func TestServiceStopsOnCanceledContext(t *testing.T) {
	job := &testJob{name: "a"}
	service := newTestService(t, newFakeLocker(), nil, job)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := service.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("expected no runs after cancel, got %d", job.runs)
	}
}

func TestNewServiceRequiresLocker(t *testing.T) {
	if _, err := NewService(ServiceParams{Logger: logger.Nop()}); err == nil {
		t.Fatal("expected error without locker")
	}
}

func runCount(t *testing.T, reg *prometheus.Registry, job, outcome string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, family := range families {
		if family.GetName() != "orderflow_cron_job_runs_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			labels := map[string]string{}
			for _, label := range metric.GetLabel() {
				labels[label.GetName()] = label.GetValue()
			}
			if labels["job"] == job && labels["outcome"] == outcome {
				return metric.GetCounter().GetValue()
			}
		}
	}
	t.Fatalf("orderflow_cron_job_runs_total{job=%q,outcome=%q} not found", job, outcome)
	return 0
}
