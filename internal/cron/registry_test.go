package cron

import (
	"context"
	"testing"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryStoresJobs(t *testing.T) {
	registry := NewRegistry()
	jobA := &stubJob{name: "a"}
	jobB := &stubJob{name: "b"}
	if err := registry.Register(jobA); err != nil {
		t.Fatalf("register a: %v", err)
	}
	if err := registry.Register(jobB); err != nil {
		t.Fatalf("register b: %v", err)
	}
	jobs := registry.Jobs()
	if len(jobs) != 2 || jobs[0] != jobA || jobs[1] != jobB {
		t.Fatalf("jobs returned out of order: %v", jobs)
	}
	jobs[0] = nil
	if registry.Jobs()[0] == nil {
		t.Fatalf("internal slice leaked")
	}
	if got, ok := registry.Find("b"); !ok || got != jobB {
		t.Fatalf("expected to find job b")
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	registry := NewRegistry(&stubJob{name: "sync"}, nil)
	if err := registry.Register(&stubJob{name: "sync"}); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
	if len(registry.Jobs()) != 1 {
		t.Fatalf("nil jobs should be ignored")
	}
}
