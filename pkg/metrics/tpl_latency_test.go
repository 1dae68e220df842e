package metrics

import (
	"testing"
	"time"
)

func TestLatencyTracker_Stats(t *testing.T) {
	lt := NewLatencyTracker(100)
	for i := 1; i <= 100; i++ {
		lt.Record(time.Duration(i)*time.Millisecond, i%10 == 0)
	}

	s := lt.Stats()
	if s.Count != 100 || s.Samples != 100 {
		t.Fatalf("count = %d samples = %d, want 100/100", s.Count, s.Samples)
	}
	if s.Errors != 10 {
		t.Errorf("errors = %d, want 10", s.Errors)
	}
	if s.MinMs != 1 || s.MaxMs != 100 {
		t.Errorf("min/max = %v/%v, want 1/100", s.MinMs, s.MaxMs)
	}
	if s.P50Ms != 50 {
		t.Errorf("p50 = %v, want 50", s.P50Ms)
	}
}

func TestLatencyTracker_WindowSlides(t *testing.T) {
	lt := NewLatencyTracker(10)
	for i := 0; i < 25; i++ {
		lt.Record(time.Millisecond, false)
	}
	s := lt.Stats()
	if s.Samples > 10 {
		t.Errorf("samples = %d, want <= 10", s.Samples)
	}
	if s.Count != 25 {
		t.Errorf("count = %d, want 25", s.Count)
	}
}

func TestLatencyRegistry(t *testing.T) {
	r := NewLatencyRegistry(10)
	r.Record("create", 2*time.Millisecond, false)
	r.Record("get", time.Millisecond, true)

	all := r.AllStats()
	if len(all) != 2 {
		t.Fatalf("operations = %d, want 2", len(all))
	}
	if r.Stats("get").Errors != 1 {
		t.Errorf("get errors = %d, want 1", r.Stats("get").Errors)
	}
	if r.Stats("missing").Count != 0 {
		t.Error("unknown operation should be empty")
	}
}
