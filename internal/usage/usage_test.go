package usage

import (
	"sync"
	"testing"

	"github.com/studyforge/certrag/internal/llm"
)

func TestTrackerAccumulates(t *testing.T) {
	tracker := NewTracker()
	tracker.Record("claude-3-haiku-20240307", llm.Usage{InputTokens: 1000, OutputTokens: 50})
	tracker.Record("claude-3-haiku-20240307", llm.Usage{InputTokens: 500, OutputTokens: 25})
	tracker.Record("gpt-4o-mini", llm.Usage{InputTokens: 200, OutputTokens: 100})

	stats := tracker.Snapshot()
	if stats.TotalInputTokens != 1700 || stats.TotalOutputTokens != 175 {
		t.Fatalf("totals wrong: %+v", stats)
	}
	if len(stats.Models) != 2 {
		t.Fatalf("expected 2 models, got %d", len(stats.Models))
	}
	// Sorted by name: claude first.
	if stats.Models[0].Model != "claude-3-haiku-20240307" || stats.Models[0].InputTokens != 1500 {
		t.Fatalf("claude entry wrong: %+v", stats.Models[0])
	}
	if stats.Models[0].Cost <= 0 {
		t.Fatalf("expected nonzero cost for priced model, got %v", stats.Models[0].Cost)
	}
}

func TestTrackerConcurrent(t *testing.T) {
	tracker := NewTracker()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.Record("m", llm.Usage{InputTokens: 10, OutputTokens: 1})
		}()
	}
	wg.Wait()

	stats := tracker.Snapshot()
	if stats.TotalInputTokens != 500 || stats.TotalOutputTokens != 50 {
		t.Fatalf("lost updates under concurrency: %+v", stats)
	}
}

func TestTrackerNilAndEmpty(t *testing.T) {
	var tracker *Tracker
	tracker.Record("m", llm.Usage{InputTokens: 1}) // must not panic

	empty := NewTracker().Snapshot()
	if empty.TotalCost != 0 || len(empty.Models) != 0 {
		t.Fatalf("empty tracker snapshot wrong: %+v", empty)
	}
}
