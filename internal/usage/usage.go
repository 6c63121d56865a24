// Package usage aggregates token consumption across the engine's
// model calls. A single Tracker instance is shared by the pipeline's
// components so all mutation funnels through one guarded point.
package usage

import (
	"math"
	"sort"
	"sync"

	"github.com/studyforge/certrag/internal/llm"
	"github.com/studyforge/certrag/internal/metrics"
)

// Tracker accumulates per-model token counts. Safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	byModel map[string]llm.Usage
}

func NewTracker() *Tracker {
	return &Tracker{byModel: make(map[string]llm.Usage)}
}

// Record adds one call's usage under the named model and bumps the
// Prometheus token counters.
func (t *Tracker) Record(model string, u llm.Usage) {
	if t == nil || model == "" {
		return
	}
	t.mu.Lock()
	total := t.byModel[model]
	total.InputTokens += u.InputTokens
	total.OutputTokens += u.OutputTokens
	t.byModel[model] = total
	t.mu.Unlock()

	metrics.LLMTokens.WithLabelValues(model, "input").Add(float64(u.InputTokens))
	metrics.LLMTokens.WithLabelValues(model, "output").Add(float64(u.OutputTokens))
}

// ModelUsage is one model's accumulated consumption.
type ModelUsage struct {
	Model        string  `json:"model"`
	InputTokens  int     `json:"total_input_tokens"`
	OutputTokens int     `json:"total_output_tokens"`
	Cost         float64 `json:"total_cost"`
}

// Stats is a point-in-time snapshot across all models.
type Stats struct {
	Models            []ModelUsage `json:"models"`
	TotalInputTokens  int          `json:"total_input_tokens"`
	TotalOutputTokens int          `json:"total_output_tokens"`
	TotalCost         float64      `json:"total_cost"`
}

// Snapshot returns current totals. Costs are rounded to four decimal
// places, model entries sorted by name for stable output.
func (t *Tracker) Snapshot() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	stats := Stats{Models: make([]ModelUsage, 0, len(t.byModel))}
	for model, u := range t.byModel {
		cost := round4(llm.Cost(model, u))
		stats.Models = append(stats.Models, ModelUsage{
			Model:        model,
			InputTokens:  u.InputTokens,
			OutputTokens: u.OutputTokens,
			Cost:         cost,
		})
		stats.TotalInputTokens += u.InputTokens
		stats.TotalOutputTokens += u.OutputTokens
		stats.TotalCost += cost
	}
	sort.Slice(stats.Models, func(i, j int) bool { return stats.Models[i].Model < stats.Models[j].Model })
	stats.TotalCost = round4(stats.TotalCost)
	return stats
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
