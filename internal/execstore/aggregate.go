package execstore

import (
	"sort"
	"strings"
	"time"

	"github.com/axonforge/engine/pkg/domain"
)

// computeStatistics aggregates every ToolExecutionRecord matching
// toolName into a domain.ToolStatistics snapshot.
func computeStatistics(toolName string, runs []domain.ToolExecutionRecord) domain.ToolStatistics {
	return computeStatisticsWindow(toolName, runs, time.Time{}, time.Time{})
}

// computeStatisticsWindow aggregates runs matching toolName whose
// CreatedAt falls in [start, end). A zero start or end leaves that
// bound open.
func computeStatisticsWindow(toolName string, runs []domain.ToolExecutionRecord, start, end time.Time) domain.ToolStatistics {
	stats := domain.ToolStatistics{ToolName: toolName}

	var durations []float64
	var successes int64
	for _, r := range runs {
		if r.ToolName != toolName {
			continue
		}
		if !start.IsZero() && r.CreatedAt.Before(start) {
			continue
		}
		if !end.IsZero() && !r.CreatedAt.Before(end) {
			continue
		}
		stats.Total++
		if r.Success {
			successes++
		}
		if r.CreatedAt.After(stats.LastUsed) {
			stats.LastUsed = r.CreatedAt
		}
		durations = append(durations, float64(r.DurationMS))
	}

	if stats.Total > 0 {
		stats.SuccessRate = float64(successes) / float64(stats.Total)
	}

	sort.Float64s(durations)
	stats.P50Duration = percentile(durations, 0.50)
	stats.P95Duration = percentile(durations, 0.95)
	stats.P99Duration = percentile(durations, 0.99)
	return stats
}

// percentile returns the nearest-rank percentile of a pre-sorted slice.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p*float64(len(sorted)-1) + 0.5)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// rankTools groups runs by tool name, filters by minExecutions, and sorts
// by success rate: best-first when best is true, worst-first otherwise.
func rankTools(runs []domain.ToolExecutionRecord, limit, minExecutions int, best bool) []domain.ToolStatistics {
	names := make(map[string]bool)
	for _, r := range runs {
		names[r.ToolName] = true
	}

	all := make([]domain.ToolStatistics, 0, len(names))
	for name := range names {
		stats := computeStatistics(name, runs)
		if int(stats.Total) < minExecutions {
			continue
		}
		all = append(all, stats)
	}

	sort.Slice(all, func(i, j int) bool {
		if best {
			return all[i].SuccessRate > all[j].SuccessRate
		}
		return all[i].SuccessRate < all[j].SuccessRate
	})

	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all
}

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "of": true, "to": true,
	"in": true, "and": true, "or": true, "for": true, "on": true, "with": true,
	"what": true, "how": true, "do": true, "i": true, "me": true, "my": true,
	"it": true, "this": true, "that": true, "at": true, "be": true,
}

// topKeywords tokenizes a set of goal texts and returns the most
// frequent non-stopword terms, most frequent first.
func topKeywords(texts []string, limit int) []KeywordCount {
	counts := make(map[string]int)
	for _, text := range texts {
		for _, tok := range strings.Fields(strings.ToLower(text)) {
			tok = strings.Trim(tok, ".,!?;:\"'()[]{}")
			if tok == "" || stopwords[tok] {
				continue
			}
			counts[tok]++
		}
	}

	result := make([]KeywordCount, 0, len(counts))
	for k, c := range counts {
		result = append(result, KeywordCount{Keyword: k, Count: c})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Keyword < result[j].Keyword
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}
