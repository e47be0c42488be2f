package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axonforge/engine/pkg/domain"
)

func echoTool(name, description, toolDomain string, concepts, synonyms []string) Tool {
	return NewFuncTool(domain.ToolDefinition{
		Name:        name,
		Description: description,
		Domain:      toolDomain,
		Concepts:    concepts,
		Synonyms:    synonyms,
	}, func(_ context.Context, params map[string]any) (Result, error) {
		return Result{Value: params}, nil
	})
}

func TestRegisterGetUnregister(t *testing.T) {
	r := NewRegistry()
	r.Register(echoTool("send_email", "sends an email", "comms", nil, nil))

	got, ok := r.Get("send_email")
	require.True(t, ok)
	assert.Equal(t, "send_email", got.Definition().Name)

	r.Unregister("send_email")
	_, ok = r.Get("send_email")
	assert.False(t, ok)
}

func TestRegisterReplacesExisting(t *testing.T) {
	r := NewRegistry()
	r.Register(echoTool("t", "first", "", nil, nil))
	r.Register(echoTool("t", "second", "", nil, nil))
	assert.Len(t, r.List(), 1)
	got, _ := r.Get("t")
	assert.Equal(t, "second", got.Definition().Description)
}

func TestSearchRanksByNameOverDescription(t *testing.T) {
	r := NewRegistry()
	r.Register(echoTool("weather_lookup", "fetches forecast", "weather", nil, nil))
	r.Register(echoTool("misc_tool", "checks the weather conditions", "misc", nil, nil))

	results := r.Search("weather", "", 5)
	require.NotEmpty(t, results)
	assert.Equal(t, "weather_lookup", results[0].Name)
}

func TestSearchConceptAndSynonymHits(t *testing.T) {
	r := NewRegistry()
	r.Register(echoTool("flight_booker", "books travel", "travel", []string{"flight"}, []string{"airfare"}))
	r.Register(echoTool("unrelated", "does nothing relevant", "misc", nil, nil))

	results := r.Search("airfare", "", 5)
	require.NotEmpty(t, results)
	assert.Equal(t, "flight_booker", results[0].Name)
}

func TestSearchFallsBackWhenNoKeywordMatches(t *testing.T) {
	r := NewRegistry()
	r.Register(echoTool("a", "alpha", "", nil, nil))
	r.Register(echoTool("b", "beta", "", nil, nil))

	results := r.Search("zzz-nonexistent-term", "", 5)
	assert.Len(t, results, 2)
}

func TestSearchRespectsLimit(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < 10; i++ {
		r.Register(echoTool(string(rune('a'+i)), "generic tool", "", nil, nil))
	}
	results := r.Search("generic", "", 3)
	assert.Len(t, results, 3)
}

func TestSearchDomainMatchAddsScore(t *testing.T) {
	r := NewRegistry()
	r.Register(echoTool("toolx", "does a thing", "finance", nil, nil))
	r.Register(echoTool("tooly", "does a thing", "weather", nil, nil))

	results := r.Search("thing", "finance", 5)
	require.Len(t, results, 2)
	assert.Equal(t, "toolx", results[0].Name)
}
