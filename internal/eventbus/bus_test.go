package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axonforge/engine/pkg/domain"
)

func TestAppendAssignsIDAndTimestamp(t *testing.T) {
	b := New(10)
	e := b.Append(domain.Event{EventType: domain.EventGoalStart, GoalID: "g1"})
	assert.NotZero(t, e.EventID)
	assert.False(t, e.Timestamp.IsZero())
}

func TestAppendEvictsOldestWhenFull(t *testing.T) {
	b := New(3)
	for i := 0; i < 5; i++ {
		b.Append(domain.Event{EventType: domain.EventThought, GoalID: "g1"})
	}
	assert.Equal(t, 3, b.Len())
}

func TestQueryFiltersByGoalID(t *testing.T) {
	b := New(100)
	b.Append(domain.Event{EventType: domain.EventGoalStart, GoalID: "g1"})
	b.Append(domain.Event{EventType: domain.EventGoalStart, GoalID: "g2"})

	results := b.Query(domain.EventFilter{GoalID: "g1"})
	require.Len(t, results, 1)
	assert.Equal(t, "g1", results[0].GoalID)
}

func TestQueryFiltersByEventTypeAndLimit(t *testing.T) {
	b := New(100)
	for i := 0; i < 5; i++ {
		b.Append(domain.Event{EventType: domain.EventThought, GoalID: "g1"})
	}
	b.Append(domain.Event{EventType: domain.EventGoalComplete, GoalID: "g1"})

	results := b.Query(domain.EventFilter{EventType: domain.EventThought, Limit: 2})
	assert.Len(t, results, 2)
}

func TestClearEmptiesBus(t *testing.T) {
	b := New(10)
	b.Append(domain.Event{EventType: domain.EventGoalStart})
	b.Clear()
	assert.Equal(t, 0, b.Len())
}

func TestSubscribeReceivesNewEvents(t *testing.T) {
	b := New(10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, unsub := b.Subscribe(ctx, 4)
	defer unsub()

	b.Append(domain.Event{EventType: domain.EventGoalStart, GoalID: "g1"})

	select {
	case e := <-ch:
		assert.Equal(t, "g1", e.GoalID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := New(10)
	ch, unsub := b.Subscribe(context.Background(), 4)
	unsub()

	_, ok := <-ch
	assert.False(t, ok)
}
