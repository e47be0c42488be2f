package thoughttree

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axonforge/engine/pkg/domain"
)

func TestCreateRootThenGetRoot(t *testing.T) {
	tree := New()
	now := time.Now()
	root := tree.CreateRoot("g1", "book a flight", now)
	assert.Equal(t, domain.ThoughtGoal, root.Type)
	assert.Equal(t, domain.ThoughtActive, root.Status)
	assert.Empty(t, root.ParentID)

	got, ok := tree.GetRoot("g1")
	require.True(t, ok)
	assert.Equal(t, root.ThoughtID, got.ThoughtID)
}

func TestAddThoughtRejectsUnknownParent(t *testing.T) {
	tree := New()
	_, err := tree.AddThought("g1", "does-not-exist", "x", domain.ThoughtReasoning, time.Now())
	assert.Error(t, err)
}

func TestAddThoughtBuildsHierarchy(t *testing.T) {
	tree := New()
	root := tree.CreateRoot("g1", "root", time.Now())
	child, err := tree.AddThought("g1", root.ThoughtID, "reasoning step", domain.ThoughtReasoning, time.Now())
	require.NoError(t, err)

	all := tree.GetThoughts("g1")
	require.Len(t, all, 2)
	assert.Equal(t, root.ThoughtID, all[0].ThoughtID)
	assert.Equal(t, child.ThoughtID, all[1].ThoughtID)
	assert.Equal(t, root.ThoughtID, all[1].ParentID)
}

func TestCompleteAndFailUpdateStatus(t *testing.T) {
	tree := New()
	root := tree.CreateRoot("g1", "root", time.Now())
	require.NoError(t, tree.Complete(root.ThoughtID))
	got, _ := tree.GetRoot("g1")
	assert.Equal(t, domain.ThoughtCompleted, got.Status)

	root2 := tree.CreateRoot("g2", "root", time.Now())
	require.NoError(t, tree.Fail(root2.ThoughtID))
	got2, _ := tree.GetRoot("g2")
	assert.Equal(t, domain.ThoughtFailed, got2.Status)
}

func TestSetStatusUnknownThoughtErrors(t *testing.T) {
	tree := New()
	assert.Error(t, tree.Complete("missing"))
	assert.Error(t, tree.Fail("missing"))
}

func TestGetThoughtsUnknownGoalReturnsNil(t *testing.T) {
	tree := New()
	assert.Nil(t, tree.GetThoughts("missing"))
}
