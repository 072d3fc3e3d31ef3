package aggregator

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plannercolors/internal/model"
)

func labelsOf(t *testing.T, s *Snapshot, id model.ID) []model.Label {
	t.Helper()
	task, ok := s.Task(id)
	require.True(t, ok, "task %s missing", id)
	return task.Labels
}

func feedAll(a *Aggregator) {
	a.UpdateTasks(1, []model.Task{{ID: "T1", Name: "one"}, {ID: "T2", Name: "two"}})
	a.UpdateBuckets(1, []model.Bucket{{ID: "B1", Color: 2}})
	a.UpdateLabels(1, []model.Label{{ID: "L1", Text: "first"}, {ID: "L2", Text: "second", Index: 4}})
	a.UpdateLabelAssociations(1, []model.LabelAssociation{
		{TaskID: "T1", LabelID: "L1"},
		{TaskID: "T1", LabelID: "L2"},
		{TaskID: "T2", LabelID: "L1"},
	})
}

func TestJoinedModel(t *testing.T) {
	a := New()
	feedAll(a)

	s := a.Snapshot()
	require.True(t, s.Ready())

	l1 := model.Label{ID: "L1", Text: "first"}
	l2 := model.Label{ID: "L2", Text: "second", Index: 4}
	if diff := cmp.Diff([]model.Label{l1, l2}, labelsOf(t, s, "T1")); diff != "" {
		t.Errorf("T1 labels (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]model.Label{l1}, labelsOf(t, s, "T2")); diff != "" {
		t.Errorf("T2 labels (-want +got):\n%s", diff)
	}

	// A dangling label reference is dropped without disturbing T2.
	a.UpdateLabelAssociations(2, []model.LabelAssociation{
		{TaskID: "T1", LabelID: "L1"},
		{TaskID: "T1", LabelID: "L2"},
		{TaskID: "T2", LabelID: "L1"},
		{TaskID: "T2", LabelID: "L9"},
		{TaskID: "T404", LabelID: "L1"},
	})
	s = a.Snapshot()
	if diff := cmp.Diff([]model.Label{l1}, labelsOf(t, s, "T2")); diff != "" {
		t.Errorf("T2 labels after dangling ref (-want +got):\n%s", diff)
	}
}

func TestJoinKeepsDuplicateAssociations(t *testing.T) {
	a := New()
	feedAll(a)
	a.UpdateLabelAssociations(2, []model.LabelAssociation{
		{TaskID: "T1", LabelID: "L2"},
		{TaskID: "T1", LabelID: "L2"},
	})
	got := labelsOf(t, a.Snapshot(), "T1")
	require.Len(t, got, 2)
	assert.Equal(t, model.ID("L2"), got[0].ID)
	assert.Equal(t, model.ID("L2"), got[1].ID)
	assert.Empty(t, labelsOf(t, a.Snapshot(), "T2"))
}

func TestLabelsDropWhenLabelCollectionChanges(t *testing.T) {
	a := New()
	feedAll(a)
	a.UpdateLabels(2, []model.Label{{ID: "L2", Text: "second", Index: 4}})

	s := a.Snapshot()
	got := labelsOf(t, s, "T1")
	require.Len(t, got, 1)
	assert.Equal(t, model.ID("L2"), got[0].ID)
	assert.Empty(t, labelsOf(t, s, "T2"))
}

func TestReadinessIsMonotonic(t *testing.T) {
	a := New()
	assert.False(t, a.Ready())

	a.UpdateTasks(1, []model.Task{{ID: "T1"}})
	a.UpdateBuckets(1, []model.Bucket{{ID: "B1"}})
	a.UpdateLabels(1, []model.Label{{ID: "L1"}})
	assert.False(t, a.Ready(), "three of four collections is not ready")

	// Labels are not joined before readiness.
	assert.Empty(t, labelsOf(t, a.Snapshot(), "T1"))

	a.UpdateLabelAssociations(1, []model.LabelAssociation{{TaskID: "T1", LabelID: "L1"}})
	assert.True(t, a.Ready())

	a.UpdateLabelAssociations(2, nil)
	a.UpdateTasks(2, []model.Task{})
	assert.True(t, a.Ready(), "empty refetch must not revert readiness")
	assert.Equal(t, 0, a.Snapshot().Counts().Tasks)
}

func TestEmptyFirstPayloadIsNotReady(t *testing.T) {
	calls := 0
	a := New(WithReadyHook(func(*Snapshot) { calls++ }))

	a.UpdateTasks(1, []model.Task{{ID: "T1"}})
	a.UpdateBuckets(1, []model.Bucket{{ID: "B1"}})
	a.UpdateLabels(1, []model.Label{})
	a.UpdateLabelAssociations(1, nil)
	assert.False(t, a.Ready(), "empty collections are still loading")
	assert.Equal(t, 0, calls)
	assert.Empty(t, labelsOf(t, a.Snapshot(), "T1"))

	a.UpdateLabels(2, []model.Label{{ID: "L1", Text: "first"}})
	assert.False(t, a.Ready())
	a.UpdateLabelAssociations(2, []model.LabelAssociation{{TaskID: "T1", LabelID: "L1"}})
	require.True(t, a.Ready())
	assert.Equal(t, 1, calls)
	assert.Equal(t, []model.Label{{ID: "L1", Text: "first"}}, labelsOf(t, a.Snapshot(), "T1"))
}

func TestReadyHookRunsOnce(t *testing.T) {
	calls := 0
	var got *Snapshot
	a := New(WithReadyHook(func(s *Snapshot) {
		calls++
		got = s
	}))

	feedAll(a)
	feedAll(a)
	a.UpdateTasks(9, []model.Task{{ID: "T3"}})

	assert.Equal(t, 1, calls)
	require.NotNil(t, got)
	assert.True(t, got.Ready())
}

func TestStaleUpdatesAreDropped(t *testing.T) {
	a := New()
	require.True(t, a.UpdateTasks(5, []model.Task{{ID: "new"}}))
	assert.False(t, a.UpdateTasks(3, []model.Task{{ID: "old"}}))

	_, ok := a.Snapshot().Task("new")
	assert.True(t, ok)
	_, ok = a.Snapshot().Task("old")
	assert.False(t, ok)

	// Stamps are tracked per resource.
	assert.True(t, a.UpdateBuckets(1, nil))
	// Unstamped updates always apply.
	assert.True(t, a.UpdateTasks(0, []model.Task{{ID: "manual"}}))
}

func TestTaskOrderAndDuplicates(t *testing.T) {
	a := New()
	a.UpdateTasks(1, []model.Task{
		{ID: "T1", Name: "dup"},
		{ID: "T2", Name: "dup"},
		{ID: "T1", Name: "renamed"},
	})
	s := a.Snapshot()
	tasks := s.Tasks()
	require.Len(t, tasks, 2)
	assert.Equal(t, model.ID("T1"), tasks[0].ID)
	assert.Equal(t, "renamed", tasks[0].Name, "last value wins")

	found, ok := s.TaskByName("dup")
	require.True(t, ok)
	assert.Equal(t, model.ID("T2"), found.ID)
}

func TestSnapshotsAreIsolated(t *testing.T) {
	a := New()
	feedAll(a)
	before := a.Snapshot()

	tasks := before.Tasks()
	tasks[0].Labels[0].Text = "mutated"
	assert.Equal(t, "first", labelsOf(t, before, "T1")[0].Text)

	a.UpdateTasks(2, []model.Task{{ID: "T9"}})
	assert.Equal(t, 2, before.Counts().Tasks, "old snapshot keeps its tasks")
	assert.Greater(t, a.Snapshot().Version(), before.Version())
}

func TestConcurrentUpdates(t *testing.T) {
	a := New()
	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(seq uint64) {
			defer wg.Done()
			a.UpdateTasks(seq, []model.Task{{ID: model.IntID(int(seq))}})
			_ = a.Snapshot().Tasks()
		}(uint64(i))
	}
	wg.Wait()
	assert.Equal(t, 1, a.Snapshot().Counts().Tasks)
}

func TestBucketAndLabelListings(t *testing.T) {
	a := New()
	a.UpdateBuckets(0, []model.Bucket{{ID: "B2", Color: 1}, {ID: "B1", Color: 2}, {ID: "B2", Color: 7}})
	a.UpdateLabels(0, []model.Label{{ID: "L2", Text: "b"}, {ID: "L1", Text: "a"}})
	s := a.Snapshot()

	if diff := cmp.Diff([]model.Bucket{{ID: "B1", Color: 2}, {ID: "B2", Color: 7}}, s.Buckets()); diff != "" {
		t.Errorf("buckets (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]model.Label{{ID: "L1", Text: "a"}, {ID: "L2", Text: "b"}}, s.Labels()); diff != "" {
		t.Errorf("labels (-want +got):\n%s", diff)
	}
}
