package aggregator

import (
	"cmp"
	"slices"

	"plannercolors/internal/model"
)

// JoinedTask is a task with the labels reachable through the current
// association collection, in association order.
type JoinedTask struct {
	model.Task
	Labels []model.Label
}

// Counts summarises the collection sizes in a snapshot.
type Counts struct {
	Tasks        int
	Buckets      int
	Labels       int
	Associations int
}

// Snapshot is an immutable view of the aggregated model. Accessors return
// copies so callers cannot reach back into shared state.
type Snapshot struct {
	version      uint64
	ready        bool
	tasks        []JoinedTask
	taskIndex    map[model.ID]int
	buckets      map[model.ID]model.Bucket
	labels       map[model.ID]model.Label
	associations []model.LabelAssociation
}

// View is the read-only side of the aggregator consumed by renderers.
type View interface {
	Snapshot() *Snapshot
}

// Version increases with every applied update.
func (s *Snapshot) Version() uint64 { return s.version }

// Ready reports whether all four collections had been observed when the
// snapshot was taken.
func (s *Snapshot) Ready() bool { return s.ready }

// Tasks returns the tasks in payload order.
func (s *Snapshot) Tasks() []JoinedTask {
	out := make([]JoinedTask, len(s.tasks))
	for i, t := range s.tasks {
		out[i] = copyTask(t)
	}
	return out
}

// Task looks a task up by id.
func (s *Snapshot) Task(id model.ID) (JoinedTask, bool) {
	i, ok := s.taskIndex[id]
	if !ok {
		return JoinedTask{}, false
	}
	return copyTask(s.tasks[i]), true
}

// TaskByName returns the first task, in payload order, whose display name
// equals name. Display names are not unique, so this is best effort.
func (s *Snapshot) TaskByName(name string) (JoinedTask, bool) {
	for _, t := range s.tasks {
		if t.Name == name {
			return copyTask(t), true
		}
	}
	return JoinedTask{}, false
}

// Bucket looks a bucket up by id.
func (s *Snapshot) Bucket(id model.ID) (model.Bucket, bool) {
	b, ok := s.buckets[id]
	return b, ok
}

// Label looks a label up by id.
func (s *Snapshot) Label(id model.ID) (model.Label, bool) {
	l, ok := s.labels[id]
	return l, ok
}

// Buckets returns all buckets ordered by id.
func (s *Snapshot) Buckets() []model.Bucket {
	out := make([]model.Bucket, 0, len(s.buckets))
	for _, b := range s.buckets {
		out = append(out, b)
	}
	slices.SortFunc(out, func(a, b model.Bucket) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// Labels returns all labels ordered by id.
func (s *Snapshot) Labels() []model.Label {
	out := make([]model.Label, 0, len(s.labels))
	for _, l := range s.labels {
		out = append(out, l)
	}
	slices.SortFunc(out, func(a, b model.Label) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// Associations returns the current association sequence.
func (s *Snapshot) Associations() []model.LabelAssociation {
	return append([]model.LabelAssociation(nil), s.associations...)
}

// Counts returns the collection sizes.
func (s *Snapshot) Counts() Counts {
	return Counts{
		Tasks:        len(s.tasks),
		Buckets:      len(s.buckets),
		Labels:       len(s.labels),
		Associations: len(s.associations),
	}
}

func copyTask(t JoinedTask) JoinedTask {
	t.Labels = append([]model.Label(nil), t.Labels...)
	return t
}
