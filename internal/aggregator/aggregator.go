// Package aggregator accumulates the four planner collections as they arrive
// and derives the joined task/label model once all of them have been seen.
//
// Every collection is replaced wholesale on arrival. Updates carry a sequence
// stamp taken when the request was issued; an update older than the last one
// applied for the same collection is dropped, so a slow response cannot
// overwrite a newer one.
package aggregator

import (
	"sync"
	"sync/atomic"

	"plannercolors/internal/logging"
	"plannercolors/internal/model"
)

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithReadyHook registers fn to run once, synchronously, on the update that
// first makes the aggregator ready.
func WithReadyHook(fn func(*Snapshot)) Option {
	return func(a *Aggregator) {
		a.readyHooks = append(a.readyHooks, fn)
	}
}

// Aggregator owns the collections. It is safe for concurrent use; readers
// should go through Snapshot.
type Aggregator struct {
	mu           sync.Mutex
	tasks        []model.Task
	buckets      map[model.ID]model.Bucket
	labels       map[model.ID]model.Label
	associations []model.LabelAssociation
	seen         map[model.Resource]bool
	lastSeq      map[model.Resource]uint64
	ready        bool
	version      uint64

	snap       atomic.Pointer[Snapshot]
	readyHooks []func(*Snapshot)
	readyOnce  sync.Once
}

// New returns an empty, not-ready aggregator.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{
		buckets: make(map[model.ID]model.Bucket),
		labels:  make(map[model.ID]model.Label),
		seen:    make(map[model.Resource]bool),
		lastSeq: make(map[model.Resource]uint64),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.snap.Store(a.buildLocked())
	return a
}

// Snapshot returns the latest published snapshot.
func (a *Aggregator) Snapshot() *Snapshot {
	return a.snap.Load()
}

// Ready reports whether all four collections have been observed.
func (a *Aggregator) Ready() bool {
	return a.Snapshot().Ready()
}

// UpdateTasks replaces the task collection. Duplicate ids keep their first
// position and their last value.
func (a *Aggregator) UpdateTasks(seq uint64, tasks []model.Task) bool {
	return a.apply(model.ResourceTasks, seq, len(tasks), func() {
		index := make(map[model.ID]int, len(tasks))
		out := make([]model.Task, 0, len(tasks))
		for _, t := range tasks {
			if i, ok := index[t.ID]; ok {
				out[i] = t
				continue
			}
			index[t.ID] = len(out)
			out = append(out, t)
		}
		a.tasks = out
	})
}

// UpdateBuckets replaces the bucket collection.
func (a *Aggregator) UpdateBuckets(seq uint64, buckets []model.Bucket) bool {
	return a.apply(model.ResourceBuckets, seq, len(buckets), func() {
		m := make(map[model.ID]model.Bucket, len(buckets))
		for _, b := range buckets {
			m[b.ID] = b
		}
		a.buckets = m
	})
}

// UpdateLabels replaces the label collection.
func (a *Aggregator) UpdateLabels(seq uint64, labels []model.Label) bool {
	return a.apply(model.ResourceLabels, seq, len(labels), func() {
		m := make(map[model.ID]model.Label, len(labels))
		for _, l := range labels {
			m[l.ID] = l
		}
		a.labels = m
	})
}

// UpdateLabelAssociations replaces the association sequence.
func (a *Aggregator) UpdateLabelAssociations(seq uint64, assocs []model.LabelAssociation) bool {
	return a.apply(model.ResourceLabelAssociations, seq, len(assocs), func() {
		a.associations = append([]model.LabelAssociation(nil), assocs...)
	})
}

func (a *Aggregator) apply(res model.Resource, seq uint64, n int, replace func()) bool {
	a.mu.Lock()
	if seq != 0 && seq < a.lastSeq[res] {
		last := a.lastSeq[res]
		a.mu.Unlock()
		logging.Get(logging.CategoryAggregate).Warn("dropping stale %s update: seq %d < applied %d", res, seq, last)
		return false
	}
	if seq > a.lastSeq[res] {
		a.lastSeq[res] = seq
	}

	replace()
	// An empty first payload is what the host sends while it is still
	// loading, so it does not count towards readiness.
	if n > 0 {
		a.seen[res] = true
	}
	a.version++
	becameReady := false
	if !a.ready && a.allSeenLocked() {
		a.ready = true
		becameReady = true
	}
	snap := a.buildLocked()
	a.snap.Store(snap)
	a.mu.Unlock()

	logging.Aggregate("Updated %s: %d records (seq %d, version %d)", res, n, seq, snap.version)
	if becameReady {
		logging.Aggregate("Finished loading")
		a.readyOnce.Do(func() {
			for _, fn := range a.readyHooks {
				fn(snap)
			}
		})
	}
	return true
}

func (a *Aggregator) allSeenLocked() bool {
	for _, r := range model.Resources {
		if !a.seen[r] {
			return false
		}
	}
	return true
}

// buildLocked derives a fresh snapshot from the current collections. Labels
// are only joined once ready.
func (a *Aggregator) buildLocked() *Snapshot {
	s := &Snapshot{
		version:      a.version,
		ready:        a.ready,
		tasks:        make([]JoinedTask, len(a.tasks)),
		taskIndex:    make(map[model.ID]int, len(a.tasks)),
		buckets:      a.buckets,
		labels:       a.labels,
		associations: a.associations,
	}
	for i, t := range a.tasks {
		s.tasks[i] = JoinedTask{Task: t}
		s.taskIndex[t.ID] = i
	}
	if !a.ready {
		return s
	}

	skipped := 0
	for _, assoc := range a.associations {
		label, ok := a.labels[assoc.LabelID]
		if !ok {
			skipped++
			continue
		}
		i, ok := s.taskIndex[assoc.TaskID]
		if !ok {
			skipped++
			continue
		}
		s.tasks[i].Labels = append(s.tasks[i].Labels, label)
	}
	if skipped > 0 {
		logging.AggregateDebug("skipped %d associations with missing task or label", skipped)
	}
	return s
}
