// Package model defines the planner records observed on the wire: tasks,
// buckets, labels and the association records joining labels to tasks.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ID is an opaque planner identifier. The host serves ids as strings, but
// captured fixtures and older endpoints use bare numbers; both decode to the
// same textual form.
type ID string

// UnmarshalJSON accepts either a JSON string or a JSON number.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode id: %w", err)
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode id %s: %w", data, err)
	}
	*id = ID(n.String())
	return nil
}

// String returns the id text.
func (id ID) String() string { return string(id) }

// IntID builds an ID from an integer, mostly for fixtures.
func IntID(n int) ID { return ID(strconv.Itoa(n)) }

// Task is one planner task. Labels is derived by the aggregator and is never
// read from the wire.
type Task struct {
	ID       ID     `json:"id"`
	Name     string `json:"name"`
	BucketID ID     `json:"bucketId"`
}

// Bucket groups tasks. Color indexes the curated palette and may be out of
// range.
type Bucket struct {
	ID    ID     `json:"id"`
	Name  string `json:"name,omitempty"`
	Color int    `json:"color"`
}

// Label is a tag attachable to many tasks. Index drives the label color.
type Label struct {
	ID    ID     `json:"id"`
	Text  string `json:"text"`
	Index int    `json:"index"`
}

// LabelAssociation links one task to one label.
type LabelAssociation struct {
	TaskID  ID `json:"taskId"`
	LabelID ID `json:"labelId"`
}

// Resource identifies one of the four planner collections.
type Resource int

const (
	ResourceTasks Resource = iota
	ResourceBuckets
	ResourceLabels
	ResourceLabelAssociations
)

// Resources lists every collection in a fixed order.
var Resources = []Resource{ResourceTasks, ResourceBuckets, ResourceLabels, ResourceLabelAssociations}

func (r Resource) String() string {
	switch r {
	case ResourceTasks:
		return "tasks"
	case ResourceBuckets:
		return "buckets"
	case ResourceLabels:
		return "labels"
	case ResourceLabelAssociations:
		return "labelassociations"
	default:
		return fmt.Sprintf("resource(%d)", int(r))
	}
}
