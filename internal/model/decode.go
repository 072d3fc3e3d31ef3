package model

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// ErrPayloadShape is returned when a body is valid JSON but not a record
// collection.
var ErrPayloadShape = errors.New("payload is not a record collection")

// collection locates the record array inside a response body. The planner
// API answers either with a bare array or with an OData envelope carrying the
// array under "value".
func collection(body []byte) ([]byte, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("invalid JSON payload (%d bytes)", len(body))
	}
	root := gjson.ParseBytes(body)
	switch {
	case root.IsArray():
		return []byte(root.Raw), nil
	case root.IsObject():
		if v := root.Get("value"); v.IsArray() {
			return []byte(v.Raw), nil
		}
	}
	return nil, ErrPayloadShape
}

func decodeInto[T any](body []byte, kind string) ([]T, error) {
	raw, err := collection(body)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", kind, err)
	}
	var out []T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", kind, err)
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

// DecodeTasks parses a task listing response.
func DecodeTasks(body []byte) ([]Task, error) {
	return decodeInto[Task](body, "tasks")
}

// DecodeBuckets parses a bucket listing response.
func DecodeBuckets(body []byte) ([]Bucket, error) {
	return decodeInto[Bucket](body, "buckets")
}

// DecodeLabels parses a label listing response.
func DecodeLabels(body []byte) ([]Label, error) {
	return decodeInto[Label](body, "labels")
}

// DecodeLabelAssociations parses a label association listing response.
func DecodeLabelAssociations(body []byte) ([]LabelAssociation, error) {
	return decodeInto[LabelAssociation](body, "label associations")
}
