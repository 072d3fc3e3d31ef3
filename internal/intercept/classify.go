// Package intercept observes the host page's planner API traffic.
//
// Transport is an http.RoundTripper middleware: it passes every exchange
// through untouched, and for the four planner collections it buffers the
// response body, decodes it and hands the records to a Sink.
package intercept

import (
	"fmt"
	"net/url"
	"strings"

	"plannercolors/internal/model"
)

const (
	taskListingMarker = "/tasks/?$select="
	bucketsSuffix     = "/buckets"
	labelsSuffix      = "/labels"
	associationSuffix = "/labelassociations"
)

// Classify maps a request URL to the planner collection it fetches.
// The task listing is recognised by its $select query anywhere in the URL;
// the other collections by a path ending with no query.
func Classify(u *url.URL) (model.Resource, bool) {
	if u == nil {
		return 0, false
	}
	target := u.Path
	if u.RawQuery != "" {
		q, err := url.QueryUnescape(u.RawQuery)
		if err != nil {
			q = u.RawQuery
		}
		target += "?" + q
	}

	switch {
	case strings.Contains(target, taskListingMarker):
		return model.ResourceTasks, true
	case strings.HasSuffix(target, bucketsSuffix):
		return model.ResourceBuckets, true
	case strings.HasSuffix(target, labelsSuffix):
		return model.ResourceLabels, true
	case strings.HasSuffix(target, associationSuffix):
		return model.ResourceLabelAssociations, true
	}
	return 0, false
}

// ClassifyString parses raw and classifies it.
func ClassifyString(raw string) (model.Resource, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return 0, false
	}
	return Classify(u)
}

// Sink receives decoded collections. Each method reports whether the update
// was applied.
type Sink interface {
	UpdateTasks(seq uint64, tasks []model.Task) bool
	UpdateBuckets(seq uint64, buckets []model.Bucket) bool
	UpdateLabels(seq uint64, labels []model.Label) bool
	UpdateLabelAssociations(seq uint64, assocs []model.LabelAssociation) bool
}

// Dispatch decodes body as the given collection and forwards it to sink.
// A decode error leaves the sink untouched.
func Dispatch(sink Sink, res model.Resource, seq uint64, body []byte) (bool, error) {
	switch res {
	case model.ResourceTasks:
		tasks, err := model.DecodeTasks(body)
		if err != nil {
			return false, err
		}
		return sink.UpdateTasks(seq, tasks), nil
	case model.ResourceBuckets:
		buckets, err := model.DecodeBuckets(body)
		if err != nil {
			return false, err
		}
		return sink.UpdateBuckets(seq, buckets), nil
	case model.ResourceLabels:
		labels, err := model.DecodeLabels(body)
		if err != nil {
			return false, err
		}
		return sink.UpdateLabels(seq, labels), nil
	case model.ResourceLabelAssociations:
		assocs, err := model.DecodeLabelAssociations(body)
		if err != nil {
			return false, err
		}
		return sink.UpdateLabelAssociations(seq, assocs), nil
	}
	return false, fmt.Errorf("unknown resource %v", res)
}
