// Package models contains domain models for snowball.
package models

import (
	"fmt"
	"sort"

	json "github.com/goccy/go-json"
)

// Well-known record keys. Any other key of a map-shaped record is kept in Record.Fields.
const (
	FieldID         = "id"
	FieldVector     = "vector"
	FieldClusterTag = "cluster_tag"
)

// Vector is an ordered sequence of real numbers.
// Dimensionality is expected to be fixed across a dataset but is not validated up front.
type Vector []float64

// Shape identifies which input shape a dataset was normalized from.
type Shape int

const (
	// ShapeUnresolved is the zero value; clustering refuses to run on it.
	ShapeUnresolved Shape = iota
	// ShapeVectorList means the input was a sequence of raw vectors.
	ShapeVectorList
	// ShapeRecordList means the input was a sequence of records carrying a vector field.
	ShapeRecordList
	// ShapeExternalSource means the records were enumerated from an external source.
	ShapeExternalSource
)

func (s Shape) String() string {
	switch s {
	case ShapeUnresolved:
		return "unresolved"
	case ShapeVectorList:
		return "vector_list"
	case ShapeRecordList:
		return "record_list"
	case ShapeExternalSource:
		return "external_source"
	default:
		return fmt.Sprintf("shape(%d)", int(s))
	}
}

// IsRecordShaped reports whether records of this shape carry caller metadata
// and are tagged in place rather than rewrapped.
func (s Shape) IsRecordShaped() bool {
	return s == ShapeRecordList || s == ShapeExternalSource
}

// Record is the unit of clustering.
type Record struct {
	// Fields holds every key of a map-shaped record other than id, vector and cluster_tag.
	Fields     map[string]any `json:"-"`
	ID         string         `json:"id"`
	ClusterTag string         `json:"cluster_tag,omitempty"`
	Vector     Vector         `json:"vector"`

	// Raw is the caller's map this record was decoded from, if any.
	// SetClusterTag writes the tag back into it.
	Raw map[string]any `json:"-"`
}

// SetClusterTag sets the tag on the record and on its caller-owned map.
func (r *Record) SetClusterTag(tag string) {
	r.ClusterTag = tag
	if r.Raw != nil {
		r.Raw[FieldClusterTag] = tag
	}
}

// HasVector reports whether the record carries a non-empty vector.
func (r *Record) HasVector() bool {
	return r != nil && len(r.Vector) > 0
}

// MarshalJSON flattens Fields next to the well-known keys so a record
// round-trips to the map shape it was decoded from.
func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Fields)+3)
	for k, v := range r.Fields {
		out[k] = v
	}
	out[FieldID] = r.ID
	out[FieldVector] = r.Vector
	if r.ClusterTag != "" {
		out[FieldClusterTag] = r.ClusterTag
	}
	return json.Marshal(out)
}

// Clusters maps a cluster index (starting at 0) to its members, seed first.
type Clusters map[int][]*Record

// Len returns the number of clusters.
func (c Clusters) Len() int {
	return len(c)
}

// Indices returns the cluster indices in ascending order.
func (c Clusters) Indices() []int {
	indices := make([]int, 0, len(c))
	for idx := range c {
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	return indices
}

// Size returns the total number of clustered records.
func (c Clusters) Size() int {
	total := 0
	for _, members := range c {
		total += len(members)
	}
	return total
}
