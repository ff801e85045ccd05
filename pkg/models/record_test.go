package models

import (
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShapeString(t *testing.T) {
	tests := []struct {
		name     string
		expected string
		shape    Shape
	}{
		{name: "unresolved", shape: ShapeUnresolved, expected: "unresolved"},
		{name: "vector list", shape: ShapeVectorList, expected: "vector_list"},
		{name: "record list", shape: ShapeRecordList, expected: "record_list"},
		{name: "external source", shape: ShapeExternalSource, expected: "external_source"},
		{name: "unknown", shape: Shape(42), expected: "shape(42)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.shape.String())
		})
	}
}

func TestShapeIsRecordShaped(t *testing.T) {
	assert.False(t, ShapeUnresolved.IsRecordShaped())
	assert.False(t, ShapeVectorList.IsRecordShaped())
	assert.True(t, ShapeRecordList.IsRecordShaped())
	assert.True(t, ShapeExternalSource.IsRecordShaped())
}

func TestRecordHasVector(t *testing.T) {
	var nilRecord *Record
	assert.False(t, nilRecord.HasVector())
	assert.False(t, (&Record{ID: "a"}).HasVector())
	assert.True(t, (&Record{ID: "a", Vector: Vector{1}}).HasVector())
}

func TestRecordMarshalJSON(t *testing.T) {
	rec := Record{
		ID:         "doc-1",
		Vector:     Vector{0.5, 1},
		ClusterTag: "tag-1",
		Fields:     map[string]any{"title": "hello"},
	}

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "doc-1", decoded["id"])
	assert.Equal(t, "tag-1", decoded["cluster_tag"])
	assert.Equal(t, "hello", decoded["title"])
	assert.Equal(t, []any{0.5, 1.0}, decoded["vector"])
}

func TestRecordMarshalJSON_OmitsEmptyTag(t *testing.T) {
	data, err := json.Marshal(Record{ID: "0", Vector: Vector{1}})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "cluster_tag")
}

func TestClustersHelpers(t *testing.T) {
	a := &Record{ID: "a"}
	b := &Record{ID: "b"}
	c := &Record{ID: "c"}

	clusters := Clusters{
		1: {c},
		0: {a, b},
	}

	assert.Equal(t, 2, clusters.Len())
	assert.Equal(t, []int{0, 1}, clusters.Indices())
	assert.Equal(t, 3, clusters.Size())
	assert.Empty(t, Clusters{}.Indices())
}

func TestRecordSetClusterTag(t *testing.T) {
	raw := map[string]any{"vector": []any{1.0}, "title": "x"}
	rec := &Record{Vector: Vector{1}, Raw: raw}

	rec.SetClusterTag("t1")
	assert.Equal(t, "t1", rec.ClusterTag)
	assert.Equal(t, "t1", raw[FieldClusterTag])

	detached := &Record{Vector: Vector{1}}
	detached.SetClusterTag("t2")
	assert.Equal(t, "t2", detached.ClusterTag)
}
