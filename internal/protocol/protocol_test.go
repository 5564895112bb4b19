package protocol

import (
	"bytes"
	"encoding/gob"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahnlich/ahnlich-db/internal/metadata"
	"github.com/ahnlich/ahnlich-db/internal/predicate"
)

func TestAlgorithmString(t *testing.T) {
	assert.Equal(t, "EuclideanDistance", EuclideanDistance.String())
	assert.Equal(t, "KDTree", KDTree.String())
	assert.Equal(t, "Unknown", Algorithm(200).String())
}

func TestAlgorithmIsNonLinear(t *testing.T) {
	assert.False(t, EuclideanDistance.IsNonLinear())
	assert.False(t, DotProductSimilarity.IsNonLinear())
	assert.False(t, CosineSimilarity.IsNonLinear())
	assert.True(t, KDTree.IsNonLinear())
	assert.True(t, HNSW.IsNonLinear())
}

func TestBatchGobRoundTrip(t *testing.T) {
	batch := Batch{
		CreateStore{Store: "s1", Dimension: 3, PredicateKeys: []metadata.Key{"color"}, ErrorIfExists: true},
		Set{Store: "s1", Records: []Record{{Vector: []float32{1, 2, 3}, Metadata: metadata.Map{"color": metadata.Text("red")}}}},
		GetSimN{Store: "s1", Point: []float32{1, 2, 3}, N: 5, Algorithm: CosineSimilarity,
			Condition: predicate.Value(predicate.Eq("color", metadata.Text("red")))},
		ListStores{},
		Close{},
	}

	var buf bytes.Buffer
	require.NoError(t, gob.NewEncoder(&buf).Encode(&batch))

	var decoded Batch
	require.NoError(t, gob.NewDecoder(&buf).Decode(&decoded))
	require.Len(t, decoded, len(batch))

	_, ok := decoded[0].(CreateStore)
	assert.True(t, ok)
	_, ok = decoded[4].(Close)
	assert.True(t, ok)
}

func TestResultBatchGobRoundTrip(t *testing.T) {
	batch := ResultBatch{
		Ok(Unit{}),
		Ok(Count{N: 3}),
		Ok(SimResultList{Results: []SimResult{{Vector: []float32{1}, Score: 0.5}}}),
		Error("store not found: s1"),
	}

	var buf bytes.Buffer
	require.NoError(t, gob.NewEncoder(&buf).Encode(&batch))

	var decoded ResultBatch
	require.NoError(t, gob.NewDecoder(&buf).Decode(&decoded))
	require.Len(t, decoded, len(batch))
	assert.False(t, decoded[0].IsErr())
	assert.True(t, decoded[3].IsErr())
	assert.Equal(t, "store not found: s1", decoded[3].Err)
}

func TestResultHelpers(t *testing.T) {
	ok := Ok(Unit{})
	assert.False(t, ok.IsErr())

	failed := Error("boom")
	assert.True(t, failed.IsErr())
	assert.Equal(t, "boom", failed.Err)
}
