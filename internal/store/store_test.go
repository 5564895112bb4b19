package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahnlich/ahnlich-db/internal/dberrors"
	"github.com/ahnlich/ahnlich-db/internal/metadata"
	"github.com/ahnlich/ahnlich-db/internal/predicate"
	"github.com/ahnlich/ahnlich-db/internal/protocol"
)

func TestCreateSetGetKey(t *testing.T) {
	s := New("s", 3, nil, nil, nil)

	inserted, updated, err := s.Set([]protocol.Record{
		{Vector: []float32{1, 0, 0}, Metadata: metadata.Map{"tag": metadata.Text("a")}},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), inserted)
	assert.Equal(t, uint64(0), updated)

	got, err := s.GetKey([][]float32{{1, 0, 0}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []float32{1, 0, 0}, got[0].Vector)
	assert.Equal(t, metadata.Text("a"), got[0].Metadata["tag"])

	none, err := s.GetKey([][]float32{{0, 0, 0}})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDimensionMismatch(t *testing.T) {
	s := New("s", 3, nil, nil, nil)

	_, _, err := s.Set([]protocol.Record{{Vector: []float32{1, 2}, Metadata: metadata.Map{}}})
	require.Error(t, err)
	assert.Equal(t, dberrors.KindDimensionMismatch, dberrors.GetKind(err))
}

func TestPredicateFilter(t *testing.T) {
	s := New("s", 2, []metadata.Key{"c"}, nil, nil)

	v1 := []float32{1, 0}
	v2 := []float32{0, 1}
	v3 := []float32{1, 1}
	_, _, err := s.Set([]protocol.Record{
		{Vector: v1, Metadata: metadata.Map{"c": metadata.Text("x")}},
		{Vector: v2, Metadata: metadata.Map{"c": metadata.Text("y")}},
		{Vector: v3, Metadata: metadata.Map{"c": metadata.Text("x")}},
	})
	require.NoError(t, err)

	cond := predicate.Value(predicate.Eq("c", metadata.Text("x")))
	got, err := s.GetPred(cond)
	require.NoError(t, err)
	require.Len(t, got, 2)

	vectors := [][]float32{got[0].Vector, got[1].Vector}
	assert.Contains(t, vectors, v1)
	assert.Contains(t, vectors, v3)
}

func TestGetSimNCosine(t *testing.T) {
	s := New("s", 2, nil, nil, nil)
	_, _, err := s.Set([]protocol.Record{
		{Vector: []float32{1, 0}, Metadata: metadata.Map{}},
		{Vector: []float32{0.9, 0.1}, Metadata: metadata.Map{}},
		{Vector: []float32{0, 1}, Metadata: metadata.Map{}},
	})
	require.NoError(t, err)

	results, err := s.GetSimN([]float32{1, 0}, 2, protocol.CosineSimilarity, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, []float32{1, 0}, results[0].Vector)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.Equal(t, []float32{0.9, 0.1}, results[1].Vector)
	assert.InDelta(t, 0.9939, results[1].Score, 1e-3)
}

func TestGetSimNWithAcceptList(t *testing.T) {
	s := New("s", 2, []metadata.Key{"lang"}, nil, nil)
	_, _, err := s.Set([]protocol.Record{
		{Vector: []float32{1, 0}, Metadata: metadata.Map{"lang": metadata.Text("fr")}},
		{Vector: []float32{0.9, 0.1}, Metadata: metadata.Map{"lang": metadata.Text("fr")}},
		{Vector: []float32{0, 1}, Metadata: metadata.Map{"lang": metadata.Text("en")}},
	})
	require.NoError(t, err)

	cond := predicate.Value(predicate.Eq("lang", metadata.Text("en")))
	results, err := s.GetSimN([]float32{1, 0}, 3, protocol.CosineSimilarity, cond)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, []float32{0, 1}, results[0].Vector)
}

func TestSetSameVectorTwiceIsOneRecord(t *testing.T) {
	s := New("s", 2, nil, nil, nil)
	_, _, err := s.Set([]protocol.Record{
		{Vector: []float32{1, 1}, Metadata: metadata.Map{"v": metadata.Text("1")}},
		{Vector: []float32{1, 1}, Metadata: metadata.Map{"v": metadata.Text("2")}},
	})
	require.NoError(t, err)

	got, err := s.GetKey([][]float32{{1, 1}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, metadata.Text("2"), got[0].Metadata["v"])
}

func TestNonLinearIndexNotFound(t *testing.T) {
	s := New("s", 2, nil, nil, nil)
	_, _, err := s.GetSimN([]float32{0, 0}, 1, protocol.KDTree, nil)
	require.Error(t, err)
	assert.Equal(t, dberrors.KindIndexNotFound, dberrors.GetKind(err))
}

func TestCreateNonLinearIndexAndSearch(t *testing.T) {
	s := New("s", 2, nil, nil, nil)
	_, _, err := s.Set([]protocol.Record{
		{Vector: []float32{1, 0}, Metadata: metadata.Map{}},
		{Vector: []float32{0, 1}, Metadata: metadata.Map{}},
	})
	require.NoError(t, err)

	created := s.CreateNonLinearIndex([]protocol.Algorithm{protocol.KDTree})
	assert.Equal(t, uint64(1), created)

	results, err := s.GetSimN([]float32{1, 0}, 1, protocol.KDTree, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, []float32{1, 0}, results[0].Vector)
}

func TestDelPredUnknownKeyErrors(t *testing.T) {
	s := New("s", 2, nil, nil, nil)
	cond := predicate.Value(predicate.Eq("nope", metadata.Text("x")))
	_, err := s.DelPred(cond)
	require.Error(t, err)
	assert.Equal(t, dberrors.KindPredicateNotFound, dberrors.GetKind(err))
}

func TestDelPredScanFallback(t *testing.T) {
	s := New("s", 2, nil, nil, nil)
	_, _, err := s.Set([]protocol.Record{
		{Vector: []float32{1, 0}, Metadata: metadata.Map{"c": metadata.Text("x")}},
		{Vector: []float32{0, 1}, Metadata: metadata.Map{"c": metadata.Text("y")}},
	})
	require.NoError(t, err)

	// "c" is not indexed but is present on records, so NotEquals falls
	// back to a full scan instead of erroring or treating it as unknown.
	cond := predicate.Value(predicate.NotEq("c", metadata.Text("x")))
	removed, err := s.DelPred(cond)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), removed)

	remaining, err := s.GetKey([][]float32{{1, 0}})
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}
