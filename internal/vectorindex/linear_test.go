package vectorindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEuclideanDistance(t *testing.T) {
	assert.Equal(t, float32(0), EuclideanDistance([]float32{1, 2, 3}, []float32{1, 2, 3}))
	assert.Equal(t, float32(5), EuclideanDistance([]float32{0, 0}, []float32{3, 4}))
}

func TestDotProduct(t *testing.T) {
	assert.Equal(t, float32(32), DotProduct([]float32{1, 2, 3}, []float32{4, 5, 6}))
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 0}, []float32{2, 0}), 1e-6)
	assert.Equal(t, float32(0), CosineSimilarity([]float32{0, 0}, []float32{1, 1}), "zero-magnitude vector yields 0")
}

func candidates() []Candidate {
	return []Candidate{
		{ID: 1, Vector: []float32{0, 0}},
		{ID: 2, Vector: []float32{1, 0}},
		{ID: 3, Vector: []float32{5, 0}},
	}
}

func TestScanEuclideanBestFirst(t *testing.T) {
	got := ScanEuclidean(candidates(), []float32{0, 0}, 2)
	assert.Len(t, got, 2)
	assert.Equal(t, uint64(1), got[0].ID)
	assert.Equal(t, uint64(2), got[1].ID)
}

func TestScanEuclideanTruncatesToN(t *testing.T) {
	got := ScanEuclidean(candidates(), []float32{0, 0}, 1)
	assert.Len(t, got, 1)
	assert.Equal(t, uint64(1), got[0].ID)
}

func TestScanCosineDescendingSimilarity(t *testing.T) {
	cands := []Candidate{
		{ID: 1, Vector: []float32{1, 0}},
		{ID: 2, Vector: []float32{0, 1}},
	}
	got := ScanCosine(cands, []float32{1, 0}, 2)
	assert.Equal(t, uint64(1), got[0].ID)
	assert.InDelta(t, 1.0, got[0].Distance, 1e-6, "Distance holds the raw similarity score")
}

func TestScanDotDescendingSimilarity(t *testing.T) {
	cands := []Candidate{
		{ID: 1, Vector: []float32{1, 1}},
		{ID: 2, Vector: []float32{10, 10}},
	}
	got := ScanDot(cands, []float32{1, 1}, 2)
	assert.Equal(t, uint64(2), got[0].ID, "higher dot product sorts first")
}
