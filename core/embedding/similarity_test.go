package embedding

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float64
	}{
		{"Identical vectors", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"Orthogonal vectors", []float32{1, 0}, []float32{0, 1}, 0},
		{"Opposite vectors", []float32{1, 0}, []float32{-1, 0}, -1},
		{"Different lengths", []float32{1, 0}, []float32{1, 0, 0}, 0},
		{"Zero vector", []float32{0, 0}, []float32{1, 0}, 0},
		{"Scaled vectors", []float32{1, 1}, []float32{5, 5}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, CosineSimilarity(tt.a, tt.b), 1e-6)
		})
	}
}

func TestNormalize(t *testing.T) {
	t.Run("Result has unit length", func(t *testing.T) {
		v := Normalize([]float32{1, 2, 2})

		var norm float64
		for _, x := range v {
			norm += float64(x) * float64(x)
		}
		assert.InDelta(t, 1, math.Sqrt(norm), 1e-6)
	})

	t.Run("Zero vector is unchanged", func(t *testing.T) {
		assert.Equal(t, []float32{0, 0}, Normalize([]float32{0, 0}))
	})

	t.Run("Input is not modified", func(t *testing.T) {
		in := []float32{3, 4}
		Normalize(in)
		assert.Equal(t, []float32{3, 4}, in)
	})
}
