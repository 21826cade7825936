package vision

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosine(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{0, 1, 0}

	assert.InDelta(t, 1.0, float64(Cosine(a, a)), 1e-6)
	assert.InDelta(t, 0.0, float64(Cosine(a, b)), 1e-6)
	assert.Zero(t, Cosine(a, []float32{1, 0}), "mismatched dimensions score zero")
	assert.Zero(t, Cosine(nil, nil))
}

func TestNormalize(t *testing.T) {
	v := []float32{3, 4}
	normalize(v)
	assert.InDelta(t, 0.6, float64(v[0]), 1e-6)
	assert.InDelta(t, 0.8, float64(v[1]), 1e-6)

	zero := []float32{0, 0}
	normalize(zero) // must not divide by zero
	assert.Equal(t, []float32{0, 0}, zero)
}
