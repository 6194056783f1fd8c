package peakpick

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindLocalMaximaTwoPeaks(t *testing.T) {
	data := []float64{0, 1, 3, 1, 0, 0, 2, 5, 2, 0}
	maxima := findLocalMaxima(data, 0)
	assert.Equal(t, []int{2, 7}, maxima)
}

func TestFindLocalMaximaSinglePoint(t *testing.T) {
	assert.Equal(t, []int{0}, findLocalMaxima([]float64{5}, 0))
	assert.Nil(t, findLocalMaxima([]float64{0}, 0))
}

func TestFindLocalMaximaThreshold(t *testing.T) {
	data := []float64{0, 1, 3, 1, 0, 0, 2, 5, 2, 0}
	maxima := findLocalMaxima(data, 3)
	assert.Equal(t, []int{7}, maxima)
}

func TestFindFlankingMinima(t *testing.T) {
	data := []float64{0, 1, 3, 1, 0, 0, 2, 5, 2, 0}
	maxima := findLocalMaxima(data, 0)
	triples := findFlankingMinima(maxima, data)
	assert.Equal(t, []MaximaMinimaTriple{
		{LeftMin: 0, Apex: 2, RightMin: 5},
		{LeftMin: 4, Apex: 7, RightMin: 9},
	}, triples)
}

func TestMaximaMinimaTripleHasFlanks(t *testing.T) {
	both := MaximaMinimaTriple{LeftMin: 1, Apex: 2, RightMin: 3}
	assert.True(t, both.HasLeft())
	assert.True(t, both.HasRight())

	neither := MaximaMinimaTriple{LeftMin: -1, Apex: 2, RightMin: -1}
	assert.False(t, neither.HasLeft())
	assert.False(t, neither.HasRight())
}
