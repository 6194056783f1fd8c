package peakpick

// MaximaMinimaTriple is one candidate peak located by local-maximum
// detection, bracketed by its flanking local minima. A
// missing side is represented by -1. findFlankingMinima also returns a
// triple with neither side present; FindPeaksWavelet skips such triples.
type MaximaMinimaTriple struct {
	LeftMin  int
	Apex     int
	RightMin int
}

// HasLeft reports whether the triple has a left-flanking minimum.
func (t MaximaMinimaTriple) HasLeft() bool { return t.LeftMin >= 0 }

// HasRight reports whether the triple has a right-flanking minimum.
func (t MaximaMinimaTriple) HasRight() bool { return t.RightMin >= 0 }

// findLocalMaxima returns indices of local maxima in data that exceed
// threshold: an endpoint counts as a maximum if its single neighbor is
// lower.
func findLocalMaxima(data []float64, threshold float64) []int {
	var maxima []int
	n := len(data)
	for i := 0; i < n; i++ {
		switch {
		case n == 1:
			if data[i] > threshold {
				maxima = append(maxima, i)
			}
		case i == 0:
			if data[i+1] < data[i] && data[i] > threshold {
				maxima = append(maxima, i)
			}
		case i == n-1:
			if data[i-1] < data[i] && data[i] > threshold {
				maxima = append(maxima, i)
			}
		default:
			if data[i-1] < data[i] && data[i+1] < data[i] && data[i] > threshold {
				maxima = append(maxima, i)
			}
		}
	}
	return maxima
}

// findFlankingMinima descends outward from each maximum index until the
// data starts increasing again, forming (left_min, apex, right_min)
// triples.
func findFlankingMinima(maxIndexes []int, data []float64) []MaximaMinimaTriple {
	n := len(data)
	triples := make([]MaximaMinimaTriple, 0, len(maxIndexes))

	for _, apex := range maxIndexes {
		leftVal := apex - 1
		if leftVal < 0 {
			leftVal = 0
		}
		for i := apex - 2; i >= 0; i-- {
			if data[i] > data[leftVal] {
				break
			}
			leftVal = i
		}

		rightVal := apex + 1
		if rightVal > n-1 {
			rightVal = n - 1
		}
		for i := apex + 2; i < n; i++ {
			if data[i] > data[rightVal] {
				break
			}
			rightVal = i
		}

		t := MaximaMinimaTriple{Apex: apex, LeftMin: -1, RightMin: -1}
		if leftVal != apex {
			t.LeftMin = leftVal
		}
		if rightVal != apex {
			t.RightMin = rightVal
		}
		triples = append(triples, t)
	}
	return triples
}
