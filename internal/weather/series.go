package weather

import (
	"fmt"
	"math"
	"time"
)

// NewSeries returns an empty series ready to be filled by a parser.
func NewSeries() *Series {
	return &Series{Elements: make(map[string][]float64)}
}

// FutureIndex returns the index of the first sample strictly after target, or -1.
func (s *Series) FutureIndex(target time.Time) int {
	for i, t := range s.Times {
		if t.After(target) {
			return i
		}
	}
	return -1
}

// endsAt reports whether the last time step is exactly target. Such a target is
// still answerable although no sample lies strictly after it.
func (s *Series) endsAt(target time.Time) bool {
	return len(s.Times) > 0 && s.Times[len(s.Times)-1].Equal(target)
}

// Interpolate returns the value of code at target.
//
// Before the first sample the first value is returned unchanged. When the sample
// preceding target is missing the following sample is returned as-is; otherwise
// the two bracketing samples are interpolated linearly.
func (s *Series) Interpolate(code string, target time.Time) (float64, error) {
	values, ok := s.Elements[code]
	if !ok {
		return 0, &UnknownElementError{Code: code}
	}

	idx := s.FutureIndex(target)
	switch {
	case idx == -1 && s.endsAt(target):
		return values[len(values)-1], nil
	case idx == -1:
		return 0, ErrNoFuturePredictions
	case idx == 0:
		return values[0], nil
	case math.IsNaN(values[idx-1]):
		return values[idx], nil
	}

	t0, t1 := s.Times[idx-1], s.Times[idx]
	share := float64(target.Sub(t0)) / float64(t1.Sub(t0))
	return values[idx-1] + share*(values[idx]-values[idx-1]), nil
}

// SumFuture sums up to n values of code starting at the first future sample.
// Missing samples count as zero and the window is cut at the end of the series.
func (s *Series) SumFuture(code string, n int, target time.Time) (float64, error) {
	values, ok := s.Elements[code]
	if !ok {
		return 0, &UnknownElementError{Code: code}
	}

	idx := s.FutureIndex(target)
	if idx == -1 {
		if s.endsAt(target) {
			return 0, nil
		}
		return 0, ErrNoFuturePredictions
	}

	var sum float64
	for i := idx; i < len(values) && i < idx+n; i++ {
		if !math.IsNaN(values[i]) {
			sum += values[i]
		}
	}
	return sum, nil
}

// Validate checks that every element series is aligned with the time steps.
func (s *Series) Validate() error {
	for code, values := range s.Elements {
		if len(values) != len(s.Times) {
			return fmt.Errorf("element %s has %d values for %d time steps", code, len(values), len(s.Times))
		}
	}
	return nil
}
