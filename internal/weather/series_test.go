package weather

import (
	"errors"
	"math"
	"testing"
	"time"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func hourly(n int) []time.Time {
	times := make([]time.Time, n)
	for i := range times {
		times[i] = t0.Add(time.Duration(i) * time.Hour)
	}
	return times
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSeriesInterpolate(t *testing.T) {
	s := &Series{
		Times:    hourly(3),
		Elements: map[string][]float64{"X": {10, 20, 40}},
	}

	tests := []struct {
		name   string
		target time.Time
		want   float64
	}{
		{name: "before first sample", target: t0.Add(-2 * time.Hour), want: 10},
		{name: "at first sample", target: t0, want: 10},
		{name: "midpoint t0..t1", target: t0.Add(30 * time.Minute), want: 15},
		{name: "exactly at t1", target: t0.Add(time.Hour), want: 20},
		{name: "quarter t1..t2", target: t0.Add(75 * time.Minute), want: 25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Interpolate("X", tt.target)
			if err != nil {
				t.Fatalf("Interpolate: %v", err)
			}
			if !approx(got, tt.want) {
				t.Errorf("Interpolate = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSeriesInterpolate_GapTakesNextSample(t *testing.T) {
	s := &Series{
		Times:    hourly(3),
		Elements: map[string][]float64{"X": {math.NaN(), 7, 9}},
	}

	got, err := s.Interpolate("X", t0.Add(20*time.Minute))
	if err != nil {
		t.Fatalf("Interpolate: %v", err)
	}
	if got != 7 {
		t.Errorf("Interpolate = %v, want 7", got)
	}
}

func TestSeriesInterpolate_Errors(t *testing.T) {
	s := &Series{
		Times:    hourly(2),
		Elements: map[string][]float64{"X": {1, 2}},
	}

	if got, err := s.Interpolate("X", t0.Add(time.Hour)); err != nil || got != 2 {
		t.Errorf("target on last step: got %v, %v, want 2", got, err)
	}
	if _, err := s.Interpolate("X", t0.Add(time.Hour+time.Second)); !errors.Is(err, ErrNoFuturePredictions) {
		t.Errorf("past target: err = %v, want ErrNoFuturePredictions", err)
	}

	_, err := s.Interpolate("Y", t0)
	var unknown *UnknownElementError
	if !errors.As(err, &unknown) || unknown.Code != "Y" {
		t.Fatalf("unknown element: err = %v, want *UnknownElementError for Y", err)
	}
	if !errors.Is(err, ErrUnknownElement) {
		t.Errorf("errors.Is(err, ErrUnknownElement) = false")
	}
}

func TestSeriesSumFuture(t *testing.T) {
	s := &Series{
		Times:    hourly(5),
		Elements: map[string][]float64{"RR1c": {1, 2, math.NaN(), 3, 4}},
	}

	tests := []struct {
		name   string
		n      int
		target time.Time
		want   float64
	}{
		{name: "window longer than tail", n: 24, target: t0.Add(30 * time.Minute), want: 9},
		{name: "window of two skips missing", n: 2, target: t0.Add(time.Hour), want: 0 + 3},
		{name: "from before first sample", n: 3, target: t0.Add(-time.Hour), want: 3},
		{name: "empty window", n: 0, target: t0, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.SumFuture("RR1c", tt.n, tt.target)
			if err != nil {
				t.Fatalf("SumFuture: %v", err)
			}
			if !approx(got, tt.want) {
				t.Errorf("SumFuture = %v, want %v", got, tt.want)
			}
		})
	}

	if got, err := s.SumFuture("RR1c", 24, t0.Add(4*time.Hour)); err != nil || got != 0 {
		t.Errorf("target on last step: got %v, %v, want 0", got, err)
	}
	if _, err := s.SumFuture("RR1c", 24, t0.Add(5*time.Hour)); !errors.Is(err, ErrNoFuturePredictions) {
		t.Errorf("exhausted series: err = %v, want ErrNoFuturePredictions", err)
	}
}

func TestSeriesValidate(t *testing.T) {
	s := &Series{
		Times:    hourly(2),
		Elements: map[string][]float64{"X": {1, 2}, "Y": {1}},
	}
	if err := s.Validate(); err == nil {
		t.Fatal("Validate: want error for misaligned element")
	}
	delete(s.Elements, "Y")
	if err := s.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}
