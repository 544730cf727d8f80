package store

import (
	"sync"
	"testing"
	"time"

	"github.com/i474232898/mosmix-forecast/internal/weather"
)

func TestForecastStore_SeriesLifecycle(t *testing.T) {
	s := NewForecastStore()

	if _, ok := s.Series("10865"); ok {
		t.Fatal("Series: want none for unknown station")
	}
	if _, ok := s.NextDue("10865"); ok {
		t.Fatal("NextDue: want not ok before first fetch")
	}

	series := weather.NewSeries()
	series.Description = "MUENCHEN STADT"
	s.PutSeries("10865", series)

	got, ok := s.Series("10865")
	if !ok || got.Description != "MUENCHEN STADT" {
		t.Fatalf("Series = %+v, %v", got, ok)
	}

	s.ResetSeries("10865")
	if _, ok := s.Series("10865"); ok {
		t.Fatal("Series: want none after reset")
	}
	s.ResetSeries("unknown")
}

func TestForecastStore_NextDue(t *testing.T) {
	s := NewForecastStore()
	at := time.Date(2024, 3, 1, 13, 0, 0, 0, time.UTC)

	s.SetNextDue("H522", at)
	got, ok := s.NextDue("H522")
	if !ok || !got.Equal(at) {
		t.Fatalf("NextDue = %v, %v, want %v", got, ok, at)
	}

	s.SetNextDue("H522", time.Time{})
	got, ok = s.NextDue("H522")
	if !ok || !got.IsZero() {
		t.Fatalf("NextDue = %v, %v, want zero time and ok", got, ok)
	}
}

func TestForecastStore_ConcurrentStations(t *testing.T) {
	s := NewForecastStore()
	ids := []string{"10865", "H522", "10147", "P0489"}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				s.SetNextDue(id, time.Unix(int64(i), 0))
				s.PutSeries(id, weather.NewSeries())
				s.Series(id)
				s.ResetSeries(id)
			}
		}(id)
	}
	wg.Wait()

	for _, id := range ids {
		if got, ok := s.NextDue(id); !ok || got.Unix() != 99 {
			t.Errorf("NextDue(%s) = %v, %v", id, got, ok)
		}
	}
}
