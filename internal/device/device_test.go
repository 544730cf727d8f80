package device

import (
	"slices"
	"testing"
	"time"

	"github.com/i474232898/mosmix-forecast/internal/weather"
)

func ptr(v float64) *float64 { return &v }

func TestNew_DerivesIDFromName(t *testing.T) {
	d := New("10865", "10865")
	if d.ID != "dwdweather-ef09670181a75eff771b1b440e91757a333b002d" {
		t.Errorf("ID = %q", d.ID)
	}
	if len(d.Properties) != 9 {
		t.Errorf("properties = %d, want 9", len(d.Properties))
	}
}

func TestUpdate_OnChangeOnly(t *testing.T) {
	d := New("10865", "10865")
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	changed := d.Update(weather.Snapshot{
		StationID:       "10865",
		Station:         "MUENCHEN STADT",
		GeneratedAt:     at,
		TemperatureC:    ptr(8.85),
		SurfacePressure: ptr(101325),
	})
	if !slices.Equal(changed, []string{PropTemperature, PropPressure}) {
		t.Fatalf("changed = %v", changed)
	}

	view := d.View()
	if view.Description != "MUENCHEN STADT" {
		t.Errorf("Description = %q", view.Description)
	}
	if p := view.Property(PropPressure); p.Value == nil || *p.Value != 1013.25 {
		t.Errorf("pressure = %v, want 1013.25 hPa", p.Value)
	}

	// Same temperature, missing pressure: nothing changes and nothing is cleared.
	changed = d.Update(weather.Snapshot{StationID: "10865", GeneratedAt: at.Add(time.Hour), TemperatureC: ptr(8.85)})
	if len(changed) != 0 {
		t.Errorf("changed = %v, want none", changed)
	}
	if p := d.View().Property(PropPressure); p.Value == nil || !p.UpdatedAt.Equal(at) {
		t.Errorf("pressure lost or touched: %+v", p)
	}

	changed = d.Update(weather.Snapshot{StationID: "10865", TemperatureC: ptr(9.1)})
	if !slices.Equal(changed, []string{PropTemperature}) {
		t.Errorf("changed = %v, want temperature", changed)
	}
}

func TestView_IsDetached(t *testing.T) {
	d := New("a", "a")
	d.Update(weather.Snapshot{TemperatureC: ptr(1)})

	view := d.View()
	*view.Property(PropTemperature).Value = 42

	if v := d.View().Property(PropTemperature).Value; *v != 1 {
		t.Errorf("device mutated through view: %v", *v)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.Get("10865"); ok {
		t.Fatal("unexpected device before first update")
	}

	r.Update(weather.Snapshot{StationID: "10865", WindSpeed: ptr(3)})
	r.Update(weather.Snapshot{StationID: "H522", WindSpeed: ptr(5)})

	d, ok := r.Get("10865")
	if !ok {
		t.Fatal("device missing")
	}
	if v := d.Property(PropWindSpeed).Value; v == nil || *v != 3 {
		t.Errorf("wind speed = %v, want 3", v)
	}
	if other, _ := r.Get("H522"); other.ID == d.ID {
		t.Error("stations share a device id")
	}
}
