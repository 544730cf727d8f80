package weather

import (
	"slices"
	"time"
)

// Element codes as published in the MOSMIX feed.
const (
	ElementTemperature       = "TTT"  // K, 2m above surface
	ElementDewPoint          = "Td"   // K
	ElementWindSpeed         = "FF"   // m/s
	ElementWindDirection     = "DD"   // 0..360 degrees
	ElementPrecipProbability = "wwP"  // %, occurrence of precipitation within the last hour
	ElementPrecipitation     = "RR1c" // kg/m2, total precipitation during the last hour
	ElementEffectiveCloud    = "Neff" // %
	ElementSurfacePressure   = "PPPP" // Pa, reduced
	ElementMaxWindGust       = "FX1"  // m/s, within the last hour
)

// Station is the per-location context a query runs against.
// Station ids are case-sensitive and used verbatim in the feed URL.
type Station struct {
	ID        string        `json:"id"`
	Elements  []string      `json:"elements"`
	LookAhead time.Duration `json:"lookAhead"`
}

// Tracks reports whether code is one of the station's tracked elements.
func (s Station) Tracks(code string) bool {
	return slices.Contains(s.Elements, code)
}

// Series is the time series reconstructed from one fetch of a station's feed.
// Every populated entry of Elements is index-aligned with Times; NaN marks a missing sample.
type Series struct {
	Description string
	Times       []time.Time
	Elements    map[string][]float64
}

// Snapshot is the evaluated forecast for one station at one instant.
// A nil numeric field means the element is not tracked or has no sample at the target.
type Snapshot struct {
	ID          string    `json:"id"`
	StationID   string    `json:"stationId"`
	Station     string    `json:"station"`
	ForecastAt  time.Time `json:"forecastAt"`
	GeneratedAt time.Time `json:"generatedAt"`

	TemperatureC             *float64 `json:"temperatureC,omitempty"`
	HumidityPct              *float64 `json:"humidityPercent,omitempty"`
	WindSpeed                *float64 `json:"windSpeedMs,omitempty"`
	WindDirection            *float64 `json:"windDirectionDeg,omitempty"`
	PrecipitationProbability *float64 `json:"precipitationProbabilityPercent,omitempty"`
	PrecipitationNext24h     *float64 `json:"precipitationNext24hMm,omitempty"`
	EffectiveCloudCover      *float64 `json:"effectiveCloudCoverPercent,omitempty"`
	SurfacePressure          *float64 `json:"surfacePressurePa,omitempty"`
	MaxWindGust              *float64 `json:"maxWindGustMs,omitempty"`
}
