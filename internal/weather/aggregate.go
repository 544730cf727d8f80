package weather

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// precipitationWindow is the number of hourly samples summed into PrecipitationNext24h.
const precipitationWindow = 24

// AssembleSnapshot evaluates every tracked element of station at target.
// The first element that is tracked but absent from the series aborts the whole snapshot.
func AssembleSnapshot(series *Series, station Station, target time.Time) (Snapshot, error) {
	if series.FutureIndex(target) == -1 && !series.endsAt(target) {
		return Snapshot{}, ErrNoFuturePredictions
	}

	snap := Snapshot{
		ID:         uuid.NewString(),
		StationID:  station.ID,
		Station:    series.Description,
		ForecastAt: target,
	}

	var tempK, dewK float64
	if station.Tracks(ElementTemperature) {
		v, err := series.Interpolate(ElementTemperature, target)
		if err != nil {
			return Snapshot{}, err
		}
		tempK = v
		snap.TemperatureC = present(round(KelvinToCelsius(v), 2))
	}
	if station.Tracks(ElementDewPoint) && station.Tracks(ElementTemperature) {
		v, err := series.Interpolate(ElementDewPoint, target)
		if err != nil {
			return Snapshot{}, err
		}
		dewK = v
		snap.HumidityPct = present(RelativeHumidity(KelvinToCelsius(tempK), KelvinToCelsius(dewK)))
	}

	interpolated := []struct {
		code     string
		decimals int
		dst      **float64
	}{
		{ElementWindSpeed, 1, &snap.WindSpeed},
		{ElementWindDirection, 1, &snap.WindDirection},
		{ElementPrecipProbability, 1, &snap.PrecipitationProbability},
		{ElementEffectiveCloud, 2, &snap.EffectiveCloudCover},
		{ElementSurfacePressure, 2, &snap.SurfacePressure},
		{ElementMaxWindGust, 2, &snap.MaxWindGust},
	}
	for _, f := range interpolated {
		if !station.Tracks(f.code) {
			continue
		}
		v, err := series.Interpolate(f.code, target)
		if err != nil {
			return Snapshot{}, err
		}
		*f.dst = present(round(v, f.decimals))
	}

	if station.Tracks(ElementPrecipitation) {
		v, err := series.SumFuture(ElementPrecipitation, precipitationWindow, target)
		if err != nil {
			return Snapshot{}, err
		}
		snap.PrecipitationNext24h = present(round(v, 1))
	}

	return snap, nil
}

// present returns nil for a missing sample.
func present(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
