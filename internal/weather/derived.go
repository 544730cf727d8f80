package weather

import "math"

const kelvinOffset = 273.15

// KelvinToCelsius converts an absolute temperature to degrees Celsius.
func KelvinToCelsius(k float64) float64 {
	return k - kelvinOffset
}

// CelsiusToKelvin is the inverse of KelvinToCelsius.
func CelsiusToKelvin(c float64) float64 {
	return c + kelvinOffset
}

// SaturationVaporPressure returns the saturation vapour pressure in hPa over
// water (t >= 0) or ice (t < 0) for a temperature in degrees Celsius.
func SaturationVaporPressure(tempC float64) float64 {
	if tempC >= 0 {
		return 6.1078 * math.Pow(10, (7.5*tempC)/(237.3+tempC))
	}
	return 6.1078 * math.Pow(10, (7.6*tempC)/(240.7+tempC))
}

// RelativeHumidity returns the relative humidity in percent, rounded to one decimal.
func RelativeHumidity(tempC, dewPointC float64) float64 {
	ratio := SaturationVaporPressure(dewPointC) / SaturationVaporPressure(tempC)
	return math.Floor(1000*ratio+0.5) / 10
}

// round rounds half up to the given number of decimals.
func round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Floor(v*p+0.5) / p
}
