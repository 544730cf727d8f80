package device

import (
	"crypto/sha1"
	"encoding/hex"
	"sync"
	"time"

	"github.com/i474232898/mosmix-forecast/internal/weather"
)

// Property names exposed by every forecast device.
const (
	PropTemperature       = "temperature2mAboveSurface"
	PropHumidity          = "humidity"
	PropCloudCover        = "effectiveCloudCover"
	PropPressure          = "surfacePressureReduced"
	PropWindSpeed         = "windSpeed"
	PropWindDirection     = "windDirection"
	PropPrecipProbability = "probabilityPrecipitation"
	PropPrecipitation24h  = "totalPrecipitationNext24Hours"
	PropMaxWindGust       = "maxWindGust"
)

// Property is one read-only quantity of a device.
type Property struct {
	Name       string    `json:"name"`
	Title      string    `json:"title"`
	SemType    string    `json:"@type,omitempty"`
	Type       string    `json:"type"`
	Unit       string    `json:"unit"`
	Minimum    *float64  `json:"minimum,omitempty"`
	Maximum    *float64  `json:"maximum,omitempty"`
	MultipleOf *float64  `json:"multipleOf,omitempty"`
	ReadOnly   bool      `json:"readOnly"`
	Value      *float64  `json:"value"`
	UpdatedAt  time.Time `json:"updatedAt,omitempty"`
}

// Device projects the forecast of one station as a sensor device.
type Device struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	StationID   string      `json:"stationId"`
	Description string      `json:"description"`
	Types       []string    `json:"@type"`
	Properties  []*Property `json:"properties"`

	mu sync.RWMutex
}

func bound(v float64) *float64 { return &v }

// New creates the device for a station. The id is derived from name.
func New(name, stationID string) *Device {
	sum := sha1.Sum([]byte(name))
	return &Device{
		ID:        "dwdweather-" + hex.EncodeToString(sum[:]),
		Name:      name,
		StationID: stationID,
		Types:     []string{"TemperatureSensor", "MultiLevelSensor"},
		Properties: []*Property{
			{Name: PropTemperature, Title: "Temperature", SemType: "TemperatureProperty", Type: "number", Unit: "degree celsius", MultipleOf: bound(0.01)},
			{Name: PropHumidity, Title: "Humidity", SemType: "LevelProperty", Type: "number", Unit: "percent", Minimum: bound(0), Maximum: bound(100)},
			{Name: PropCloudCover, Title: "Effective cloud cover", SemType: "LevelProperty", Type: "number", Unit: "percent", Minimum: bound(0), Maximum: bound(100)},
			{Name: PropPressure, Title: "Surface pressure", Type: "number", Unit: "hPa", MultipleOf: bound(0.01)},
			{Name: PropWindSpeed, Title: "Wind speed", Type: "integer", Unit: "m/s"},
			{Name: PropWindDirection, Title: "Wind direction", Type: "integer", Unit: "°", Minimum: bound(0), Maximum: bound(360)},
			{Name: PropPrecipProbability, Title: "Probability of precipitation", Type: "integer", Unit: "percent", Minimum: bound(0), Maximum: bound(100)},
			{Name: PropPrecipitation24h, Title: "Precipitation next 24 hours", Type: "number", Unit: "kg/m2", MultipleOf: bound(0.01)},
			{Name: PropMaxWindGust, Title: "Maximum wind gust", Type: "number", Unit: "m/s", MultipleOf: bound(0.01)},
		},
	}
}

// Update applies a snapshot and returns the names of the properties that changed.
// Missing values never clear a property.
func (d *Device) Update(snap weather.Snapshot) []string {
	var pressureHPa *float64
	if snap.SurfacePressure != nil {
		pressureHPa = bound(*snap.SurfacePressure / 100)
	}

	values := map[string]*float64{
		PropTemperature:       snap.TemperatureC,
		PropHumidity:          snap.HumidityPct,
		PropCloudCover:        snap.EffectiveCloudCover,
		PropPressure:          pressureHPa,
		PropWindSpeed:         snap.WindSpeed,
		PropWindDirection:     snap.WindDirection,
		PropPrecipProbability: snap.PrecipitationProbability,
		PropPrecipitation24h:  snap.PrecipitationNext24h,
		PropMaxWindGust:       snap.MaxWindGust,
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if snap.Station != "" {
		d.Description = snap.Station
	}

	var changed []string
	for _, p := range d.Properties {
		v := values[p.Name]
		if v == nil {
			continue
		}
		if p.Value != nil && *p.Value == *v {
			continue
		}
		p.Value = bound(*v)
		p.UpdatedAt = snap.GeneratedAt
		changed = append(changed, p.Name)
	}
	return changed
}

// View returns a copy safe to hand out while updates continue.
func (d *Device) View() *Device {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := &Device{
		ID:          d.ID,
		Name:        d.Name,
		StationID:   d.StationID,
		Description: d.Description,
		Types:       append([]string(nil), d.Types...),
		Properties:  make([]*Property, len(d.Properties)),
	}
	for i, p := range d.Properties {
		cp := *p
		if p.Value != nil {
			cp.Value = bound(*p.Value)
		}
		out.Properties[i] = &cp
	}
	return out
}

// Property returns the named property of a view, or nil.
func (d *Device) Property(name string) *Property {
	for _, p := range d.Properties {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// Registry keeps one device per station.
type Registry struct {
	mu      sync.RWMutex
	devices map[string]*Device
}

func NewRegistry() *Registry {
	return &Registry{devices: make(map[string]*Device)}
}

// Update routes a snapshot to the device of its station, creating it on first use.
func (r *Registry) Update(snap weather.Snapshot) []string {
	r.mu.Lock()
	d, ok := r.devices[snap.StationID]
	if !ok {
		d = New(snap.StationID, snap.StationID)
		r.devices[snap.StationID] = d
	}
	r.mu.Unlock()

	return d.Update(snap)
}

// Get returns a copy of the device of stationID.
func (r *Registry) Get(stationID string) (*Device, bool) {
	r.mu.RLock()
	d, ok := r.devices[stationID]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return d.View(), true
}
