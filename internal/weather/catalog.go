package weather

import (
	"time"

	"github.com/i474232898/mosmix-forecast/internal/common"
)

// BaseElements are tracked for every station.
var BaseElements = []string{
	ElementTemperature,
	ElementDewPoint,
	ElementWindSpeed,
	ElementWindDirection,
	ElementPrecipProbability,
	ElementPrecipitation,
}

// Catalog builds station contexts from the configured element additions and look-ahead.
type Catalog struct {
	additional []string
	lookAhead  time.Duration
}

// NewCatalog creates a Catalog. additional may repeat base codes; they are deduplicated.
func NewCatalog(additional []string, lookAhead time.Duration) *Catalog {
	return &Catalog{
		additional: additional,
		lookAhead:  lookAhead,
	}
}

// Station returns the context for id with the base elements plus the additions.
func (c *Catalog) Station(id string) Station {
	elements := make([]string, 0, len(BaseElements)+len(c.additional))
	elements = common.AppendUnique(elements, BaseElements...)
	elements = common.AppendUnique(elements, c.additional...)

	return Station{
		ID:        id,
		Elements:  elements,
		LookAhead: c.lookAhead,
	}
}

// LookAhead returns the configured default forecast horizon.
func (c *Catalog) LookAhead() time.Duration {
	return c.lookAhead
}
