package httpapi

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/mosmix-forecast/internal/device"
	"github.com/i474232898/mosmix-forecast/internal/store"
	"github.com/i474232898/mosmix-forecast/internal/weather"
)

var validate = validator.New()

// Querier evaluates a station forecast on demand.
type Querier interface {
	Query(ctx context.Context, station weather.Station) (weather.Snapshot, error)
}

// DeviceLookup returns the device projection of a station.
type DeviceLookup interface {
	Get(stationID string) (*device.Device, bool)
}

// Dependencies are the collaborators of the HTTP handlers.
type Dependencies struct {
	Snapshots weather.SnapshotStore
	Forecasts Querier
	Catalog   *weather.Catalog
	Devices   DeviceLookup

	// Stations limits on-demand evaluation to the configured station ids.
	Stations []string
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Dependencies) {
	v1 := app.Group("/api/v1")

	v1.Get("/forecast/current", func(c *fiber.Ctx) error {
		q, err := parseStationQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		snapshot, err := deps.Snapshots.GetLatest(q.Station)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no forecast for requested station")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read forecast")
		}

		return c.JSON(snapshot)
	})

	v1.Get("/forecast/history", func(c *fiber.Ctx) error {
		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		snapshots, err := deps.Snapshots.GetRange(req.Station.Station, req.From, req.To)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no forecast history for requested station")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read forecast history")
		}

		return c.JSON(fiber.Map{
			"station":   req.Station.Station,
			"from":      req.From,
			"to":        req.To,
			"snapshots": snapshots,
		})
	})

	v1.Get("/forecast/query", func(c *fiber.Ctx) error {
		var req evaluateQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if !slices.Contains(deps.Stations, req.Station.Station) {
			return fiber.NewError(fiber.StatusNotFound, "station is not configured")
		}

		station := deps.Catalog.Station(req.Station.Station)
		if req.LookAheadHours != nil {
			station.LookAhead = time.Duration(*req.LookAheadHours * float64(time.Hour))
		}

		snapshot, err := deps.Forecasts.Query(c.UserContext(), station)
		if err != nil {
			return forecastError(err)
		}

		return c.JSON(snapshot)
	})

	v1.Get("/devices/:station", func(c *fiber.Ctx) error {
		q := stationQuery{Station: c.Params("station")}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		d, ok := deps.Devices.Get(q.Station)
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "no device for requested station")
		}

		return c.JSON(d)
	})
}

// forecastError maps evaluation failures to HTTP errors.
func forecastError(err error) error {
	switch {
	case errors.Is(err, weather.ErrNoDataForStation):
		return fiber.NewError(fiber.StatusNotFound, "no forecast data for requested station")
	case errors.Is(err, weather.ErrNoFuturePredictions):
		return fiber.NewError(fiber.StatusServiceUnavailable, "forecast feed holds no future predictions")
	case errors.Is(err, weather.ErrUnknownElement):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, weather.ErrTransport):
		return fiber.NewError(fiber.StatusBadGateway, "forecast feed unavailable")
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "failed to evaluate forecast")
	}
}

// stationQuery holds the MOSMIX station id of a request.
type stationQuery struct {
	Station string `validate:"required,alphanum,max=8"`
}

func parseStationQuery(c *fiber.Ctx) (stationQuery, error) {
	q := stationQuery{Station: c.Query("station")}

	if err := validate.Struct(q); err != nil {
		return q, err
	}

	return q, nil
}

// historyQuery holds query parameters for the history endpoint.
type historyQuery struct {
	Station stationQuery
	From    time.Time `validate:"required"`
	To      time.Time `validate:"required,gtefield=From"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	q, err := parseStationQuery(c)
	if err != nil {
		return err
	}
	h.Station = q

	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	h.From = from
	h.To = to
	return nil
}

// evaluateQuery holds query parameters for the on-demand evaluation.
type evaluateQuery struct {
	Station        stationQuery
	LookAheadHours *float64 `validate:"omitempty,gte=0,lte=240"`
}

func (e *evaluateQuery) bind(c *fiber.Ctx) error {
	q, err := parseStationQuery(c)
	if err != nil {
		return err
	}
	e.Station = q

	if s := c.Query("lookAhead"); s != "" {
		hours, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return errors.New("invalid lookAhead; use hours, e.g. 1.5")
		}
		e.LookAheadHours = &hours
	}
	return nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
