package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/mosmix-forecast/internal/weather"
)

// DefaultURLTemplate is the DWD open data location of the latest MOSMIX_L
// forecast per station. {station} is replaced by the station id.
const DefaultURLTemplate = "https://opendata.dwd.de/weather/local_forecasts/mos/MOSMIX_L/single_stations/{station}/kml/MOSMIX_L_LATEST_{station}.kmz"

const stationPlaceholder = "{station}"

var kmlMember = regexp.MustCompile(`(?i)\.kml$`)

// MosmixFeed implements weather.Feed for the DWD MOSMIX KMZ download.
type MosmixFeed struct {
	name        string
	urlTemplate string
	httpCfg     HTTPClientConfig
	logger      *slog.Logger

	// One breaker per station: a failing station must not block the others.
	mu       sync.Mutex
	circuits map[string]*gobreaker.CircuitBreaker
}

func NewMosmixFeed(client *http.Client, urlTemplate string, maxRetries int, logger *slog.Logger) *MosmixFeed {
	if urlTemplate == "" {
		urlTemplate = DefaultURLTemplate
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &MosmixFeed{
		name:        "mosmix",
		urlTemplate: urlTemplate,
		httpCfg: HTTPClientConfig{
			Client: client,
			Backoff: BackoffConfig{
				MaxRetries:      maxRetries,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
			},
		},
		logger:   logger,
		circuits: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// circuit returns the breaker of a station, creating it on first use.
func (p *MosmixFeed) circuit(stationID string) *gobreaker.CircuitBreaker {
	p.mu.Lock()
	defer p.mu.Unlock()

	cb, ok := p.circuits[stationID]
	if !ok {
		cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        p.name + "-" + stationID,
			MaxRequests: 5,
			Interval:    1 * time.Minute,
			Timeout:     2 * time.Minute,
			OnStateChange: func(name string, from, to gobreaker.State) {
				p.logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			},
		})
		p.circuits[stationID] = cb
	}
	return cb
}

func (p *MosmixFeed) Name() string {
	return p.name
}

// StationURL returns the download location for a station id.
func (p *MosmixFeed) StationURL(stationID string) string {
	return strings.ReplaceAll(p.urlTemplate, stationPlaceholder, url.PathEscape(stationID))
}

// Fetch downloads the station KMZ and streams its KML member into w.
func (p *MosmixFeed) Fetch(ctx context.Context, station weather.Station, w weather.SeriesWriter) error {
	target := p.StationURL(station.ID)

	buildRequest := func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit(station.ID), buildRequest)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	name, member, err := openMember(resp.Body, kmlMember)
	if errors.Is(err, errMemberNotFound) {
		return fmt.Errorf("mosmix %s: %w: %w", station.ID, err, weather.ErrNoDataForStation)
	}
	if err != nil {
		return fmt.Errorf("mosmix %s: %w", station.ID, err)
	}
	defer member.Close()

	p.logger.Debug("streaming archive member", "station", station.ID, "member", name)

	return parseKML(member, station, w)
}
