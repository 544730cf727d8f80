package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/i474232898/mosmix-forecast/internal/store"
	"github.com/i474232898/mosmix-forecast/internal/weather"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// feedServer serves a KMZ for 10865, a 500 for BROKEN and a 404 for anything else.
func feedServer(t *testing.T, archive []byte) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch {
		case strings.HasPrefix(r.URL.Path, "/10865/"):
			w.Header().Set("Content-Type", "application/vnd.google-earth.kmz")
			w.Write(archive)
		case strings.HasPrefix(r.URL.Path, "/BROKEN/"):
			http.Error(w, "boom", http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func testTemplate(srv *httptest.Server) string {
	return srv.URL + "/{station}/kml/MOSMIX_L_LATEST_{station}.kmz"
}

func sampleArchive(t *testing.T) []byte {
	doc := mosmixKML(kmlHeader, "MUENCHEN STADT", threeSteps, map[string]string{
		"TTT": "280.00 282.00 284.00",
	})
	return buildKMZ(t, archiveMember{name: "MOSMIX_L_2024030106_10865.kml", body: doc})
}

func TestMosmixFeed_StationURL(t *testing.T) {
	feed := NewMosmixFeed(http.DefaultClient, "", 0, discardLogger())

	want := "https://opendata.dwd.de/weather/local_forecasts/mos/MOSMIX_L/single_stations/H522/kml/MOSMIX_L_LATEST_H522.kmz"
	if got := feed.StationURL("H522"); got != want {
		t.Errorf("StationURL = %q, want %q", got, want)
	}
}

func TestMosmixFeed_Fetch(t *testing.T) {
	srv, _ := feedServer(t, sampleArchive(t))
	feed := NewMosmixFeed(srv.Client(), testTemplate(srv), 0, discardLogger())

	rec := newRecorder()
	station := weather.Station{ID: "10865", Elements: []string{"TTT"}}
	if err := feed.Fetch(context.Background(), station, rec); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if rec.description != "MUENCHEN STADT" || len(rec.times) != 3 || len(rec.values["TTT"]) != 3 {
		t.Errorf("unexpected parse result: %+v", rec)
	}
}

func TestMosmixFeed_UnknownStation(t *testing.T) {
	srv, hits := feedServer(t, sampleArchive(t))
	feed := NewMosmixFeed(srv.Client(), testTemplate(srv), 0, discardLogger())

	// Repeated 404s must not open the breaker.
	for i := 0; i < 10; i++ {
		err := feed.Fetch(context.Background(), weather.Station{ID: "00000"}, newRecorder())
		if !errors.Is(err, weather.ErrNoDataForStation) {
			t.Fatalf("Fetch %d err = %v, want ErrNoDataForStation", i, err)
		}
	}
	if err := feed.Fetch(context.Background(), weather.Station{ID: "10865"}, newRecorder()); err != nil {
		t.Fatalf("Fetch after 404s: %v", err)
	}
	if got := hits.Load(); got != 11 {
		t.Errorf("hits = %d, want 11", got)
	}
}

func TestMosmixFeed_ServerError(t *testing.T) {
	srv, _ := feedServer(t, sampleArchive(t))
	feed := NewMosmixFeed(srv.Client(), testTemplate(srv), 0, discardLogger())

	err := feed.Fetch(context.Background(), weather.Station{ID: "BROKEN"}, newRecorder())
	var transport *weather.TransportError
	if !errors.As(err, &transport) || transport.StatusCode != http.StatusInternalServerError {
		t.Fatalf("err = %v, want transport error with status 500", err)
	}
}

func TestMosmixFeed_FailingStationDoesNotBlockOthers(t *testing.T) {
	srv, hits := feedServer(t, sampleArchive(t))
	feed := NewMosmixFeed(srv.Client(), testTemplate(srv), 0, discardLogger())

	// Enough consecutive failures to open the breaker of BROKEN.
	for i := 0; i < 8; i++ {
		err := feed.Fetch(context.Background(), weather.Station{ID: "BROKEN"}, newRecorder())
		if !errors.Is(err, weather.ErrTransport) {
			t.Fatalf("Fetch BROKEN %d err = %v, want transport failure", i, err)
		}
	}
	brokenHits := hits.Load()
	if brokenHits >= 8 {
		t.Fatalf("hits = %d, want the open breaker to short-circuit BROKEN", brokenHits)
	}

	rec := newRecorder()
	if err := feed.Fetch(context.Background(), weather.Station{ID: "10865", Elements: []string{"TTT"}}, rec); err != nil {
		t.Fatalf("Fetch 10865 with BROKEN tripped: %v", err)
	}
	if got := hits.Load(); got != brokenHits+1 {
		t.Errorf("hits = %d, want %d", got, brokenHits+1)
	}
	if len(rec.values["TTT"]) != 3 {
		t.Errorf("TTT = %v", rec.values["TTT"])
	}
}

func TestMosmixFeed_RetriesTransportFailures(t *testing.T) {
	archive := sampleArchive(t)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 2 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.Write(archive)
	}))
	defer srv.Close()

	feed := NewMosmixFeed(srv.Client(), testTemplate(srv), 2, discardLogger())
	feed.httpCfg.Backoff.InitialInterval = time.Millisecond

	if err := feed.Fetch(context.Background(), weather.Station{ID: "10865"}, newRecorder()); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got := hits.Load(); got != 3 {
		t.Errorf("hits = %d, want 3", got)
	}
}

func TestMosmixFeed_NotAnArchive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>maintenance</html>")
	}))
	defer srv.Close()

	feed := NewMosmixFeed(srv.Client(), testTemplate(srv), 0, discardLogger())
	err := feed.Fetch(context.Background(), weather.Station{ID: "10865"}, newRecorder())
	if err == nil || errors.Is(err, weather.ErrNoDataForStation) {
		t.Fatalf("err = %v, want archive error", err)
	}
}

func TestMosmixFeed_ServiceQuery(t *testing.T) {
	base := time.Now().UTC().Truncate(time.Hour)
	var steps []string
	for i := -1; i <= 3; i++ {
		steps = append(steps, base.Add(time.Duration(i)*time.Hour).Format("2006-01-02T15:04:05.000Z"))
	}
	doc := mosmixKML(kmlHeader, "MUENCHEN STADT", steps, map[string]string{
		"TTT":  "283.15 283.15 283.15 283.15 283.15",
		"Td":   "283.15 283.15 283.15 283.15 283.15",
		"RR1c": "0.1 0.2 0.3 0.4 0.5",
	})
	srv, _ := feedServer(t, buildKMZ(t, archiveMember{name: "x.kml", body: doc}))

	feed := NewMosmixFeed(srv.Client(), testTemplate(srv), 0, discardLogger())
	svc := weather.NewService(store.NewForecastStore(), feed, discardLogger())
	station := weather.Station{ID: "10865", Elements: []string{"TTT", "Td", "RR1c"}}

	snap, err := svc.Query(context.Background(), station)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if snap.TemperatureC == nil || *snap.TemperatureC != 10 {
		t.Errorf("TemperatureC = %v, want 10", snap.TemperatureC)
	}
	if snap.HumidityPct == nil || *snap.HumidityPct != 100 {
		t.Errorf("HumidityPct = %v, want 100", snap.HumidityPct)
	}
	if snap.PrecipitationNext24h == nil {
		t.Error("PrecipitationNext24h is nil")
	}

	_, err = svc.Query(context.Background(), weather.Station{ID: "00000", Elements: []string{"TTT"}})
	if !errors.Is(err, weather.ErrNoDataForStation) {
		t.Errorf("unknown station err = %v, want ErrNoDataForStation", err)
	}
}
