package weather

import (
	"context"
	"time"
)

// SeriesWriter receives the parse events of one fetch.
// Begin is called once, when the first element of the document arrives.
type SeriesWriter interface {
	Begin()
	SetDescription(text string)
	AppendTimeStep(t time.Time)
	AppendValues(code string, values []float64)
}

// Feed abstracts the upstream forecast source (the MOSMIX KMZ download).
type Feed interface {
	Name() string
	Fetch(ctx context.Context, station Station, w SeriesWriter) error
}

// SeriesStore holds the latest series and the refresh schedule of every station.
type SeriesStore interface {
	Series(stationID string) (*Series, bool)
	PutSeries(stationID string, series *Series)
	ResetSeries(stationID string)
	NextDue(stationID string) (time.Time, bool)
	SetNextDue(stationID string, at time.Time)
}

// SnapshotStore is the contract the snapshot history (and any future persistent store) must satisfy.
type SnapshotStore interface {
	SaveSnapshot(snapshot Snapshot)
	GetLatest(stationID string) (Snapshot, error)
	GetRange(stationID string, from, to time.Time) ([]Snapshot, error)
}
