package weather

import (
	"errors"
	"fmt"
)

var (
	// ErrNoDataForStation is returned when the feed has no data for a station
	// or a query runs before any series exists.
	ErrNoDataForStation = errors.New("no data for station")

	// ErrNoFuturePredictions is returned when every sample of the series lies in the past.
	ErrNoFuturePredictions = errors.New("no future predictions")

	// ErrUnknownElement is matched by *UnknownElementError.
	ErrUnknownElement = errors.New("unknown element")

	// ErrTransport is matched by *TransportError.
	ErrTransport = errors.New("transport failure")
)

// UnknownElementError names an element that was requested but never parsed.
type UnknownElementError struct {
	Code string
}

func (e *UnknownElementError) Error() string {
	return fmt.Sprintf("unknown element %q", e.Code)
}

func (e *UnknownElementError) Is(target error) bool {
	return target == ErrUnknownElement
}

// TransportError is a failed request to the upstream feed: a network error
// or an unexpected HTTP status.
type TransportError struct {
	StatusCode int
	Status     string
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transport failure: %v", e.Err)
	}
	return fmt.Sprintf("transport failure: %s", e.Status)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}
