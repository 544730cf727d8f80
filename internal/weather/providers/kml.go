package providers

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/i474232898/mosmix-forecast/internal/weather"
)

const (
	tagDescription  = "description"
	tagTimeStep     = "TimeStep"
	tagForecast     = "Forecast"
	tagValue        = "value"
	attrElementName = "elementName"
)

// frame is one open element; names are matched without namespace prefix.
type frame struct {
	name  string
	attrs map[string]string
}

type tagStack []frame

func (s *tagStack) push(f frame) { *s = append(*s, f) }

func (s *tagStack) pop() {
	if len(*s) > 0 {
		*s = (*s)[:len(*s)-1]
	}
}

// peek returns the frame depth levels below the top.
func (s tagStack) peek(depth int) (frame, bool) {
	i := len(s) - 1 - depth
	if i < 0 {
		return frame{}, false
	}
	return s[i], true
}

func newFrame(el xml.StartElement) frame {
	f := frame{name: el.Name.Local}
	if len(el.Attr) > 0 {
		f.attrs = make(map[string]string, len(el.Attr))
		for _, a := range el.Attr {
			f.attrs[a.Name.Local] = a.Value
		}
	}
	return f
}

// parseKML streams a MOSMIX KML document into w. Only elements tracked by
// station are emitted; unparsable values (the feed uses "-") become NaN.
func parseKML(r io.Reader, station weather.Station, w weather.SeriesWriter) error {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel

	var (
		stack tagStack
		begun bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("parse kml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if !begun {
				w.Begin()
				begun = true
			}
			stack.push(newFrame(t))
		case xml.EndElement:
			stack.pop()
		case xml.CharData:
			text := strings.TrimSpace(string(t))
			if text == "" {
				continue
			}
			if err := handleText(stack, text, station, w); err != nil {
				return err
			}
		}
	}
}

func handleText(stack tagStack, text string, station weather.Station, w weather.SeriesWriter) error {
	top, ok := stack.peek(0)
	if !ok {
		return nil
	}

	switch top.name {
	case tagDescription:
		w.SetDescription(text)
	case tagTimeStep:
		ts, err := time.Parse(time.RFC3339, text)
		if err != nil {
			return fmt.Errorf("parse kml: time step %q: %w", text, err)
		}
		w.AppendTimeStep(ts)
	case tagValue:
		parent, ok := stack.peek(1)
		if !ok || parent.name != tagForecast {
			return nil
		}
		code, ok := parent.attrs[attrElementName]
		if !ok || !station.Tracks(code) {
			return nil
		}
		w.AppendValues(code, parseValues(text))
	}
	return nil
}

func parseValues(text string) []float64 {
	fields := strings.Fields(text)
	values := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			v = math.NaN()
		}
		values[i] = v
	}
	return values
}
