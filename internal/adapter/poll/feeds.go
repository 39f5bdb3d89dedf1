package poll

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/couchcryptid/spotlane/internal/domain"
)

// Feed is a known public spot aggregator.
type Feed struct {
	Name  string
	Label string
	URL   string
	Color string
	Parse ParseFunc
}

// Feeds returns the built-in upstreams in display order.
func Feeds() []Feed {
	return []Feed{
		{Name: "hamqth", Label: "HamQTH ClusterDX", URL: "https://www.hamqth.com/dxc_csv.php?limit=200", Color: "#9FBBCC", Parse: ParseHamQTH},
		{Name: "pota", Label: "POTA.app spots", URL: "https://api.pota.app/spot", Color: "#CFFDBC", Parse: ParsePOTA},
		{Name: "sota", Label: "SOTAwatch spots", URL: "https://api2.sota.org.uk/api/spots/-2/all", Color: "#F95738", Parse: ParseSOTA},
		{Name: "wwff", Label: "WWFF spots", URL: "https://www.cqgma.org/api/spots/wwff/", Color: "#297373", Parse: ParseWWFF},
	}
}

var errMissingLabel = errors.New("missing label")

// ParseHamQTH parses the HamQTH DX cluster CSV export: one spot per line,
// caret separated as spotter^kHz^label^comment^"HHMM YYYY-MM-DD"^location,
// with further trailing fields ignored.
func ParseHamQTH(body []byte, loc *time.Location) ([]domain.Spot, []error, error) {
	r := csv.NewReader(bytes.NewReader(body))
	r.Comma = '^'
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	var (
		spots   []domain.Spot
		skipped []error
	)
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			skipped = append(skipped, fmt.Errorf("hamqth: %w", err))
			continue
		}
		line, _ := r.FieldPos(0)
		if len(rec) < 6 {
			skipped = append(skipped, fmt.Errorf("hamqth line %d: want at least 6 fields, got %d", line, len(rec)))
			continue
		}

		freq, err := domain.ParseFrequency(rec[1], domain.KHz)
		if err != nil {
			skipped = append(skipped, fmt.Errorf("hamqth line %d: %w", line, err))
			continue
		}
		spotTime, err := domain.ParseHHMMDate(rec[4], loc)
		if err != nil {
			skipped = append(skipped, fmt.Errorf("hamqth line %d: %w", line, err))
			continue
		}
		label := strings.TrimSpace(rec[2])
		if label == "" {
			skipped = append(skipped, fmt.Errorf("hamqth line %d: %w", line, errMissingLabel))
			continue
		}

		spots = append(spots, domain.Spot{
			Label:     label,
			Frequency: freq,
			SpotTime:  spotTime,
			Spotter:   strings.TrimSpace(rec[0]),
			Comment:   strings.TrimSpace(rec[3]),
			Location:  strings.TrimSpace(rec[5]),
		})
	}
	return spots, skipped, nil
}

type potaSpot struct {
	Activator    string `json:"activator"`
	Spotter      string `json:"spotter"`
	Frequency    string `json:"frequency"` // kHz
	SpotTime     string `json:"spotTime"`
	Name         string `json:"name"`
	Comments     string `json:"comments"`
	LocationDesc string `json:"locationDesc"`
}

// ParsePOTA parses the api.pota.app spot list.
func ParsePOTA(body []byte, loc *time.Location) ([]domain.Spot, []error, error) {
	return parseJSONArray(body, "pota", func(r potaSpot) (domain.Spot, error) {
		freq, err := domain.ParseFrequency(r.Frequency, domain.KHz)
		if err != nil {
			return domain.Spot{}, err
		}
		spotTime, err := domain.ParseISOTime(r.SpotTime, loc)
		if err != nil {
			return domain.Spot{}, err
		}
		return domain.Spot{
			Label:     strings.TrimSpace(r.Activator),
			Frequency: freq,
			SpotTime:  spotTime,
			Spotter:   r.Spotter,
			Comment:   joinNonEmpty(r.Name, r.Comments),
			Location:  r.LocationDesc,
		}, nil
	})
}

type sotaSpot struct {
	ActivatorCallsign string  `json:"activatorCallsign"`
	Callsign          string  `json:"callsign"`
	Frequency         string  `json:"frequency"` // MHz
	TimeStamp         string  `json:"timeStamp"`
	Comments          *string `json:"comments"`
	SummitDetails     string  `json:"summitDetails"`
}

// ParseSOTA parses the SOTAwatch spot list.
func ParseSOTA(body []byte, loc *time.Location) ([]domain.Spot, []error, error) {
	return parseJSONArray(body, "sota", func(r sotaSpot) (domain.Spot, error) {
		freq, err := domain.ParseFrequency(r.Frequency, domain.MHz)
		if err != nil {
			return domain.Spot{}, err
		}
		spotTime, err := domain.ParseISOTime(r.TimeStamp, loc)
		if err != nil {
			return domain.Spot{}, err
		}
		var comment string
		if r.Comments != nil {
			comment = strings.TrimSpace(*r.Comments)
		}
		return domain.Spot{
			Label:     strings.TrimSpace(r.ActivatorCallsign),
			Frequency: freq,
			SpotTime:  spotTime,
			Spotter:   r.Callsign,
			Comment:   comment,
			Location:  r.SummitDetails,
		}, nil
	})
}

type wwffSpot struct {
	Activator looseString `json:"ACTIVATOR"`
	Spotter   looseString `json:"SPOTTER"`
	QRG       looseString `json:"QRG"` // kHz
	Date      looseString `json:"DATE"`
	Time      looseString `json:"TIME"`
	Text      looseString `json:"TEXT"`
	Name      looseString `json:"NAME"`
}

// ParseWWFF parses the cqgma.org WWFF feed, an object whose "RCD" member
// holds the spot records with packed DATE (YYYYMMDD) and TIME (HHMM).
func ParseWWFF(body []byte, loc *time.Location) ([]domain.Spot, []error, error) {
	var envelope struct {
		RCD json.RawMessage `json:"RCD"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, nil, fmt.Errorf("decode wwff envelope: %w", err)
	}
	if len(envelope.RCD) == 0 || string(envelope.RCD) == "null" {
		return nil, nil, nil
	}
	return parseJSONArray(envelope.RCD, "wwff", func(r wwffSpot) (domain.Spot, error) {
		freq, err := domain.ParseFrequency(string(r.QRG), domain.KHz)
		if err != nil {
			return domain.Spot{}, err
		}
		spotTime, err := domain.ParsePackedDateTime(string(r.Date), string(r.Time), loc)
		if err != nil {
			return domain.Spot{}, err
		}
		return domain.Spot{
			Label:     strings.TrimSpace(string(r.Activator)),
			Frequency: freq,
			SpotTime:  spotTime,
			Spotter:   string(r.Spotter),
			Comment:   string(r.Text),
			Location:  string(r.Name),
		}, nil
	})
}

// parseJSONArray decodes body as an array and converts each element with
// convert. Elements that fail to decode or convert are skipped.
func parseJSONArray[T any](body []byte, feed string, convert func(T) (domain.Spot, error)) ([]domain.Spot, []error, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, nil, fmt.Errorf("decode %s spots: %w", feed, err)
	}

	spots := make([]domain.Spot, 0, len(raw))
	var skipped []error
	for i, msg := range raw {
		var rec T
		if err := json.Unmarshal(msg, &rec); err != nil {
			skipped = append(skipped, fmt.Errorf("%s record %d: %w", feed, i, err))
			continue
		}
		spot, err := convert(rec)
		if err == nil && spot.Label == "" {
			err = errMissingLabel
		}
		if err != nil {
			skipped = append(skipped, fmt.Errorf("%s record %d: %w", feed, i, err))
			continue
		}
		spots = append(spots, spot)
	}
	return spots, skipped, nil
}

func joinNonEmpty(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}

// looseString accepts a JSON string or number.
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = looseString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*s = looseString(n.String())
	return nil
}
