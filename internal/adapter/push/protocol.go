// Package push implements the line-oriented TCP feed that lets local tools
// submit spots directly.
//
// Each line is one command with tab separated fields:
//
//	DX <TAB> SPOTTER <TAB> FREQ_KHZ <TAB> LABEL <TAB> COMMENT <TAB> HHMM YYYY-MM-DD <TAB> LOCATION
//
// The server answers "0 OK" for a well-formed command and "1 ERROR" for
// anything else. Blank lines get no answer.
package push

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/couchcryptid/spotlane/internal/domain"
)

// ErrMalformed is returned for a command that does not follow the protocol.
var ErrMalformed = errors.New("malformed command")

const (
	replyOK    = "0 OK\n"
	replyError = "1 ERROR\n"

	verbDX      = "DX"
	fieldsPerDX = 7
)

// ParseCommand parses one protocol line (without its terminator) into a
// spot. The time field is wall time in loc.
func ParseCommand(line string, loc *time.Location) (domain.Spot, error) {
	fields := strings.Split(line, "\t")
	if fields[0] != verbDX {
		return domain.Spot{}, fmt.Errorf("%w: unknown verb %q", ErrMalformed, fields[0])
	}
	if len(fields) != fieldsPerDX {
		return domain.Spot{}, fmt.Errorf("%w: want %d fields, got %d", ErrMalformed, fieldsPerDX, len(fields))
	}

	freq, err := domain.ParseFrequency(fields[2], domain.KHz)
	if err != nil {
		return domain.Spot{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	label := strings.TrimSpace(fields[3])
	if label == "" {
		return domain.Spot{}, fmt.Errorf("%w: empty label", ErrMalformed)
	}
	spotTime, err := domain.ParseHHMMDate(fields[5], loc)
	if err != nil {
		return domain.Spot{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	return domain.Spot{
		Label:     label,
		Frequency: freq,
		SpotTime:  spotTime,
		Spotter:   strings.TrimSpace(fields[1]),
		Comment:   fields[4],
		Location:  strings.TrimSpace(fields[6]),
	}, nil
}
