package spot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var errInvalidRate = errors.New("invalid rate")

// roundRate rounds the observed rate to 4dp
func roundRate(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

// flexFloat is a JSON number that may be encoded as a string
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)

	if bytes.Equal(data, []byte("null")) {
		*f = 0

		return nil
	}

	var raw string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	} else {
		raw = string(data)
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		*f = 0

		return nil
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("unable to parse number %q: %w", raw, err)
	}

	*f = flexFloat(v)

	return nil
}

// parseRUNumber parses a number using a comma decimal separator,
// with optional space or dot thousands separators:
// "1 234,56" -> 1234.56
func parseRUNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errInvalidRate
	}

	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '.':
			return -1
		case ',':
			return '.'
		default:
			return r
		}
	}, s)

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("unable to parse rate %q: %w", s, err)
	}

	return f, nil
}
