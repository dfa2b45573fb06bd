package domain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ParseNotifyTime parses "HH:MM" (a single-digit hour is accepted).
func ParseNotifyTime(s string) (NotifyTime, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return NotifyTime{}, fmt.Errorf("%w: expected HH:MM, got %q", ErrInvalidTimeFormat, s)
	}
	h, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || h < 0 || h > 23 {
		return NotifyTime{}, fmt.Errorf("%w: invalid hour in %q", ErrInvalidTimeFormat, s)
	}
	m, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || m < 0 || m > 59 || len(strings.TrimSpace(parts[1])) != 2 {
		return NotifyTime{}, fmt.Errorf("%w: invalid minute in %q", ErrInvalidTimeFormat, s)
	}
	return NotifyTime{Hour: h, Minute: m}, nil
}

// ParseCoordinates parses "lat, lon" as typed by a user, e.g. "51.320, -13.21".
func ParseCoordinates(s string) (lat, lon float64, err error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: expected \"lat, lon\", got %q", ErrInvalidCoordinates, s)
	}
	lat, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: latitude: %v", ErrInvalidCoordinates, err)
	}
	lon, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: longitude: %v", ErrInvalidCoordinates, err)
	}
	if err := ValidateLocation(Location{Lat: lat, Lon: lon}); err != nil {
		return 0, 0, err
	}
	return lat, lon, nil
}

// ValidateLocation checks coordinate ranges and the offset bounds.
func ValidateLocation(l Location) error {
	if err := validate.Struct(l); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCoordinates, err)
	}
	return nil
}

// ParseOffset reads the hour part of an offset such as "+05:30" or "-03:00".
// Minutes are dropped, as the stored offset is whole hours.
func ParseOffset(s string) (int, error) {
	s = strings.TrimSpace(s)
	hours, _, _ := strings.Cut(s, ":")
	h, err := strconv.Atoi(hours)
	if err != nil {
		return 0, fmt.Errorf("parse offset %q: %w", s, err)
	}
	if h < -12 || h > 14 {
		return 0, fmt.Errorf("offset %q out of range", s)
	}
	return h, nil
}
