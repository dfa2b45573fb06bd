package geo

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/serpens2/weather-bot/internal/domain"
	"github.com/serpens2/weather-bot/internal/httpx"
)

const (
	defaultReverseURL = "https://api.geoapify.com/v1/geocode/reverse"
	defaultDirectURL  = "http://api.openweathermap.org/geo/1.0/direct"
)

// Resolver turns user input into coordinates and a whole-hour UTC offset.
// Offsets come from Geoapify reverse geocoding; city names are looked up
// with OpenWeatherMap's direct geocoding.
type Resolver struct {
	client      *httpx.Client
	geoapifyKey string
	owmKey      string
	reverseURL  string
	directURL   string
}

// Option customizes a Resolver.
type Option func(*Resolver)

// WithEndpoints overrides the provider URLs (used by tests).
func WithEndpoints(reverseURL, directURL string) Option {
	return func(r *Resolver) {
		r.reverseURL = reverseURL
		r.directURL = directURL
	}
}

// NewResolver builds a Resolver using the shared resilient client.
func NewResolver(client *httpx.Client, geoapifyKey, owmKey string, opts ...Option) *Resolver {
	r := &Resolver{
		client:      client,
		geoapifyKey: geoapifyKey,
		owmKey:      owmKey,
		reverseURL:  defaultReverseURL,
		directURL:   defaultDirectURL,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

type reversePayload struct {
	Features []struct {
		Properties struct {
			Timezone struct {
				OffsetSTD string `json:"offset_STD"`
			} `json:"timezone"`
		} `json:"properties"`
	} `json:"features"`
}

// ResolveByCoordinates returns the standard UTC offset at (lat, lon), in [-12, 14].
func (r *Resolver) ResolveByCoordinates(ctx context.Context, lat, lon float64) (int, error) {
	if err := domain.ValidateLocation(domain.Location{Lat: lat, Lon: lon}); err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrLocationResolution, err)
	}

	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("apiKey", r.geoapifyKey)

	var p reversePayload
	if err := r.client.GetJSON(ctx, r.reverseURL+"?"+q.Encode(), &p); err != nil {
		return 0, fmt.Errorf("%w: reverse geocode: %v", domain.ErrLocationResolution, err)
	}
	if len(p.Features) == 0 {
		return 0, fmt.Errorf("%w: no features for %v,%v", domain.ErrLocationResolution, lat, lon)
	}
	offset, err := domain.ParseOffset(p.Features[0].Properties.Timezone.OffsetSTD)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrLocationResolution, err)
	}
	return offset, nil
}

type directPayload []struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// ResolveByCity looks a city up by name and resolves its offset.
func (r *Resolver) ResolveByCity(ctx context.Context, name string) (domain.Location, error) {
	if name == "" {
		return domain.Location{}, fmt.Errorf("%w: empty city name", domain.ErrLocationResolution)
	}

	q := url.Values{}
	q.Set("q", name)
	q.Set("limit", "1")
	q.Set("appid", r.owmKey)

	var p directPayload
	if err := r.client.GetJSON(ctx, r.directURL+"?"+q.Encode(), &p); err != nil {
		return domain.Location{}, fmt.Errorf("%w: city lookup: %v", domain.ErrLocationResolution, err)
	}
	if len(p) == 0 {
		return domain.Location{}, fmt.Errorf("%w: unknown city %q", domain.ErrLocationResolution, name)
	}

	offset, err := r.ResolveByCoordinates(ctx, p[0].Lat, p[0].Lon)
	if err != nil {
		return domain.Location{}, err
	}
	return domain.Location{Lat: p[0].Lat, Lon: p[0].Lon, Offset: offset}, nil
}
