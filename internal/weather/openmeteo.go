package weather

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/serpens2/weather-bot/internal/domain"
	"github.com/serpens2/weather-bot/internal/httpx"
)

const openMeteoURL = "https://api.open-meteo.com/v1/forecast"

// OpenMeteo fetches one-day forecasts from api.open-meteo.com.
type OpenMeteo struct {
	client  *httpx.Client
	baseURL string
}

// NewOpenMeteo creates a provider; baseURL may be empty for the public API.
func NewOpenMeteo(client *httpx.Client, baseURL string) *OpenMeteo {
	if baseURL == "" {
		baseURL = openMeteoURL
	}
	return &OpenMeteo{client: client, baseURL: baseURL}
}

type openMeteoPayload struct {
	Current struct {
		Temperature         float64 `json:"temperature_2m"`
		ApparentTemperature float64 `json:"apparent_temperature"`
		RelativeHumidity    float64 `json:"relative_humidity_2m"`
		IsDay               int     `json:"is_day"`
		WindSpeed           float64 `json:"wind_speed_10m"`
		CloudCover          float64 `json:"cloud_cover"`
	} `json:"current"`
	Hourly struct {
		Temperature              []float64 `json:"temperature_2m"`
		ApparentTemperature      []float64 `json:"apparent_temperature"`
		PrecipitationProbability []float64 `json:"precipitation_probability"`
		WindSpeed                []float64 `json:"wind_speed_10m"`
	} `json:"hourly"`
	Daily struct {
		Sunrise []string `json:"sunrise"`
		Sunset  []string `json:"sunset"`
	} `json:"daily"`
}

// Open-Meteo's ISO 8601 local time without seconds; GMT unless a timezone is requested.
const isoMinute = "2006-01-02T15:04"

// Fetch returns today's forecast for (lat, lon). Errors wrap domain.ErrProvider.
func (p *OpenMeteo) Fetch(ctx context.Context, lat, lon float64) (Forecast, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("daily", "sunrise,sunset")
	q.Set("hourly", "temperature_2m,precipitation_probability,wind_speed_10m,apparent_temperature")
	q.Set("current", "temperature_2m,relative_humidity_2m,is_day,rain,wind_speed_10m,cloud_cover,apparent_temperature")
	q.Set("forecast_days", "1")

	var payload openMeteoPayload
	if err := p.client.GetJSON(ctx, p.baseURL+"?"+q.Encode(), &payload); err != nil {
		return Forecast{}, fmt.Errorf("%w: open-meteo: %v", domain.ErrProvider, err)
	}

	if len(payload.Daily.Sunrise) == 0 || len(payload.Daily.Sunset) == 0 {
		return Forecast{}, fmt.Errorf("%w: open-meteo: missing daily sunrise/sunset", domain.ErrProvider)
	}
	sunrise, err := time.Parse(isoMinute, payload.Daily.Sunrise[0])
	if err != nil {
		return Forecast{}, fmt.Errorf("%w: open-meteo: sunrise: %v", domain.ErrProvider, err)
	}
	sunset, err := time.Parse(isoMinute, payload.Daily.Sunset[0])
	if err != nil {
		return Forecast{}, fmt.Errorf("%w: open-meteo: sunset: %v", domain.ErrProvider, err)
	}
	if len(payload.Hourly.Temperature) == 0 {
		return Forecast{}, fmt.Errorf("%w: open-meteo: empty hourly series", domain.ErrProvider)
	}

	c := payload.Current
	h := payload.Hourly
	return Forecast{
		Current: Current{
			Temp:         c.Temperature,
			ApparentTemp: c.ApparentTemperature,
			Humidity:     c.RelativeHumidity,
			IsDay:        c.IsDay == 1,
			WindSpeed:    c.WindSpeed,
			Clouds:       c.CloudCover,
		},
		Hourly: Hourly{
			Temp:              h.Temperature,
			ApparentTemp:      h.ApparentTemperature,
			PrecipitationProb: h.PrecipitationProbability,
			Wind:              h.WindSpeed,
		},
		Sunrise: sunrise,
		Sunset:  sunset,
	}, nil
}
