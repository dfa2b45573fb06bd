package forecast

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/serpens2/weather-bot/internal/domain"
	"github.com/serpens2/weather-bot/internal/weather"
)

// Users looks up registered users.
type Users interface {
	GetUser(ctx context.Context, chatID string) (*domain.User, error)
}

// Provider fetches a forecast for coordinates.
type Provider interface {
	Fetch(ctx context.Context, lat, lon float64) (weather.Forecast, error)
}

// Charts returns the cached chart for a chat, rendering it when missing.
type Charts interface {
	Ensure(chatID string, h weather.Hourly) (string, error)
}

// Result is one forecast ready to send.
type Result struct {
	ChatID    string
	Text      string
	ChartPath string // empty when the chart could not be rendered
}

// Assembler builds forecast messages; both /forecast and scheduled delivery use it.
type Assembler struct {
	users    Users
	provider Provider
	charts   Charts
	log      *zap.Logger
}

// New creates an Assembler.
func New(users Users, provider Provider, charts Charts, log *zap.Logger) *Assembler {
	return &Assembler{users: users, provider: provider, charts: charts, log: log}
}

// Deliver assembles the forecast for chatID.
// Errors: domain.ErrUserNotFound, domain.ErrPersistence, domain.ErrProvider.
func (a *Assembler) Deliver(ctx context.Context, chatID string) (Result, error) {
	u, err := a.users.GetUser(ctx, chatID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) || errors.Is(err, domain.ErrPersistence) {
			return Result{}, err
		}
		return Result{}, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}

	f, err := a.provider.Fetch(ctx, u.Lat, u.Lon)
	if err != nil {
		if errors.Is(err, domain.ErrProvider) {
			return Result{}, err
		}
		return Result{}, fmt.Errorf("%w: %v", domain.ErrProvider, err)
	}

	res := Result{ChatID: chatID, Text: Format(f, u.Offset)}
	path, err := a.charts.Ensure(chatID, f.Hourly)
	if err != nil {
		a.log.Error("chart render failed", zap.String("chatID", chatID), zap.Error(err))
		return res, nil
	}
	res.ChartPath = path
	return res, nil
}

// Format renders the forecast caption. Sunrise and sunset arrive in UTC and
// are shifted into the user's offset.
func Format(f weather.Forecast, offset int) string {
	c := f.Current
	var b strings.Builder
	fmt.Fprintf(&b, "temperature🌡️: %.1f °C\n", c.Temp)
	fmt.Fprintf(&b, "apparent temperature🌡️🤔: %.1f °C\n", c.ApparentTemp)
	fmt.Fprintf(&b, "humidity💧: %.0f %%\n", c.Humidity)
	fmt.Fprintf(&b, "wind speed🌪️: %.1f km/h\n", c.WindSpeed)
	fmt.Fprintf(&b, "clouds⛅: %.0f %%\n", c.Clouds)
	fmt.Fprintf(&b, "precipitation🌧️🌨️ probability: %.0f %%\n", f.Hourly.MaxPrecipitationProb())
	if c.IsDay {
		b.WriteString("day🌞\n")
	} else {
		b.WriteString("night🌚\n")
	}
	fmt.Fprintf(&b, "sunrise🕑: %s\n", shiftClock(f.Sunrise.Hour(), f.Sunrise.Minute(), offset))
	fmt.Fprintf(&b, "sunset🕙: %s", shiftClock(f.Sunset.Hour(), f.Sunset.Minute(), offset))
	return b.String()
}

func shiftClock(hour, minute, offset int) string {
	return fmt.Sprintf("%02d:%02d", domain.ShiftHour(hour, offset), minute)
}
