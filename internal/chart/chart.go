// Package chart renders the hourly forecast as a PNG and caches it per chat
// until the daily sweep.
package chart

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"golang.org/x/sync/singleflight"

	"github.com/serpens2/weather-bot/internal/weather"
)

// precipitation is only drawn when some hour reaches this probability.
const minPrecipitationToDraw = 5

// Renderer writes one artifact per chat id into dir.
type Renderer struct {
	dir   string
	group singleflight.Group
}

// New creates a Renderer storing files in dir.
func New(dir string) *Renderer {
	return &Renderer{dir: dir}
}

// Dir returns the artifact directory.
func (r *Renderer) Dir() string { return r.dir }

// Path is where the artifact for chatID lives.
func (r *Renderer) Path(chatID string) string {
	return filepath.Join(r.dir, chatID+".png")
}

// Exists reports whether an artifact is cached for chatID.
func (r *Renderer) Exists(chatID string) bool {
	st, err := os.Stat(r.Path(chatID))
	return err == nil && st.Mode().IsRegular()
}

// Ensure returns the cached artifact for chatID, rendering it first if missing.
// Concurrent calls for the same chat render once.
func (r *Renderer) Ensure(chatID string, h weather.Hourly) (string, error) {
	if err := validChatID(chatID); err != nil {
		return "", err
	}
	if r.Exists(chatID) {
		return r.Path(chatID), nil
	}
	v, err, _ := r.group.Do(chatID, func() (interface{}, error) {
		if r.Exists(chatID) {
			return r.Path(chatID), nil
		}
		return r.render(chatID, h)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Sweep removes every cached artifact.
func (r *Renderer) Sweep() error {
	if err := os.RemoveAll(r.dir); err != nil {
		return fmt.Errorf("sweep %s: %w", r.dir, err)
	}
	return os.MkdirAll(r.dir, 0o755)
}

func validChatID(chatID string) error {
	if chatID == "" || strings.ContainsAny(chatID, `/\.`) {
		return fmt.Errorf("invalid chat id %q", chatID)
	}
	return nil
}

func (r *Renderer) render(chatID string, h weather.Hourly) (string, error) {
	if len(h.Temp) < 2 {
		return "", fmt.Errorf("render %s: need at least 2 hourly points, got %d", chatID, len(h.Temp))
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", err
	}

	graph := build(h)

	// Write under a temporary name so readers never see a partial file.
	tmp, err := os.CreateTemp(r.dir, chatID+"-*.tmp")
	if err != nil {
		return "", err
	}
	if err := graph.Render(chart.PNG, tmp); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("render %s: %w", chatID, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), r.Path(chatID)); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	return r.Path(chatID), nil
}

var (
	colorTemp     = drawing.ColorFromHex("00ffff")
	colorApparent = drawing.ColorFromHex("8a2be2")
	colorWind     = drawing.ColorFromHex("00ff00")
	colorPrecip   = drawing.ColorFromHex("ff7f50")
	colorText     = drawing.ColorWhite
	colorBack     = drawing.ColorBlack
)

func build(h weather.Hourly) chart.Chart {
	n := len(h.Temp)
	hours := make([]float64, n)
	ticks := make([]chart.Tick, n)
	for i := range hours {
		hours[i] = float64(i)
		ticks[i] = chart.Tick{Value: float64(i), Label: strconv.Itoa(i)}
	}

	axisStyle := chart.Style{FontColor: colorText, StrokeColor: colorText, FontSize: 14}

	series := []chart.Series{
		chart.ContinuousSeries{
			Name:    "temperature",
			XValues: hours,
			YValues: fit(h.Temp, n),
			Style:   chart.Style{StrokeColor: colorTemp, StrokeWidth: 3, DotColor: colorTemp, DotWidth: 4},
		},
		chart.ContinuousSeries{
			Name:    "apparent temperature",
			XValues: hours,
			YValues: fit(h.ApparentTemp, n),
			Style:   chart.Style{StrokeColor: colorApparent, StrokeWidth: 3, DotColor: colorApparent, DotWidth: 4},
		},
		chart.ContinuousSeries{
			Name:    "wind",
			YAxis:   chart.YAxisSecondary,
			XValues: hours,
			YValues: fit(h.Wind, n),
			Style:   chart.Style{StrokeColor: colorWind, StrokeWidth: 3, DotColor: colorWind, DotWidth: 4},
		},
	}
	secondary := fit(h.Wind, n)
	if h.MaxPrecipitationProb() >= minPrecipitationToDraw {
		precip := fit(h.PrecipitationProb, n)
		series = append(series, chart.ContinuousSeries{
			Name:    "precipitation prob. (%)",
			YAxis:   chart.YAxisSecondary,
			XValues: hours,
			YValues: precip,
			Style:   chart.Style{StrokeColor: colorPrecip, FillColor: colorPrecip.WithAlpha(100), StrokeWidth: 1},
		})
		secondary = append(secondary, precip...)
	}

	tempLo, tempHi := bounds(append(fit(h.Temp, n), fit(h.ApparentTemp, n)...))
	_, secHi := bounds(secondary)

	graph := chart.Chart{
		Width:      1600,
		Height:     900,
		Background: chart.Style{FillColor: colorBack, Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20}},
		Canvas:     chart.Style{FillColor: colorBack},
		XAxis: chart.XAxis{
			Name:  "Hours",
			Style: axisStyle,
			Ticks: ticks,
		},
		YAxis: chart.YAxis{
			Name:  "°C",
			Style: axisStyle,
			Range: &chart.ContinuousRange{Min: math.Floor(tempLo) - 1, Max: math.Ceil(tempHi) + 1},
		},
		YAxisSecondary: chart.YAxis{
			Name:  "km/h, %",
			Style: axisStyle,
			Range: &chart.ContinuousRange{Min: 0, Max: math.Ceil(secHi) + 1},
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.LegendLeft(&graph, chart.Style{FillColor: colorBack, FontColor: colorText})}
	return graph
}

// fit pads or truncates vs to n points so every series shares the x axis.
func fit(vs []float64, n int) []float64 {
	out := make([]float64, n)
	copy(out, vs)
	return out
}

func bounds(vs []float64) (lo, hi float64) {
	if len(vs) == 0 {
		return 0, 0
	}
	lo, hi = vs[0], vs[0]
	for _, v := range vs[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}
