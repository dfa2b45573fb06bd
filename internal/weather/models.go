package weather

import "time"

// Current holds the conditions at request time.
type Current struct {
	Temp         float64
	ApparentTemp float64
	Humidity     float64 // %
	IsDay        bool
	WindSpeed    float64 // km/h
	Clouds       float64 // %
}

// Hourly holds one value per hour of the forecast day, starting at 00:00 UTC.
type Hourly struct {
	Temp              []float64
	ApparentTemp      []float64
	PrecipitationProb []float64
	Wind              []float64
}

// MaxPrecipitationProb returns the highest hourly precipitation probability.
func (h Hourly) MaxPrecipitationProb() float64 {
	var top float64
	for _, p := range h.PrecipitationProb {
		if p > top {
			top = p
		}
	}
	return top
}

// Forecast is what the provider returns for one location.
type Forecast struct {
	Current Current
	Hourly  Hourly
	Sunrise time.Time // UTC
	Sunset  time.Time // UTC
}
