package domain

import "fmt"

// User is a registered chat: where it is and when it wants its daily forecast.
type User struct {
	ChatID string
	Lat    float64
	Lon    float64
	Offset int         // hours east of UTC, -12..14
	Notify *NotifyTime // nil: no daily notification
}

// Location returns the coordinates part of the record.
func (u User) Location() Location {
	return Location{Lat: u.Lat, Lon: u.Lon, Offset: u.Offset}
}

// Location is a resolved position together with its standard UTC offset.
type Location struct {
	Lat    float64 `validate:"latitude"`
	Lon    float64 `validate:"longitude"`
	Offset int     `validate:"min=-12,max=14"`
}

// NotifyTime is a wall-clock time local to the user.
type NotifyTime struct {
	Hour   int
	Minute int
}

// String returns HH:MM, the form stored in the database.
func (n NotifyTime) String() string {
	return fmt.Sprintf("%02d:%02d", n.Hour, n.Minute)
}
