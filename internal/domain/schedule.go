package domain

import "time"

func mod24(h int) int {
	return ((h % 24) + 24) % 24
}

// FireTime converts a user's local notify time into the host's wall clock.
// userOffset and systemOffset are hours east of UTC.
func FireTime(n NotifyTime, userOffset, systemOffset int) (hour, minute int) {
	return mod24(n.Hour - userOffset + systemOffset), n.Minute
}

// ShiftHour moves a UTC hour of day into a zone offset hours away.
func ShiftHour(hour, offset int) int {
	return mod24(hour + offset)
}

// SystemOffset returns the whole-hour UTC offset of t's zone.
func SystemOffset(t time.Time) int {
	_, sec := t.Zone()
	return sec / 3600
}

// LocalSystemOffset is SystemOffset for the host's current local time.
func LocalSystemOffset() int {
	return SystemOffset(time.Now())
}
