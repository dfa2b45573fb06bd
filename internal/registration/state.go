// Package registration walks a chat through location capture and
// notify-time capture, then hands the result to the subscription manager.
package registration

import (
	"time"

	"github.com/serpens2/weather-bot/internal/domain"
)

// State is where a chat is in the registration conversation.
type State int

const (
	StateIdle State = iota
	StateAwaitingLocationChoice
	StateAwaitingCoordinates
	StateAwaitingNotifyChoice
	StateAwaitingNotifyTime
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingLocationChoice:
		return "awaiting_location_choice"
	case StateAwaitingCoordinates:
		return "awaiting_coordinates"
	case StateAwaitingNotifyChoice:
		return "awaiting_notify_choice"
	case StateAwaitingNotifyTime:
		return "awaiting_notify_time"
	default:
		return "unknown"
	}
}

// Method is how the user chose to give their location.
type Method int

const (
	MethodNone Method = iota
	MethodGPS
	MethodCity
	MethodManual
)

// Event drives a transition.
type Event int

const (
	EventStart Event = iota
	EventChooseMethod
	EventLocationResolved
	EventResolutionFailed
	EventNotifyYes
	EventNotifyNo
	EventTimeAccepted
	EventTimeRejected
	EventChangeTime
	EventReset
)

// Next is the transition table. It reports false when e is not valid in s.
func Next(s State, e Event) (State, bool) {
	switch e {
	case EventStart:
		return StateAwaitingLocationChoice, true
	case EventChangeTime:
		return StateAwaitingNotifyChoice, true
	case EventReset:
		return StateIdle, true
	}

	switch s {
	case StateAwaitingLocationChoice, StateAwaitingCoordinates:
		switch e {
		case EventChooseMethod:
			return StateAwaitingCoordinates, true
		case EventLocationResolved:
			return StateAwaitingNotifyChoice, true
		case EventResolutionFailed:
			return StateAwaitingLocationChoice, true
		}
	case StateAwaitingNotifyChoice:
		switch e {
		case EventNotifyYes:
			return StateAwaitingNotifyTime, true
		case EventNotifyNo:
			return StateIdle, true
		}
	case StateAwaitingNotifyTime:
		switch e {
		case EventNotifyYes, EventTimeRejected:
			return StateAwaitingNotifyTime, true
		case EventNotifyNo, EventTimeAccepted:
			return StateIdle, true
		}
	}
	return s, false
}

// Session is the in-progress registration of one chat.
type Session struct {
	ChatID       string
	State        State
	Method       Method
	Location     *domain.Location // set once coordinates are resolved
	ChangingTime bool             // only the notify time is being replaced
	touched      time.Time
}

// Touched is when the session last changed.
func (s Session) Touched() time.Time { return s.touched }

// apply moves s along e, reporting whether the transition exists.
func (s *Session) apply(e Event) bool {
	next, ok := Next(s.State, e)
	if !ok {
		return false
	}
	s.State = next
	return true
}
