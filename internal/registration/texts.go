package registration

// Keyboard names the markup the transport should attach to a reply.
type Keyboard int

const (
	KeyboardNone Keyboard = iota
	KeyboardLocationOptions
	KeyboardShareLocation
	KeyboardNotifyChoice
	KeyboardRemove
)

// Reply is one outbound message.
type Reply struct {
	Text     string
	Keyboard Keyboard
	HTML     bool
}

// UI texts.
const (
	StartText = "To make forecasts, I need to know your location.\n" +
		"You can either send it directly (doesn't work on PC), or by typing a name of the city you're currently in.\n\n" +
		"Alternatively, you can send your coordinates manually via a helper site."
	AlreadyRegisteredText = "You're already registered.\nType /deleteme to start anew."
	NotRegisteredText     = "I don't see you in my database🔍\nType /start to register"
	GenericFailureText    = "Something went wrong☹️"
	DeletedText           = "Deleted🗑"
	UnknownText           = "🤔"
	CompletedText         = "Registration completed🫡\n" +
		"You can use the following commands:\n" + CommandsText
	CommandsText = "/forecast - make a forecast\n" +
		"/updateme - update your info\n" +
		"/changetime - change the time of daily forecast\n" +
		"/deleteme - delete yourself from database\n" +
		"/start - start registration process"

	shareLocationText = "Turn on GPS and press the button"
	pressButtonText   = "Press the button below to share your location"
	typeCityText      = "Type in the city's name"
	manualText        = "Send your latitude and longitude in one line, separated by comma (e.g. 51.320, -13.21).\n" +
		"You can use <a href='https://www.latlong.net/'>this</a> helper site to find yourself on the map:"
	chooseOptionText   = "Choose how to send your location"
	couldntReceiveText = "Couldn't receive coordinates :c"
	unknownCityText    = "I don't know this city :c"
	invalidCoordsText  = "Invalid coordinates :c"
	tryAgainText       = "Let's try again"
	gotItText          = "Got it!"
	askNotifyText      = "Would you like to receive daily forecasts?"
	askTimeText        = "At what time?⏰ (HH:MM, your local time)"
	invalidTimeText    = "Invalid time☹️\nTry again. For example, 14:00"
	notifyChangedText  = "Done! Daily forecast settings updated🫡"
)
