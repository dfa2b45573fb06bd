package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/serpens2/weather-bot/internal/registration"
)

// Callback data carried by inline buttons.
const (
	cbSendLocation = "send_loc"
	cbTypeCity     = "type_city"
	cbManual       = "send_manually"
	cbYesNotify    = "yes_notify"
	cbNoNotify     = "no_notify"
)

const dailyFailureText = "Couldn't make a daily forecast☹️"

func locationOptionsKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Send location🌐", cbSendLocation)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Type your city🏘️", cbTypeCity)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Send coords manually✏️", cbManual)),
	)
}

func shareLocationKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButtonLocation("Send")),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func notifyChoiceKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Yes✅", cbYesNotify),
			tgbotapi.NewInlineKeyboardButtonData("No❌", cbNoNotify),
		),
	)
}

// markup maps a keyboard kind to its Telegram markup; nil means none.
func markup(k registration.Keyboard) any {
	switch k {
	case registration.KeyboardLocationOptions:
		return locationOptionsKeyboard()
	case registration.KeyboardShareLocation:
		return shareLocationKeyboard()
	case registration.KeyboardNotifyChoice:
		return notifyChoiceKeyboard()
	case registration.KeyboardRemove:
		return tgbotapi.NewRemoveKeyboard(true)
	default:
		return nil
	}
}
