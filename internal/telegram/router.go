// Package telegram binds the bot to the Telegram Bot API: it turns updates
// into registration and forecast calls and renders the replies.
package telegram

import (
	"context"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/serpens2/weather-bot/internal/forecast"
	"github.com/serpens2/weather-bot/internal/registration"
)

// Sender is the part of *tgbotapi.BotAPI the router needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Flow is the registration conversation.
type Flow interface {
	Start(ctx context.Context, chatID string) []registration.Reply
	Update(ctx context.Context, chatID string) []registration.Reply
	ChangeTime(ctx context.Context, chatID string) []registration.Reply
	Delete(ctx context.Context, chatID string) []registration.Reply
	ChooseMethod(ctx context.Context, chatID string, m registration.Method) []registration.Reply
	Location(ctx context.Context, chatID string, lat, lon float64) []registration.Reply
	Text(ctx context.Context, chatID, text string) []registration.Reply
	Notify(ctx context.Context, chatID string, yes bool) []registration.Reply
}

// Forecaster assembles a forecast for a registered chat.
type Forecaster interface {
	Deliver(ctx context.Context, chatID string) (forecast.Result, error)
}

// Router wires Telegram updates to handlers.
type Router struct {
	bot      Sender
	log      *zap.Logger
	flow     Flow
	forecast Forecaster
}

// NewRouter creates a new Telegram router.
func NewRouter(bot Sender, log *zap.Logger, flow Flow, fc Forecaster) *Router {
	return &Router{bot: bot, log: log, flow: flow, forecast: fc}
}

// HandleUpdate routes a single update to the appropriate handler.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message != nil {
		msg := upd.Message
		chatID := formatChatID(msg.Chat.ID)

		if msg.Location != nil {
			r.send(chatID, r.flow.Location(ctx, chatID, msg.Location.Latitude, msg.Location.Longitude))
			return
		}

		text := strings.TrimSpace(msg.Text)
		switch msg.Command() {
		case "start":
			r.send(chatID, r.flow.Start(ctx, chatID))
		case "forecast":
			r.handleForecast(ctx, chatID)
		case "deleteme":
			r.send(chatID, r.flow.Delete(ctx, chatID))
		case "updateme":
			r.send(chatID, r.flow.Update(ctx, chatID))
		case "changetime":
			r.send(chatID, r.flow.ChangeTime(ctx, chatID))
		case "help":
			r.sendText(chatID, registration.CommandsText)
		default:
			if text == "" {
				return
			}
			r.send(chatID, r.flow.Text(ctx, chatID, text))
		}
		return
	}

	if upd.CallbackQuery != nil {
		cb := upd.CallbackQuery
		r.answerCallback(cb.ID)
		if cb.Message == nil || cb.Message.Chat == nil {
			return
		}
		chatID := formatChatID(cb.Message.Chat.ID)

		switch cb.Data {
		case cbSendLocation:
			r.send(chatID, r.flow.ChooseMethod(ctx, chatID, registration.MethodGPS))
		case cbTypeCity:
			r.send(chatID, r.flow.ChooseMethod(ctx, chatID, registration.MethodCity))
		case cbManual:
			r.send(chatID, r.flow.ChooseMethod(ctx, chatID, registration.MethodManual))
		case cbYesNotify:
			r.send(chatID, r.flow.Notify(ctx, chatID, true))
		case cbNoNotify:
			r.send(chatID, r.flow.Notify(ctx, chatID, false))
		default:
			// Unknown callback, ignore.
		}
	}
}

func formatChatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func parseChatID(chatID string) (int64, error) {
	return strconv.ParseInt(chatID, 10, 64)
}
