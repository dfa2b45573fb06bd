package telegram

import (
	"context"
	"errors"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/serpens2/weather-bot/internal/domain"
	"github.com/serpens2/weather-bot/internal/forecast"
	"github.com/serpens2/weather-bot/internal/registration"
)

// DeliveryTimeout bounds one scheduled forecast.
const DeliveryTimeout = 2 * time.Minute

func (r *Router) handleForecast(ctx context.Context, chatID string) {
	res, err := r.forecast.Deliver(ctx, chatID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			r.sendText(chatID, registration.NotRegisteredText)
			return
		}
		r.log.Error("forecast failed", zap.String("chatID", chatID), zap.Error(err))
		r.sendText(chatID, registration.GenericFailureText)
		return
	}
	r.sendForecast(res)
}

// Notify delivers the daily forecast for chatID. It is the callback every
// scheduled job runs; a failure is reported to the chat once, not retried.
func (r *Router) Notify(chatID string) {
	runID := uuid.NewString()
	log := r.log.With(zap.String("chatID", chatID), zap.String("runID", runID))

	ctx, cancel := context.WithTimeout(context.Background(), DeliveryTimeout)
	defer cancel()

	started := time.Now()
	res, err := r.forecast.Deliver(ctx, chatID)
	if err != nil {
		log.Error("daily forecast failed", zap.Error(err))
		r.sendText(chatID, dailyFailureText)
		return
	}
	if err := r.sendForecast(res); err != nil {
		log.Error("daily forecast not sent", zap.Error(err))
		return
	}
	log.Info("daily forecast sent", zap.Duration("took", time.Since(started)))
}

// sendForecast sends the chart with the text as caption, or the text alone
// when no chart is available.
func (r *Router) sendForecast(res forecast.Result) error {
	id, err := parseChatID(res.ChatID)
	if err != nil {
		r.log.Error("bad chat id", zap.String("chatID", res.ChatID), zap.Error(err))
		return err
	}
	if res.ChartPath == "" {
		_, err = r.bot.Send(tgbotapi.NewMessage(id, res.Text))
	} else {
		photo := tgbotapi.NewPhoto(id, tgbotapi.FilePath(res.ChartPath))
		photo.Caption = res.Text
		_, err = r.bot.Send(photo)
	}
	if err != nil {
		r.log.Error("send forecast failed", zap.String("chatID", res.ChatID), zap.Error(err))
	}
	return err
}

// --- Generic helpers ---

func (r *Router) send(chatID string, replies []registration.Reply) {
	id, err := parseChatID(chatID)
	if err != nil {
		r.log.Error("bad chat id", zap.String("chatID", chatID), zap.Error(err))
		return
	}
	for _, rep := range replies {
		msg := tgbotapi.NewMessage(id, rep.Text)
		if rep.HTML {
			msg.ParseMode = tgbotapi.ModeHTML
			msg.DisableWebPagePreview = true
		}
		if m := markup(rep.Keyboard); m != nil {
			msg.ReplyMarkup = m
		}
		if _, err := r.bot.Send(msg); err != nil {
			r.log.Error("send failed", zap.String("chatID", chatID), zap.Error(err))
			return
		}
	}
}

func (r *Router) sendText(chatID, text string) {
	r.send(chatID, []registration.Reply{{Text: text}})
}

func (r *Router) answerCallback(id string) {
	if _, err := r.bot.Request(tgbotapi.NewCallback(id, "")); err != nil {
		r.log.Debug("answer callback failed", zap.Error(err))
	}
}
