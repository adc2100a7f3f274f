package publish

import (
	"context"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"sunbot/internal/metrics"
)

// Telegram publishes to a single chat. Sends are rate limited so a burst
// of trigger actions cannot trip the Bot API flood control.
type Telegram struct {
	bot     *tele.Bot
	chat    tele.ChatID
	limiter *rate.Limiter
}

// NewTelegram connects the bot (validates the token with getMe) and binds
// it to chatID. ratePerMin caps outgoing messages.
func NewTelegram(token string, chatID int64, ratePerMin int) (*Telegram, error) {
	b, err := tele.NewBot(tele.Settings{Token: token})
	if err != nil {
		return nil, err
	}
	if ratePerMin <= 0 {
		ratePerMin = 20
	}
	return &Telegram{
		bot:     b,
		chat:    tele.ChatID(chatID),
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(ratePerMin)), 2),
	}, nil
}

// Publish sends m and returns the Telegram message id.
func (t *Telegram) Publish(ctx context.Context, m Message) (int, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	var opts []interface{}
	if m.ReplyTo != 0 {
		opts = append(opts, &tele.SendOptions{
			ReplyTo: &tele.Message{ID: m.ReplyTo, Chat: &tele.Chat{ID: int64(t.chat)}},
		})
	}

	var what interface{}
	switch {
	case m.VideoPath != "":
		what = &tele.Video{File: tele.FromDisk(m.VideoPath), Caption: m.Text}
	case m.ImagePath != "":
		what = &tele.Photo{File: tele.FromDisk(m.ImagePath), Caption: m.Text}
	default:
		what = m.Text
	}

	msg, err := t.bot.Send(t.chat, what, opts...)
	metrics.PostDone(err == nil)
	if err != nil {
		return 0, err
	}
	return msg.ID, nil
}
