// Package publish posts the bot's messages. The core only knows the
// Publisher interface; Telegram is the shipped implementation.
package publish

import (
	"context"

	"sunbot/internal/log"
)

// Message is one outgoing post. ImagePath/VideoPath are optional local
// files; ReplyTo, if non-zero, threads the post under an earlier one.
type Message struct {
	Text      string
	ImagePath string
	VideoPath string
	ReplyTo   int
}

// Publisher posts a message and returns its identifier. Retries and auth
// are the implementation's concern; callers catch and log failures locally.
type Publisher interface {
	Publish(ctx context.Context, m Message) (int, error)
}

// Discard logs messages instead of sending them. Used when publishing is
// disabled in config, so the capture pipeline still runs end to end.
type Discard struct{}

func (Discard) Publish(_ context.Context, m Message) (int, error) {
	log.Info("publish disabled; dropping message",
		"text", m.Text, "image", m.ImagePath, "video", m.VideoPath)
	return 0, nil
}
