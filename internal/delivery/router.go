package delivery

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/mkotov/vidrelay/internal/config"
)

// ErrRelayFailed marks failures whose user-facing message the router has
// already delivered; callers must not report them again.
var ErrRelayFailed = errors.New("relay delivery failed")

// Sender is the slice of the bot API the router needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// RelayUploader stages a file into the intermediary group and returns the
// staged message id.
type RelayUploader interface {
	Upload(ctx context.Context, path string) (int, error)
	GroupID() int64
}

// Router picks the delivery path for a downloaded file: direct bot upload
// when the file fits under the transport's cap, relay staging otherwise.
type Router struct {
	Bot       Sender
	Relay     RelayUploader
	Threshold int64
}

func NewRouter(bot Sender, relay RelayUploader) *Router {
	return &Router{
		Bot:       bot,
		Relay:     relay,
		Threshold: config.MaxDirectUpload,
	}
}

// Deliver sends path to chatID and removes the file once delivery has
// run its course, whichever path was taken.
func (r *Router) Deliver(ctx context.Context, chatID int64, path string) error {
	defer os.Remove(path)

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat downloaded file: %w", err)
	}

	if info.Size() <= r.Threshold {
		if _, err := r.Bot.Send(tgbotapi.NewVideo(chatID, tgbotapi.FilePath(path))); err != nil {
			return fmt.Errorf("direct send: %w", err)
		}
		return nil
	}

	sizeMB := float64(info.Size()) / (1024 * 1024)
	if _, err := r.Bot.Send(tgbotapi.NewMessage(chatID, fmt.Sprintf("Video is %.2fMB. Uploading via relay...", sizeMB))); err != nil {
		log.Printf("[Router] Failed to send size notice: %v", err)
	}
	return r.relayDeliver(ctx, chatID, path)
}

func (r *Router) relayDeliver(ctx context.Context, chatID int64, path string) error {
	if r.Relay == nil {
		r.tell(chatID, "An error occurred while uploading your video.")
		return fmt.Errorf("%w: no relay session configured", ErrRelayFailed)
	}

	msgID, err := r.Relay.Upload(ctx, path)
	if err != nil {
		log.Printf("[Router] Relay upload failed: %v", err)
		r.tell(chatID, "An error occurred while uploading your video.")
		return fmt.Errorf("%w: upload: %v", ErrRelayFailed, err)
	}
	if msgID == 0 {
		r.tell(chatID, "Failed to retrieve uploaded video.")
		return fmt.Errorf("%w: no message id", ErrRelayFailed)
	}

	if _, err := r.Bot.Send(tgbotapi.NewForward(chatID, r.Relay.GroupID(), msgID)); err != nil {
		log.Printf("[Router] Forward failed: %v", err)
		r.tell(chatID, "An error occurred while uploading your video.")
		return fmt.Errorf("%w: forward: %v", ErrRelayFailed, err)
	}
	r.tell(chatID, "Upload completed and sent to you.")
	return nil
}

func (r *Router) tell(chatID int64, text string) {
	if _, err := r.Bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		log.Printf("[Router] Failed to message user %d: %v", chatID, err)
	}
}
