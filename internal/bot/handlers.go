package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/mkotov/vidrelay/internal/config"
	"github.com/mkotov/vidrelay/internal/delivery"
)

const (
	msgGreeting     = "Send me a video link and choose a quality."
	msgInvalidLink  = "Please send a valid video link."
	msgNoFormats    = "No video formats available. Try another link."
	msgChooseFormat = "Choose available video quality:"
	msgNoURL        = "Error: No URL found. Please send the video link again."
	msgBusy         = "Too many downloads in progress. Please try again in a moment."
	msgProcessErr   = "An error occurred while processing your video."
)

// SupportedURL reports whether text points at one of the known video
// hosts. Matching is a plain substring check against the host list.
func SupportedURL(text string) bool {
	for _, host := range config.SupportedHosts {
		if strings.Contains(text, host) {
			return true
		}
	}
	return false
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		if msg.Command() == "start" {
			b.reply(msg.Chat.ID, msgGreeting)
		}
		return
	}

	url := strings.TrimSpace(msg.Text)
	if url == "" {
		return
	}
	if !SupportedURL(url) {
		b.reply(msg.Chat.ID, msgInvalidLink)
		return
	}

	b.pending.Put(msg.From.ID, url)

	formats := b.resolver.Resolve(ctx, url)
	if len(formats) == 0 {
		b.reply(msg.Chat.ID, msgNoFormats)
		return
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, label := range formats.Labels() {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label+"p", label),
		))
	}
	prompt := tgbotapi.NewMessage(msg.Chat.ID, msgChooseFormat)
	prompt.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	if _, err := b.client.Send(prompt); err != nil {
		log.Printf("[Bot] Failed to send format keyboard: %v", err)
	}
}

func (b *Bot) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	if _, err := b.client.Request(tgbotapi.NewCallback(q.ID, "")); err != nil {
		log.Printf("[Bot] Failed to ack callback: %v", err)
	}
	if q.Message == nil {
		return
	}
	chatID := q.Message.Chat.ID
	label := q.Data

	url, ok := b.pending.Take(q.From.ID)
	if !ok {
		b.reply(chatID, msgNoURL)
		return
	}

	edit := tgbotapi.NewEditMessageText(chatID, q.Message.MessageID,
		fmt.Sprintf("Downloading video in %sp... Please wait.", label))
	if _, err := b.client.Send(edit); err != nil {
		log.Printf("[Bot] Failed to edit prompt: %v", err)
	}

	admitted := b.pool.TrySubmit(func() {
		b.processDownload(context.Background(), chatID, url, label)
	})
	if !admitted {
		// Give the URL back so the user can retry once a slot frees up.
		b.pending.Put(q.From.ID, url)
		b.reply(chatID, msgBusy)
	}
}

// processDownload runs the download-and-deliver workflow off the update
// loop.
func (b *Bot) processDownload(ctx context.Context, chatID int64, url, label string) {
	path, err := b.downloader.Download(ctx, url, label)
	if err != nil {
		log.Printf("[Bot] Download failed for %s: %v", url, err)
		b.reply(chatID, msgProcessErr)
		return
	}

	if err := b.router.Deliver(ctx, chatID, path); err != nil {
		log.Printf("[Bot] Delivery failed for %s: %v", path, err)
		// Relay failures already told the user; everything else is generic.
		if !errors.Is(err, delivery.ErrRelayFailed) {
			b.reply(chatID, msgProcessErr)
		}
	}
}

func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.client.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		log.Printf("[Bot] Failed to message chat %d: %v", chatID, err)
	}
}
