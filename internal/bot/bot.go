package bot

import (
	"context"
	"log"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/mkotov/vidrelay/internal/config"
	"github.com/mkotov/vidrelay/internal/delivery"
	"github.com/mkotov/vidrelay/internal/services"
)

// client is the slice of the bot API the handlers use.
type client interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type Config struct {
	Token string
}

type Bot struct {
	api        *tgbotapi.BotAPI
	client     client
	pending    *PendingStore
	resolver   *services.Resolver
	downloader *services.Downloader
	router     *delivery.Router
	pool       *services.Pool
}

// Deps are the long-lived collaborators shared across handlers.
type Deps struct {
	Resolver   *services.Resolver
	Downloader *services.Downloader
	Relay      delivery.RelayUploader
	Pool       *services.Pool
}

func New(cfg Config, deps Deps) (*Bot, error) {
	api, err := tgbotapi.NewBotAPIWithClient(cfg.Token, tgbotapi.APIEndpoint, &http.Client{
		Timeout: config.BotClientTimeout,
	})
	if err != nil {
		return nil, err
	}

	return &Bot{
		api:        api,
		client:     api,
		pending:    NewPendingStore(config.PendingTTL),
		resolver:   deps.Resolver,
		downloader: deps.Downloader,
		router:     delivery.NewRouter(api, deps.Relay),
		pool:       deps.Pool,
	}, nil
}

// ActiveDownloads reports how many jobs the pool is running.
func (b *Bot) ActiveDownloads() int64 {
	return b.pool.Active()
}

// Run drives the long-poll update loop until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	log.Printf("[Bot] Logged in as @%s", b.api.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	}
}
