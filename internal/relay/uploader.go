package relay

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"sync"

	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/telegram/uploader"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/mkotov/vidrelay/internal/util"
)

// Uploader stages oversized files into a private group through a user
// session with a higher upload cap. One session is shared per process;
// the mutex serializes concurrent uploads through its connect/use
// lifecycle.
type Uploader struct {
	mu      sync.Mutex
	client  *telegram.Client
	flow    auth.Flow
	groupID int64
}

// New builds the relay session. Session state and the MTProto log live
// under sessionDir so re-runs skip the interactive login.
func New(appID int, appHash, phone, sessionDir string, groupID int64) (*Uploader, error) {
	if err := os.MkdirAll(sessionDir, 0o700); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}

	logCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(&lumberjack.Logger{
			Filename:   filepath.Join(sessionDir, "mtproto.jsonl"),
			MaxSize:    1,
			MaxBackups: 3,
			MaxAge:     7,
		}),
		zap.InfoLevel,
	)

	client := telegram.NewClient(appID, appHash, telegram.Options{
		SessionStorage: &telegram.FileSessionStorage{
			Path: filepath.Join(sessionDir, "uploader.session.json"),
		},
		Logger: zap.New(logCore),
	})

	return &Uploader{
		client:  client,
		flow:    auth.NewFlow(terminalAuth{phone: phone}, auth.SendCodeOptions{}),
		groupID: groupID,
	}, nil
}

// WarmUp authenticates the session before the bot starts taking traffic,
// prompting for a login code on the first run.
func (u *Uploader) WarmUp(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	return u.client.Run(ctx, func(ctx context.Context) error {
		if err := u.client.Auth().IfNecessary(ctx, u.flow); err != nil {
			return fmt.Errorf("relay auth: %w", err)
		}
		self, err := u.client.Self(ctx)
		if err != nil {
			return fmt.Errorf("relay self: %w", err)
		}
		log.Printf("[Relay] Session ready as %s %s (id=%d)", self.FirstName, self.LastName, self.ID)
		return nil
	})
}

// Upload sends the file to the configured private group and returns the
// resulting message id, or 0 when none could be obtained.
func (u *Uploader) Upload(ctx context.Context, path string) (int, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	var msgID int
	err := u.client.Run(ctx, func(ctx context.Context) error {
		if err := u.client.Auth().IfNecessary(ctx, u.flow); err != nil {
			return fmt.Errorf("relay auth: %w", err)
		}
		api := u.client.API()

		peer, err := u.resolveGroup(ctx, api)
		if err != nil {
			return err
		}

		file, err := uploader.NewUploader(api).FromPath(ctx, path)
		if err != nil {
			return fmt.Errorf("upload file: %w", err)
		}

		updates, err := api.MessagesSendMedia(ctx, &tg.MessagesSendMediaRequest{
			Peer:     peer,
			RandomID: rand.Int63(),
			Media: &tg.InputMediaUploadedDocument{
				File:     file,
				MimeType: "video/mp4",
				Attributes: []tg.DocumentAttributeClass{
					&tg.DocumentAttributeVideo{SupportsStreaming: true},
					&tg.DocumentAttributeFilename{FileName: util.SanitizeFilename(filepath.Base(path))},
				},
			},
		})
		if err != nil {
			return fmt.Errorf("send to group: %w", err)
		}
		msgID = SentMessageID(updates)
		return nil
	})
	return msgID, err
}

// GroupID returns the raw configured group identifier, as the bot API
// expects it for forwards.
func (u *Uploader) GroupID() int64 { return u.groupID }

// resolveGroup scans the session's dialogs for the configured group and
// builds an input peer carrying the right access hash.
func (u *Uploader) resolveGroup(ctx context.Context, api *tg.Client) (tg.InputPeerClass, error) {
	target := NormalizeGroupID(u.groupID)

	dialogs, err := api.MessagesGetDialogs(ctx, &tg.MessagesGetDialogsRequest{
		OffsetPeer: &tg.InputPeerEmpty{},
		Limit:      100,
	})
	if err != nil {
		return nil, fmt.Errorf("get dialogs: %w", err)
	}

	var chats []tg.ChatClass
	switch d := dialogs.(type) {
	case *tg.MessagesDialogs:
		chats = d.Chats
	case *tg.MessagesDialogsSlice:
		chats = d.Chats
	default:
		return nil, fmt.Errorf("unexpected dialogs response %T", dialogs)
	}

	for _, c := range chats {
		switch ch := c.(type) {
		case *tg.Channel:
			if ch.ID == target {
				return &tg.InputPeerChannel{ChannelID: ch.ID, AccessHash: ch.AccessHash}, nil
			}
		case *tg.Chat:
			if ch.ID == target {
				return &tg.InputPeerChat{ChatID: ch.ID}, nil
			}
		}
	}
	return nil, fmt.Errorf("group %d not found in dialogs", u.groupID)
}

// NormalizeGroupID strips the bot API's -100 channel prefix (or plain
// minus for basic groups) down to the bare MTProto id.
func NormalizeGroupID(id int64) int64 {
	if id >= 0 {
		return id
	}
	id = -id
	if id > 1_000_000_000_000 {
		id -= 1_000_000_000_000
	}
	return id
}

// SentMessageID digs the new message id out of a send-media response.
// Returns 0 when the updates carry none.
func SentMessageID(u tg.UpdatesClass) int {
	scan := func(list []tg.UpdateClass) int {
		for _, x := range list {
			switch upd := x.(type) {
			case *tg.UpdateNewChannelMessage:
				if msg, ok := upd.Message.(*tg.Message); ok {
					return msg.ID
				}
			case *tg.UpdateNewMessage:
				if msg, ok := upd.Message.(*tg.Message); ok {
					return msg.ID
				}
			case *tg.UpdateMessageID:
				return upd.ID
			}
		}
		return 0
	}

	switch upd := u.(type) {
	case *tg.Updates:
		return scan(upd.Updates)
	case *tg.UpdatesCombined:
		return scan(upd.Updates)
	case *tg.UpdateShortSentMessage:
		return upd.ID
	}
	return 0
}
