// Package ingest indexes objects that users send to the storage bot. The
// object already lives in the chat, so only a file record is created.
package ingest

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"telecloud/internal/domain"
	"telecloud/internal/service/telegram"
)

const (
	defaultDocumentName = "document"
	defaultPhotoName    = "photo.jpg"
	defaultVideoName    = "video.mp4"
	photoMIMEType       = "image/jpeg"
	defaultVideoMIME    = "video/mp4"

	indexedReply = "File indexed."
	pollTimeout  = 30
)

type Bot interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type FileRegistrar interface {
	Create(ctx context.Context, in domain.NewFile) (*domain.File, error)
}

type Poller struct {
	bot   Bot
	files FileRegistrar
}

func NewPoller(bot Bot, files FileRegistrar) *Poller {
	return &Poller{bot: bot, files: files}
}

// Run consumes updates until ctx is done or the update channel closes.
func (p *Poller) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeout
	updates := p.bot.GetUpdatesChan(u)
	defer p.bot.StopReceivingUpdates()

	log.Info().Msg("telegram ingest started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("telegram ingest stopped")
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message != nil {
				p.handleMessage(ctx, update.Message)
			}
		}
	}
}

func (p *Poller) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	in, ok := newFileFromMessage(msg)
	if !ok {
		return
	}

	file, err := p.files.Create(ctx, in)
	if err != nil {
		log.Error().Err(err).
			Int64("chat_id", msg.Chat.ID).
			Int("message_id", msg.MessageID).
			Msg("failed to index file")
		return
	}

	log.Info().
		Str("file_id", file.ID.String()).
		Str("owner_id", file.OwnerID).
		Str("kind", string(file.Kind)).
		Msg("file indexed")

	reply := tgbotapi.NewMessage(msg.Chat.ID, indexedReply)
	reply.ReplyToMessageID = msg.MessageID
	if _, err := p.bot.Send(reply); err != nil {
		log.Warn().Err(err).Int64("chat_id", msg.Chat.ID).Msg("failed to send reply")
	}
}

// newFileFromMessage reports false for messages that carry no storable
// object or have no sender.
func newFileFromMessage(msg *tgbotapi.Message) (domain.NewFile, bool) {
	if msg.From == nil || msg.Chat == nil {
		return domain.NewFile{}, false
	}

	in := domain.NewFile{
		OwnerID:     strconv.FormatInt(msg.From.ID, 10),
		ProviderRef: telegram.FormatRef(msg.Chat.ID, msg.MessageID),
	}

	switch {
	case msg.Document != nil:
		doc := msg.Document
		in.Kind = domain.KindDocument
		in.ObjectID = doc.FileID
		in.Name = doc.FileName
		in.MIMEType = doc.MimeType
		in.SizeBytes = int64(doc.FileSize)
		if doc.Thumbnail != nil {
			in.ThumbObjectID = doc.Thumbnail.FileID
		}
		if in.Name == "" {
			in.Name = defaultDocumentName
		}

	case len(msg.Photo) > 0:
		largest, smallest := msg.Photo[0], msg.Photo[0]
		for _, size := range msg.Photo[1:] {
			if size.Width*size.Height > largest.Width*largest.Height {
				largest = size
			}
			if size.Width*size.Height < smallest.Width*smallest.Height {
				smallest = size
			}
		}
		in.Kind = domain.KindPhoto
		in.ObjectID = largest.FileID
		in.Name = defaultPhotoName
		in.MIMEType = photoMIMEType
		in.SizeBytes = int64(largest.FileSize)
		if smallest.FileID != largest.FileID {
			in.ThumbObjectID = smallest.FileID
		}

	case msg.Video != nil:
		video := msg.Video
		in.Kind = domain.KindVideo
		in.ObjectID = video.FileID
		in.Name = video.FileName
		in.MIMEType = video.MimeType
		in.SizeBytes = int64(video.FileSize)
		if video.Thumbnail != nil {
			in.ThumbObjectID = video.Thumbnail.FileID
		}
		if in.Name == "" {
			in.Name = defaultVideoName
		}
		if in.MIMEType == "" {
			in.MIMEType = defaultVideoMIME
		}

	default:
		return domain.NewFile{}, false
	}

	return in, true
}

// NewBotClient connects a bot client for long polling. It is separate from
// the provider's client, whose timeout is shorter than a poll.
func NewBotClient(token, apiEndpoint string) (*tgbotapi.BotAPI, error) {
	if apiEndpoint == "" {
		apiEndpoint = tgbotapi.APIEndpoint
	}
	client := &http.Client{Timeout: (pollTimeout + 10) * time.Second}

	bot, err := tgbotapi.NewBotAPIWithClient(token, apiEndpoint, client)
	if err != nil {
		return nil, fmt.Errorf("failed to connect ingest bot: %w", err)
	}
	return bot, nil
}
