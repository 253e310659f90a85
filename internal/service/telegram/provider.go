// Package telegram stores objects as messages in bot chats. The object id
// is the Bot API file_id and the provider ref is "chatID:messageID".
package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type botAPI interface {
	GetFile(config tgbotapi.FileConfig) (tgbotapi.File, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type Provider struct {
	bot          botAPI
	token        string
	fileEndpoint string
}

// NewProvider connects to the Bot API. apiEndpoint may be empty for the
// public Telegram servers; a local Bot API server is addressed the same way.
func NewProvider(token, apiEndpoint string, client *http.Client) (*Provider, error) {
	if apiEndpoint == "" {
		apiEndpoint = tgbotapi.APIEndpoint
	}
	if client == nil {
		client = http.DefaultClient
	}

	bot, err := tgbotapi.NewBotAPIWithClient(token, apiEndpoint, client)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to bot api: %w", err)
	}

	return &Provider{
		bot:          bot,
		token:        token,
		fileEndpoint: tgbotapi.FileEndpoint,
	}, nil
}

// WithFileEndpoint overrides the download URL pattern, which takes the bot
// token and the file path.
func (p *Provider) WithFileEndpoint(endpoint string) *Provider {
	p.fileEndpoint = endpoint
	return p
}

// ResolveLocation calls getFile and builds the download URL. Telegram keeps
// that URL valid for about an hour, it is used once and dropped.
func (p *Provider) ResolveLocation(ctx context.Context, objectID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	// tgbotapi takes no context: a getFile in flight is bounded only by the
	// http.Client timeout.
	file, err := p.bot.GetFile(tgbotapi.FileConfig{FileID: objectID})
	if err != nil {
		return "", fmt.Errorf("getFile %s: %w", objectID, err)
	}
	if file.FilePath == "" {
		return "", fmt.Errorf("getFile %s: empty file path", objectID)
	}

	return fmt.Sprintf(p.fileEndpoint, p.token, file.FilePath), nil
}

// DeleteRemoteObject deletes the message that carries the object.
func (p *Provider) DeleteRemoteObject(ctx context.Context, providerRef string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	chatID, messageID, err := ParseRef(providerRef)
	if err != nil {
		return err
	}

	if _, err := p.bot.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		return fmt.Errorf("deleteMessage %s: %w", providerRef, err)
	}

	return nil
}

func FormatRef(chatID int64, messageID int) string {
	return strconv.FormatInt(chatID, 10) + ":" + strconv.Itoa(messageID)
}

func ParseRef(ref string) (int64, int, error) {
	chat, msg, ok := strings.Cut(ref, ":")
	if !ok {
		return 0, 0, fmt.Errorf("malformed provider ref %q", ref)
	}

	chatID, err := strconv.ParseInt(chat, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed chat id in %q: %w", ref, err)
	}
	messageID, err := strconv.Atoi(msg)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed message id in %q: %w", ref, err)
	}

	return chatID, messageID, nil
}
