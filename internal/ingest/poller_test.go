package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"telecloud/internal/domain"
)

type fakeBot struct {
	updates chan tgbotapi.Update
	sent    chan tgbotapi.Chattable
	stopped bool
}

func newFakeBot() *fakeBot {
	return &fakeBot{
		updates: make(chan tgbotapi.Update, 4),
		sent:    make(chan tgbotapi.Chattable, 4),
	}
}

func (b *fakeBot) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return b.updates
}

func (b *fakeBot) StopReceivingUpdates() { b.stopped = true }

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.sent <- c
	return tgbotapi.Message{}, nil
}

type MockRegistrar struct {
	mock.Mock
}

func (m *MockRegistrar) Create(ctx context.Context, in domain.NewFile) (*domain.File, error) {
	args := m.Called(ctx, in)
	if f := args.Get(0); f != nil {
		return f.(*domain.File), args.Error(1)
	}
	return nil, args.Error(1)
}

func message(id int) *tgbotapi.Message {
	return &tgbotapi.Message{
		MessageID: id,
		From:      &tgbotapi.User{ID: 42},
		Chat:      &tgbotapi.Chat{ID: -100},
	}
}

func TestNewFileFromMessage_Document(t *testing.T) {
	msg := message(7)
	msg.Document = &tgbotapi.Document{
		FileID:    "doc-1",
		FileName:  "report.pdf",
		MimeType:  "application/pdf",
		FileSize:  2048,
		Thumbnail: &tgbotapi.PhotoSize{FileID: "doc-thumb"},
	}

	in, ok := newFileFromMessage(msg)
	require.True(t, ok)
	assert.Equal(t, domain.NewFile{
		OwnerID:       "42",
		ObjectID:      "doc-1",
		ThumbObjectID: "doc-thumb",
		ProviderRef:   "-100:7",
		Kind:          domain.KindDocument,
		Name:          "report.pdf",
		MIMEType:      "application/pdf",
		SizeBytes:     2048,
	}, in)
}

func TestNewFileFromMessage_PhotoSizes(t *testing.T) {
	msg := message(8)
	msg.Photo = []tgbotapi.PhotoSize{
		{FileID: "mid", Width: 320, Height: 240, FileSize: 20},
		{FileID: "small", Width: 90, Height: 60, FileSize: 2},
		{FileID: "large", Width: 1280, Height: 960, FileSize: 200},
	}

	in, ok := newFileFromMessage(msg)
	require.True(t, ok)
	assert.Equal(t, domain.KindPhoto, in.Kind)
	assert.Equal(t, "large", in.ObjectID)
	assert.Equal(t, "small", in.ThumbObjectID)
	assert.Equal(t, "photo.jpg", in.Name)
	assert.Equal(t, int64(200), in.SizeBytes)
}

func TestNewFileFromMessage_VideoDefaults(t *testing.T) {
	msg := message(9)
	msg.Video = &tgbotapi.Video{FileID: "vid", Thumbnail: &tgbotapi.PhotoSize{FileID: "vthumb"}}

	in, ok := newFileFromMessage(msg)
	require.True(t, ok)
	assert.Equal(t, domain.KindVideo, in.Kind)
	assert.Equal(t, "video.mp4", in.Name)
	assert.Equal(t, "video/mp4", in.MIMEType)
	assert.Equal(t, "vthumb", in.ThumbObjectID)
}

func TestNewFileFromMessage_Ignored(t *testing.T) {
	msg := message(10)
	msg.Text = "hello"
	_, ok := newFileFromMessage(msg)
	assert.False(t, ok)

	anon := &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1}, Document: &tgbotapi.Document{FileID: "x"}}
	_, ok = newFileFromMessage(anon)
	assert.False(t, ok)
}

func TestPoller_IndexesAndReplies(t *testing.T) {
	bot := newFakeBot()
	registrar := new(MockRegistrar)
	poller := NewPoller(bot, registrar)

	registrar.On("Create", mock.Anything, mock.MatchedBy(func(in domain.NewFile) bool { return in.ObjectID == "doc-1" })).
		Return(&domain.File{ID: uuid.New(), OwnerID: "42", Kind: domain.KindDocument}, nil)
	registrar.On("Create", mock.Anything, mock.MatchedBy(func(in domain.NewFile) bool { return in.ObjectID == "doc-2" })).
		Return(nil, errors.New("db down"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- poller.Run(ctx) }()

	failing := message(11)
	failing.Document = &tgbotapi.Document{FileID: "doc-2", FileName: "b.txt"}
	bot.updates <- tgbotapi.Update{Message: failing}

	ok := message(12)
	ok.Document = &tgbotapi.Document{FileID: "doc-1", FileName: "a.txt"}
	bot.updates <- tgbotapi.Update{Message: ok}

	select {
	case sent := <-bot.sent:
		reply, isMsg := sent.(tgbotapi.MessageConfig)
		require.True(t, isMsg)
		assert.Equal(t, "File indexed.", reply.Text)
		assert.Equal(t, int64(-100), reply.ChatID)
		assert.Equal(t, 12, reply.ReplyToMessageID)
	case <-time.After(2 * time.Second):
		t.Fatal("no reply sent")
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.True(t, bot.stopped)
	assert.Len(t, bot.sent, 0)
	registrar.AssertExpectations(t)
}

func TestNewBotClient_UsesEndpoint(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"ok":true,"result":{"id":7,"is_bot":true,"first_name":"drive","username":"drive_bot"}}`)
	}))
	defer srv.Close()

	bot, err := NewBotClient("7:tok", srv.URL+"/bot%s/%s")
	require.NoError(t, err)
	assert.Equal(t, "/bot7:tok/getMe", path)
	assert.Equal(t, "drive_bot", bot.Self.UserName)
}
