package bot

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kovalyov-valentin/news-retriever/internal/bot/middleware"
	"github.com/kovalyov-valentin/news-retriever/internal/model"
)

type fakeAPI struct {
	sent   []tgbotapi.MessageConfig
	admins []tgbotapi.ChatMember
}

func (a *fakeAPI) Send(msg tgbotapi.Chattable) (tgbotapi.Message, error) {
	if m, ok := msg.(tgbotapi.MessageConfig); ok {
		a.sent = append(a.sent, m)
	}
	return tgbotapi.Message{}, nil
}

func (a *fakeAPI) GetChatAdministrators(tgbotapi.ChatAdministratorsConfig) ([]tgbotapi.ChatMember, error) {
	return a.admins, nil
}

func (a *fakeAPI) last(t *testing.T) tgbotapi.MessageConfig {
	t.Helper()
	require.NotEmpty(t, a.sent)
	return a.sent[len(a.sent)-1]
}

func command(text string) tgbotapi.Update {
	cmdLen := len(text)
	if i := strings.IndexByte(text, ' '); i > 0 {
		cmdLen = i
	}
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Text:     text,
		Chat:     &tgbotapi.Chat{ID: 7},
		From:     &tgbotapi.User{ID: 42},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: cmdLen}},
	}}
}

type fakeService struct {
	category  string
	limit     int
	cleared   bool
	clearErr  error
	refreshed string
}

func (s *fakeService) GetNews(_ context.Context, category string, limit int) []model.Article {
	s.category, s.limit = category, limit
	return []model.Article{{
		Title:       "Chips (again)!",
		Description: "Prices rose 3.5%.",
		URL:         "https://example.com/chips",
		SourceName:  "Example",
		PublishedAt: time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC),
		Category:    category,
	}}
}

func (s *fakeService) Stats(context.Context) model.Stats {
	return model.Stats{
		CacheStats: map[string]model.CacheStat{
			"world": {Count: 3, AgeSeconds: 120},
			"ai":    {Count: 1, AgeSeconds: 7200, Expired: true},
		},
		QuotaStatus: model.QuotaStatus{Used: 10, Limit: 100, Remaining: 90, ResetInHours: 3.5},
		Providers: []model.ProviderDescriptor{
			{Name: "newsapi", Priority: 1, Enabled: true},
			{Name: "gnews", Priority: 2},
		},
	}
}

func (s *fakeService) ClearCache(context.Context) error {
	s.cleared = true
	return s.clearErr
}

func (s *fakeService) RefreshCategory(_ context.Context, category string) []model.Article {
	s.refreshed = category
	return make([]model.Article, 4)
}

func TestViewCmdNews(t *testing.T) {
	api := &fakeAPI{}
	svc := &fakeService{}

	require.NoError(t, ViewCmdNews(svc)(context.Background(), api, command("/news Technology 50")))

	assert.Equal(t, model.CategoryTechnology, svc.category)
	assert.Equal(t, maxNewsInChat, svc.limit)

	msg := api.last(t)
	assert.Equal(t, tgbotapi.ModeMarkdownV2, msg.ParseMode)
	assert.Contains(t, msg.Text, `*Chips \(again\)\!*`)
	assert.Contains(t, msg.Text, `Prices rose 3\.5%\.`)
	assert.Contains(t, msg.Text, `https://example\.com/chips`)
}

func TestViewCmdNewsUsage(t *testing.T) {
	api := &fakeAPI{}
	svc := &fakeService{}

	require.NoError(t, ViewCmdNews(svc)(context.Background(), api, command("/news")))
	assert.Contains(t, api.last(t).Text, "Usage")
	assert.Empty(t, svc.category)

	require.NoError(t, ViewCmdNews(svc)(context.Background(), api, command("/news ai nope")))
	assert.Contains(t, api.last(t).Text, "positive number")
	assert.Empty(t, svc.category)
}

func TestViewCmdStats(t *testing.T) {
	api := &fakeAPI{}

	require.NoError(t, ViewCmdStats(&fakeService{})(context.Background(), api, command("/stats")))

	text := api.last(t).Text
	assert.Contains(t, text, "10/100 used, 90 left, resets in 3\\.5h")
	assert.Less(t, strings.Index(text, "ai: 1 articles"), strings.Index(text, "world: 3 articles"))
	assert.Contains(t, text, "\\(stale\\)")
	assert.Contains(t, text, "1\\. newsapi: on")
	assert.Contains(t, text, "2\\. gnews: off")
}

func TestViewCmdClearCache(t *testing.T) {
	api := &fakeAPI{}
	svc := &fakeService{}

	require.NoError(t, ViewCmdClearCache(svc)(context.Background(), api, command("/clearcache")))
	assert.True(t, svc.cleared)
	assert.Equal(t, "Cache cleared", api.last(t).Text)

	failing := &fakeService{clearErr: errors.New("kv down")}
	assert.Error(t, ViewCmdClearCache(failing)(context.Background(), api, command("/clearcache")))
}

func TestViewCmdRefresh(t *testing.T) {
	api := &fakeAPI{}
	svc := &fakeService{}

	require.NoError(t, ViewCmdRefresh(svc)(context.Background(), api, command("/refresh Sports")))
	assert.Equal(t, model.CategorySports, svc.refreshed)
	assert.Equal(t, "Refreshed sports: 4 articles", api.last(t).Text)

	require.NoError(t, ViewCmdRefresh(svc)(context.Background(), api, command("/refresh weather")))
	assert.Contains(t, api.last(t).Text, "Usage")
}

func TestAdminOnly(t *testing.T) {
	svc := &fakeService{}
	view := middleware.AdminOnly(-100, ViewCmdClearCache(svc))

	outsider := &fakeAPI{admins: []tgbotapi.ChatMember{{User: &tgbotapi.User{ID: 1}}}}
	require.NoError(t, view(context.Background(), outsider, command("/clearcache")))
	assert.Contains(t, outsider.last(t).Text, "not allowed")
	assert.False(t, svc.cleared)

	admin := &fakeAPI{admins: []tgbotapi.ChatMember{{User: &tgbotapi.User{ID: 42}}}}
	require.NoError(t, view(context.Background(), admin, command("/clearcache")))
	assert.True(t, svc.cleared)
	assert.Equal(t, "Cache cleared", admin.last(t).Text)
}
