package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/kovalyov-valentin/news-retriever/internal/model"
)

func newTestStorage(t *testing.T) *ArticleStorage {
	t.Helper()

	db, err := sqlx.Open("sqlite", filepath.Join(t.TempDir(), "news.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	s := NewArticleStorage(db)
	require.NoError(t, s.Init(context.Background()))
	return s
}

func article(id, category string, published time.Time) model.Article {
	return model.Article{
		ID:          id,
		Title:       "Title " + id,
		Description: "Description " + id,
		URL:         "https://example.com/" + id,
		ImageURL:    "https://example.com/" + id + ".png",
		PublishedAt: published,
		SourceName:  "Example",
		Category:    category,
	}
}

func TestInsertAndGetByCategory(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	var articles []model.Article
	for i := range 5 {
		articles = append(articles, article(fmt.Sprintf("tech-%d", i), model.CategoryTechnology, base.Add(time.Duration(i)*time.Hour)))
	}
	articles = append(articles, article("sport-0", model.CategorySports, base))

	require.NoError(t, s.Insert(ctx, articles))

	got, err := s.GetByCategory(ctx, model.CategoryTechnology, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"tech-4", "tech-3", "tech-2"}, []string{got[0].ID, got[1].ID, got[2].ID})
	assert.Equal(t, articles[4], got[0])

	sports, err := s.GetByCategory(ctx, model.CategorySports, 10)
	require.NoError(t, err)
	assert.Len(t, sports, 1)
}

func TestGetByCategoryEmpty(t *testing.T) {
	s := newTestStorage(t)

	got, err := s.GetByCategory(context.Background(), model.CategoryHealth, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestInsertUpsertsByID(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	published := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	first := article("same", model.CategoryWorld, published)
	require.NoError(t, s.Insert(ctx, []model.Article{first}))

	updated := first
	updated.Title = "Updated title"
	require.NoError(t, s.Insert(ctx, []model.Article{updated}))

	got, err := s.GetByCategory(ctx, model.CategoryWorld, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Updated title", got[0].Title)
}

func TestInsertNothing(t *testing.T) {
	s := newTestStorage(t)
	assert.NoError(t, s.Insert(context.Background(), nil))
}

func TestInsertHonoursCancelledContext(t *testing.T) {
	s := newTestStorage(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Insert(ctx, []model.Article{article("x", model.CategoryAI, time.Now())})
	assert.Error(t, err)
}
