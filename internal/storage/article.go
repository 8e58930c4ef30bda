package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"

	"github.com/kovalyov-valentin/news-retriever/internal/model"
)

// Portable between postgres and sqlite. Queries below use '?' and go through Rebind.
const schema = `
CREATE TABLE IF NOT EXISTS articles (
	id           TEXT PRIMARY KEY,
	category     TEXT NOT NULL,
	title        TEXT NOT NULL,
	description  TEXT NOT NULL,
	url          TEXT NOT NULL,
	image_url    TEXT NOT NULL,
	source_name  TEXT NOT NULL,
	published_at TIMESTAMP NOT NULL,
	created_at   TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS articles_category_published_idx ON articles (category, published_at);
`

// ArticleStorage persists articles per category on postgres or sqlite.
type ArticleStorage struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewArticleStorage(db *sqlx.DB) *ArticleStorage {
	return &ArticleStorage{db: db, now: time.Now}
}

// Init creates the articles table when it does not exist yet.
func (s *ArticleStorage) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("storage init: %w", err)
	}

	return nil
}

// GetByCategory returns up to limit stored articles of a category, newest first.
func (s *ArticleStorage) GetByCategory(ctx context.Context, category string, limit int) ([]model.Article, error) {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	var articles []dbArticle
	query := s.db.Rebind(`SELECT id, category, title, description, url, image_url, source_name, published_at, created_at
		FROM articles
		WHERE category = ?
		ORDER BY published_at DESC
		LIMIT ?`)
	if err := conn.SelectContext(ctx, &articles, query, category, limit); err != nil {
		return nil, fmt.Errorf("storage get %s: %w", category, err)
	}

	return lo.Map(articles, func(a dbArticle, _ int) model.Article {
		return a.toModel()
	}), nil
}

// Insert upserts articles in a single transaction; rows with a known id are updated.
func (s *ArticleStorage) Insert(ctx context.Context, articles []model.Article) error {
	if len(articles) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage insert: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PreparexContext(ctx, s.db.Rebind(`INSERT INTO articles
		(id, category, title, description, url, image_url, source_name, published_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			category = excluded.category,
			title = excluded.title,
			description = excluded.description,
			url = excluded.url,
			image_url = excluded.image_url,
			source_name = excluded.source_name,
			published_at = excluded.published_at`))
	if err != nil {
		return fmt.Errorf("storage insert: %w", err)
	}
	defer stmt.Close()

	createdAt := s.now().UTC()
	for _, a := range articles {
		row := fromModel(a, createdAt)
		if _, err := stmt.ExecContext(
			ctx,
			row.ID,
			row.Category,
			row.Title,
			row.Description,
			row.URL,
			row.ImageURL,
			row.SourceName,
			row.PublishedAt,
			row.CreatedAt,
		); err != nil {
			return fmt.Errorf("storage insert %s: %w", a.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage insert: %w", err)
	}

	return nil
}

// Row model mapped onto the articles columns.
type dbArticle struct {
	ID          string    `db:"id"`
	Category    string    `db:"category"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	URL         string    `db:"url"`
	ImageURL    string    `db:"image_url"`
	SourceName  string    `db:"source_name"`
	PublishedAt time.Time `db:"published_at"`
	CreatedAt   time.Time `db:"created_at"`
}

func fromModel(a model.Article, createdAt time.Time) dbArticle {
	return dbArticle{
		ID:          a.ID,
		Category:    a.Category,
		Title:       a.Title,
		Description: a.Description,
		URL:         a.URL,
		ImageURL:    a.ImageURL,
		SourceName:  a.SourceName,
		PublishedAt: a.PublishedAt.UTC(),
		CreatedAt:   createdAt,
	}
}

func (a dbArticle) toModel() model.Article {
	return model.Article{
		ID:          a.ID,
		Title:       a.Title,
		Description: a.Description,
		URL:         a.URL,
		ImageURL:    a.ImageURL,
		PublishedAt: a.PublishedAt.UTC(),
		SourceName:  a.SourceName,
		Category:    a.Category,
	}
}
