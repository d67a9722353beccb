package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lumenflow/portal/internal/model"
	"github.com/lumenflow/portal/internal/realtime"
)

var (
	ErrArticleNotFound = errors.New("article not found")
	ErrDuplicateSlug   = errors.New("article slug already exists")
	ErrGrantNotFound   = errors.New("article access grant not found")
	ErrDuplicateGrant  = errors.New("article access already granted")
)

type ArticleRepository interface {
	Create(ctx context.Context, article *model.Article) error
	Update(ctx context.Context, article *model.Article) error
	Delete(ctx context.Context, id string) error
	ByID(ctx context.Context, id string) (*model.Article, error)
	BySlug(ctx context.Context, slug string) (*model.Article, error)
	Public(ctx context.Context) ([]*model.Article, error)
	GrantedTo(ctx context.Context, userID string) ([]*model.Article, error)
	HasGrant(ctx context.Context, articleID, userID string) (bool, error)
	Grant(ctx context.Context, articleID, userID string) error
	Revoke(ctx context.Context, articleID, userID string) error
}

type articleRepository struct {
	db  *sqlx.DB
	pub realtime.Publisher
}

func NewArticleRepository(db *sqlx.DB, pub realtime.Publisher) ArticleRepository {
	return &articleRepository{db: db, pub: pub}
}

func (r *articleRepository) Create(ctx context.Context, a *model.Article) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.Category == "" {
		a.Category = "general"
	}
	now := time.Now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO articles (id, project_id, slug, title, summary, content, category, is_public_to_client, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, a.ID, a.ProjectID, a.Slug, a.Title, a.Summary, a.Content, a.Category, a.IsPublicToClient, a.CreatedAt, a.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateSlug
	}
	if err != nil {
		return err
	}

	notify(ctx, r.pub, TableArticles, realtime.Insert, a, nil)
	return nil
}

func (r *articleRepository) Update(ctx context.Context, a *model.Article) error {
	old, err := r.ByID(ctx, a.ID)
	if err != nil {
		return err
	}

	a.UpdatedAt = time.Now()
	_, err = r.db.ExecContext(ctx, `
		UPDATE articles
		SET project_id = $1, slug = $2, title = $3, summary = $4, content = $5, category = $6,
		    is_public_to_client = $7, updated_at = $8
		WHERE id = $9
	`, a.ProjectID, a.Slug, a.Title, a.Summary, a.Content, a.Category, a.IsPublicToClient, a.UpdatedAt, a.ID)
	if isUniqueViolation(err) {
		return ErrDuplicateSlug
	}
	if err != nil {
		return err
	}

	a.CreatedAt = old.CreatedAt
	notify(ctx, r.pub, TableArticles, realtime.Update, a, old)
	return nil
}

func (r *articleRepository) Delete(ctx context.Context, id string) error {
	old, err := r.ByID(ctx, id)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `DELETE FROM articles WHERE id = $1`, id)
	if err != nil {
		return err
	}

	notify(ctx, r.pub, TableArticles, realtime.Delete, nil, old)
	return nil
}

func (r *articleRepository) ByID(ctx context.Context, id string) (*model.Article, error) {
	return r.one(ctx, `SELECT * FROM articles WHERE id = $1`, id)
}

func (r *articleRepository) BySlug(ctx context.Context, slug string) (*model.Article, error) {
	return r.one(ctx, `SELECT * FROM articles WHERE slug = $1`, slug)
}

func (r *articleRepository) one(ctx context.Context, query string, arg string) (*model.Article, error) {
	var a model.Article
	err := r.db.GetContext(ctx, &a, query, arg)
	if err == sql.ErrNoRows {
		return nil, ErrArticleNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Public lists the articles every client may read. Content is left out of lists.
func (r *articleRepository) Public(ctx context.Context) ([]*model.Article, error) {
	articles := []*model.Article{}
	err := r.db.SelectContext(ctx, &articles, `
		SELECT id, project_id, slug, title, summary, category, is_public_to_client, created_at, updated_at
		FROM articles
		WHERE is_public_to_client = TRUE
		ORDER BY title
	`)
	return articles, err
}

// GrantedTo lists the articles with an explicit access grant for the user.
func (r *articleRepository) GrantedTo(ctx context.Context, userID string) ([]*model.Article, error) {
	articles := []*model.Article{}
	err := r.db.SelectContext(ctx, &articles, `
		SELECT a.id, a.project_id, a.slug, a.title, a.summary, a.category, a.is_public_to_client, a.created_at, a.updated_at
		FROM articles a
		JOIN article_access g ON g.article_id = a.id
		WHERE g.user_id = $1
		ORDER BY a.title
	`, userID)
	return articles, err
}

func (r *articleRepository) HasGrant(ctx context.Context, articleID, userID string) (bool, error) {
	var n int
	err := r.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM article_access WHERE article_id = $1 AND user_id = $2`, articleID, userID)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *articleRepository) Grant(ctx context.Context, articleID, userID string) error {
	grant := &model.ArticleAccess{
		ID:        uuid.New().String(),
		ArticleID: articleID,
		UserID:    userID,
		CreatedAt: time.Now(),
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO article_access (id, article_id, user_id, created_at)
		VALUES ($1, $2, $3, $4)
	`, grant.ID, grant.ArticleID, grant.UserID, grant.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateGrant
	}
	if err != nil {
		return err
	}

	notify(ctx, r.pub, TableArticleAccess, realtime.Insert, grant, nil)
	return nil
}

func (r *articleRepository) Revoke(ctx context.Context, articleID, userID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM article_access WHERE article_id = $1 AND user_id = $2`, articleID, userID)
	if err != nil {
		return err
	}
	err = expectRow(result, ErrGrantNotFound)
	if err != nil {
		return err
	}

	old := map[string]any{"article_id": articleID, "user_id": userID}
	notify(ctx, r.pub, TableArticleAccess, realtime.Delete, nil, old)
	return nil
}
