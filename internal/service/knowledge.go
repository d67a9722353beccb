package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/lumenflow/portal/internal/live"
	"github.com/lumenflow/portal/internal/markdown"
	"github.com/lumenflow/portal/internal/model"
	"github.com/lumenflow/portal/internal/realtime"
	"github.com/lumenflow/portal/internal/repository"
)

// KnowledgeService serves the knowledge base: articles public to every
// client plus those granted to the viewer.
type KnowledgeService struct {
	articleRepo repository.ArticleRepository
	parser      *markdown.Parser
}

func NewKnowledgeService(articleRepo repository.ArticleRepository) *KnowledgeService {
	return &KnowledgeService{
		articleRepo: articleRepo,
		parser:      markdown.NewParser(),
	}
}

// List returns the visible articles without duplicates. A failing grant
// query degrades to the public articles.
func (s *KnowledgeService) List(ctx context.Context, v Viewer) ([]*model.Article, error) {
	public, err := s.articleRepo.Public(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load public articles: %w", err)
	}
	if v.UserID == "" {
		return public, nil
	}

	granted, err := s.articleRepo.GrantedTo(ctx, v.UserID)
	if err != nil {
		slog.Warn("failed to load granted articles", "error", err, "user_id", v.UserID)
		return public, nil
	}

	merged := model.MergeArticles(public, granted)
	if merged == nil {
		merged = []*model.Article{}
	}
	slices.SortStableFunc(merged, func(a, b *model.Article) int {
		switch {
		case a.Title < b.Title:
			return -1
		case a.Title > b.Title:
			return 1
		}
		return 0
	})
	return merged, nil
}

// BySlug returns one article with its body rendered. Articles the viewer may
// not see are repository.ErrArticleNotFound.
func (s *KnowledgeService) BySlug(ctx context.Context, v Viewer, slug string) (*model.Article, error) {
	article, err := s.articleRepo.BySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	if !article.IsPublicToClient {
		if v.UserID == "" {
			return nil, repository.ErrArticleNotFound
		}
		granted, err := s.articleRepo.HasGrant(ctx, article.ID, v.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to check article access: %w", err)
		}
		if !granted {
			return nil, repository.ErrArticleNotFound
		}
	}

	html, err := s.parser.Parse([]byte(article.Content))
	if err != nil {
		slog.Warn("failed to render article", "error", err, "slug", slug)
		return article, nil
	}
	article.HTML = string(html)
	return article, nil
}

// ListWatch is the live configuration of the article list.
func (s *KnowledgeService) ListWatch(v Viewer) live.Config[[]*model.Article] {
	return live.Config[[]*model.Article]{
		Name:   "knowledge",
		Tables: []string{repository.TableArticles, repository.TableArticleAccess},
		Load: func(ctx context.Context) ([]*model.Article, error) {
			return s.List(ctx, v)
		},
		Match: func(ev realtime.Event, current []*model.Article) bool {
			if ev.Table == repository.TableArticleAccess {
				return v.UserID != "" && ev.Field("user_id") == v.UserID
			}
			id := ev.Field("id")
			for _, a := range current {
				if a.ID == id {
					return true
				}
			}
			// Newly published, or republished after being hidden
			return ev.Field("is_public_to_client") == "true"
		},
	}
}

// IsNotFound reports whether err means the requested record is not visible.
func IsNotFound(err error) bool {
	return errors.Is(err, repository.ErrArticleNotFound) ||
		errors.Is(err, repository.ErrProjectNotFound) ||
		errors.Is(err, repository.ErrAssetNotFound)
}
