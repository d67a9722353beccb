package model

import "time"

// Article is a knowledge base entry.
type Article struct {
	ID               string    `db:"id" json:"id"`
	ProjectID        *string   `db:"project_id" json:"project_id,omitempty"`
	Slug             string    `db:"slug" json:"slug"`
	Title            string    `db:"title" json:"title"`
	Summary          string    `db:"summary" json:"summary"`
	Content          string    `db:"content" json:"content,omitempty"`
	Category         string    `db:"category" json:"category"`
	IsPublicToClient bool      `db:"is_public_to_client" json:"is_public_to_client"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`

	// Computed fields (not in database)
	HTML string `db:"-" json:"html,omitempty"`
}

// ArticleAccess grants one user visibility of an otherwise non-public article.
type ArticleAccess struct {
	ID        string    `db:"id" json:"id"`
	ArticleID string    `db:"article_id" json:"article_id"`
	UserID    string    `db:"user_id" json:"user_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// MergeArticles returns the union of the given lists, keeping the first
// occurrence of every id.
func MergeArticles(lists ...[]*Article) []*Article {
	seen := make(map[string]bool)
	var merged []*Article
	for _, list := range lists {
		for _, a := range list {
			if seen[a.ID] {
				continue
			}
			seen[a.ID] = true
			merged = append(merged, a)
		}
	}
	return merged
}
