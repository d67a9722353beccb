package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lumenflow/portal/internal/markdown"
	"github.com/lumenflow/portal/internal/model"
	"github.com/lumenflow/portal/internal/repository"

	"github.com/spf13/cobra"
)

func ArticleCmd(open Open) *cobra.Command {
	articleCmd := &cobra.Command{
		Use:   "article",
		Short: "Manage knowledge base articles",
	}

	articleCmd.AddCommand(&cobra.Command{
		Use:   "import <file.md>...",
		Short: "Create or update articles from markdown files",
		Long: `Each file is one article. Frontmatter fields: title, slug, summary,
category, project (id) and public (bool). The slug defaults to the file name.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, open, func(ctx context.Context, env *Env) error {
				parser := markdown.NewParser()
				for _, file := range args {
					source, err := os.ReadFile(file)
					if err != nil {
						return err
					}
					article, created, err := importArticle(ctx, env, parser, file, source)
					if err != nil {
						return fmt.Errorf("%s: %w", file, err)
					}
					verb := "updated"
					if created {
						verb = "created"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", verb, article.Slug)
				}
				return nil
			})
		},
	})

	articleCmd.AddCommand(articleGrantCmd(open, true))
	articleCmd.AddCommand(articleGrantCmd(open, false))
	return articleCmd
}

// importArticle upserts the article by slug.
func importArticle(ctx context.Context, env *Env, parser *markdown.Parser, file string, source []byte) (*model.Article, bool, error) {
	doc := parser.Split(source)
	slug := doc.String("slug", strings.TrimSuffix(filepath.Base(file), filepath.Ext(file)))

	article := &model.Article{
		Slug:             slug,
		Title:            doc.String("title", slug),
		Summary:          doc.String("summary", ""),
		Content:          doc.Body,
		Category:         doc.String("category", "general"),
		IsPublicToClient: doc.Bool("public", false),
	}
	if project := doc.String("project", ""); project != "" {
		article.ProjectID = &project
	}

	existing, err := env.Articles.BySlug(ctx, slug)
	switch {
	case err == nil:
		article.ID = existing.ID
		article.CreatedAt = existing.CreatedAt
		return article, false, env.Articles.Update(ctx, article)
	case errors.Is(err, repository.ErrArticleNotFound):
		return article, true, env.Articles.Create(ctx, article)
	default:
		return nil, false, err
	}
}

func articleGrantCmd(open Open, grant bool) *cobra.Command {
	use, short := "grant <slug> <email>", "Make a private article visible to one user"
	if !grant {
		use, short = "revoke <slug> <email>", "Withdraw a user's access to a private article"
	}

	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, open, func(ctx context.Context, env *Env) error {
				article, err := env.Articles.BySlug(ctx, args[0])
				if err != nil {
					return fmt.Errorf("failed to find article %s: %w", args[0], err)
				}
				user, err := env.Users.ByEmail(ctx, args[1])
				if err != nil {
					return fmt.Errorf("failed to find user %s: %w", args[1], err)
				}
				if grant {
					return env.Articles.Grant(ctx, article.ID, user.ID)
				}
				return env.Articles.Revoke(ctx, article.ID, user.ID)
			})
		},
	}
}
