package cmd

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/lumenflow/portal/internal/model"
	"github.com/lumenflow/portal/internal/validation"

	"github.com/spf13/cobra"
)

func AssetCmd(open Open) *cobra.Command {
	assetCmd := &cobra.Command{
		Use:   "asset",
		Short: "Manage project files",
	}

	assetCmd.AddCommand(&cobra.Command{
		Use:   "upload <project-id> <file>",
		Short: "Upload a file into a project's asset library",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, open, func(ctx context.Context, env *Env) error {
				asset, err := uploadAsset(ctx, env, args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), asset.ID)
				return nil
			})
		},
	})

	assetCmd.AddCommand(&cobra.Command{
		Use:   "delete <asset-id>",
		Short: "Remove an asset and its stored object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, open, func(ctx context.Context, env *Env) error {
				asset, err := env.Assets.ByID(ctx, args[0])
				if err != nil {
					return err
				}
				store, err := env.Storage(ctx)
				if err != nil {
					return err
				}
				err = env.Assets.Delete(ctx, asset.ID)
				if err != nil {
					return fmt.Errorf("failed to delete asset: %w", err)
				}
				return store.Delete(ctx, asset.StoragePath)
			})
		},
	})

	return assetCmd
}

func uploadAsset(ctx context.Context, env *Env, projectID, file string) (*model.Asset, error) {
	project, err := env.Projects.ByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to find project %s: %w", projectID, err)
	}

	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	contentType, err := validation.DetectFile(f, file, info.Size(), validation.AssetConstraints)
	if err != nil {
		return nil, err
	}

	store, err := env.Storage(ctx)
	if err != nil {
		return nil, err
	}

	name := filepath.Base(file)
	id := uuid.New().String()
	key := path.Join("projects", project.ID, id+filepath.Ext(name))
	err = store.Save(ctx, key, f, contentType)
	if err != nil {
		return nil, err
	}

	asset := &model.Asset{
		ID:          id,
		ProjectID:   project.ID,
		Name:        name,
		StoragePath: key,
		MimeType:    contentType,
		Size:        info.Size(),
	}
	err = env.Assets.Create(ctx, asset)
	if err != nil {
		_ = store.Delete(ctx, key)
		return nil, fmt.Errorf("failed to create asset: %w", err)
	}
	return asset, nil
}
