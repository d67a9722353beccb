package storage

import (
	"context"
	"log/slog"
	"time"

	"github.com/lumenflow/portal/internal/model"
)

const DefaultSignedURLExpiry = time.Hour

// Resolver exchanges asset storage paths for signed URLs. Every call signs
// anew; nothing is cached.
type Resolver struct {
	storage Storage
	expiry  time.Duration
	now     func() time.Time
}

func NewResolver(storage Storage, expiry time.Duration) *Resolver {
	if expiry <= 0 {
		expiry = DefaultSignedURLExpiry
	}
	return &Resolver{storage: storage, expiry: expiry, now: time.Now}
}

// Resolve returns a URL to view the asset inline, or nil when signing fails.
func (r *Resolver) Resolve(ctx context.Context, asset *model.Asset) *model.SignedURL {
	return r.sign(ctx, asset, "")
}

// ResolveDownload returns a URL that downloads the asset under its name, or
// nil when signing fails.
func (r *Resolver) ResolveDownload(ctx context.Context, asset *model.Asset) *model.SignedURL {
	return r.sign(ctx, asset, asset.Name)
}

func (r *Resolver) sign(ctx context.Context, asset *model.Asset, attachment string) *model.SignedURL {
	if asset == nil || asset.StoragePath == "" {
		return nil
	}

	issuedAt := r.now()
	url, err := r.storage.PresignGet(ctx, asset.StoragePath, r.expiry, attachment)
	if err != nil {
		slog.Warn("failed to sign asset url", "error", err, "asset_id", asset.ID)
		return nil
	}

	return &model.SignedURL{URL: url, ExpiresAt: issuedAt.Add(r.expiry)}
}
