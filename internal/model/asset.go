package model

import (
	"time"
)

// Asset is a file attached to a project. StoragePath is never a public URL;
// it is exchanged for a signed URL on every preview or download.
type Asset struct {
	ID          string    `db:"id" json:"id"`
	ProjectID   string    `db:"project_id" json:"project_id"`
	Name        string    `db:"name" json:"name"`
	StoragePath string    `db:"storage_path" json:"-"`
	MimeType    string    `db:"mime_type" json:"mime_type"`
	Size        int64     `db:"size" json:"size"`
	UploadedBy  *string   `db:"uploaded_by" json:"uploaded_by,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`

	// Joined (asset library)
	ProjectName string `db:"project_name" json:"project_name,omitempty"`
}

type SignedURL struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Library is the asset library of one identity. ProjectIDs is the working set
// of visible projects, assets or not.
type Library struct {
	Assets     []*Asset `json:"assets"`
	ProjectIDs []string `json:"-"`
}
