package model

import "time"

const (
	RoleClient = "client"
	RoleStaff  = "staff"
	RoleAdmin  = "admin"
)

type Profile struct {
	ID        string     `db:"id" json:"id"`
	UserID    string     `db:"user_id" json:"user_id"`
	Name      string     `db:"name" json:"name"`
	AvatarURL string     `db:"avatar_url" json:"avatar_url"`
	Role      string     `db:"role" json:"role"`
	Locale    string     `db:"locale" json:"locale"`
	LastSeen  *time.Time `db:"last_seen" json:"last_seen,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// IsStaff reports whether the profile may see every project of the brand.
func (p *Profile) IsStaff() bool {
	return p != nil && (p.Role == RoleStaff || p.Role == RoleAdmin)
}

func ValidRole(role string) bool {
	switch role {
	case RoleClient, RoleStaff, RoleAdmin:
		return true
	}
	return false
}
