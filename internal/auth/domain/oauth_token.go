package domain

import (
	"strings"
	"time"
)

// OAuthTokenRecord holds a user's Google OAuth tokens at rest. Token
// values are vault ciphertext, never plaintext. One record per user;
// rotated on refresh, deleted on disconnect.
type OAuthTokenRecord struct {
	UserID          string    `json:"user_id" gorm:"primaryKey"`
	AccessTokenEnc  string    `json:"-" gorm:"type:text;not null"`
	RefreshTokenEnc string    `json:"-" gorm:"type:text"`
	Expiry          time.Time `json:"expiry"`
	Scopes          string    `json:"scopes"` // space-separated
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (OAuthTokenRecord) TableName() string {
	return "oauth_tokens"
}

// ScopeList splits the stored scope string.
func (r *OAuthTokenRecord) ScopeList() []string {
	return strings.Fields(r.Scopes)
}
