package repository

import (
	"errors"
	"time"

	authdomain "relay-backend/internal/auth/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OAuthTokenRepository defines persistence for encrypted OAuth tokens
type OAuthTokenRepository interface {
	// Upsert stores or replaces the single record for a user
	Upsert(record *authdomain.OAuthTokenRecord) error
	// FindByUserID returns nil, nil when the user has no tokens
	FindByUserID(userID string) (*authdomain.OAuthTokenRecord, error)
	// UpdateAccessToken rotates the access token after a refresh
	UpdateAccessToken(userID, accessTokenEnc string, expiry time.Time) error
	// Delete removes the record on disconnect or account deletion
	Delete(userID string) error
}

// oauthTokenRepository implements OAuthTokenRepository interface
type oauthTokenRepository struct {
	db *gorm.DB
}

// NewOAuthTokenRepository creates a new instance of oauthTokenRepository
func NewOAuthTokenRepository(db *gorm.DB) OAuthTokenRepository {
	return &oauthTokenRepository{
		db: db,
	}
}

func (r *oauthTokenRepository) Upsert(record *authdomain.OAuthTokenRecord) error {
	now := time.Now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		UpdateAll: true,
	}).Create(record).Error
}

func (r *oauthTokenRepository) FindByUserID(userID string) (*authdomain.OAuthTokenRecord, error) {
	var record authdomain.OAuthTokenRecord
	err := r.db.Where("user_id = ?", userID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *oauthTokenRepository) UpdateAccessToken(userID, accessTokenEnc string, expiry time.Time) error {
	return r.db.Model(&authdomain.OAuthTokenRecord{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"access_token_enc": accessTokenEnc,
			"expiry":           expiry,
			"updated_at":       time.Now(),
		}).Error
}

func (r *oauthTokenRepository) Delete(userID string) error {
	return r.db.Where("user_id = ?", userID).Delete(&authdomain.OAuthTokenRecord{}).Error
}
