package repository

import (
	"errors"
	"time"

	authdomain "relay-backend/internal/auth/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ImapAccountRepository defines persistence for encrypted IMAP credentials
type ImapAccountRepository interface {
	// Upsert stores or replaces the single account for a user
	Upsert(account *authdomain.ImapAccount) error
	// FindByUserID returns nil, nil when the user has no IMAP account
	FindByUserID(userID string) (*authdomain.ImapAccount, error)
	// Delete removes the account on disconnect
	Delete(userID string) error
}

// imapAccountRepository implements ImapAccountRepository interface
type imapAccountRepository struct {
	db *gorm.DB
}

// NewImapAccountRepository creates a new instance of imapAccountRepository
func NewImapAccountRepository(db *gorm.DB) ImapAccountRepository {
	return &imapAccountRepository{
		db: db,
	}
}

func (r *imapAccountRepository) Upsert(account *authdomain.ImapAccount) error {
	now := time.Now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		UpdateAll: true,
	}).Create(account).Error
}

func (r *imapAccountRepository) FindByUserID(userID string) (*authdomain.ImapAccount, error) {
	var account authdomain.ImapAccount
	err := r.db.Where("user_id = ?", userID).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

func (r *imapAccountRepository) Delete(userID string) error {
	return r.db.Where("user_id = ?", userID).Delete(&authdomain.ImapAccount{}).Error
}
