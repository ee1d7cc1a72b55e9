package domain

import "time"

// ImapAccount holds a user's IMAP mailbox credentials. The password is
// stored encrypted; only the vault boundary sees plaintext.
type ImapAccount struct {
	UserID      string    `json:"user_id" gorm:"primaryKey"`
	Address     string    `json:"address"` // host:port, TLS assumed
	Username    string    `json:"username"`
	PasswordEnc string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (ImapAccount) TableName() string {
	return "imap_accounts"
}
