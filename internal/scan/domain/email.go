package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// StringList is stored as a JSON column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		l = StringList{}
	}
	return json.Marshal(l)
}

func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = StringList{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if str, ok := value.(string); ok {
			bytes = []byte(str)
		} else {
			return errors.New("unsupported type for StringList")
		}
	}
	return json.Unmarshal(bytes, l)
}

// EmailRecord is the classified metadata of one scanned message. The
// provider message id is the global dedup key: reprocessing the same
// message in a later run repoints the record to that run.
type EmailRecord struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	RunID       string    `json:"run_id" gorm:"index;not null"`
	MessageID   string    `json:"message_id" gorm:"uniqueIndex;not null"`
	ThreadID    string    `json:"thread_id"`
	Subject     string    `json:"subject"`
	FromAddress string    `json:"from" gorm:"column:from_address"`
	ListID      string    `json:"list_id,omitempty"`
	Platform    string    `json:"platform"`
	SentAt      time.Time `json:"sent_at"`
}

// TableName specifies the table name for GORM
func (EmailRecord) TableName() string {
	return "email_records"
}

// EmailBody is the normalized body for one EmailRecord (1:1). Bodies
// are purged once RetentionExpiry passes.
type EmailBody struct {
	EmailID         string     `json:"email_id" gorm:"primaryKey"`
	RunID           string     `json:"run_id" gorm:"index;not null"`
	NormalizedHTML  string     `json:"normalized_html,omitempty" gorm:"type:text"`
	NormalizedText  string     `json:"normalized_text,omitempty" gorm:"type:text"`
	Links           StringList `json:"links" gorm:"type:jsonb"`
	NormalizedAt    time.Time  `json:"normalized_at"`
	RetentionExpiry int64      `json:"retention_expiry" gorm:"index"` // epoch ms
}

// TableName specifies the table name for GORM
func (EmailBody) TableName() string {
	return "email_bodies"
}
