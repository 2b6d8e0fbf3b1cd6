package users

import (
	"strings"
	"time"
)

// Account captures one staff login. Accounts start unconfirmed; sign-in is
// refused until the confirmation token has been redeemed.
type Account struct {
	ID                string     `gorm:"column:id;primaryKey;size:64;not null"`
	Email             string     `gorm:"column:email;uniqueIndex;size:320;not null"`
	PasswordHash      []byte     `gorm:"column:password_hash;not null"`
	ConfirmationToken string     `gorm:"column:confirmation_token;size:64;index"`
	ConfirmedAt       *time.Time `gorm:"column:confirmed_at"`
	LastSeenAt        time.Time  `gorm:"column:last_seen_at;autoUpdateTime"`
	CreatedAt         time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing staff accounts.
func (Account) TableName() string {
	return "staff_accounts"
}

// Confirmed reports whether the account may sign in.
func (a Account) Confirmed() bool {
	return a.ConfirmedAt != nil
}

// normalizeEmail canonicalizes an address for lookup and uniqueness.
func normalizeEmail(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
