package models

import "time"

// Session backs one issued JWT; ID is the token's jti. Logging out revokes
// the row so the token stops validating before it expires.
type Session struct {
	ID        string `gorm:"primaryKey;size:36"`
	UserID    string `gorm:"index;size:36;not null"`
	IPAddress string
	UserAgent string
	ExpiresAt time.Time `gorm:"index;not null"`
	RevokedAt *time.Time
	CreatedAt time.Time
}

func (s Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}
