package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SubscriptionStatus string

const (
	SubscriptionTrial   SubscriptionStatus = "trial"
	SubscriptionActive  SubscriptionStatus = "active"
	SubscriptionExpired SubscriptionStatus = "expired"
)

type Company struct {
	ID                 string             `gorm:"primaryKey;size:36"`
	Name               string             `gorm:"not null"`
	AcnAbn             string
	Logo               string
	Color              string             `gorm:"not null;default:'#1e40af'"`
	SubscriptionStatus SubscriptionStatus `gorm:"not null;default:'trial'"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
	Users              []User
}

func (c *Company) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
