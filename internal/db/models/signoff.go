package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/swms-manager/internal/swms"
	"gorm.io/gorm"
)

// SignOff is a worker acknowledgement. Rows are not cascaded when their
// document is deleted; the orphan audit job reports them.
type SignOff struct {
	ID             string    `gorm:"primaryKey;size:36"`
	SWMSID         string    `gorm:"column:swms_id;index;size:36;not null"`
	WorkerName     string    `gorm:"not null"`
	WorkerCompany  string
	WorkerPosition string    `gorm:"not null"`
	SignedAt       time.Time `gorm:"index;not null"`
	SignOffMethod  string    `gorm:"not null;default:'manual'"`
	CreatedAt      time.Time
}

func (SignOff) TableName() string { return "swms_sign_offs" }

func (s *SignOff) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

func SignOffFromDomain(swmsID string, s swms.SignOff) SignOff {
	return SignOff{
		SWMSID:         swmsID,
		WorkerName:     s.WorkerName,
		WorkerCompany:  s.WorkerCompany,
		WorkerPosition: s.WorkerPosition,
		SignedAt:       s.SignedAt,
		SignOffMethod:  string(s.Method),
	}
}

func (s SignOff) Domain() swms.SignOff {
	return swms.SignOff{
		Ref:            swms.PersistedRef(s.ID),
		WorkerName:     s.WorkerName,
		WorkerCompany:  s.WorkerCompany,
		WorkerPosition: s.WorkerPosition,
		SignedAt:       s.SignedAt,
		Method:         swms.SignOffMethod(s.SignOffMethod),
	}
}
