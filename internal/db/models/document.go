package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/swms-manager/internal/swms"
	"gorm.io/gorm"
)

// Document is one row of swms_documents. Company details are flattened into
// columns; job steps and emergency contacts are stored as JSON.
type Document struct {
	ID                   string                 `gorm:"primaryKey;size:36"`
	CompanyID            string                 `gorm:"index;size:36"`
	ProjectName          string                 `gorm:"not null"`
	ProjectLocation      string                 `gorm:"not null"`
	Activity             string
	Date                 string                 `gorm:"index;size:10"`
	Supervisor           string                 `gorm:"not null"`
	SupervisorPhone      string
	JobSteps             []swms.JobStep         `gorm:"serializer:json;type:text"`
	EmergencyContacts    swms.EmergencyContacts `gorm:"serializer:json;type:text"`
	CompanyOrgName       string
	CompanyAcnAbn        string
	CompanyAddress       string
	CompanyContactName   string
	CompanyContactNumber string
	CompanyPreparedBy    string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (Document) TableName() string { return "swms_documents" }

func (d *Document) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}

func DocumentFromRecord(id string, r swms.Record) Document {
	return Document{
		ID:                   id,
		CompanyID:            r.CompanyID,
		ProjectName:          r.ProjectName,
		ProjectLocation:      r.ProjectLocation,
		Activity:             r.Activity,
		Date:                 r.Date,
		Supervisor:           r.Supervisor,
		SupervisorPhone:      r.SupervisorPhone,
		JobSteps:             r.JobSteps,
		EmergencyContacts:    r.EmergencyContacts,
		CompanyOrgName:       r.CompanyOrgName,
		CompanyAcnAbn:        r.CompanyAcnAbn,
		CompanyAddress:       r.CompanyAddress,
		CompanyContactName:   r.CompanyContactName,
		CompanyContactNumber: r.CompanyContactNumber,
		CompanyPreparedBy:    r.CompanyPreparedBy,
	}
}

func (d Document) Record() swms.Record {
	return swms.Record{
		CompanyID:            d.CompanyID,
		ProjectName:          d.ProjectName,
		ProjectLocation:      d.ProjectLocation,
		Activity:             d.Activity,
		Date:                 d.Date,
		Supervisor:           d.Supervisor,
		SupervisorPhone:      d.SupervisorPhone,
		JobSteps:             d.JobSteps,
		EmergencyContacts:    d.EmergencyContacts,
		CompanyOrgName:       d.CompanyOrgName,
		CompanyAcnAbn:        d.CompanyAcnAbn,
		CompanyAddress:       d.CompanyAddress,
		CompanyContactName:   d.CompanyContactName,
		CompanyContactNumber: d.CompanyContactNumber,
		CompanyPreparedBy:    d.CompanyPreparedBy,
	}
}

// Domain expands the row into a document without sign-offs.
func (d Document) Domain(defaults swms.CompanyDetails) swms.Document {
	doc := d.Record().Expand(d.ID, defaults)
	doc.CreatedAt = d.CreatedAt
	doc.UpdatedAt = d.UpdatedAt
	return doc
}
