package swms

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	DialBeforeYouDig = "1100"
	EmergencyNumber  = "000"
	DateLayout       = "2006-01-02"
)

var (
	ErrValidation   = errors.New("validation failed")
	ErrUnknownField = errors.New("unknown field")
)

type CompanyDetails struct {
	OrgName       string `json:"orgName" yaml:"orgName"`
	AcnAbn        string `json:"acnAbn" yaml:"acnAbn"`
	Address       string `json:"address,omitempty" yaml:"address"`
	ContactName   string `json:"contactName" yaml:"contactName"`
	ContactNumber string `json:"contactNumber" yaml:"contactNumber"`
	PreparedBy    string `json:"preparedBy" yaml:"preparedBy"`
}

type EmergencyContacts struct {
	NearestPolice  string `json:"nearestPolice"`
	PolicePhone    string `json:"policePhone"`
	NearestMedical string `json:"nearestMedical"`
	MedicalPhone   string `json:"medicalPhone"`
}

type JobStep struct {
	ID           int64    `json:"id"`
	Name         string   `json:"name"`
	Preparation  string   `json:"preparation"`
	Hazards      string   `json:"hazards"`
	InitialRisk  RiskRank `json:"initialRisk"`
	Controls     string   `json:"controls"`
	ResidualRisk RiskRank `json:"residualRisk"`
	Responsible  string   `json:"responsible"`
}

// Document is one Safe Work Method Statement. ID is empty until the first save.
type Document struct {
	ID              string            `json:"id"`
	CompanyID       string            `json:"companyId,omitempty"`
	ProjectName     string            `json:"projectName"`
	Location        string            `json:"location"`
	Activity        string            `json:"activity"`
	Date            string            `json:"date"`
	Supervisor      string            `json:"supervisor"`
	SupervisorPhone string            `json:"supervisorPhone"`
	Company         CompanyDetails    `json:"company"`
	Emergency       EmergencyContacts `json:"emergencyContacts"`
	JobSteps        []JobStep         `json:"jobSteps"`
	SignOffs        []SignOff         `json:"signOffs"`
	CreatedAt       time.Time         `json:"createdAt,omitempty"`
	UpdatedAt       time.Time         `json:"updatedAt,omitempty"`
}

// NewDocument returns an empty draft dated today with the company defaults filled in.
func NewDocument(today time.Time, defaults CompanyDetails) Document {
	return Document{
		Date:     today.Format(DateLayout),
		Company:  defaults,
		JobSteps: []JobStep{},
		SignOffs: []SignOff{},
	}
}

// ValidationError lists the required fields that were left empty.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	if len(e.Missing) == 1 && e.Missing[0] == "jobSteps" {
		return "please add at least one job step"
	}
	return "please fill in all required fields: " + strings.Join(e.Missing, ", ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Validate reports whether the document can be saved.
func (d *Document) Validate() error {
	var missing []string
	if strings.TrimSpace(d.ProjectName) == "" {
		missing = append(missing, "projectName")
	}
	if strings.TrimSpace(d.Location) == "" {
		missing = append(missing, "location")
	}
	if strings.TrimSpace(d.Supervisor) == "" {
		missing = append(missing, "supervisor")
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	if len(d.JobSteps) == 0 {
		return &ValidationError{Missing: []string{"jobSteps"}}
	}
	return nil
}

func (d *Document) SetField(name, value string) error {
	switch name {
	case "projectName":
		d.ProjectName = value
	case "location":
		d.Location = value
	case "activity":
		d.Activity = value
	case "date":
		d.Date = value
	case "supervisor":
		d.Supervisor = value
	case "supervisorPhone":
		d.SupervisorPhone = value
	default:
		return fmt.Errorf("%w: document.%s", ErrUnknownField, name)
	}
	return nil
}

func (c *CompanyDetails) SetField(name, value string) error {
	switch name {
	case "orgName":
		c.OrgName = value
	case "acnAbn":
		c.AcnAbn = value
	case "address":
		c.Address = value
	case "contactName":
		c.ContactName = value
	case "contactNumber":
		c.ContactNumber = value
	case "preparedBy":
		c.PreparedBy = value
	default:
		return fmt.Errorf("%w: company.%s", ErrUnknownField, name)
	}
	return nil
}

func (e *EmergencyContacts) SetField(name, value string) error {
	switch name {
	case "nearestPolice":
		e.NearestPolice = value
	case "policePhone":
		e.PolicePhone = value
	case "nearestMedical":
		e.NearestMedical = value
	case "medicalPhone":
		e.MedicalPhone = value
	default:
		return fmt.Errorf("%w: emergencyContacts.%s", ErrUnknownField, name)
	}
	return nil
}

// SetField updates one job step attribute. Risk fields take "1".."4"; any
// other value is rejected and the rank is left as it was.
func (s *JobStep) SetField(name, value string) error {
	switch name {
	case "name":
		s.Name = value
	case "preparation":
		s.Preparation = value
	case "hazards":
		s.Hazards = value
	case "controls":
		s.Controls = value
	case "responsible":
		s.Responsible = value
	case "initialRisk":
		r, err := ParseRiskRank(value)
		if err != nil {
			return fmt.Errorf("%w: jobStep.initialRisk: %v", ErrValidation, err)
		}
		s.InitialRisk = r
	case "residualRisk":
		r, err := ParseRiskRank(value)
		if err != nil {
			return fmt.Errorf("%w: jobStep.residualRisk: %v", ErrValidation, err)
		}
		s.ResidualRisk = r
	default:
		return fmt.Errorf("%w: jobStep.%s", ErrUnknownField, name)
	}
	return nil
}

// Clone returns a copy that shares no slices with d.
func (d Document) Clone() Document {
	out := d
	out.JobSteps = append([]JobStep(nil), d.JobSteps...)
	out.SignOffs = append([]SignOff(nil), d.SignOffs...)
	if out.JobSteps == nil {
		out.JobSteps = []JobStep{}
	}
	if out.SignOffs == nil {
		out.SignOffs = []SignOff{}
	}
	return out
}

// FileName is the download name used for the PDF export.
func (d *Document) FileName(ext string) string {
	var b strings.Builder
	for _, r := range d.ProjectName {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return fmt.Sprintf("SWMS_%s_%s.%s", b.String(), d.Date, ext)
}

// ShortID is the prefix printed in export footers.
func (d *Document) ShortID() string {
	if len(d.ID) > 8 {
		return d.ID[:8]
	}
	return d.ID
}
