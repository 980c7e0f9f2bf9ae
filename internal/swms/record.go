package swms

// Record is the flat shape written to the documents table: company and
// emergency details become named columns, job steps and emergency contacts
// travel as JSON.
type Record struct {
	CompanyID            string
	ProjectName          string
	ProjectLocation      string
	Activity             string
	Date                 string
	Supervisor           string
	SupervisorPhone      string
	JobSteps             []JobStep
	EmergencyContacts    EmergencyContacts
	CompanyOrgName       string
	CompanyAcnAbn        string
	CompanyAddress       string
	CompanyContactName   string
	CompanyContactNumber string
	CompanyPreparedBy    string
}

func Flatten(d Document, companyID string) Record {
	steps := append([]JobStep(nil), d.JobSteps...)
	if steps == nil {
		steps = []JobStep{}
	}
	return Record{
		CompanyID:            companyID,
		ProjectName:          d.ProjectName,
		ProjectLocation:      d.Location,
		Activity:             d.Activity,
		Date:                 d.Date,
		Supervisor:           d.Supervisor,
		SupervisorPhone:      d.SupervisorPhone,
		JobSteps:             steps,
		EmergencyContacts:    d.Emergency,
		CompanyOrgName:       d.Company.OrgName,
		CompanyAcnAbn:        d.Company.AcnAbn,
		CompanyAddress:       d.Company.Address,
		CompanyContactName:   d.Company.ContactName,
		CompanyContactNumber: d.Company.ContactNumber,
		CompanyPreparedBy:    d.Company.PreparedBy,
	}
}

// Expand rebuilds a document from a stored record. Empty company columns are
// filled from defaults, matching how older rows were written. Sign-offs are
// loaded separately.
func (r Record) Expand(id string, defaults CompanyDetails) Document {
	company := CompanyDetails{
		OrgName:       r.CompanyOrgName,
		AcnAbn:        r.CompanyAcnAbn,
		Address:       r.CompanyAddress,
		ContactName:   r.CompanyContactName,
		ContactNumber: r.CompanyContactNumber,
		PreparedBy:    r.CompanyPreparedBy,
	}
	if company.OrgName == "" {
		company.OrgName = defaults.OrgName
	}
	if company.AcnAbn == "" {
		company.AcnAbn = defaults.AcnAbn
	}
	steps := append([]JobStep(nil), r.JobSteps...)
	if steps == nil {
		steps = []JobStep{}
	}
	return Document{
		ID:              id,
		CompanyID:       r.CompanyID,
		ProjectName:     r.ProjectName,
		Location:        r.ProjectLocation,
		Activity:        r.Activity,
		Date:            r.Date,
		Supervisor:      r.Supervisor,
		SupervisorPhone: r.SupervisorPhone,
		Company:         company,
		Emergency:       r.EmergencyContacts,
		JobSteps:        steps,
		SignOffs:        []SignOff{},
	}
}
