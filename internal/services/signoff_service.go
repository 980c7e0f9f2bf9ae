package services

import (
	"context"
	"fmt"
	"time"

	"github.com/swms-manager/internal/swms"
	"github.com/swms-manager/pkg/metrics"
	"go.uber.org/zap"
)

// SignOffService backs the unauthenticated worker sign-off page.
type SignOffService struct {
	docs    *DocumentService
	now     func() time.Time
	logger  *zap.Logger
	metrics *metrics.MetricsCollector
}

func NewSignOffService(docs *DocumentService, logger *zap.Logger, metrics *metrics.MetricsCollector) *SignOffService {
	return &SignOffService{
		docs:    docs,
		now:     time.Now,
		logger:  logger.With(zap.String("service", "signoff_service")),
		metrics: metrics,
	}
}

// PublicDocument returns the read-only view shown to workers.
func (s *SignOffService) PublicDocument(ctx context.Context, id string) (PublicDocument, error) {
	doc, err := s.docs.FindDocument(ctx, id)
	if err != nil {
		return PublicDocument{}, err
	}
	return NewPublicDocument(doc), nil
}

// Submit records one worker sign-off made through the QR code.
func (s *SignOffService) Submit(ctx context.Context, swmsID string, sub swms.WorkerSubmission) (swms.SignOff, error) {
	sub = sub.Normalize()
	if err := sub.Validate(); err != nil {
		return swms.SignOff{}, err
	}
	if _, err := s.docs.FindDocument(ctx, swmsID); err != nil {
		return swms.SignOff{}, err
	}

	stored, err := s.docs.InsertSignOffs(ctx, swmsID, []swms.SignOff{{
		WorkerName:     sub.WorkerName,
		WorkerCompany:  sub.WorkerCompany,
		WorkerPosition: sub.WorkerPosition,
		SignedAt:       s.now().UTC(),
		Method:         swms.MethodQR,
	}})
	if err != nil {
		s.metrics.IncrementCounter("public_sign_offs", map[string]string{"result": "error"})
		return swms.SignOff{}, fmt.Errorf("failed to record sign-off: %w", err)
	}

	s.metrics.IncrementCounter("public_sign_offs", map[string]string{"result": "ok"})
	s.logger.Info("Worker signed off",
		zap.String("doc_id", swmsID),
		zap.String("sign_off_id", stored[0].Ref.ID))
	return stored[0], nil
}

// PublicDocument carries only the fields a worker may see.
type PublicDocument struct {
	ID                string                 `json:"id"`
	ProjectName       string                 `json:"projectName"`
	Location          string                 `json:"location"`
	Activity          string                 `json:"activity"`
	Date              string                 `json:"date"`
	Supervisor        string                 `json:"supervisor"`
	SupervisorPhone   string                 `json:"supervisorPhone"`
	CompanyName       string                 `json:"companyName"`
	CompanyAcnAbn     string                 `json:"companyAcnAbn"`
	JobSteps          []swms.JobStep         `json:"jobSteps"`
	EmergencyContacts swms.EmergencyContacts `json:"emergencyContacts"`
}

func NewPublicDocument(doc swms.Document) PublicDocument {
	return PublicDocument{
		ID:                doc.ID,
		ProjectName:       doc.ProjectName,
		Location:          doc.Location,
		Activity:          doc.Activity,
		Date:              doc.Date,
		Supervisor:        doc.Supervisor,
		SupervisorPhone:   doc.SupervisorPhone,
		CompanyName:       doc.Company.OrgName,
		CompanyAcnAbn:     doc.Company.AcnAbn,
		JobSteps:          doc.JobSteps,
		EmergencyContacts: doc.Emergency,
	}
}
