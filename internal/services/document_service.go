package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/swms-manager/internal/db/models"
	"github.com/swms-manager/internal/realtime"
	"github.com/swms-manager/internal/swms"
	"github.com/swms-manager/pkg/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DefaultsSource supplies the company details used to fill gaps in older rows.
type DefaultsSource interface {
	CompanyDefaults() swms.CompanyDetails
}

// DocumentService is the persistence gateway for SWMS documents and their
// sign-offs. Every document write is announced on the realtime publisher.
type DocumentService struct {
	db        *gorm.DB
	publisher realtime.Publisher
	defaults  DefaultsSource
	logger    *zap.Logger
	metrics   *metrics.MetricsCollector
}

func NewDocumentService(db *gorm.DB, publisher realtime.Publisher, defaults DefaultsSource, logger *zap.Logger, metrics *metrics.MetricsCollector) *DocumentService {
	return &DocumentService{
		db:        db,
		publisher: publisher,
		defaults:  defaults,
		logger:    logger.With(zap.String("service", "document_service")),
		metrics:   metrics,
	}
}

func (ds *DocumentService) companyDefaults() swms.CompanyDetails {
	if ds.defaults == nil {
		return swms.CompanyDetails{}
	}
	return ds.defaults.CompanyDefaults()
}

// ListDocuments returns the company's documents, newest date first.
func (ds *DocumentService) ListDocuments(ctx context.Context, companyID string) ([]swms.Document, error) {
	start := time.Now()
	defer ds.metrics.Since("document_service.list", start)

	var rows []models.Document
	if err := ds.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("date DESC").
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	defaults := ds.companyDefaults()
	docs := make([]swms.Document, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, row.Domain(defaults))
	}
	return docs, nil
}

// GetDocument loads one document scoped to a company.
func (ds *DocumentService) GetDocument(ctx context.Context, companyID, id string) (swms.Document, error) {
	var row models.Document
	err := ds.db.WithContext(ctx).First(&row, "id = ? AND company_id = ?", id, companyID).Error
	if err != nil {
		return swms.Document{}, notFound(err, "document %s", id)
	}
	return row.Domain(ds.companyDefaults()), nil
}

// FindDocument loads a document by id alone, for the public sign-off page.
func (ds *DocumentService) FindDocument(ctx context.Context, id string) (swms.Document, error) {
	var row models.Document
	if err := ds.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return swms.Document{}, notFound(err, "document %s", id)
	}
	return row.Domain(ds.companyDefaults()), nil
}

func (ds *DocumentService) InsertDocument(ctx context.Context, rec swms.Record) (string, error) {
	row := models.DocumentFromRecord("", rec)
	if err := ds.db.WithContext(ctx).Create(&row).Error; err != nil {
		return "", fmt.Errorf("failed to insert document: %w", err)
	}

	ds.metrics.IncrementCounter("documents_saved", map[string]string{"op": "insert"})
	ds.logger.Info("Document created",
		zap.String("doc_id", row.ID),
		zap.String("company_id", rec.CompanyID),
		zap.Int("job_steps", len(rec.JobSteps)))
	ds.announce(ctx, realtime.DocumentCreated, row.ID, rec.CompanyID)
	return row.ID, nil
}

// UpdateDocument overwrites every column of an existing row, including
// fields that were cleared.
func (ds *DocumentService) UpdateDocument(ctx context.Context, id string, rec swms.Record) error {
	row := models.DocumentFromRecord(id, rec)
	result := ds.db.WithContext(ctx).
		Model(&models.Document{ID: id}).
		Where("company_id = ?", rec.CompanyID).
		Select("*").
		Omit("id", "created_at").
		Updates(&row)
	if result.Error != nil {
		return fmt.Errorf("failed to update document %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: document %s", ErrNotFound, id)
	}

	ds.metrics.IncrementCounter("documents_saved", map[string]string{"op": "update"})
	ds.logger.Info("Document updated", zap.String("doc_id", id), zap.String("company_id", rec.CompanyID))
	ds.announce(ctx, realtime.DocumentUpdated, id, rec.CompanyID)
	return nil
}

// DeleteDocument removes the row. Sign-offs are left in place.
func (ds *DocumentService) DeleteDocument(ctx context.Context, companyID, id string) error {
	result := ds.db.WithContext(ctx).
		Where("id = ? AND company_id = ?", id, companyID).
		Delete(&models.Document{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete document %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: document %s", ErrNotFound, id)
	}

	ds.metrics.IncrementCounter("documents_deleted", nil)
	ds.logger.Info("Document deleted", zap.String("doc_id", id), zap.String("company_id", companyID))
	ds.announce(ctx, realtime.DocumentDeleted, id, companyID)
	return nil
}

// ListSignOffs returns a document's sign-offs, newest first.
func (ds *DocumentService) ListSignOffs(ctx context.Context, swmsID string) ([]swms.SignOff, error) {
	var rows []models.SignOff
	if err := ds.db.WithContext(ctx).
		Where("swms_id = ?", swmsID).
		Order("signed_at DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list sign-offs for %s: %w", swmsID, err)
	}

	out := make([]swms.SignOff, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Domain())
	}
	return out, nil
}

// InsertSignOffs stores entries in one batch and returns them, in input
// order, with their persisted refs.
func (ds *DocumentService) InsertSignOffs(ctx context.Context, swmsID string, entries []swms.SignOff) ([]swms.SignOff, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	rows := make([]models.SignOff, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, models.SignOffFromDomain(swmsID, e))
	}
	if err := ds.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to insert sign-offs for %s: %w", swmsID, err)
	}

	out := make([]swms.SignOff, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Domain())
	}
	ds.metrics.AddCounter("sign_offs_recorded", nil, int64(len(out)))
	return out, nil
}

func (ds *DocumentService) DeleteSignOff(ctx context.Context, swmsID, id string) error {
	result := ds.db.WithContext(ctx).
		Where("id = ? AND swms_id = ?", id, swmsID).
		Delete(&models.SignOff{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete sign-off %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: sign-off %s", ErrNotFound, id)
	}
	ds.logger.Info("Sign-off deleted", zap.String("doc_id", swmsID), zap.String("sign_off_id", id))
	return nil
}

// CountOrphanSignOffs counts sign-offs whose document no longer exists.
func (ds *DocumentService) CountOrphanSignOffs(ctx context.Context) (int64, error) {
	var count int64
	err := ds.db.WithContext(ctx).
		Model(&models.SignOff{}).
		Where("swms_id NOT IN (?)", ds.db.Model(&models.Document{}).Select("id")).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count orphaned sign-offs: %w", err)
	}
	return count, nil
}

func (ds *DocumentService) announce(ctx context.Context, kind realtime.ChangeType, id, companyID string) {
	if ds.publisher == nil {
		return
	}
	change := realtime.Change{Type: kind, DocumentID: id, CompanyID: companyID, At: time.Now()}
	if err := ds.publisher.Publish(ctx, change); err != nil {
		ds.logger.Warn("Failed to publish document change", zap.String("doc_id", id), zap.Error(err))
	}
}

func notFound(err error, format string, args ...interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
	}
	return fmt.Errorf("failed to load %s: %w", fmt.Sprintf(format, args...), err)
}
