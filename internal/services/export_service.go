package services

import (
	"context"
	"fmt"
	"time"

	"github.com/swms-manager/internal/archive"
	"github.com/swms-manager/internal/render"
	"github.com/swms-manager/internal/swms"
	"github.com/swms-manager/pkg/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	ContentTypePDF = "application/pdf"
	ContentTypePNG = "image/png"
)

type PosterFormat string

const (
	PosterPNG PosterFormat = "png"
	PosterPDF PosterFormat = "pdf"
)

// Export is a rendered artifact ready to be sent as a download.
type Export struct {
	FileName    string
	ContentType string
	Data        []byte
}

// ExportService renders documents and posters and optionally archives them.
type ExportService struct {
	docs    *DocumentService
	qr      render.QRSource
	origin  string
	qrSize  int
	archive archive.Store
	now     func() time.Time
	logger  *zap.Logger
	metrics *metrics.MetricsCollector
}

// NewExportService takes a nil archive when archiving is disabled.
func NewExportService(docs *DocumentService, qr render.QRSource, origin string, qrSize int, store archive.Store, logger *zap.Logger, metrics *metrics.MetricsCollector) *ExportService {
	if qrSize <= 0 {
		qrSize = 600
	}
	return &ExportService{
		docs:    docs,
		qr:      qr,
		origin:  origin,
		qrSize:  qrSize,
		archive: store,
		now:     time.Now,
		logger:  logger.With(zap.String("service", "export_service")),
		metrics: metrics,
	}
}

// load fetches the document and its sign-offs in parallel.
func (es *ExportService) load(ctx context.Context, companyID, id string) (swms.Document, []swms.SignOff, error) {
	var (
		doc      swms.Document
		signOffs []swms.SignOff
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		doc, err = es.docs.GetDocument(gctx, companyID, id)
		return err
	})
	g.Go(func() error {
		var err error
		signOffs, err = es.docs.ListSignOffs(gctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return swms.Document{}, nil, err
	}
	return doc, signOffs, nil
}

// DocumentPDF renders a saved document with its stored sign-offs.
func (es *ExportService) DocumentPDF(ctx context.Context, company swms.Company, id string) (Export, error) {
	doc, signOffs, err := es.load(ctx, company.ID, id)
	if err != nil {
		return Export{}, err
	}
	return es.RenderPDF(doc, company, signOffs)
}

// RenderPDF renders a document as given, saved or not.
func (es *ExportService) RenderPDF(doc swms.Document, company swms.Company, signOffs []swms.SignOff) (Export, error) {
	start := time.Now()
	data, err := render.PDF(doc, company, signOffs)
	if err != nil {
		es.metrics.IncrementCounter("exports", map[string]string{"kind": "pdf", "result": "error"})
		return Export{}, fmt.Errorf("failed to render PDF: %w", err)
	}
	es.metrics.Since("export_pdf", start)
	es.metrics.ObserveSize("export_pdf_bytes", float64(len(data)))
	es.metrics.IncrementCounter("exports", map[string]string{"kind": "pdf", "result": "ok"})
	return Export{FileName: doc.FileName("pdf"), ContentType: ContentTypePDF, Data: data}, nil
}

// Poster renders the QR sign-off poster for a saved document.
func (es *ExportService) Poster(ctx context.Context, company swms.Company, id string, format PosterFormat) (Export, error) {
	if format != PosterPNG && format != PosterPDF {
		return Export{}, fmt.Errorf("%w: unknown poster format %q", swms.ErrValidation, format)
	}
	doc, err := es.docs.GetDocument(ctx, company.ID, id)
	if err != nil {
		return Export{}, err
	}
	qr, err := es.qr.QRCode(ctx, render.SignOffURL(es.origin, doc.ID), es.qrSize)
	if err != nil {
		return Export{}, fmt.Errorf("failed to generate QR code: %w", err)
	}

	start := time.Now()
	out := Export{FileName: render.PosterFileName(doc, string(format))}
	switch format {
	case PosterPNG:
		out.ContentType = ContentTypePNG
		out.Data, err = render.PosterPNG(doc, company, qr)
	case PosterPDF:
		out.ContentType = ContentTypePDF
		out.Data, err = render.PosterPDF(doc, company, qr)
	}
	if err != nil {
		es.metrics.IncrementCounter("exports", map[string]string{"kind": "poster_" + string(format), "result": "error"})
		return Export{}, fmt.Errorf("failed to render poster: %w", err)
	}
	es.metrics.Since("export_poster", start)
	es.metrics.IncrementCounter("exports", map[string]string{"kind": "poster_" + string(format), "result": "ok"})
	return out, nil
}

// QRCode returns the sign-off QR code PNG for any existing document.
func (es *ExportService) QRCode(ctx context.Context, id string) ([]byte, error) {
	if _, err := es.docs.FindDocument(ctx, id); err != nil {
		return nil, err
	}
	img, err := es.qr.QRCode(ctx, render.SignOffURL(es.origin, id), es.qrSize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR code: %w", err)
	}
	return render.EncodePNG(img)
}

// Archive stores a copy of the export and returns its location.
func (es *ExportService) Archive(ctx context.Context, companyID string, exp Export) (string, error) {
	if es.archive == nil {
		return "", archive.ErrDisabled
	}
	loc, err := es.archive.Put(ctx, archive.Key(companyID, exp.FileName, es.now()), exp.ContentType, exp.Data)
	if err != nil {
		es.metrics.IncrementCounter("archives", map[string]string{"result": "error"})
		return "", fmt.Errorf("failed to archive export: %w", err)
	}
	es.metrics.IncrementCounter("archives", map[string]string{"result": "ok"})
	es.logger.Info("Export archived", zap.String("company_id", companyID), zap.String("file", exp.FileName))
	return loc, nil
}

func (es *ExportService) ArchiveEnabled() bool { return es.archive != nil }
