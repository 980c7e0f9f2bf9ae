package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swms-manager/internal/config"
	"github.com/swms-manager/internal/db"
	"github.com/swms-manager/internal/realtime"
	"github.com/swms-manager/internal/swms"
	"github.com/swms-manager/pkg/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type recordingPublisher struct {
	mu      sync.Mutex
	changes []realtime.Change
}

func (p *recordingPublisher) Publish(_ context.Context, c realtime.Change) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, c)
	return nil
}

func (p *recordingPublisher) types() []realtime.ChangeType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]realtime.ChangeType, 0, len(p.changes))
	for _, c := range p.changes {
		out = append(out, c.Type)
	}
	return out
}

type fixedDefaults swms.CompanyDetails

func (d fixedDefaults) CompanyDefaults() swms.CompanyDetails { return swms.CompanyDetails(d) }

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	cfg := config.InitializeDefaultConfig()
	cfg.Database.Driver = "sqlite"
	cfg.Database.DSN = filepath.Join(t.TempDir(), "swms.db")
	conn, err := db.Initialize(cfg, zap.NewNop())
	require.NoError(t, err)
	return conn
}

func newDocumentService(t *testing.T) (*DocumentService, *recordingPublisher) {
	pub := &recordingPublisher{}
	ds := NewDocumentService(newTestDB(t), pub,
		fixedDefaults{OrgName: "A & L Builders PTY LTD", AcnAbn: "95604167026"},
		zap.NewNop(), metrics.NewMetricsCollector())
	return ds, pub
}

func fitoutRecord(companyID string) swms.Record {
	return swms.Record{
		CompanyID:       companyID,
		ProjectName:     "Warehouse Fitout",
		ProjectLocation: "12 Dock Rd",
		Date:            "2024-03-01",
		Supervisor:      "Sam Lee",
		JobSteps: []swms.JobStep{{
			ID: 1, Name: "Excavation", InitialRisk: swms.RiskExtreme, ResidualRisk: swms.RiskMedium,
		}},
	}
}

func TestDocumentLifecycle(t *testing.T) {
	ctx := context.Background()
	ds, pub := newDocumentService(t)

	id, err := ds.InsertDocument(ctx, fitoutRecord("acme"))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	doc, err := ds.GetDocument(ctx, "acme", id)
	require.NoError(t, err)
	assert.Equal(t, "Warehouse Fitout", doc.ProjectName)
	assert.Equal(t, "12 Dock Rd", doc.Location)
	// empty company columns fall back to defaults
	assert.Equal(t, "A & L Builders PTY LTD", doc.Company.OrgName)
	require.Len(t, doc.JobSteps, 1)
	assert.Equal(t, swms.RiskExtreme, doc.JobSteps[0].InitialRisk)

	_, err = ds.GetDocument(ctx, "other-company", id)
	assert.ErrorIs(t, err, ErrNotFound)

	rec := fitoutRecord("acme")
	rec.Activity = ""
	rec.SupervisorPhone = ""
	rec.ProjectName = "Warehouse Fitout Stage 2"
	require.NoError(t, ds.UpdateDocument(ctx, id, rec))

	doc, err = ds.FindDocument(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Warehouse Fitout Stage 2", doc.ProjectName)

	assert.ErrorIs(t, ds.UpdateDocument(ctx, "missing", rec), ErrNotFound)

	require.NoError(t, ds.DeleteDocument(ctx, "acme", id))
	assert.ErrorIs(t, ds.DeleteDocument(ctx, "acme", id), ErrNotFound)

	assert.Equal(t, []realtime.ChangeType{
		realtime.DocumentCreated, realtime.DocumentUpdated, realtime.DocumentDeleted,
	}, pub.types())
}

func TestUpdateClearsFields(t *testing.T) {
	ctx := context.Background()
	ds, _ := newDocumentService(t)

	rec := fitoutRecord("acme")
	rec.Activity = "Install racking"
	id, err := ds.InsertDocument(ctx, rec)
	require.NoError(t, err)

	rec.Activity = ""
	require.NoError(t, ds.UpdateDocument(ctx, id, rec))

	doc, err := ds.GetDocument(ctx, "acme", id)
	require.NoError(t, err)
	assert.Empty(t, doc.Activity)
}

func TestListDocumentsNewestDateFirst(t *testing.T) {
	ctx := context.Background()
	ds, _ := newDocumentService(t)

	for _, date := range []string{"2024-01-05", "2024-03-01", "2024-02-10"} {
		rec := fitoutRecord("acme")
		rec.Date = date
		_, err := ds.InsertDocument(ctx, rec)
		require.NoError(t, err)
	}
	_, err := ds.InsertDocument(ctx, fitoutRecord("someone-else"))
	require.NoError(t, err)

	docs, err := ds.ListDocuments(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "2024-03-01", docs[0].Date)
	assert.Equal(t, "2024-02-10", docs[1].Date)
	assert.Equal(t, "2024-01-05", docs[2].Date)
}

func TestSignOffsNewestFirstAndOrphans(t *testing.T) {
	ctx := context.Background()
	ds, _ := newDocumentService(t)

	id, err := ds.InsertDocument(ctx, fitoutRecord("acme"))
	require.NoError(t, err)

	base := time.Date(2024, 3, 1, 7, 0, 0, 0, time.UTC)
	stored, err := ds.InsertSignOffs(ctx, id, []swms.SignOff{
		{Ref: swms.PendingRef("1"), WorkerName: "Ann", WorkerPosition: "Labourer", SignedAt: base, Method: swms.MethodManual},
		{Ref: swms.PendingRef("2"), WorkerName: "Bob", WorkerPosition: "Operator", SignedAt: base.Add(time.Hour), Method: swms.MethodManual},
	})
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.True(t, stored[0].Ref.IsPersisted())
	assert.Equal(t, "Ann", stored[0].WorkerName)
	assert.Equal(t, "Bob", stored[1].WorkerName)

	listed, err := ds.ListSignOffs(ctx, id)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "Bob", listed[0].WorkerName)
	assert.Equal(t, swms.MethodManual, listed[0].Method)

	require.NoError(t, ds.DeleteSignOff(ctx, id, stored[0].Ref.ID))
	assert.ErrorIs(t, ds.DeleteSignOff(ctx, id, stored[0].Ref.ID), ErrNotFound)

	orphans, err := ds.CountOrphanSignOffs(ctx)
	require.NoError(t, err)
	assert.Zero(t, orphans)

	// deleting the document leaves its sign-offs behind
	require.NoError(t, ds.DeleteDocument(ctx, "acme", id))
	orphans, err = ds.CountOrphanSignOffs(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), orphans)

	none, err := ds.InsertSignOffs(ctx, id, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSignOffServiceSubmit(t *testing.T) {
	ctx := context.Background()
	ds, _ := newDocumentService(t)
	svc := NewSignOffService(ds, zap.NewNop(), metrics.NewMetricsCollector())

	id, err := ds.InsertDocument(ctx, fitoutRecord("acme"))
	require.NoError(t, err)

	_, err = svc.Submit(ctx, id, swms.WorkerSubmission{WorkerName: "  ", WorkerPosition: "Labourer"})
	assert.ErrorIs(t, err, swms.ErrValidation)

	_, err = svc.Submit(ctx, "no-such-doc", swms.WorkerSubmission{WorkerName: "Ann", WorkerPosition: "Labourer"})
	assert.ErrorIs(t, err, ErrNotFound)

	for _, name := range []string{"Ann", "Ann"} {
		got, err := svc.Submit(ctx, id, swms.WorkerSubmission{WorkerName: " " + name + " ", WorkerPosition: "Labourer"})
		require.NoError(t, err)
		assert.Equal(t, name, got.WorkerName)
		assert.Equal(t, swms.MethodQR, got.Method)
		assert.True(t, got.Ref.IsPersisted())
	}

	listed, err := ds.ListSignOffs(ctx, id)
	require.NoError(t, err)
	assert.Len(t, listed, 2)

	public, err := svc.PublicDocument(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Warehouse Fitout", public.ProjectName)
	assert.Equal(t, "A & L Builders PTY LTD", public.CompanyName)

	_, err = svc.PublicDocument(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func newAuthService(t *testing.T, conn *gorm.DB) *AuthService {
	cfg := config.InitializeDefaultConfig().Security
	cfg.JWTSecret = "test-secret"
	return NewAuthService(conn, cfg, zap.NewNop(), metrics.NewMetricsCollector())
}

func TestRegisterLoginLogout(t *testing.T) {
	ctx := context.Background()
	conn := newTestDB(t)
	auth := newAuthService(t, conn)
	companies := NewCompanyService(conn, zap.NewNop())

	user, err := auth.Register(ctx, RegisterRequest{
		Email: "Alan@Example.com", Password: "s3cure-pass", FullName: "Alan Haley", CompanyName: "A & L Builders",
	})
	require.NoError(t, err)
	assert.Equal(t, "alan@example.com", user.Email)

	_, err = auth.Register(ctx, RegisterRequest{Email: "alan@example.com", Password: "s3cure-pass", CompanyName: "Dup"})
	assert.ErrorIs(t, err, ErrEmailTaken)
	_, err = auth.Register(ctx, RegisterRequest{Email: "b@example.com", Password: "short", CompanyName: "B"})
	assert.ErrorIs(t, err, ErrPasswordPolicy)
	_, err = auth.Register(ctx, RegisterRequest{Email: "c@example.com", Password: "long-enough"})
	assert.ErrorIs(t, err, swms.ErrValidation)

	result, err := auth.Login(ctx, "alan@example.com", "s3cure-pass", "127.0.0.1", "test")
	require.NoError(t, err)
	require.NotEmpty(t, result.Token)

	claims, err := auth.ValidateToken(ctx, result.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, user.CompanyID, claims.CompanyID)

	summary, err := companies.Summary(ctx, claims.UserID)
	require.NoError(t, err)
	assert.Equal(t, "A & L Builders", summary.Name)
	assert.Equal(t, "owner", summary.UserRole)
	assert.Equal(t, swms.SubscriptionTrial, summary.SubscriptionStatus)
	assert.True(t, summary.SubscriptionActive())
	assert.Equal(t, swms.DefaultBrandColor, summary.BrandColor())

	require.NoError(t, auth.Logout(ctx, result.Token))
	_, err = auth.ValidateToken(ctx, result.Token)
	assert.ErrorIs(t, err, ErrInvalidSession)

	_, err = auth.ValidateToken(ctx, "not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestLoginLockout(t *testing.T) {
	ctx := context.Background()
	conn := newTestDB(t)
	auth := newAuthService(t, conn)

	_, err := auth.Register(ctx, RegisterRequest{Email: "w@example.com", Password: "s3cure-pass", CompanyName: "W"})
	require.NoError(t, err)

	_, err = auth.Login(ctx, "nobody@example.com", "x", "", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	for i := 0; i < maxFailedAttempts; i++ {
		_, err = auth.Login(ctx, "w@example.com", "wrong-pass", "", "")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}
	_, err = auth.Login(ctx, "w@example.com", "s3cure-pass", "", "")
	assert.ErrorIs(t, err, ErrAccountLocked)

	auth.now = func() time.Time { return time.Now().Add(lockoutDuration + time.Minute) }
	_, err = auth.Login(ctx, "w@example.com", "s3cure-pass", "", "")
	assert.NoError(t, err)
}

func TestExpiredSessionsAreCleanedUp(t *testing.T) {
	ctx := context.Background()
	conn := newTestDB(t)
	auth := newAuthService(t, conn)

	_, err := auth.Register(ctx, RegisterRequest{Email: "e@example.com", Password: "s3cure-pass", CompanyName: "E"})
	require.NoError(t, err)
	result, err := auth.Login(ctx, "e@example.com", "s3cure-pass", "", "")
	require.NoError(t, err)

	auth.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	_, err = auth.ValidateToken(ctx, result.Token)
	assert.ErrorIs(t, err, ErrInvalidSession)

	n, err := auth.CleanupExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestCompanyUpdate(t *testing.T) {
	ctx := context.Background()
	conn := newTestDB(t)
	auth := newAuthService(t, conn)
	companies := NewCompanyService(conn, zap.NewNop())

	user, err := auth.Register(ctx, RegisterRequest{Email: "u@example.com", Password: "s3cure-pass", CompanyName: "U Pty"})
	require.NoError(t, err)

	bad := "blue"
	_, err = companies.Update(ctx, user.CompanyID, CompanyUpdate{Color: &bad})
	assert.ErrorIs(t, err, swms.ErrValidation)

	color, logo := "#DC2626", "https://cdn.example.com/logo.png"
	updated, err := companies.Update(ctx, user.CompanyID, CompanyUpdate{Color: &color, Logo: &logo})
	require.NoError(t, err)
	assert.Equal(t, "#dc2626", updated.Color)
	assert.Equal(t, logo, updated.Logo)
	assert.Equal(t, "U Pty", updated.Name)

	_, err = companies.Update(ctx, "missing", CompanyUpdate{Logo: &logo})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = companies.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserProfiles(t *testing.T) {
	ctx := context.Background()
	conn := newTestDB(t)
	auth := newAuthService(t, conn)
	users := NewUserService(conn, zap.NewNop())

	owner, err := auth.Register(ctx, RegisterRequest{Email: "o@example.com", Password: "s3cure-pass", FullName: "Olive", CompanyName: "O Pty"})
	require.NoError(t, err)
	_, err = auth.Register(ctx, RegisterRequest{Email: "x@example.com", Password: "s3cure-pass", CompanyName: "X Pty"})
	require.NoError(t, err)

	profile, err := users.Profile(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, "Olive", profile.FullName)
	assert.Equal(t, "owner", profile.Role)

	_, err = users.UpdateProfile(ctx, owner.ID, "  ")
	assert.ErrorIs(t, err, swms.ErrValidation)
	profile, err = users.UpdateProfile(ctx, owner.ID, "Olive Tran")
	require.NoError(t, err)
	assert.Equal(t, "Olive Tran", profile.FullName)

	members, err := users.ListCompanyUsers(ctx, owner.CompanyID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "o@example.com", members[0].Email)

	_, err = users.Profile(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
