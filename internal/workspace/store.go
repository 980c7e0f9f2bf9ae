package workspace

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/swms-manager/internal/swms"
	"github.com/swms-manager/pkg/metrics"
	"go.uber.org/zap"
)

var (
	ErrUnknownField = swms.ErrUnknownField
	ErrNoCompany    = errors.New("no active company")
)

// Gateway is the persistence port the store saves through.
type Gateway interface {
	ListDocuments(ctx context.Context, companyID string) ([]swms.Document, error)
	InsertDocument(ctx context.Context, rec swms.Record) (string, error)
	UpdateDocument(ctx context.Context, id string, rec swms.Record) error
	DeleteDocument(ctx context.Context, companyID, id string) error
	ListSignOffs(ctx context.Context, swmsID string) ([]swms.SignOff, error)
	InsertSignOffs(ctx context.Context, swmsID string, entries []swms.SignOff) ([]swms.SignOff, error)
	DeleteSignOff(ctx context.Context, swmsID, id string) error
}

// Deps are the collaborators a store is built with.
type Deps struct {
	Gateway  Gateway
	Company  swms.Company
	Defaults swms.CompanyDetails
	IDs      *swms.IDGenerator
	Now      func() time.Time
	Logger   *zap.Logger
	Metrics  *metrics.MetricsCollector
}

// SignOffEntry is a sign-off typed in by the supervisor.
type SignOffEntry struct {
	WorkerName     string `json:"name"`
	WorkerCompany  string `json:"company"`
	WorkerPosition string `json:"position"`
}

// SaveResult reports the outcome of Save. Saved is true whenever the
// document itself was written, even if Warning is set.
type SaveResult struct {
	Saved   bool   `json:"saved"`
	ID      string `json:"id,omitempty"`
	Created bool   `json:"created"`
	Warning string `json:"warning,omitempty"`
	Err     error  `json:"-"`
}

// State is a read-only copy of everything a client renders.
type State struct {
	View    View            `json:"view"`
	Draft   swms.Document   `json:"draft"`
	Viewing *swms.Document  `json:"viewing,omitempty"`
	Saved   []swms.Document `json:"saved"`
	Error   string          `json:"error,omitempty"`
	Notice  string          `json:"notice,omitempty"`
}

// Store holds one user's in-progress document, their company's saved list
// and the current view. All methods are safe for concurrent use.
type Store struct {
	mu       storeLock
	gw       Gateway
	company  swms.Company
	defaults swms.CompanyDetails
	ids      *swms.IDGenerator
	now      func() time.Time
	logger   *zap.Logger
	metrics  *metrics.MetricsCollector

	view    *ViewController
	draft   swms.Document
	viewing *swms.Document
	saved   []swms.Document
	errMsg  string
	notice  string
}

func NewStore(deps Deps) *Store {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.IDs == nil {
		deps.IDs = swms.NewIDGenerator(deps.Now)
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewMetricsCollector()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		mu:       newStoreLock(),
		gw:       deps.Gateway,
		company:  deps.Company,
		defaults: deps.Defaults,
		ids:      deps.IDs,
		now:      deps.Now,
		logger:   logger.With(zap.String("component", "workspace"), zap.String("company_id", deps.Company.ID)),
		metrics:  deps.Metrics,
		view:     NewViewController(),
		draft:    swms.NewDocument(deps.Now(), deps.Defaults),
		saved:    []swms.Document{},
	}
}

func (s *Store) CompanyID() string {
	return s.Company().ID
}

func (s *Store) Company() swms.Company {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.company
}

// SetCompany swaps in refreshed company details, e.g. after branding changes.
func (s *Store) SetCompany(c swms.Company) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.company = c
}

func (s *Store) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view.Current()
}

// State copies out everything the client needs to render.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved := make([]swms.Document, 0, len(s.saved))
	for _, d := range s.saved {
		saved = append(saved, d.Clone())
	}
	st := State{
		View:   s.view.Current(),
		Draft:  s.draft.Clone(),
		Saved:  saved,
		Error:  s.errMsg,
		Notice: s.notice,
	}
	if s.viewing != nil {
		v := s.viewing.Clone()
		st.Viewing = &v
	}
	return st
}

// Snapshot is a deep copy of the draft for renderers.
func (s *Store) Snapshot() swms.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft.Clone()
}

// Saved returns a copy of the saved list.
func (s *Store) Saved() []swms.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]swms.Document, 0, len(s.saved))
	for _, d := range s.saved {
		out = append(out, d.Clone())
	}
	return out
}

func (s *Store) clearMessages() {
	s.errMsg = ""
	s.notice = ""
}

// StartNew opens an empty form with today's date and the company defaults.
func (s *Store) StartNew() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.view.Go(ViewForm); err != nil {
		return err
	}
	s.clearMessages()
	s.viewing = nil
	s.draft = swms.NewDocument(s.now(), s.defaults)
	return nil
}

// StartEdit opens doc in the form with its stored sign-offs, newest first.
// If the sign-offs cannot be fetched the form still opens with none and the
// error message is set.
func (s *Store) StartEdit(ctx context.Context, doc swms.Document) error {
	if err := s.mu.LockContext(ctx); err != nil {
		return err
	}
	defer s.mu.Unlock()

	if !s.view.CanGo(ViewForm) {
		return s.view.Go(ViewForm)
	}
	s.clearMessages()

	draft := doc.Clone()
	draft.SignOffs = []swms.SignOff{}
	if doc.ID != "" {
		signOffs, err := s.gw.ListSignOffs(ctx, doc.ID)
		if err != nil {
			s.errMsg = "Error loading sign-offs for this SWMS. Please try again."
			s.logger.Error("Failed to load sign-offs", zap.String("doc_id", doc.ID), zap.Error(err))
		} else {
			draft.SignOffs = signOffs
		}
	}

	s.draft = draft
	s.viewing = nil
	return s.view.Go(ViewForm)
}

// Open shows a saved document read-only.
func (s *Store) Open(doc swms.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.view.Go(ViewView); err != nil {
		return err
	}
	s.clearMessages()
	d := doc.Clone()
	s.viewing = &d
	return nil
}

// Cancel returns to the list and discards the draft.
func (s *Store) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.view.Go(ViewList); err != nil {
		return err
	}
	s.viewing = nil
	s.draft = swms.NewDocument(s.now(), s.defaults)
	return nil
}

func (s *Store) UpdateField(name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft.SetField(name, value)
}

func (s *Store) UpdateCompanyField(name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft.Company.SetField(name, value)
}

func (s *Store) UpdateEmergencyField(name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft.Emergency.SetField(name, value)
}

// AddJobStepFromTemplate appends a copy of t with a fresh id.
func (s *Store) AddJobStepFromTemplate(t swms.Template) swms.JobStep {
	s.mu.Lock()
	defer s.mu.Unlock()

	step := t.Step(s.ids.Next())
	s.draft.JobSteps = append(s.draft.JobSteps, step)
	return step
}

// AddJobStepsFromTemplates appends one step per template, in order.
func (s *Store) AddJobStepsFromTemplates(ts []swms.Template) []swms.JobStep {
	s.mu.Lock()
	defer s.mu.Unlock()

	steps := make([]swms.JobStep, 0, len(ts))
	for _, t := range ts {
		steps = append(steps, t.Step(s.ids.Next()))
	}
	s.draft.JobSteps = append(s.draft.JobSteps, steps...)
	return steps
}

func (s *Store) AddCustomJobStep() swms.JobStep {
	s.mu.Lock()
	defer s.mu.Unlock()

	step := swms.BlankStep(s.ids.Next())
	s.draft.JobSteps = append(s.draft.JobSteps, step)
	return step
}

// UpdateJobStep is a no-op for an unknown id.
func (s *Store) UpdateJobStep(id int64, field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.draft.JobSteps {
		if s.draft.JobSteps[i].ID == id {
			return s.draft.JobSteps[i].SetField(field, value)
		}
	}
	return nil
}

func (s *Store) RemoveJobStep(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	steps := s.draft.JobSteps[:0:0]
	for _, st := range s.draft.JobSteps {
		if st.ID != id {
			steps = append(steps, st)
		}
	}
	s.draft.JobSteps = steps
}

// AddSignOff appends a pending manual sign-off. It is written on the next Save.
func (s *Store) AddSignOff(entry SignOffEntry) swms.SignOff {
	s.mu.Lock()
	defer s.mu.Unlock()

	so := swms.SignOff{
		Ref:            swms.PendingRef(s.ids.NextString()),
		WorkerName:     entry.WorkerName,
		WorkerCompany:  entry.WorkerCompany,
		WorkerPosition: entry.WorkerPosition,
		SignedAt:       s.now().UTC(),
		Method:         swms.MethodManual,
	}
	s.draft.SignOffs = append(s.draft.SignOffs, so)
	return so
}

// UpdateSignOff is a no-op for an unknown ref.
func (s *Store) UpdateSignOff(ref swms.SignOffRef, field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.draft.SignOffs {
		if s.draft.SignOffs[i].Ref == ref {
			return s.draft.SignOffs[i].SetField(field, value)
		}
	}
	return nil
}

// RemoveSignOff drops a sign-off from the draft. Persisted sign-offs are
// deleted from the database first and stay in the draft if that fails.
func (s *Store) RemoveSignOff(ctx context.Context, ref swms.SignOffRef) error {
	if err := s.mu.LockContext(ctx); err != nil {
		return err
	}
	defer s.mu.Unlock()

	if ref.IsPersisted() {
		if err := s.gw.DeleteSignOff(ctx, s.draft.ID, ref.ID); err != nil {
			s.errMsg = "Error removing sign-off. Please try again."
			s.logger.Error("Failed to delete sign-off", zap.String("sign_off_id", ref.ID), zap.Error(err))
			return fmt.Errorf("failed to remove sign-off: %w", err)
		}
	}

	kept := s.draft.SignOffs[:0:0]
	for _, so := range s.draft.SignOffs {
		if so.Ref != ref {
			kept = append(kept, so)
		}
	}
	s.draft.SignOffs = kept
	return nil
}

// Save validates and writes the draft, then stores any pending sign-offs
// against it. It never panics; failures are reported in the result.
func (s *Store) Save(ctx context.Context) (result SaveResult) {
	if err := s.mu.LockContext(ctx); err != nil {
		return SaveResult{Err: err}
	}
	defer s.mu.Unlock()

	start := s.now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Save panicked", zap.Any("panic", r))
			s.errMsg = "Error saving SWMS document. Please try again."
			result = SaveResult{Err: fmt.Errorf("save failed: %v", r)}
		}
		outcome := "ok"
		if !result.Saved {
			outcome = "failed"
		} else if result.Warning != "" {
			outcome = "partial"
		}
		s.metrics.IncrementCounter("workspace.saves", map[string]string{"result": outcome})
		s.metrics.ObserveLatency("workspace.save", time.Since(start))
	}()

	s.clearMessages()
	if err := s.draft.Validate(); err != nil {
		s.errMsg = err.Error()
		return SaveResult{Err: err}
	}
	if s.company.ID == "" {
		s.errMsg = "No company found. Please sign out and sign in again."
		return SaveResult{Err: ErrNoCompany}
	}

	rec := swms.Flatten(s.draft, s.company.ID)
	created := s.draft.ID == ""
	id := s.draft.ID
	if created {
		newID, err := s.gw.InsertDocument(ctx, rec)
		if err != nil {
			s.errMsg = "Error saving SWMS document. Please try again."
			s.logger.Error("Failed to insert document", zap.Error(err))
			return SaveResult{Err: err}
		}
		id = newID
	} else if err := s.gw.UpdateDocument(ctx, id, rec); err != nil {
		s.errMsg = "Error saving SWMS document. Please try again."
		s.logger.Error("Failed to update document", zap.String("doc_id", id), zap.Error(err))
		return SaveResult{Err: err}
	}
	s.draft.ID = id
	s.draft.CompanyID = s.company.ID

	result = SaveResult{Saved: true, ID: id, Created: created}

	_, pending := swms.PartitionSignOffs(s.draft.SignOffs)
	if len(pending) > 0 {
		stored, err := s.gw.InsertSignOffs(ctx, id, pending)
		if err != nil {
			result.Warning = "SWMS saved, but there was an error saving some sign-offs."
			s.logger.Warn("Failed to save sign-offs", zap.String("doc_id", id), zap.Int("pending", len(pending)), zap.Error(err))
		} else {
			s.replacePending(pending, stored)
		}
	}

	if err := s.reloadLocked(ctx); err != nil {
		s.logger.Warn("Failed to reload list after save", zap.Error(err))
	}

	// A partial failure keeps the draft open so the pending sign-offs can be retried.
	if !created && result.Warning == "" {
		if err := s.view.Go(ViewList); err != nil {
			s.logger.Warn("Unexpected view after save", zap.Error(err))
		}
		s.draft = swms.NewDocument(s.now(), s.defaults)
	}
	s.notice = "SWMS saved successfully."
	if result.Warning != "" {
		s.notice = result.Warning
	}
	s.logger.Info("SWMS saved", zap.String("doc_id", id), zap.Bool("created", created))
	return result
}

// replacePending swaps pending entries for the stored rows, matched by
// position, so a later save does not insert them again.
func (s *Store) replacePending(pending, stored []swms.SignOff) {
	byRef := make(map[swms.SignOffRef]swms.SignOff, len(pending))
	for i, p := range pending {
		if i < len(stored) {
			byRef[p.Ref] = stored[i]
		}
	}
	for i, so := range s.draft.SignOffs {
		if repl, ok := byRef[so.Ref]; ok {
			s.draft.SignOffs[i] = repl
		}
	}
}

// Delete removes a saved document. Its sign-offs are not removed.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.mu.LockContext(ctx); err != nil {
		return err
	}
	defer s.mu.Unlock()

	s.clearMessages()
	if err := s.gw.DeleteDocument(ctx, s.company.ID, id); err != nil {
		s.errMsg = "Error deleting SWMS document. Please try again."
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if s.viewing != nil && s.viewing.ID == id {
		s.viewing = nil
	}
	if err := s.reloadLocked(ctx); err != nil {
		s.logger.Warn("Failed to reload list after delete", zap.Error(err))
	}
	return nil
}

// Reload replaces the saved list with the company's documents.
func (s *Store) Reload(ctx context.Context) error {
	if err := s.mu.LockContext(ctx); err != nil {
		return err
	}
	defer s.mu.Unlock()
	return s.reloadLocked(ctx)
}

// ReloadIfListing reloads only while the list is on screen, so a change
// made elsewhere never disturbs an open form. It reports whether it ran.
func (s *Store) ReloadIfListing(ctx context.Context) (bool, error) {
	if err := s.mu.LockContext(ctx); err != nil {
		return false, err
	}
	defer s.mu.Unlock()

	if s.view.Current() != ViewList {
		return false, nil
	}
	return true, s.reloadLocked(ctx)
}

func (s *Store) reloadLocked(ctx context.Context) error {
	if s.company.ID == "" {
		s.saved = []swms.Document{}
		return nil
	}
	docs, err := s.gw.ListDocuments(ctx, s.company.ID)
	if err != nil {
		s.errMsg = "Error loading SWMS documents. Please check your connection."
		return fmt.Errorf("failed to load documents: %w", err)
	}
	s.saved = docs
	return nil
}
