package projects

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"buildflow/project-portal/project-portal-backend/internal/schema"
)

// ReferenceSource provides normalized employees and locations
type ReferenceSource interface {
	Reference(ctx context.Context) (ReferenceData, error)
}

// ChangeNotifier tells connected clients that the project list changed
type ChangeNotifier interface {
	NotifyProjectsChanged(projectID int64, notice, status string) error
}

// Session is the explicit state of one client: who it acts as, what it is
// editing and what is waiting for confirmation.
type Session struct {
	ID         string
	Role       schema.Role
	SearchTerm string
	Editing    *Project
	Pending    *Pending
	UpdatedAt  time.Time

	// file fields removed from the open form, applied on the next submission
	cleared []string
	mu      sync.Mutex
}

func (sess *Session) reset() {
	sess.Editing = nil
	sess.Pending = nil
	sess.cleared = nil
}

// EditForm is an open edit session as the client renders it
type EditForm struct {
	Role     schema.Role    `json:"role"`
	Project  ProjectView    `json:"project"`
	Fields   []schema.Field `json:"fields"`
	ReadOnly bool           `json:"read_only"`
}

// Outcome is the answer to any session operation that may change data.
// View is the freshly re-fetched projection after a mutation.
type Outcome struct {
	Result *Result `json:"result,omitempty"`
	View   *View   `json:"view,omitempty"`
}

// Service drives the workflow for many client sessions
type Service struct {
	repo      Repository
	engine    *Engine
	registry  *schema.Registry
	reference ReferenceSource
	notifier  ChangeNotifier
	gate      *SecretGate
	logger    *zap.Logger

	mu         sync.Mutex
	sessions   map[string]*Session
	sessionTTL time.Duration
}

// NewService wires the workflow service
func NewService(
	repo Repository,
	engine *Engine,
	registry *schema.Registry,
	reference ReferenceSource,
	notifier ChangeNotifier,
	gate *SecretGate,
	sessionTTL time.Duration,
	logger *zap.Logger,
) *Service {
	return &Service{
		repo:       repo,
		engine:     engine,
		registry:   registry,
		reference:  reference,
		notifier:   notifier,
		gate:       gate,
		logger:     logger,
		sessions:   make(map[string]*Session),
		sessionTTL: sessionTTL,
	}
}

// StartSession returns the session for id, creating a fresh one when id is
// unknown or expired. New sessions start as survey.
func (s *Service) StartSession(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if sess, ok := s.sessions[id]; ok {
		if s.sessionTTL <= 0 || now.Sub(sess.UpdatedAt) < s.sessionTTL {
			sess.UpdatedAt = now
			return sess
		}
		delete(s.sessions, id)
	}

	sess := &Session{ID: uuid.New().String(), Role: schema.RoleSurvey, UpdatedAt: now}
	s.sessions[sess.ID] = sess
	return sess
}

// PruneSessions drops sessions idle for longer than the TTL
func (s *Service) PruneSessions() int {
	if s.sessionTTL <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if time.Since(sess.UpdatedAt) >= s.sessionTTL {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// ChangeRole switches the acting role, dropping any edit, pending action and search
func (s *Service) ChangeRole(ctx context.Context, sess *Session, role schema.Role) (*View, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.Role = role
	sess.SearchTerm = ""
	sess.reset()
	return s.view(ctx, sess)
}

// View re-fetches the collection and projects it for the session's role
func (s *Service) View(ctx context.Context, sess *Session) (*View, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return s.view(ctx, sess)
}

// Search sets the admin search term; other roles ignore it
func (s *Service) Search(ctx context.Context, sess *Session, term string) (*View, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.SearchTerm = term
	return s.view(ctx, sess)
}

// ClearSearch removes the search term
func (s *Service) ClearSearch(ctx context.Context, sess *Session) (*View, error) {
	return s.Search(ctx, sess, "")
}

// OpenNew starts editing a new project. Admin must present the shared password.
func (s *Service) OpenNew(ctx context.Context, sess *Session, password string) (*EditForm, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	switch sess.Role {
	case schema.RoleSurvey:
	case schema.RoleAdmin:
		if !s.gate.Check(password) {
			return nil, &PermissionError{Role: string(sess.Role), Reason: "incorrect password"}
		}
	default:
		return nil, &PermissionError{Role: string(sess.Role), Reason: "only survey and admin can create projects"}
	}

	sess.reset()
	sess.Editing = &Project{Fields: Fields{}}
	return s.form(ctx, sess)
}

// Open starts editing a stored project. Closed projects open read-only.
func (s *Service) Open(ctx context.Context, sess *Session, id int64) (*EditForm, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	p, err := s.repo.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Role != schema.RoleAdmin && string(p.Status) != string(sess.Role) && p.Status != StatusClosed {
		return nil, &PermissionError{
			Role:   string(sess.Role),
			Reason: fmt.Sprintf("project %d is in the %s stage", p.ID, p.Status),
		}
	}

	sess.reset()
	sess.Editing = p
	return s.form(ctx, sess)
}

// CloseEdit leaves the edit session without saving
func (s *Service) CloseEdit(sess *Session) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.reset()
}

// RemoveAttachment clears a file field of the open project.
// Nothing is written until the next submission.
func (s *Service) RemoveAttachment(ctx context.Context, sess *Session, field string) (*EditForm, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.Editing == nil {
		return nil, ErrNoEditSession
	}
	if sess.Editing.Status == StatusClosed {
		return nil, &ProjectClosedError{ProjectID: sess.Editing.ID}
	}
	f, ok := s.registry.Lookup(sess.Role, field)
	if !ok || f.Kind != schema.KindFile {
		return nil, newValidationError(field, RuleUnknown, "%s is not a %s file field", field, sess.Role)
	}

	sess.Editing = sess.Editing.Clone()
	sess.Editing.Fields[field] = nil
	if !slices.Contains(sess.cleared, field) {
		sess.cleared = append(sess.cleared, field)
	}
	return s.form(ctx, sess)
}

// Submit sends the open form to the engine against the project as it is
// stored now. A forward or complete comes back with Result.Pending set and
// stays parked on the session.
func (s *Service) Submit(ctx context.Context, sess *Session, action Action, values map[string]any, uploads map[string]Upload) (*Outcome, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.Editing == nil {
		return nil, ErrNoEditSession
	}

	var existing *Project
	if !sess.Editing.IsNew() {
		current, err := s.repo.GetProject(ctx, sess.Editing.ID)
		if err != nil {
			s.logFailure("submit", sess, err)
			return nil, err
		}
		existing = current
	}

	res, err := s.engine.Submit(ctx, Submission{
		Role:     sess.Role,
		Action:   action,
		Existing: existing,
		Values:   values,
		Uploads:  uploads,
		Cleared:  sess.cleared,
	})
	if err != nil {
		s.logFailure("submit", sess, err)
		return nil, err
	}

	if res.NeedsConfirmation() {
		sess.Pending = res.Pending
		return &Outcome{Result: res}, nil
	}
	return s.finish(ctx, sess, existing, res)
}

// Confirm applies the parked action. token must match when given.
// On failure the pending action is dropped and nothing was written.
func (s *Service) Confirm(ctx context.Context, sess *Session, token string) (*Outcome, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	p := sess.Pending
	if p == nil || (token != "" && token != p.Token) {
		return nil, ErrNoPendingAction
	}
	sess.Pending = nil

	if !p.existing.IsNew() {
		current, err := s.repo.GetProject(ctx, p.ProjectID)
		if err == nil {
			p, err = s.engine.Rebase(p, current)
		}
		if err != nil {
			s.logFailure("confirm", sess, err)
			return nil, err
		}
	}

	res, err := s.engine.Confirm(ctx, p)
	if err != nil {
		s.logFailure("confirm", sess, err)
		return nil, err
	}
	return s.finish(ctx, sess, p.existing, res)
}

// Cancel drops the parked action; no external call has been made for it
func (s *Service) Cancel(sess *Session) error {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.Pending == nil {
		return ErrNoPendingAction
	}
	s.logger.Debug("Pending action cancelled",
		zap.String("session_id", sess.ID),
		zap.String("kind", string(sess.Pending.Kind)))
	sess.Pending = nil
	return nil
}

// Delete checks a deletion request and parks it for confirmation
func (s *Service) Delete(ctx context.Context, sess *Session, id int64, password string) (*Pending, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	p, err := s.repo.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}

	pending, err := s.engine.Delete(ctx, DeleteRequest{Role: sess.Role, Project: p, Password: password})
	if err != nil {
		s.logFailure("delete", sess, err)
		return nil, err
	}
	sess.Pending = pending
	return pending, nil
}

// Reference returns the normalized employee and location lists
func (s *Service) Reference(ctx context.Context) (ReferenceData, error) {
	return s.reference.Reference(ctx)
}

// Register returns every project with references joined; admin only
func (s *Service) Register(ctx context.Context, sess *Session) ([]ProjectView, error) {
	sess.mu.Lock()
	role := sess.Role
	sess.mu.Unlock()

	if role != schema.RoleAdmin {
		return nil, &PermissionError{Role: string(role), Reason: "only admin can export the project register"}
	}
	return s.views(ctx)
}

// finish runs after every committed mutation: it leaves the edit session,
// records the activity, notifies clients and re-fetches before projecting
func (s *Service) finish(ctx context.Context, sess *Session, existing *Project, res *Result) (*Outcome, error) {
	sess.reset()

	var projectID int64
	status := ""
	if res.Project != nil {
		projectID = res.Project.ID
		status = string(res.Project.Status)
	} else if existing != nil {
		projectID = existing.ID
	}

	s.recordActivity(ctx, sess.Role, existing, res, projectID)

	if s.notifier != nil {
		if err := s.notifier.NotifyProjectsChanged(projectID, string(res.Notice), status); err != nil {
			s.logger.Warn("Failed to notify clients", zap.Int64("project_id", projectID), zap.Error(err))
		}
	}

	view, err := s.view(ctx, sess)
	if err != nil {
		// the mutation itself succeeded; clients refetch on the broadcast
		s.logger.Error("Failed to refresh projects after change", zap.Error(err))
		return &Outcome{Result: res}, nil
	}
	return &Outcome{Result: res, View: view}, nil
}

// recordActivity appends to the activity log. Failures are logged only.
func (s *Service) recordActivity(ctx context.Context, role schema.Role, existing *Project, res *Result, projectID int64) {
	activity := &ProjectActivity{
		ProjectID: projectID,
		Role:      string(role),
		CreatedAt: time.Now(),
	}

	details := map[string]any{"notice": res.Notice}
	switch {
	case res.Notice == NoticeDeleted:
		activity.ActivityType = ActivityDeleted
		activity.Description = fmt.Sprintf("Project %s deleted", existing.Name())
	case existing == nil:
		activity.ActivityType = ActivityCreated
		activity.Description = fmt.Sprintf("Project %s created", res.Project.Name())
	case res.To != "":
		activity.ActivityType = ActivityStatusChanged
		activity.Description = fmt.Sprintf("Project %s moved from %s to %s", res.Project.Name(), res.From, res.To)
		details["from"] = res.From
		details["to"] = res.To
	default:
		activity.ActivityType = ActivityUpdated
		activity.Description = fmt.Sprintf("Project %s updated", res.Project.Name())
	}

	if raw, err := json.Marshal(details); err == nil {
		activity.Details = datatypes.JSON(raw)
	}

	if err := s.repo.LogActivity(ctx, activity); err != nil {
		s.logger.Warn("Failed to record project activity",
			zap.Int64("project_id", projectID),
			zap.String("activity", activity.ActivityType),
			zap.Error(err))
	}
}

func (s *Service) views(ctx context.Context) ([]ProjectView, error) {
	items, err := s.repo.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	ref, err := s.reference.Reference(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load reference data: %w", err)
	}
	return Join(items, ref), nil
}

func (s *Service) view(ctx context.Context, sess *Session) (*View, error) {
	views, err := s.views(ctx)
	if err != nil {
		return nil, err
	}
	v := VisibleProjects(sess.Role, views, sess.SearchTerm)
	return &v, nil
}

func (s *Service) form(ctx context.Context, sess *Session) (*EditForm, error) {
	ref, err := s.reference.Reference(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load reference data: %w", err)
	}
	joined := Join([]*Project{sess.Editing}, ref)
	return &EditForm{
		Role:     sess.Role,
		Project:  joined[0],
		Fields:   s.registry.Fields(sess.Role),
		ReadOnly: sess.Editing.Status == StatusClosed,
	}, nil
}

func (s *Service) logFailure(op string, sess *Session, err error) {
	var (
		vErr *ValidationError
		pErr *PermissionError
	)
	fields := []zap.Field{
		zap.String("op", op),
		zap.String("session_id", sess.ID),
		zap.String("role", string(sess.Role)),
		zap.Error(err),
	}
	switch {
	case errors.As(err, &vErr), errors.As(err, &pErr), errors.Is(err, ErrProjectClosed):
		s.logger.Info("Workflow request refused", fields...)
	default:
		s.logger.Error("Workflow request failed", fields...)
	}
}
