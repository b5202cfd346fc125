package projects

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"buildflow/project-portal/project-portal-backend/internal/schema"
	"buildflow/project-portal/project-portal-backend/pkg/workflows"
)

// Uploader stores an attachment and returns its public locator
type Uploader interface {
	Upload(ctx context.Context, body io.Reader, projectName, fileName, contentType string) (string, error)
}

// Writer is the write half of the project repository
type Writer interface {
	InsertProject(ctx context.Context, p *Project) (*Project, error)
	UpdateProject(ctx context.Context, id int64, p *Project) (*Project, error)
	DeleteProject(ctx context.Context, id int64) error
}

// Upload is a file selected for a file field
type Upload struct {
	FileName    string
	ContentType string
	Body        io.Reader
}

// Submission is one press of save, forward or complete on a role's form.
// Existing is nil when the project is being created. Cleared names file
// fields the user removed from the form.
type Submission struct {
	Role     schema.Role
	Action   Action
	Existing *Project
	Values   map[string]any
	Uploads  map[string]Upload
	Cleared  []string
}

// DeleteRequest asks to remove a project; Password is only checked for admin
type DeleteRequest struct {
	Role     schema.Role
	Project  *Project
	Password string
}

// Notice tells the caller which success message to show
type Notice string

const (
	NoticeSaved     Notice = "saved"
	NoticeForwarded Notice = "forwarded"
	NoticeClosed    Notice = "closed"
	NoticeDeleted   Notice = "deleted"
)

// PendingKind is what a pending action will do once confirmed
type PendingKind string

const (
	PendingSubmit PendingKind = "submit"
	PendingDelete PendingKind = "delete"
)

// Pending is a mutation that waits for the user's confirmation.
// No repository or storage call has been made for it yet.
type Pending struct {
	Token     string      `json:"token"`
	Kind      PendingKind `json:"kind"`
	Prompt    string      `json:"prompt"`
	ProjectID int64       `json:"project_id,omitempty"`
	From      Status      `json:"from,omitempty"`
	To        Status      `json:"to,omitempty"`

	role      schema.Role
	action    Action
	existing  *Project
	record    *Project
	submitted Fields
	uploads   map[string]Upload
	cleared   []string
}

// Result is the outcome of a submission.
// When Pending is set nothing has happened yet and Project is nil.
type Result struct {
	Project *Project `json:"project,omitempty"`
	Notice  Notice   `json:"notice,omitempty"`
	Pending *Pending `json:"pending,omitempty"`
	From    Status   `json:"from,omitempty"`
	To      Status   `json:"to,omitempty"`
}

// NeedsConfirmation reports whether the caller must confirm or cancel
func (r *Result) NeedsConfirmation() bool {
	return r != nil && r.Pending != nil
}

// stageActions is the action that moves a department's project to the next stage
var stageActions = map[schema.Role]Action{
	schema.RoleSurvey:  ActionForward,
	schema.RoleDesign:  ActionForward,
	schema.RoleBidding: ActionForward,
	schema.RolePM:      ActionComplete,
}

var prompts = map[Status]string{
	StatusDesign:  "Forward this project to the design team?",
	StatusBidding: "Forward this project to the bidding team?",
	StatusPM:      "Forward this project to the project management (PM) team?",
	StatusClosed:  "You are about to close this project. It will be locked and can no longer be edited. Continue?",
}

const deletePrompt = "Delete this project permanently? All of its data will be lost."

// Engine validates submissions, computes the next lifecycle state and
// persists the merged record. It keeps no state between calls.
type Engine struct {
	registry *schema.Registry
	machine  *workflows.StateMachine
	uploader Uploader
	writer   Writer
	gate     *SecretGate
	logger   *zap.Logger
}

// NewEngine creates a workflow engine
func NewEngine(registry *schema.Registry, uploader Uploader, writer Writer, gate *SecretGate, logger *zap.Logger) *Engine {
	return &Engine{
		registry: registry,
		machine:  workflows.NewStateMachine(),
		uploader: uploader,
		writer:   writer,
		gate:     gate,
		logger:   logger,
	}
}

// Submit validates and merges a submission. Save is persisted straight away;
// forward and complete return a Pending that must go through Confirm.
func (e *Engine) Submit(ctx context.Context, sub Submission) (*Result, error) {
	if err := e.checkMutable(sub.Role, sub.Existing); err != nil {
		return nil, err
	}
	if sub.Existing.IsNew() && sub.Role != schema.RoleSurvey && sub.Role != schema.RoleAdmin {
		return nil, &PermissionError{Role: string(sub.Role), Reason: "only survey and admin can create projects"}
	}
	if _, ok := ParseAction(string(sub.Action)); !ok {
		return nil, newValidationError("action", RuleUnknown, "unknown action %q", sub.Action)
	}

	submitted, err := e.coerce(sub)
	if err != nil {
		return nil, err
	}
	record := e.merge(sub, submitted)
	if err := e.validate(sub, submitted, record); err != nil {
		return nil, err
	}

	if sub.Existing.IsNew() {
		record.Status = StatusSurvey
		if sub.Role == schema.RoleAdmin {
			record.Status = StatusDesign
		}
	}

	pending := &Pending{
		Kind:      PendingSubmit,
		ProjectID: record.ID,
		role:      sub.Role,
		action:    sub.Action,
		existing:  sub.Existing,
		record:    record,
		submitted: submitted,
		uploads:   sub.Uploads,
		cleared:   sub.Cleared,
	}

	to, ok := e.transition(sub.Role, sub.Action)
	if !ok {
		// save, or an action with no transition for this role
		return e.commit(ctx, pending)
	}
	if !e.machine.CanTransition(string(record.Status), string(to)) {
		return nil, &PermissionError{
			Role:   string(sub.Role),
			Reason: fmt.Sprintf("cannot move a project from %s to %s", record.Status, to),
		}
	}

	pending.From = record.Status
	pending.To = to
	pending.Prompt = prompts[to]
	pending.Token = uuid.New().String()
	return &Result{Pending: pending}, nil
}

// Rebase checks a pending action against the record as it is stored now and
// merges a pending submission onto it. Another client may have moved, closed
// or edited the project since the action was parked.
func (e *Engine) Rebase(p *Pending, current *Project) (*Pending, error) {
	if p == nil {
		return nil, ErrNoPendingAction
	}
	if p.existing.IsNew() {
		return p, nil
	}
	if err := e.checkMutable(p.role, current); err != nil {
		return nil, err
	}
	if p.Kind == PendingSubmit && current.Status != p.From {
		return nil, &PermissionError{
			Role:   string(p.role),
			Reason: fmt.Sprintf("project %d moved from %s to %s", current.ID, p.From, current.Status),
		}
	}

	rebased := *p
	rebased.existing = current
	if p.Kind == PendingDelete {
		return &rebased, nil
	}

	sub := Submission{
		Role:     p.role,
		Action:   p.action,
		Existing: current,
		Uploads:  p.uploads,
		Cleared:  p.cleared,
	}
	record := e.merge(sub, p.submitted)
	if err := e.validate(sub, p.submitted, record); err != nil {
		return nil, err
	}
	rebased.record = record
	return &rebased, nil
}

// Confirm applies a pending submission or deletion
func (e *Engine) Confirm(ctx context.Context, p *Pending) (*Result, error) {
	if p == nil {
		return nil, ErrNoPendingAction
	}
	switch p.Kind {
	case PendingDelete:
		if err := e.writer.DeleteProject(ctx, p.ProjectID); err != nil {
			return nil, err
		}
		e.logger.Info("Project deleted",
			zap.Int64("project_id", p.ProjectID),
			zap.String("role", string(p.role)))
		return &Result{Notice: NoticeDeleted, From: p.From}, nil
	default:
		record := p.record.Clone()
		record.Status = p.To
		return e.commit(ctx, &Pending{
			Kind:      p.Kind,
			From:      p.From,
			To:        p.To,
			role:      p.role,
			action:    p.action,
			existing:  p.existing,
			record:    record,
			submitted: p.submitted,
			uploads:   p.uploads,
			cleared:   p.cleared,
		})
	}
}

// Delete checks that a project may be removed and returns the pending deletion.
// Admin must present the shared password; every role must still confirm.
func (e *Engine) Delete(ctx context.Context, req DeleteRequest) (*Pending, error) {
	if req.Project.IsNew() {
		return nil, ErrNotFound
	}
	if err := e.checkMutable(req.Role, req.Project); err != nil {
		return nil, err
	}
	if req.Role == schema.RoleAdmin && !e.gate.Check(req.Password) {
		e.logger.Warn("Admin delete refused: wrong password", zap.Int64("project_id", req.Project.ID))
		return nil, &PermissionError{Role: string(req.Role), Reason: "incorrect password"}
	}

	return &Pending{
		Token:     uuid.New().String(),
		Kind:      PendingDelete,
		Prompt:    deletePrompt,
		ProjectID: req.Project.ID,
		From:      req.Project.Status,
		role:      req.Role,
		existing:  req.Project,
	}, nil
}

// transition returns the stage a role's action moves its project to.
// Admin has no transitions.
func (e *Engine) transition(role schema.Role, action Action) (Status, bool) {
	if a, ok := stageActions[role]; !ok || a != action {
		return "", false
	}
	next, ok := e.machine.Next(string(role))
	return Status(next), ok
}

// checkMutable enforces closed immutability and the inbox rule:
// a department only touches projects sitting in its own stage.
func (e *Engine) checkMutable(role schema.Role, existing *Project) error {
	if existing.IsNew() {
		return nil
	}
	if e.machine.IsTerminal(string(existing.Status)) {
		return &ProjectClosedError{ProjectID: existing.ID}
	}
	if role != schema.RoleAdmin && string(existing.Status) != string(role) {
		return &PermissionError{
			Role:   string(role),
			Reason: fmt.Sprintf("project %d is in the %s stage", existing.ID, existing.Status),
		}
	}
	return nil
}

// coerce converts submitted values to stored types, rejecting fields outside
// the role's schema and uploads the field does not accept.
func (e *Engine) coerce(sub Submission) (Fields, error) {
	out := make(Fields, len(sub.Values))
	for name, raw := range sub.Values {
		f, ok := e.registry.Lookup(sub.Role, name)
		if !ok {
			return nil, newValidationError(name, RuleUnknown, "%s is not a %s field", name, sub.Role)
		}
		if f.Kind == schema.KindFile || f.ReadOnly {
			continue
		}
		v, err := coerceValue(f, raw)
		if err != nil {
			return nil, err
		}
		out[name] = v
	}

	for name, up := range sub.Uploads {
		f, ok := e.registry.Lookup(sub.Role, name)
		if !ok || f.Kind != schema.KindFile {
			return nil, newValidationError(name, RuleUnknown, "%s is not a %s file field", name, sub.Role)
		}
		if !f.Accepts(up.FileName) {
			return nil, newValidationError(name, RuleAccept, "%s only accepts %s files", f.Label, f.Accept)
		}
	}
	return out, nil
}

// merge overlays the submitted values on a copy of the existing record.
// Fields outside the role's schema are never touched.
func (e *Engine) merge(sub Submission, submitted Fields) *Project {
	record := sub.Existing.Clone()
	if record == nil {
		record = &Project{Fields: Fields{}}
	}

	for _, f := range e.registry.Fields(sub.Role) {
		if f.Kind == schema.KindFile || f.ReadOnly {
			continue
		}
		if v, ok := submitted[f.Name]; ok {
			record.Fields[f.Name] = v
		}
	}
	for _, name := range sub.Cleared {
		if f, ok := e.registry.Lookup(sub.Role, name); ok && f.Kind == schema.KindFile {
			record.Fields[name] = nil
		}
	}

	if f, ok := e.registry.Lookup(sub.Role, schema.FieldPlannedDuration); ok && f.ReadOnly {
		start := record.Fields.String(schema.FieldSurveyStartDate)
		end := record.Fields.String(schema.FieldSurveyEndDate)
		if start != "" && end != "" {
			if days, ok := plannedDays(start, end); ok {
				record.Fields[schema.FieldPlannedDuration] = days
			} else {
				record.Fields[schema.FieldPlannedDuration] = nil
			}
		}
	}
	return record
}

// validate runs the projectName, workscope and required-field rules in that order
func (e *Engine) validate(sub Submission, submitted Fields, record *Project) error {
	if sub.Existing.IsNew() && !submitted.Has(schema.FieldProjectName) {
		return newValidationError(schema.FieldProjectName, RuleRequired, "Project name is required")
	}

	if sub.Role == schema.RoleSurvey && sub.Action == ActionForward {
		scoped := false
		for _, f := range e.registry.Group(sub.Role, schema.GroupWorkScope) {
			if record.Fields.Bool(f.Name) {
				scoped = true
				break
			}
		}
		if !scoped {
			return newValidationError(schema.GroupWorkScope, RuleWorkScope, "Select at least one work scope")
		}
	}

	if sub.Action == ActionForward || sub.Action == ActionComplete {
		for _, f := range e.registry.Fields(sub.Role) {
			if !f.Required {
				continue
			}
			if f.Kind == schema.KindFile {
				if _, ok := sub.Uploads[f.Name]; ok || record.Fields.Has(f.Name) {
					continue
				}
			} else if submitted.Has(f.Name) || (sub.Existing != nil && sub.Existing.Fields.Has(f.Name)) {
				continue
			}
			return newValidationError(f.Name, RuleRequired, "Please fill in %q to continue", f.Label)
		}
	}

	name := sub.Existing.Name()
	if name == "" {
		name = record.Name()
	}
	if name == "" {
		return newValidationError(schema.FieldProjectName, RuleRequired, "The project has no name")
	}
	return nil
}

// commit uploads the selected files one by one, then writes the record once.
// A failed upload aborts before anything is written.
func (e *Engine) commit(ctx context.Context, p *Pending) (*Result, error) {
	record := p.record
	name := p.existing.Name()
	if name == "" {
		name = record.Name()
	}

	for _, f := range e.registry.Fields(p.role) {
		if f.Kind != schema.KindFile {
			continue
		}
		up, ok := p.uploads[f.Name]
		if !ok {
			continue
		}
		// a confirm retried after a failed upload reads the body again
		if s, seekable := up.Body.(io.Seeker); seekable {
			if _, err := s.Seek(0, io.SeekStart); err != nil {
				return nil, &UploadError{Field: f.Name, Reason: err.Error(), Err: err}
			}
		}
		locator, err := e.uploader.Upload(ctx, up.Body, name, up.FileName, up.ContentType)
		if err != nil {
			e.logger.Error("Attachment upload failed",
				zap.String("field", f.Name),
				zap.String("project", name),
				zap.Error(err))
			return nil, &UploadError{Field: f.Name, Reason: err.Error(), Err: err}
		}
		record.Fields[f.Name] = locator
	}

	var (
		saved *Project
		err   error
	)
	if record.IsNew() {
		saved, err = e.writer.InsertProject(ctx, record)
	} else {
		saved, err = e.writer.UpdateProject(ctx, record.ID, record)
	}
	if err != nil {
		return nil, err
	}

	notice := NoticeSaved
	switch p.To {
	case StatusClosed:
		notice = NoticeClosed
	case "":
	default:
		notice = NoticeForwarded
	}

	e.logger.Info("Project saved",
		zap.Int64("project_id", saved.ID),
		zap.String("role", string(p.role)),
		zap.String("action", string(p.action)),
		zap.String("status", string(saved.Status)))

	return &Result{Project: saved, Notice: notice, From: p.From, To: p.To}, nil
}
