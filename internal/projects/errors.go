package projects

import (
	"errors"
	"fmt"
)

// Validation rules
const (
	RuleRequired  = "required"
	RuleWorkScope = "workScope"
	RuleType      = "type"
	RuleOption    = "option"
	RuleAccept    = "accept"
	RuleUnknown   = "unknown_field"
)

// ValidationError means the user must correct the input. Nothing was persisted.
type ValidationError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return e.Message
}

func newValidationError(field, rule, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Rule: rule, Message: fmt.Sprintf(format, args...)}
}

// ErrProjectClosed is returned for any mutation of a closed project
var ErrProjectClosed = errors.New("project is closed and can no longer be changed")

// ProjectClosedError refuses a mutation of a closed project
type ProjectClosedError struct {
	ProjectID int64
}

func (e *ProjectClosedError) Error() string {
	return fmt.Sprintf("project %d: %s", e.ProjectID, ErrProjectClosed)
}

func (e *ProjectClosedError) Unwrap() error {
	return ErrProjectClosed
}

// PermissionError means a role or credential check failed before any external call
type PermissionError struct {
	Role   string
	Reason string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied for role %s: %s", e.Role, e.Reason)
}

// UploadError means an attachment upload failed and the submission was aborted
type UploadError struct {
	Field  string
	Reason string
	Err    error
}

func (e *UploadError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("upload of %s failed: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("upload failed: %s", e.Reason)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// RepositoryError wraps a datastore failure
type RepositoryError struct {
	Op  string
	Err error
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("repository %s failed: %v", e.Op, e.Err)
}

func (e *RepositoryError) Unwrap() error {
	return e.Err
}

// ErrNotFound is wrapped by GetProject when no row matches
var ErrNotFound = errors.New("project not found")

// ErrNoPendingAction is returned when confirming or cancelling with nothing pending
var ErrNoPendingAction = errors.New("no action is waiting for confirmation")

// ErrNoEditSession is returned when a session has no project open
var ErrNoEditSession = errors.New("no project is open for editing")
