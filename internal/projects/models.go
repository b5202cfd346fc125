package projects

import (
	"strings"
	"time"

	"gorm.io/datatypes"

	"buildflow/project-portal/project-portal-backend/internal/schema"
	"buildflow/project-portal/project-portal-backend/pkg/workflows"
)

// Status is the lifecycle stage a project sits in
type Status string

const (
	StatusSurvey  Status = workflows.StageSurvey
	StatusDesign  Status = workflows.StageDesign
	StatusBidding Status = workflows.StageBidding
	StatusPM      Status = workflows.StagePM
	StatusClosed  Status = workflows.StageClosed
)

// statusLegacyCompleted is an older terminal PM value still found in some rows
const statusLegacyCompleted = "completed"

var statusLabels = map[Status]string{
	StatusSurvey:  "Waiting for survey team",
	StatusDesign:  "Waiting for design team",
	StatusBidding: "Waiting for bidding team",
	StatusPM:      "Waiting for project management team",
	StatusClosed:  "Project completed",
}

// ParseStatus validates a stored status value
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusSurvey, StatusDesign, StatusBidding, StatusPM, StatusClosed:
		return Status(s), true
	}
	if s == statusLegacyCompleted {
		return StatusPM, true
	}
	return "", false
}

// Label returns the human readable status
func (s Status) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// Action is what the user asked the workflow to do with a submission
type Action string

const (
	ActionSave     Action = "save"
	ActionForward  Action = "forward"
	ActionComplete Action = "complete"
)

// ParseAction validates an action name
func ParseAction(s string) (Action, bool) {
	switch Action(s) {
	case ActionSave, ActionForward, ActionComplete:
		return Action(s), true
	}
	return "", false
}

// Fields is the role-scoped field bag of a project, keyed by column name.
// A key present with a nil value is an explicit null.
type Fields map[string]any

// Clone returns a shallow copy
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// String returns a text value, empty when absent or not text
func (f Fields) String(name string) string {
	s, _ := f[name].(string)
	return s
}

// Int64 returns a reference id
func (f Fields) Int64(name string) (int64, bool) {
	switch v := f[name].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	}
	return 0, false
}

// Float64 returns a numeric value
func (f Fields) Float64(name string) (float64, bool) {
	switch v := f[name].(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	}
	return 0, false
}

// Bool returns a checkbox value, false when absent
func (f Fields) Bool(name string) bool {
	b, _ := f[name].(bool)
	return b
}

// Has reports whether the field carries a non-empty value
func (f Fields) Has(name string) bool {
	return !isEmpty(f[name])
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case bool:
		return !t
	}
	return false
}

// Project is the write-side project record: foreign keys only, never joined data
type Project struct {
	ID     int64  `json:"id"`
	Status Status `json:"status"`
	Fields Fields `json:"fields"`
}

// IsNew reports whether the repository has not assigned an id yet
func (p *Project) IsNew() bool {
	return p == nil || p.ID == 0
}

// Name returns the project name
func (p *Project) Name() string {
	if p == nil {
		return ""
	}
	return p.Fields.String(schema.FieldProjectName)
}

// Clone returns a copy whose field bag can be modified independently
func (p *Project) Clone() *Project {
	if p == nil {
		return nil
	}
	return &Project{ID: p.ID, Status: p.Status, Fields: p.Fields.Clone()}
}

// Employee is read-only personnel reference data
type Employee struct {
	ID        int64  `gorm:"column:EmployeeID;primaryKey" json:"id"`
	FirstName string `gorm:"column:FirstName" json:"first_name"`
	LastName  string `gorm:"column:LastName" json:"last_name"`
}

// TableName maps Employee onto the Employees table
func (Employee) TableName() string {
	return "Employees"
}

// FullName joins first and last name
func (e *Employee) FullName() string {
	if e == nil {
		return ""
	}
	return strings.TrimSpace(e.FirstName + " " + e.LastName)
}

// Location is read-only site reference data.
// DisplayName is set by NormalizeLocations and is what every display uses.
type Location struct {
	ID          int64   `gorm:"column:id;primaryKey" json:"id"`
	SiteName    string  `gorm:"column:site_name" json:"site_name"`
	Activity    *string `gorm:"column:activity" json:"activity,omitempty"`
	DisplayName string  `gorm:"-" json:"display_name"`
}

// TableName maps Location onto the Location table
func (Location) TableName() string {
	return "Location"
}

// ReferenceData is one normalized load of personnel and locations
type ReferenceData struct {
	Employees []Employee `json:"employees"`
	Locations []Location `json:"locations"`
	LoadedAt  time.Time  `json:"loaded_at"`
}

// Employee finds a person by id
func (r ReferenceData) Employee(id int64) *Employee {
	for i := range r.Employees {
		if r.Employees[i].ID == id {
			return &r.Employees[i]
		}
	}
	return nil
}

// Location finds a site by id
func (r ReferenceData) Location(id int64) *Location {
	for i := range r.Locations {
		if r.Locations[i].ID == id {
			return &r.Locations[i]
		}
	}
	return nil
}

// ProjectView is the read side: a project with its references resolved for display.
// It is never written back.
type ProjectView struct {
	*Project
	Location       *Location `json:"location,omitempty"`
	Surveyor       *Employee `json:"surveyor,omitempty"`
	ProjectManager *Employee `json:"project_manager,omitempty"`
	DesignOwner    *Employee `json:"design_owner,omitempty"`
	BiddingOwner   *Employee `json:"bidding_owner,omitempty"`
	PMOwner        *Employee `json:"pm_owner,omitempty"`
}

// Join resolves the reference ids of each project against ref
func Join(items []*Project, ref ReferenceData) []ProjectView {
	views := make([]ProjectView, 0, len(items))
	for _, p := range items {
		v := ProjectView{Project: p}
		if id, ok := p.Fields.Int64(schema.FieldLocationID); ok {
			v.Location = ref.Location(id)
		}
		employee := func(field string) *Employee {
			if id, ok := p.Fields.Int64(field); ok {
				return ref.Employee(id)
			}
			return nil
		}
		v.Surveyor = employee(schema.FieldSurveyByID)
		v.ProjectManager = employee(schema.FieldProjectManagerID)
		v.DesignOwner = employee(schema.FieldDesignOwnerID)
		v.BiddingOwner = employee(schema.FieldBiddingOwnerID)
		v.PMOwner = employee(schema.FieldPMOwnerID)
		views = append(views, v)
	}
	return views
}

// ProjectActivity logs what happened to a project
type ProjectActivity struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	ProjectID    int64          `gorm:"not null;index" json:"project_id"`
	ActivityType string         `gorm:"not null" json:"activity_type"`
	Role         string         `gorm:"not null" json:"role"`
	Description  string         `json:"description"`
	Details      datatypes.JSON `json:"details"`
	CreatedAt    time.Time      `json:"created_at"`
}

// TableName maps ProjectActivity onto its table
func (ProjectActivity) TableName() string {
	return "project_activities"
}

// Activity types
const (
	ActivityCreated       = "CREATED"
	ActivityUpdated       = "UPDATED"
	ActivityStatusChanged = "STATUS_CHANGED"
	ActivityDeleted       = "DELETED"
)
