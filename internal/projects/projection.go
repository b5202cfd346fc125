package projects

import (
	"strings"

	"buildflow/project-portal/project-portal-backend/internal/schema"
)

// EmptyReason says why a projection has no rows
type EmptyReason string

const (
	EmptyNone      EmptyReason = ""
	EmptyNoMatches EmptyReason = "no_matches"
	EmptyNoWork    EmptyReason = "no_work"
	EmptyNoData    EmptyReason = "no_data"
)

// Row is one project as the role's list displays it
type Row struct {
	ID             int64    `json:"id"`
	Name           string   `json:"name"`
	Status         Status   `json:"status"`
	StatusLabel    string   `json:"status_label"`
	Location       string   `json:"location"`
	ProjectManager string   `json:"project_manager"`
	SubmittedBy    string   `json:"submitted_by,omitempty"`
	Budget         *float64 `json:"budget,omitempty"`
	WorkScopes     []string `json:"work_scopes"`
	HasModel       bool     `json:"has_model"`
}

// View is what a role sees of the project collection
type View struct {
	Role       schema.Role    `json:"role"`
	SearchTerm string         `json:"search_term,omitempty"`
	Rows       []Row          `json:"rows"`
	Active     []Row          `json:"active,omitempty"`
	Closed     []Row          `json:"closed,omitempty"`
	Empty      EmptyReason    `json:"empty,omitempty"`
	Summary    map[Status]int `json:"summary,omitempty"`
}

// submitter is the owner field of the stage that forwarded a project into each inbox
var submitter = map[schema.Role]func(ProjectView) *Employee{
	schema.RoleDesign:  func(v ProjectView) *Employee { return v.Surveyor },
	schema.RoleBidding: func(v ProjectView) *Employee { return v.DesignOwner },
	schema.RolePM:      func(v ProjectView) *Employee { return v.BiddingOwner },
}

var workScopeLabels = []struct {
	field string
	label string
}{
	{schema.FieldWorkScopeDesign, "Design"},
	{schema.FieldWorkScopeBidding, "Bidding"},
	{schema.FieldWorkScopePM, "Project management"},
}

// VisibleProjects filters the collection down to what role may see.
// Order is preserved. The search term only applies to admin.
func VisibleProjects(role schema.Role, views []ProjectView, term string) View {
	out := View{Role: role, Rows: []Row{}}
	term = strings.TrimSpace(term)

	if role == schema.RoleAdmin {
		out.SearchTerm = term
		out.Summary = summarize(views)
		needle := strings.ToLower(term)
		for _, v := range views {
			if needle != "" && !strings.Contains(strings.ToLower(v.Name()), needle) {
				continue
			}
			row := newRow(role, v)
			out.Rows = append(out.Rows, row)
			if v.Status == StatusClosed {
				out.Closed = append(out.Closed, row)
			} else {
				out.Active = append(out.Active, row)
			}
		}
	} else {
		for _, v := range views {
			if string(v.Status) == string(role) {
				out.Rows = append(out.Rows, newRow(role, v))
			}
		}
	}

	if len(out.Rows) == 0 {
		switch {
		case len(views) == 0:
			out.Empty = EmptyNoData
		case role == schema.RoleAdmin && term != "":
			out.Empty = EmptyNoMatches
		default:
			out.Empty = EmptyNoWork
		}
	}
	return out
}

func summarize(views []ProjectView) map[Status]int {
	counts := map[Status]int{
		StatusSurvey:  0,
		StatusDesign:  0,
		StatusBidding: 0,
		StatusPM:      0,
		StatusClosed:  0,
	}
	for _, v := range views {
		counts[v.Status]++
	}
	return counts
}

func newRow(role schema.Role, v ProjectView) Row {
	row := Row{
		ID:          v.ID,
		Name:        v.Name(),
		Status:      v.Status,
		StatusLabel: v.Status.Label(),
		WorkScopes:  []string{},
		HasModel:    v.Fields.Has(schema.FieldIFCModel),
	}
	if v.Location != nil {
		row.Location = v.Location.DisplayName
		if row.Location == "" {
			row.Location = v.Location.SiteName
		}
	}
	row.ProjectManager = v.ProjectManager.FullName()
	if pick, ok := submitter[role]; ok {
		row.SubmittedBy = pick(v).FullName()
	}
	if b, ok := v.Fields.Float64(schema.FieldBudget); ok {
		row.Budget = &b
	}
	for _, ws := range workScopeLabels {
		if v.Fields.Bool(ws.field) {
			row.WorkScopes = append(row.WorkScopes, ws.label)
		}
	}
	return row
}
