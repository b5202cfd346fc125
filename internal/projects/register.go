package projects

import (
	"fmt"
	"strings"

	"buildflow/project-portal/project-portal-backend/internal/reports/export"
	"buildflow/project-portal/project-portal-backend/internal/schema"
)

var registerColumns = []export.Column{
	{Key: "id", Label: "ID"},
	{Key: "name", Label: "Project"},
	{Key: "status", Label: "Status"},
	{Key: "location", Label: "Location"},
	{Key: "construction_type", Label: "Construction type"},
	{Key: "project_manager", Label: "Project manager"},
	{Key: "surveyed_by", Label: "Surveyed by"},
	{Key: "start", Label: "Start"},
	{Key: "end", Label: "End"},
	{Key: "planned_duration", Label: "Planned duration (days)"},
	{Key: "budget", Label: "Budget"},
	{Key: "actual_cost", Label: "Actual cost"},
	{Key: "work_scopes", Label: "Work scope"},
	{Key: "has_model", Label: "3D model"},
}

// RegisterTable lays out the admin project register for export
func RegisterTable(views []ProjectView) export.Table {
	rows := make([]map[string]interface{}, 0, len(views))
	closed := 0
	for _, v := range views {
		if v.Status == StatusClosed {
			closed++
		}
		row := newRow(schema.RoleAdmin, v)
		rows = append(rows, map[string]interface{}{
			"id":                v.ID,
			"name":              row.Name,
			"status":            row.StatusLabel,
			"location":          row.Location,
			"construction_type": v.Fields.String(schema.FieldConstructionType),
			"project_manager":   row.ProjectManager,
			"surveyed_by":       v.Surveyor.FullName(),
			"start":             v.Fields.String(schema.FieldSurveyStartDate),
			"end":               v.Fields.String(schema.FieldSurveyEndDate),
			"planned_duration":  numberOrNil(v.Fields, schema.FieldPlannedDuration),
			"budget":            numberOrNil(v.Fields, schema.FieldBudget),
			"actual_cost":       numberOrNil(v.Fields, schema.FieldActualCost),
			"work_scopes":       strings.Join(row.WorkScopes, ", "),
			"has_model":         row.HasModel,
		})
	}

	return export.Table{
		Title:   "Project register",
		Summary: fmt.Sprintf("%d projects, %d active, %d closed", len(views), len(views)-closed, closed),
		Columns: registerColumns,
		Rows:    rows,
	}
}

func numberOrNil(f Fields, name string) interface{} {
	if n, ok := f.Float64(name); ok {
		return n
	}
	return nil
}
