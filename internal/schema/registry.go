// Package schema holds the per-role form definitions of the project workflow.
// The tables are static configuration; nothing here changes at runtime.
package schema

import "fmt"

// Column names as they exist in the Projects table.
const (
	FieldProjectName      = "projectName"
	FieldLocationID       = "location_id"
	FieldConstructionType = "constructionType"
	FieldSurveyStartDate  = "surveyStartDate"
	FieldSurveyEndDate    = "surveyEndDate"
	FieldPlannedDuration  = "plannedDuration"
	FieldBudget           = "budget"
	FieldSurveyByID       = "survey_by_id"
	FieldDesignOwnerID    = "design_owner_id"
	FieldProjectManagerID = "project_manager_id"
	FieldBiddingOwnerID   = "bidding_owner_id"
	FieldActualCost       = "actualCost"
	// the column really is spelled this way
	FieldPMOwnerID = "pm_owenr_id"
	FieldIFCModel  = "ifcModel"

	FieldIsBudgetEstimated = "isBudgetEstimated"
	FieldWorkScopeDesign   = "workScopeDesign"
	FieldWorkScopeBidding  = "workScopeBidding"
	FieldWorkScopePM       = "workScopePM"
)

// GroupWorkScope is the survey checkbox group that says which downstream stages apply
const GroupWorkScope = "workScope"

// ConstructionTypes are the stored values of the constructionType select
var ConstructionTypes = []string{
	"โครงการก่อร้างใหม่",
	"โครงการปรุงงานก่อสร้าง",
	"งานเพิ่ม/ลด จากสัญญาก่อสร้างเดิม",
}

// Registry looks up the ordered field list of each role
type Registry struct {
	fields  map[Role][]Field
	columns []string
}

// NewRegistry builds the registry from the built-in field tables
func NewRegistry() *Registry {
	r := &Registry{
		fields: map[Role][]Field{
			RoleSurvey:  surveyFields(),
			RoleDesign:  designFields(),
			RoleBidding: biddingFields(),
			RolePM:      pmFields(),
			RoleAdmin:   adminFields(),
		},
	}

	seen := make(map[string]bool)
	for _, role := range Roles {
		for _, f := range r.fields[role] {
			if !seen[f.Name] {
				seen[f.Name] = true
				r.columns = append(r.columns, f.Name)
			}
		}
	}
	return r
}

// Fields returns a copy of the role's field list in form order
func (r *Registry) Fields(role Role) []Field {
	fields := r.fields[role]
	out := make([]Field, len(fields))
	copy(out, fields)
	return out
}

// Lookup finds a field in the role's schema
func (r *Registry) Lookup(role Role, name string) (Field, bool) {
	for _, f := range r.fields[role] {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Group returns the role's checkbox fields belonging to group
func (r *Registry) Group(role Role, group string) []Field {
	var out []Field
	for _, f := range r.fields[role] {
		if f.Kind == KindCheckbox && f.Group == group {
			out = append(out, f)
		}
	}
	return out
}

// Describe finds the first definition of a column across all roles
func (r *Registry) Describe(name string) (Field, bool) {
	for _, role := range Roles {
		if f, ok := r.Lookup(role, name); ok {
			return f, true
		}
	}
	return Field{}, false
}

// Columns returns every persisted project column declared by any role
func (r *Registry) Columns() []string {
	out := make([]string, len(r.columns))
	copy(out, r.columns)
	return out
}

func pdf(name, label string) Field {
	return Field{Name: name, Label: fmt.Sprintf("%s (.pdf)", label), Kind: KindFile, Accept: ".pdf"}
}

func employee(name, label string, required bool) Field {
	return Field{Name: name, Label: label, Kind: KindSelect, Source: SourceEmployees, Required: required}
}

func surveyFields() []Field {
	return []Field{
		{Name: FieldProjectName, Label: "Project name", Kind: KindText, Required: true},
		{Name: FieldLocationID, Label: "Location", Kind: KindSelect, Source: SourceLocations, Required: true},
		{Name: FieldConstructionType, Label: "Construction type", Kind: KindSelect, Options: ConstructionTypes, Required: true},
		{Name: FieldSurveyStartDate, Label: "Construction start date", Kind: KindDate},
		{Name: FieldSurveyEndDate, Label: "Construction end date", Kind: KindDate},
		{Name: FieldPlannedDuration, Label: "Planned duration (days)", Kind: KindNumber, ReadOnly: true},
		{Name: FieldIsBudgetEstimated, Label: "Budget estimate", Kind: KindCheckbox, Group: GroupWorkScope},
		{Name: FieldWorkScopeDesign, Label: "Design", Kind: KindCheckbox, Group: GroupWorkScope},
		{Name: FieldWorkScopeBidding, Label: "Bidding", Kind: KindCheckbox, Group: GroupWorkScope},
		{Name: FieldWorkScopePM, Label: "Project management", Kind: KindCheckbox, Group: GroupWorkScope},
		{Name: FieldBudget, Label: "Budget", Kind: KindNumber},
		employee(FieldSurveyByID, "Filled in by", true),
	}
}

func designFields() []Field {
	return []Field{
		employee(FieldDesignOwnerID, "Filled in by", true),
		employee(FieldProjectManagerID, "Project manager", true),
		pdf("requirementPDF", "Requirements"),
		pdf("initialDesignPDF", "Preliminary design"),
		pdf("detailedDesignPDF", "Detailed design"),
		pdf("calculationPDF", "Calculations"),
		pdf("overlapPDF", "Overlapping areas"),
		pdf("supportingDocsPDF", "Supporting documents"),
		{Name: "rvtModel", Label: "3D construction drawing (.rvt)", Kind: KindFile, Accept: ".rvt"},
		{Name: FieldIFCModel, Label: "3D model (.ifc)", Kind: KindFile, Accept: ".ifc"},
	}
}

func biddingFields() []Field {
	return []Field{
		employee(FieldBiddingOwnerID, "Filled in by", true),
		{Name: FieldActualCost, Label: "Actual construction cost", Kind: KindNumber, Required: true},
		pdf("boqPDF", "BOQ"),
		{Name: "projectImage", Label: "Project image (3D render)", Kind: KindFile, Accept: "image/*"},
		pdf("biddingPDF", "Bidding drawings"),
		pdf("clarificationPDF", "Drawing clarifications"),
		pdf("torPDF", "TOR"),
		pdf("biddingDocsPDF", "Bidding documents"),
	}
}

func pmFields() []Field {
	return []Field{
		employee(FieldPMOwnerID, "Filled in by", true),
		{Name: "actualDuration", Label: "Actual construction duration (days)", Kind: KindNumber},
		pdf("permissionDocsPDF", "Permits"),
		pdf("weeklyReportPDF", "Weekly meeting reports"),
		pdf("approvalDocsPDF", "Approval requests"),
		pdf("memoPDF", "Memos"),
		pdf("changeOrderPDF", "Change orders"),
		pdf("handoverDocsPDF", "Handover documents"),
		pdf("defectChecklistPDF", "Pre-handover defect checklist"),
		pdf("weeklySiteImagesPDF", "Site photos (front/side/top)"),
		pdf("asBuiltPDF", "As-built drawings"),
	}
}

// adminFields lets the admin edit any stage's data. The workscope checkboxes
// carry no group here: the at-least-one rule is a survey forwarding rule.
func adminFields() []Field {
	return []Field{
		{Name: FieldProjectName, Label: "Project name", Kind: KindText},
		{Name: FieldLocationID, Label: "Location", Kind: KindSelect, Source: SourceLocations},
		employee(FieldProjectManagerID, "Project manager", false),
		employee(FieldSurveyByID, "Filled in by (survey)", false),
		employee(FieldDesignOwnerID, "Filled in by (design)", false),
		employee(FieldBiddingOwnerID, "Filled in by (bidding)", false),
		employee(FieldPMOwnerID, "Filled in by (PM)", false),
		{Name: FieldBudget, Label: "Budget", Kind: KindNumber},
		{Name: FieldActualCost, Label: "Actual construction cost", Kind: KindNumber},
		{Name: FieldConstructionType, Label: "Construction type", Kind: KindSelect, Options: ConstructionTypes},
		{Name: FieldSurveyStartDate, Label: "Construction start date", Kind: KindDate},
		{Name: FieldSurveyEndDate, Label: "Construction end date", Kind: KindDate},
		{Name: FieldIsBudgetEstimated, Label: "Scope: budget estimate", Kind: KindCheckbox},
		{Name: FieldWorkScopeDesign, Label: "Scope: design", Kind: KindCheckbox},
		{Name: FieldWorkScopeBidding, Label: "Scope: bidding", Kind: KindCheckbox},
		{Name: FieldWorkScopePM, Label: "Scope: project management", Kind: KindCheckbox},
		{Name: "startDate", Label: "Start date (PM)", Kind: KindDate},
		{Name: FieldPlannedDuration, Label: "Planned duration (days)", Kind: KindNumber},
		{Name: "actualDuration", Label: "Actual construction duration (days)", Kind: KindNumber},

		{Name: "requirement", Label: "Requirement", Kind: KindText},
		pdf("initialDesignPDF", "Preliminary design"),
		pdf("detailedDesignPDF", "Detailed design"),
		pdf("calculationPDF", "Calculations"),
		pdf("overlapPDF", "Overlapping areas"),
		pdf("supportingDocsPDF", "Supporting documents"),
		{Name: "rvtModel", Label: "3D construction drawing (.rvt)", Kind: KindFile, Accept: ".rvt"},
		{Name: FieldIFCModel, Label: "3D model (.ifc)", Kind: KindFile, Accept: ".ifc"},

		pdf("biddingPDF", "Bidding drawings"),
		pdf("clarificationPDF", "Drawing clarifications"),
		pdf("torPDF", "TOR"),
		pdf("biddingDocsPDF", "Bidding documents"),
		pdf("boqPDF", "BOQ"),
		{Name: "projectImage", Label: "Project image (3D render)", Kind: KindFile, Accept: "image/*"},

		pdf("permissionDocsPDF", "Permits"),
		pdf("weeklyReportPDF", "Weekly meeting reports"),
		pdf("approvalDocsPDF", "Approval requests"),
		pdf("memoPDF", "Memos"),
		pdf("changeOrderPDF", "Change orders"),
		pdf("handoverDocsPDF", "Handover documents"),
		pdf("defectChecklistPDF", "Pre-handover defect checklist"),
		pdf("weeklySiteImagesPDF", "Site photos (front/side/top)"),
		pdf("asBuiltPDF", "As-built drawings"),
	}
}
