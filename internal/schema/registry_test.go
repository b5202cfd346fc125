package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryFieldsKeepFormOrder(t *testing.T) {
	r := NewRegistry()

	fields := r.Fields(RoleSurvey)
	require.NotEmpty(t, fields)
	assert.Equal(t, FieldProjectName, fields[0].Name)
	assert.Equal(t, FieldSurveyByID, fields[len(fields)-1].Name)

	// callers can not mutate the registry through the returned slice
	fields[0].Required = false
	f, ok := r.Lookup(RoleSurvey, FieldProjectName)
	require.True(t, ok)
	assert.True(t, f.Required)
}

func TestRegistryRequiredFields(t *testing.T) {
	r := NewRegistry()

	required := func(role Role) []string {
		var names []string
		for _, f := range r.Fields(role) {
			if f.Required {
				names = append(names, f.Name)
			}
		}
		return names
	}

	assert.Equal(t, []string{FieldProjectName, FieldLocationID, FieldConstructionType, FieldSurveyByID}, required(RoleSurvey))
	assert.Equal(t, []string{FieldDesignOwnerID, FieldProjectManagerID}, required(RoleDesign))
	assert.Equal(t, []string{FieldBiddingOwnerID, FieldActualCost}, required(RoleBidding))
	assert.Equal(t, []string{FieldPMOwnerID}, required(RolePM))
	assert.Empty(t, required(RoleAdmin))
}

func TestRegistryWorkScopeGroup(t *testing.T) {
	r := NewRegistry()

	group := r.Group(RoleSurvey, GroupWorkScope)
	require.Len(t, group, 4)
	assert.Equal(t, FieldIsBudgetEstimated, group[0].Name)

	assert.Empty(t, r.Group(RoleAdmin, GroupWorkScope))
}

func TestRegistryColumnsAreUnique(t *testing.T) {
	r := NewRegistry()

	seen := map[string]bool{}
	for _, c := range r.Columns() {
		assert.False(t, seen[c], "duplicate column %s", c)
		seen[c] = true
	}
	assert.True(t, seen[FieldPMOwnerID])
	assert.True(t, seen["requirement"])
	assert.True(t, seen["requirementPDF"])
	assert.True(t, seen[FieldIFCModel])
}

func TestFieldAccepts(t *testing.T) {
	r := NewRegistry()

	boq, _ := r.Lookup(RoleBidding, "boqPDF")
	assert.True(t, boq.Accepts("boq.pdf"))
	assert.True(t, boq.Accepts("BOQ.PDF"))
	assert.False(t, boq.Accepts("boq.docx"))

	image, _ := r.Lookup(RoleBidding, "projectImage")
	assert.True(t, image.Accepts("render.png"))
	assert.True(t, image.Accepts("render.jpg"))
	assert.False(t, image.Accepts("render.pdf"))
	assert.False(t, image.Accepts("render"))

	ifc, _ := r.Lookup(RoleDesign, FieldIFCModel)
	assert.True(t, ifc.Accepts("tower.ifc"))

	assert.True(t, Field{Kind: KindFile}.Accepts("anything.bin"))
}

func TestParseRole(t *testing.T) {
	role, ok := ParseRole("bidding")
	assert.True(t, ok)
	assert.Equal(t, RoleBidding, role)

	_, ok = ParseRole("closed")
	assert.False(t, ok)
}
