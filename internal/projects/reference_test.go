package projects

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestNormalizeLocationsDisambiguates(t *testing.T) {
	in := []Location{
		{ID: 3, SiteName: "Site B"},
		{ID: 2, SiteName: "Site A", Activity: strPtr("Phase2")},
		{ID: 1, SiteName: "Site A", Activity: strPtr("Phase1")},
	}

	out := NormalizeLocations(in, DefaultLocale)

	names := make([]string, 0, len(out))
	for _, l := range out {
		names = append(names, l.DisplayName)
	}
	assert.Equal(t, []string{"Site A (Phase1)", "Site A (Phase2)", "Site B"}, names)
	// input is left alone
	assert.Empty(t, in[0].DisplayName)
}

func TestNormalizeLocationsUniqueNameKeepsActivityOut(t *testing.T) {
	out := NormalizeLocations([]Location{{ID: 1, SiteName: "Depot", Activity: strPtr("Phase1")}}, DefaultLocale)
	assert.Equal(t, "Depot", out[0].DisplayName)
}

func TestNormalizeLocationsDuplicateWithoutActivity(t *testing.T) {
	out := NormalizeLocations([]Location{
		{ID: 1, SiteName: "Yard", Activity: strPtr("  ")},
		{ID: 2, SiteName: "Yard"},
	}, DefaultLocale)
	assert.Equal(t, "Yard", out[0].DisplayName)
	assert.Equal(t, "Yard", out[1].DisplayName)
}

func TestNormalizeEmployeesSortsByFirstName(t *testing.T) {
	out := NormalizeEmployees([]Employee{
		{ID: 1, FirstName: "สมชาย"},
		{ID: 2, FirstName: "กมล"},
		{ID: 3, FirstName: "ชนิดา"},
	}, DefaultLocale)

	assert.Equal(t, []int64{2, 3, 1}, []int64{out[0].ID, out[1].ID, out[2].ID})
}

func TestNormalizeWithUnknownLocaleFallsBack(t *testing.T) {
	out := NormalizeEmployees([]Employee{{ID: 1, FirstName: "Ben"}, {ID: 2, FirstName: "Amy"}}, "not a locale")
	assert.Equal(t, int64(2), out[0].ID)
}

func TestEmployeeFullName(t *testing.T) {
	var missing *Employee
	assert.Equal(t, "", missing.FullName())
	assert.Equal(t, "Amy", (&Employee{FirstName: "Amy"}).FullName())
	assert.Equal(t, "Amy Lee", (&Employee{FirstName: "Amy", LastName: "Lee"}).FullName())
}
