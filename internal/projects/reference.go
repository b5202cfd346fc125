package projects

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// DefaultLocale orders reference lists the way the sites and staff are named
const DefaultLocale = "th"

func newCollator(locale string) *collate.Collator {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.Thai
	}
	return collate.New(tag)
}

// NormalizeEmployees returns the personnel list ordered by first name
func NormalizeEmployees(items []Employee, locale string) []Employee {
	out := make([]Employee, len(items))
	copy(out, items)
	c := newCollator(locale)
	sort.SliceStable(out, func(i, j int) bool {
		return c.CompareString(out[i].FirstName, out[j].FirstName) < 0
	})
	return out
}

// NormalizeLocations sets each location's display name and orders by it.
// A site name shared by several locations is suffixed with the activity
// when one is present; identical names with identical or missing
// activities stay indistinguishable.
func NormalizeLocations(items []Location, locale string) []Location {
	counts := make(map[string]int, len(items))
	for _, l := range items {
		counts[l.SiteName]++
	}

	out := make([]Location, len(items))
	for i, l := range items {
		l.DisplayName = l.SiteName
		if counts[l.SiteName] > 1 && l.Activity != nil && strings.TrimSpace(*l.Activity) != "" {
			l.DisplayName = fmt.Sprintf("%s (%s)", l.SiteName, *l.Activity)
		}
		out[i] = l
	}

	c := newCollator(locale)
	sort.SliceStable(out, func(i, j int) bool {
		return c.CompareString(out[i].DisplayName, out[j].DisplayName) < 0
	})
	return out
}
