package schema

import (
	"mime"
	"path/filepath"
	"strings"
)

// Role identifies the acting department, or the admin super-role
type Role string

const (
	RoleSurvey  Role = "survey"
	RoleDesign  Role = "design"
	RoleBidding Role = "bidding"
	RolePM      Role = "pm"
	RoleAdmin   Role = "admin"
)

// Roles lists every role in stage order, admin last
var Roles = []Role{RoleSurvey, RoleDesign, RoleBidding, RolePM, RoleAdmin}

// ParseRole validates a role name
func ParseRole(s string) (Role, bool) {
	for _, r := range Roles {
		if string(r) == s {
			return r, true
		}
	}
	return "", false
}

// Kind is the input type of a field
type Kind string

const (
	KindText     Kind = "text"
	KindNumber   Kind = "number"
	KindDate     Kind = "date"
	KindSelect   Kind = "select"
	KindCheckbox Kind = "checkbox"
	KindFile     Kind = "file"
)

// Source names the reference list a select field draws its options from
type Source string

const (
	SourceNone      Source = ""
	SourceEmployees Source = "employees"
	SourceLocations Source = "locations"
)

// DateLayout is the wire and storage format of date fields
const DateLayout = "2006-01-02"

// Field describes one editable field of a role's form.
//
// Options and Source only apply to KindSelect, Accept only to KindFile and
// Group only to KindCheckbox.
type Field struct {
	Name     string   `json:"name"`
	Label    string   `json:"label"`
	Kind     Kind     `json:"type"`
	Required bool     `json:"required"`
	Options  []string `json:"options,omitempty"`
	Source   Source   `json:"source,omitempty"`
	Accept   string   `json:"accept,omitempty"`
	Group    string   `json:"group,omitempty"`
	ReadOnly bool     `json:"read_only,omitempty"`
}

// IsReference reports whether the field stores a foreign key id
func (f Field) IsReference() bool {
	return f.Kind == KindSelect && f.Source != SourceNone
}

// HasOption reports whether v is one of the field's fixed options
func (f Field) HasOption(v string) bool {
	for _, o := range f.Options {
		if o == v {
			return true
		}
	}
	return false
}

// Accepts checks a file name against the field's accept list.
// An empty accept list accepts anything.
func (f Field) Accepts(fileName string) bool {
	if f.Accept == "" {
		return true
	}
	ext := strings.ToLower(filepath.Ext(fileName))
	for _, pattern := range strings.Split(f.Accept, ",") {
		pattern = strings.ToLower(strings.TrimSpace(pattern))
		switch {
		case pattern == "":
			continue
		case strings.HasPrefix(pattern, "."):
			if ext == pattern {
				return true
			}
		case strings.HasSuffix(pattern, "/*"):
			if ext == "" {
				continue
			}
			if strings.HasPrefix(mime.TypeByExtension(ext), strings.TrimSuffix(pattern, "*")) {
				return true
			}
		default:
			if mt := mime.TypeByExtension(ext); mt != "" && strings.HasPrefix(mt, pattern) {
				return true
			}
		}
	}
	return false
}
