package analysis

import "strings"

// Role is the analytical specialty an agent covers. The set is closed;
// anything coming in from config files, presets or agent replies must go
// through NormalizeRole before it is compared to anything else.
type Role string

const (
	RoleSecurity      Role = "security"
	RolePerformance   Role = "performance"
	RoleArchitecture  Role = "architecture"
	RoleQuality       Role = "quality"
	RoleDependencies  Role = "dependencies"
	RoleDocumentation Role = "documentation"
)

// Roles lists every known role in canonical order.
var Roles = []Role{
	RoleSecurity,
	RolePerformance,
	RoleArchitecture,
	RoleQuality,
	RoleDependencies,
	RoleDocumentation,
}

var roleAliases = map[string]Role{
	"security":      RoleSecurity,
	"sec":           RoleSecurity,
	"performance":   RolePerformance,
	"perf":          RolePerformance,
	"architecture":  RoleArchitecture,
	"arch":          RoleArchitecture,
	"quality":       RoleQuality,
	"codequality":   RoleQuality,
	"dependencies":  RoleDependencies,
	"dependency":    RoleDependencies,
	"deps":          RoleDependencies,
	"documentation": RoleDocumentation,
	"docs":          RoleDocumentation,
	"educational":   RoleDocumentation,
}

// NormalizeRole maps any reasonable spelling of a role to its canonical
// value: case-insensitive, separator-insensitive ("code_quality",
// "Code-Quality" and "codeQuality" all normalize to RoleQuality).
func NormalizeRole(raw string) (Role, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.NewReplacer("-", "", "_", "", " ", "").Replace(s)
	r, ok := roleAliases[s]
	return r, ok
}

// Valid reports whether r is one of the canonical roles.
func (r Role) Valid() bool {
	n, ok := NormalizeRole(string(r))
	return ok && n == r
}
