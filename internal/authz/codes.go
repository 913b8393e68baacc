package authz

import "strings"

// Action enumerates the CRUD capabilities a resource can be queried for.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Two permission code conventions coexist in the catalog: the colon form
// ("roles:update") and the legacy underscore form ("ROLES_UPDATE"). The legacy
// form uses the VIEW suffix for read access ("ITEMS_VIEW", not "ITEMS_READ").
// The table keeps the convention auditable in one place; do not "fix" the
// VIEW/READ asymmetry.
var actionSuffixes = map[Action]struct {
	colon      string
	underscore string
}{
	ActionCreate: {colon: "create", underscore: "CREATE"},
	ActionRead:   {colon: "read", underscore: "VIEW"},
	ActionUpdate: {colon: "update", underscore: "UPDATE"},
	ActionDelete: {colon: "delete", underscore: "DELETE"},
}

// Candidates derives the permission codes checked for a resource/action pair.
// A capability query succeeds when any candidate is granted.
func Candidates(resource string, action Action) []string {
	suffixes, ok := actionSuffixes[action]
	if !ok {
		return nil
	}
	resource = strings.TrimSpace(resource)
	if resource == "" {
		return nil
	}
	return []string{
		strings.ToLower(resource) + ":" + suffixes.colon,
		strings.ToUpper(resource) + "_" + suffixes.underscore,
	}
}

// PageCandidates derives the codes that gate page-level visibility. Pages use
// the read convention: "{page}:read" or "{PAGE}_VIEW".
func PageCandidates(page string) []string {
	return Candidates(page, ActionRead)
}
