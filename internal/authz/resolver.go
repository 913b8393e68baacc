// Package authz computes effective permission sets and answers capability
// queries for the admin console. The resolver is a UI/transport gate, never
// the sole enforcement point, so every failure mode degrades to "no access".
package authz

// Wildcard is the sentinel meaning "all permissions". It is never an
// enumerable code; admins resolve to the singleton wildcard set.
const Wildcard = "*"

// Grant is one permission entry of a role's view of a permission group.
type Grant struct {
	Code    string
	Granted bool
}

// GroupGrants is the per-role view of a single permission group: every
// permission in the group appears exactly once with its granted flag.
type GroupGrants struct {
	GroupID     int64
	Permissions []Grant
}

// RoleSnapshot carries the role's permission-group graph as loaded from the
// backend aggregate.
type RoleSnapshot struct {
	ID               int64
	PermissionGroups []GroupGrants
}

// Subject is the resolver's view of an authenticated user.
type Subject struct {
	ID      int64
	IsAdmin bool
	Role    *RoleSnapshot
}

// Set is an effective permission set. The zero value is usable and grants
// nothing.
type Set map[string]struct{}

// Resolve computes the effective permission set for a subject. A nil subject
// resolves to the empty set; an admin resolves to the wildcard singleton.
// Entries with a false granted flag contribute nothing, and a code granted in
// one group is not collapsed with the same code denied in another. Resolve
// never fails: absent or malformed data yields the empty set.
func Resolve(subject *Subject) Set {
	if subject == nil {
		return Set{}
	}
	if subject.IsAdmin {
		return Set{Wildcard: {}}
	}
	set := Set{}
	if subject.Role == nil {
		return set
	}
	for _, group := range subject.Role.PermissionGroups {
		for _, grant := range group.Permissions {
			if grant.Granted && grant.Code != "" {
				set[grant.Code] = struct{}{}
			}
		}
	}
	return set
}

// Has reports whether the set authorizes a single code. This is the
// authorization kernel: every capability query reduces to calls of Has.
func (s Set) Has(code string) bool {
	if _, ok := s[Wildcard]; ok {
		return true
	}
	_, ok := s[code]
	return ok
}

// HasAny reports whether at least one of the codes is authorized.
func (s Set) HasAny(codes ...string) bool {
	for _, code := range codes {
		if s.Has(code) {
			return true
		}
	}
	return false
}

// HasAll reports whether every code is authorized.
func (s Set) HasAll(codes ...string) bool {
	for _, code := range codes {
		if !s.Has(code) {
			return false
		}
	}
	return true
}

// Can answers a capability query for a resource/action pair, checking both
// code conventions with OR semantics.
func (s Set) Can(resource string, action Action) bool {
	return s.HasAny(Candidates(resource, action)...)
}

// CanCreate reports create capability for the resource.
func (s Set) CanCreate(resource string) bool { return s.Can(resource, ActionCreate) }

// CanRead reports read capability for the resource.
func (s Set) CanRead(resource string) bool { return s.Can(resource, ActionRead) }

// CanUpdate reports update capability for the resource.
func (s Set) CanUpdate(resource string) bool { return s.Can(resource, ActionUpdate) }

// CanDelete reports delete capability for the resource.
func (s Set) CanDelete(resource string) bool { return s.Can(resource, ActionDelete) }

// CanViewPage reports page-level visibility.
func (s Set) CanViewPage(page string) bool {
	return s.HasAny(PageCandidates(page)...)
}

// Codes returns the enumerable codes in the set. The wildcard sentinel is
// included as-is when present.
func (s Set) Codes() []string {
	codes := make([]string, 0, len(s))
	for code := range s {
		codes = append(codes, code)
	}
	return codes
}
