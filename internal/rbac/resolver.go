package rbac

import "sort"

// Set is a de-duplicated collection of permissions.
type Set map[Permission]struct{}

// NewSet builds a Set from the given permissions.
func NewSet(perms ...Permission) Set {
	s := make(Set, len(perms))
	for _, p := range perms {
		s[p] = struct{}{}
	}
	return s
}

// Has reports whether p is in the set.
func (s Set) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// Union returns a new set containing every permission in s or other.
func (s Set) Union(other Set) Set {
	out := make(Set, len(s)+len(other))
	for p := range s {
		out[p] = struct{}{}
	}
	for p := range other {
		out[p] = struct{}{}
	}
	return out
}

// Slice returns the set's permissions sorted lexicographically.
func (s Set) Slice() []Permission {
	out := make([]Permission, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Grant describes the permission-bearing attributes of a company member with
// its base role already resolved: either DefaultRole is set, or the custom
// role's stored permission list is in CustomPermissions. Extra holds ad-hoc
// grants. Permissions are strictly additive.
type Grant struct {
	DefaultRole       *DefaultRole
	CustomPermissions []Permission
	Extra             []Permission
}

// EffectivePermissions computes the union of the grant's base-role permission
// set and its extra permissions. A grant with no base role yields only the
// extra permissions; a fully empty grant yields the empty set. Never errors.
func EffectivePermissions(g Grant) Set {
	var base Set
	if g.DefaultRole != nil {
		base = RolePermissions(*g.DefaultRole)
	} else {
		base = NewSet(g.CustomPermissions...)
	}
	return base.Union(NewSet(g.Extra...))
}

// HasPermission is a pure membership test over EffectivePermissions.
func HasPermission(g Grant, p Permission) bool {
	return EffectivePermissions(g).Has(p)
}
