package core

import "slices"

// RoleMapping associates a role name with the set of tags a holder of
// that role is implicitly granted. It is loaded once at startup and
// must be treated as read-only thereafter; concurrent readers are safe.
type RoleMapping map[string][]string

// TagsFor returns the tags granted by a role.
// A nil mapping or an unknown role grants nothing.
func (m RoleMapping) TagsFor(role string) []string {
	if m == nil || role == "" {
		return nil
	}
	return m[role]
}

// UserContext carries the caller-supplied identity for a single query.
// It is constructed fresh per query and never mutated after construction.
type UserContext struct {
	Role       string   // optional primary role
	DirectTags []string // tags supplied explicitly by the caller
}

// IsEmpty reports whether neither a role nor any direct tag was supplied.
// An empty context means the query runs unfiltered (admin/testing mode).
func (u UserContext) IsEmpty() bool {
	return u.Role == "" && len(u.DirectTags) == 0
}

// AccessFilter is the pure-data predicate evaluated by a vector store
// alongside similarity ranking. A chunk is visible when any of the
// following holds:
//
//   - the chunk's required role equals the user's role,
//   - the chunk's access tags intersect the user's authorized tags, or
//   - the chunk is public (no tags and no required role).
//
// A nil *AccessFilter means no filtering at all. AuthorizedTags are kept
// sorted and deduplicated so that equal user contexts build identical
// filters.
type AccessFilter struct {
	Role           string
	AuthorizedTags []string
}

// Matches evaluates the filter against a chunk's access metadata.
// A nil filter matches everything.
func (f *AccessFilter) Matches(chunk *Chunk) bool {
	if f == nil {
		return true
	}
	if chunk.IsPublic() {
		return true
	}
	if f.Role != "" && chunk.RequiredRole == f.Role {
		return true
	}
	for _, tag := range chunk.AccessTags {
		if slices.Contains(f.AuthorizedTags, tag) {
			return true
		}
	}
	return false
}

// Equal reports whether two filters are logically equivalent.
func (f *AccessFilter) Equal(other *AccessFilter) bool {
	if f == nil || other == nil {
		return f == other
	}
	return f.Role == other.Role && slices.Equal(f.AuthorizedTags, other.AuthorizedTags)
}
