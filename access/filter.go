package access

import "github.com/poiesic/ragfence/core"

// BuildFilter translates a user context into the access predicate
// handed to the vector store's search call.
//
// When the caller supplies neither a role nor any direct tags the
// result is nil, meaning the search runs unfiltered over all chunks.
// This is the documented admin/testing bypass, not an error state.
//
// Otherwise the filter encodes the hybrid predicate: a chunk is visible
// when its required role equals the user's role, OR its access tags
// intersect the user's authorized tags, OR it is public. The public
// disjunct is implicit in core.AccessFilter and in every store
// translation; without it restricted users would lose access to
// unrestricted content.
func BuildFilter(user core.UserContext, mapping core.RoleMapping) *core.AccessFilter {
	if user.IsEmpty() {
		return nil
	}

	return &core.AccessFilter{
		Role:           user.Role,
		AuthorizedTags: Resolve(user.Role, user.DirectTags, mapping),
	}
}
