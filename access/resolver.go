package access

import (
	"sort"
	"strings"

	"github.com/poiesic/ragfence/core"
)

// Resolve derives a user's effective authorized-tag set: the union of
// their directly supplied tags and the tags granted by their role via
// the mapping. A missing role, a role absent from the mapping, and a
// nil mapping are all valid and contribute no extra tags.
//
// The result is sorted and deduplicated so that resolving the same
// inputs always yields the identical set.
func Resolve(role string, directTags []string, mapping core.RoleMapping) []string {
	granted := mapping.TagsFor(role)

	set := make(map[string]struct{}, len(directTags)+len(granted))
	for _, tag := range directTags {
		if tag != "" {
			set[tag] = struct{}{}
		}
	}
	for _, tag := range granted {
		if tag != "" {
			set[tag] = struct{}{}
		}
	}

	tags := make([]string, 0, len(set))
	for tag := range set {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// ParseTags splits a comma-separated tag list as supplied on the
// command line, trimming whitespace and dropping empty entries.
func ParseTags(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	tags := make([]string, 0, len(parts))
	for _, part := range parts {
		if tag := strings.TrimSpace(part); tag != "" {
			tags = append(tags, tag)
		}
	}
	if len(tags) == 0 {
		return nil
	}
	return tags
}
