package sqlite

import (
	"fmt"
	"strings"

	"github.com/poiesic/ragfence/core"
	"github.com/poiesic/ragfence/storage"
)

// buildAccessClause translates an access filter into a SQL predicate
// over the chunks table, returning the clause and its bind arguments.
// A nil filter yields an empty clause. A non-nil filter with neither a
// role nor tags fails with storage.ErrUnsupportedFilter rather than
// silently matching more than intended.
//
// Access tags are stored as a JSON array, so the tag intersection is
// expressed with json_each.
func buildAccessClause(filter *core.AccessFilter) (string, []any, error) {
	if filter == nil {
		return "", nil, nil
	}

	var clauses []string
	var args []any

	if filter.Role != "" {
		clauses = append(clauses, "required_role = ?")
		args = append(args, filter.Role)
	}
	if len(filter.AuthorizedTags) > 0 {
		placeholders := strings.Repeat("?, ", len(filter.AuthorizedTags))
		placeholders = placeholders[:len(placeholders)-2]
		clauses = append(clauses, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM json_each(chunks.access_tags) WHERE json_each.value IN (%s))",
			placeholders,
		))
		for _, tag := range filter.AuthorizedTags {
			args = append(args, tag)
		}
	}
	if len(clauses) == 0 {
		return "", nil, fmt.Errorf("%w: filter carries neither a role nor authorized tags", storage.ErrUnsupportedFilter)
	}

	// Public chunks carry no tags and no required role
	clauses = append(clauses, "(json_array_length(chunks.access_tags) = 0 AND required_role = '')")

	return "(" + strings.Join(clauses, " OR ") + ")", args, nil
}
