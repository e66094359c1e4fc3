package qdrant

import (
	"fmt"

	"github.com/poiesic/ragfence/core"
	"github.com/poiesic/ragfence/storage"
)

// translateFilter converts an access filter into Qdrant's native filter
// form. A nil filter translates to no filter at all. The result is a
// disjunction: a strict role match, a tag intersection, and a clause
// admitting public chunks.
//
// Public chunks are upserted with their access keys omitted from the
// payload, so Qdrant's is_empty condition identifies them.
//
// A non-nil filter with neither a role nor tags has no native
// translation here and fails with storage.ErrUnsupportedFilter rather
// than silently matching more than intended.
func translateFilter(filter *core.AccessFilter) (map[string]any, error) {
	if filter == nil {
		return nil, nil
	}

	var should []map[string]any
	if filter.Role != "" {
		should = append(should, map[string]any{
			"key":   "required_role_strict",
			"match": map[string]any{"value": filter.Role},
		})
	}
	if len(filter.AuthorizedTags) > 0 {
		should = append(should, map[string]any{
			"key":   "access_tags",
			"match": map[string]any{"any": filter.AuthorizedTags},
		})
	}
	if len(should) == 0 {
		return nil, fmt.Errorf("%w: filter carries neither a role nor authorized tags", storage.ErrUnsupportedFilter)
	}

	should = append(should, map[string]any{
		"must": []map[string]any{
			{"is_empty": map[string]any{"key": "access_tags"}},
			{"is_empty": map[string]any{"key": "required_role_strict"}},
		},
	})

	return map[string]any{"should": should}, nil
}

// documentFilter builds a filter matching all points of one document.
func documentFilter(documentId string) map[string]any {
	return map[string]any{
		"must": []map[string]any{
			{
				"key":   "document_id",
				"match": map[string]any{"value": documentId},
			},
		},
	}
}
