package access

import (
	"sort"

	"github.com/poiesic/ragfence/core"
)

// Tagger attaches access-control metadata to chunks at ingestion time.
// A Tagger carries the policy of one source document; every chunk
// derived from that document receives identical metadata.
//
// No validation is performed on tag spelling or role existence: the
// policy vocabulary is the caller's responsibility, and a tag unknown
// to the role mapping simply never intersects an authorized set.
type Tagger struct {
	accessTags   []string
	requiredRole string
}

// NewTagger creates a tagger for one document's access policy.
// Tags are deduplicated and stored sorted; an empty tag set means the
// document is public with respect to tags, and an empty requiredRole
// means no strict-role gate.
func NewTagger(accessTags []string, requiredRole string) *Tagger {
	set := make(map[string]struct{}, len(accessTags))
	for _, tag := range accessTags {
		if tag != "" {
			set[tag] = struct{}{}
		}
	}
	tags := make([]string, 0, len(set))
	for tag := range set {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	return &Tagger{
		accessTags:   tags,
		requiredRole: requiredRole,
	}
}

// Tag populates the chunk's access metadata and returns the chunk.
// Each chunk receives its own copy of the tag slice so stored chunks
// never alias the tagger's state.
func (t *Tagger) Tag(chunk *core.Chunk) *core.Chunk {
	if len(t.accessTags) == 0 {
		chunk.AccessTags = nil
	} else {
		chunk.AccessTags = append([]string(nil), t.accessTags...)
	}
	chunk.RequiredRole = t.requiredRole
	return chunk
}

// TagAll applies the document's access policy to every chunk.
func (t *Tagger) TagAll(chunks []*core.Chunk) {
	for _, chunk := range chunks {
		t.Tag(chunk)
	}
}
