package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccessFilterMatches(t *testing.T) {
	public := &Chunk{Contents: "public"}
	finance := &Chunk{Contents: "finance", AccessTags: []string{"Finance", "Confidential"}}
	execOnly := &Chunk{Contents: "exec", RequiredRole: "Executive"}
	hybrid := &Chunk{Contents: "hybrid", AccessTags: []string{"Reports"}, RequiredRole: "Executive"}

	t.Run("nil filter matches everything", func(t *testing.T) {
		var f *AccessFilter
		assert.True(t, f.Matches(public))
		assert.True(t, f.Matches(finance))
		assert.True(t, f.Matches(execOnly))
	})

	t.Run("public chunks match any filter", func(t *testing.T) {
		f := &AccessFilter{Role: "Anyone", AuthorizedTags: []string{"Unrelated"}}
		assert.True(t, f.Matches(public))
	})

	t.Run("tag intersection grants access", func(t *testing.T) {
		f := &AccessFilter{Role: "Finance_Manager", AuthorizedTags: []string{"Finance", "Internal", "Reports"}}
		assert.True(t, f.Matches(finance))
	})

	t.Run("no overlap denies access", func(t *testing.T) {
		f := &AccessFilter{Role: "Engineer", AuthorizedTags: []string{"Technical"}}
		assert.False(t, f.Matches(finance))
	})

	t.Run("strict role exact match", func(t *testing.T) {
		exec := &AccessFilter{Role: "Executive"}
		manager := &AccessFilter{Role: "Manager"}
		assert.True(t, exec.Matches(execOnly))
		assert.False(t, manager.Matches(execOnly))
	})

	t.Run("hybrid OR: tags reach a role-gated chunk", func(t *testing.T) {
		f := &AccessFilter{Role: "Analyst", AuthorizedTags: []string{"Reports"}}
		assert.True(t, f.Matches(hybrid))
	})

	t.Run("empty user role never satisfies a role gate", func(t *testing.T) {
		f := &AccessFilter{AuthorizedTags: []string{"Unrelated"}}
		assert.False(t, f.Matches(execOnly))
	})
}

func TestAccessFilterEqual(t *testing.T) {
	a := &AccessFilter{Role: "Executive", AuthorizedTags: []string{"Finance", "Reports"}}
	b := &AccessFilter{Role: "Executive", AuthorizedTags: []string{"Finance", "Reports"}}
	c := &AccessFilter{Role: "Executive", AuthorizedTags: []string{"Finance"}}

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(nil))

	var nilA, nilB *AccessFilter
	assert.True(t, nilA.Equal(nilB))
}

func TestRoleMappingTagsFor(t *testing.T) {
	mapping := RoleMapping{"Finance_Manager": {"Finance", "Internal", "Reports"}}

	assert.Equal(t, []string{"Finance", "Internal", "Reports"}, mapping.TagsFor("Finance_Manager"))
	assert.Nil(t, mapping.TagsFor("Unknown"))
	assert.Nil(t, mapping.TagsFor(""))

	var nilMapping RoleMapping
	assert.Nil(t, nilMapping.TagsFor("Finance_Manager"))
}

func TestUserContextIsEmpty(t *testing.T) {
	assert.True(t, UserContext{}.IsEmpty())
	assert.False(t, UserContext{Role: "Executive"}.IsEmpty())
	assert.False(t, UserContext{DirectTags: []string{"Finance"}}.IsEmpty())
}
