package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/xqopt/internal/rewrite"
)

func ruleNames(rs []rewrite.Rule) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Name()
	}
	return out
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{
		"descendant-or-self/child",
		"descendant-or-self/descendant",
		"self/child",
		"child/self",
	}, Names())
}

func TestDefault_FollowsFamilyOrder(t *testing.T) {
	assert.Equal(t, Names(), ruleNames(Default()))
	assert.Equal(t, DescendantOrSelfChild, Default()[0].(*AxisFusion).Spec())
}

func TestByName(t *testing.T) {
	t.Run("empty selects default", func(t *testing.T) {
		rs, err := ByName(nil)
		require.NoError(t, err)
		assert.Equal(t, Names(), ruleNames(rs))
	})
	t.Run("keeps requested order", func(t *testing.T) {
		rs, err := ByName([]string{"child/self", "descendant-or-self/child"})
		require.NoError(t, err)
		assert.Equal(t, []string{"child/self", "descendant-or-self/child"}, ruleNames(rs))
	})
	t.Run("unknown name", func(t *testing.T) {
		_, err := ByName([]string{"parent/child"})
		assert.ErrorContains(t, err, `unknown rule "parent/child"`)
	})
}
