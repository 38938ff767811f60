package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/xqopt/internal/plan"
	"github.com/roach88/xqopt/internal/planspec"
)

func TestExplain_Text(t *testing.T) {
	out, err := execute(t, "explain", planPath("descendant_child"))
	require.NoError(t, err)
	assert.Equal(t, `distribute-result $3
  navigate $3 <- child($2, "b")
    navigate $2 <- descendant-or-self($1)
      assign $1 <- root()
        empty-tuple-source
`, out)
}

func TestExplain_CUERoundTrips(t *testing.T) {
	out, err := execute(t, "explain", planPath("descendant_child"), "--cue", "--format", "json")
	require.NoError(t, err)
	resp := decode[ExplainResult](t, out)
	require.NotEmpty(t, resp.Data.CUE)

	spec, err := planspec.CompileString(resp.Data.CUE, "explained.cue")
	require.NoError(t, err)
	fp, err := plan.Fingerprint(spec.Plan)
	require.NoError(t, err)
	assert.Equal(t, resp.Data.Fingerprint, fp)
}

func TestExplain_NotFound(t *testing.T) {
	_, err := execute(t, "explain", planPath("nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
