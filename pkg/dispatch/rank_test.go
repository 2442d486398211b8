package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aanthord/knuckledragger/pkg/backend"
	"github.com/Aanthord/knuckledragger/pkg/term"
)

func TestSortByRank(t *testing.T) {
	mk := func(rank int) raceResult {
		return raceResult{entry: Entry{Rank: rank}}
	}
	rs := []raceResult{mk(2), mk(0), mk(1), mk(0)}
	sortByRank(rs)
	got := make([]int, len(rs))
	for i, r := range rs {
		got[i] = r.entry.Rank
	}
	assert.Equal(t, []int{0, 0, 1, 2}, got)
}

func TestMoreInformative(t *testing.T) {
	v := func(k backend.VerdictKind) *backend.Verdict { return &backend.Verdict{Kind: k} }

	assert.True(t, moreInformative(v(backend.TimedOut), v(backend.Unknown)))
	assert.True(t, moreInformative(v(backend.Unknown), v(backend.Crashed)))
	assert.False(t, moreInformative(v(backend.Crashed), v(backend.TimedOut)))
	assert.False(t, moreInformative(v(backend.Unknown), v(backend.Unknown)))
}

func TestGoalKey_HypothesisOrderIrrelevant(t *testing.T) {
	tm := term.NewInterner()
	p, err := tm.FreeVar("p", term.Bool())
	require.NoError(t, err)
	q, err := tm.FreeVar("q", term.Bool())
	require.NoError(t, err)
	r, err := tm.FreeVar("r", term.Bool())
	require.NoError(t, err)

	k1 := goalKey([]*term.Term{p, q}, r)
	k2 := goalKey([]*term.Term{q, p}, r)
	assert.Equal(t, k1, k2)

	k3 := goalKey([]*term.Term{p}, r)
	assert.NotEqual(t, k1, k3)
	k4 := goalKey([]*term.Term{p, q}, q)
	assert.NotEqual(t, k1, k4)
}
