package prooflog_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aanthord/knuckledragger/pkg/kernel"
	"github.com/Aanthord/knuckledragger/pkg/prooflog"
	"github.com/Aanthord/knuckledragger/pkg/term"
)

// derive builds {p} |- q => q /\ p style material: a small proof with a
// shared premise so the DAG walk is exercised.
func derive(t *testing.T) (*kernel.Kernel, *kernel.Theorem) {
	t.Helper()
	tm := term.NewInterner()
	k := kernel.New(tm)

	p, err := tm.FreeVar("p", term.Bool())
	require.NoError(t, err)
	pTh, err := k.Assume(p)
	require.NoError(t, err)
	both, err := k.ConjIntro(pTh, pTh)
	require.NoError(t, err)
	final, err := k.Discharge(p, both)
	require.NoError(t, err)
	return k, final
}

func TestRecord_WalksProvenanceOnce(t *testing.T) {
	_, th := derive(t)
	log := prooflog.New()

	seq, err := log.Record(th)
	require.NoError(t, err)

	// assume, conj_intro, discharge: the shared premise is logged once
	assert.Equal(t, 3, log.Len())
	assert.Equal(t, uint64(2), seq)

	entries := log.Entries()
	assert.Equal(t, kernel.RuleAssume, entries[0].Rule)
	assert.Equal(t, kernel.RuleConjIntro, entries[1].Rule)
	assert.Equal(t, []uint64{0, 0}, entries[1].Premises)
	assert.Equal(t, kernel.RuleDischarge, entries[2].Rule)
	assert.Equal(t, entries[2].Digest, log.Head())
}

func TestRecord_Idempotent(t *testing.T) {
	_, th := derive(t)
	log := prooflog.New()

	s1, err := log.Record(th)
	require.NoError(t, err)
	s2, err := log.Record(th)
	require.NoError(t, err)
	assert.Equal(t, s1, s2)
	assert.Equal(t, 3, log.Len())
}

func TestVerifyChain(t *testing.T) {
	_, th := derive(t)
	log := prooflog.New()
	_, err := log.Record(th)
	require.NoError(t, err)

	require.NoError(t, log.VerifyChain())

	t.Run("tampered conclusion detected", func(t *testing.T) {
		entries := log.Entries()
		tampered := *entries[1]
		tampered.Concl = "|- something else"
		entries[1] = &tampered
		err := prooflog.VerifyChain(entries)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "digest mismatch")
	})

	t.Run("dropped entry detected", func(t *testing.T) {
		entries := log.Entries()
		err := prooflog.VerifyChain(entries[1:])
		assert.Error(t, err)
	})

	t.Run("forward premise reference detected", func(t *testing.T) {
		entries := log.Entries()
		tampered := *entries[1]
		tampered.Premises = []uint64{2}
		// recompute nothing: the digest check fires first, which is the
		// point of chaining
		entries[1] = &tampered
		assert.Error(t, prooflog.VerifyChain(entries))
	})

	t.Run("empty log verifies", func(t *testing.T) {
		assert.NoError(t, prooflog.VerifyChain(nil))
	})
}

func TestReplay(t *testing.T) {
	k, th := derive(t)
	assert.NoError(t, prooflog.Replay(k, th))
}
