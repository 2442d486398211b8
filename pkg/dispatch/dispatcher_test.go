package dispatch_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aanthord/knuckledragger/pkg/backend"
	"github.com/Aanthord/knuckledragger/pkg/backend/cert"
	"github.com/Aanthord/knuckledragger/pkg/dispatch"
	"github.com/Aanthord/knuckledragger/pkg/kernel"
	"github.com/Aanthord/knuckledragger/pkg/term"
)

type fakeAdapter struct {
	id             string
	untranslatable bool
	verdict        *backend.Verdict
	err            error
	invocations    atomic.Int64
}

func (a *fakeAdapter) ID() string { return a.id }

func (a *fakeAdapter) Translate(hyps []*term.Term, concl *term.Term) (*backend.Job, error) {
	if a.untranslatable {
		return nil, &backend.UntranslatableError{Oracle: a.id, Construct: "everything"}
	}
	return &backend.Job{OracleID: a.id}, nil
}

func (a *fakeAdapter) Invoke(ctx context.Context, job *backend.Job) (*backend.Verdict, error) {
	a.invocations.Add(1)
	if a.err != nil {
		return nil, a.err
	}
	v := *a.verdict
	v.Oracle = a.id
	return &v, nil
}

type listPolicy []string

func (p listPolicy) Trusted(id string) bool {
	for _, x := range p {
		if x == id {
			return true
		}
	}
	return false
}

func sequent(t *testing.T, tm *term.Interner) ([]*term.Term, *term.Term) {
	t.Helper()
	p, err := tm.FreeVar("p", term.Bool())
	require.NoError(t, err)
	q, err := tm.FreeVar("q", term.Bool())
	require.NoError(t, err)
	pq, err := tm.And(p, q)
	require.NoError(t, err)
	return []*term.Term{pq}, p
}

func TestProve_TrustedRefutation(t *testing.T) {
	tm := term.NewInterner()
	kern := kernel.New(tm)
	hyps, concl := sequent(t, tm)

	a := &fakeAdapter{id: "z3", verdict: &backend.Verdict{Kind: backend.Refuted}}
	d := dispatch.New(kern, listPolicy{"z3"}, []dispatch.Entry{{Adapter: a}})

	th, v, err := d.Prove(context.Background(), hyps, concl)
	require.NoError(t, err)
	require.NotNil(t, th)
	assert.Same(t, concl, th.Concl())
	assert.Equal(t, backend.Refuted, v.Kind)
	assert.Equal(t, "z3", th.Provenance().OracleID)
}

func TestProve_CertifiedRefutation(t *testing.T) {
	tm := term.NewInterner()
	kern := kernel.New(tm)
	hyps, concl := sequent(t, tm)

	enc, err := cert.EncodeTruthTable([]string{"p", "q"})
	require.NoError(t, err)
	a := &fakeAdapter{id: "egg", verdict: &backend.Verdict{
		Kind:        backend.Refuted,
		Certificate: enc,
		CertScheme:  cert.SchemeTruthTable,
	}}
	// no trust policy at all: the certificate alone must carry admission
	d := dispatch.New(kern, nil, []dispatch.Entry{{Adapter: a}},
		dispatch.WithChecker(cert.TruthTable{}))

	th, _, err := d.Prove(context.Background(), hyps, concl)
	require.NoError(t, err)
	require.NotNil(t, th)
	assert.Equal(t, cert.SchemeTruthTable, th.Provenance().Cert)
}

func TestProve_BadCertificateContinuesRace(t *testing.T) {
	tm := term.NewInterner()
	kern := kernel.New(tm)
	hyps, concl := sequent(t, tm)

	// certificate omits q, so the checker rejects it
	enc, err := cert.EncodeTruthTable([]string{"p"})
	require.NoError(t, err)
	bad := &fakeAdapter{id: "egg", verdict: &backend.Verdict{
		Kind:        backend.Refuted,
		Certificate: enc,
		CertScheme:  cert.SchemeTruthTable,
	}}
	d := dispatch.New(kern, nil, []dispatch.Entry{{Adapter: bad}},
		dispatch.WithChecker(cert.TruthTable{}))

	th, v, err := d.Prove(context.Background(), hyps, concl)
	require.NoError(t, err)
	assert.Nil(t, th, "rejected certificate must not mint")
	assert.Nil(t, v)
}

func TestProve_UntrustedRefutationDoesNotMint(t *testing.T) {
	tm := term.NewInterner()
	kern := kernel.New(tm)
	hyps, concl := sequent(t, tm)

	a := &fakeAdapter{id: "z3", verdict: &backend.Verdict{Kind: backend.Refuted}}
	d := dispatch.New(kern, listPolicy{"cvc5"}, []dispatch.Entry{{Adapter: a}})

	th, _, err := d.Prove(context.Background(), hyps, concl)
	require.NoError(t, err)
	assert.Nil(t, th)
}

func TestProve_ModelFoundWins(t *testing.T) {
	tm := term.NewInterner()
	kern := kernel.New(tm)
	hyps, concl := sequent(t, tm)

	a := &fakeAdapter{id: "z3", verdict: &backend.Verdict{
		Kind:  backend.ModelFound,
		Model: &backend.Model{Assignments: []backend.Assignment{{Name: "p", Value: "false"}}},
	}}
	d := dispatch.New(kern, listPolicy{"z3"}, []dispatch.Entry{{Adapter: a}})

	th, v, err := d.Prove(context.Background(), hyps, concl)
	require.NoError(t, err)
	assert.Nil(t, th)
	require.NotNil(t, v)
	assert.Equal(t, backend.ModelFound, v.Kind)
	require.NotNil(t, v.Model)
}

func TestProve_UntranslatableSkipped(t *testing.T) {
	tm := term.NewInterner()
	kern := kernel.New(tm)
	hyps, concl := sequent(t, tm)

	mute := &fakeAdapter{id: "btormc", untranslatable: true}
	ok := &fakeAdapter{id: "z3", verdict: &backend.Verdict{Kind: backend.Refuted}}
	d := dispatch.New(kern, listPolicy{"z3"}, []dispatch.Entry{
		{Adapter: mute, Rank: 0},
		{Adapter: ok, Rank: 1},
	})

	th, _, err := d.Prove(context.Background(), hyps, concl)
	require.NoError(t, err)
	require.NotNil(t, th)
	assert.Equal(t, int64(0), mute.invocations.Load(), "untranslatable oracle must not be invoked")
}

func TestProve_AllUntranslatable(t *testing.T) {
	tm := term.NewInterner()
	kern := kernel.New(tm)
	hyps, concl := sequent(t, tm)

	d := dispatch.New(kern, nil, []dispatch.Entry{
		{Adapter: &fakeAdapter{id: "a", untranslatable: true}},
		{Adapter: &fakeAdapter{id: "b", untranslatable: true}},
	})
	_, _, err := d.Prove(context.Background(), hyps, concl)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no oracle")
}

func TestProve_InconclusiveBest(t *testing.T) {
	tm := term.NewInterner()
	kern := kernel.New(tm)
	hyps, concl := sequent(t, tm)

	d := dispatch.New(kern, nil, []dispatch.Entry{
		{Adapter: &fakeAdapter{id: "a", verdict: &backend.Verdict{Kind: backend.Crashed}}},
		{Adapter: &fakeAdapter{id: "b", verdict: &backend.Verdict{Kind: backend.TimedOut}}},
		{Adapter: &fakeAdapter{id: "c", verdict: &backend.Verdict{Kind: backend.Unknown}}},
	})
	th, v, err := d.Prove(context.Background(), hyps, concl)
	require.NoError(t, err)
	assert.Nil(t, th)
	require.NotNil(t, v)
	assert.Equal(t, backend.TimedOut, v.Kind, "timeout is the most informative inconclusive verdict")
}

func TestProve_MemoizesConclusiveOutcomes(t *testing.T) {
	tm := term.NewInterner()
	kern := kernel.New(tm)
	hyps, concl := sequent(t, tm)

	a := &fakeAdapter{id: "z3", verdict: &backend.Verdict{Kind: backend.Refuted}}
	d := dispatch.New(kern, listPolicy{"z3"}, []dispatch.Entry{{Adapter: a}})

	th1, _, err := d.Prove(context.Background(), hyps, concl)
	require.NoError(t, err)
	th2, _, err := d.Prove(context.Background(), hyps, concl)
	require.NoError(t, err)
	assert.Same(t, th1, th2)
	assert.Equal(t, int64(1), a.invocations.Load(), "second ask must hit the memo")
}

func TestProve_AdapterErrorDoesNotPoisonRace(t *testing.T) {
	tm := term.NewInterner()
	kern := kernel.New(tm)
	hyps, concl := sequent(t, tm)

	broken := &fakeAdapter{id: "a", err: assert.AnError}
	ok := &fakeAdapter{id: "z3", verdict: &backend.Verdict{Kind: backend.Refuted}}
	d := dispatch.New(kern, listPolicy{"z3"}, []dispatch.Entry{
		{Adapter: broken},
		{Adapter: ok},
	})
	th, _, err := d.Prove(context.Background(), hyps, concl)
	require.NoError(t, err)
	require.NotNil(t, th)
	assert.Equal(t, "z3", th.Provenance().OracleID)
}
