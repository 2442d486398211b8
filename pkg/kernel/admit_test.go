package kernel_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aanthord/knuckledragger/pkg/kernel"
	"github.com/Aanthord/knuckledragger/pkg/term"
)

type listPolicy []string

func (p listPolicy) Trusted(id string) bool {
	for _, x := range p {
		if x == id {
			return true
		}
	}
	return false
}

type stubChecker struct {
	scheme string
	err    error
}

func (c stubChecker) Scheme() string { return c.scheme }
func (c stubChecker) Check(*term.Interner, []*term.Term, *term.Term, []byte) error {
	return c.err
}

func TestAdmitTrusted(t *testing.T) {
	k, tm := newKernel(t)
	p := boolVar(t, tm, "p")

	t.Run("accepts a listed oracle", func(t *testing.T) {
		th, err := k.AdmitTrusted(listPolicy{"z3"}, "z3", nil, p)
		require.NoError(t, err)
		assert.Same(t, p, th.Concl())
		prov := th.Provenance()
		assert.Equal(t, kernel.RuleAdmit, prov.Rule)
		assert.Equal(t, "z3", prov.OracleID)
		assert.Empty(t, prov.Cert)
	})

	t.Run("rejects an unlisted oracle", func(t *testing.T) {
		_, err := k.AdmitTrusted(listPolicy{"z3"}, "cvc5", nil, p)
		var kerr *kernel.KernelError
		require.ErrorAs(t, err, &kerr)
		assert.Equal(t, kernel.RuleAdmit, kerr.Rule)
	})

	t.Run("rejects a nil policy", func(t *testing.T) {
		_, err := k.AdmitTrusted(nil, "z3", nil, p)
		assert.Error(t, err)
	})

	t.Run("rejects a non-boolean conclusion", func(t *testing.T) {
		_, err := k.AdmitTrusted(listPolicy{"z3"}, "z3", nil, tm.IntLit(1))
		assert.Error(t, err)
	})

	t.Run("rejects a non-boolean hypothesis", func(t *testing.T) {
		_, err := k.AdmitTrusted(listPolicy{"z3"}, "z3", []*term.Term{tm.IntLit(1)}, p)
		assert.Error(t, err)
	})
}

func TestAdmitCertified(t *testing.T) {
	k, tm := newKernel(t)
	p := boolVar(t, tm, "p")
	cert := []byte(`{"ok":true}`)

	t.Run("mints after the checker accepts", func(t *testing.T) {
		th, err := k.AdmitCertified(stubChecker{scheme: "stub"}, "egg", nil, p, cert)
		require.NoError(t, err)
		assert.Same(t, p, th.Concl())
		prov := th.Provenance()
		assert.Equal(t, "egg", prov.OracleID)
		assert.Equal(t, "stub", prov.Cert)
		assert.NoError(t, k.Recheck(th))
	})

	t.Run("refuses when the checker rejects", func(t *testing.T) {
		bad := stubChecker{scheme: "stub", err: errors.New("trace does not replay")}
		_, err := k.AdmitCertified(bad, "egg", nil, p, cert)
		var kerr *kernel.KernelError
		require.ErrorAs(t, err, &kerr)
		assert.Contains(t, kerr.Precondition, "trace does not replay")
	})

	t.Run("refuses an empty certificate", func(t *testing.T) {
		_, err := k.AdmitCertified(stubChecker{scheme: "stub"}, "egg", nil, p, nil)
		assert.Error(t, err)
	})

	t.Run("refuses a nil checker", func(t *testing.T) {
		_, err := k.AdmitCertified(nil, "egg", nil, p, cert)
		assert.Error(t, err)
	})
}
