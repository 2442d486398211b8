package kernel

import (
	"github.com/Aanthord/knuckledragger/pkg/term"
)

// TrustPolicy answers whether an oracle's bare Refuted verdicts may be
// accepted as axiom-level justification. The policy is explicit
// configuration; nothing in the kernel trusts an oracle by default.
type TrustPolicy interface {
	Trusted(oracleID string) bool
}

// CertChecker validates a machine-checkable certificate against the
// claim it is supposed to establish. A checker keeps its oracle out of
// the trust boundary: the kernel mints the theorem only after Check
// succeeds.
type CertChecker interface {
	// Scheme names the certificate format this checker validates.
	Scheme() string
	// Check returns nil only if cert establishes hyps |- concl.
	Check(tm *term.Interner, hyps []*term.Term, concl *term.Term, cert []byte) error
}

// AdmitTrusted mints G |- c on the authority of an explicitly trusted
// oracle. The kernel itself consults the policy; callers cannot skip
// the check.
func (k *Kernel) AdmitTrusted(policy TrustPolicy, oracleID string, hyps []*term.Term, concl *term.Term) (*Theorem, error) {
	if err := wantBool(RuleAdmit, concl); err != nil {
		return nil, err
	}
	for _, h := range hyps {
		if err := wantBool(RuleAdmit, h); err != nil {
			return nil, err
		}
	}
	if oracleID == "" {
		return nil, kerr(RuleAdmit, "empty oracle id")
	}
	if policy == nil || !policy.Trusted(oracleID) {
		return nil, kerr(RuleAdmit, "oracle %q is not on the trusted list", oracleID)
	}
	return k.mk(RuleAdmit, hyps, concl, Provenance{OracleID: oracleID, TermArgs: append(append([]*term.Term(nil), hyps...), concl)}), nil
}

// AdmitCertified mints G |- c after independently validating the
// oracle's certificate. The oracle stays outside the trust boundary;
// only the checker is trusted.
func (k *Kernel) AdmitCertified(checker CertChecker, oracleID string, hyps []*term.Term, concl *term.Term, cert []byte) (*Theorem, error) {
	if err := wantBool(RuleAdmit, concl); err != nil {
		return nil, err
	}
	for _, h := range hyps {
		if err := wantBool(RuleAdmit, h); err != nil {
			return nil, err
		}
	}
	if checker == nil {
		return nil, kerr(RuleAdmit, "no certificate checker supplied")
	}
	if len(cert) == 0 {
		return nil, kerr(RuleAdmit, "empty certificate")
	}
	if err := checker.Check(k.tm, hyps, concl, cert); err != nil {
		return nil, kerr(RuleAdmit, "certificate (%s) rejected: %v", checker.Scheme(), err)
	}
	return k.mk(RuleAdmit, hyps, concl, Provenance{
		OracleID: oracleID,
		Cert:     checker.Scheme(),
		TermArgs: append(append([]*term.Term(nil), hyps...), concl),
	}), nil
}
