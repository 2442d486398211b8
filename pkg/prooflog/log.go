// Package prooflog records how every theorem was derived: an
// append-only, hash-chained sequence of derivation steps walked out of
// theorem provenance. The log is an audit artifact, not part of the
// trust boundary; Replay re-enters the kernel to confirm each step
// still derives.
package prooflog

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gowebpki/jcs"
	"golang.org/x/crypto/blake2b"

	"github.com/Aanthord/knuckledragger/pkg/kernel"
)

// Entry is one derivation step. Digest covers the JCS-canonical JSON
// of every other field, and Prev chains to the preceding entry, so any
// mutation of recorded history breaks verification from that point on.
type Entry struct {
	Seq        uint64   `json:"seq"`
	Rule       string   `json:"rule"`
	OracleID   string   `json:"oracle_id,omitempty"`
	CertScheme string   `json:"cert_scheme,omitempty"`
	Hyps       []string `json:"hyps,omitempty"`
	Concl      string   `json:"concl"`
	Premises   []uint64 `json:"premises,omitempty"`
	TermArgs   []string `json:"term_args,omitempty"`
	RecordedAt string   `json:"recorded_at"`
	Prev       string   `json:"prev"`

	Digest string `json:"-"`
}

// Log is an in-memory hash-chained proof log. Safe for concurrent use.
type Log struct {
	mu      sync.Mutex
	entries []*Entry
	index   map[*kernel.Theorem]uint64
	head    string
	now     func() time.Time
}

// New creates an empty log.
func New() *Log {
	return &Log{
		index: map[*kernel.Theorem]uint64{},
		now:   time.Now,
	}
}

// Record walks the theorem's provenance depth-first and appends an
// entry per derivation step, premises before conclusions. Steps
// already recorded are shared, so a lemma used twice is logged once.
// Returns the sequence number of the theorem's own entry.
func (l *Log) Record(th *kernel.Theorem) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.record(th)
}

func (l *Log) record(th *kernel.Theorem) (uint64, error) {
	if seq, ok := l.index[th]; ok {
		return seq, nil
	}
	prov := th.Provenance()
	premises := make([]uint64, len(prov.Premises))
	for i, p := range prov.Premises {
		seq, err := l.record(p)
		if err != nil {
			return 0, err
		}
		premises[i] = seq
	}

	e := &Entry{
		Seq:        uint64(len(l.entries)),
		Rule:       prov.Rule,
		OracleID:   prov.OracleID,
		CertScheme: prov.Cert,
		Concl:      th.Concl().String(),
		Premises:   premises,
		RecordedAt: l.now().UTC().Format(time.RFC3339Nano),
		Prev:       l.head,
	}
	for _, h := range th.Hyps() {
		e.Hyps = append(e.Hyps, h.String())
	}
	for _, t := range prov.TermArgs {
		e.TermArgs = append(e.TermArgs, t.String())
	}
	digest, err := entryDigest(e)
	if err != nil {
		return 0, err
	}
	e.Digest = digest
	l.entries = append(l.entries, e)
	l.index[th] = e.Seq
	l.head = digest
	return e.Seq, nil
}

// Entries returns the log in order.
func (l *Log) Entries() []*Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Head returns the digest of the latest entry, empty for an empty log.
func (l *Log) Head() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.head
}

// Len returns the number of recorded entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// VerifyChain recomputes every digest and checks the chain links.
func (l *Log) VerifyChain() error {
	return VerifyChain(l.Entries())
}

// VerifyChain validates an entry sequence loaded from anywhere: seq
// numbering, prev links, and digests must all hold.
func VerifyChain(entries []*Entry) error {
	prev := ""
	for i, e := range entries {
		if e.Seq != uint64(i) {
			return fmt.Errorf("prooflog: entry %d carries seq %d", i, e.Seq)
		}
		if e.Prev != prev {
			return fmt.Errorf("prooflog: entry %d chain link broken", i)
		}
		digest, err := entryDigest(e)
		if err != nil {
			return err
		}
		if digest != e.Digest {
			return fmt.Errorf("prooflog: entry %d digest mismatch", i)
		}
		for _, p := range e.Premises {
			if p >= e.Seq {
				return fmt.Errorf("prooflog: entry %d references later premise %d", i, p)
			}
		}
		prev = e.Digest
	}
	return nil
}

// Replay re-derives every step reachable from the theorem through the
// kernel. A passing replay means the theorem's entire history still
// checks against the primitive rules and recorded admissions.
func Replay(k *kernel.Kernel, th *kernel.Theorem) error {
	return replay(k, th, map[*kernel.Theorem]bool{})
}

func replay(k *kernel.Kernel, th *kernel.Theorem, seen map[*kernel.Theorem]bool) error {
	if seen[th] {
		return nil
	}
	seen[th] = true
	for _, p := range th.Provenance().Premises {
		if err := replay(k, p, seen); err != nil {
			return err
		}
	}
	if err := k.Recheck(th); err != nil {
		return fmt.Errorf("prooflog: replay failed at %s step: %w", th.Provenance().Rule, err)
	}
	return nil
}

// entryDigest hashes the canonical JSON form of the entry.
func entryDigest(e *Entry) (string, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("prooflog: canonicalize entry %d: %w", e.Seq, err)
	}
	sum := blake2b.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
