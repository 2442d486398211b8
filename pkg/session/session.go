// Package session ties one proving session together: the interner all
// terms live in, the kernel that mints theorems over it, the named
// theorem registry, and the proof log. Terms and theorems from
// different sessions must never mix; the session boundary is what
// makes pointer identity sound.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/Aanthord/knuckledragger/pkg/kernel"
	"github.com/Aanthord/knuckledragger/pkg/prooflog"
	"github.com/Aanthord/knuckledragger/pkg/term"
)

// Session owns one interner, one kernel, and the theorems proved with
// them. Safe for concurrent use.
type Session struct {
	id     uuid.UUID
	tm     *term.Interner
	kern   *kernel.Kernel
	log    *prooflog.Log
	logger *slog.Logger

	mu       sync.RWMutex
	theorems map[string]*kernel.Theorem
}

// New starts a fresh session.
func New() *Session {
	tm := term.NewInterner()
	id := uuid.New()
	return &Session{
		id:       id,
		tm:       tm,
		kern:     kernel.New(tm),
		log:      prooflog.New(),
		logger:   slog.Default().With("component", "session", "session_id", id.String()),
		theorems: map[string]*kernel.Theorem{},
	}
}

// ID returns the session identifier.
func (s *Session) ID() uuid.UUID { return s.id }

// Interner returns the session's term interner.
func (s *Session) Interner() *term.Interner { return s.tm }

// Kernel returns the session's kernel.
func (s *Session) Kernel() *kernel.Kernel { return s.kern }

// Log returns the session's proof log.
func (s *Session) Log() *prooflog.Log { return s.log }

// Save registers a theorem under a name and records its derivation in
// the proof log. Names are write-once.
func (s *Session) Save(name string, th *kernel.Theorem) error {
	if name == "" {
		return fmt.Errorf("session: theorem name must not be empty")
	}
	if th == nil {
		return fmt.Errorf("session: nil theorem")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.theorems[name]; ok {
		return fmt.Errorf("session: theorem %q already saved", name)
	}
	seq, err := s.log.Record(th)
	if err != nil {
		return fmt.Errorf("session: record %q: %w", name, err)
	}
	s.theorems[name] = th
	s.logger.Debug("theorem saved", "name", name, "seq", seq)
	return nil
}

// Lookup returns a saved theorem by name.
func (s *Session) Lookup(name string) (*kernel.Theorem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	th, ok := s.theorems[name]
	return th, ok
}

// Names lists saved theorem names, sorted.
func (s *Session) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.theorems))
	for name := range s.theorems {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Replay re-derives every saved theorem through the kernel and
// verifies the proof log's hash chain.
func (s *Session) Replay() error {
	s.mu.RLock()
	names := make([]string, 0, len(s.theorems))
	for name := range s.theorems {
		names = append(names, name)
	}
	sort.Strings(names)
	ths := make([]*kernel.Theorem, len(names))
	for i, name := range names {
		ths[i] = s.theorems[name]
	}
	s.mu.RUnlock()

	for i, th := range ths {
		if err := prooflog.Replay(s.kern, th); err != nil {
			return fmt.Errorf("session: theorem %q: %w", names[i], err)
		}
	}
	if err := s.log.VerifyChain(); err != nil {
		return err
	}
	s.logger.Info("replay ok", "theorems", len(ths), "log_entries", s.log.Len())
	return nil
}

// Export writes the proof log to a sqlite database at path.
func (s *Session) Export(ctx context.Context, path string) error {
	store, err := prooflog.OpenSQLiteStore(path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	return store.Append(ctx, s.log.Entries())
}
