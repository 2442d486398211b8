package session_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aanthord/knuckledragger/pkg/kernel"
	"github.com/Aanthord/knuckledragger/pkg/prooflog"
	"github.com/Aanthord/knuckledragger/pkg/session"
	"github.com/Aanthord/knuckledragger/pkg/term"
)

func proveIdentity(t *testing.T, s *session.Session) *kernel.Theorem {
	t.Helper()
	p, err := s.Interner().FreeVar("p", term.Bool())
	require.NoError(t, err)
	pTh, err := s.Kernel().Assume(p)
	require.NoError(t, err)
	th, err := s.Kernel().Discharge(p, pTh)
	require.NoError(t, err)
	return th
}

func TestSessionIdentity(t *testing.T) {
	s1 := session.New()
	s2 := session.New()
	assert.NotEqual(t, s1.ID(), s2.ID())
	assert.NotSame(t, s1.Interner(), s2.Interner())
}

func TestSaveAndLookup(t *testing.T) {
	s := session.New()
	th := proveIdentity(t, s)

	require.NoError(t, s.Save("identity", th))
	got, ok := s.Lookup("identity")
	require.True(t, ok)
	assert.Same(t, th, got)

	_, ok = s.Lookup("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"identity"}, s.Names())
	assert.Equal(t, 2, s.Log().Len(), "assume and discharge both logged")
}

func TestSave_Validation(t *testing.T) {
	s := session.New()
	th := proveIdentity(t, s)

	assert.Error(t, s.Save("", th))
	assert.Error(t, s.Save("x", nil))

	require.NoError(t, s.Save("x", th))
	err := s.Save("x", th)
	require.Error(t, err, "names are write-once")
	assert.Contains(t, err.Error(), "already saved")
}

func TestReplay(t *testing.T) {
	s := session.New()
	th := proveIdentity(t, s)
	require.NoError(t, s.Save("identity", th))
	assert.NoError(t, s.Replay())
}

func TestExport(t *testing.T) {
	s := session.New()
	th := proveIdentity(t, s)
	require.NoError(t, s.Save("identity", th))

	path := filepath.Join(t.TempDir(), "session.db")
	require.NoError(t, s.Export(context.Background(), path))

	store, err := prooflog.OpenSQLiteStore(path)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	entries, err := store.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, entries, s.Log().Len())
}
