package prooflog_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/Aanthord/knuckledragger/pkg/prooflog"
)

func TestSQLiteStore_RoundTrip(t *testing.T) {
	_, th := derive(t)
	log := prooflog.New()
	_, err := log.Record(th)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "proofs.db")
	store, err := prooflog.OpenSQLiteStore(path)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	require.NoError(t, store.Append(ctx, log.Entries()))

	loaded, err := store.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, log.Len())
	for i, e := range log.Entries() {
		assert.Equal(t, e.Rule, loaded[i].Rule)
		assert.Equal(t, e.Concl, loaded[i].Concl)
		assert.Equal(t, e.Premises, loaded[i].Premises)
		assert.Equal(t, e.Digest, loaded[i].Digest)
	}
}

func TestSQLiteStore_TamperDetectedOnLoad(t *testing.T) {
	_, th := derive(t)
	log := prooflog.New()
	_, err := log.Record(th)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "proofs.db")
	store, err := prooflog.OpenSQLiteStore(path)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	require.NoError(t, store.Append(ctx, log.Entries()))

	// reach around the store and rewrite recorded history
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `UPDATE proof_steps SET concl = 'q' WHERE seq = 1`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = store.LoadAll(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "digest mismatch")
}

func TestSQLiteStore_DuplicateSeqRejected(t *testing.T) {
	_, th := derive(t)
	log := prooflog.New()
	_, err := log.Record(th)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "proofs.db")
	store, err := prooflog.OpenSQLiteStore(path)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	require.NoError(t, store.Append(ctx, log.Entries()))
	assert.Error(t, store.Append(ctx, log.Entries()), "seq is the primary key")
}
