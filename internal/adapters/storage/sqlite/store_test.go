package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/PabloGalante/ryokai-gateway/internal/adapters/storage/sqlite"
)

func openTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(filepath.Join(t.TempDir(), "ryokai.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreUpsert(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, ok, err := s.Load(ctx, "ryokai-os-persona-v4")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Save(ctx, "ryokai-os-persona-v4", []byte(`{"summary":"a"}`)))
	require.NoError(t, s.Save(ctx, "ryokai-os-persona-v4", []byte(`{"summary":"a b"}`)))

	got, ok, err := s.Load(ctx, "ryokai-os-persona-v4")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"summary":"a b"}`, string(got))
}

func TestStoreDeleteAndClear(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.Save(ctx, "a", []byte("1")))
	require.NoError(t, s.Save(ctx, "b", []byte("2")))

	require.NoError(t, s.Delete(ctx, "a"))
	require.NoError(t, s.Delete(ctx, "never-saved"))
	_, ok, err := s.Load(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Clear(ctx))
	_, ok, err = s.Load(ctx, "b")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ryokai.db")

	s, err := sqlite.Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, "gemini-api-key", []byte("key-1234567890")))
	require.NoError(t, s.Close())

	s, err = sqlite.Open(path)
	require.NoError(t, err)
	defer s.Close()

	got, ok, err := s.Load(ctx, "gemini-api-key")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "key-1234567890", string(got))
}

func TestNewMigratesExistingConnection(t *testing.T) {
	ctx := context.Background()
	db, err := gorm.Open(gormsqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	s, err := sqlite.New(db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Save(ctx, "gemini-api-key", []byte("k")))
	assert.True(t, db.Migrator().HasTable("kv_entries"))

	got, ok, err := s.Load(ctx, "gemini-api-key")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "k", string(got))
}
