package preference

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "prefs.json")
	fs := NewFileStore(path)

	theme, err := fs.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, theme)

	require.NoError(t, fs.Save(ctx, model.ThemeLight))
	theme, err = fs.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.ThemeLight, theme)

	// A second store over the same file sees the saved value.
	theme, err = NewFileStore(path).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.ThemeLight, theme)
}

func TestFileStoreWritesJSONWithoutExtension(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "quizrc")
	fs := NewFileStore(path)

	require.NoError(t, fs.Save(ctx, model.ThemeDark))
	require.NoError(t, fs.Save(ctx, model.ThemeLight))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"theme":"light"}`, string(raw))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary file is left behind")
}

func TestFileStoreRejectsUnknownTheme(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "prefs.json")
	fs := NewFileStore(path)

	assert.ErrorIs(t, fs.Save(ctx, "sepia"), ErrInvalidTheme)

	require.NoError(t, os.WriteFile(path, []byte(`{"theme":"sepia"}`), 0o644))
	_, err := fs.Load(ctx)
	assert.ErrorIs(t, err, ErrInvalidTheme)
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o644))

	_, err := NewFileStore(path).Load(context.Background())
	assert.Error(t, err)
}

// TestRedisStore needs a live Redis at TEST_REDIS_URL.
func TestRedisStore(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	opt, err := redis.ParseURL(url)
	require.NoError(t, err)
	rdb := redis.NewClient(opt)
	t.Cleanup(func() { rdb.Close() })

	ctx := context.Background()
	rs := NewRedisStore(rdb, uuid.NewString())

	theme, err := rs.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, theme)

	require.NoError(t, rs.Save(ctx, model.ThemeDark))
	theme, err = rs.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.ThemeDark, theme)

	assert.ErrorIs(t, rs.Save(ctx, "neon"), ErrInvalidTheme)
}
