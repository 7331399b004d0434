// Package preference persists client preferences that outlive a quiz
// session. Only the theme is stored today.
package preference

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
	"github.com/stemsi/exstem-quiz/internal/model"
)

// ErrInvalidTheme is returned when a stored value is not a known theme.
var ErrInvalidTheme = errors.New("invalid theme")

const themeKey = "theme"

// FileStore keeps preferences in a small JSON file, the terminal
// counterpart of browser local storage.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store backed by path. The file is created on the
// first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) config() *viper.Viper {
	v := viper.New()
	v.SetConfigFile(f.path)
	v.SetConfigType("json")
	return v
}

// Load returns the stored theme, or "" if nothing was saved yet.
func (f *FileStore) Load(_ context.Context) (model.Theme, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	v := f.config()
	if err := v.ReadInConfig(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read preferences: %w", err)
	}

	theme := model.Theme(v.GetString(themeKey))
	if err := validate(theme); err != nil {
		return "", err
	}
	return theme, nil
}

// Save writes the theme atomically.
func (f *FileStore) Save(_ context.Context, theme model.Theme) error {
	if err := validate(theme); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create preferences dir: %w", err)
	}

	v := f.config()
	v.Set(themeKey, string(theme))

	// The extension tells viper the encoding.
	tmp := f.path + ".tmp.json"
	if err := v.WriteConfigAs(tmp); err != nil {
		return fmt.Errorf("write preferences: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replace preferences: %w", err)
	}
	return nil
}

func validate(theme model.Theme) error {
	if theme != model.ThemeLight && theme != model.ThemeDark {
		return fmt.Errorf("%w: %q", ErrInvalidTheme, theme)
	}
	return nil
}
