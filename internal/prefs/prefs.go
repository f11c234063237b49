// Package prefs stores the client-local display preferences (theme and
// language) in a small YAML file.
package prefs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"massa-backend/internal/models"

	"gopkg.in/yaml.v3"
)

// Preferences are re-applied on every start
type Preferences struct {
	Theme    models.Theme    `yaml:"theme" json:"theme"`
	Language models.Language `yaml:"language" json:"language"`
}

// ErrUnknownKey is returned by Set for a key other than theme or language
var ErrUnknownKey = errors.New("unknown preference")

// ErrInvalidValue is returned by Set for a value outside the allowed set
var ErrInvalidValue = errors.New("invalid preference value")

// Defaults returns the preferences used before anything was saved
func Defaults() Preferences {
	return Preferences{Theme: models.ThemeLight, Language: models.LanguageID}
}

// DefaultPath returns <user config dir>/massa/preferences.yaml
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config dir: %w", err)
	}
	return filepath.Join(dir, "massa", "preferences.yaml"), nil
}

// Load reads path. A missing file yields the defaults, and unknown values
// fall back to their default.
func Load(path string) (Preferences, error) {
	p := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return p, nil
		}
		return p, fmt.Errorf("failed to read preferences: %w", err)
	}

	var stored Preferences
	if err := yaml.Unmarshal(data, &stored); err != nil {
		return p, fmt.Errorf("failed to parse preferences: %w", err)
	}
	if validTheme(stored.Theme) {
		p.Theme = stored.Theme
	}
	if validLanguage(stored.Language) {
		p.Language = stored.Language
	}
	return p, nil
}

// Save writes p to path, creating the directory if needed
func Save(path string, p Preferences) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create preferences dir: %w", err)
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	return nil
}

// Get returns the value of key
func (p Preferences) Get(key string) (string, error) {
	switch strings.ToLower(key) {
	case "theme":
		return string(p.Theme), nil
	case "language":
		return string(p.Language), nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
}

// Set changes key to value
func (p *Preferences) Set(key, value string) error {
	value = strings.ToLower(strings.TrimSpace(value))
	switch strings.ToLower(key) {
	case "theme":
		if !validTheme(models.Theme(value)) {
			return fmt.Errorf("%w: theme %q", ErrInvalidValue, value)
		}
		p.Theme = models.Theme(value)
	case "language":
		if !validLanguage(models.Language(value)) {
			return fmt.Errorf("%w: language %q", ErrInvalidValue, value)
		}
		p.Language = models.Language(value)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return nil
}

func validTheme(t models.Theme) bool {
	return t == models.ThemeLight || t == models.ThemeDark
}

func validLanguage(l models.Language) bool {
	return l == models.LanguageID || l == models.LanguageEN
}
