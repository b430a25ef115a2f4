package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/berrythewa/clipkeep/internal/types"
	"gopkg.in/yaml.v3"
)

// LoadSettings reads the settings document. A missing file yields defaults;
// keys absent from the file keep their default values.
func LoadSettings(path string) (types.Settings, error) {
	s := types.DefaultSettings()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, fmt.Errorf("failed to read settings file: %w", err)
	}

	if err := yaml.Unmarshal(data, &s); err != nil {
		return types.DefaultSettings(), fmt.Errorf("failed to parse settings file: %w", err)
	}

	return NormalizeSettings(s), nil
}

// SaveSettings writes the settings document
func SaveSettings(path string, s types.Settings) error {
	if s.MaxHistory < 1 {
		return fmt.Errorf("max_history must be at least 1, got %d", s.MaxHistory)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	return nil
}

// NormalizeSettings replaces out-of-range values with defaults
func NormalizeSettings(s types.Settings) types.Settings {
	if s.MaxHistory < 1 {
		s.MaxHistory = types.DefaultMaxHistory
	}
	return s
}

// SettingKeys lists the keys accepted by ApplySetting
var SettingKeys = []string{"max_history", "save_original_image", "enable_rich_text", "enable_file_paths"}

// ApplySetting parses value and assigns it to the named key.
// Dashes and underscores are interchangeable in key.
func ApplySetting(s *types.Settings, key, value string) error {
	key = strings.ReplaceAll(strings.ToLower(key), "-", "_")

	if key == "max_history" {
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("max_history: %w", err)
		}
		if n < 1 {
			return fmt.Errorf("max_history must be at least 1, got %d", n)
		}
		s.MaxHistory = n
		return nil
	}

	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	switch key {
	case "save_original_image":
		s.SaveOriginalImage = b
	case "enable_rich_text":
		s.EnableRichText = b
	case "enable_file_paths":
		s.EnableFilePaths = b
	default:
		return fmt.Errorf("unknown setting %q (valid: %s)", key, strings.Join(SettingKeys, ", "))
	}
	return nil
}

// SettingValue renders the named key for display
func SettingValue(s types.Settings, key string) (string, error) {
	switch strings.ReplaceAll(strings.ToLower(key), "-", "_") {
	case "max_history":
		return strconv.Itoa(s.MaxHistory), nil
	case "save_original_image":
		return strconv.FormatBool(s.SaveOriginalImage), nil
	case "enable_rich_text":
		return strconv.FormatBool(s.EnableRichText), nil
	case "enable_file_paths":
		return strconv.FormatBool(s.EnableFilePaths), nil
	default:
		return "", fmt.Errorf("unknown setting %q (valid: %s)", key, strings.Join(SettingKeys, ", "))
	}
}
