// Package settings holds the user-editable options persisted in the history
// store: which files are copied and whether copies are summarized.
package settings

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/atinylittleshell/clipminder/internal/aggregate"
)

// Keys under which settings are persisted.
const (
	KeyProcessAllFiles     = "process_all_files"
	KeyMaxFileSize         = "max_file_size"
	KeySupportedExtensions = "supported_extensions"
	KeyUseOllama           = "use_ollama"
	KeyOllamaModel         = "ollama_model"
)

const (
	MinFileSizeMB = 1
	MaxFileSizeMB = 1000

	bytesPerMB = 1024 * 1024
)

// DefaultExtensions is used until the user configures their own list.
var DefaultExtensions = []string{
	".txt", ".md", ".py", ".js", ".html", ".css", ".json", ".xml", ".csv",
	".yml", ".yaml", ".sh", ".bash", ".zsh", ".ts",
}

var ErrInvalidSetting = errors.New("invalid setting")

// KeyValueStore is the persistence the settings are loaded from and saved to.
type KeyValueStore interface {
	GetSetting(key string, def string) (string, error)
	SetSetting(key string, value string) error
}

// Settings is a snapshot of the user's options.
type Settings struct {
	ProcessAllFiles     bool
	MaxFileSizeMB       int
	SupportedExtensions []string
	UseOllama           bool
	OllamaModel         string
}

// Default returns the settings used on first start.
func Default() Settings {
	return Settings{
		ProcessAllFiles:     true,
		MaxFileSizeMB:       1,
		SupportedExtensions: append([]string(nil), DefaultExtensions...),
		UseOllama:           false,
		OllamaModel:         "",
	}
}

// Load reads the settings from store, falling back to defaults for keys that
// were never saved or hold unparsable values.
func Load(store KeyValueStore) (Settings, error) {
	s := Default()

	for _, key := range Keys() {
		value, err := store.GetSetting(key, "")
		if err != nil {
			return Settings{}, fmt.Errorf("failed to load setting %q: %w", key, err)
		}
		if value == "" && key != KeyOllamaModel {
			continue
		}
		// Values written by older versions may not validate; keep the default for those.
		_ = s.Set(key, value)
	}

	return s, nil
}

// Save persists every setting.
func (s Settings) Save(store KeyValueStore) error {
	for _, key := range Keys() {
		if err := store.SetSetting(key, s.Get(key)); err != nil {
			return err
		}
	}
	return nil
}

// Keys lists every persisted setting key in display order.
func Keys() []string {
	return []string{
		KeyProcessAllFiles,
		KeyMaxFileSize,
		KeySupportedExtensions,
		KeyUseOllama,
		KeyOllamaModel,
	}
}

// Get returns the persisted string form of a setting.
func (s Settings) Get(key string) string {
	switch key {
	case KeyProcessAllFiles:
		return formatBool(s.ProcessAllFiles)
	case KeyMaxFileSize:
		return strconv.Itoa(s.MaxFileSizeMB)
	case KeySupportedExtensions:
		return strings.Join(s.SupportedExtensions, ",")
	case KeyUseOllama:
		return formatBool(s.UseOllama)
	case KeyOllamaModel:
		return s.OllamaModel
	}
	return ""
}

// Set parses value into the setting named key.
func (s *Settings) Set(key string, value string) error {
	switch key {
	case KeyProcessAllFiles:
		b, err := parseBool(value)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidSetting, key, err)
		}
		s.ProcessAllFiles = b
	case KeyMaxFileSize:
		mb, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidSetting, key, err)
		}
		if mb < MinFileSizeMB || mb > MaxFileSizeMB {
			return fmt.Errorf("%w: %s must be between %d and %d MB", ErrInvalidSetting, key, MinFileSizeMB, MaxFileSizeMB)
		}
		s.MaxFileSizeMB = mb
	case KeySupportedExtensions:
		s.SupportedExtensions = aggregate.NormalizeExtensions(strings.Split(value, ","))
	case KeyUseOllama:
		b, err := parseBool(value)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidSetting, key, err)
		}
		s.UseOllama = b
	case KeyOllamaModel:
		s.OllamaModel = strings.TrimSpace(value)
	default:
		return fmt.Errorf("%w: unknown key %q", ErrInvalidSetting, key)
	}
	return nil
}

// Apply parses an assignment of the form "key=value".
func (s *Settings) Apply(assignment string) error {
	key, value, ok := strings.Cut(assignment, "=")
	if !ok {
		return fmt.Errorf("%w: expected key=value, got %q", ErrInvalidSetting, assignment)
	}
	return s.Set(strings.TrimSpace(key), value)
}

// Policy converts the settings into the filter policy used for aggregation.
func (s Settings) Policy() aggregate.Policy {
	return aggregate.NewPolicy(s.ProcessAllFiles, int64(s.MaxFileSizeMB)*bytesPerMB, s.SupportedExtensions)
}

// SummariesEnabled reports whether copies should be summarized.
func (s Settings) SummariesEnabled() bool {
	return s.UseOllama && s.OllamaModel != ""
}

// The persisted form uses "True"/"False" to stay readable by older databases.
func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func parseBool(value string) (bool, error) {
	return strconv.ParseBool(strings.TrimSpace(value))
}
