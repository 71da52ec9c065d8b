package settings

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	values map[string]string
	err    error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: make(map[string]string)}
}

func (m *memoryStore) GetSetting(key string, def string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	if v, ok := m.values[key]; ok {
		return v, nil
	}
	return def, nil
}

func (m *memoryStore) SetSetting(key string, value string) error {
	if m.err != nil {
		return m.err
	}
	m.values[key] = value
	return nil
}

func TestLoadDefaults(t *testing.T) {
	s, err := Load(newMemoryStore())
	require.NoError(t, err)

	assert.Equal(t, Default(), s)
	assert.True(t, s.ProcessAllFiles)
	assert.Equal(t, 1, s.MaxFileSizeMB)
	assert.False(t, s.SummariesEnabled())
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	store := newMemoryStore()

	s := Default()
	s.ProcessAllFiles = false
	s.MaxFileSizeMB = 12
	s.SupportedExtensions = []string{".go", ".mod"}
	s.UseOllama = true
	s.OllamaModel = "llama3:8b"
	require.NoError(t, s.Save(store))

	assert.Equal(t, "False", store.values[KeyProcessAllFiles])
	assert.Equal(t, "12", store.values[KeyMaxFileSize])
	assert.Equal(t, ".go,.mod", store.values[KeySupportedExtensions])
	assert.Equal(t, "True", store.values[KeyUseOllama])

	loaded, err := Load(store)
	require.NoError(t, err)
	assert.Equal(t, s, loaded)
	assert.True(t, loaded.SummariesEnabled())
}

func TestLoadIgnoresInvalidValues(t *testing.T) {
	store := newMemoryStore()
	store.values[KeyMaxFileSize] = "lots"
	store.values[KeyUseOllama] = "maybe"

	s, err := Load(store)
	require.NoError(t, err)
	assert.Equal(t, 1, s.MaxFileSizeMB)
	assert.False(t, s.UseOllama)
}

func TestLoadPropagatesStoreErrors(t *testing.T) {
	store := newMemoryStore()
	store.err = errors.New("disk gone")

	_, err := Load(store)
	assert.ErrorContains(t, err, "disk gone")
}

func TestApply(t *testing.T) {
	tests := []struct {
		name       string
		assignment string
		wantErr    bool
		check      func(t *testing.T, s Settings)
	}{
		{
			name:       "extensions are normalized",
			assignment: "supported_extensions=go, md ,.txt",
			check: func(t *testing.T, s Settings) {
				assert.Equal(t, []string{".go", ".md", ".txt"}, s.SupportedExtensions)
			},
		},
		{
			name:       "max file size",
			assignment: "max_file_size=250",
			check: func(t *testing.T, s Settings) {
				assert.Equal(t, 250, s.MaxFileSizeMB)
			},
		},
		{
			name:       "max file size out of range",
			assignment: "max_file_size=5000",
			wantErr:    true,
		},
		{
			name:       "boolean",
			assignment: "process_all_files=false",
			check: func(t *testing.T, s Settings) {
				assert.False(t, s.ProcessAllFiles)
			},
		},
		{
			name:       "unknown key",
			assignment: "colour=blue",
			wantErr:    true,
		},
		{
			name:       "missing equals sign",
			assignment: "use_ollama",
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Default()
			err := s.Apply(tt.assignment)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSetting)
				return
			}
			require.NoError(t, err)
			tt.check(t, s)
		})
	}
}

func TestPolicy(t *testing.T) {
	s := Default()
	s.ProcessAllFiles = false
	s.MaxFileSizeMB = 2
	s.SupportedExtensions = []string{"go"}

	policy := s.Policy()
	assert.False(t, policy.ProcessAllFiles)
	assert.Equal(t, int64(2*1024*1024), policy.MaxFileSizeBytes)
	assert.Equal(t, []string{".go"}, policy.AllowedExtensions)
}
