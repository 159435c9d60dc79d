package conf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSettings() *Settings {
	s := &Settings{}
	s.Ontology.Storage = StorageFlatFile
	s.Ontology.FlatFilePath = "data/concepts.json"
	s.Ontology.SQLitePath = "data/semquery.db"
	s.WebServer.Enabled = true
	s.WebServer.Port = "8080"
	s.Search.Threshold = 0.5
	s.Search.DefaultLimit = 10
	s.Search.MaxConcurrency = 8
	s.Main.Log.Enabled = true
	s.Main.Log.Path = "logs/semquery.log"
	return s
}

func TestValidateSettingsAcceptsDefaults(t *testing.T) {
	assert.NoError(t, ValidateSettings(validSettings()))
}

func TestValidateSettingsRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr string
	}{
		{
			name:    "unknown storage mode",
			mutate:  func(s *Settings) { s.Ontology.Storage = "cloud" },
			wantErr: "ontology.storage",
		},
		{
			name:    "empty flat file path",
			mutate:  func(s *Settings) { s.Ontology.FlatFilePath = "" },
			wantErr: "flatfilepath",
		},
		{
			name:    "empty sqlite path",
			mutate:  func(s *Settings) { s.Ontology.SQLitePath = "" },
			wantErr: "sqlitepath",
		},
		{
			name:    "non-numeric port",
			mutate:  func(s *Settings) { s.WebServer.Port = "http" },
			wantErr: "webserver.port",
		},
		{
			name:    "port out of range",
			mutate:  func(s *Settings) { s.WebServer.Port = "70000" },
			wantErr: "webserver.port",
		},
		{
			name:    "threshold above one",
			mutate:  func(s *Settings) { s.Search.Threshold = 1.5 },
			wantErr: "search.threshold",
		},
		{
			name:    "negative limit",
			mutate:  func(s *Settings) { s.Search.DefaultLimit = -1 },
			wantErr: "search.defaultlimit",
		},
		{
			name:    "negative concurrency",
			mutate:  func(s *Settings) { s.Search.MaxConcurrency = -1 },
			wantErr: "search.maxconcurrency",
		},
		{
			name:    "file logging without a path",
			mutate:  func(s *Settings) { s.Main.Log.Path = "" },
			wantErr: "main.log.path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings()
			tt.mutate(s)
			err := ValidateSettings(s)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateSettingsIgnoresLogPathWhenFileLoggingDisabled(t *testing.T) {
	s := validSettings()
	s.Main.Log.Enabled = false
	s.Main.Log.Path = ""
	assert.NoError(t, ValidateSettings(s))
}

func TestValidateSettingsIgnoresPortWhenServerDisabled(t *testing.T) {
	s := validSettings()
	s.WebServer.Enabled = false
	s.WebServer.Port = "not-a-port"
	assert.NoError(t, ValidateSettings(s))
}
