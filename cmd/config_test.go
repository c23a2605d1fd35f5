package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/kyleking/askdb/internal/config"
)

func TestRunConfig(t *testing.T) {
	tests := []struct {
		name     string
		cfg      *config.Config
		wantErr  bool
		contains []string
		excludes []string
	}{
		{
			name: "postgres with secrets",
			cfg: &config.Config{
				Database: config.DatabaseConfig{
					Driver:         "postgres",
					Host:           "db.internal",
					Port:           5432,
					User:           "reader",
					Password:       "hunter2",
					MaxRows:        100,
					SampleSize:     3,
					ConnectTimeout: "10s",
				},
				LLM: config.LLMConfig{
					Provider: "gemini",
					APIKey:   "secret-key",
				},
				Logging: config.LoggingConfig{Level: "info", Format: "text", Output: "stderr"},
				Server:  config.ServerConfig{Addr: ":8080", RequestTimeout: "120s"},
			},
			contains: []string{
				"Active Configuration:",
				"Driver: postgres",
				"Host: db.internal",
				"Port: 5432",
				"Password: ********",
				"API Key: ********",
				"Available: true",
				"Default Database: -",
				"Address: :8080",
				"Enabled: false",
			},
			excludes: []string{"hunter2", "secret-key", "Raw Configuration"},
		},
		{
			name: "sqlite without model, debug on",
			cfg: &config.Config{
				Database: config.DatabaseConfig{Driver: "sqlite", Path: "/tmp/app.db"},
				LLM:      config.LLMConfig{Provider: "openai"},
				Logging:  config.LoggingConfig{Level: "debug", Format: "json", Output: "file", File: "/tmp/askdb.log"},
				Debug:    config.DebugConfig{Enabled: true},
			},
			contains: []string{
				"Path: /tmp/app.db",
				"API Key: -",
				"Available: false",
				"File: /tmp/askdb.log",
				"Raw Configuration (JSON):",
				`"driver": "sqlite"`,
			},
			excludes: []string{"Host:"},
		},
		{
			name:    "nil configuration error",
			cfg:     nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer

			err := RunConfigWithConfig(&buf, tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("RunConfigWithConfig() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			output := buf.String()

			for _, expected := range tt.contains {
				if !strings.Contains(output, expected) {
					t.Errorf("RunConfigWithConfig() output does not contain %q\nOutput: %s", expected, output)
				}
			}

			for _, unexpected := range tt.excludes {
				if strings.Contains(output, unexpected) {
					t.Errorf("RunConfigWithConfig() output contains %q\nOutput: %s", unexpected, output)
				}
			}
		})
	}
}
