package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeDotEnv(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write dotenv: %v", err)
	}
	return path
}

func TestLoadDotEnv(t *testing.T) {
	tests := []struct {
		name    string
		content string
		preset  map[string]string
		want    map[string]string
	}{
		{
			name:    "plain, exported and quoted values",
			content: "# budgets\n\nDB_DRIVER=sqlite\nexport PORT=9090\nDB_PATH=\"data/budgets.db\"\n",
			want:    map[string]string{"DB_DRIVER": "sqlite", "PORT": "9090", "DB_PATH": "data/budgets.db"},
		},
		{
			name:    "single quotes",
			content: "LOG_LEVEL='debug'\n",
			want:    map[string]string{"LOG_LEVEL": "debug"},
		},
		{
			name:    "environment wins over file",
			content: "PORT=9090\nLOG_LEVEL=warn\n",
			preset:  map[string]string{"PORT": "7000"},
			want:    map[string]string{"PORT": "7000", "LOG_LEVEL": "warn"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k := range tt.want {
				t.Setenv(k, "")
			}
			for k, v := range tt.preset {
				t.Setenv(k, v)
			}

			if err := loadDotEnv(writeDotEnv(t, tt.content)); err != nil {
				t.Fatalf("loadDotEnv: %v", err)
			}
			for k, want := range tt.want {
				if got := os.Getenv(k); got != want {
					t.Fatalf("%s=%q, want %q", k, got, want)
				}
			}
		})
	}
}

func TestLoadDotEnv_MissingFileIsIgnored(t *testing.T) {
	if err := loadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("loadDotEnv: %v", err)
	}
}
