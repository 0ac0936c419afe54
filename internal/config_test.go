package internal

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalRelay = `relay:
  token: tkn
  automation_owner: acme
  automation_repo: automation
  workflow_map: "acme/app:ci.yml"
`

// TestLoadConfigDefaults tests that server and audit defaults are applied
// when the file only carries the required relay settings.
func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, minimalRelay))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Server.WebhookPath != "/webhooks/github" {
		t.Fatalf("expected default webhook path, got %q", cfg.Server.WebhookPath)
	}
	if cfg.Server.MaxBodyBytes != 1<<20 {
		t.Fatalf("expected default max body bytes, got %d", cfg.Server.MaxBodyBytes)
	}
	if cfg.Audit.Topic != "hookrelay.dispatch" {
		t.Fatalf("expected default audit topic, got %q", cfg.Audit.Topic)
	}
	if len(cfg.Audit.Drivers) != 0 {
		t.Fatalf("expected audit disabled by default, got drivers %v", cfg.Audit.Drivers)
	}
}

// TestLoadConfigMissingRelaySettings tests that each missing required
// relay setting is a configuration error.
func TestLoadConfigMissingRelaySettings(t *testing.T) {
	cases := []string{
		"relay:\n  automation_owner: acme\n  automation_repo: automation\n  workflow_map: \"a/b:c.yml\"\n",
		"relay:\n  token: tkn\n  automation_repo: automation\n  workflow_map: \"a/b:c.yml\"\n",
		"relay:\n  token: tkn\n  automation_owner: acme\n  workflow_map: \"a/b:c.yml\"\n",
		"relay:\n  token: tkn\n  automation_owner: acme\n  automation_repo: automation\n",
	}
	for _, content := range cases {
		_, err := LoadConfig(writeConfig(t, content))
		var configuration *ConfigurationError
		if !errors.As(err, &configuration) {
			t.Fatalf("expected ConfigurationError for %q, got %v", content, err)
		}
	}
}

// TestLoadConfigExpandsEnv tests that environment variables referenced in
// the file are expanded at load time.
func TestLoadConfigExpandsEnv(t *testing.T) {
	t.Setenv("HOOKRELAY_TEST_TOKEN", "expanded-token")
	content := `relay:
  token: ${HOOKRELAY_TEST_TOKEN}
  automation_owner: acme
  automation_repo: automation
  workflow_map: "acme/app:ci.yml"
`
	cfg, err := LoadConfig(writeConfig(t, content))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Relay.Token != "expanded-token" {
		t.Fatalf("expected env expansion, got %q", cfg.Relay.Token)
	}
}
