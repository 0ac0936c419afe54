package internal

import (
	"errors"
	"testing"
)

// TestParseWorkflowMapLookup tests that a mapping string resolves each
// repository to its workflow filename.
func TestParseWorkflowMapLookup(t *testing.T) {
	m, err := ParseWorkflowMap("acme/app:ci.yml,acme/site:deploy.yml")
	if err != nil {
		t.Fatalf("parse workflow map: %v", err)
	}

	workflow, err := m.Lookup("acme/site")
	if err != nil {
		t.Fatalf("lookup acme/site: %v", err)
	}
	if workflow != "deploy.yml" {
		t.Fatalf("expected deploy.yml, got %q", workflow)
	}
}

// TestParseWorkflowMapMiss tests that an unmapped repository fails with a
// NotConfiguredError listing the known repositories.
func TestParseWorkflowMapMiss(t *testing.T) {
	m, err := ParseWorkflowMap("acme/app:ci.yml,acme/site:deploy.yml")
	if err != nil {
		t.Fatalf("parse workflow map: %v", err)
	}

	_, err = m.Lookup("acme/other")
	var notConfigured *NotConfiguredError
	if !errors.As(err, &notConfigured) {
		t.Fatalf("expected NotConfiguredError, got %v", err)
	}
	if notConfigured.Repository != "acme/other" {
		t.Fatalf("expected repository acme/other, got %q", notConfigured.Repository)
	}
	if len(notConfigured.Known) != 2 || notConfigured.Known[0] != "acme/app" || notConfigured.Known[1] != "acme/site" {
		t.Fatalf("expected known repositories [acme/app acme/site], got %v", notConfigured.Known)
	}
}

// TestParseWorkflowMapSkipsMalformedTokens tests that tokens missing a
// side of the colon are skipped while valid tokens survive.
func TestParseWorkflowMapSkipsMalformedTokens(t *testing.T) {
	m, err := ParseWorkflowMap(" acme/app : ci.yml ,broken,:deploy.yml,acme/site:,")
	if err != nil {
		t.Fatalf("parse workflow map: %v", err)
	}

	repos := m.Repositories()
	if len(repos) != 1 || repos[0] != "acme/app" {
		t.Fatalf("expected only acme/app to survive, got %v", repos)
	}
	workflow, err := m.Lookup("acme/app")
	if err != nil {
		t.Fatalf("lookup acme/app: %v", err)
	}
	if workflow != "ci.yml" {
		t.Fatalf("expected trimmed ci.yml, got %q", workflow)
	}
}

// TestParseWorkflowMapEmpty tests that a string with zero valid pairs is a
// configuration error.
func TestParseWorkflowMapEmpty(t *testing.T) {
	for _, raw := range []string{"", " , ,", "nocolon", ":workflow", "repo:"} {
		_, err := ParseWorkflowMap(raw)
		var configuration *ConfigurationError
		if !errors.As(err, &configuration) {
			t.Fatalf("expected ConfigurationError for %q, got %v", raw, err)
		}
	}
}
