package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"hookrelay/internal"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(context.Background(), "tkn", srv.URL+"/api/v3")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

// TestDefaultBranch tests that the default branch is read from the
// repository metadata with the bearer token attached.
func TestDefaultBranch(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/repos/acme/automation" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer tkn" {
			t.Fatalf("expected bearer token, got %q", r.Header.Get("Authorization"))
		}
		fmt.Fprint(w, `{"default_branch": "trunk"}`)
	}))

	branch, err := client.DefaultBranch(context.Background(), "acme", "automation")
	if err != nil {
		t.Fatalf("default branch: %v", err)
	}
	if branch != "trunk" {
		t.Fatalf("expected trunk, got %q", branch)
	}
}

// TestDefaultBranchMissingField tests that metadata without a default
// branch is an upstream error.
func TestDefaultBranchMissingField(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"name": "automation"}`)
	}))

	_, err := client.DefaultBranch(context.Background(), "acme", "automation")
	var upstream *internal.UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
}

// TestDefaultBranchUpstreamFailure tests that a non-success response
// carries the upstream status and message.
func TestDefaultBranchUpstreamFailure(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message": "Not Found"}`)
	}))

	_, err := client.DefaultBranch(context.Background(), "acme", "automation")
	var upstream *internal.UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if upstream.Status != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", upstream.Status)
	}
	if upstream.Details != "Not Found" {
		t.Fatalf("expected upstream message, got %q", upstream.Details)
	}
}

// TestDispatchWorkflow tests the workflow_dispatch call shape, and that
// identical inputs produce identical request bodies.
func TestDispatchWorkflow(t *testing.T) {
	var bodies []string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/api/v3/repos/acme/automation/actions/workflows/ci.yml/dispatches" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		bodies = append(bodies, string(raw))
		w.WriteHeader(http.StatusNoContent)
	}))

	target := internal.DispatchTarget{
		Owner:        "acme",
		Repo:         "automation",
		WorkflowFile: "ci.yml",
		Branch:       "main",
	}
	inputs := map[string]string{
		"event_type": "push",
		"branch":     "feature",
		"commit_sha": "abc123",
	}

	for i := 0; i < 2; i++ {
		if err := client.DispatchWorkflow(context.Background(), target, inputs); err != nil {
			t.Fatalf("dispatch %d: %v", i, err)
		}
	}

	if len(bodies) != 2 {
		t.Fatalf("expected 2 dispatch calls, got %d", len(bodies))
	}
	if bodies[0] != bodies[1] {
		t.Fatalf("expected identical request bodies, got %q and %q", bodies[0], bodies[1])
	}
	for _, fragment := range []string{`"ref":"main"`, `"commit_sha":"abc123"`} {
		if !strings.Contains(bodies[0], fragment) {
			t.Fatalf("expected body to contain %s, got %s", fragment, bodies[0])
		}
	}
}

// TestDispatchWorkflowUpstreamFailure tests that a rejected dispatch is an
// upstream error with the response status.
func TestDispatchWorkflowUpstreamFailure(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"message": "Unexpected inputs provided"}`)
	}))

	err := client.DispatchWorkflow(context.Background(), internal.DispatchTarget{
		Owner:        "acme",
		Repo:         "automation",
		WorkflowFile: "ci.yml",
		Branch:       "main",
	}, map[string]string{"event_type": "push"})

	var upstream *internal.UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if upstream.Status != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", upstream.Status)
	}
}

// TestNewClientRequiresToken tests that an empty token is a configuration
// error.
func TestNewClientRequiresToken(t *testing.T) {
	_, err := NewClient(context.Background(), "", "")
	var configuration *internal.ConfigurationError
	if !errors.As(err, &configuration) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}
