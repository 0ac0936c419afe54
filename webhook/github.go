package webhook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
	"unicode/utf8"

	"hookrelay/internal"

	"github.com/go-playground/webhooks/v6/github"
)

// Dispatcher is the outbound side of the relay: resolving the automation
// repository's live default branch and firing the workflow_dispatch call.
type Dispatcher interface {
	DefaultBranch(ctx context.Context, owner, repo string) (string, error)
	DispatchWorkflow(ctx context.Context, target internal.DispatchTarget, inputs map[string]string) error
}

// GitHubHandler receives GitHub webhook deliveries and relays push and
// pull_request events as workflow_dispatch runs of the automation
// repository. Each request is handled in isolation: the workflow map is
// parsed fresh, the default branch is fetched fresh, and nothing is
// shared between invocations.
type GitHubHandler struct {
	relay      internal.RelayConfig
	maxBody    int64
	hook       *github.Webhook
	dispatcher Dispatcher
	auditor    internal.Auditor
	logger     *log.Logger
}

func NewGitHubHandler(cfg internal.Config, dispatcher Dispatcher, auditor internal.Auditor, logger *log.Logger) (*GitHubHandler, error) {
	var opts []github.Option
	if cfg.Relay.Secret != "" {
		opts = append(opts, github.Options.Secret(cfg.Relay.Secret))
	}
	hook, err := github.New(opts...)
	if err != nil {
		return nil, err
	}

	if auditor == nil {
		auditor = internal.NopAuditor{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &GitHubHandler{
		relay:      cfg.Relay,
		maxBody:    cfg.Server.MaxBodyBytes,
		hook:       hook,
		dispatcher: dispatcher,
		auditor:    auditor,
		logger:     logger,
	}, nil
}

func (h *GitHubHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	eventName := r.Header.Get("X-GitHub-Event")
	if eventName == "" {
		internal.IncRequest("missing")
		writeError(w, &internal.BadRequestError{Message: "missing X-GitHub-Event header"}, h.relay.Diagnostics)
		return
	}
	internal.IncRequest(eventName)

	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}
	rawBody, err := io.ReadAll(r.Body)
	if err != nil {
		internal.IncParseError(eventName)
		writeError(w, &internal.BadRequestError{Message: "could not read request body"}, h.relay.Diagnostics)
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(rawBody))

	payload, err := h.hook.Parse(r, github.PushEvent, github.PullRequestEvent, github.PingEvent)
	if err != nil {
		h.handleParseError(w, eventName, rawBody, err)
		return
	}

	result, err := normalizeEvent(eventName, payload, rawBody, time.Now().UTC())
	if err != nil {
		internal.IncParseError(eventName)
		writeError(w, err, h.relay.Diagnostics)
		return
	}
	if result.skipMessage != "" {
		internal.IncIgnored(eventName)
		h.logger.Printf("event=%s skipped: %s", eventName, result.skipMessage)
		writeJSON(w, http.StatusOK, map[string]interface{}{"message": result.skipMessage})
		return
	}

	// The normalizers guarantee a branch; this guards against a future
	// normalizer that doesn't.
	if result.inputs["branch"] == "" {
		writeError(w, &internal.BadRequestError{Message: "branch could not be determined from event payload"}, h.relay.Diagnostics)
		return
	}

	target, err := h.resolveTarget(r.Context(), result.inputs["repository"])
	if err != nil {
		h.logger.Printf("event=%s resolve failed: %v", eventName, err)
		writeError(w, err, h.relay.Diagnostics)
		return
	}

	inputs := internal.CapInputs(result.inputs)
	if err := h.dispatcher.DispatchWorkflow(r.Context(), target, inputs); err != nil {
		internal.IncDispatchError(target.WorkflowFile)
		h.logger.Printf("event=%s dispatch %s@%s failed: %v", eventName, target.WorkflowFile, target.Branch, err)
		writeError(w, err, h.relay.Diagnostics)
		return
	}
	internal.IncDispatch(target.WorkflowFile)
	h.logger.Printf("event=%s dispatched %s@%s for %s", eventName, target.WorkflowFile, target.Branch, result.inputs["repository"])

	record := internal.DispatchRecord{
		Event:          eventName,
		Repository:     result.inputs["repository"],
		AutomationRepo: target.RepoFullName(),
		Workflow:       target.WorkflowFile,
		Branch:         target.Branch,
		SourceBranch:   result.sourceBranch,
		Inputs:         inputs,
		Timestamp:      inputs["timestamp"],
	}
	if err := h.auditor.Record(r.Context(), record); err != nil {
		h.logger.Printf("audit record failed: %v", err)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":           "Workflow dispatched",
		"event":             eventName,
		"inputs":            inputs,
		"automation_repo":   target.RepoFullName(),
		"workflow_filename": target.WorkflowFile,
		"workflow_branch":   target.Branch,
		"source_branch":     result.sourceBranch,
		"timestamp":         inputs["timestamp"],
	})
}

// resolveTarget maps the source repository onto a workflow file and pins
// the run to the automation repository's current default branch. The
// branch is fetched live on every request so a renamed default branch
// takes effect immediately.
func (h *GitHubHandler) resolveTarget(ctx context.Context, repoFullName string) (internal.DispatchTarget, error) {
	workflowMap, err := internal.ParseWorkflowMap(h.relay.WorkflowMap)
	if err != nil {
		return internal.DispatchTarget{}, err
	}
	workflow, err := workflowMap.Lookup(repoFullName)
	if err != nil {
		return internal.DispatchTarget{}, err
	}
	branch, err := h.dispatcher.DefaultBranch(ctx, h.relay.AutomationOwner, h.relay.AutomationRepo)
	if err != nil {
		return internal.DispatchTarget{}, err
	}
	return internal.DispatchTarget{
		Owner:        h.relay.AutomationOwner,
		Repo:         h.relay.AutomationRepo,
		WorkflowFile: workflow,
		Branch:       branch,
	}, nil
}

func (h *GitHubHandler) handleParseError(w http.ResponseWriter, eventName string, rawBody []byte, err error) {
	switch {
	case errors.Is(err, github.ErrEventNotFound), errors.Is(err, github.ErrEventNotSpecifiedToParse):
		// Unknown event kinds are an allow-list miss, not a failure.
		internal.IncIgnored(eventName)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"message": fmt.Sprintf("Ignored event: %s", eventName),
		})
	case errors.Is(err, github.ErrHMACVerificationFailed), errors.Is(err, github.ErrMissingHubSignatureHeader):
		internal.IncParseError(eventName)
		writeError(w, &internal.BadRequestError{Message: "webhook signature verification failed"}, h.relay.Diagnostics)
	case errors.Is(err, github.ErrInvalidHTTPMethod):
		internal.IncParseError(eventName)
		writeError(w, &internal.BadRequestError{Message: "webhook deliveries must be POST requests"}, h.relay.Diagnostics)
	default:
		internal.IncParseError(eventName)
		h.logger.Printf("event=%s parse failed: %v", eventName, err)
		writeError(w, &internal.BadRequestError{
			Message: fmt.Sprintf("could not parse webhook payload: %s", excerpt(rawBody, 120)),
		}, h.relay.Diagnostics)
	}
}

// excerpt bounds how much of a bad payload is echoed back to the sender.
// The cut backs up to a rune boundary so a multi-byte character is never
// split.
func excerpt(raw []byte, limit int) string {
	if len(raw) <= limit {
		return string(raw)
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(raw[cut]) {
		cut--
	}
	return string(raw[:cut]) + "..."
}
