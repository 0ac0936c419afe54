// Package register ensures source repositories carry an active webhook
// pointed at the relay endpoint. It runs out of band as its own binary;
// the relay itself assumes webhooks arrive already configured.
package register

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	gh "github.com/google/go-github/v57/github"
)

// hookEvents are the webhook events the relay consumes.
var hookEvents = []string{"push", "pull_request"}

// Options control one registration pass.
type Options struct {
	// Endpoint is the relay's webhook URL.
	Endpoint string
	// Secret is the shared HMAC secret set on each hook.
	Secret string
	// DryRun reports intended changes without applying them.
	DryRun bool
}

// Action describes what was (or would be) done for one repository.
type Action struct {
	Repo   string
	Change string // "create", "update", or "none"
	HookID int64
}

// Registrar performs idempotent webhook registration against the GitHub
// API: existing hooks are inspected before anything is created.
type Registrar struct {
	gh     *gh.Client
	logger *log.Logger
}

func New(api *gh.Client, logger *log.Logger) *Registrar {
	if logger == nil {
		logger = log.Default()
	}
	return &Registrar{gh: api, logger: logger}
}

// Ensure walks the repository list and creates or updates each hook so it
// points at opts.Endpoint with the relay's event subscriptions. The first
// failure stops the pass; earlier repositories keep whatever state they
// reached.
func (r *Registrar) Ensure(ctx context.Context, repos []string, opts Options) ([]Action, error) {
	if opts.Endpoint == "" {
		return nil, fmt.Errorf("webhook endpoint is required")
	}

	actions := make([]Action, 0, len(repos))
	for _, full := range repos {
		owner, name, ok := strings.Cut(strings.TrimSpace(full), "/")
		if !ok || owner == "" || name == "" {
			return actions, fmt.Errorf("repository %q is not in owner/name form", full)
		}

		action, err := r.ensureOne(ctx, owner, name, opts)
		if err != nil {
			return actions, fmt.Errorf("%s/%s: %w", owner, name, err)
		}
		actions = append(actions, action)
	}
	return actions, nil
}

func (r *Registrar) ensureOne(ctx context.Context, owner, name string, opts Options) (Action, error) {
	full := owner + "/" + name
	existing, err := r.findHook(ctx, owner, name, opts.Endpoint)
	if err != nil {
		return Action{}, err
	}

	if existing == nil {
		if opts.DryRun {
			r.logger.Printf("%s: would create webhook for %s", full, opts.Endpoint)
			return Action{Repo: full, Change: "create"}, nil
		}
		created, _, err := r.gh.Repositories.CreateHook(ctx, owner, name, r.desiredHook(opts))
		if err != nil {
			return Action{}, err
		}
		r.logger.Printf("%s: created webhook %d", full, created.GetID())
		return Action{Repo: full, Change: "create", HookID: created.GetID()}, nil
	}

	if hookUpToDate(existing) {
		r.logger.Printf("%s: webhook %d already configured", full, existing.GetID())
		return Action{Repo: full, Change: "none", HookID: existing.GetID()}, nil
	}

	if opts.DryRun {
		r.logger.Printf("%s: would update webhook %d", full, existing.GetID())
		return Action{Repo: full, Change: "update", HookID: existing.GetID()}, nil
	}
	updated, _, err := r.gh.Repositories.EditHook(ctx, owner, name, existing.GetID(), r.desiredHook(opts))
	if err != nil {
		return Action{}, err
	}
	r.logger.Printf("%s: updated webhook %d", full, updated.GetID())
	return Action{Repo: full, Change: "update", HookID: updated.GetID()}, nil
}

// findHook locates an existing hook whose delivery URL matches endpoint.
func (r *Registrar) findHook(ctx context.Context, owner, name, endpoint string) (*gh.Hook, error) {
	listOpts := &gh.ListOptions{PerPage: 100}
	for {
		hooks, resp, err := r.gh.Repositories.ListHooks(ctx, owner, name, listOpts)
		if err != nil {
			return nil, err
		}
		for _, hook := range hooks {
			if url, _ := hook.Config["url"].(string); url == endpoint {
				return hook, nil
			}
		}
		if resp.NextPage == 0 {
			return nil, nil
		}
		listOpts.Page = resp.NextPage
	}
}

func (r *Registrar) desiredHook(opts Options) *gh.Hook {
	config := map[string]interface{}{
		"url":          opts.Endpoint,
		"content_type": "json",
	}
	if opts.Secret != "" {
		config["secret"] = opts.Secret
	}
	return &gh.Hook{
		Active: gh.Bool(true),
		Events: append([]string(nil), hookEvents...),
		Config: config,
	}
}

// hookUpToDate reports whether the hook is active and subscribed to
// exactly the relay's events. The secret cannot be read back, so a hook
// that matches otherwise is left alone.
func hookUpToDate(hook *gh.Hook) bool {
	if !hook.GetActive() {
		return false
	}
	if len(hook.Events) != len(hookEvents) {
		return false
	}
	got := append([]string(nil), hook.Events...)
	want := append([]string(nil), hookEvents...)
	sort.Strings(got)
	sort.Strings(want)
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
