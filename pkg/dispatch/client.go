// Package dispatch wraps the GitHub REST API calls the relay makes:
// reading the automation repository's default branch and creating
// workflow_dispatch events. One attempt per call, no retries; redelivery
// belongs to the webhook sender.
package dispatch

import (
	"context"
	"errors"
	"strings"

	"hookrelay/internal"

	gh "github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

const defaultBaseURL = "https://api.github.com"

// Client calls the GitHub API with a static bearer token.
type Client struct {
	gh *gh.Client
}

// NewClient builds a token-authenticated client. A non-empty baseURL other
// than the public API endpoint selects GitHub Enterprise mode.
func NewClient(ctx context.Context, token, baseURL string) (*Client, error) {
	api, err := NewAPIClient(ctx, token, baseURL)
	if err != nil {
		return nil, err
	}
	return &Client{gh: api}, nil
}

// NewAPIClient builds the underlying go-github client. Shared with the
// webhook registration utility.
func NewAPIClient(ctx context.Context, token, baseURL string) (*gh.Client, error) {
	if token == "" {
		return nil, &internal.ConfigurationError{Message: "github token is required"}
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := oauth2.NewClient(ctx, ts)

	base := strings.TrimRight(baseURL, "/")
	if base != "" && base != defaultBaseURL {
		client, err := gh.NewEnterpriseClient(base, base, httpClient)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	return gh.NewClient(httpClient), nil
}

// DefaultBranch fetches the repository's current default branch. It is
// never cached or assumed: the branch can change between deliveries.
func (c *Client) DefaultBranch(ctx context.Context, owner, repo string) (string, error) {
	repository, resp, err := c.gh.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return "", upstreamError("fetching automation repository metadata failed", resp, err)
	}
	branch := repository.GetDefaultBranch()
	if branch == "" {
		ue := &internal.UpstreamError{Op: "automation repository metadata has no default branch"}
		if resp != nil {
			ue.Status = resp.StatusCode
		}
		return "", ue
	}
	return branch, nil
}

// DispatchWorkflow creates one workflow_dispatch event for the target
// workflow file, run against the resolved branch with the capped inputs.
func (c *Client) DispatchWorkflow(ctx context.Context, target internal.DispatchTarget, inputs map[string]string) error {
	dispatchInputs := make(map[string]interface{}, len(inputs))
	for key, value := range inputs {
		dispatchInputs[key] = value
	}
	event := gh.CreateWorkflowDispatchEventRequest{
		Ref:    target.Branch,
		Inputs: dispatchInputs,
	}
	resp, err := c.gh.Actions.CreateWorkflowDispatchEventByFileName(ctx, target.Owner, target.Repo, target.WorkflowFile, event)
	if err != nil {
		return upstreamError("workflow dispatch failed", resp, err)
	}
	return nil
}

func upstreamError(op string, resp *gh.Response, err error) error {
	ue := &internal.UpstreamError{Op: op, Err: err}
	if resp != nil {
		ue.Status = resp.StatusCode
	}
	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) {
		ue.Details = ghErr.Message
	}
	return ue
}
