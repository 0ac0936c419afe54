package webhook

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"hookrelay/internal"

	"github.com/go-playground/webhooks/v6/github"
)

// buildActions is the allow-list of pull-request actions that trigger a
// build. Anything else is acknowledged and dropped.
var buildActions = map[string]bool{
	"opened":      true,
	"reopened":    true,
	"synchronize": true,
}

// normalized is the outcome of the per-event-kind normalizer. Exactly one
// of inputs or skipMessage is set: inputs means the event proceeds to
// dispatch, skipMessage means the event is acknowledged with a no-op.
type normalized struct {
	inputs       map[string]string
	sourceBranch string
	skipMessage  string
}

// normalizeEvent turns a parsed webhook payload into the bounded dispatch
// input set. The event kinds form a closed set: push and pull_request have
// dedicated normalizers, everything else short-circuits as ignored rather
// than erroring, so senders can subscribe broadly without breaking the
// relay.
func normalizeEvent(eventName string, payload interface{}, raw []byte, now time.Time) (normalized, error) {
	switch p := payload.(type) {
	case github.PushPayload:
		return normalizePush(p, now)
	case github.PullRequestPayload:
		return normalizePullRequest(p, raw, now)
	default:
		return normalized{skipMessage: fmt.Sprintf("Ignored event: %s", eventName)}, nil
	}
}

func normalizePush(p github.PushPayload, now time.Time) (normalized, error) {
	if p.Deleted {
		return normalized{skipMessage: "Branch deletion doesn't trigger a build"}, nil
	}
	if p.Ref == "" {
		return normalized{}, &internal.BadRequestError{Message: "push payload has no ref"}
	}
	branch, ok := strings.CutPrefix(p.Ref, "refs/heads/")
	if !ok || branch == "" {
		return normalized{}, &internal.BadRequestError{
			Message: fmt.Sprintf("push ref %q is not a branch ref", p.Ref),
		}
	}

	author := p.Pusher.Name
	if author == "" {
		author = "Unknown"
	}

	inputs := baseInputs("push", p.Repository.FullName, p.Sender.Login, now)
	inputs["branch"] = branch
	inputs["author"] = author
	inputs["commit_sha"] = p.After
	inputs["commit_message"] = p.HeadCommit.Message
	inputs["commit_url"] = p.HeadCommit.URL
	return normalized{inputs: inputs, sourceBranch: branch}, nil
}

func normalizePullRequest(p github.PullRequestPayload, raw []byte, now time.Time) (normalized, error) {
	if p.Action == "" {
		return normalized{}, &internal.BadRequestError{Message: "pull_request payload has no action"}
	}
	if !hasPullRequestObject(raw) {
		return normalized{}, &internal.BadRequestError{Message: "pull_request payload has no pull request object"}
	}
	if !buildActions[p.Action] {
		return normalized{
			skipMessage: fmt.Sprintf("PR action '%s' doesn't trigger a build", p.Action),
		}, nil
	}
	branch := p.PullRequest.Head.Ref
	if branch == "" {
		return normalized{}, &internal.BadRequestError{Message: "pull request head branch is empty"}
	}

	author := p.PullRequest.User.Login
	if author == "" {
		author = "Unknown"
	}

	inputs := baseInputs("pull_request", p.Repository.FullName, p.Sender.Login, now)
	inputs["branch"] = branch
	inputs["pr_number"] = strconv.FormatInt(p.Number, 10)
	inputs["pr_action"] = p.Action
	inputs["author"] = author
	inputs["pr_title"] = p.PullRequest.Title
	inputs["pr_url"] = p.PullRequest.HTMLURL
	inputs["target_branch"] = p.PullRequest.Base.Ref
	return normalized{inputs: inputs, sourceBranch: branch}, nil
}

func baseInputs(eventType, repository, sender string, now time.Time) map[string]string {
	return map[string]string{
		"event_type": eventType,
		"timestamp":  now.Format(time.RFC3339),
		"repository": repository,
		"sender":     sender,
	}
}

// hasPullRequestObject checks the raw body for a non-null pull_request
// key. The typed payload cannot distinguish an absent object from an
// all-zero one.
func hasPullRequestObject(raw []byte) bool {
	var probe struct {
		PullRequest json.RawMessage `json:"pull_request"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return false
	}
	return len(probe.PullRequest) > 0 && string(probe.PullRequest) != "null"
}
