package main

import (
	"context"
	"flag"
	"os"
	"strings"

	"hookrelay/internal"
	"hookrelay/pkg/dispatch"
	"hookrelay/pkg/register"
)

func main() {
	logger := internal.NewLogger("registerhooks")

	token := flag.String("token", os.Getenv("HOOKRELAY_TOKEN"), "GitHub API token")
	endpoint := flag.String("endpoint", "", "Relay webhook URL to register")
	secret := flag.String("secret", os.Getenv("HOOKRELAY_SECRET"), "Webhook HMAC secret")
	apiBase := flag.String("api-base", "", "GitHub API base URL (for GitHub Enterprise)")
	repoList := flag.String("repos", "", "Comma-separated owner/name repositories")
	dryRun := flag.Bool("dry-run", false, "Report intended changes without applying them")
	flag.Parse()

	repos := flag.Args()
	if *repoList != "" {
		for _, repo := range strings.Split(*repoList, ",") {
			if repo = strings.TrimSpace(repo); repo != "" {
				repos = append(repos, repo)
			}
		}
	}
	if len(repos) == 0 {
		logger.Fatalf("no repositories given; pass -repos or list them as arguments")
	}

	ctx := context.Background()
	api, err := dispatch.NewAPIClient(ctx, *token, *apiBase)
	if err != nil {
		logger.Fatalf("github client: %v", err)
	}

	registrar := register.New(api, logger)
	actions, err := registrar.Ensure(ctx, repos, register.Options{
		Endpoint: *endpoint,
		Secret:   *secret,
		DryRun:   *dryRun,
	})
	if err != nil {
		logger.Fatalf("register webhooks: %v", err)
	}

	for _, action := range actions {
		logger.Printf("%s: %s", action.Repo, action.Change)
	}
}
