package internal

import "strings"

// WorkflowMap is an ordered repository-to-workflow mapping parsed from a
// single "owner/repo:workflow.yml,owner/other:deploy.yml" string. Order is
// preserved so diagnostics list repositories the way the operator wrote
// them. Lookup is an exact string match; there are no wildcards.
type WorkflowMap struct {
	pairs []mapPair
}

type mapPair struct {
	repo     string
	workflow string
}

// ParseWorkflowMap parses the mapping string. Tokens missing either side
// of the colon are skipped; a string yielding zero valid pairs is a
// configuration error.
func ParseWorkflowMap(raw string) (*WorkflowMap, error) {
	m := &WorkflowMap{}
	for _, token := range strings.Split(raw, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		repo, workflow, ok := strings.Cut(token, ":")
		repo = strings.TrimSpace(repo)
		workflow = strings.TrimSpace(workflow)
		if !ok || repo == "" || workflow == "" {
			continue
		}
		m.pairs = append(m.pairs, mapPair{repo: repo, workflow: workflow})
	}
	if len(m.pairs) == 0 {
		return nil, &ConfigurationError{Message: "workflow map has no valid repo:workflow pairs"}
	}
	return m, nil
}

// Lookup resolves the workflow filename for a repository full name. A miss
// returns a NotConfiguredError carrying the known repository keys.
func (m *WorkflowMap) Lookup(repoFullName string) (string, error) {
	for _, pair := range m.pairs {
		if pair.repo == repoFullName {
			return pair.workflow, nil
		}
	}
	return "", &NotConfiguredError{Repository: repoFullName, Known: m.Repositories()}
}

// Repositories returns the mapped repository keys in declaration order.
func (m *WorkflowMap) Repositories() []string {
	repos := make([]string, 0, len(m.pairs))
	for _, pair := range m.pairs {
		repos = append(repos, pair.repo)
	}
	return repos
}
