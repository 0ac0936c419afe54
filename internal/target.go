package internal

// DispatchTarget is where a normalized event gets dispatched: a workflow
// file in the automation repository, run against the repository's current
// default branch. Resolved fresh for every request, never cached.
type DispatchTarget struct {
	Owner        string
	Repo         string
	WorkflowFile string
	Branch       string
}

func (t DispatchTarget) RepoFullName() string {
	return t.Owner + "/" + t.Repo
}
