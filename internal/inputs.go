package internal

// MaxDispatchInputs is the hard cap the workflow_dispatch API places on
// the number of input parameters.
const MaxDispatchInputs = 10

// inputPriority is the fixed keep-order applied when a normalized event
// produces more inputs than the API accepts. Keys outside this list are
// dropped first; of the listed keys, the first ten present survive.
var inputPriority = []string{
	"event_type",
	"timestamp",
	"repository",
	"sender",
	"branch",
	"author",
	"commit_sha",
	"pr_number",
	"pr_title",
	"target_branch",
}

// CapInputs enforces the dispatch input cap. Sets at or under the cap pass
// through untouched. Oversized sets are trimmed deterministically to the
// priority keys present, never randomly.
func CapInputs(inputs map[string]string) map[string]string {
	if len(inputs) <= MaxDispatchInputs {
		return inputs
	}
	capped := make(map[string]string, MaxDispatchInputs)
	for _, key := range inputPriority {
		if len(capped) == MaxDispatchInputs {
			break
		}
		if value, ok := inputs[key]; ok {
			capped[key] = value
		}
	}
	return capped
}
