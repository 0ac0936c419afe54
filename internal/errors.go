package internal

import "fmt"

// The relay's failure taxonomy. Every stage validates its own inputs and
// returns the first failure; nothing is retried internally. Redelivery is
// the webhook sender's job.

// BadRequestError covers malformed or missing inbound data: a missing
// event header, an unparseable body, or a required payload field absent.
type BadRequestError struct {
	Message string
}

func (e *BadRequestError) Error() string {
	return e.Message
}

// ConfigurationError covers missing or invalid process configuration. It
// maps to a server error since it reflects an operator mistake, not a
// caller mistake.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return e.Message
}

// NotConfiguredError means the source repository has no entry in the
// workflow map. Known keys travel with the error so the response can
// enumerate them for the operator.
type NotConfiguredError struct {
	Repository string
	Known      []string
}

func (e *NotConfiguredError) Error() string {
	return fmt.Sprintf("repository %q is not configured for any workflow", e.Repository)
}

// UpstreamError means a GitHub API call failed, either before a response
// was received or with a non-success status.
type UpstreamError struct {
	Op      string
	Status  int
	Details string
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s: upstream returned %d", e.Op, e.Status)
	}
	return e.Op
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
