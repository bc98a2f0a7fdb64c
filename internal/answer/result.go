package answer

import (
	"fmt"
)

// Kind classifies a generation failure.
type Kind string

const (
	// KindAuth means the backend rejected the credential.
	KindAuth Kind = "auth"
	// KindTransport covers every other failure: network, timeout, rate limit, server error.
	KindTransport Kind = "transport"
)

// GenerationError is a failed generation call, tagged with its kind.
type GenerationError struct {
	Kind Kind
	// CredentialEnv names the environment variable holding the rejected key, for display.
	CredentialEnv string
	Err           error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed (%s): %v", e.Kind, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Result is the outcome of synthesis: an answer or a generation failure, never both.
type Result struct {
	Answer string
	Err    *GenerationError
}

// OK reports whether generation succeeded (or was not needed).
func (r Result) OK() bool {
	return r.Err == nil
}

// Display renders the result for users: the answer, or an "LLM ERROR: ..." line.
func (r Result) Display() string {
	if r.Err == nil {
		return r.Answer
	}
	if r.Err.Kind == KindAuth {
		env := r.Err.CredentialEnv
		if env == "" {
			env = "the API key variable"
		}
		return fmt.Sprintf("LLM ERROR: API key rejected (401). Verify %s holds a valid key for the configured provider, "+
			"set it as an environment variable or in a .env file, and restart.", env)
	}
	return fmt.Sprintf("LLM ERROR: %v", r.Err.Err)
}

// FailureKind returns the failure kind as a string, or "" on success.
func (r Result) FailureKind() string {
	if r.Err == nil {
		return ""
	}
	return string(r.Err.Kind)
}
