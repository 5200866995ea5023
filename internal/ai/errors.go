package ai

import "fmt"

// FailureReason discriminates gateway call failures. Every failed call
// carries exactly one reason; the caller decides whether to retry.
type FailureReason string

const (
	// ReasonRateLimited: too many calls in the window; retry after the
	// stated delay.
	ReasonRateLimited FailureReason = "rate_limited"
	// ReasonMissingCredential: no usable credential in the vault.
	ReasonMissingCredential FailureReason = "missing_credential"
	// ReasonTransport: the provider call itself failed.
	ReasonTransport FailureReason = "transport_error"
	// ReasonMalformedResponse: no recoverable JSON in the model's text.
	ReasonMalformedResponse FailureReason = "malformed_response"
	// ReasonSchemaInvalid: JSON parsed but failed shape validation.
	ReasonSchemaInvalid FailureReason = "schema_invalid"
)

// CallError is the single failure type surfaced by the Gateway.
type CallError struct {
	Reason            FailureReason
	Detail            string
	RetryAfterSeconds int
	Err               error
}

func (e *CallError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("ai: %s: %s", e.Reason, e.Detail)
	}
	return fmt.Sprintf("ai: %s", e.Reason)
}

func (e *CallError) Unwrap() error { return e.Err }

// Retryable reports whether retrying the same request could succeed.
// Only a missing credential requires user action first.
func (e *CallError) Retryable() bool {
	return e.Reason != ReasonMissingCredential
}

func rateLimited(retryAfter int) *CallError {
	return &CallError{
		Reason:            ReasonRateLimited,
		Detail:            fmt.Sprintf("retry in %d seconds", retryAfter),
		RetryAfterSeconds: retryAfter,
	}
}

func missingCredential() *CallError {
	return &CallError{Reason: ReasonMissingCredential, Detail: "no API credential configured"}
}

func transportError(err error) *CallError {
	return &CallError{Reason: ReasonTransport, Detail: err.Error(), Err: err}
}

func malformedResponse(err error) *CallError {
	return &CallError{Reason: ReasonMalformedResponse, Detail: err.Error(), Err: err}
}

func schemaInvalid(err error) *CallError {
	return &CallError{Reason: ReasonSchemaInvalid, Detail: err.Error(), Err: err}
}
