package memories

import "fmt"

// ValidationError rejects user input before any remote call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// RemoteWriteError reports a create or delete the collection rejected.
type RemoteWriteError struct {
	Op  string // create, remove
	ID  string
	Err error
}

func (e *RemoteWriteError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s memory %s: %v", e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("%s memory: %v", e.Op, e.Err)
}

func (e *RemoteWriteError) Unwrap() error { return e.Err }

// UploadError reports a failed, rejected or dismissed upload session.
type UploadError struct {
	Reason string
	Err    error
}

func (e *UploadError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("upload failed: %v", e.Err)
	}
	return fmt.Sprintf("upload failed: %s", e.Reason)
}

func (e *UploadError) Unwrap() error { return e.Err }

// SubscriptionError reports that the live subscription could not deliver a
// snapshot. The list held by subscribers is stale until the next delivery.
type SubscriptionError struct {
	Collection string
	Err        error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("subscription to %s failed: %v", e.Collection, e.Err)
}

func (e *SubscriptionError) Unwrap() error { return e.Err }
