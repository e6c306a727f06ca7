package msgsync

import (
	"errors"
	"fmt"
)

// Kind classifies a synchronization failure.
type Kind string

const (
	KindConfiguration Kind = "configuration"
	KindTransport     Kind = "transport"
	KindValidation    Kind = "validation"
	KindResolution    Kind = "resolution"
	KindNotFound      Kind = "not_found"
)

// ConfigurationError means a credential or channel is missing. It is raised
// before any network call.
type ConfigurationError struct {
	Field string
}

func (e *ConfigurationError) Error() string { return "msgsync: not configured: " + e.Field }
func (e *ConfigurationError) Kind() Kind    { return KindConfiguration }

// TransportError is a non-2xx response or a network failure.
type TransportError struct {
	Op     string
	Status int
	Body   string
	Err    error
}

func (e *TransportError) Error() string {
	switch {
	case e.Status != 0 && e.Body != "":
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Body)
	case e.Status != 0:
		return fmt.Sprintf("%s: status %d", e.Op, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Op + ": transport failure"
}
func (e *TransportError) Unwrap() error { return e.Err }
func (e *TransportError) Kind() Kind    { return KindTransport }

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return e.Field + " is required"
	}
	return e.Field + ": " + e.Reason
}
func (e *ValidationError) Kind() Kind { return KindValidation }

// ResolutionError means a webhook URL is malformed or no longer resolves to
// a channel. WebhookID is empty when the URL could not be parsed.
type ResolutionError struct {
	WebhookID string
	Reason    string
	Err       error
}

func (e *ResolutionError) Error() string {
	msg := "resolve webhook"
	if e.WebhookID != "" {
		msg += " " + e.WebhookID
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}
func (e *ResolutionError) Unwrap() error { return e.Err }
func (e *ResolutionError) Kind() Kind    { return KindResolution }

type NotFoundError struct {
	Resource string
	ID       string
	Err      error
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %s not found", e.Resource, e.ID) }
func (e *NotFoundError) Unwrap() error { return e.Err }
func (e *NotFoundError) Kind() Kind    { return KindNotFound }

// KindOf returns the Kind of the first classified error in err's chain, or
// "" when err is nil or unclassified.
func KindOf(err error) Kind {
	var k interface{ Kind() Kind }
	if err == nil || !errors.As(err, &k) {
		return ""
	}
	return k.Kind()
}

// asTransport keeps classified errors and wraps everything else.
func asTransport(op string, err error) error {
	if err == nil || KindOf(err) != "" {
		return err
	}
	return &TransportError{Op: op, Err: err}
}
