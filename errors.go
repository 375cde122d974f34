package assign

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownConsumer is returned by mutations addressing a consumer the
	// Service was not constructed with.
	ErrUnknownConsumer = errors.New("assign: unknown consumer")
	// ErrInvalidPreference reports a preference entry that cannot be stored.
	ErrInvalidPreference = errors.New("assign: invalid preference")
	// ErrNoDefinitions is recorded when the definitions directory holds no files.
	ErrNoDefinitions = errors.New("assign: no definition files found")
)

// RejectReason classifies why a definition file did not join the loaded set.
type RejectReason string

const (
	RejectNoDefinitions        RejectReason = "no_definitions"
	RejectUnreadable           RejectReason = "unreadable"
	RejectMissingIdentity      RejectReason = "missing_identity"
	RejectMissingTags          RejectReason = "missing_tags"
	RejectUnresolvedTag        RejectReason = "unresolved_tag"
	RejectMissingCapabilities  RejectReason = "missing_capabilities"
	RejectUnresolvedCapability RejectReason = "unresolved_capability"
	RejectUnresolvedResource   RejectReason = "unresolved_resource"
	RejectUnresolvedVariant    RejectReason = "unresolved_variant"
	RejectFinalizeFailed       RejectReason = "finalize_failed"
)

var rejectMessages = map[RejectReason]string{
	RejectNoDefinitions:        "no definition files found",
	RejectUnreadable:           "skipped since it could not be loaded",
	RejectMissingIdentity:      "skipped since it has no name",
	RejectMissingTags:          "skipped since it has no tags",
	RejectUnresolvedTag:        "skipped since it has tags that are not loaded",
	RejectMissingCapabilities:  "skipped since it has no capabilities",
	RejectUnresolvedCapability: "skipped since it has capabilities that are not loaded",
	RejectUnresolvedResource:   "skipped since it has venerated resources that are not loaded",
	RejectUnresolvedVariant:    "skipped since it has preferred variants that are not loaded",
	RejectFinalizeFailed:       "skipped since activation failed",
}

// LoadError describes one advisory diagnostic recorded during a load pass.
type LoadError struct {
	Path     string
	Identity string
	Reason   RejectReason
	Ref      string
	Err      error
}

func (e *LoadError) Error() string {
	if e == nil {
		return "<nil>"
	}
	subject := e.Path
	if e.Identity != "" {
		subject = fmt.Sprintf("%s (%s)", e.Identity, e.Path)
	}
	msg := fmt.Sprintf("assign: definition %s %s", subject, rejectMessages[e.Reason])
	if e.Ref != "" {
		msg += fmt.Sprintf(": %q", e.Ref)
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *LoadError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
