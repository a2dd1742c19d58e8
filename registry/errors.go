package registry

import (
	"errors"
	"fmt"
)

var (
	// ErrAttachment is wrapped by every AttachmentError.
	ErrAttachment = errors.New("no usable attachment method")

	// ErrCleared is wrapped by every ClearError.
	ErrCleared = errors.New("task was cleared")

	// ErrInvalidSpec is returned by Register for malformed specs.
	ErrInvalidSpec = errors.New("invalid task spec")
)

// AttachmentError reports a target that exposes none of the methods a binding
// can attach through: an emitter without a subscribe method, or a worker
// without a destructor. It is an integration error and is never retried.
type AttachmentError struct {
	Namespace  Namespace
	Target     any
	Capability string
}

func (e *AttachmentError) Error() string {
	return fmt.Sprintf("%s: %T exposes no %s: %v", e.Namespace, e.Target, e.Capability, ErrAttachment)
}

func (e *AttachmentError) Unwrap() error {
	return ErrAttachment
}

// ClearError is the rejection reason of a promise whose task was cleared
// before it settled.
type ClearError struct {
	ID        ID
	Namespace Namespace
	Reason    ClearReason
}

func (e *ClearError) Error() string {
	return fmt.Sprintf("%s task %d %s: %v", e.Namespace, e.ID, e.Reason, ErrCleared)
}

func (e *ClearError) Unwrap() error {
	return ErrCleared
}
