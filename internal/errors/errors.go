// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrNoRecipients       = errors.New("no clients to send the campaign to")
	ErrAlreadySent        = errors.New("campaign has already been sent")
	ErrDispatchInProgress = errors.New("campaign dispatch already in progress")
	ErrDispatchAborted    = errors.New("campaign dispatch aborted")
	ErrConflict           = errors.New("conflict")
	ErrValidation         = errors.New("validation failed")
)

// NotFoundError is returned by repositories when a record does not exist.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func NewCampaignNotFound(id int64) error {
	return &NotFoundError{Entity: "campaign", ID: id}
}

func NewClientNotFound(id int64) error {
	return &NotFoundError{Entity: "client", ID: id}
}

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries every field that failed validation for a request.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func NewValidationError(field, message string) error {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// PersistenceError means deliveries were attempted but the final campaign
// status write failed, so the stored status no longer reflects what went out.
// Report holds the dispatch report (typed as any to keep this package free of
// model imports).
type PersistenceError struct {
	CampaignID int64
	Report     any
	Err        error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("campaign %d: deliveries attempted but status was not recorded: %v", e.CampaignID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// NewConflict wraps ErrConflict with a human readable reason.
func NewConflict(reason string) error {
	return fmt.Errorf("%w: %s", ErrConflict, reason)
}
