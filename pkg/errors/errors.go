package errors

import (
	"errors"
	"fmt"
)

// ValidationError indicates a rule or channel definition is missing
// required fields. It is fatal at construction time and never defaulted.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

// NewValidationError creates a ValidationError for a missing or invalid field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// NotFoundError indicates an operation referenced an unknown rule or channel ID
type NotFoundError struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// NewNotFoundError creates a NotFoundError for the given kind and ID
func NewNotFoundError(kind, id string) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}

// UnsupportedChannelTypeError indicates the channel factory was given a
// type it has no constructor for. This is a programmer/config error and
// fails fast at channel-add time.
type UnsupportedChannelTypeError struct {
	Type string `json:"type"`
}

func (e *UnsupportedChannelTypeError) Error() string {
	return fmt.Sprintf("unsupported notification channel type: %s", e.Type)
}

// NewUnsupportedChannelTypeError creates an UnsupportedChannelTypeError
func NewUnsupportedChannelTypeError(channelType string) *UnsupportedChannelTypeError {
	return &UnsupportedChannelTypeError{Type: channelType}
}

// ChannelConfigError indicates a channel is missing required configuration.
// It is recovered locally during send and surfaced as a failed
// NotificationResult, never thrown out of evaluation.
type ChannelConfigError struct {
	ChannelID string `json:"channel_id"`
	Key       string `json:"key"`
}

func (e *ChannelConfigError) Error() string {
	return fmt.Sprintf("channel %s: missing required config %q", e.ChannelID, e.Key)
}

// NewChannelConfigError creates a ChannelConfigError for a missing config key
func NewChannelConfigError(channelID, key string) *ChannelConfigError {
	return &ChannelConfigError{ChannelID: channelID, Key: key}
}

// DeliveryError wraps a transport failure during notification delivery
type DeliveryError struct {
	ChannelID string
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("channel %s: delivery failed: %v", e.ChannelID, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// NewDeliveryError wraps err as a delivery failure on the given channel
func NewDeliveryError(channelID string, err error) *DeliveryError {
	return &DeliveryError{ChannelID: channelID, Err: err}
}

// IsValidation checks whether err is a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound checks whether err is a NotFoundError
func IsNotFound(err error) bool {
	var nfe *NotFoundError
	return errors.As(err, &nfe)
}

// IsUnsupportedChannelType checks whether err is an UnsupportedChannelTypeError
func IsUnsupportedChannelType(err error) bool {
	var ue *UnsupportedChannelTypeError
	return errors.As(err, &ue)
}

// IsChannelConfig checks whether err is a ChannelConfigError
func IsChannelConfig(err error) bool {
	var ce *ChannelConfigError
	return errors.As(err, &ce)
}
