package protocol

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidPayload is returned when a decoded request fails validation.
var ErrInvalidPayload = errors.New("invalid payload")

// JoinRequest is the payload of a join event.
type JoinRequest struct {
	Username string `json:"username" validate:"required,max=32"`
	Avatar   string `json:"avatar" validate:"omitempty,max=256"`
	Color    string `json:"color" validate:"omitempty,max=32"`
}

// ChatRequest is the payload of a client chat-message event. Any identity
// fields a client adds are ignored.
type ChatRequest struct {
	Message string `json:"message" validate:"required,max=1000"`
}

// Validator checks inbound payloads after trimming surrounding whitespace.
type Validator struct {
	validate *validator.Validate
}

// NewValidator builds a Validator. It is safe for concurrent use.
func NewValidator() *Validator {
	return &Validator{validate: validator.New(validator.WithRequiredStructEnabled())}
}

// Join normalizes and validates a join request.
func (v *Validator) Join(req JoinRequest) (JoinRequest, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Avatar = strings.TrimSpace(req.Avatar)
	req.Color = strings.TrimSpace(req.Color)
	if err := v.validate.Struct(req); err != nil {
		return JoinRequest{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return req, nil
}

// Chat normalizes and validates a chat request.
func (v *Validator) Chat(req ChatRequest) (ChatRequest, error) {
	req.Message = strings.TrimSpace(req.Message)
	if err := v.validate.Struct(req); err != nil {
		return ChatRequest{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return req, nil
}
