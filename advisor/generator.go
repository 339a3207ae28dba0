package advisor

import (
	"context"
	"errors"
)

// ErrOffline is returned by Offline for every request.
var ErrOffline = errors.New("advisor offline: no generative service configured")

// ErrEmptyResponse is returned when the service answers without text.
var ErrEmptyResponse = errors.New("empty response from generative service")

// Role is the speaker of a chat turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is one message of a conversation.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Request is one call to a generative text service.
type Request struct {
	System  string // optional instruction
	Prompt  string
	History []Turn // prior turns, oldest first
	JSON    bool   // ask for an application/json answer
}

// Generator produces text for a request. Implementations may fail for any
// reason; the Gateway substitutes fallbacks.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req Request) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Offline is the Generator used when no API key is configured.
type Offline struct{}

func (Offline) Generate(context.Context, Request) (string, error) {
	return "", ErrOffline
}
