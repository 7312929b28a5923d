package ai

import "errors"

// Sentinel errors for classifier backends.
var (
	ErrMissingAPIKey   = errors.New("ai api key is required")
	ErrUnknownProvider = errors.New("unknown ai provider")
	ErrEmptyResponse   = errors.New("ai backend returned an empty response")
	ErrNotInitialized  = errors.New("ai client is not initialized")
	ErrEmptyPrompt     = errors.New("prompt must not be empty")
)
