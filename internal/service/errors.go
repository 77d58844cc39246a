package service

import (
	"errors"
	"fmt"
	"strings"
)

var ErrNotConfigured = errors.New("service is not configured")

// ConfigError lists the settings a request needed but the deployment lacks.
type ConfigError struct {
	Missing []string
}

func (e *ConfigError) Error() string {
	return "missing configuration: " + strings.Join(e.Missing, ", ")
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrNotConfigured
}

// Knowledge reads, as named in RetrievalError.
const (
	ReadEssentials = "essentials"
	ReadSearch     = "search"
)

// RetrievalError reports which knowledge read failed.
type RetrievalError struct {
	Read string
	Err  error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("%s read failed: %v", e.Read, e.Err)
}

func (e *RetrievalError) Unwrap() error {
	return e.Err
}

// CompletionError is a non-2xx answer from the completion service.
type CompletionError struct {
	StatusCode int
	Body       string
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("completion request failed with status %d: %s", e.StatusCode, e.Body)
}
