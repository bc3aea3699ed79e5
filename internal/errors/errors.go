package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error types for the playback engine.
var (
	ErrSeekInProgress      = errors.New("seek in progress")
	ErrSeekCancelled       = errors.New("seek cancelled")
	ErrInvalidChapterIndex = errors.New("invalid chapter index")
	ErrInvalidTrackIndex   = errors.New("invalid track index")
	ErrPlaybackFailure     = errors.New("playback primitive failure")
	ErrPreloadFailure      = errors.New("preload failed")
	ErrUnregisteredCommand = errors.New("unregistered command")
	ErrHandlerFailure      = errors.New("command handler failed")
	ErrNoBookLoaded        = errors.New("no book loaded")
	ErrInvalidManifest     = errors.New("invalid book manifest")
	ErrConfigNotFound      = errors.New("config file not found")
	ErrInvalidConfig       = errors.New("invalid configuration")
)

// QuireError wraps an error with a user-friendly suggestion.
type QuireError struct {
	Err        error
	Suggestion string
}

func (e *QuireError) Error() string {
	return e.Err.Error()
}

func (e *QuireError) Unwrap() error {
	return e.Err
}

// WithSuggestion wraps an error with a helpful suggestion.
func WithSuggestion(err error, suggestion string) error {
	return &QuireError{
		Err:        err,
		Suggestion: suggestion,
	}
}

// GetSuggestion returns a suggestion for the given error.
func GetSuggestion(err error) string {
	if err == nil {
		return ""
	}

	var qErr *QuireError
	if errors.As(err, &qErr) && qErr.Suggestion != "" {
		return qErr.Suggestion
	}

	switch {
	case errors.Is(err, ErrSeekInProgress):
		return "Another seek is still running. Wait for it to finish or cancel it"
	case errors.Is(err, ErrInvalidChapterIndex):
		return "Run 'quire chapters <book>' to see valid chapter numbers"
	case errors.Is(err, ErrInvalidTrackIndex):
		return "Check the track list in the book manifest"
	case errors.Is(err, ErrPlaybackFailure):
		return "The audio device rejected the request. Try again"
	case errors.Is(err, ErrNoBookLoaded):
		return "Open a book first with 'quire play <book.toml>'"
	case errors.Is(err, ErrInvalidManifest):
		return "Check the [[tracks]] and [[chapters]] tables in the book manifest"
	case errors.Is(err, ErrConfigNotFound), errors.Is(err, ErrInvalidConfig):
		return "Run 'quire config init' to write a fresh configuration"
	}

	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "no such file") {
		return "Check that the audio files listed in the manifest exist"
	}
	if strings.Contains(errStr, "speaker") || strings.Contains(errStr, "alsa") {
		return "No audio output device could be opened"
	}

	return ""
}

// Format returns a formatted error message with suggestion if available.
func Format(err error) string {
	if err == nil {
		return ""
	}

	suggestion := GetSuggestion(err)
	if suggestion != "" {
		return fmt.Sprintf("Error: %s\n\nSuggestion: %s", err.Error(), suggestion)
	}

	return fmt.Sprintf("Error: %s", err.Error())
}

// PartialResult represents a result that may have partial failures.
type PartialResult[T any] struct {
	Data   T
	Errors []error
}

// HasErrors returns true if there were any errors.
func (p *PartialResult[T]) HasErrors() bool {
	return len(p.Errors) > 0
}

// AddError adds an error to the partial result.
func (p *PartialResult[T]) AddError(err error) {
	if err != nil {
		p.Errors = append(p.Errors, err)
	}
}

// ErrorSummary returns a summary of all errors.
func (p *PartialResult[T]) ErrorSummary() string {
	if len(p.Errors) == 0 {
		return ""
	}
	if len(p.Errors) == 1 {
		return p.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d errors occurred:\n", len(p.Errors)))
	for i, err := range p.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}
