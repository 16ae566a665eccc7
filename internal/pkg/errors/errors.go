package errors

import "errors"

var (
	// ErrValidation marks a malformed source config.
	ErrValidation = errors.New("validation failed")
	// ErrFetch marks a network/HTTP failure while reaching a source endpoint.
	ErrFetch = errors.New("fetch failed")
	// ErrFormat marks an unexpected JSON shape or a missing data key.
	ErrFormat = errors.New("unexpected data format")
	// ErrIndex marks a vector store write/delete failure.
	ErrIndex = errors.New("vector index failure")
	// ErrGeneration marks a language model call failure.
	ErrGeneration = errors.New("generation failed")

	ErrNotFound     = errors.New("not found")
	ErrInvalid      = errors.New("invalid")
	ErrUnauthorized = errors.New("unauthorized")
	ErrTooMany      = errors.New("too many requests")
	ErrInternal     = errors.New("internal")
)

func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
