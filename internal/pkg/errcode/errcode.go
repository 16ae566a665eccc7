package errcode

const (
	ErrUnknown = 10000000 + iota
	ErrUnauthorized
	ErrNotFound
	ErrInvalid
	ErrTooMany
	ErrInternal
	ErrValidation
	ErrUpstreamFailed
	ErrBadUpstreamData
	ErrIndexFailed
	ErrAIUnavailable
)
