package news

import "errors"

// Stable error codes returned to clients.
const (
	CodeMissingPreferences = "user_does_not_have_preferences"
	CodeFetchFailed        = "Error fetching news articles"
)

// Error is a domain failure carrying a client-facing code. Err keeps the cause
// for logs and is never sent to clients.
type Error struct {
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Code
	}
	return e.Code + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Code extracts the domain code from err, if any.
func Code(err error) (string, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Code, true
	}
	return "", false
}
