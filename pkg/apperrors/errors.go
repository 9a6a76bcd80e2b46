package apperrors

import "errors"

// ErrUnavailable marks a dependency that cannot serve requests. Callers
// degrade to their fallbacks instead of failing the request.
var ErrUnavailable = errors.New("dependency unavailable")
