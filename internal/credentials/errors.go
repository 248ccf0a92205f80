package credentials

import (
	"fmt"

	"github.com/campussync/campussync/internal/platform/httpx"
)

var (
	// ErrNotFound occurs when no credential matches.
	ErrNotFound = fmt.Errorf("%w: credential not found", httpx.ErrNotFound)
	// ErrInvalidSubject occurs when the subject lacks required fields.
	ErrInvalidSubject = fmt.Errorf("%w: credential subject requires student, certificate, title and institution", httpx.ErrValidation)
)
