package organizations

import (
	"fmt"

	"github.com/campussync/campussync/internal/platform/httpx"
)

var (
	ErrNotFound    = fmt.Errorf("%w: organization not found", httpx.ErrNotFound)
	ErrSlugTaken   = fmt.Errorf("%w: organization slug already in use", httpx.ErrDuplicate)
	ErrInvalidSlug = fmt.Errorf("%w: slug must contain letters or digits", httpx.ErrValidation)
)
