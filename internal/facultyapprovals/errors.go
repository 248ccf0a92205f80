package facultyapprovals

import (
	"fmt"

	"github.com/campussync/campussync/internal/platform/httpx"
)

var (
	ErrNotFound       = fmt.Errorf("%w: faculty approval not found", httpx.ErrNotFound)
	ErrAlreadyDecided = fmt.Errorf("%w: faculty approval already decided", httpx.ErrConflict)
	ErrDuplicate      = fmt.Errorf("%w: an application for this organization and role already exists", httpx.ErrDuplicate)
	ErrUnknownOrg     = fmt.Errorf("%w: organization does not exist or is inactive", httpx.ErrValidation)
	ErrInvalidFilter  = fmt.Errorf("%w: unknown status or role filter", httpx.ErrValidation)
)
