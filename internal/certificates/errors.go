package certificates

import (
	"fmt"

	"github.com/campussync/campussync/internal/platform/httpx"
)

var (
	ErrNotFound         = fmt.Errorf("%w: certificate not found", httpx.ErrNotFound)
	ErrAlreadyReviewed  = fmt.Errorf("%w: certificate already reviewed", httpx.ErrConflict)
	ErrNotVerified      = fmt.Errorf("%w: certificate must be verified before issuing", httpx.ErrConflict)
	ErrNotDeletable     = fmt.Errorf("%w: only pending certificates can be withdrawn", httpx.ErrConflict)
	ErrForbidden        = fmt.Errorf("%w: certificate belongs to another student", httpx.ErrForbidden)
	ErrIssuanceFailed   = fmt.Errorf("%w: certificate verified but credential issuance failed", httpx.ErrBadGateway)
	ErrDraftNotFound    = fmt.Errorf("%w: extraction expired or not found, upload the file again", httpx.ErrNotFound)
	ErrFileTooLarge     = fmt.Errorf("%w: certificate file exceeds upload limit", httpx.ErrTooLarge)
	ErrUnsupportedType  = fmt.Errorf("%w: certificate must be a PDF, PNG, JPEG or WebP file", httpx.ErrUnsupported)
	ErrMissingFile      = fmt.Errorf("%w: multipart field file is required", httpx.ErrValidation)
	ErrExtractorMissing = fmt.Errorf("%w: extractor not configured", httpx.ErrBadGateway)
)
