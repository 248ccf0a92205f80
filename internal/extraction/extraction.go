// Package extraction turns uploaded certificate files into pre-filled fields.
package extraction

import (
	"context"
	"fmt"

	"github.com/campussync/campussync/internal/platform/httpx"
)

// Method describes how a certificate's authenticity was assessed.
type Method string

const (
	MethodQRVerified    Method = "qr_verified"
	MethodLogoMatch     Method = "logo_match"
	MethodTemplateMatch Method = "template_match"
	MethodManualReview  Method = "manual_review"
)

// Valid reports whether m is a known method.
func (m Method) Valid() bool {
	switch m {
	case MethodQRVerified, MethodLogoMatch, MethodTemplateMatch, MethodManualReview:
		return true
	}
	return false
}

// Result is the structured output of an extractor.
type Result struct {
	Title              string  `json:"title"`
	Institution        string  `json:"institution"`
	DateIssued         string  `json:"date_issued"`
	Description        string  `json:"description"`
	Recipient          string  `json:"recipient"`
	CertificateID      string  `json:"certificate_id"`
	Confidence         float64 `json:"confidence"`
	VerificationMethod Method  `json:"verification_method"`
	RawText            string  `json:"raw_text,omitempty"`
}

// Document is an uploaded file ready for extraction.
type Document struct {
	Data     []byte
	MIME     string
	Filename string
}

// Extractor reads certificate fields from a document.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, doc Document) (Result, error)
}

var (
	// ErrUnreadable occurs when the document cannot be parsed.
	ErrUnreadable = fmt.Errorf("%w: document could not be read", httpx.ErrValidation)
	// ErrUpstream occurs when the remote model fails or is unavailable.
	ErrUpstream = fmt.Errorf("%w: extraction service unavailable", httpx.ErrBadGateway)
	// ErrMalformedResponse occurs when the remote model returns an unusable payload.
	ErrMalformedResponse = fmt.Errorf("%w: extraction service returned an invalid result", httpx.ErrBadGateway)
)
