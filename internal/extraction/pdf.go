package extraction

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// maxRawText bounds the raw text echoed back to clients.
const maxRawText = 8000

// PDFExtractor reads embedded text from PDFs. It has no way to judge
// authenticity, so every result is routed to manual review with zero
// confidence. Images yield an empty result.
type PDFExtractor struct{}

// NewPDFExtractor constructs a PDFExtractor.
func NewPDFExtractor() *PDFExtractor { return &PDFExtractor{} }

// Name identifies the extractor in logs and metrics.
func (*PDFExtractor) Name() string { return "ocr" }

// Extract parses text from doc.
func (e *PDFExtractor) Extract(ctx context.Context, doc Document) (Result, error) {
	res := Result{}
	if doc.MIME == "application/pdf" {
		text, err := pdfText(doc.Data)
		if err != nil {
			return Result{}, err
		}
		res = ParseFields(text)
	}
	if len(res.RawText) > maxRawText {
		res.RawText = res.RawText[:maxRawText]
	}
	res.Confidence = 0
	res.VerificationMethod = MethodManualReview
	return res, ctx.Err()
}

func pdfText(data []byte) (text string, err error) {
	// The pdf package panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrUnreadable, r)
		}
	}()
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(pageText)
		b.WriteByte('\n')
	}
	return b.String(), nil
}
