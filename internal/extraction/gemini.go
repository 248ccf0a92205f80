package extraction

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/campussync/campussync/internal/platform/httpx"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

const geminiPrompt = `You are verifying an academic or professional certificate.
Read the attached document and answer with a single JSON object with these keys:
title, institution, date_issued (YYYY-MM-DD or empty), description, recipient,
certificate_id, confidence (0 to 1, how sure you are the document is authentic),
verification_method (one of qr_verified, logo_match, template_match, manual_review).
Use manual_review when you cannot establish authenticity. Leave unknown strings empty.`

// GeminiExtractor sends documents to the Gemini multimodal API.
type GeminiExtractor struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewGeminiExtractor constructs an extractor for model.
func NewGeminiExtractor(apiKey, model string) (*GeminiExtractor, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("extraction: gemini api key required")
	}
	return &GeminiExtractor{
		apiKey:     apiKey,
		model:      strings.TrimPrefix(strings.TrimSpace(model), "models/"),
		baseURL:    defaultGeminiBaseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

// WithBaseURL points the extractor at another endpoint, used by tests.
func (g *GeminiExtractor) WithBaseURL(url string) *GeminiExtractor {
	g.baseURL = strings.TrimSuffix(url, "/")
	return g
}

// Name identifies the extractor in logs and metrics.
func (*GeminiExtractor) Name() string { return "ocr-gemini" }

// Extract asks the model for certificate fields. The response is validated
// before it is returned; anything off-schema is ErrMalformedResponse.
func (g *GeminiExtractor) Extract(ctx context.Context, doc Document) (Result, error) {
	reqBody := generateRequest{
		Contents: []content{{
			Role: "user",
			Parts: []part{
				{Text: geminiPrompt},
				{InlineData: &inlineData{MimeType: doc.MIME, Data: base64.StdEncoding.EncodeToString(doc.Data)}},
			},
		}},
		GenerationConfig: &generationConfig{ResponseMimeType: "application/json", Temperature: 0},
	}
	var resp generateResponse
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)
	if err := g.doJSON(ctx, url, reqBody, &resp); err != nil {
		return Result{}, err
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return Result{}, fmt.Errorf("%w: empty candidates", ErrMalformedResponse)
	}
	return decodeModelResult(resp.Candidates[0].Content.Parts[0].Text)
}

type modelResult struct {
	Title              string   `json:"title" validate:"max=300"`
	Institution        string   `json:"institution" validate:"max=300"`
	DateIssued         string   `json:"date_issued" validate:"omitempty,datetime=2006-01-02"`
	Description        string   `json:"description" validate:"max=4000"`
	Recipient          string   `json:"recipient" validate:"max=300"`
	CertificateID      string   `json:"certificate_id" validate:"max=120"`
	Confidence         *float64 `json:"confidence" validate:"required,min=0,max=1"`
	VerificationMethod Method   `json:"verification_method" validate:"omitempty,oneof=qr_verified logo_match template_match manual_review"`
}

func decodeModelResult(text string) (Result, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	var m modelResult
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &m); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if err := httpx.Validate(m); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	method := m.VerificationMethod
	if method == "" {
		method = MethodManualReview
	}
	return Result{
		Title:              strings.TrimSpace(m.Title),
		Institution:        strings.TrimSpace(m.Institution),
		DateIssued:         m.DateIssued,
		Description:        strings.TrimSpace(m.Description),
		Recipient:          strings.TrimSpace(m.Recipient),
		CertificateID:      strings.TrimSpace(m.CertificateID),
		Confidence:         *m.Confidence,
		VerificationMethod: method,
	}, nil
}

func (g *GeminiExtractor) doJSON(ctx context.Context, url string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error.Message != "" {
			return fmt.Errorf("%w: gemini: %s", ErrUpstream, errResp.Error.Message)
		}
		return fmt.Errorf("%w: gemini: %s", ErrUpstream, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
	Temperature      float64 `json:"temperature"`
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}
