package certificates

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campussync/campussync/internal/extraction"
	"github.com/campussync/campussync/internal/rbac"
	"github.com/campussync/campussync/internal/shared"
)

func newTestRouter(svc *Service, p *shared.Principal) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(shared.ContextWithPrincipal(req.Context(), p)))
		})
	})
	NewHandler(nil, svc, rbac.Middleware{}).MountRoutes(r)
	return r
}

func postJSON(h http.Handler, path string, body any, header ...string) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestApproveHandlerReturnsBadGatewayWithCertificate(t *testing.T) {
	f := newFixture(t, nil, Options{})
	id := f.repo.seed(uuid.New(), StatusPending)
	f.issuer.setFail(true)
	router := newTestRouter(f.svc, reviewer())

	rec := postJSON(router, "/approve", ReviewInput{ID: id, Action: ActionApprove})
	require.Equal(t, http.StatusBadGateway, rec.Code)

	var body ReviewResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, id, body.Certificate.ID)
	assert.Equal(t, StatusVerified, body.Certificate.Status)
	assert.NotEmpty(t, body.IssuanceError)

	f.issuer.setFail(false)
	rec = postJSON(router, "/issue", IDInput{ID: id})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReviewerRoutesRequireRole(t *testing.T) {
	f := newFixture(t, nil, Options{})
	id := f.repo.seed(uuid.New(), StatusPending)
	router := newTestRouter(f.svc, &shared.Principal{UserID: uuid.New(), Role: shared.RoleStudent})

	rec := postJSON(router, "/approve", ReviewInput{ID: id, Action: ActionApprove})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, StatusPending, f.repo.status(id))
}

func TestBatchHandlerHonoursIdempotencyKey(t *testing.T) {
	f := newFixture(t, nil, Options{})
	id := f.repo.seed(uuid.New(), StatusPending)
	router := newTestRouter(f.svc, reviewer())
	in := BatchInput{IDs: []uuid.UUID{id, uuid.New()}, Action: ActionApprove}

	rec := postJSON(router, "/batch-approve", in, "Idempotency-Key", "abc")
	require.Equal(t, http.StatusOK, rec.Code)
	var res BatchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, BatchSummary{Approved: 1, Failed: 1}, res.Summary)

	rec = postJSON(router, "/batch-approve", in, "Idempotency-Key", "abc")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestIntakeHandlerRequiresFileField(t *testing.T) {
	ext := stubExtractor{result: extraction.Result{Title: "Cloud Practitioner"}}
	f := newFixture(t, ext, Options{})
	router := newTestRouter(f.svc, &shared.Principal{UserID: uuid.New(), Role: shared.RoleStudent})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("other", "x"))
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/ocr", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	buf.Reset()
	mw = multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "cert.pdf")
	require.NoError(t, err)
	_, _ = part.Write(samplePDF)
	require.NoError(t, mw.Close())
	req = httptest.NewRequest(http.MethodPost, "/ocr", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "Cloud Practitioner"))
}
