package certificates

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campussync/campussync/internal/credentials"
	"github.com/campussync/campussync/internal/extraction"
	"github.com/campussync/campussync/internal/platform/httpx"
	"github.com/campussync/campussync/internal/shared"
)

// ============================================================================
// MOCK REPOSITORY
// ============================================================================

type mockRepository struct {
	mu        sync.Mutex
	certs     map[uuid.UUID]Certificate
	approvals []shared.ApprovalLog
	audits    []shared.AuditLog
	insertErr error
}

func newMockRepository() *mockRepository {
	return &mockRepository{certs: map[uuid.UUID]Certificate{}}
}

func (m *mockRepository) seed(student uuid.UUID, status Status) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.certs[id] = Certificate{
		ID:                 id,
		Title:              "Cert " + id.String()[:4],
		Institution:        "State University",
		StudentID:          student,
		StudentEmail:       "student@campus.edu",
		Status:             status,
		FileKey:            "certificates/" + student.String() + "/" + id.String() + ".pdf",
		VerificationMethod: extraction.MethodManualReview,
		CreatedAt:          time.Now().Add(time.Duration(len(m.certs)) * time.Second),
	}
	return id
}

func (m *mockRepository) status(id uuid.UUID) Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.certs[id].Status
}

func (m *mockRepository) Get(ctx context.Context, id uuid.UUID) (Certificate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.certs[id]
	if !ok {
		return Certificate{}, ErrNotFound
	}
	return c, nil
}

func (m *mockRepository) List(ctx context.Context, filter ListFilter) ([]Certificate, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Certificate
	for _, c := range m.certs {
		if filter.StudentID != nil && c.StudentID != *filter.StudentID {
			continue
		}
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, len(out), nil
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &mockTx{m: m, writes: map[uuid.UUID]*Certificate{}}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for id, c := range tx.writes {
		if c == nil {
			delete(m.certs, id)
			continue
		}
		m.certs[id] = *c
	}
	m.approvals = append(m.approvals, tx.approvals...)
	m.audits = append(m.audits, tx.audits...)
	return nil
}

// ============================================================================
// MOCK TRANSACTION
// ============================================================================

type mockTx struct {
	m         *mockRepository
	writes    map[uuid.UUID]*Certificate
	approvals []shared.ApprovalLog
	audits    []shared.AuditLog
}

func (t *mockTx) Insert(ctx context.Context, c Certificate) (Certificate, error) {
	if t.m.insertErr != nil {
		return Certificate{}, t.m.insertErr
	}
	c.StudentEmail = "student@campus.edu"
	t.writes[c.ID] = &c
	return c, nil
}

func (t *mockTx) MarkReviewed(ctx context.Context, id uuid.UUID, status Status, reviewer uuid.UUID, notes string, at time.Time) (Certificate, error) {
	c, ok := t.m.certs[id]
	if !ok {
		return Certificate{}, ErrNotFound
	}
	if c.Status != StatusPending {
		return Certificate{}, ErrAlreadyReviewed
	}
	c.Status = status
	c.ReviewedBy = &reviewer
	c.ReviewedAt = &at
	if notes != "" {
		c.ReviewNotes = &notes
	}
	t.writes[id] = &c
	return c, nil
}

func (t *mockTx) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := t.m.certs[id]; !ok {
		return ErrNotFound
	}
	t.writes[id] = nil
	return nil
}

func (t *mockTx) InsertApproval(ctx context.Context, log shared.ApprovalLog) error {
	t.approvals = append(t.approvals, log)
	return nil
}

func (t *mockTx) InsertAudit(ctx context.Context, log shared.AuditLog) error {
	t.audits = append(t.audits, log)
	return nil
}

// ============================================================================
// FAKES
// ============================================================================

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemStore() *memStore { return &memStore{objects: map[string][]byte{}} }

func (s *memStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *memStore) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return "https://files.test/" + key, nil
}

func (s *memStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

type fakeIssuer struct {
	mu     sync.Mutex
	fail   bool
	issued map[uuid.UUID]credentials.Credential
}

func newFakeIssuer() *fakeIssuer {
	return &fakeIssuer{issued: map[uuid.UUID]credentials.Credential{}}
}

func (f *fakeIssuer) setFail(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = v
}

func (f *fakeIssuer) Issue(ctx context.Context, subject credentials.Subject) (credentials.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return credentials.Credential{}, errors.New("signing service unavailable")
	}
	if c, ok := f.issued[subject.CertificateID]; ok {
		return c, nil
	}
	c := credentials.Credential{ID: uuid.New(), CertificateID: subject.CertificateID, StudentID: subject.StudentID, Format: credentials.FormatJWTVC}
	f.issued[subject.CertificateID] = c
	return c, nil
}

type memIdempotency struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (m *memIdempotency) CheckAndInsert(ctx context.Context, key, module string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys[module+":"+key] {
		return shared.ErrIdempotencyConflict
	}
	m.keys[module+":"+key] = true
	return nil
}

type stubExtractor struct {
	result extraction.Result
	err    error
}

func (stubExtractor) Name() string { return "ocr" }

func (s stubExtractor) Extract(ctx context.Context, doc extraction.Document) (extraction.Result, error) {
	return s.result, s.err
}

type fixture struct {
	svc    *Service
	repo   *mockRepository
	store  *memStore
	issuer *fakeIssuer
}

func newFixture(t *testing.T, extractor extraction.Extractor, opts Options) fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	f := fixture{repo: newMockRepository(), store: newMemStore(), issuer: newFakeIssuer()}
	f.svc = NewService(Dependencies{
		Repo:        f.repo,
		Drafts:      NewRedisDraftStore(client),
		Store:       f.store,
		Extractors:  []extraction.Extractor{extractor},
		Issuer:      f.issuer,
		Locks:       shared.NewActionLock(client, time.Minute),
		Idempotency: &memIdempotency{keys: map[string]bool{}},
	}, opts)
	return f
}

func reviewer() *shared.Principal {
	return &shared.Principal{UserID: uuid.New(), Role: shared.RoleFaculty}
}

var samplePDF = []byte("%PDF-1.4\n1 0 obj << /Type /Catalog >> endobj\ntrailer << >>\n%%EOF\n")

// ============================================================================
// REVIEW
// ============================================================================

func TestApproveIssuesCredential(t *testing.T) {
	f := newFixture(t, nil, Options{})
	id := f.repo.seed(uuid.New(), StatusPending)

	res, err := f.svc.Approve(context.Background(), reviewer(), id, "looks right")
	require.NoError(t, err)
	assert.Equal(t, StatusVerified, res.Certificate.Status)
	require.NotNil(t, res.Credential)
	assert.Equal(t, id, res.Credential.CertificateID)
	assert.Empty(t, res.IssuanceError)
	require.Len(t, f.repo.approvals, 1)
	assert.Equal(t, shared.ApprovalApprove, f.repo.approvals[0].Action)

	_, err = f.svc.Approve(context.Background(), reviewer(), id, "")
	require.ErrorIs(t, err, ErrAlreadyReviewed)
}

func TestIssuanceFailureLeavesCertificateVerified(t *testing.T) {
	f := newFixture(t, nil, Options{})
	id := f.repo.seed(uuid.New(), StatusPending)
	f.issuer.setFail(true)

	res, err := f.svc.Approve(context.Background(), reviewer(), id, "")
	require.ErrorIs(t, err, ErrIssuanceFailed)
	assert.Equal(t, 502, httpx.StatusFor(err))
	assert.Equal(t, StatusVerified, res.Certificate.Status)
	assert.Contains(t, res.IssuanceError, "signing service unavailable")
	assert.Nil(t, res.Credential)
	assert.Equal(t, StatusVerified, f.repo.status(id))

	f.issuer.setFail(false)
	cred, err := f.svc.Issue(context.Background(), reviewer(), id)
	require.NoError(t, err)
	assert.Equal(t, id, cred.CertificateID)

	again, err := f.svc.Issue(context.Background(), reviewer(), id)
	require.NoError(t, err)
	assert.Equal(t, cred.ID, again.ID)
}

func TestIssueRequiresVerified(t *testing.T) {
	f := newFixture(t, nil, Options{})
	id := f.repo.seed(uuid.New(), StatusPending)
	_, err := f.svc.Issue(context.Background(), reviewer(), id)
	require.ErrorIs(t, err, ErrNotVerified)
}

func TestRejectIsSingleStep(t *testing.T) {
	f := newFixture(t, nil, Options{})
	id := f.repo.seed(uuid.New(), StatusPending)

	cert, err := f.svc.Reject(context.Background(), reviewer(), id, "blurry scan")
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, cert.Status)
	require.NotNil(t, cert.ReviewNotes)
	assert.Equal(t, "blurry scan", *cert.ReviewNotes)
	assert.Empty(t, f.issuer.issued)

	_, err = f.svc.Approve(context.Background(), reviewer(), id, "")
	require.ErrorIs(t, err, ErrAlreadyReviewed)
}

func TestConcurrentApprovalsOnlyOneWins(t *testing.T) {
	f := newFixture(t, nil, Options{})
	id := f.repo.seed(uuid.New(), StatusPending)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Approve(context.Background(), reviewer(), id, "")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.Equal(t, 409, httpx.StatusFor(err))
	}
	assert.Equal(t, 1, succeeded)
	assert.Len(t, f.repo.approvals, 1)
}

// ============================================================================
// BATCH
// ============================================================================

func TestBatchReportsPerIDOutcomes(t *testing.T) {
	f := newFixture(t, nil, Options{})
	student := uuid.New()
	ok := f.repo.seed(student, StatusPending)
	done := f.repo.seed(student, StatusRejected)
	missing := uuid.New()

	res, err := f.svc.Batch(context.Background(), reviewer(), BatchInput{IDs: []uuid.UUID{ok, done, missing}, Action: ActionApprove}, "")
	require.NoError(t, err)
	require.Len(t, res.Results, 3)

	assert.Equal(t, ok, res.Results[0].ID)
	assert.Equal(t, OutcomeApproved, res.Results[0].Outcome)
	assert.NotNil(t, res.Results[0].CredentialID)
	assert.Equal(t, OutcomeFailed, res.Results[1].Outcome)
	assert.Contains(t, res.Results[1].Error, "already reviewed")
	assert.Equal(t, OutcomeFailed, res.Results[2].Outcome)
	assert.Contains(t, res.Results[2].Error, "not found")
	assert.Equal(t, BatchSummary{Approved: 1, Failed: 2}, res.Summary)
}

func TestBatchIssuanceFailureIsDistinct(t *testing.T) {
	f := newFixture(t, nil, Options{})
	student := uuid.New()
	a := f.repo.seed(student, StatusPending)
	b := f.repo.seed(student, StatusPending)
	f.issuer.setFail(true)

	res, err := f.svc.Batch(context.Background(), reviewer(), BatchInput{IDs: []uuid.UUID{a, b}, Action: ActionApprove}, "")
	require.NoError(t, err)
	assert.Equal(t, BatchSummary{IssuanceFailed: 2}, res.Summary)
	for _, item := range res.Results {
		assert.True(t, item.Outcome.Succeeded())
		assert.NotEmpty(t, item.Error)
		assert.Equal(t, StatusVerified, f.repo.status(item.ID))
	}
}

func TestBatchReject(t *testing.T) {
	f := newFixture(t, nil, Options{})
	student := uuid.New()
	ids := []uuid.UUID{f.repo.seed(student, StatusPending), f.repo.seed(student, StatusPending)}

	res, err := f.svc.Batch(context.Background(), reviewer(), BatchInput{IDs: ids, Action: ActionReject, Notes: "duplicate upload"}, "")
	require.NoError(t, err)
	assert.Equal(t, BatchSummary{Rejected: 2}, res.Summary)

	pending, _, err := f.svc.ListPending(context.Background(), shared.PageRequest{})
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestBatchIdempotencyKeyReplayConflicts(t *testing.T) {
	f := newFixture(t, nil, Options{})
	id := f.repo.seed(uuid.New(), StatusPending)
	in := BatchInput{IDs: []uuid.UUID{id}, Action: ActionReject}

	_, err := f.svc.Batch(context.Background(), reviewer(), in, "key-1")
	require.NoError(t, err)
	_, err = f.svc.Batch(context.Background(), reviewer(), in, "key-1")
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)
	assert.Equal(t, 409, httpx.StatusFor(err))
}

func TestBatchValidation(t *testing.T) {
	f := newFixture(t, nil, Options{})
	ids := make([]uuid.UUID, 101)
	for i := range ids {
		ids[i] = uuid.New()
	}
	_, err := f.svc.Batch(context.Background(), reviewer(), BatchInput{IDs: ids, Action: ActionApprove}, "")
	var verr *httpx.ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = f.svc.Batch(context.Background(), reviewer(), BatchInput{Action: ActionApprove}, "")
	require.ErrorAs(t, err, &verr)
}

// ============================================================================
// INTAKE AND CREATE
// ============================================================================

func TestIntakeStoresFileAndDraft(t *testing.T) {
	ext := stubExtractor{result: extraction.Result{Title: "Data Science", Confidence: 0.42, VerificationMethod: extraction.MethodLogoMatch}}
	f := newFixture(t, ext, Options{MaxUploadBytes: 1 << 20})
	student := &shared.Principal{UserID: uuid.New(), Role: shared.RoleStudent}

	resp, err := f.svc.Intake(context.Background(), student, "ocr", bytes.NewReader(samplePDF))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, resp.ExtractionID)
	assert.Equal(t, "Data Science", resp.Result.Title)

	require.Len(t, f.store.objects, 1)
	for key := range f.store.objects {
		assert.True(t, strings.HasPrefix(key, fmt.Sprintf("certificates/%s/", student.UserID)))
		assert.True(t, strings.HasSuffix(key, ".pdf"))
		assert.Equal(t, "https://files.test/"+key, resp.FileURL)
	}
}

func TestIntakeRejectsLargeAndUnsupportedFiles(t *testing.T) {
	f := newFixture(t, stubExtractor{}, Options{MaxUploadBytes: 32})
	student := &shared.Principal{UserID: uuid.New()}

	_, err := f.svc.Intake(context.Background(), student, "ocr", bytes.NewReader(samplePDF))
	require.ErrorIs(t, err, ErrFileTooLarge)
	assert.Equal(t, 413, httpx.StatusFor(err))

	_, err = f.svc.Intake(context.Background(), student, "ocr", strings.NewReader("just text"))
	require.ErrorIs(t, err, ErrUnsupportedType)

	_, err = f.svc.Intake(context.Background(), student, "ocr-gemini", strings.NewReader("just text"))
	require.ErrorIs(t, err, ErrExtractorMissing)
	assert.Empty(t, f.store.objects)
}

func TestIntakeExtractorFailureRemovesObject(t *testing.T) {
	f := newFixture(t, stubExtractor{err: extraction.ErrUpstream}, Options{})
	_, err := f.svc.Intake(context.Background(), &shared.Principal{UserID: uuid.New()}, "ocr", bytes.NewReader(samplePDF))
	require.ErrorIs(t, err, extraction.ErrUpstream)
	assert.Empty(t, f.store.objects)
}

func intakeAndCreate(t *testing.T, f fixture, student *shared.Principal) ReviewResult {
	t.Helper()
	resp, err := f.svc.Intake(context.Background(), student, "ocr", bytes.NewReader(samplePDF))
	require.NoError(t, err)
	res, err := f.svc.Create(context.Background(), student, CreateInput{
		ExtractionID: resp.ExtractionID,
		Title:        "  Edited Title ",
		Institution:  "State University",
		DateIssued:   "2024-02-29",
	})
	require.NoError(t, err)
	return res
}

func TestCreateKeepsExtractorConfidence(t *testing.T) {
	ext := stubExtractor{result: extraction.Result{Title: "OCR Title", Confidence: 0.42, VerificationMethod: extraction.MethodLogoMatch}}
	f := newFixture(t, ext, Options{AutoApproveThreshold: 0.9})
	student := &shared.Principal{UserID: uuid.New()}

	res := intakeAndCreate(t, f, student)
	c := res.Certificate
	assert.Equal(t, "Edited Title", c.Title)
	assert.Equal(t, StatusPending, c.Status)
	assert.False(t, c.AutoApproved)
	require.NotNil(t, c.ConfidenceScore)
	assert.Equal(t, 0.42, *c.ConfidenceScore)
	assert.Equal(t, extraction.MethodLogoMatch, c.VerificationMethod)
	assert.Nil(t, res.Credential)
	require.Len(t, f.repo.approvals, 1)
	assert.Equal(t, shared.ApprovalSubmit, f.repo.approvals[0].Action)
}

func TestCreateAutoApprovesAboveThreshold(t *testing.T) {
	ext := stubExtractor{result: extraction.Result{Confidence: 0.95, VerificationMethod: extraction.MethodQRVerified}}
	f := newFixture(t, ext, Options{AutoApproveThreshold: 0.9})

	res := intakeAndCreate(t, f, &shared.Principal{UserID: uuid.New()})
	assert.Equal(t, StatusVerified, res.Certificate.Status)
	assert.True(t, res.Certificate.AutoApproved)
	require.NotNil(t, res.Credential)
	assert.Equal(t, res.Certificate.ID, res.Credential.CertificateID)
}

func TestCreateNeverAutoApprovesManualReview(t *testing.T) {
	ext := stubExtractor{result: extraction.Result{Confidence: 1, VerificationMethod: extraction.MethodManualReview}}
	f := newFixture(t, ext, Options{AutoApproveThreshold: 0.5})
	res := intakeAndCreate(t, f, &shared.Principal{UserID: uuid.New()})
	assert.Equal(t, StatusPending, res.Certificate.Status)
}

func TestCreateAutoApproveSurvivesIssuanceFailure(t *testing.T) {
	ext := stubExtractor{result: extraction.Result{Confidence: 0.95, VerificationMethod: extraction.MethodQRVerified}}
	f := newFixture(t, ext, Options{AutoApproveThreshold: 0.9})
	f.issuer.setFail(true)
	res := intakeAndCreate(t, f, &shared.Principal{UserID: uuid.New()})
	assert.Equal(t, StatusVerified, res.Certificate.Status)
	assert.NotEmpty(t, res.IssuanceError)
}

func TestCreateRejectsForeignOrSpentDraft(t *testing.T) {
	f := newFixture(t, stubExtractor{}, Options{})
	owner := &shared.Principal{UserID: uuid.New()}
	resp, err := f.svc.Intake(context.Background(), owner, "ocr", bytes.NewReader(samplePDF))
	require.NoError(t, err)
	in := CreateInput{ExtractionID: resp.ExtractionID, Title: "Title", Institution: "Inst"}

	_, err = f.svc.Create(context.Background(), &shared.Principal{UserID: uuid.New()}, in)
	require.ErrorIs(t, err, ErrDraftNotFound)

	_, err = f.svc.Create(context.Background(), owner, in)
	require.NoError(t, err)
	_, err = f.svc.Create(context.Background(), owner, in)
	require.ErrorIs(t, err, ErrDraftNotFound)
}

func TestCreateFromSameDraftConcurrently(t *testing.T) {
	f := newFixture(t, stubExtractor{}, Options{})
	owner := &shared.Principal{UserID: uuid.New(), Role: shared.RoleStudent}
	resp, err := f.svc.Intake(context.Background(), owner, "ocr", bytes.NewReader(samplePDF))
	require.NoError(t, err)
	in := CreateInput{ExtractionID: resp.ExtractionID, Title: "Title", Institution: "Inst"}

	const workers = 8
	var (
		wg      sync.WaitGroup
		start   = make(chan struct{})
		errs    = make([]error, workers)
		created = make([]uuid.UUID, workers)
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			res, err := f.svc.Create(context.Background(), owner, in)
			errs[i] = err
			created[i] = res.Certificate.ID
		}(i)
	}
	close(start)
	wg.Wait()

	var winner uuid.UUID
	wins := 0
	for i, err := range errs {
		if err == nil {
			wins++
			winner = created[i]
			continue
		}
		require.ErrorIs(t, err, ErrDraftNotFound)
	}
	require.Equal(t, 1, wins)
	assert.Len(t, f.repo.certs, 1)

	require.NoError(t, f.svc.Delete(context.Background(), owner, winner))
	assert.Empty(t, f.store.objects)
}

func TestCreateRestoresDraftWhenInsertFails(t *testing.T) {
	f := newFixture(t, stubExtractor{}, Options{})
	owner := &shared.Principal{UserID: uuid.New()}
	resp, err := f.svc.Intake(context.Background(), owner, "ocr", bytes.NewReader(samplePDF))
	require.NoError(t, err)
	in := CreateInput{ExtractionID: resp.ExtractionID, Title: "Title", Institution: "Inst"}

	f.repo.insertErr = errors.New("connection reset")
	_, err = f.svc.Create(context.Background(), owner, in)
	require.Error(t, err)

	f.repo.insertErr = nil
	res, err := f.svc.Create(context.Background(), owner, in)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, res.Certificate.Status)
}

func TestRedisDraftStoreTakeIsOwnerScopedAndSingleUse(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := NewRedisDraftStore(client)
	d := Draft{ID: uuid.New(), StudentID: uuid.New(), FileKey: "certificates/a/b.pdf", CreatedAt: time.Now().UTC()}
	require.NoError(t, store.Save(context.Background(), d, DraftTTL))

	_, err := store.Take(context.Background(), uuid.New(), d.ID)
	require.ErrorIs(t, err, ErrDraftNotFound)

	got, err := store.Take(context.Background(), d.StudentID, d.ID)
	require.NoError(t, err)
	assert.Equal(t, d.FileKey, got.FileKey)

	_, err = store.Take(context.Background(), d.StudentID, d.ID)
	require.ErrorIs(t, err, ErrDraftNotFound)
}

// ============================================================================
// ACCESS
// ============================================================================

func TestGetAndDeleteAccessRules(t *testing.T) {
	f := newFixture(t, nil, Options{})
	owner := &shared.Principal{UserID: uuid.New(), Role: shared.RoleStudent}
	other := &shared.Principal{UserID: uuid.New(), Role: shared.RoleStudent}
	admin := &shared.Principal{UserID: uuid.New(), Role: shared.RoleAdmin}
	pending := f.repo.seed(owner.UserID, StatusPending)
	verified := f.repo.seed(owner.UserID, StatusVerified)

	got, err := f.svc.Get(context.Background(), owner, pending)
	require.NoError(t, err)
	assert.NotEmpty(t, got.FileURL)
	_, err = f.svc.Get(context.Background(), other, pending)
	require.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.Get(context.Background(), reviewer(), pending)
	require.NoError(t, err)

	require.ErrorIs(t, f.svc.Delete(context.Background(), other, pending), ErrForbidden)
	require.ErrorIs(t, f.svc.Delete(context.Background(), owner, verified), ErrNotDeletable)
	require.NoError(t, f.svc.Delete(context.Background(), owner, pending))
	require.NoError(t, f.svc.Delete(context.Background(), admin, verified))

	mine, page, err := f.svc.ListMine(context.Background(), owner, shared.PageRequest{})
	require.NoError(t, err)
	assert.Empty(t, mine)
	assert.Equal(t, 0, page.Total)
}
