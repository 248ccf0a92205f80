package credentials

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRepo struct {
	byID map[uuid.UUID]Credential
}

func newMemRepo() *memRepo { return &memRepo{byID: map[uuid.UUID]Credential{}} }

func (m *memRepo) Insert(ctx context.Context, c Credential) (Credential, bool, error) {
	for _, existing := range m.byID {
		if existing.CertificateID == c.CertificateID {
			return existing, false, nil
		}
	}
	m.byID[c.ID] = c
	return c, true, nil
}

func (m *memRepo) Get(ctx context.Context, id uuid.UUID) (Credential, error) {
	c, ok := m.byID[id]
	if !ok {
		return Credential{}, ErrNotFound
	}
	return c, nil
}

func (m *memRepo) GetByCertificate(ctx context.Context, certificateID uuid.UUID) (Credential, error) {
	for _, c := range m.byID {
		if c.CertificateID == certificateID {
			return c, nil
		}
	}
	return Credential{}, ErrNotFound
}

func testSigner(t *testing.T) *Signer {
	t.Helper()
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i)
	}
	s, err := NewSigner(seed, "did:web:campus.test")
	require.NoError(t, err)
	return s
}

func testSubject() Subject {
	return Subject{
		StudentID:     uuid.New(),
		CertificateID: uuid.New(),
		Title:         "Cloud Fundamentals",
		Institution:   "State University",
		DateIssued:    "2024-05-01",
	}
}

func TestIssueIsIdempotentPerCertificate(t *testing.T) {
	svc := NewService(newMemRepo(), testSigner(t), nil)
	subject := testSubject()

	first, err := svc.Issue(context.Background(), subject)
	require.NoError(t, err)
	assert.Equal(t, FormatJWTVC, first.Format)
	assert.NotEmpty(t, first.Token)

	second, err := svc.Issue(context.Background(), subject)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestIssueRejectsIncompleteSubject(t *testing.T) {
	svc := NewService(newMemRepo(), testSigner(t), nil)
	subject := testSubject()
	subject.Institution = "  "
	_, err := svc.Issue(context.Background(), subject)
	require.ErrorIs(t, err, ErrInvalidSubject)
}

func TestVerifyDetectsTamperingAndRevocation(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, testSigner(t), nil)
	c, err := svc.Issue(context.Background(), testSubject())
	require.NoError(t, err)

	v, err := svc.Verify(context.Background(), c.ID)
	require.NoError(t, err)
	assert.True(t, v.Valid)
	assert.Equal(t, "did:web:campus.test", v.Issuer)
	require.NotNil(t, v.Subject)
	assert.Equal(t, "Cloud Fundamentals", v.Subject.Title)

	forger, err := NewSigner(make([]byte, 32), "did:web:campus.test")
	require.NoError(t, err)
	forged, err := forger.Sign(c.ID.String(), *v.Subject, time.Now())
	require.NoError(t, err)
	tampered := c
	tampered.Token = forged
	repo.byID[c.ID] = tampered
	v, err = svc.Verify(context.Background(), c.ID)
	require.NoError(t, err)
	assert.False(t, v.Valid)

	revokedAt := time.Now()
	c.RevokedAt = &revokedAt
	repo.byID[c.ID] = c
	v, err = svc.Verify(context.Background(), c.ID)
	require.NoError(t, err)
	assert.False(t, v.Valid)
	assert.True(t, v.Revoked)
}

func TestOtherKeyCannotVerify(t *testing.T) {
	signer := testSigner(t)
	token, err := signer.Sign(uuid.NewString(), testSubject(), time.Now())
	require.NoError(t, err)

	other, err := NewSigner(make([]byte, 32), "did:web:campus.test")
	require.NoError(t, err)
	_, err = other.Verify(token)
	require.Error(t, err)
}

func TestVerifyEndpoint(t *testing.T) {
	svc := NewService(newMemRepo(), testSigner(t), nil)
	c, err := svc.Issue(context.Background(), testSubject())
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Route("/credentials", NewHandler(nil, svc).MountRoutes)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/credentials/"+c.ID.String()+"/verify", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var v Verification
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.True(t, v.Valid)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/credentials/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
