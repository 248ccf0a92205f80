package certificates

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/campussync/campussync/internal/credentials"
	"github.com/campussync/campussync/internal/extraction"
	"github.com/campussync/campussync/internal/platform/httpx"
	"github.com/campussync/campussync/internal/platform/storage"
	"github.com/campussync/campussync/internal/shared"
)

const batchIdempotencyModule = "certificate.batch"

var allowedMIME = map[string]bool{
	"application/pdf": true,
	"image/png":       true,
	"image/jpeg":      true,
	"image/webp":      true,
}

// RepositoryPort defines certificate persistence.
type RepositoryPort interface {
	Get(ctx context.Context, id uuid.UUID) (Certificate, error)
	List(ctx context.Context, filter ListFilter) ([]Certificate, int, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// Issuer issues verifiable credentials. Issue must be idempotent per certificate.
type Issuer interface {
	Issue(ctx context.Context, subject credentials.Subject) (credentials.Credential, error)
}

// IdempotencyGuard records processed request keys.
type IdempotencyGuard interface {
	CheckAndInsert(ctx context.Context, key, module string) error
}

// Metrics receives review and issuance outcomes.
type Metrics interface {
	ObserveReview(outcome string)
	ObserveIssuance(success bool)
	ObserveExtraction(extractor string, success bool)
}

// Options tunes intake and auto-approval.
type Options struct {
	MaxUploadBytes       int64
	AutoApproveThreshold float64
	FileURLTTL           time.Duration
}

// Dependencies groups the collaborators of Service. Locks, Idempotency,
// Cache, Notifier and Metrics are optional.
type Dependencies struct {
	Repo        RepositoryPort
	Drafts      DraftStore
	Store       storage.ObjectStore
	Extractors  []extraction.Extractor
	Issuer      Issuer
	Locks       *shared.ActionLock
	Idempotency IdempotencyGuard
	Cache       shared.CacheInvalidator
	Notifier    shared.Notifier
	Metrics     Metrics
	Logger      *slog.Logger
}

// Service implements certificate intake and review.
type Service struct {
	repo       RepositoryPort
	drafts     DraftStore
	store      storage.ObjectStore
	extractors map[string]extraction.Extractor
	issuer     Issuer
	locks      *shared.ActionLock
	idem       IdempotencyGuard
	cache      shared.CacheInvalidator
	notifier   shared.Notifier
	metrics    Metrics
	logger     *slog.Logger
	opts       Options
	now        func() time.Time
}

// NewService builds a Service.
func NewService(deps Dependencies, opts Options) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = noopMetrics{}
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	if opts.FileURLTTL <= 0 {
		opts.FileURLTTL = 15 * time.Minute
	}
	extractors := make(map[string]extraction.Extractor, len(deps.Extractors))
	for _, e := range deps.Extractors {
		if e != nil {
			extractors[e.Name()] = e
		}
	}
	return &Service{
		repo:       deps.Repo,
		drafts:     deps.Drafts,
		store:      deps.Store,
		extractors: extractors,
		issuer:     deps.Issuer,
		locks:      deps.Locks,
		idem:       deps.Idempotency,
		cache:      deps.Cache,
		notifier:   deps.Notifier,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		opts:       opts,
		now:        time.Now,
	}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// MaxUploadBytes reports the configured upload cap.
func (s *Service) MaxUploadBytes() int64 { return s.opts.MaxUploadBytes }

// Intake stores an uploaded file, runs the named extractor and keeps the
// result as a draft for the student to confirm.
func (s *Service) Intake(ctx context.Context, actor *shared.Principal, extractorName string, file io.Reader) (IntakeResponse, error) {
	if actor == nil {
		return IntakeResponse{}, shared.ErrUnauthenticated
	}
	extractor, ok := s.extractors[extractorName]
	if !ok {
		return IntakeResponse{}, ErrExtractorMissing
	}
	data, err := io.ReadAll(io.LimitReader(file, s.opts.MaxUploadBytes+1))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return IntakeResponse{}, ErrFileTooLarge
		}
		return IntakeResponse{}, err
	}
	if int64(len(data)) > s.opts.MaxUploadBytes {
		return IntakeResponse{}, ErrFileTooLarge
	}
	mtype := mimetype.Detect(data)
	mime := strings.SplitN(mtype.String(), ";", 2)[0]
	if !allowedMIME[mime] {
		return IntakeResponse{}, ErrUnsupportedType
	}

	key := fmt.Sprintf("certificates/%s/%s%s", actor.UserID, uuid.New(), mtype.Extension())
	if err := s.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), mime); err != nil {
		return IntakeResponse{}, err
	}

	result, err := extractor.Extract(ctx, extraction.Document{Data: data, MIME: mime})
	s.metrics.ObserveExtraction(extractor.Name(), err == nil)
	if err != nil {
		s.removeObject(ctx, key)
		return IntakeResponse{}, err
	}

	draft := Draft{
		ID:        uuid.New(),
		StudentID: actor.UserID,
		FileKey:   key,
		MIMEType:  mime,
		Extractor: extractor.Name(),
		Result:    result,
		CreatedAt: s.now().UTC(),
	}
	if err := s.drafts.Save(ctx, draft, DraftTTL); err != nil {
		s.removeObject(ctx, key)
		return IntakeResponse{}, err
	}
	url, err := s.store.PresignGet(ctx, key, s.opts.FileURLTTL)
	if err != nil {
		s.logger.Warn("presign certificate file", slog.String("key", key), slog.Any("error", err))
	}
	return IntakeResponse{ExtractionID: draft.ID, FileURL: url, Result: result}, nil
}

// Create persists a certificate from a draft and the student's edits.
// Confidence and method come from the draft unchanged. When the draft
// clears the auto-approve threshold the certificate is created verified
// and a credential is issued.
func (s *Service) Create(ctx context.Context, actor *shared.Principal, in CreateInput) (ReviewResult, error) {
	if actor == nil {
		return ReviewResult{}, shared.ErrUnauthenticated
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Institution = strings.TrimSpace(in.Institution)
	in.Description = strings.TrimSpace(in.Description)
	if err := httpx.Validate(in); err != nil {
		return ReviewResult{}, err
	}
	draft, err := s.drafts.Take(ctx, actor.UserID, in.ExtractionID)
	if err != nil {
		return ReviewResult{}, err
	}

	confidence := draft.Result.Confidence
	method := draft.Result.VerificationMethod
	if !method.Valid() {
		method = extraction.MethodManualReview
	}
	auto := s.opts.AutoApproveThreshold > 0 && confidence >= s.opts.AutoApproveThreshold && method != extraction.MethodManualReview
	status := StatusPending
	if auto {
		status = StatusVerified
	}
	at := s.now().UTC()

	var cert Certificate
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		cert, err = tx.Insert(ctx, Certificate{
			ID:                 uuid.New(),
			Title:              in.Title,
			Institution:        in.Institution,
			DateIssued:         in.DateIssued,
			Description:        in.Description,
			FileKey:            draft.FileKey,
			MIMEType:           draft.MIMEType,
			StudentID:          actor.UserID,
			Status:             status,
			ConfidenceScore:    &confidence,
			AutoApproved:       auto,
			VerificationMethod: method,
			CreatedAt:          at,
		})
		if err != nil {
			return err
		}
		if err := tx.InsertApproval(ctx, shared.ApprovalLog{
			Module:  shared.ModuleCertificate,
			RefID:   cert.ID,
			ActorID: actor.UserID,
			Action:  shared.ApprovalSubmit,
			At:      at,
		}); err != nil {
			return err
		}
		return tx.InsertAudit(ctx, shared.AuditLog{
			ActorID:  actor.UserID,
			Action:   "certificate.create",
			Entity:   "certificate",
			EntityID: cert.ID.String(),
			Meta: map[string]any{
				"confidence":    confidence,
				"method":        string(method),
				"auto_approved": auto,
			},
			At: at,
		})
	})
	if err != nil {
		s.restoreDraft(ctx, draft)
		return ReviewResult{}, err
	}
	s.bump(ctx)

	result := ReviewResult{Certificate: s.withURL(ctx, cert)}
	if auto {
		s.metrics.ObserveReview("auto_approved")
		cred, err := s.issue(ctx, cert)
		if err != nil {
			result.IssuanceError = err.Error()
			return result, nil
		}
		result.Credential = &cred
		result.Certificate.CredentialID = &cred.ID
	}
	return result, nil
}

// restoreDraft puts a taken draft back for the rest of its lifetime so the
// student can retry after a failed create.
func (s *Service) restoreDraft(ctx context.Context, draft Draft) {
	ttl := DraftTTL - s.now().Sub(draft.CreatedAt)
	if ttl <= 0 {
		return
	}
	if err := s.drafts.Save(ctx, draft, ttl); err != nil {
		s.logger.Warn("restore extraction draft", slog.String("draft_id", draft.ID.String()), slog.Any("error", err))
	}
}

// Get returns a certificate visible to the principal.
func (s *Service) Get(ctx context.Context, actor *shared.Principal, id uuid.UUID) (Certificate, error) {
	if actor == nil {
		return Certificate{}, shared.ErrUnauthenticated
	}
	cert, err := s.repo.Get(ctx, id)
	if err != nil {
		return Certificate{}, err
	}
	if cert.StudentID != actor.UserID && !actor.HasRole(shared.ReviewerRoles()...) {
		return Certificate{}, ErrForbidden
	}
	return s.withURL(ctx, cert), nil
}

// ListMine returns the principal's certificates.
func (s *Service) ListMine(ctx context.Context, actor *shared.Principal, page shared.PageRequest) ([]Certificate, shared.Pagination, error) {
	if actor == nil {
		return nil, shared.Pagination{}, shared.ErrUnauthenticated
	}
	id := actor.UserID
	return s.list(ctx, ListFilter{StudentID: &id, Page: page})
}

// ListPending returns certificates awaiting review, newest first.
func (s *Service) ListPending(ctx context.Context, page shared.PageRequest) ([]Certificate, shared.Pagination, error) {
	return s.list(ctx, ListFilter{Status: StatusPending, Page: page})
}

func (s *Service) list(ctx context.Context, filter ListFilter) ([]Certificate, shared.Pagination, error) {
	filter.Page = shared.NormalisePage(filter.Page.Page, filter.Page.PerPage)
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	for i := range items {
		items[i] = s.withURL(ctx, items[i])
	}
	return items, shared.NewPagination(filter.Page.Page, filter.Page.PerPage, total), nil
}

// Delete removes a certificate. Students may withdraw their own pending
// certificates; admins may delete any.
func (s *Service) Delete(ctx context.Context, actor *shared.Principal, id uuid.UUID) error {
	if actor == nil {
		return shared.ErrUnauthenticated
	}
	cert, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	isAdmin := actor.HasRole(shared.RoleAdmin)
	switch {
	case isAdmin:
	case cert.StudentID != actor.UserID:
		return ErrForbidden
	case cert.Status != StatusPending:
		return ErrNotDeletable
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.Delete(ctx, id); err != nil {
			return err
		}
		return tx.InsertAudit(ctx, shared.AuditLog{
			ActorID:  actor.UserID,
			Action:   "certificate.delete",
			Entity:   "certificate",
			EntityID: id.String(),
			Meta:     map[string]any{"status": string(cert.Status), "student_id": cert.StudentID.String()},
			At:       s.now().UTC(),
		})
	})
	if err != nil {
		return err
	}
	s.removeObject(ctx, cert.FileKey)
	s.bump(ctx)
	return nil
}

// Review dispatches a single decision.
func (s *Service) Review(ctx context.Context, actor *shared.Principal, in ReviewInput) (ReviewResult, error) {
	if err := httpx.Validate(in); err != nil {
		return ReviewResult{}, err
	}
	if in.Action == ActionReject {
		cert, err := s.Reject(ctx, actor, in.ID, in.Notes)
		return ReviewResult{Certificate: cert}, err
	}
	return s.Approve(ctx, actor, in.ID, in.Notes)
}

// Approve marks a pending certificate verified and then issues its
// credential. Issuance only runs once the verification has committed; if
// it fails the certificate stays verified and ErrIssuanceFailed is returned
// with the result.
func (s *Service) Approve(ctx context.Context, actor *shared.Principal, id uuid.UUID, notes string) (ReviewResult, error) {
	cert, err := s.decide(ctx, actor, id, StatusVerified, notes)
	if err != nil {
		return ReviewResult{}, err
	}
	result := ReviewResult{Certificate: cert}
	cred, err := s.issue(ctx, cert)
	if err != nil {
		result.IssuanceError = err.Error()
		s.metrics.ObserveReview(string(OutcomeIssuanceFailed))
		return result, fmt.Errorf("%w: %v", ErrIssuanceFailed, err)
	}
	result.Credential = &cred
	result.Certificate.CredentialID = &cred.ID
	s.metrics.ObserveReview(string(OutcomeApproved))
	return result, nil
}

// Reject marks a pending certificate rejected.
func (s *Service) Reject(ctx context.Context, actor *shared.Principal, id uuid.UUID, notes string) (Certificate, error) {
	cert, err := s.decide(ctx, actor, id, StatusRejected, notes)
	if err != nil {
		return Certificate{}, err
	}
	s.metrics.ObserveReview(string(OutcomeRejected))
	return cert, nil
}

// Issue retries credential issuance for a verified certificate.
func (s *Service) Issue(ctx context.Context, actor *shared.Principal, id uuid.UUID) (credentials.Credential, error) {
	if actor == nil {
		return credentials.Credential{}, shared.ErrUnauthenticated
	}
	cert, err := s.repo.Get(ctx, id)
	if err != nil {
		return credentials.Credential{}, err
	}
	if cert.Status != StatusVerified {
		return credentials.Credential{}, ErrNotVerified
	}
	cred, err := s.issue(ctx, cert)
	if err != nil {
		return credentials.Credential{}, fmt.Errorf("%w: %v", ErrIssuanceFailed, err)
	}
	return cred, nil
}

// Batch applies one decision to each id in order and reports every outcome.
// A repeated Idempotency-Key is refused before any id is touched.
func (s *Service) Batch(ctx context.Context, actor *shared.Principal, in BatchInput, idempotencyKey string) (BatchResult, error) {
	if actor == nil {
		return BatchResult{}, shared.ErrUnauthenticated
	}
	if err := httpx.Validate(in); err != nil {
		return BatchResult{}, err
	}
	if idempotencyKey != "" && s.idem != nil {
		if err := s.idem.CheckAndInsert(ctx, idempotencyKey, batchIdempotencyModule); err != nil {
			return BatchResult{}, err
		}
	}
	out := BatchResult{Results: make([]BatchItem, 0, len(in.IDs))}
	for _, id := range in.IDs {
		item := BatchItem{ID: id}
		switch in.Action {
		case ActionApprove:
			res, err := s.Approve(ctx, actor, id, in.Notes)
			switch {
			case err == nil:
				item.Outcome = OutcomeApproved
				item.CredentialID = res.Certificate.CredentialID
			case errors.Is(err, ErrIssuanceFailed):
				item.Outcome = OutcomeIssuanceFailed
				item.Error = res.IssuanceError
			default:
				item.Outcome = OutcomeFailed
				item.Error = outcomeMessage(err)
			}
		case ActionReject:
			if _, err := s.Reject(ctx, actor, id, in.Notes); err != nil {
				item.Outcome = OutcomeFailed
				item.Error = outcomeMessage(err)
			} else {
				item.Outcome = OutcomeRejected
			}
		}
		out.Summary.add(item.Outcome)
		out.Results = append(out.Results, item)
	}
	s.logger.Info("certificate batch processed",
		slog.String("reviewer_id", actor.UserID.String()),
		slog.String("action", string(in.Action)),
		slog.Int("approved", out.Summary.Approved),
		slog.Int("rejected", out.Summary.Rejected),
		slog.Int("issuance_failed", out.Summary.IssuanceFailed),
		slog.Int("failed", out.Summary.Failed))
	return out, nil
}

func (b *BatchSummary) add(o Outcome) {
	switch o {
	case OutcomeApproved:
		b.Approved++
	case OutcomeRejected:
		b.Rejected++
	case OutcomeIssuanceFailed:
		b.IssuanceFailed++
	default:
		b.Failed++
	}
}

func (s *Service) decide(ctx context.Context, actor *shared.Principal, id uuid.UUID, status Status, notes string) (Certificate, error) {
	if actor == nil {
		return Certificate{}, shared.ErrUnauthenticated
	}
	release, err := s.locks.Acquire(ctx, shared.ModuleCertificate, id)
	if err != nil {
		return Certificate{}, err
	}
	defer release()

	notes = strings.TrimSpace(notes)
	action := shared.ApprovalApprove
	if status == StatusRejected {
		action = shared.ApprovalReject
	}
	at := s.now().UTC()
	var cert Certificate
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		cert, err = tx.MarkReviewed(ctx, id, status, actor.UserID, notes, at)
		if err != nil {
			return err
		}
		if err := tx.InsertApproval(ctx, shared.ApprovalLog{
			Module:  shared.ModuleCertificate,
			RefID:   id,
			ActorID: actor.UserID,
			Action:  action,
			Note:    notes,
			At:      at,
		}); err != nil {
			return err
		}
		return tx.InsertAudit(ctx, shared.AuditLog{
			ActorID:  actor.UserID,
			Action:   "certificate." + string(status),
			Entity:   "certificate",
			EntityID: id.String(),
			Meta:     map[string]any{"student_id": cert.StudentID.String(), "notes": notes},
			At:       at,
		})
	})
	if err != nil {
		return Certificate{}, err
	}
	s.logger.Info("certificate reviewed",
		slog.String("certificate_id", id.String()),
		slog.String("reviewer_id", actor.UserID.String()),
		slog.String("status", string(status)))
	s.bump(ctx)
	s.notify(ctx, cert)
	return s.withURL(ctx, cert), nil
}

func (s *Service) issue(ctx context.Context, cert Certificate) (credentials.Credential, error) {
	cred, err := s.issuer.Issue(ctx, cert.Subject())
	s.metrics.ObserveIssuance(err == nil)
	if err != nil {
		s.logger.Error("issue credential",
			slog.String("certificate_id", cert.ID.String()),
			slog.Any("error", err))
		return credentials.Credential{}, err
	}
	s.bump(ctx)
	return cred, nil
}

func (s *Service) withURL(ctx context.Context, c Certificate) Certificate {
	if c.FileKey == "" || s.store == nil {
		return c
	}
	url, err := s.store.PresignGet(ctx, c.FileKey, s.opts.FileURLTTL)
	if err != nil {
		s.logger.Warn("presign certificate file", slog.String("certificate_id", c.ID.String()), slog.Any("error", err))
		return c
	}
	c.FileURL = url
	return c
}

func (s *Service) removeObject(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.store.Delete(context.WithoutCancel(ctx), key); err != nil {
		s.logger.Warn("delete certificate file", slog.String("key", key), slog.Any("error", err))
	}
}

func (s *Service) notify(ctx context.Context, c Certificate) {
	if s.notifier == nil || c.StudentEmail == "" {
		return
	}
	notice := shared.ReviewNotice{
		Module:  shared.ModuleCertificate,
		To:      c.StudentEmail,
		Subject: fmt.Sprintf("Your certificate %q was %s", c.Title, c.Status),
		Body:    fmt.Sprintf("Hello %s,\n\nYour certificate %q from %s has been %s.", c.StudentName, c.Title, c.Institution, c.Status),
	}
	if c.ReviewNotes != nil && *c.ReviewNotes != "" {
		notice.Body += "\n\nReviewer notes: " + *c.ReviewNotes
	}
	if err := s.notifier.NotifyReview(ctx, notice); err != nil {
		s.logger.Warn("enqueue review notice", slog.String("certificate_id", c.ID.String()), slog.Any("error", err))
	}
}

func (s *Service) bump(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("bump analytics cache", slog.Any("error", err))
	}
}

func outcomeMessage(err error) string {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		return "internal error"
	}
	return err.Error()
}

type noopMetrics struct{}

func (noopMetrics) ObserveReview(string)           {}
func (noopMetrics) ObserveIssuance(bool)           {}
func (noopMetrics) ObserveExtraction(string, bool) {}
