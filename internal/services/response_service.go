package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/soaringjerry/FormPulse/internal/models"
)

const (
	EventResponseSubmitted = "response.submitted"
	EventResponseDeleted   = "response.deleted"
)

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 200
)

// LiveEvent is pushed to subscribers of a form's live feed.
type LiveEvent struct {
	Type string        `json:"type"`
	Data LiveEventData `json:"data"`
}

type LiveEventData struct {
	FormID         string `json:"formId"`
	ResponseID     string `json:"responseId"`
	TotalResponses int    `json:"totalResponses"`
}

// Notifier fans live events out to subscribers. Publish must not block.
type Notifier interface {
	Publish(ev LiveEvent)
}

type SubmitAnswer struct {
	QuestionID string             `json:"questionId"`
	Value      models.AnswerValue `json:"value"`
	FileURL    string             `json:"fileUrl,omitempty"`
}

// SubmitRequest carries a public submission. IPAddress and UserAgent are
// filled in by the transport.
type SubmitRequest struct {
	FormID    string         `json:"formId"`
	Email     string         `json:"email,omitempty"`
	Password  string         `json:"password,omitempty"`
	StartedAt *time.Time     `json:"startedAt,omitempty"`
	Answers   []SubmitAnswer `json:"answers"`
	IPAddress string         `json:"-"`
	UserAgent string         `json:"-"`
}

// PublicForm is what respondents see of a published form.
type PublicForm struct {
	*models.Form
	PasswordProtected bool `json:"passwordProtected"`
}

type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

type ResponsePage struct {
	Responses  []*models.Response `json:"responses"`
	Pagination Pagination         `json:"pagination"`
}

type ResponseService struct {
	store       ResponseStore
	cache       ReportCache
	notifier    Notifier
	log         *zap.Logger
	now         Clock
	idGenerator func() string
}

// NewResponseService binds submission and response management to a store.
// cache, notifier and log are optional.
func NewResponseService(store ResponseStore, cache ReportCache, notifier Notifier, log *zap.Logger) *ResponseService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ResponseService{
		store:       store,
		cache:       cache,
		notifier:    notifier,
		log:         log,
		idGenerator: uuid.NewString,
	}
}

// PublicForm returns a published, unexpired form with its questions.
func (s *ResponseService) PublicForm(ctx context.Context, shareableURL string) (*PublicForm, error) {
	if strings.TrimSpace(shareableURL) == "" {
		return nil, formNotFound()
	}
	form, err := s.store.GetFormByShareableURL(ctx, shareableURL)
	if err != nil {
		return nil, err
	}
	if err := s.checkAccepting(form); err != nil {
		return nil, err
	}
	questions, err := s.store.ListQuestions(ctx, form.ID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	f := *form
	f.Questions = orderedQuestions(questions)
	return &PublicForm{Form: &f, PasswordProtected: form.PasswordProtected()}, nil
}

func (s *ResponseService) checkAccepting(form *models.Form) error {
	if form == nil || form.Status != models.FormPublished {
		return withKey(NewNotFoundError("Form not found or not published"), "form.not_published")
	}
	if form.Expired(s.now.now()) {
		return withKey(NewGoneError("Form has expired"), "form.expired")
	}
	return nil
}

// Submit validates and stores a completed response.
func (s *ResponseService) Submit(ctx context.Context, req SubmitRequest) (*models.Response, error) {
	if s.store == nil {
		return nil, errors.New("response service store is nil")
	}
	if req.FormID == "" {
		return nil, NewInvalidError("formId required")
	}
	email := strings.TrimSpace(req.Email)
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, withKey(NewInvalidError("Invalid email address"), "email.invalid")
		}
	}

	form, err := s.store.GetForm(ctx, req.FormID)
	if err != nil {
		return nil, err
	}
	if err := s.checkAccepting(form); err != nil {
		return nil, err
	}
	if form.ResponseLimit > 0 {
		n, err := s.store.CountResponses(ctx, form.ID, true)
		if err != nil {
			return nil, fmt.Errorf("count responses: %w", err)
		}
		if n >= form.ResponseLimit {
			return nil, withKey(NewTooManyRequestsError("Response limit reached"), "response.limit_reached")
		}
	}
	if !form.AllowMultiple && req.IPAddress != "" {
		dup, err := s.store.HasResponseFromIP(ctx, form.ID, req.IPAddress)
		if err != nil {
			return nil, fmt.Errorf("check duplicate: %w", err)
		}
		if dup {
			return nil, withKey(NewForbiddenError("Multiple responses not allowed"), "response.duplicate")
		}
	}
	if form.PasswordProtected() {
		if req.Password == "" {
			return nil, withKey(NewUnauthorizedError("Password required"), "form.password_required")
		}
		if bcrypt.CompareHashAndPassword([]byte(form.PasswordHash), []byte(req.Password)) != nil {
			return nil, withKey(NewUnauthorizedError("Invalid password"), "form.password_invalid")
		}
	}

	questions, err := s.store.ListQuestions(ctx, form.ID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	if err := validateAnswers(questions, req.Answers); err != nil {
		return nil, err
	}

	now := s.now.now()
	started := now
	if req.StartedAt != nil && !req.StartedAt.IsZero() && !req.StartedAt.After(now) {
		started = req.StartedAt.UTC()
	}
	resp := &models.Response{
		ID:          s.idGenerator(),
		FormID:      form.ID,
		Email:       email,
		StartedAt:   started,
		CompletedAt: &now,
		IPAddress:   req.IPAddress,
		UserAgent:   req.UserAgent,
		Answers:     make([]*models.Answer, 0, len(req.Answers)),
	}
	for _, a := range req.Answers {
		resp.Answers = append(resp.Answers, &models.Answer{
			ID:         s.idGenerator(),
			ResponseID: resp.ID,
			QuestionID: a.QuestionID,
			Value:      a.Value,
			FileURL:    a.FileURL,
			CreatedAt:  now,
		})
	}
	if err := s.store.AddResponse(ctx, resp); err != nil {
		return nil, fmt.Errorf("store response: %w", err)
	}
	s.afterChange(ctx, form.ID, resp.ID, EventResponseSubmitted)
	attachQuestions(resp, questions)
	return resp, nil
}

// validateAnswers rejects answers to questions outside the catalog and
// blank or missing required answers.
func validateAnswers(questions []*models.Question, answers []SubmitAnswer) error {
	byID := make(map[string]*models.Question, len(questions))
	for _, q := range questions {
		if q != nil {
			byID[q.ID] = q
		}
	}
	answered := map[string]bool{}
	for _, a := range answers {
		q, ok := byID[a.QuestionID]
		if !ok {
			return withKey(NewInvalidError(fmt.Sprintf("Question %s not found", a.QuestionID)), "question.unknown")
		}
		if q.Required && a.Value.Blank() {
			return requiredError(q)
		}
		if !a.Value.Blank() {
			answered[q.ID] = true
		}
	}
	for _, q := range orderedQuestions(questions) {
		if q.Required && !answered[q.ID] {
			return requiredError(q)
		}
	}
	return nil
}

func requiredError(q *models.Question) error {
	return withKey(NewInvalidError(fmt.Sprintf("Question %q is required", q.Title)), "question.required")
}

// List returns one page of an owned form's responses, newest first.
func (s *ResponseService) List(ctx context.Context, ownerID, formID string, page, limit int) (*ResponsePage, error) {
	if _, err := loadOwnedForm(ctx, s.store, ownerID, formID); err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	// keep the offset within what every store accepts
	if maxPage := math.MaxInt32/limit + 1; page > maxPage {
		page = maxPage
	}
	items, total, err := s.store.ListResponsesPage(ctx, formID, (page-1)*limit, limit)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	questions, err := s.store.ListQuestions(ctx, formID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	for _, r := range items {
		attachQuestions(r, questions)
	}
	if items == nil {
		items = []*models.Response{}
	}
	return &ResponsePage{
		Responses: items,
		Pagination: Pagination{
			Page:  page,
			Limit: limit,
			Total: total,
			Pages: (total + limit - 1) / limit,
		},
	}, nil
}

// Get returns one response when its form belongs to ownerID.
func (s *ResponseService) Get(ctx context.Context, ownerID, id string) (*models.Response, error) {
	resp, err := s.ownedResponse(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	questions, err := s.store.ListQuestions(ctx, resp.FormID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	attachQuestions(resp, questions)
	return resp, nil
}

// Delete removes one response when its form belongs to ownerID.
func (s *ResponseService) Delete(ctx context.Context, ownerID, id string) error {
	resp, err := s.ownedResponse(ctx, ownerID, id)
	if err != nil {
		return err
	}
	ok, err := s.store.DeleteResponse(ctx, id)
	if err != nil {
		return fmt.Errorf("delete response: %w", err)
	}
	if !ok {
		return responseNotFound()
	}
	s.afterChange(ctx, resp.FormID, id, EventResponseDeleted)
	return nil
}

func (s *ResponseService) ownedResponse(ctx context.Context, ownerID, id string) (*models.Response, error) {
	if id == "" {
		return nil, responseNotFound()
	}
	resp, err := s.store.GetResponse(ctx, id)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, responseNotFound()
	}
	form, err := s.store.GetForm(ctx, resp.FormID)
	if err != nil {
		return nil, err
	}
	if form == nil || ownerID == "" || form.OwnerID != ownerID {
		return nil, responseNotFound()
	}
	return resp, nil
}

// afterChange drops the cached report and tells live subscribers. Failures
// here are logged; the write already succeeded.
func (s *ResponseService) afterChange(ctx context.Context, formID, responseID, eventType string) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, formID); err != nil {
			s.log.Warn("analytics cache invalidation failed", zap.String("form_id", formID), zap.Error(err))
		}
	}
	if s.notifier == nil {
		return
	}
	total, err := s.store.CountResponses(ctx, formID, false)
	if err != nil {
		s.log.Warn("count responses for live event failed", zap.String("form_id", formID), zap.Error(err))
		return
	}
	s.notifier.Publish(LiveEvent{
		Type: eventType,
		Data: LiveEventData{FormID: formID, ResponseID: responseID, TotalResponses: total},
	})
}

func attachQuestions(r *models.Response, questions []*models.Question) {
	if r == nil {
		return
	}
	byID := make(map[string]*models.Question, len(questions))
	for _, q := range questions {
		if q != nil {
			byID[q.ID] = q
		}
	}
	for _, a := range r.Answers {
		if a != nil && a.Question == nil {
			a.Question = byID[a.QuestionID]
		}
	}
}
