package services

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/soaringjerry/FormPulse/internal/models"
)

type recordingNotifier struct {
	events []LiveEvent
}

func (n *recordingNotifier) Publish(ev LiveEvent) { n.events = append(n.events, ev) }

var fixedNow = time.Date(2025, 9, 20, 12, 0, 0, 0, time.UTC)

func newTestResponseService(store *stubStore) (*ResponseService, *fakeCache, *recordingNotifier) {
	cache := newFakeCache()
	notifier := &recordingNotifier{}
	svc := NewResponseService(store, cache, notifier, nil)
	svc.now = func() time.Time { return fixedNow }
	n := 0
	svc.idGenerator = func() string {
		n++
		return "id-" + string(rune('0'+n))
	}
	return svc, cache, notifier
}

func requireCode(t *testing.T, err error, code ErrorCode) {
	t.Helper()
	se, ok := AsServiceError(err)
	if !ok || se.Code != code {
		t.Fatalf("expected %s error, got %v", code, err)
	}
}

func TestSubmitStoresCompletedResponse(t *testing.T) {
	store := seededStore()
	store.forms["F1"].AllowMultiple = true
	svc, cache, notifier := newTestResponseService(store)
	cache.reports["F1"] = &AnalyticsReport{FormID: "F1"}
	started := fixedNow.Add(-2 * time.Minute)

	resp, err := svc.Submit(context.Background(), SubmitRequest{
		FormID:    "F1",
		Email:     "a@example.com",
		StartedAt: &started,
		IPAddress: "10.0.0.1",
		Answers: []SubmitAnswer{
			{QuestionID: "Q1", Value: models.AnswerValueOf("A")},
			{QuestionID: "Q2", Value: models.AnswerValueOf(5)},
		},
	})
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if resp.CompletedAt == nil || !resp.CompletedAt.Equal(fixedNow) || !resp.StartedAt.Equal(started) {
		t.Fatalf("unexpected timestamps: %+v", resp)
	}
	if len(resp.Answers) != 2 || resp.Answers[0].ResponseID != resp.ID || resp.Answers[0].Question == nil {
		t.Fatalf("unexpected answers: %+v", resp.Answers)
	}
	if len(store.responses) != 3 {
		t.Fatalf("expected stored response, have %d", len(store.responses))
	}
	if _, ok := cache.reports["F1"]; ok {
		t.Fatalf("cached report should be invalidated")
	}
	if len(notifier.events) != 1 {
		t.Fatalf("expected one live event, got %d", len(notifier.events))
	}
	ev := notifier.events[0]
	if ev.Type != EventResponseSubmitted || ev.Data.ResponseID != resp.ID || ev.Data.TotalResponses != 3 {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestSubmitDefaultsStartedAtToNow(t *testing.T) {
	store := seededStore()
	store.forms["F1"].AllowMultiple = true
	svc, _, _ := newTestResponseService(store)
	future := fixedNow.Add(time.Hour)
	resp, err := svc.Submit(context.Background(), SubmitRequest{FormID: "F1", StartedAt: &future})
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if !resp.StartedAt.Equal(fixedNow) {
		t.Fatalf("startedAt = %v", resp.StartedAt)
	}
}

func TestSubmitRejections(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("open sesame"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	past := fixedNow.Add(-time.Hour)
	cases := []struct {
		name   string
		mutate func(*stubStore)
		req    SubmitRequest
		code   ErrorCode
	}{
		{"missing form", nil, SubmitRequest{FormID: "nope"}, ErrorNotFound},
		{"draft", func(s *stubStore) { s.forms["F1"].Status = models.FormDraft }, SubmitRequest{FormID: "F1"}, ErrorNotFound},
		{"expired", func(s *stubStore) { s.forms["F1"].ExpiresAt = &past }, SubmitRequest{FormID: "F1"}, ErrorGone},
		{"limit", func(s *stubStore) { s.forms["F1"].ResponseLimit = 2 }, SubmitRequest{FormID: "F1"}, ErrorTooManyRequests},
		{"duplicate ip", func(s *stubStore) { s.responses[0].IPAddress = "10.0.0.9" }, SubmitRequest{FormID: "F1", IPAddress: "10.0.0.9"}, ErrorForbidden},
		{"password missing", func(s *stubStore) { s.forms["F1"].PasswordHash = string(hash) }, SubmitRequest{FormID: "F1"}, ErrorUnauthorized},
		{"password wrong", func(s *stubStore) { s.forms["F1"].PasswordHash = string(hash) }, SubmitRequest{FormID: "F1", Password: "guess"}, ErrorUnauthorized},
		{"unknown question", nil, SubmitRequest{FormID: "F1", Answers: []SubmitAnswer{{QuestionID: "QX", Value: models.AnswerValueOf("x")}}}, ErrorInvalid},
		{"bad email", nil, SubmitRequest{FormID: "F1", Email: "not-an-email"}, ErrorInvalid},
		{"required blank", func(s *stubStore) { s.questions[1].Required = true }, SubmitRequest{FormID: "F1", Answers: []SubmitAnswer{{QuestionID: "Q1", Value: models.AnswerValueOf("  ")}}}, ErrorInvalid},
		{"required missing", func(s *stubStore) { s.questions[0].Required = true }, SubmitRequest{FormID: "F1"}, ErrorInvalid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := seededStore()
			if tc.mutate != nil {
				tc.mutate(store)
			}
			svc, _, notifier := newTestResponseService(store)
			_, err := svc.Submit(context.Background(), tc.req)
			requireCode(t, err, tc.code)
			if len(store.responses) != 2 || len(notifier.events) != 0 {
				t.Fatalf("rejected submission must not be stored or announced")
			}
		})
	}
}

func TestSubmitAcceptsPasswordAndZeroValues(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("open sesame"), bcrypt.MinCost)
	store := seededStore()
	store.forms["F1"].PasswordHash = string(hash)
	store.questions[0].Required = true
	svc, _, _ := newTestResponseService(store)
	_, err := svc.Submit(context.Background(), SubmitRequest{
		FormID:   "F1",
		Password: "open sesame",
		Answers:  []SubmitAnswer{{QuestionID: "Q2", Value: models.AnswerValueOf(0)}},
	})
	if err != nil {
		t.Fatalf("0 must satisfy a required scale question: %v", err)
	}
}

func TestSubmitStoreFailure(t *testing.T) {
	store := seededStore()
	store.forms["F1"].AllowMultiple = true
	store.addErr = errors.New("disk full")
	svc, _, notifier := newTestResponseService(store)
	_, err := svc.Submit(context.Background(), SubmitRequest{FormID: "F1"})
	if err == nil || !errors.Is(err, store.addErr) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
	if _, ok := AsServiceError(err); ok {
		t.Fatalf("infrastructure errors must not be service errors")
	}
	if len(notifier.events) != 0 {
		t.Fatalf("no event on failure")
	}
}

func TestPublicForm(t *testing.T) {
	store := seededStore()
	store.forms["F1"].PasswordHash = "hash"
	svc, _, _ := newTestResponseService(store)
	pf, err := svc.PublicForm(context.Background(), "share-1")
	if err != nil {
		t.Fatalf("PublicForm error: %v", err)
	}
	if !pf.PasswordProtected || len(pf.Questions) != 2 || pf.Questions[0].ID != "Q1" {
		t.Fatalf("unexpected public form: %+v", pf)
	}
	_, err = svc.PublicForm(context.Background(), "nope")
	requireCode(t, err, ErrorNotFound)
}

func TestListGetDeleteResponses(t *testing.T) {
	store := seededStore()
	svc, cache, notifier := newTestResponseService(store)
	ctx := context.Background()

	page, err := svc.List(ctx, "U1", "F1", 1, 1)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(page.Responses) != 1 || page.Responses[0].ID != "R2" {
		t.Fatalf("expected newest first, got %+v", page.Responses)
	}
	if page.Pagination != (Pagination{Page: 1, Limit: 1, Total: 2, Pages: 2}) {
		t.Fatalf("pagination = %+v", page.Pagination)
	}
	page, err = svc.List(ctx, "U1", "F1", 0, 1000)
	if err != nil || page.Pagination.Limit != MaxPageLimit || page.Pagination.Page != 1 {
		t.Fatalf("limits should clamp: %+v %v", page, err)
	}
	page, err = svc.List(ctx, "U1", "F1", 9, 0)
	if err != nil || page.Responses == nil || len(page.Responses) != 0 || page.Pagination.Limit != DefaultPageLimit {
		t.Fatalf("out of range page: %+v %v", page, err)
	}
	page, err = svc.List(ctx, "U1", "F1", math.MaxInt, 50)
	if err != nil || len(page.Responses) != 0 || page.Pagination.Total != 2 {
		t.Fatalf("huge page must be empty, not wrap to the first: %+v %v", page, err)
	}
	if p := page.Pagination.Page; p < 1 || (p-1)*50 > math.MaxInt32 {
		t.Fatalf("page %d should be capped", p)
	}
	_, err = svc.List(ctx, "U2", "F1", 1, 10)
	requireCode(t, err, ErrorNotFound)

	got, err := svc.Get(ctx, "U1", "R1")
	if err != nil || got.Answers[0].Question == nil {
		t.Fatalf("Get: %+v %v", got, err)
	}
	_, err = svc.Get(ctx, "U2", "R1")
	requireCode(t, err, ErrorNotFound)

	err = svc.Delete(ctx, "U2", "R1")
	requireCode(t, err, ErrorNotFound)
	if err := svc.Delete(ctx, "U1", "R1"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if len(store.responses) != 1 || len(cache.invalidated) != 1 {
		t.Fatalf("delete should remove and invalidate")
	}
	if len(notifier.events) != 1 || notifier.events[0].Type != EventResponseDeleted || notifier.events[0].Data.TotalResponses != 1 {
		t.Fatalf("unexpected events: %+v", notifier.events)
	}
	err = svc.Delete(ctx, "U1", "R1")
	requireCode(t, err, ErrorNotFound)
}
