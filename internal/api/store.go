package api

import (
	"context"
	"sort"
	"sync"

	"github.com/soaringjerry/FormPulse/internal/models"
	"github.com/soaringjerry/FormPulse/internal/services"
)

type memoryStore struct {
	mu        sync.RWMutex
	forms     map[string]*models.Form
	questions map[string][]*models.Question
	responses map[string]*models.Response
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		forms:     map[string]*models.Form{},
		questions: map[string][]*models.Question{},
		responses: map[string]*models.Response{},
	}
}

// NewMemoryStore returns a Store that lives for the life of the process.
func NewMemoryStore() Store { return newMemoryStore() }

func copyForm(f *models.Form) *models.Form {
	c := *f
	c.Questions = nil
	return &c
}

func copyQuestion(q *models.Question) *models.Question {
	c := *q
	if q.Options != nil {
		o := *q.Options
		o.Choices = append([]string(nil), q.Options.Choices...)
		c.Options = &o
	}
	return &c
}

func copyResponse(r *models.Response) *models.Response {
	c := *r
	c.Answers = make([]*models.Answer, 0, len(r.Answers))
	for _, a := range r.Answers {
		if a == nil {
			continue
		}
		ac := *a
		ac.Question = nil
		c.Answers = append(c.Answers, &ac)
	}
	return &c
}

func (s *memoryStore) GetForm(_ context.Context, id string) (*models.Form, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if f, ok := s.forms[id]; ok {
		return copyForm(f), nil
	}
	return nil, nil
}

func (s *memoryStore) GetFormByShareableURL(_ context.Context, shareableURL string) (*models.Form, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, f := range s.forms {
		if f.ShareableURL == shareableURL {
			return copyForm(f), nil
		}
	}
	return nil, nil
}

func (s *memoryStore) CountForms(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.forms), nil
}

func (s *memoryStore) SaveForm(_ context.Context, f *models.Form) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forms[f.ID] = copyForm(f)
	return nil
}

func (s *memoryStore) SaveQuestion(_ context.Context, q *models.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.questions[q.FormID]
	for i, existing := range list {
		if existing.ID == q.ID {
			list[i] = copyQuestion(q)
			s.sortQuestions(q.FormID)
			return nil
		}
	}
	s.questions[q.FormID] = append(list, copyQuestion(q))
	s.sortQuestions(q.FormID)
	return nil
}

func (s *memoryStore) sortQuestions(formID string) {
	list := s.questions[formID]
	sort.SliceStable(list, func(i, j int) bool { return list[i].Order < list[j].Order })
}

func (s *memoryStore) ListQuestions(_ context.Context, formID string) ([]*models.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Question, 0, len(s.questions[formID]))
	for _, q := range s.questions[formID] {
		out = append(out, copyQuestion(q))
	}
	return out, nil
}

func (s *memoryStore) AddResponse(_ context.Context, r *models.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[r.ID] = copyResponse(r)
	return nil
}

func (s *memoryStore) GetResponse(_ context.Context, id string) (*models.Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.responses[id]; ok {
		return copyResponse(r), nil
	}
	return nil, nil
}

// byForm returns the form's responses in export order. Callers hold mu.
func (s *memoryStore) byForm(formID string) []*models.Response {
	var out []*models.Response
	for _, r := range s.responses {
		if r.FormID == formID {
			out = append(out, r)
		}
	}
	return services.SortResponsesForExport(out)
}

func (s *memoryStore) ListResponsesByForm(_ context.Context, formID string) ([]*models.Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rs := s.byForm(formID)
	out := make([]*models.Response, 0, len(rs))
	for _, r := range rs {
		out = append(out, copyResponse(r))
	}
	return out, nil
}

func (s *memoryStore) ListResponsesPage(_ context.Context, formID string, offset, limit int) ([]*models.Response, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rs := s.byForm(formID)
	total := len(rs)
	if offset < 0 {
		offset = 0
	}
	if offset >= total || limit <= 0 {
		return []*models.Response{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	out := make([]*models.Response, 0, end-offset)
	for _, r := range rs[offset:end] {
		out = append(out, copyResponse(r))
	}
	return out, total, nil
}

func (s *memoryStore) CountResponses(_ context.Context, formID string, completedOnly bool) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, r := range s.responses {
		if r.FormID == formID && (!completedOnly || r.Completed()) {
			n++
		}
	}
	return n, nil
}

func (s *memoryStore) HasResponseFromIP(_ context.Context, formID, ip string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.responses {
		if r.FormID == formID && r.IPAddress == ip {
			return true, nil
		}
	}
	return false, nil
}

func (s *memoryStore) DeleteResponse(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.responses[id]; !ok {
		return false, nil
	}
	delete(s.responses, id)
	return true, nil
}

func (s *memoryStore) Close() error { return nil }
