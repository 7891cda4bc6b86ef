package services

import (
	"context"
	"time"

	"github.com/soaringjerry/FormPulse/internal/models"
)

// Store lookups return (nil, nil) when a record does not exist.

type FormReader interface {
	GetForm(ctx context.Context, id string) (*models.Form, error)
	// ListQuestions returns the catalog ascending by Order.
	ListQuestions(ctx context.Context, formID string) ([]*models.Question, error)
}

type AnalyticsStore interface {
	FormReader
	// ListResponsesByForm returns every response of the form with its
	// answers nested.
	ListResponsesByForm(ctx context.Context, formID string) ([]*models.Response, error)
}

type ExportStore interface {
	AnalyticsStore
}

type ResponseStore interface {
	AnalyticsStore
	GetFormByShareableURL(ctx context.Context, shareableURL string) (*models.Form, error)
	AddResponse(ctx context.Context, r *models.Response) error
	GetResponse(ctx context.Context, id string) (*models.Response, error)
	// ListResponsesPage returns one page ordered by completedAt descending and
	// the total number of responses of the form.
	ListResponsesPage(ctx context.Context, formID string, offset, limit int) ([]*models.Response, int, error)
	CountResponses(ctx context.Context, formID string, completedOnly bool) (int, error)
	HasResponseFromIP(ctx context.Context, formID, ip string) (bool, error)
	DeleteResponse(ctx context.Context, id string) (bool, error)
}

// Clock lets tests pin "now".
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c().UTC()
}

// loadOwnedForm fetches a form and hides it from anyone but its owner.
func loadOwnedForm(ctx context.Context, store FormReader, ownerID, formID string) (*models.Form, error) {
	if formID == "" {
		return nil, NewInvalidError("formId required")
	}
	form, err := store.GetForm(ctx, formID)
	if err != nil {
		return nil, err
	}
	if form == nil || ownerID == "" || form.OwnerID != ownerID {
		return nil, formNotFound()
	}
	return form, nil
}
