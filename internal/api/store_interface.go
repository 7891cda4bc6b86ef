package api

import (
	"context"

	"github.com/soaringjerry/FormPulse/internal/models"
	"github.com/soaringjerry/FormPulse/internal/services"
)

// Store is everything the HTTP layer and the CLI need from persistence.
// Implementations: the in-memory store here, db.SQLiteStore and
// db.PostgresStore.
type Store interface {
	services.ResponseStore

	// SaveForm and SaveQuestion insert or replace by id.
	SaveForm(ctx context.Context, f *models.Form) error
	SaveQuestion(ctx context.Context, q *models.Question) error
	CountForms(ctx context.Context) (int, error)
	Close() error
}

var _ Store = (*memoryStore)(nil)
