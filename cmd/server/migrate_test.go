package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/soaringjerry/FormPulse/internal/api"
	"github.com/soaringjerry/FormPulse/internal/models"
)

const seed = `{"forms":[{"id":"F1","userId":"U1","title":"Seeded","status":"PUBLISHED",
  "createdAt":"2025-09-01T00:00:00Z","updatedAt":"2025-09-01T00:00:00Z"}]}`

func TestSeedIfEmpty(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "seed.json")
	if err := os.WriteFile(path, []byte(seed), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}

	store := api.NewMemoryStore()
	if err := SeedIfEmpty(ctx, store, path, zap.NewNop()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if n, _ := store.CountForms(ctx); n != 1 {
		t.Fatalf("forms after seed = %d", n)
	}

	populated := api.NewMemoryStore()
	_ = populated.SaveForm(ctx, &models.Form{ID: "existing", OwnerID: "U2"})
	if err := SeedIfEmpty(ctx, populated, path, zap.NewNop()); err != nil {
		t.Fatalf("seed populated: %v", err)
	}
	if f, _ := populated.GetForm(ctx, "F1"); f != nil {
		t.Fatalf("populated store must not be seeded")
	}

	if err := SeedIfEmpty(ctx, api.NewMemoryStore(), filepath.Join(t.TempDir(), "none.json"), zap.NewNop()); err != nil {
		t.Fatalf("missing snapshot should be ignored: %v", err)
	}
}
