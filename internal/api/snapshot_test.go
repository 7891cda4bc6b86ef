package api

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

const snapshotJSON = `{
  "forms": [{
    "id": "F9", "userId": "U9", "title": "Imported", "status": "PUBLISHED",
    "shareableUrl": "imp-9", "passwordHash": "$2a$10$hash",
    "createdAt": "2025-09-01T00:00:00Z", "updatedAt": "2025-09-01T00:00:00Z",
    "questions": [{"id": "Q9", "type": "CHECKBOXES", "title": "Tags", "order": 1, "options": {"choices": ["x", "y"]}}]
  }],
  "questions": [{"id": "Q10", "formId": "F9", "type": "SHORT_ANSWER", "title": "Why", "order": 2}],
  "responses": [{
    "id": "R9", "formId": "F9", "startedAt": "2025-09-02T10:00:00Z", "completedAt": "2025-09-02T10:05:00Z",
    "answers": [{"id": "A9", "questionId": "Q9", "value": ["x", "y"]}, {"id": "A10", "questionId": "Q10", "value": "because"}]
  }]
}`

func TestImportSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	if err := os.WriteFile(path, []byte(snapshotJSON), 0o600); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}
	snap, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	store := NewMemoryStore()
	ctx := context.Background()
	stats, err := ImportSnapshot(ctx, snap, store)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if stats != (ImportStats{Forms: 1, Questions: 2, Responses: 1}) {
		t.Fatalf("stats = %+v", stats)
	}

	f, _ := store.GetFormByShareableURL(ctx, "imp-9")
	if f == nil || f.OwnerID != "U9" || !f.PasswordProtected() {
		t.Fatalf("form not imported with password: %+v", f)
	}
	qs, _ := store.ListQuestions(ctx, "F9")
	if len(qs) != 2 || qs[0].ID != "Q9" || qs[0].FormID != "F9" || len(qs[0].Options.Choices) != 2 {
		t.Fatalf("questions = %+v", qs)
	}
	r, _ := store.GetResponse(ctx, "R9")
	if r == nil || !r.Completed() || len(r.Answers) != 2 || r.Answers[0].ResponseID != "R9" || r.Answers[0].Value.Text() != "x; y" {
		t.Fatalf("response = %+v", r)
	}
}

func TestLoadSnapshotErrors(t *testing.T) {
	if _, err := LoadSnapshot(filepath.Join(t.TempDir(), "missing.json")); !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
	path := filepath.Join(t.TempDir(), "bad.json")
	_ = os.WriteFile(path, []byte("{"), 0o600)
	if _, err := LoadSnapshot(path); err == nil {
		t.Fatalf("expected decode error")
	}
}
