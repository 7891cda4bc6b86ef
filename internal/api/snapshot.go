package api

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/soaringjerry/FormPulse/internal/models"
)

// SnapshotForm is a form as it appears in a snapshot file. Unlike the API
// representation it carries the password hash. Questions may be nested here
// or listed at the top level of the snapshot.
type SnapshotForm struct {
	*models.Form
	PasswordHash string `json:"passwordHash,omitempty"`
}

// Snapshot is the portable dump format read by `formpulse import`. Answers
// are nested in their responses.
type Snapshot struct {
	Forms     []*SnapshotForm    `json:"forms"`
	Questions []*models.Question `json:"questions"`
	Responses []*models.Response `json:"responses"`
}

type ImportStats struct {
	Forms     int `json:"forms"`
	Questions int `json:"questions"`
	Responses int `json:"responses"`
}

func LoadSnapshot(path string) (*Snapshot, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	return &snap, nil
}

// ImportSnapshot writes snap into dst. Forms and questions are upserted;
// responses are inserted, so importing the same snapshot twice fails on the
// first duplicate response in stores that enforce unique ids.
func ImportSnapshot(ctx context.Context, snap *Snapshot, dst Store) (ImportStats, error) {
	var stats ImportStats
	if snap == nil {
		return stats, nil
	}
	for _, sf := range snap.Forms {
		if sf == nil || sf.Form == nil {
			continue
		}
		f := *sf.Form
		if sf.PasswordHash != "" {
			f.PasswordHash = sf.PasswordHash
		}
		nested := f.Questions
		f.Questions = nil
		if err := dst.SaveForm(ctx, &f); err != nil {
			return stats, fmt.Errorf("form %s: %w", f.ID, err)
		}
		stats.Forms++
		for _, q := range nested {
			if q == nil {
				continue
			}
			if q.FormID == "" {
				q.FormID = f.ID
			}
			if err := dst.SaveQuestion(ctx, q); err != nil {
				return stats, fmt.Errorf("question %s: %w", q.ID, err)
			}
			stats.Questions++
		}
	}
	for _, q := range snap.Questions {
		if q == nil {
			continue
		}
		if err := dst.SaveQuestion(ctx, q); err != nil {
			return stats, fmt.Errorf("question %s: %w", q.ID, err)
		}
		stats.Questions++
	}
	for _, r := range snap.Responses {
		if r == nil {
			continue
		}
		for _, a := range r.Answers {
			if a != nil && a.ResponseID == "" {
				a.ResponseID = r.ID
			}
		}
		if err := dst.AddResponse(ctx, r); err != nil {
			return stats, fmt.Errorf("response %s: %w", r.ID, err)
		}
		stats.Responses++
	}
	return stats, nil
}
