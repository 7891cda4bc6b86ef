package services

import (
	"context"
	"fmt"
	"strings"
)

const (
	FormatCSV  = "csv"
	FormatJSON = "json"
	FormatXLSX = "xlsx"
)

var exportContentTypes = map[string]string{
	FormatCSV:  "text/csv; charset=utf-8",
	FormatJSON: "application/json",
	FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

type ExportParams struct {
	OwnerID string
	FormID  string
	Format  string
}

type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
}

type ExportService struct {
	store ExportStore
}

func NewExportService(store ExportStore) *ExportService {
	return &ExportService{store: store}
}

// Export renders every response of an owned form in the requested format.
func (s *ExportService) Export(ctx context.Context, params ExportParams) (*ExportResult, error) {
	format := strings.ToLower(strings.TrimSpace(params.Format))
	if format == "" {
		format = FormatCSV
	}
	contentType, ok := exportContentTypes[format]
	if !ok {
		return nil, NewInvalidError("unsupported format")
	}
	form, err := loadOwnedForm(ctx, s.store, params.OwnerID, params.FormID)
	if err != nil {
		return nil, err
	}
	questions, err := s.store.ListQuestions(ctx, form.ID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	responses, err := s.store.ListResponsesByForm(ctx, form.ID)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}

	var data []byte
	switch format {
	case FormatCSV:
		data = ExportResponsesCSV(questions, responses)
	case FormatJSON:
		data, err = ExportResponsesJSON(form, questions, responses)
	case FormatXLSX:
		data, err = ExportResponsesXLSX(questions, responses)
	}
	if err != nil {
		return nil, err
	}
	return &ExportResult{
		Filename:    ExportFilename(form.ID, format),
		ContentType: contentType,
		Data:        data,
	}, nil
}

func ExportFilename(formID, format string) string {
	return fmt.Sprintf("form-%s-responses.%s", formID, format)
}
