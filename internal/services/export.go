package services

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/soaringjerry/FormPulse/internal/models"
)

// submittedAtLayout renders completion times as UTC ISO-8601 with millis.
const submittedAtLayout = "2006-01-02T15:04:05.000Z07:00"

const xlsxSheet = "Responses"

// SortResponsesForExport returns the non-nil responses newest completion
// first. Responses without a completion time follow all completed ones; ties
// are broken by response id so the order is total.
func SortResponsesForExport(responses []*models.Response) []*models.Response {
	out := make([]*models.Response, 0, len(responses))
	for _, r := range responses {
		if r != nil {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].CompletedAt, out[j].CompletedAt
		switch {
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		case a != nil && b != nil && !a.Equal(*b):
			return a.After(*b)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ExportTable lays out the tabular export: a header row followed by one row
// per response in export order. When a response answers a question more than
// once the first answer wins.
func ExportTable(questions []*models.Question, responses []*models.Response) [][]string {
	catalog := orderedQuestions(questions)
	header := make([]string, 0, 3+len(catalog))
	header = append(header, "Response ID", "Submitted At", "Email")
	for _, q := range catalog {
		header = append(header, q.Title)
	}
	rows := [][]string{header}
	for _, r := range SortResponsesForExport(responses) {
		byQuestion := make(map[string]*models.Answer, len(r.Answers))
		for _, a := range r.Answers {
			if a == nil {
				continue
			}
			if _, seen := byQuestion[a.QuestionID]; !seen {
				byQuestion[a.QuestionID] = a
			}
		}
		submitted := ""
		if r.CompletedAt != nil {
			submitted = r.CompletedAt.UTC().Format(submittedAtLayout)
		}
		row := make([]string, 0, len(header))
		row = append(row, r.ID, submitted, r.Email)
		for _, q := range catalog {
			cell := ""
			if a := byQuestion[q.ID]; a != nil {
				cell = a.Value.Text()
			}
			row = append(row, cell)
		}
		rows = append(rows, row)
	}
	return rows
}

// ExportResponsesCSV renders the table with every cell quoted. Rows are
// separated by "\n" with no trailing newline.
func ExportResponsesCSV(questions []*models.Question, responses []*models.Response) []byte {
	var b strings.Builder
	for i, row := range ExportTable(questions, responses) {
		if i > 0 {
			b.WriteByte('\n')
		}
		for j, cell := range row {
			if j > 0 {
				b.WriteByte(',')
			}
			b.WriteString(quoteCSV(cell))
		}
	}
	return []byte(b.String())
}

func quoteCSV(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// jsonExport is the structural export document.
type jsonExport struct {
	Form      *models.Form       `json:"form"`
	Responses []*models.Response `json:"responses"`
}

// ExportResponsesJSON renders {form, responses} with every answer carrying
// its question. Inputs are not modified.
func ExportResponsesJSON(form *models.Form, questions []*models.Question, responses []*models.Response) ([]byte, error) {
	catalog := orderedQuestions(questions)
	byID := make(map[string]*models.Question, len(catalog))
	for _, q := range catalog {
		byID[q.ID] = q
	}
	var formCopy *models.Form
	if form != nil {
		f := *form
		f.Questions = catalog
		formCopy = &f
	}
	out := make([]*models.Response, 0, len(responses))
	for _, r := range SortResponsesForExport(responses) {
		rc := *r
		rc.Answers = make([]*models.Answer, 0, len(r.Answers))
		for _, a := range r.Answers {
			if a == nil {
				continue
			}
			ac := *a
			if ac.Question == nil {
				ac.Question = byID[a.QuestionID]
			}
			rc.Answers = append(rc.Answers, &ac)
		}
		out = append(out, &rc)
	}
	b, err := json.MarshalIndent(jsonExport{Form: formCopy, Responses: out}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode export: %w", err)
	}
	return b, nil
}

// ExportResponsesXLSX writes the table into a single-sheet workbook with a
// bold header row.
func ExportResponsesXLSX(questions []*models.Question, responses []*models.Response) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	f.SetSheetName("Sheet1", xlsxSheet)

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("xlsx style: %w", err)
	}
	for i, row := range ExportTable(questions, responses) {
		for j, v := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				return nil, fmt.Errorf("xlsx cell: %w", err)
			}
			if err := f.SetCellStr(xlsxSheet, cell, v); err != nil {
				return nil, fmt.Errorf("xlsx write: %w", err)
			}
			if i == 0 {
				if err := f.SetCellStyle(xlsxSheet, cell, cell, bold); err != nil {
					return nil, fmt.Errorf("xlsx style: %w", err)
				}
			}
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx encode: %w", err)
	}
	return buf.Bytes(), nil
}
