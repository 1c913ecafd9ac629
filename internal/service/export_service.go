package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/stemsi/examhall-backend/internal/model"
)

// SubmissionExporter lists submissions joined with usernames.
type SubmissionExporter interface {
	ListForExport(ctx context.Context, examID uuid.UUID) ([]model.SubmissionRow, error)
}

// ExportService renders exam results as spreadsheets.
type ExportService struct {
	submissions SubmissionExporter
	catalog     ExamCatalog
}

func NewExportService(submissions SubmissionExporter, catalog ExamCatalog) *ExportService {
	return &ExportService{submissions: submissions, catalog: catalog}
}

const resultsSheet = "Results"

// ExportResults builds an XLSX workbook with one row per submission of the
// exam and returns it together with a suggested file name.
func (s *ExportService) ExportResults(ctx context.Context, examID uuid.UUID) ([]byte, string, error) {
	exam, err := s.catalog.GetExamWithQuestions(ctx, examID)
	if err != nil {
		return nil, "", err
	}

	rows, err := s.submissions.ListForExport(ctx, examID)
	if err != nil {
		return nil, "", fmt.Errorf("list submissions: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(resultsSheet)
	if err != nil {
		return nil, "", fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, "", fmt.Errorf("drop default sheet: %w", err)
	}

	maxPoints := 0.0
	for _, q := range exam.Questions {
		maxPoints += q.Points
	}

	headers := []any{"Username", "Submitted At", "Source", "Points", "Max Points", "Answered"}
	for i := range exam.Questions {
		headers = append(headers, fmt.Sprintf("Q%d", i+1))
	}
	if err := f.SetSheetRow(resultsSheet, "A1", &headers); err != nil {
		return nil, "", fmt.Errorf("write header: %w", err)
	}

	for i, r := range rows {
		answered := 0
		for _, a := range r.Answers {
			if len(a) > 0 {
				answered++
			}
		}
		values := []any{
			r.Username,
			r.SubmittedAt.Format("2006-01-02 15:04:05"),
			string(r.Source),
			r.Points,
			maxPoints,
			answered,
		}
		for q := range exam.Questions {
			if q < len(r.QuestionPoints) {
				values = append(values, r.QuestionPoints[q])
			} else {
				values = append(values, 0.0)
			}
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, "", err
		}
		if err := f.SetSheetRow(resultsSheet, cell, &values); err != nil {
			return nil, "", fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", fmt.Errorf("write workbook: %w", err)
	}

	name := exam.Slug
	if name == "" {
		name = exam.ID.String()
	}
	return buf.Bytes(), strings.ToLower(name) + "-results.xlsx", nil
}
