package services

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/SAP-F-2025/quiz-portal/internal/models"
	"github.com/SAP-F-2025/quiz-portal/internal/repositories"
)

const (
	resultsSheet = "Results"
	summarySheet = "Summary"
	timeLayout   = "2006-01-02 15:04"
)

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

type exportService struct {
	repo   repositories.Repository
	logger *slog.Logger
}

func NewExportService(repo repositories.Repository, logger *slog.Logger) ExportService {
	return &exportService{repo: repo, logger: logger}
}

// ExportResults returns the workbook bytes and a suggested file name.
func (s *exportService) ExportResults(ctx context.Context, assessmentID uint, caller Caller) ([]byte, string, error) {
	assessment, err := s.repo.Assessment().GetByID(ctx, assessmentID)
	if err != nil {
		return nil, "", mapRepoError(err, ErrAssessmentNotFound)
	}
	if !caller.Owns(assessment.CreatedBy) {
		return nil, "", NewPermissionError(caller.UserID, assessmentID, "assessment", "export", "not the owner")
	}

	attempts, err := s.repo.Attempt().ListByAssessment(ctx, assessmentID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load attempts: %w", err)
	}
	stats, err := s.repo.Attempt().Stats(ctx, assessmentID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load stats: %w", err)
	}
	users := s.userNames(ctx, attempts)

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("Failed to close workbook", "error", err)
		}
	}()

	if err := writeResultsSheet(f, assessment, attempts, users); err != nil {
		return nil, "", err
	}
	if err := writeSummarySheet(f, assessment, stats); err != nil {
		return nil, "", err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", fmt.Errorf("failed to render workbook: %w", err)
	}

	s.logger.Info("Results exported", "assessment_id", assessmentID, "attempts", len(attempts), "user_id", caller.UserID)
	return buf.Bytes(), exportFileName(assessment), nil
}

// userNames resolves display names; unknown accounts fall back to their id.
func (s *exportService) userNames(ctx context.Context, attempts []*models.AssessmentAttempt) map[string]*models.User {
	seen := make(map[string]bool, len(attempts))
	ids := make([]string, 0, len(attempts))
	for _, a := range attempts {
		if !seen[a.UserID] {
			seen[a.UserID] = true
			ids = append(ids, a.UserID)
		}
	}

	out := make(map[string]*models.User, len(ids))
	if len(ids) == 0 {
		return out
	}
	users, err := s.repo.User().GetByIDs(ctx, ids)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to resolve user names for export", "error", err)
		return out
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out
}

func writeResultsSheet(f *excelize.File, assessment *models.Assessment, attempts []*models.AssessmentAttempt, users map[string]*models.User) error {
	if err := f.SetSheetName("Sheet1", resultsSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header := []any{"User ID", "Name", "Email", "Attempt", "Status", "Started", "Submitted", "Score", "Published"}
	if assessment.PassMarks != nil {
		header = append(header, "Passed")
	}
	if err := f.SetSheetRow(resultsSheet, "A1", &header); err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	lastCol, _ := excelize.ColumnNumberToName(len(header))
	if err := f.SetCellStyle(resultsSheet, "A1", lastCol+"1", bold); err != nil {
		return err
	}

	for i, a := range attempts {
		name, email := a.UserID, ""
		if u, ok := users[a.UserID]; ok {
			name = firstNonEmpty(u.FullName, u.Name, u.ID)
			email = u.Email
		}

		row := []any{
			a.UserID,
			name,
			email,
			a.AttemptNumber,
			string(a.Status),
			a.StartedAt.Format(timeLayout),
			formatTime(a.SubmittedAt),
		}
		if assessment.RequiredMark && a.IsFinished() {
			row = append(row, a.Score)
		} else {
			row = append(row, "")
		}
		row = append(row, yesNo(a.IsPublished))
		if assessment.PassMarks != nil {
			row = append(row, yesNo(a.IsFinished() && a.Score >= *assessment.PassMarks))
		}

		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(resultsSheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func writeSummarySheet(f *excelize.File, assessment *models.Assessment, stats *repositories.AssessmentStats) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("failed to add summary sheet: %w", err)
	}

	rows := [][]any{
		{"Assessment", assessment.Name},
		{"Total marks", assessment.TotalMarks},
		{"Attempts", stats.TotalAttempts},
		{"Finished", stats.FinishedCount},
		{"Published", stats.PublishedCount},
		{"Average score", stats.AverageScore},
		{"Highest score", stats.HighestScore},
		{"Lowest score", stats.LowestScore},
		{"Unmarked answers", stats.UnmarkedAnswers},
	}
	if assessment.PassMarks != nil {
		rows = append(rows, []any{"Pass marks", *assessment.PassMarks}, []any{"Passed", stats.PassCount})
	}

	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func exportFileName(assessment *models.Assessment) string {
	slug := strings.Trim(unsafeFileChars.ReplaceAllString(strings.ToLower(assessment.Name), "-"), "-")
	if slug == "" {
		slug = "assessment"
	}
	return fmt.Sprintf("%s-%d-results.xlsx", slug, assessment.ID)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(timeLayout)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
