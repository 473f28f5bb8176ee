package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kalendasha/kalendasha/internal/model"
)

// DefaultTemplateHorizonDays — докуда разворачивается шаблон без
// явной даты окончания.
const DefaultTemplateHorizonDays = 365

// MaterializerService разворачивает шаблон недели в конкретные уроки.
// Повторный запуск ничего не дублирует: ключ (student_id, original_start)
// уже существующих уроков пропускается.
type MaterializerService struct {
	templates TemplateStore
	lessons   LessonStore
	students  StudentStore
	clock     Clock
	logger    *zap.Logger
}

// NewMaterializerService создаёт новый сервис
func NewMaterializerService(
	templates TemplateStore,
	lessons LessonStore,
	students StudentStore,
	clock Clock,
	logger *zap.Logger,
) *MaterializerService {
	return &MaterializerService{
		templates: templates,
		lessons:   lessons,
		students:  students,
		clock:     clock,
		logger:    logger,
	}
}

// ApplyReport — итог применения шаблона
type ApplyReport struct {
	Created               int // создано новых уроков
	SkippedMissingStudent int // шаблонов пропущено из-за отсутствующего ученика
}

// ApplyTemplates применяет весь шаблон недели к расписанию до horizonEnd.
// Шаблон с несуществующим учеником пропускается и считается отдельно —
// один битый шаблон не валит весь прогон. Существующие уроки никогда
// не изменяются и не удаляются.
func (s *MaterializerService) ApplyTemplates(ctx context.Context, horizonEnd time.Time) (*ApplyReport, error) {
	now := s.clock.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	if horizonEnd.IsZero() {
		horizonEnd = today.AddDate(0, 0, DefaultTemplateHorizonDays)
	}

	templates, err := s.templates.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	report := &ApplyReport{}
	for _, t := range templates {
		created, err := s.applyTemplate(ctx, t, today, horizonEnd)
		if model.IsNotFound(err) {
			s.logger.Warn("Template references missing student, skipping",
				zap.Int64("template_id", t.ID),
				zap.Int64("student_id", t.StudentID))
			report.SkippedMissingStudent++
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("apply template %d: %w", t.ID, err)
		}
		report.Created += created
	}

	s.logger.Info("Templates applied",
		zap.Int("templates", len(templates)),
		zap.Int("created", report.Created),
		zap.Int("skipped_missing_student", report.SkippedMissingStudent))

	return report, nil
}

// applyTemplate разворачивает один шаблон в пределах его периода действия
func (s *MaterializerService) applyTemplate(ctx context.Context, t *model.LessonTemplate, today, horizonEnd time.Time) (int, error) {
	if _, err := s.students.GetByID(ctx, t.StudentID); err != nil {
		return 0, err
	}

	start := today
	if t.StartDate != nil && t.StartDate.After(today) {
		start = *t.StartDate
	}

	end := today.AddDate(0, 0, DefaultTemplateHorizonDays)
	if t.EndDate != nil {
		end = *t.EndDate
	}
	if horizonEnd.Before(end) {
		end = horizonEnd
	}

	templateID := t.ID

	created := 0
	for date := start; !date.After(end); date = date.AddDate(0, 0, 1) {
		if date.Weekday() != t.Weekday {
			continue
		}

		startTime := time.Date(date.Year(), date.Month(), date.Day(),
			t.StartHour, t.StartMinute, 0, 0, date.Location())

		exists, err := s.lessons.ExistsByOriginalStart(ctx, t.StudentID, startTime)
		if err != nil {
			return created, fmt.Errorf("check lesson exists: %w", err)
		}
		if exists {
			continue
		}

		lesson := &model.Lesson{
			ID:              uuid.New(),
			StudentID:       t.StudentID,
			StartTime:       startTime,
			DurationMinutes: t.DurationMinutes,
			Subject:         t.Subject,
			Status:          model.LessonStatusScheduled,
			LessonType:      t.LessonType,
			FromTemplate:    true,
			TemplateID:      &templateID,
			OriginalStart:   startTime,
		}

		err = s.lessons.Create(ctx, lesson)
		if model.IsConflict(err) {
			// Параллельный прогон успел первым — для нас это обычный пропуск
			s.logger.Debug("Lesson already materialized concurrently, skipping",
				zap.Int64("student_id", t.StudentID),
				zap.Time("original_start", startTime))
			continue
		}
		if err != nil {
			return created, fmt.Errorf("create lesson: %w", err)
		}

		created++
	}

	return created, nil
}
