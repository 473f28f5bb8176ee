package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kalendasha/kalendasha/internal/model"
)

// TemplateService управляет шаблоном недели — повторяющимися слотами,
// из которых материализатор разворачивает конкретные уроки.
type TemplateService struct {
	templates TemplateStore
	students  StudentStore
	clock     Clock
	logger    *zap.Logger
}

// NewTemplateService создаёт новый сервис
func NewTemplateService(
	templates TemplateStore,
	students StudentStore,
	clock Clock,
	logger *zap.Logger,
) *TemplateService {
	return &TemplateService{
		templates: templates,
		students:  students,
		clock:     clock,
		logger:    logger,
	}
}

// List перечисляет весь шаблон недели, с понедельника
func (s *TemplateService) List(ctx context.Context) ([]*model.LessonTemplate, error) {
	return s.templates.List(ctx)
}

// Get получает слот шаблона по ID
func (s *TemplateService) Get(ctx context.Context, id int64) (*model.LessonTemplate, error) {
	return s.templates.GetByID(ctx, id)
}

// CreateTemplateRequest — новый слот шаблона недели
type CreateTemplateRequest struct {
	StudentID       int64
	Weekday         time.Weekday
	StartHour       int
	StartMinute     int
	Subject         string
	LessonType      model.LessonType
	DurationMinutes int
	StartDate       *time.Time
	EndDate         *time.Time
}

// Create добавляет слот шаблона. Два слота одного ученика на одно и то же
// время недели не допускаются.
func (s *TemplateService) Create(ctx context.Context, req CreateTemplateRequest) (*model.LessonTemplate, error) {
	if err := validateSlotTime(req.Weekday, req.StartHour, req.StartMinute); err != nil {
		return nil, err
	}
	if err := validateValidity(req.StartDate, req.EndDate); err != nil {
		return nil, err
	}
	if req.LessonType == "" {
		req.LessonType = model.LessonTypeRegular
	}

	if _, err := s.students.GetByID(ctx, req.StudentID); err != nil {
		return nil, fmt.Errorf("get student: %w", err)
	}

	taken, err := s.templates.Exists(ctx, req.StudentID, req.Weekday, req.StartHour, req.StartMinute)
	if err != nil {
		return nil, fmt.Errorf("check template exists: %w", err)
	}
	if taken {
		return nil, fmt.Errorf("student %d already has a slot at this weekly time: %w",
			req.StudentID, model.ErrConflict)
	}

	t := &model.LessonTemplate{
		StudentID:       req.StudentID,
		Weekday:         req.Weekday,
		StartHour:       req.StartHour,
		StartMinute:     req.StartMinute,
		Subject:         req.Subject,
		LessonType:      req.LessonType,
		DurationMinutes: model.ClampDuration(req.DurationMinutes),
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
	}

	if err := s.templates.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("create template: %w", err)
	}

	s.logger.Info("Template slot created",
		zap.Int64("template_id", t.ID),
		zap.Int64("student_id", t.StudentID),
		zap.String("weekday", t.Weekday.String()),
		zap.Int("hour", t.StartHour),
		zap.Int("minute", t.StartMinute))

	return t, nil
}

// UpdateTemplateRequest — изменяемые поля слота. nil — поле не трогаем.
type UpdateTemplateRequest struct {
	Weekday         *time.Weekday
	StartHour       *int
	StartMinute     *int
	Subject         *string
	LessonType      *model.LessonType
	DurationMinutes *int
	StartDate       *time.Time
	EndDate         *time.Time
}

// Update изменяет слот шаблона. Уже материализованные уроки не трогаются:
// правка действует только на будущие развёртки.
func (s *TemplateService) Update(ctx context.Context, id int64, req UpdateTemplateRequest) (*model.LessonTemplate, error) {
	t, err := s.templates.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}

	if req.Weekday != nil {
		t.Weekday = *req.Weekday
	}
	if req.StartHour != nil {
		t.StartHour = *req.StartHour
	}
	if req.StartMinute != nil {
		t.StartMinute = *req.StartMinute
	}
	if err := validateSlotTime(t.Weekday, t.StartHour, t.StartMinute); err != nil {
		return nil, err
	}

	if req.Subject != nil {
		t.Subject = *req.Subject
	}
	if req.LessonType != nil {
		t.LessonType = *req.LessonType
	}
	if req.DurationMinutes != nil {
		t.DurationMinutes = model.ClampDuration(*req.DurationMinutes)
	}
	if req.StartDate != nil {
		t.StartDate = req.StartDate
	}
	if req.EndDate != nil {
		t.EndDate = req.EndDate
	}
	if err := validateValidity(t.StartDate, t.EndDate); err != nil {
		return nil, err
	}

	if err := s.templates.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("update template: %w", err)
	}

	return t, nil
}

// Delete удаляет слот шаблона вместе с его будущими запланированными
// уроками. Прошедшие, завершённые и отменённые уроки остаются как есть.
func (s *TemplateService) Delete(ctx context.Context, id int64) error {
	if _, err := s.templates.GetByID(ctx, id); err != nil {
		return fmt.Errorf("get template: %w", err)
	}

	if err := s.templates.DeleteWithFutureLessons(ctx, id, s.clock.Now()); err != nil {
		return fmt.Errorf("delete template: %w", err)
	}

	s.logger.Info("Template slot deleted with future lessons", zap.Int64("template_id", id))

	return nil
}

func validateSlotTime(weekday time.Weekday, hour, minute int) error {
	if weekday < time.Sunday || weekday > time.Saturday {
		return fmt.Errorf("invalid weekday %d: %w", weekday, model.ErrValidation)
	}
	if hour < 0 || hour > 23 {
		return fmt.Errorf("invalid start hour %d: %w", hour, model.ErrValidation)
	}
	if minute < 0 || minute > 59 {
		return fmt.Errorf("invalid start minute %d: %w", minute, model.ErrValidation)
	}
	return nil
}

func validateValidity(start, end *time.Time) error {
	if start != nil && end != nil && end.Before(*start) {
		return fmt.Errorf("template end date is before start date: %w", model.ErrValidation)
	}
	return nil
}
