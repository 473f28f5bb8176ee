package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kalendasha/kalendasha/internal/model"
)

// StudentService управляет карточками учеников
type StudentService struct {
	students StudentStore
	lessons  LessonStore
	clock    Clock
	logger   *zap.Logger
}

// NewStudentService создаёт новый сервис
func NewStudentService(
	students StudentStore,
	lessons LessonStore,
	clock Clock,
	logger *zap.Logger,
) *StudentService {
	return &StudentService{
		students: students,
		lessons:  lessons,
		clock:    clock,
		logger:   logger,
	}
}

// List перечисляет всех учеников
func (s *StudentService) List(ctx context.Context) ([]*model.Student, error) {
	return s.students.List(ctx)
}

// Get получает ученика по ID
func (s *StudentService) Get(ctx context.Context, id int64) (*model.Student, error) {
	return s.students.GetByID(ctx, id)
}

// CreateStudentRequest — данные новой карточки ученика
type CreateStudentRequest struct {
	Name        string
	ClassLevel  string
	City        string
	Timezone    string
	ParentName  string
	Contact     string
	Notes       string
	LessonPrice decimal.Decimal
}

// Create добавляет ученика
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*model.Student, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("student name is required: %w", model.ErrValidation)
	}
	if req.LessonPrice.IsNegative() {
		return nil, fmt.Errorf("lesson price must not be negative: %w", model.ErrValidation)
	}

	student := &model.Student{
		Name:        name,
		ClassLevel:  req.ClassLevel,
		City:        req.City,
		Timezone:    req.Timezone,
		ParentName:  strings.TrimSpace(req.ParentName),
		Contact:     req.Contact,
		Notes:       req.Notes,
		LessonPrice: req.LessonPrice,
	}

	if err := s.students.Create(ctx, student); err != nil {
		return nil, fmt.Errorf("create student: %w", err)
	}

	s.logger.Info("Student created",
		zap.Int64("student_id", student.ID),
		zap.String("name", student.Name))

	return student, nil
}

// UpdateStudentRequest — изменяемые поля карточки. nil — поле не трогаем.
// Смена цены действует только на будущие списания, прошлые записи журнала
// не пересчитываются.
type UpdateStudentRequest struct {
	Name        *string
	ClassLevel  *string
	City        *string
	Timezone    *string
	ParentName  *string
	Contact     *string
	Notes       *string
	LessonPrice *decimal.Decimal
}

// Update изменяет карточку ученика. Смена parent_name сразу меняет
// принадлежность к семье: состав семей вычисляется, а не хранится.
func (s *StudentService) Update(ctx context.Context, id int64, req UpdateStudentRequest) (*model.Student, error) {
	student, err := s.students.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get student: %w", err)
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("student name is required: %w", model.ErrValidation)
		}
		student.Name = name
	}
	if req.ClassLevel != nil {
		student.ClassLevel = *req.ClassLevel
	}
	if req.City != nil {
		student.City = *req.City
	}
	if req.Timezone != nil {
		student.Timezone = *req.Timezone
	}
	if req.ParentName != nil {
		student.ParentName = strings.TrimSpace(*req.ParentName)
	}
	if req.Contact != nil {
		student.Contact = *req.Contact
	}
	if req.Notes != nil {
		student.Notes = *req.Notes
	}
	if req.LessonPrice != nil {
		if req.LessonPrice.IsNegative() {
			return nil, fmt.Errorf("lesson price must not be negative: %w", model.ErrValidation)
		}
		student.LessonPrice = *req.LessonPrice
	}

	if err := s.students.Update(ctx, student); err != nil {
		return nil, fmt.Errorf("update student: %w", err)
	}

	return student, nil
}

// Delete удаляет ученика вместе с его шаблонами, уроками и журналом
// одной транзакцией. Возвратов при этом не делается: удаление — не отмена.
func (s *StudentService) Delete(ctx context.Context, id int64) error {
	if _, err := s.students.GetByID(ctx, id); err != nil {
		return fmt.Errorf("get student: %w", err)
	}

	if err := s.students.DeleteCascade(ctx, id); err != nil {
		return fmt.Errorf("delete student: %w", err)
	}

	s.logger.Info("Student deleted with lessons and ledger", zap.Int64("student_id", id))

	return nil
}

// StudentWidget — показатели карточки ученика за текущий месяц
type StudentWidget struct {
	CompletedTotal   int `json:"completed_total"`
	CancelledTotal   int `json:"cancelled_total"`
	PlannedThisMonth int `json:"planned_this_month"`
}

// Widget считает показатели карточки на текущий месяц
func (s *StudentService) Widget(ctx context.Context, id int64) (*StudentWidget, error) {
	if _, err := s.students.GetByID(ctx, id); err != nil {
		return nil, fmt.Errorf("get student: %w", err)
	}

	now := s.clock.Now()
	completed, cancelled, planned, err := s.lessons.WidgetStats(ctx, id, now.Year(), now.Month())
	if err != nil {
		return nil, fmt.Errorf("widget stats: %w", err)
	}

	return &StudentWidget{
		CompletedTotal:   completed,
		CancelledTotal:   cancelled,
		PlannedThisMonth: planned,
	}, nil
}
