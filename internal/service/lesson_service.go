package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kalendasha/kalendasha/internal/model"
)

// LessonService — жизненный цикл урока: scheduled -> completed по часам,
// ручные отмена/восстановление/перенос/удаление. Каждый переход,
// затрагивающий деньги, идёт вместе со своей записью журнала в одной
// транзакции хранилища.
type LessonService struct {
	lessons  LessonStore
	students StudentStore
	payments PaymentStore
	clock    Clock
	logger   *zap.Logger
}

// NewLessonService создаёт новый сервис
func NewLessonService(
	lessons LessonStore,
	students StudentStore,
	payments PaymentStore,
	clock Clock,
	logger *zap.Logger,
) *LessonService {
	return &LessonService{
		lessons:  lessons,
		students: students,
		payments: payments,
		clock:    clock,
		logger:   logger,
	}
}

// Transition — один переход урока, выполненный очисткой
type Transition struct {
	LessonID  uuid.UUID
	StudentID int64
	From      model.LessonStatus
	To        model.LessonStatus
	Charged   decimal.Decimal // 0 для пробных уроков
}

// RunSweep завершает все запланированные уроки, которые уже закончились
// к текущему моменту, и списывает оплату с баланса ученика. Пробные уроки
// завершаются бесплатно. Урок забирается условным обновлением
// (только из scheduled), поэтому параллельные и повторные прогоны не
// приводят к двойному списанию. Ошибка на одном уроке логируется и не
// прерывает остальные.
func (s *LessonService) RunSweep(ctx context.Context) ([]Transition, error) {
	now := s.clock.Now()

	due, err := s.lessons.ListDue(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("list due lessons: %w", err)
	}

	var transitions []Transition
	for _, l := range due {
		tr, err := s.completeDueLesson(ctx, l, now)
		if err != nil {
			s.logger.Error("Failed to complete lesson, skipping",
				zap.String("lesson_id", l.ID.String()),
				zap.Int64("student_id", l.StudentID),
				zap.Error(err))
			continue
		}
		if tr != nil {
			transitions = append(transitions, *tr)
		}
	}

	if len(transitions) > 0 {
		s.logger.Info("Lesson sweep completed",
			zap.Int("due", len(due)),
			zap.Int("completed", len(transitions)))
	}

	return transitions, nil
}

func (s *LessonService) completeDueLesson(ctx context.Context, l *model.Lesson, now time.Time) (*Transition, error) {
	var charge *model.Payment
	charged := decimal.Zero

	if l.LessonType != model.LessonTypeTrial {
		student, err := s.students.GetByID(ctx, l.StudentID)
		if err != nil {
			return nil, fmt.Errorf("get student: %w", err)
		}

		lessonID := l.ID
		studentID := l.StudentID
		charge = &model.Payment{
			ID:          uuid.New(),
			StudentID:   &studentID,
			Amount:      student.LessonPrice.Neg(),
			Type:        model.PaymentTypeExpense,
			Description: fmt.Sprintf("Оплата урока %s", l.ID),
			LessonID:    &lessonID,
			PaymentDate: now,
		}
		charged = student.LessonPrice
	}

	claimed, err := s.lessons.CompleteWithCharge(ctx, l.ID, charge)
	if err != nil {
		return nil, fmt.Errorf("complete lesson: %w", err)
	}
	if !claimed {
		// урок успел уйти из scheduled (параллельная очистка или ручное действие)
		return nil, nil
	}

	return &Transition{
		LessonID:  l.ID,
		StudentID: l.StudentID,
		From:      model.LessonStatusScheduled,
		To:        model.LessonStatusCompleted,
		Charged:   charged,
	}, nil
}

// CreateLessonRequest — разовый урок вне шаблона
type CreateLessonRequest struct {
	StudentID       int64
	StartTime       time.Time
	DurationMinutes int
	Subject         string
	LessonType      model.LessonType
}

// Create добавляет разовый урок (в том числе пробный)
func (s *LessonService) Create(ctx context.Context, req CreateLessonRequest) (*model.Lesson, error) {
	if req.StartTime.IsZero() {
		return nil, fmt.Errorf("start time is required: %w", model.ErrValidation)
	}
	if req.LessonType == "" {
		req.LessonType = model.LessonTypeRegular
	}

	if _, err := s.students.GetByID(ctx, req.StudentID); err != nil {
		return nil, fmt.Errorf("get student: %w", err)
	}

	lesson := &model.Lesson{
		ID:              uuid.New(),
		StudentID:       req.StudentID,
		StartTime:       req.StartTime,
		DurationMinutes: model.ClampDuration(req.DurationMinutes),
		Subject:         req.Subject,
		Status:          model.LessonStatusScheduled,
		LessonType:      req.LessonType,
		OriginalStart:   req.StartTime,
	}

	if err := s.lessons.Create(ctx, lesson); err != nil {
		return nil, fmt.Errorf("create lesson: %w", err)
	}

	s.logger.Info("Lesson created",
		zap.String("lesson_id", lesson.ID.String()),
		zap.Int64("student_id", lesson.StudentID),
		zap.Time("start_time", lesson.StartTime),
		zap.String("lesson_type", string(lesson.LessonType)))

	return lesson, nil
}

// Get получает урок по ID
func (s *LessonService) Get(ctx context.Context, id uuid.UUID) (*model.Lesson, error) {
	return s.lessons.GetByID(ctx, id)
}

// ListSchedule получает расписание за период, опционально по одному ученику
func (s *LessonService) ListSchedule(ctx context.Context, studentID *int64, from, to time.Time) ([]*model.Lesson, error) {
	if !to.After(from) {
		return nil, fmt.Errorf("empty date range: %w", model.ErrValidation)
	}
	return s.lessons.List(ctx, studentID, from, to)
}

// Cancel отменяет урок. Если урок уже завершён и списан, сначала
// записывается возврат на сумму исходного списания (не по текущей цене —
// цена могла измениться) и снимается флаг оплаты. Отмена запланированного
// урока журнал не трогает.
func (s *LessonService) Cancel(ctx context.Context, id uuid.UUID) error {
	lesson, err := s.lessons.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get lesson: %w", err)
	}
	if lesson.Status == model.LessonStatusCancelled {
		return fmt.Errorf("lesson %s already cancelled: %w", id, model.ErrInvalidState)
	}

	refund, err := s.refundForCharged(ctx, lesson, "Возврат за отменённый урок")
	if err != nil {
		return err
	}

	if err := s.lessons.CancelWithRefund(ctx, id, refund); err != nil {
		return fmt.Errorf("cancel lesson: %w", err)
	}

	s.logger.Info("Lesson cancelled",
		zap.String("lesson_id", id.String()),
		zap.Bool("refunded", refund != nil))

	return nil
}

// Restore возвращает отменённый урок в расписание. Финансовых эффектов
// нет — зеркально отмене незавершённого урока.
func (s *LessonService) Restore(ctx context.Context, id uuid.UUID) error {
	lesson, err := s.lessons.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get lesson: %w", err)
	}
	if lesson.Status != model.LessonStatusCancelled {
		return fmt.Errorf("lesson %s is not cancelled: %w", id, model.ErrInvalidState)
	}

	if err := s.lessons.Restore(ctx, id); err != nil {
		return fmt.Errorf("restore lesson: %w", err)
	}

	s.logger.Info("Lesson restored", zap.String("lesson_id", id.String()))

	return nil
}

// EditLessonRequest — изменяемые поля урока. nil — поле не трогаем.
type EditLessonRequest struct {
	StudentID       *int64
	StartTime       *time.Time
	DurationMinutes *int
	Subject         *string
	MovedReason     string
}

// Edit изменяет урок. Перенос завершённого урока на будущее время
// трактуется как «урок пометили завершённым раньше времени»: списание
// возвращается, урок снова становится scheduled. Перенос на прошедшее
// время и правка запланированного урока — косметика без записей в журнал.
func (s *LessonService) Edit(ctx context.Context, id uuid.UUID, req EditLessonRequest) (*model.Lesson, error) {
	lesson, err := s.lessons.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get lesson: %w", err)
	}

	if req.StudentID != nil && *req.StudentID != lesson.StudentID {
		if _, err := s.students.GetByID(ctx, *req.StudentID); err != nil {
			return nil, fmt.Errorf("get student: %w", err)
		}
		lesson.StudentID = *req.StudentID
	}
	if req.StartTime != nil {
		if req.StartTime.IsZero() {
			return nil, fmt.Errorf("start time is required: %w", model.ErrValidation)
		}
		lesson.StartTime = *req.StartTime
	}
	if req.DurationMinutes != nil {
		lesson.DurationMinutes = model.ClampDuration(*req.DurationMinutes)
	}
	if req.Subject != nil {
		lesson.Subject = *req.Subject
	}

	lesson.IsMoved = !lesson.StartTime.Equal(lesson.OriginalStart)
	if lesson.IsMoved && req.MovedReason != "" {
		lesson.MovedReason = req.MovedReason
	}

	now := s.clock.Now()
	if lesson.Status == model.LessonStatusCompleted && lesson.StartTime.After(now) {
		refund, err := s.refundForCharged(ctx, lesson, "Возврат за перенесённый урок")
		if err != nil {
			return nil, err
		}

		lesson.Status = model.LessonStatusScheduled
		lesson.IsPaid = false

		if err := s.lessons.RescheduleWithRefund(ctx, lesson, refund); err != nil {
			return nil, fmt.Errorf("reschedule lesson: %w", err)
		}

		s.logger.Info("Completed lesson moved to the future, charge reversed",
			zap.String("lesson_id", id.String()),
			zap.Time("new_start", lesson.StartTime),
			zap.Bool("refunded", refund != nil))

		return lesson, nil
	}

	if err := s.lessons.Update(ctx, lesson); err != nil {
		return nil, fmt.Errorf("update lesson: %w", err)
	}

	return lesson, nil
}

// Delete окончательно удаляет урок. Связанные записи журнала намеренно
// не откатываются: журнал append-only. Чтобы вернуть деньги, урок сначала
// отменяют (возврат), потом удаляют.
func (s *LessonService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.lessons.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete lesson: %w", err)
	}

	s.logger.Info("Lesson deleted", zap.String("lesson_id", id.String()))

	return nil
}

// refundForCharged готовит возврат для завершённого списанного урока.
// Сумма возврата — величина последнего непогашенного списания по этому
// уроку. Завершённый оплаченный урок без такого списания — рассинхрон
// журнала: сообщаем, не чиним.
func (s *LessonService) refundForCharged(ctx context.Context, lesson *model.Lesson, description string) (*model.Payment, error) {
	if lesson.Status != model.LessonStatusCompleted || !lesson.IsPaid {
		if lesson.Status == model.LessonStatusCompleted &&
			lesson.LessonType != model.LessonTypeTrial && !lesson.IsPaid {
			s.logger.Warn("Completed lesson was never charged",
				zap.String("lesson_id", lesson.ID.String()),
				zap.Int64("student_id", lesson.StudentID))
		}
		return nil, nil
	}

	charge, err := s.payments.LastUnreversedCharge(ctx, lesson.ID)
	if err != nil {
		return nil, fmt.Errorf("find lesson charge: %w", err)
	}
	if charge == nil {
		return nil, fmt.Errorf("lesson %s is paid but has no outstanding charge: %w",
			lesson.ID, model.ErrLedgerInconsistency)
	}

	// Возврат идёт тому, с кого списали. Урок к этому моменту может быть
	// переписан на другого ученика, поэтому берём ученика из самого
	// списания, а не из урока.
	refundStudent := lesson.StudentID
	if charge.StudentID != nil {
		refundStudent = *charge.StudentID
	}

	lessonID := lesson.ID
	return &model.Payment{
		ID:          uuid.New(),
		StudentID:   &refundStudent,
		Amount:      charge.Amount.Abs(),
		Type:        model.PaymentTypeRefund,
		Description: fmt.Sprintf("%s %s", description, lesson.ID),
		LessonID:    &lessonID,
		PaymentDate: s.clock.Now(),
	}, nil
}
