package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kalendasha/kalendasha/internal/model"
)

// LedgerService — журнал платежей и производные балансы. Баланс ученика
// нигде не хранится: это всегда сумма его записей журнала.
type LedgerService struct {
	payments PaymentStore
	students StudentStore
	lessons  LessonStore
	clock    Clock
	logger   *zap.Logger
}

// NewLedgerService создаёт новый сервис
func NewLedgerService(
	payments PaymentStore,
	students StudentStore,
	lessons LessonStore,
	clock Clock,
	logger *zap.Logger,
) *LedgerService {
	return &LedgerService{
		payments: payments,
		students: students,
		lessons:  lessons,
		clock:    clock,
		logger:   logger,
	}
}

// RecordPayment добавляет ручную запись в журнал ученика: пополнение
// (amount > 0) или корректировку (amount < 0). Нулевая сумма — ошибка
// валидации, а не тихая no-op запись.
func (s *LedgerService) RecordPayment(ctx context.Context, studentID int64, amount decimal.Decimal, description string) (*model.Payment, error) {
	if amount.IsZero() {
		return nil, fmt.Errorf("payment amount must be non-zero: %w", model.ErrValidation)
	}

	if _, err := s.students.GetByID(ctx, studentID); err != nil {
		return nil, fmt.Errorf("get student: %w", err)
	}

	paymentType := model.PaymentTypePayment
	if amount.IsNegative() {
		paymentType = model.PaymentTypeExpense
	}

	p := &model.Payment{
		ID:          uuid.New(),
		StudentID:   &studentID,
		Amount:      amount,
		Type:        paymentType,
		Description: description,
		PaymentDate: s.clock.Now(),
	}

	if err := s.payments.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}

	s.logger.Info("Payment recorded",
		zap.Int64("student_id", studentID),
		zap.String("amount", amount.String()),
		zap.String("type", string(paymentType)))

	return p, nil
}

// Balance считает финансовую сводку ученика суммированием журнала
func (s *LedgerService) Balance(ctx context.Context, studentID int64) (*model.StudentBalance, error) {
	student, err := s.students.GetByID(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("get student: %w", err)
	}

	balance, totalPaid, totalSpent, err := s.payments.StudentTotals(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("student totals: %w", err)
	}

	lessonsTaken, err := s.lessons.CountCompleted(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("count completed lessons: %w", err)
	}

	return &model.StudentBalance{
		Balance:      balance,
		LessonPrice:  student.LessonPrice,
		TotalPaid:    totalPaid,
		TotalSpent:   totalSpent,
		LessonsTaken: lessonsTaken,
	}, nil
}

// PaymentStats — виджет оплаты: сколько уроков оплачено вперёд и сколько
// проведено без списания. Второе в норме равно нулю; ненулевое значение —
// признак рассинхрона журнала с расписанием, о нём предупреждаем в логе.
func (s *LedgerService) PaymentStats(ctx context.Context, studentID int64) (*model.PaymentStats, error) {
	student, err := s.students.GetByID(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("get student: %w", err)
	}

	balance, _, _, err := s.payments.StudentTotals(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("student totals: %w", err)
	}

	lessonsInStock := 0
	if balance.IsPositive() && student.LessonPrice.IsPositive() {
		lessonsInStock = int(balance.Div(student.LessonPrice).IntPart())
	}

	unpaid, err := s.lessons.CountUnpaid(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("count unpaid lessons: %w", err)
	}
	if unpaid > 0 {
		s.logger.Warn("Student has completed lessons without a charge",
			zap.Int64("student_id", studentID),
			zap.Int("unpaid_lessons", unpaid))
	}

	return &model.PaymentStats{
		LessonsInStock: lessonsInStock,
		UnpaidLessons:  unpaid,
		LessonPrice:    student.LessonPrice,
	}, nil
}

// History отдаёт последние записи журнала ученика, limit <= 0 — все
func (s *LedgerService) History(ctx context.Context, studentID int64, limit int) ([]*model.Payment, error) {
	if _, err := s.students.GetByID(ctx, studentID); err != nil {
		return nil, fmt.Errorf("get student: %w", err)
	}
	return s.payments.ListByStudent(ctx, studentID, limit)
}

// Overview — финансовая сводка по всем ученикам
func (s *LedgerService) Overview(ctx context.Context) (*model.FinancialOverview, error) {
	return s.payments.Overview(ctx)
}

// ResetBalance стирает журнал ученика. Единственное исключение из
// append-only: явный ручной сброс истории, когда репетитор начинает
// учёт с чистого листа.
func (s *LedgerService) ResetBalance(ctx context.Context, studentID int64) error {
	if _, err := s.students.GetByID(ctx, studentID); err != nil {
		return fmt.Errorf("get student: %w", err)
	}

	if err := s.payments.DeleteByStudent(ctx, studentID); err != nil {
		return fmt.Errorf("delete payments: %w", err)
	}

	s.logger.Warn("Student ledger reset", zap.Int64("student_id", studentID))

	return nil
}
