package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kalendasha/kalendasha/internal/model"
)

// Интерфейсы хранилища, которыми пользуются сервисы. Реализуются
// pgx-репозиториями из internal/repository; в тестах — памятью.

// StudentStore хранит учеников
type StudentStore interface {
	Create(ctx context.Context, s *model.Student) error
	GetByID(ctx context.Context, id int64) (*model.Student, error)
	List(ctx context.Context) ([]*model.Student, error)
	ListByParentName(ctx context.Context, parentName string) ([]*model.Student, error)
	Update(ctx context.Context, s *model.Student) error
	DeleteCascade(ctx context.Context, id int64) error
}

// TemplateStore хранит шаблон недели
type TemplateStore interface {
	Create(ctx context.Context, t *model.LessonTemplate) error
	GetByID(ctx context.Context, id int64) (*model.LessonTemplate, error)
	List(ctx context.Context) ([]*model.LessonTemplate, error)
	Exists(ctx context.Context, studentID int64, weekday time.Weekday, hour, minute int) (bool, error)
	Update(ctx context.Context, t *model.LessonTemplate) error
	DeleteWithFutureLessons(ctx context.Context, id int64, now time.Time) error
}

// LessonStore хранит уроки. Методы со спаренной записью в журнал
// атомарны: смена статуса и платёж коммитятся вместе.
type LessonStore interface {
	Create(ctx context.Context, l *model.Lesson) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Lesson, error)
	List(ctx context.Context, studentID *int64, from, to time.Time) ([]*model.Lesson, error)
	ListDue(ctx context.Context, now time.Time) ([]*model.Lesson, error)
	ExistsByOriginalStart(ctx context.Context, studentID int64, originalStart time.Time) (bool, error)
	CompleteWithCharge(ctx context.Context, id uuid.UUID, charge *model.Payment) (bool, error)
	CancelWithRefund(ctx context.Context, id uuid.UUID, refund *model.Payment) error
	Restore(ctx context.Context, id uuid.UUID) error
	Update(ctx context.Context, l *model.Lesson) error
	RescheduleWithRefund(ctx context.Context, l *model.Lesson, refund *model.Payment) error
	Delete(ctx context.Context, id uuid.UUID) error
	CountCompleted(ctx context.Context, studentID int64) (int, error)
	CountUnpaid(ctx context.Context, studentID int64) (int, error)
	WidgetStats(ctx context.Context, studentID int64, year int, month time.Month) (completed, cancelled, plannedThisMonth int, err error)
}

// PaymentStore хранит журнал платежей
type PaymentStore interface {
	Create(ctx context.Context, p *model.Payment) error
	ListByStudent(ctx context.Context, studentID int64, limit int) ([]*model.Payment, error)
	StudentTotals(ctx context.Context, studentID int64) (balance, totalPaid, totalSpent decimal.Decimal, err error)
	LastUnreversedCharge(ctx context.Context, lessonID uuid.UUID) (*model.Payment, error)
	Overview(ctx context.Context) (*model.FinancialOverview, error)
	DeleteByStudent(ctx context.Context, studentID int64) error
}

// FamilyStore хранит семейные агрегаты
type FamilyStore interface {
	ListFamilies(ctx context.Context) ([]*model.Family, error)
	GetBalance(ctx context.Context, parentName string) (*model.FamilyBalance, error)
	AddPayment(ctx context.Context, parentName string, p *model.Payment) error
}
