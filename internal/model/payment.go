package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentType string

const (
	PaymentTypePayment PaymentType = "payment"        // пополнение баланса ученика
	PaymentTypeExpense PaymentType = "expense"        // списание за проведённый урок
	PaymentTypeRefund  PaymentType = "refund"         // возврат списания (отмена/перенос)
	PaymentTypeFamily  PaymentType = "family_payment" // пополнение семейного баланса
)

// Payment — запись в журнале платежей. Журнал append-only: записи не
// изменяются и не удаляются, баланс всегда считается суммированием.
// Исправления делаются обратной записью (refund), а не правкой истории.
type Payment struct {
	ID          uuid.UUID       `json:"id"`
	StudentID   *int64          `json:"student_id"` // nil для семейных пополнений
	Amount      decimal.Decimal `json:"amount"`     // > 0 пополнение, < 0 списание
	Type        PaymentType     `json:"type"`
	Description string          `json:"description"`
	LessonID    *uuid.UUID      `json:"lesson_id"` // урок, к которому привязано списание/возврат
	PaymentDate time.Time       `json:"payment_date"`
	CreatedAt   time.Time       `json:"created_at"`
}

// StudentBalance — производные финансовые показатели ученика.
// Считаются при чтении, нигде не хранятся.
type StudentBalance struct {
	Balance      decimal.Decimal `json:"balance"`
	LessonPrice  decimal.Decimal `json:"lesson_price"`
	TotalPaid    decimal.Decimal `json:"total_paid"`
	TotalSpent   decimal.Decimal `json:"total_spent"`
	LessonsTaken int             `json:"lessons_taken"`
}

// PaymentStats — виджетные показатели оплаты ученика.
type PaymentStats struct {
	LessonsInStock int             `json:"lessons_in_stock"` // оплачено вперёд, floor(balance/price)
	UnpaidLessons  int             `json:"unpaid_lessons"`   // проведено, но не списано — признак рассинхрона
	LessonPrice    decimal.Decimal `json:"lesson_price"`
}

// FinancialOverview — сводка по всем ученикам.
type FinancialOverview struct {
	TotalPrepaid                decimal.Decimal `json:"total_prepaid"`
	TotalDebt                   decimal.Decimal `json:"total_debt"`
	TotalBalance                decimal.Decimal `json:"total_balance"`
	StudentsWithPositiveBalance int             `json:"students_with_positive_balance"`
	StudentsWithNegativeBalance int             `json:"students_with_negative_balance"`
}
