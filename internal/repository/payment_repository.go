package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kalendasha/kalendasha/internal/model"
	"github.com/kalendasha/kalendasha/internal/repository/base"
)

// PaymentRepository управляет журналом платежей. Журнал append-only:
// здесь нет Update, а Delete существует только как обнуление баланса
// ученика целиком (явное админское действие).
type PaymentRepository struct {
	*base.Repository
	logger *zap.Logger
}

// NewPaymentRepository создаёт новый репозиторий
func NewPaymentRepository(pool *pgxpool.Pool, logger *zap.Logger) *PaymentRepository {
	return &PaymentRepository{
		Repository: base.NewRepository(pool),
		logger:     logger,
	}
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// insertPayment пишет запись журнала через пул или открытую транзакцию.
// Используется и репозиторием уроков, чтобы списание коммитилось вместе
// со сменой статуса.
func insertPayment(ctx context.Context, db execer, p *model.Payment) error {
	query := `
		INSERT INTO payments (id, student_id, amount, payment_type, description, lesson_id, payment_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := db.Exec(ctx, query,
		p.ID, p.StudentID, p.Amount, p.Type, p.Description, p.LessonID, p.PaymentDate)
	if err != nil {
		return fmt.Errorf("insert payment: %w", base.Translate(err))
	}
	return nil
}

// Create добавляет запись в журнал платежей
func (r *PaymentRepository) Create(ctx context.Context, p *model.Payment) error {
	return insertPayment(ctx, r.Pool(), p)
}

const paymentColumns = `id, student_id, amount, payment_type, description, lesson_id, payment_date, created_at`

func scanPayment(row pgx.Row) (*model.Payment, error) {
	p := &model.Payment{}
	err := row.Scan(
		&p.ID,
		&p.StudentID,
		&p.Amount,
		&p.Type,
		&p.Description,
		&p.LessonID,
		&p.PaymentDate,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListByStudent получает историю платежей ученика, новые первыми.
// limit <= 0 — без ограничения.
func (r *PaymentRepository) ListByStudent(ctx context.Context, studentID int64, limit int) ([]*model.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE student_id = $1
		ORDER BY payment_date DESC, created_at DESC
	`
	args := []any{studentID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", base.Translate(err))
	}
	defer rows.Close()

	var payments []*model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, p)
	}

	return payments, rows.Err()
}

// StudentTotals считает баланс ученика суммированием журнала.
// Никакого хранимого баланса по ученику нет.
func (r *PaymentRepository) StudentTotals(ctx context.Context, studentID int64) (balance, totalPaid, totalSpent decimal.Decimal, err error) {
	query := `
		SELECT COALESCE(SUM(amount), 0),
		       COALESCE(SUM(amount) FILTER (WHERE amount > 0), 0),
		       COALESCE(SUM(-amount) FILTER (WHERE amount < 0), 0)
		FROM payments
		WHERE student_id = $1
	`

	err = r.Pool().QueryRow(ctx, query, studentID).Scan(&balance, &totalPaid, &totalSpent)
	if err != nil {
		return decimal.Zero, decimal.Zero, decimal.Zero,
			fmt.Errorf("student totals: %w", base.Translate(err))
	}

	return balance, totalPaid, totalSpent, nil
}

// LastUnreversedCharge возвращает последнее списание за урок, у которого
// ещё нет парного возврата. nil — все списания уже возвращены или их не было.
func (r *PaymentRepository) LastUnreversedCharge(ctx context.Context, lessonID uuid.UUID) (*model.Payment, error) {
	outstanding := `
		SELECT count(*) FILTER (WHERE payment_type = 'expense')
		     - count(*) FILTER (WHERE payment_type = 'refund')
		FROM payments
		WHERE lesson_id = $1
	`

	var diff int
	if err := r.Pool().QueryRow(ctx, outstanding, lessonID).Scan(&diff); err != nil {
		return nil, fmt.Errorf("count lesson charges: %w", base.Translate(err))
	}
	if diff <= 0 {
		return nil, nil
	}

	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE lesson_id = $1 AND payment_type = 'expense'
		ORDER BY created_at DESC
		LIMIT 1
	`

	p, err := scanPayment(r.Pool().QueryRow(ctx, query, lessonID))
	if err != nil {
		return nil, fmt.Errorf("get lesson charge: %w", base.Translate(err))
	}

	return p, nil
}

// Overview считает сводку по всем ученикам одним запросом
func (r *PaymentRepository) Overview(ctx context.Context) (*model.FinancialOverview, error) {
	var o model.FinancialOverview

	totals := `
		SELECT COALESCE(SUM(amount), 0)
		FROM payments
		WHERE student_id IS NOT NULL
	`
	if err := r.Pool().QueryRow(ctx, totals).Scan(&o.TotalBalance); err != nil {
		return nil, fmt.Errorf("overview totals: %w", base.Translate(err))
	}

	if o.TotalBalance.IsPositive() {
		o.TotalPrepaid = o.TotalBalance
	} else {
		o.TotalDebt = o.TotalBalance.Neg()
	}

	perStudent := `
		SELECT count(*) FILTER (WHERE balance > 0),
		       count(*) FILTER (WHERE balance < 0)
		FROM (
			SELECT student_id, SUM(amount) AS balance
			FROM payments
			WHERE student_id IS NOT NULL
			GROUP BY student_id
		) balances
	`
	if err := r.Pool().QueryRow(ctx, perStudent).Scan(
		&o.StudentsWithPositiveBalance, &o.StudentsWithNegativeBalance); err != nil {
		return nil, fmt.Errorf("overview per-student: %w", base.Translate(err))
	}

	return &o, nil
}

// DeleteByStudent удаляет все записи ученика из журнала.
// Единственный путь удаления: явное обнуление баланса администратором.
func (r *PaymentRepository) DeleteByStudent(ctx context.Context, studentID int64) error {
	_, err := r.Pool().Exec(ctx, `DELETE FROM payments WHERE student_id = $1`, studentID)
	if err != nil {
		return fmt.Errorf("delete payments: %w", base.Translate(err))
	}

	r.logger.Warn("Student payment history deleted",
		zap.Int64("student_id", studentID))

	return nil
}
