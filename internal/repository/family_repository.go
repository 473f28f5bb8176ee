package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/kalendasha/kalendasha/internal/model"
	"github.com/kalendasha/kalendasha/internal/repository/base"
)

// FamilyRepository управляет семейными балансами. Состав семей не
// хранится — он каждый раз вычисляется группировкой учеников по
// parent_name; здесь лежит только кешируемый агрегат баланса.
type FamilyRepository struct {
	*base.Repository
	logger *zap.Logger
}

// NewFamilyRepository создаёт новый репозиторий
func NewFamilyRepository(pool *pgxpool.Pool, logger *zap.Logger) *FamilyRepository {
	return &FamilyRepository{
		Repository: base.NewRepository(pool),
		logger:     logger,
	}
}

// ListFamilies группирует учеников по непустому parent_name.
// Семьёй считается группа из двух и более детей.
func (r *FamilyRepository) ListFamilies(ctx context.Context) ([]*model.Family, error) {
	query := `
		SELECT ` + studentColumns + `
		FROM students
		WHERE parent_name <> ''
		ORDER BY parent_name, name
	`

	rows, err := r.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list family students: %w", base.Translate(err))
	}
	defer rows.Close()

	byParent := map[string]*model.Family{}
	var order []string
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		f, ok := byParent[s.ParentName]
		if !ok {
			f = &model.Family{ParentName: s.ParentName}
			byParent[s.ParentName] = f
			order = append(order, s.ParentName)
		}
		f.Children = append(f.Children, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list family students: %w", err)
	}

	var families []*model.Family
	for _, parent := range order {
		if f := byParent[parent]; len(f.Children) >= model.MinFamilySize {
			families = append(families, f)
		}
	}

	return families, nil
}

// GetBalance получает семейный агрегат. nil — у семьи ещё не было пополнений.
func (r *FamilyRepository) GetBalance(ctx context.Context, parentName string) (*model.FamilyBalance, error) {
	query := `
		SELECT parent_name, family_balance, total_family_paid, total_family_spent, created_at
		FROM families
		WHERE parent_name = $1
	`

	b := &model.FamilyBalance{}
	err := r.Pool().QueryRow(ctx, query, parentName).Scan(
		&b.ParentName,
		&b.Balance,
		&b.TotalPaid,
		&b.TotalSpent,
		&b.CreatedAt,
	)
	if base.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get family balance: %w", base.Translate(err))
	}

	return b, nil
}

// AddPayment записывает семейное пополнение и обновляет агрегат одной
// транзакцией, чтобы кеш не разошёлся с журналом. Запись в журнале
// идёт без student_id: семейные деньги не принадлежат конкретному ребёнку.
func (r *FamilyRepository) AddPayment(ctx context.Context, parentName string, p *model.Payment) error {
	return r.InTx(ctx, func(tx pgx.Tx) error {
		if err := insertPayment(ctx, tx, p); err != nil {
			return err
		}

		upsert := `
			INSERT INTO families (parent_name, family_balance, total_family_paid, total_family_spent)
			VALUES ($1, $2, $2, 0)
			ON CONFLICT (parent_name) DO UPDATE
			SET family_balance = families.family_balance + EXCLUDED.family_balance,
			    total_family_paid = families.total_family_paid + EXCLUDED.total_family_paid
		`
		if _, err := tx.Exec(ctx, upsert, parentName, p.Amount); err != nil {
			return fmt.Errorf("update family balance: %w", base.Translate(err))
		}
		return nil
	})
}
