package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kalendasha/kalendasha/internal/model"
)

// FamilyService — семьи: группы из двух и более учеников с общим
// parent_name. Состав всегда вычисляется заново, семейный баланс —
// отдельный агрегат, не сводимый к детским балансам.
type FamilyService struct {
	families FamilyStore
	students StudentStore
	clock    Clock
	logger   *zap.Logger
}

// NewFamilyService создаёт новый сервис
func NewFamilyService(
	families FamilyStore,
	students StudentStore,
	clock Clock,
	logger *zap.Logger,
) *FamilyService {
	return &FamilyService{
		families: families,
		students: students,
		clock:    clock,
		logger:   logger,
	}
}

// ListFamilies перечисляет все семьи
func (s *FamilyService) ListFamilies(ctx context.Context) ([]*model.Family, error) {
	return s.families.ListFamilies(ctx)
}

// Members отдаёт детей семьи. Группа меньше двух детей семьёй не считается.
func (s *FamilyService) Members(ctx context.Context, parentName string) ([]*model.Student, error) {
	children, err := s.students.ListByParentName(ctx, parentName)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	if len(children) < model.MinFamilySize {
		return nil, fmt.Errorf("family %q: %w", parentName, model.ErrNotFound)
	}
	return children, nil
}

// Balance отдаёт семейный агрегат. Семья без единого пополнения получает
// нулевой баланс, запись в хранилище при этом не создаётся. В отличие от
// пополнения, чтению не нужна полная семья: агрегат остаётся читаемым,
// даже если детей осталось меньше двух.
func (s *FamilyService) Balance(ctx context.Context, parentName string) (*model.FamilyBalance, error) {
	children, err := s.students.ListByParentName(ctx, parentName)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	if len(children) == 0 {
		return nil, fmt.Errorf("family %q: %w", parentName, model.ErrNotFound)
	}

	b, err := s.families.GetBalance(ctx, parentName)
	if err != nil {
		return nil, fmt.Errorf("get family balance: %w", err)
	}
	if b == nil {
		return &model.FamilyBalance{
			ParentName: parentName,
			Balance:    decimal.Zero,
			TotalPaid:  decimal.Zero,
			TotalSpent: decimal.Zero,
		}, nil
	}

	return b, nil
}

// Deposit пополняет семейный баланс. Запись в журнале не привязана
// ни к одному ребёнку: семейные деньги общие.
func (s *FamilyService) Deposit(ctx context.Context, parentName string, amount decimal.Decimal, comment string) (*model.Payment, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("deposit amount must be positive: %w", model.ErrValidation)
	}
	if _, err := s.Members(ctx, parentName); err != nil {
		return nil, err
	}

	description := fmt.Sprintf("СЕМЬЯ: %s", parentName)
	if c := strings.TrimSpace(comment); c != "" {
		description = fmt.Sprintf("СЕМЬЯ: %s - %s", parentName, c)
	}

	p := &model.Payment{
		ID:          uuid.New(),
		Amount:      amount,
		Type:        model.PaymentTypeFamily,
		Description: description,
		PaymentDate: s.clock.Now(),
	}

	if err := s.families.AddPayment(ctx, parentName, p); err != nil {
		return nil, fmt.Errorf("add family payment: %w", err)
	}

	s.logger.Info("Family deposit recorded",
		zap.String("parent_name", parentName),
		zap.String("amount", amount.String()))

	return p, nil
}
