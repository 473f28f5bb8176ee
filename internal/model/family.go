package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// MinFamilySize — минимальное число детей с общим parent_name,
// при котором группа считается семьёй.
const MinFamilySize = 2

// Family — вычисляемая группа учеников с общим родителем.
// Состав не хранится: группировка пересчитывается на каждом запросе,
// поэтому переименование parent_name сразу меняет членство.
type Family struct {
	ParentName string     `json:"parent_name"`
	Children   []*Student `json:"children"`
}

// FamilyBalance — кешируемый агрегат семейного баланса.
// Семейные пополнения не относятся ни к одному из детей; это единственный
// баланс в системе, который хранится, а не выводится суммированием по ученику.
type FamilyBalance struct {
	ParentName string          `json:"parent_name"`
	Balance    decimal.Decimal `json:"family_balance"`
	TotalPaid  decimal.Decimal `json:"total_family_paid"`
	TotalSpent decimal.Decimal `json:"total_family_spent"`
	CreatedAt  time.Time       `json:"created_at"`
}
