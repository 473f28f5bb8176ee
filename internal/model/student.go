package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Student представляет ученика репетитора
type Student struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	ClassLevel  string          `json:"class_level"` // класс/уровень, свободный текст ("7 класс", "ОГЭ")
	City        string          `json:"city"`
	Timezone    string          `json:"timezone"`    // код пояса ("МСК", "ЕКБ", "UTC+5")
	ParentName  string          `json:"parent_name"` // ключ группировки в семью, может быть пустым
	Contact     string          `json:"contact"`
	Notes       string          `json:"notes"`
	LessonPrice decimal.Decimal `json:"lesson_price"` // стоимость одного обычного урока
	CreatedAt   time.Time       `json:"created_at"`
}
