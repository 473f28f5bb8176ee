package model

import "time"

type LessonType string

const (
	LessonTypeRegular LessonType = "regular"
	LessonTypeTrial   LessonType = "trial" // пробный урок, не списывается с баланса
)

// Границы длительности урока в минутах.
const (
	MinLessonDuration     = 10
	MaxLessonDuration     = 300
	DefaultLessonDuration = 60
)

// LessonTemplate представляет урок в шаблоне недели.
// Изменение шаблона никогда не затрагивает уже созданные по нему уроки.
type LessonTemplate struct {
	ID              int64        `json:"id"`
	StudentID       int64        `json:"student_id"`
	Weekday         time.Weekday `json:"weekday"`      // 0 = Sunday, 6 = Saturday
	StartHour       int          `json:"start_hour"`   // 0-23
	StartMinute     int          `json:"start_minute"` // 0-59
	Subject         string       `json:"subject"`
	LessonType      LessonType   `json:"lesson_type"`
	DurationMinutes int          `json:"duration_minutes"`
	StartDate       *time.Time   `json:"start_date"` // начало периода действия, nil = с сегодня
	EndDate         *time.Time   `json:"end_date"`   // конец периода действия, nil = открытый
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`

	// Заполняется при чтении для удобства (не из таблицы шаблонов)
	StudentName string `json:"student_name,omitempty"`
}

// ClampDuration приводит длительность к допустимому диапазону.
// Значения вне диапазона заменяются дефолтом либо максимумом, как в исходных формах.
func ClampDuration(minutes int) int {
	if minutes < MinLessonDuration {
		return DefaultLessonDuration
	}
	if minutes > MaxLessonDuration {
		return MaxLessonDuration
	}
	return minutes
}
