package model

import (
	"time"

	"github.com/google/uuid"
)

type LessonStatus string

const (
	LessonStatusScheduled LessonStatus = "scheduled"
	LessonStatusCompleted LessonStatus = "completed"
	LessonStatusCancelled LessonStatus = "cancelled"
)

// Lesson представляет конкретный урок с датой и временем.
// OriginalStart — неизменяемый якорь: дата и время, на которые урок был
// создан изначально. По нему дедуплицируется материализация шаблона и
// определяется, что урок был перенесён.
type Lesson struct {
	ID              uuid.UUID    `json:"id"`
	StudentID       int64        `json:"student_id"`
	StartTime       time.Time    `json:"start_time"`
	DurationMinutes int          `json:"duration_minutes"`
	Subject         string       `json:"subject"`
	Status          LessonStatus `json:"status"`
	LessonType      LessonType   `json:"lesson_type"`
	FromTemplate    bool         `json:"from_template"`
	TemplateID      *int64       `json:"template_id"` // слот шаблона, породивший урок; nil для разовых
	OriginalStart   time.Time    `json:"original_start"`
	IsMoved         bool         `json:"is_moved"`
	MovedReason     string       `json:"moved_reason"`
	IsPaid          bool         `json:"is_paid"`
	CreatedAt       time.Time    `json:"created_at"`

	// Заполняется при чтении для удобства (не из таблицы уроков)
	StudentName string `json:"student_name,omitempty"`
}

// EndTime возвращает момент окончания урока.
func (l *Lesson) EndTime() time.Time {
	return l.StartTime.Add(time.Duration(l.DurationMinutes) * time.Minute)
}

// IsDue сообщает, должен ли запланированный урок уже закончиться к моменту now.
func (l *Lesson) IsDue(now time.Time) bool {
	return l.Status == LessonStatusScheduled && !now.Before(l.EndTime())
}
