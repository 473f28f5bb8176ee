package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/kalendasha/kalendasha/internal/model"
	"github.com/kalendasha/kalendasha/internal/repository/base"
)

// TemplateRepository управляет шаблоном недели в базе данных
type TemplateRepository struct {
	*base.Repository
	logger *zap.Logger
}

// NewTemplateRepository создаёт новый репозиторий
func NewTemplateRepository(pool *pgxpool.Pool, logger *zap.Logger) *TemplateRepository {
	return &TemplateRepository{
		Repository: base.NewRepository(pool),
		logger:     logger,
	}
}

const templateColumns = `lt.id, lt.student_id, lt.weekday, lt.start_hour, lt.start_minute,
	lt.subject, lt.lesson_type, lt.duration_minutes, lt.start_date, lt.end_date,
	lt.created_at, lt.updated_at, s.name`

func scanTemplate(row pgx.Row) (*model.LessonTemplate, error) {
	t := &model.LessonTemplate{}
	err := row.Scan(
		&t.ID,
		&t.StudentID,
		&t.Weekday,
		&t.StartHour,
		&t.StartMinute,
		&t.Subject,
		&t.LessonType,
		&t.DurationMinutes,
		&t.StartDate,
		&t.EndDate,
		&t.CreatedAt,
		&t.UpdatedAt,
		&t.StudentName,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Create создаёт новый урок в шаблоне недели
func (r *TemplateRepository) Create(ctx context.Context, t *model.LessonTemplate) error {
	query := `
		INSERT INTO lesson_templates (student_id, weekday, start_hour, start_minute, subject,
		                              lesson_type, duration_minutes, start_date, end_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`

	err := r.Pool().QueryRow(
		ctx,
		query,
		t.StudentID,
		t.Weekday,
		t.StartHour,
		t.StartMinute,
		t.Subject,
		t.LessonType,
		t.DurationMinutes,
		t.StartDate,
		t.EndDate,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create lesson template: %w", base.Translate(err))
	}

	return nil
}

// GetByID получает шаблон по ID
func (r *TemplateRepository) GetByID(ctx context.Context, id int64) (*model.LessonTemplate, error) {
	query := `
		SELECT ` + templateColumns + `
		FROM lesson_templates lt
		JOIN students s ON lt.student_id = s.id
		WHERE lt.id = $1
	`

	t, err := scanTemplate(r.Pool().QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get lesson template by id: %w", base.Translate(err))
	}

	return t, nil
}

// List получает весь шаблон недели, отсортированный по дню и времени.
// Понедельник идёт первым, как в недельной сетке.
func (r *TemplateRepository) List(ctx context.Context) ([]*model.LessonTemplate, error) {
	query := `
		SELECT ` + templateColumns + `
		FROM lesson_templates lt
		JOIN students s ON lt.student_id = s.id
		ORDER BY (lt.weekday + 6) % 7, lt.start_hour, lt.start_minute
	`

	rows, err := r.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list lesson templates: %w", base.Translate(err))
	}
	defer rows.Close()

	var templates []*model.LessonTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lesson template: %w", err)
		}
		templates = append(templates, t)
	}

	return templates, rows.Err()
}

// Exists проверяет, есть ли уже шаблон для ученика в этот день и время
func (r *TemplateRepository) Exists(ctx context.Context, studentID int64, weekday time.Weekday, hour, minute int) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM lesson_templates
			WHERE student_id = $1 AND weekday = $2 AND start_hour = $3 AND start_minute = $4
		)
	`

	var exists bool
	err := r.Pool().QueryRow(ctx, query, studentID, weekday, hour, minute).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check template exists: %w", base.Translate(err))
	}

	return exists, nil
}

// Update обновляет шаблон. Уже созданные по нему уроки не трогаются.
func (r *TemplateRepository) Update(ctx context.Context, t *model.LessonTemplate) error {
	query := `
		UPDATE lesson_templates
		SET student_id = $2, weekday = $3, start_hour = $4, start_minute = $5, subject = $6,
		    lesson_type = $7, duration_minutes = $8, start_date = $9, end_date = $10,
		    updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.Pool().QueryRow(
		ctx,
		query,
		t.ID,
		t.StudentID,
		t.Weekday,
		t.StartHour,
		t.StartMinute,
		t.Subject,
		t.LessonType,
		t.DurationMinutes,
		t.StartDate,
		t.EndDate,
	).Scan(&t.UpdatedAt)

	if err != nil {
		return fmt.Errorf("update lesson template: %w", base.Translate(err))
	}

	return nil
}

// DeleteWithFutureLessons удаляет шаблон и созданные по нему будущие
// запланированные уроки в одной транзакции. Прошедшие и завершённые
// уроки остаются — это история проведённых занятий.
func (r *TemplateRepository) DeleteWithFutureLessons(ctx context.Context, id int64, now time.Time) error {
	return r.InTx(ctx, func(tx pgx.Tx) error {
		cleanup := `
			DELETE FROM lessons
			WHERE template_id = $1
			  AND status = 'scheduled'
			  AND start_time > $2
		`
		if _, err := tx.Exec(ctx, cleanup, id, now); err != nil {
			return fmt.Errorf("delete template lessons: %w", base.Translate(err))
		}

		tag, err := tx.Exec(ctx, `DELETE FROM lesson_templates WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete lesson template: %w", base.Translate(err))
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("delete lesson template %d: %w", id, model.ErrNotFound)
		}
		return nil
	})
}
