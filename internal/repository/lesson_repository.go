package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/kalendasha/kalendasha/internal/model"
	"github.com/kalendasha/kalendasha/internal/repository/base"
)

// LessonRepository управляет уроками в базе данных.
// Методы, совмещающие смену статуса с записью в журнал платежей,
// выполняют обе записи в одной транзакции: урок не может оказаться
// завершённым без списания или списанным без завершения.
type LessonRepository struct {
	*base.Repository
	logger *zap.Logger
}

// NewLessonRepository создаёт новый репозиторий
func NewLessonRepository(pool *pgxpool.Pool, logger *zap.Logger) *LessonRepository {
	return &LessonRepository{
		Repository: base.NewRepository(pool),
		logger:     logger,
	}
}

const lessonColumns = `l.id, l.student_id, l.start_time, l.duration_minutes, l.subject,
	l.status, l.lesson_type, l.from_template, l.template_id, l.original_start,
	l.is_moved, l.moved_reason, l.is_paid, l.created_at, s.name`

func scanLesson(row pgx.Row) (*model.Lesson, error) {
	l := &model.Lesson{}
	err := row.Scan(
		&l.ID,
		&l.StudentID,
		&l.StartTime,
		&l.DurationMinutes,
		&l.Subject,
		&l.Status,
		&l.LessonType,
		&l.FromTemplate,
		&l.TemplateID,
		&l.OriginalStart,
		&l.IsMoved,
		&l.MovedReason,
		&l.IsPaid,
		&l.CreatedAt,
		&l.StudentName,
	)
	if err != nil {
		return nil, err
	}
	return l, nil
}

func scanLessons(rows pgx.Rows) ([]*model.Lesson, error) {
	defer rows.Close()

	var lessons []*model.Lesson
	for rows.Next() {
		l, err := scanLesson(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lesson: %w", err)
		}
		lessons = append(lessons, l)
	}
	return lessons, rows.Err()
}

// Create создаёт новый урок. Дубликат по (student_id, original_start)
// отклоняется уникальным индексом и возвращается как ErrConflict.
func (r *LessonRepository) Create(ctx context.Context, l *model.Lesson) error {
	query := `
		INSERT INTO lessons (id, student_id, start_time, duration_minutes, subject, status,
		                     lesson_type, from_template, template_id, original_start,
		                     is_moved, moved_reason, is_paid)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at
	`

	err := r.Pool().QueryRow(
		ctx,
		query,
		l.ID,
		l.StudentID,
		l.StartTime,
		l.DurationMinutes,
		l.Subject,
		l.Status,
		l.LessonType,
		l.FromTemplate,
		l.TemplateID,
		l.OriginalStart,
		l.IsMoved,
		l.MovedReason,
		l.IsPaid,
	).Scan(&l.CreatedAt)

	if err != nil {
		return fmt.Errorf("create lesson: %w", base.Translate(err))
	}

	return nil
}

// GetByID получает урок по ID
func (r *LessonRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Lesson, error) {
	query := `
		SELECT ` + lessonColumns + `
		FROM lessons l
		JOIN students s ON l.student_id = s.id
		WHERE l.id = $1
	`

	l, err := scanLesson(r.Pool().QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get lesson by id: %w", base.Translate(err))
	}

	return l, nil
}

// List получает уроки за период, опционально по одному ученику
func (r *LessonRepository) List(ctx context.Context, studentID *int64, from, to time.Time) ([]*model.Lesson, error) {
	query := `
		SELECT ` + lessonColumns + `
		FROM lessons l
		JOIN students s ON l.student_id = s.id
		WHERE l.start_time >= $1 AND l.start_time < $2
		  AND ($3::bigint IS NULL OR l.student_id = $3)
		ORDER BY l.start_time
	`

	rows, err := r.Pool().Query(ctx, query, from, to, studentID)
	if err != nil {
		return nil, fmt.Errorf("list lessons: %w", base.Translate(err))
	}

	return scanLessons(rows)
}

// ListDue получает запланированные уроки, которые уже должны были закончиться
func (r *LessonRepository) ListDue(ctx context.Context, now time.Time) ([]*model.Lesson, error) {
	query := `
		SELECT ` + lessonColumns + `
		FROM lessons l
		JOIN students s ON l.student_id = s.id
		WHERE l.status = 'scheduled'
		  AND l.start_time + l.duration_minutes * interval '1 minute' <= $1
		ORDER BY l.start_time
	`

	rows, err := r.Pool().Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("list due lessons: %w", base.Translate(err))
	}

	return scanLessons(rows)
}

// ExistsByOriginalStart проверяет, существует ли урок ученика с таким якорем.
// Это ключ дедупликации материализации.
func (r *LessonRepository) ExistsByOriginalStart(ctx context.Context, studentID int64, originalStart time.Time) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM lessons
			WHERE student_id = $1 AND original_start = $2
		)
	`

	var exists bool
	err := r.Pool().QueryRow(ctx, query, studentID, originalStart).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check lesson exists: %w", base.Translate(err))
	}

	return exists, nil
}

// CompleteWithCharge переводит урок в completed и записывает списание
// одной транзакцией. Условие status = 'scheduled' гарантирует не больше
// одного списания на урок: конкурентная очистка, успевшая первой, забирает
// урок, вторая получает claimed = false и ничего не пишет.
// charge == nil для пробных уроков (завершение без списания).
func (r *LessonRepository) CompleteWithCharge(ctx context.Context, id uuid.UUID, charge *model.Payment) (claimed bool, err error) {
	err = r.InTx(ctx, func(tx pgx.Tx) error {
		claim := `
			UPDATE lessons
			SET status = 'completed', is_paid = $2
			WHERE id = $1 AND status = 'scheduled'
		`

		tag, err := tx.Exec(ctx, claim, id, charge != nil)
		if err != nil {
			return fmt.Errorf("claim lesson: %w", base.Translate(err))
		}
		if tag.RowsAffected() == 0 {
			return nil // урок уже забрали или он не scheduled
		}

		if charge != nil {
			if err := insertPayment(ctx, tx, charge); err != nil {
				return fmt.Errorf("record charge: %w", err)
			}
		}

		claimed = true
		return nil
	})
	return claimed, err
}

// CancelWithRefund переводит урок в cancelled. Для уже списанного урока
// в той же транзакции записывается возврат и снимается флаг оплаты.
func (r *LessonRepository) CancelWithRefund(ctx context.Context, id uuid.UUID, refund *model.Payment) error {
	return r.InTx(ctx, func(tx pgx.Tx) error {
		query := `
			UPDATE lessons
			SET status = 'cancelled', is_paid = false
			WHERE id = $1 AND status <> 'cancelled'
		`

		tag, err := tx.Exec(ctx, query, id)
		if err != nil {
			return fmt.Errorf("cancel lesson: %w", base.Translate(err))
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("cancel lesson %s: %w", id, model.ErrInvalidState)
		}

		if refund != nil {
			if err := insertPayment(ctx, tx, refund); err != nil {
				return fmt.Errorf("record refund: %w", err)
			}
		}
		return nil
	})
}

// Restore возвращает отменённый урок в расписание. Без финансовых эффектов.
func (r *LessonRepository) Restore(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE lessons
		SET status = 'scheduled'
		WHERE id = $1 AND status = 'cancelled'
	`

	tag, err := r.Pool().Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("restore lesson: %w", base.Translate(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("restore lesson %s: %w", id, model.ErrInvalidState)
	}

	return nil
}

// Update сохраняет изменённые поля урока без записей в журнал платежей
func (r *LessonRepository) Update(ctx context.Context, l *model.Lesson) error {
	tag, err := r.Pool().Exec(ctx, updateLessonQuery,
		l.ID, l.StudentID, l.StartTime, l.DurationMinutes, l.Subject,
		l.Status, l.IsMoved, l.MovedReason, l.IsPaid)
	if err != nil {
		return fmt.Errorf("update lesson: %w", base.Translate(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update lesson %s: %w", l.ID, model.ErrNotFound)
	}

	return nil
}

// RescheduleWithRefund сохраняет перенос завершённого урока в будущее:
// поля и статус обновляются, возврат списания записывается — всё одной
// транзакцией.
func (r *LessonRepository) RescheduleWithRefund(ctx context.Context, l *model.Lesson, refund *model.Payment) error {
	return r.InTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, updateLessonQuery,
			l.ID, l.StudentID, l.StartTime, l.DurationMinutes, l.Subject,
			l.Status, l.IsMoved, l.MovedReason, l.IsPaid)
		if err != nil {
			return fmt.Errorf("reschedule lesson: %w", base.Translate(err))
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("reschedule lesson %s: %w", l.ID, model.ErrNotFound)
		}

		if refund != nil {
			if err := insertPayment(ctx, tx, refund); err != nil {
				return fmt.Errorf("record refund: %w", err)
			}
		}
		return nil
	})
}

const updateLessonQuery = `
	UPDATE lessons
	SET student_id = $2, start_time = $3, duration_minutes = $4, subject = $5,
	    status = $6, is_moved = $7, moved_reason = $8, is_paid = $9
	WHERE id = $1
`

// Delete окончательно удаляет урок. Записи журнала платежей не трогаются:
// журнал append-only, история списаний и возвратов сохраняется.
func (r *LessonRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.Pool().Exec(ctx, `DELETE FROM lessons WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete lesson: %w", base.Translate(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete lesson %s: %w", id, model.ErrNotFound)
	}

	return nil
}

// CountCompleted считает проведённые уроки ученика
func (r *LessonRepository) CountCompleted(ctx context.Context, studentID int64) (int, error) {
	query := `SELECT count(*) FROM lessons WHERE student_id = $1 AND status = 'completed'`

	var count int
	if err := r.Pool().QueryRow(ctx, query, studentID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count completed lessons: %w", base.Translate(err))
	}

	return count, nil
}

// CountUnpaid считает завершённые непробные уроки без списания.
// В норме ноль; больше нуля — рассинхрон журнала и жизненного цикла.
func (r *LessonRepository) CountUnpaid(ctx context.Context, studentID int64) (int, error) {
	query := `
		SELECT count(*) FROM lessons
		WHERE student_id = $1
		  AND status = 'completed'
		  AND is_paid = false
		  AND lesson_type <> 'trial'
	`

	var count int
	if err := r.Pool().QueryRow(ctx, query, studentID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count unpaid lessons: %w", base.Translate(err))
	}

	return count, nil
}

// WidgetStats возвращает счётчики для карточки ученика: проведено и
// отменено за всё время, запланировано по шаблону в указанном месяце.
func (r *LessonRepository) WidgetStats(ctx context.Context, studentID int64, year int, month time.Month) (completed, cancelled, plannedThisMonth int, err error) {
	allTime := `
		SELECT count(*) FILTER (WHERE status = 'completed'),
		       count(*) FILTER (WHERE status = 'cancelled')
		FROM lessons
		WHERE student_id = $1
	`
	if err = r.Pool().QueryRow(ctx, allTime, studentID).Scan(&completed, &cancelled); err != nil {
		return 0, 0, 0, fmt.Errorf("lesson stats: %w", base.Translate(err))
	}

	planned := `
		SELECT count(*) FROM lessons
		WHERE student_id = $1
		  AND status = 'scheduled'
		  AND from_template = true
		  AND extract(year FROM start_time) = $2
		  AND extract(month FROM start_time) = $3
	`
	if err = r.Pool().QueryRow(ctx, planned, studentID, year, int(month)).Scan(&plannedThisMonth); err != nil {
		return 0, 0, 0, fmt.Errorf("planned lessons: %w", base.Translate(err))
	}

	return completed, cancelled, plannedThisMonth, nil
}
