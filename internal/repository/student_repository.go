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

// StudentRepository управляет учениками в базе данных
type StudentRepository struct {
	*base.Repository
	logger *zap.Logger
}

// NewStudentRepository создаёт новый репозиторий
func NewStudentRepository(pool *pgxpool.Pool, logger *zap.Logger) *StudentRepository {
	return &StudentRepository{
		Repository: base.NewRepository(pool),
		logger:     logger,
	}
}

const studentColumns = `id, name, class_level, city, timezone, parent_name, contact, notes, lesson_price, created_at`

func scanStudent(row pgx.Row) (*model.Student, error) {
	s := &model.Student{}
	err := row.Scan(
		&s.ID,
		&s.Name,
		&s.ClassLevel,
		&s.City,
		&s.Timezone,
		&s.ParentName,
		&s.Contact,
		&s.Notes,
		&s.LessonPrice,
		&s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Create создаёт нового ученика
func (r *StudentRepository) Create(ctx context.Context, s *model.Student) error {
	query := `
		INSERT INTO students (name, class_level, city, timezone, parent_name, contact, notes, lesson_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`

	err := r.Pool().QueryRow(
		ctx,
		query,
		s.Name,
		s.ClassLevel,
		s.City,
		s.Timezone,
		s.ParentName,
		s.Contact,
		s.Notes,
		s.LessonPrice,
	).Scan(&s.ID, &s.CreatedAt)

	if err != nil {
		return fmt.Errorf("create student: %w", base.Translate(err))
	}

	return nil
}

// GetByID получает ученика по ID
func (r *StudentRepository) GetByID(ctx context.Context, id int64) (*model.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE id = $1`

	s, err := scanStudent(r.Pool().QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get student by id: %w", base.Translate(err))
	}

	return s, nil
}

// List получает всех учеников, отсортированных по имени
func (r *StudentRepository) List(ctx context.Context) ([]*model.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students ORDER BY name`

	rows, err := r.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", base.Translate(err))
	}
	defer rows.Close()

	var students []*model.Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		students = append(students, s)
	}

	return students, rows.Err()
}

// ListByParentName получает детей одной семьи
func (r *StudentRepository) ListByParentName(ctx context.Context, parentName string) ([]*model.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE parent_name = $1 ORDER BY name`

	rows, err := r.Pool().Query(ctx, query, parentName)
	if err != nil {
		return nil, fmt.Errorf("list students by parent: %w", base.Translate(err))
	}
	defer rows.Close()

	var students []*model.Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		students = append(students, s)
	}

	return students, rows.Err()
}

// Update обновляет данные ученика
func (r *StudentRepository) Update(ctx context.Context, s *model.Student) error {
	query := `
		UPDATE students
		SET name = $2, class_level = $3, city = $4, timezone = $5,
		    parent_name = $6, contact = $7, notes = $8, lesson_price = $9
		WHERE id = $1
	`

	tag, err := r.Pool().Exec(
		ctx,
		query,
		s.ID,
		s.Name,
		s.ClassLevel,
		s.City,
		s.Timezone,
		s.ParentName,
		s.Contact,
		s.Notes,
		s.LessonPrice,
	)
	if err != nil {
		return fmt.Errorf("update student: %w", base.Translate(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update student %d: %w", s.ID, model.ErrNotFound)
	}

	return nil
}

// DeleteCascade полностью удаляет ученика вместе с его уроками,
// шаблонами и платежами в одной транзакции.
func (r *StudentRepository) DeleteCascade(ctx context.Context, id int64) error {
	return r.InTx(ctx, func(tx pgx.Tx) error {
		for _, query := range []string{
			`DELETE FROM payments WHERE student_id = $1`,
			`DELETE FROM lessons WHERE student_id = $1`,
			`DELETE FROM lesson_templates WHERE student_id = $1`,
		} {
			if _, err := tx.Exec(ctx, query, id); err != nil {
				return fmt.Errorf("delete student data: %w", base.Translate(err))
			}
		}

		tag, err := tx.Exec(ctx, `DELETE FROM students WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete student: %w", base.Translate(err))
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("delete student %d: %w", id, model.ErrNotFound)
		}
		return nil
	})
}
